package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMockCapturer(t *testing.T) {
	ctx := context.Background()
	frame := []byte{0xFF, 0xD8, 0x01, 0x02}
	capturer := NewMockCapturer("/dev/video0", frame)

	got, err := capturer.CaptureJPEG(ctx)
	if err != nil {
		t.Fatalf("CaptureJPEG failed: %v", err)
	}
	if string(got) != string(frame) {
		t.Errorf("フレームが一致しません: %v", got)
	}

	// 返り値を変更してもモックの内部状態は変わらない
	got[2] = 0xAA
	again, _ := capturer.CaptureJPEG(ctx)
	if again[2] != 0x01 {
		t.Error("MockCapturerが内部バッファを共有しています")
	}

	capturer.SetError(errors.New("boom"))
	if _, err := capturer.CaptureJPEG(ctx); err == nil {
		t.Error("Expected capture error")
	}

	if capturer.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", capturer.Calls())
	}
	if capturer.Device() != "/dev/video0" {
		t.Errorf("Device() = %s", capturer.Device())
	}
}

func TestMockCapturer_MaxInFlight(t *testing.T) {
	capturer := NewMockCapturer("/dev/video0", []byte{0xFF, 0xD8})
	capturer.SetDelay(20 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = capturer.CaptureJPEG(context.Background())
		}()
	}
	wg.Wait()

	// ロックなしで並行に呼べば重なりが観測される
	if capturer.MaxInFlight() < 2 {
		t.Errorf("MaxInFlight() = %d, want >= 2", capturer.MaxInFlight())
	}
}

func TestMockCapturer_ContextCancel(t *testing.T) {
	capturer := NewMockCapturer("/dev/video0", []byte{0xFF, 0xD8})
	capturer.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := capturer.CaptureJPEG(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestV4L2Capturer_MissingDevice(t *testing.T) {
	capturer := NewV4L2Capturer("/dev/video999", Resolution{Width: 640, Height: 480}, 2*time.Second)

	if _, err := capturer.CaptureJPEG(context.Background()); err == nil {
		t.Error("存在しないデバイスでエラーが期待されました")
	}
}

func TestNewV4L2CapturerFactory(t *testing.T) {
	factory := NewV4L2CapturerFactory(time.Second)
	c := factory("/dev/video3", Resolution{Width: 640, Height: 480})
	if c.Device() != "/dev/video3" {
		t.Errorf("Device() = %s", c.Device())
	}
}
