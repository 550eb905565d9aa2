package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// ErrEmptyFrame はキャプチャ結果がJPEGとして不正な場合のエラー
var ErrEmptyFrame = errors.New("フレームを取得できませんでした")

var jpegSOI = []byte{0xFF, 0xD8}

// V4L2Capturer はシェルコマンドを使ってV4L2デバイスから画像を取得する
type V4L2Capturer struct {
	devicePath string
	width      int
	height     int
	timeout    time.Duration
}

// NewV4L2Capturer は新しいV4L2Capturerを作成する
func NewV4L2Capturer(devicePath string, res Resolution, timeout time.Duration) *V4L2Capturer {
	return &V4L2Capturer{
		devicePath: devicePath,
		width:      res.Width,
		height:     res.Height,
		timeout:    timeout,
	}
}

// NewV4L2CapturerFactory はタイムアウト付きのV4L2Capturerを作るファクトリーを返す
func NewV4L2CapturerFactory(timeout time.Duration) CapturerFactory {
	return func(device string, res Resolution) Capturer {
		return NewV4L2Capturer(device, res, timeout)
	}
}

// Device はデバイスパスを返す
func (c *V4L2Capturer) Device() string {
	return c.devicePath
}

// CaptureJPEG は1フレームをキャプチャしてJPEGバイト配列として返す
func (c *V4L2Capturer) CaptureJPEG(ctx context.Context) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// ffmpegを使って1フレームをJPEGとしてキャプチャ
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-i", c.devicePath,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", "2", // 高品質JPEG
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("JPEGフレームキャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}

	frame := stdout.Bytes()
	if !bytes.HasPrefix(frame, jpegSOI) {
		return nil, fmt.Errorf("%s: %w", c.devicePath, ErrEmptyFrame)
	}

	return frame, nil
}

// TestCapture はデバイステスト用の簡単なキャプチャ機能
func (c *V4L2Capturer) TestCapture(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.CaptureJPEG(testCtx)
	return err
}

// MockCapturer はテスト用のCapturer実装
type MockCapturer struct {
	device string
	frame  []byte
	delay  time.Duration

	mu  sync.Mutex
	err error

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

// NewMockCapturer は常に同じフレームを返すMockCapturerを作成する
func NewMockCapturer(device string, frame []byte) *MockCapturer {
	return &MockCapturer{device: device, frame: frame}
}

// Device はデバイスパスを返す
func (m *MockCapturer) Device() string {
	return m.device
}

// CaptureJPEG はモックフレームを返す
func (m *MockCapturer) CaptureJPEG(ctx context.Context) ([]byte, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	frame := make([]byte, len(m.frame))
	copy(frame, m.frame)
	return frame, nil
}

// SetDelay はキャプチャにかかる時間を設定する
func (m *MockCapturer) SetDelay(d time.Duration) {
	m.delay = d
}

// SetError はテスト用にキャプチャ失敗を設定する
func (m *MockCapturer) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls はCaptureJPEGの呼び出し回数を返す
func (m *MockCapturer) Calls() int {
	return int(m.calls.Load())
}

// MaxInFlight は同時に実行されたキャプチャ数の最大値を返す
func (m *MockCapturer) MaxInFlight() int {
	return int(m.maxInFlight.Load())
}
