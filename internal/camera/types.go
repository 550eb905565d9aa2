package camera

import (
	"context"
	"fmt"
)

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices はシステム内の利用可能なカメラデバイスを番号順にスキャンする
	ScanDevices(ctx context.Context) ([]string, error)

	// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, device string) bool

	// GetDeviceInfo はデバイスの詳細情報を取得する
	GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error)
}

// Capturer は1台のカメラから静止画を取得する
type Capturer interface {
	// CaptureJPEG は1フレームをキャプチャしてJPEGバイト列で返す
	CaptureJPEG(ctx context.Context) ([]byte, error)

	// Device はキャプチャ対象のデバイスパスを返す
	Device() string
}

// CapturerFactory はデバイスパスと解像度からCapturerを作る
type CapturerFactory func(device string, res Resolution) Capturer

// DeviceInfo はカメラデバイスの詳細情報を表す
type DeviceInfo struct {
	Device      string       // デバイスパス
	Name        string       // デバイス名
	Driver      string       // ドライバー名
	Resolutions []Resolution // サポートされる解像度
	Formats     []string     // サポートされるフォーマット
}

// Resolution はカメラの解像度を表す
type Resolution struct {
	Width  int // 幅
	Height int // 高さ
}

// String は "1280x720" 形式の文字列を返す
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution は "1280x720" 形式の文字列を解析する
func ParseResolution(s string) (Resolution, error) {
	var r Resolution
	if _, err := fmt.Sscanf(s, "%dx%d", &r.Width, &r.Height); err != nil {
		return Resolution{}, fmt.Errorf("解像度の形式が不正: %q", s)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return Resolution{}, fmt.Errorf("解像度が不正: %q", s)
	}
	return r, nil
}
