package microscope

import (
	"errors"
	"time"
)

var (
	// ErrNotFound は未知の顕微鏡IDを指定した場合のエラー
	ErrNotFound = errors.New("顕微鏡が見つかりません")

	// ErrInvalidIntensity はLED強度が0〜100の範囲外の場合のエラー
	ErrInvalidIntensity = errors.New("LED強度は0〜100で指定してください")

	// ErrLEDFailure はLEDドライバーの操作に失敗した場合のエラー
	ErrLEDFailure = errors.New("LEDの制御に失敗しました")

	// ErrCaptureFailed はフレーム取得または画像保存に失敗した場合のエラー
	ErrCaptureFailed = errors.New("画像のキャプチャに失敗しました")
)

// 強度の範囲
const (
	MinIntensity     = 0
	MaxIntensity     = 100
	DefaultIntensity = 50
)

// Config は顕微鏡ごとの変更可能な設定
type Config struct {
	LEDOn        bool   `json:"led_on"`
	LEDIntensity int    `json:"led_intensity"`
	Resolution   string `json:"resolution"`
}

// Microscope は顕微鏡1台の情報（レジストリ内部状態のコピー）
type Microscope struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Device    string `json:"device"`
	Connected bool   `json:"connected"`
	Config    Config `json:"config"`
}

// Capture は保存した静止画の記録
type Capture struct {
	ID           string    // キャプチャID (UUID)
	MicroscopeID string    // 撮影した顕微鏡
	Path         string    // 保存先ファイル
	Size         int       // バイト数
	TakenAt      time.Time // 撮影時刻
}

// ValidateIntensity は強度が範囲内か検証する
func ValidateIntensity(v int) error {
	if v < MinIntensity || v > MaxIntensity {
		return ErrInvalidIntensity
	}
	return nil
}
