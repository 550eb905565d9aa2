package sampler

import (
	"errors"
	"time"

	"kenbikyo/internal/sensor"
)

// MinInterval はサンプリング間隔の下限
const MinInterval = time.Second

// ErrInterval はサンプリング間隔が下限未満の場合のエラー
var ErrInterval = errors.New("サンプリング間隔は1秒以上で指定してください")

// Config はバックグラウンドサンプリングの設定
type Config struct {
	Enabled   bool          `yaml:"enabled"`                    // 有効/無効
	Interval  time.Duration `yaml:"interval" validate:"min=1s"` // 読み取り間隔 (デフォルト: 5秒)
	Timelapse bool          `yaml:"timelapse"`                  // 周期ごとに全顕微鏡で撮影する
	LEDAutoOn time.Duration `yaml:"led_auto_on" validate:"min=0"`
	SensorLog string        `yaml:"sensor_log"` // 読み取り結果を追記するファイル。空なら無効
}

// DefaultConfig はデフォルトのサンプリング設定を返す
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Interval:  5 * time.Second,
		Timelapse: false,
		LEDAutoOn: 1 * time.Second,
		SensorLog: "sensor_data.log",
	}
}

// Status はサンプラーの状態
type Status struct {
	Running     bool            `json:"running"`
	Interval    time.Duration   `json:"interval"`
	Samples     int             `json:"samples"`  // 成功した読み取り回数
	Failures    int             `json:"failures"` // 失敗した読み取り回数
	Captures    int             `json:"captures"` // 自動撮影した枚数
	LastReading *sensor.Reading `json:"last_reading,omitempty"`
	LastRun     time.Time       `json:"last_run"`
}
