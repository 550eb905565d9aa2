package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"kenbikyo/internal/sampler"
)

// Config はデバイスサービス全体の設定を保持する構造体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Camera    CameraConfig    `yaml:"camera"`
	LED       LEDConfig       `yaml:"led"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Sampler   sampler.Config  `yaml:"sampler"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`           // リッスンするホスト
	Port int    `yaml:"port" validate:"min=1,max=65535"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gte=0"`     // 読み込みタイムアウト
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gte=0"`    // 書き込みタイムアウト
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"` // グレースフルシャットダウンの猶予

	// OpenAPI定義によるリクエスト検証を行うか
	ValidateRequests bool `yaml:"validate_requests"`
}

// CameraConfig は顕微鏡カメラ関連の設定
type CameraConfig struct {
	// 固定のデバイス一覧。空の場合は /dev/video* を自動検出する
	Devices []CameraDevice `yaml:"devices" validate:"dive"`

	// メタデータ用ノードなどカラー出力を持たないデバイスを除外する
	FilterMetadataNodes bool `yaml:"filter_metadata_nodes"`

	// デフォルト設定
	DefaultFPS     int           `yaml:"default_fps" validate:"min=1,max=60"`
	DefaultWidth   int           `yaml:"default_width" validate:"min=1,max=4096"`
	DefaultHeight  int           `yaml:"default_height" validate:"min=1,max=4096"`
	CaptureTimeout time.Duration `yaml:"capture_timeout" validate:"gt=0"` // 1フレーム取得のタイムアウト
}

// CameraDevice は個別カメラの設定
type CameraDevice struct {
	Device string `yaml:"device" validate:"required"` // デバイスパス (例: /dev/video0)
	Name   string `yaml:"name"`                       // 表示名（省略時はv4l2から取得）

	// カメラ固有の設定（デフォルト値より優先）
	Width  int `yaml:"width" validate:"gte=0,max=4096"`
	Height int `yaml:"height" validate:"gte=0,max=4096"`
}

// LEDConfig はLED照明ドライバーの設定
type LEDConfig struct {
	Driver     string   `yaml:"driver" validate:"oneof=pwm serial none"` // 使用するドライバー
	Pins       []string `yaml:"pins"`                                    // 顕微鏡ごとのGPIOピン名 (例: GPIO17)
	Frequency  int      `yaml:"frequency" validate:"min=1"`              // PWM周波数 (Hz)
	SerialPort string   `yaml:"serial_port" validate:"required_if=Driver serial"`
	BaudRate   int      `yaml:"baud_rate" validate:"min=0"`
}

// SensorConfig は温湿度センサーの設定
type SensorConfig struct {
	Driver    string `yaml:"driver" validate:"oneof=iio none"` // iio: カーネルのdht11ドライバー経由
	IIODevice string `yaml:"iio_device" validate:"required_if=Driver iio"`
}

// TelemetryConfig はシステム情報の取得設定
type TelemetryConfig struct {
	DiskPath    string `yaml:"disk_path" validate:"required"`    // 使用率を計測するマウントポイント
	ThermalZone string `yaml:"thermal_zone" validate:"required"` // CPU温度のsysfsファイル

	// WebSocket配信の周期。0ならサンプリング間隔に合わせる
	StreamInterval time.Duration `yaml:"stream_interval" validate:"gte=0"`
}

// StorageConfig はファイル保存先の設定
type StorageConfig struct {
	StateFile        string `yaml:"state_file" validate:"required"`   // 変更可能な状態の保存先 (JSON)
	ImageFolder      string `yaml:"image_folder" validate:"required"` // キャプチャ画像の保存先
	HistoryDB        string `yaml:"history_db"`                       // センサー履歴DB。空なら無効
	HistoryRetention int    `yaml:"history_retention" validate:"gte=0"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
	File   string `yaml:"file"` // 空の場合は標準出力のみ
}

var validate = validator.New()

// Default はデフォルト値で埋めた設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5000,
			ReadTimeout:      10 * time.Second,
			WriteTimeout:     0, // WebSocket用にタイムアウト無効化
			ShutdownTimeout:  5 * time.Second,
			ValidateRequests: true,
		},
		Camera: CameraConfig{
			Devices:             []CameraDevice{},
			FilterMetadataNodes: false,
			DefaultFPS:          15,
			DefaultWidth:        1280,
			DefaultHeight:       720,
			CaptureTimeout:      10 * time.Second,
		},
		LED: LEDConfig{
			Driver:    "pwm",
			Pins:      []string{"GPIO17", "GPIO22"},
			Frequency: 100,
			BaudRate:  9600,
		},
		Sensor: SensorConfig{
			Driver:    "iio",
			IIODevice: "/sys/bus/iio/devices/iio:device0",
		},
		Telemetry: TelemetryConfig{
			DiskPath:    "/",
			ThermalZone: "/sys/class/thermal/thermal_zone0/temp",
		},
		Storage: StorageConfig{
			StateFile:        "kenbikyo_config.json",
			ImageFolder:      "microscope_captures",
			HistoryDB:        "kenbikyo_history.db",
			HistoryRetention: 10000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Sampler: sampler.DefaultConfig(),
	}
}

// Load は設定を読み込む
// デフォルト値 → YAMLファイル（pathが空でなければ） → 環境変数 の順に上書きする
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Storage.ImageFolder = getEnvOrDefault("IMAGE_FOLDER", c.Storage.ImageFolder)
	c.LED.Driver = getEnvOrDefault("LED_DRIVER", c.LED.Driver)
	c.Sensor.Driver = getEnvOrDefault("SENSOR_DRIVER", c.Sensor.Driver)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("無効な設定値 %s (%s): %v", first.Namespace(), first.Tag(), first.Value())
		}
		return err
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
