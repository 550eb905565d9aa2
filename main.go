// Package main は顕微鏡デバイスサービスのコマンドです
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"kenbikyo/internal/camera"
	"kenbikyo/internal/config"
	"kenbikyo/internal/led"
	"kenbikyo/internal/logging"
	"kenbikyo/internal/microscope"
	"kenbikyo/internal/sampler"
	"kenbikyo/internal/sensor"
	"kenbikyo/internal/server"
	"kenbikyo/internal/state"
	"kenbikyo/internal/telemetry"
)

func main() {
	// コマンドラインオプション
	var (
		configPath = flag.String("config", os.Getenv("KENBIKYO_CONFIG"), "設定ファイル (YAML)")
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 5000)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("kenbikyo 顕微鏡デバイスサービス")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  kenbikyo [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗しました: %v\n", err)
		os.Exit(1)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "設定が不正です: %v\n", err)
		os.Exit(1)
	}

	logger, cleanup, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Stdout: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ロガーの初期化に失敗しました: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error().Err(err).Msg("サービスが異常終了しました")
		cleanup()
		os.Exit(1)
	}
}

// run はコンポーネントを組み立ててサーバーを動かし、停止後に後片付けをする
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	store, err := state.Load(cfg.Storage.StateFile, stateDefaults(cfg))
	if err != nil {
		if !errors.Is(err, state.ErrCorrupt) {
			return err
		}
		logger.Warn().Err(err).Str("path", cfg.Storage.StateFile).Msg("状態ファイルを初期値で作り直します")
	}
	applySavedState(cfg, store.Get())

	driver, err := newLEDDriver(cfg.LED)
	if err != nil {
		// LEDが使えなくても撮影とセンサーは提供する
		logger.Warn().Err(err).Str("driver", cfg.LED.Driver).Msg("LEDドライバーを初期化できません。LED制御は無効です")
		driver = led.NoopDriver{}
	}

	registry := microscope.NewRegistry(microscope.Options{
		Driver:      driver,
		Store:       store,
		ImageFolder: cfg.Storage.ImageFolder,
		Logger:      logger,
	})
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warn().Err(err).Msg("LEDドライバーのクローズに失敗しました")
		}
	}()

	defaultRes := camera.Resolution{Width: cfg.Camera.DefaultWidth, Height: cfg.Camera.DefaultHeight}
	n, err := registry.Discover(ctx,
		camera.NewLinuxDiscovery(cfg.Camera.FilterMetadataNodes),
		camera.NewV4L2CapturerFactory(cfg.Camera.CaptureTimeout),
		fixedDevices(cfg.Camera.Devices),
		defaultRes)
	if err != nil {
		// 顕微鏡が0台でもサービスは起動する
		logger.Warn().Err(err).Msg("顕微鏡の検出に失敗しました")
	}
	logger.Info().Int("count", n).Msg("顕微鏡を検出しました")

	sens := newSensor(cfg.Sensor)

	var history *sensor.HistoryStore
	if cfg.Storage.HistoryDB != "" {
		history, err = sensor.OpenHistoryStore(cfg.Storage.HistoryDB, cfg.Storage.HistoryRetention)
		if err != nil {
			logger.Warn().Err(err).Msg("センサー履歴は無効です")
			history = nil
		} else {
			defer history.Close()
		}
	}

	deps := server.Deps{
		Registry:  registry,
		Sensor:    sens,
		Telemetry: telemetry.NewCollector(cfg.Telemetry.DiskPath, cfg.Telemetry.ThermalZone),
		State:     store,
	}

	var recorder sampler.Recorder
	if history != nil {
		recorder = history
		deps.History = history
	}
	smp := sampler.New(cfg.Sampler, sens, registry, recorder, logger)
	if err := smp.Start(ctx); err != nil {
		return err
	}
	defer smp.Stop()
	deps.Sampler = smp

	srv, err := server.New(cfg, deps, logger)
	if err != nil {
		return err
	}

	logger.Info().Str("addr", cfg.ServerAddress()).Msg("kenbikyo サービスを起動します")
	return srv.Start(ctx)
}

// stateDefaults は状態ファイルがない場合の初期値
func stateDefaults(cfg *config.Config) state.File {
	return state.File{
		Interval:          int(cfg.Sampler.Interval / time.Second),
		LEDIntensity:      microscope.DefaultIntensity,
		LEDState:          false,
		LEDAutoOnDuration: cfg.Sampler.LEDAutoOn.Seconds(),
		ImageFolder:       cfg.Storage.ImageFolder,
		Cameras:           map[string]state.CameraState{},
	}
}

// applySavedState は前回保存された値で設定を上書きする
func applySavedState(cfg *config.Config, saved state.File) {
	if saved.Interval >= int(sampler.MinInterval/time.Second) {
		cfg.Sampler.Interval = time.Duration(saved.Interval) * time.Second
	}
	if saved.LEDAutoOnDuration >= 0 {
		cfg.Sampler.LEDAutoOn = time.Duration(saved.LEDAutoOnDuration * float64(time.Second))
	}
	if saved.ImageFolder != "" {
		cfg.Storage.ImageFolder = saved.ImageFolder
	}
}

func fixedDevices(devices []config.CameraDevice) []microscope.DeviceSpec {
	specs := make([]microscope.DeviceSpec, 0, len(devices))
	for _, d := range devices {
		specs = append(specs, microscope.DeviceSpec{
			Device:     d.Device,
			Name:       d.Name,
			Resolution: camera.Resolution{Width: d.Width, Height: d.Height},
		})
	}
	return specs
}

func newLEDDriver(cfg config.LEDConfig) (led.Driver, error) {
	switch cfg.Driver {
	case "pwm":
		return led.NewPWMDriver(cfg.Pins, cfg.Frequency)
	case "serial":
		return led.NewSerialDriver(cfg.SerialPort, cfg.BaudRate)
	default:
		return led.NoopDriver{}, nil
	}
}

func newSensor(cfg config.SensorConfig) sensor.Sensor {
	if cfg.Driver == "iio" {
		return sensor.NewIIOSensor(cfg.IIODevice)
	}
	return sensor.NoneSensor{}
}
