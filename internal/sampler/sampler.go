// Package sampler は一定間隔で温湿度を記録し、必要に応じて全顕微鏡で自動撮影する
package sampler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kenbikyo/internal/microscope"
	"kenbikyo/internal/sensor"
)

// Microscopes は自動撮影の対象
type Microscopes interface {
	IDs() []string
	AutoCapture(ctx context.Context, id string, hold time.Duration) (*microscope.Capture, error)
}

// Recorder は読み取り結果の保存先
type Recorder interface {
	Record(ctx context.Context, r sensor.Reading) error
}

// Sampler はバックグラウンドのサンプリングループ
type Sampler struct {
	config  Config
	sensor  sensor.Sensor
	scopes  Microscopes
	history Recorder
	logger  zerolog.Logger

	mu        sync.RWMutex
	status    Status
	sensorLog zerolog.Logger
	logFile   *os.File
	resetCh   chan time.Duration
	cancel    context.CancelFunc
	done      chan struct{}
}

// New は新しいSamplerを作成する。scopesとhistoryはnilでもよい
func New(config Config, s sensor.Sensor, scopes Microscopes, history Recorder, logger zerolog.Logger) *Sampler {
	return &Sampler{
		config:    config,
		sensor:    s,
		scopes:    scopes,
		history:   history,
		logger:    logger.With().Str("component", "sampler").Logger(),
		status:    Status{Interval: config.Interval},
		sensorLog: zerolog.Nop(),
		resetCh:   make(chan time.Duration, 1),
	}
}

// Start はサンプリングループを開始する
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info().Msg("サンプリングは無効です")
		return nil
	}
	if s.cancel != nil {
		return fmt.Errorf("サンプリングは既に開始されています")
	}

	if s.config.SensorLog != "" {
		f, err := os.OpenFile(s.config.SensorLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("センサーログのオープンに失敗: %w", err)
		}
		s.logFile = f
		s.sensorLog = zerolog.New(f).With().Timestamp().Logger()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.status.Running = true

	go s.loop(loopCtx, s.status.Interval)

	s.logger.Info().
		Dur("interval", s.status.Interval).
		Bool("timelapse", s.config.Timelapse).
		Msg("サンプリングを開始しました")
	return nil
}

// Stop はループの終了を待って停止する
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	if s.logFile != nil {
		if err := s.logFile.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("センサーログのクローズに失敗しました")
		}
		s.logFile = nil
		s.sensorLog = zerolog.Nop()
	}
	s.logger.Info().Msg("サンプリングを停止しました")
}

// SetInterval は実行中のループの間隔を変更する
func (s *Sampler) SetInterval(d time.Duration) error {
	if d < MinInterval {
		return fmt.Errorf("%s: %w", d, ErrInterval)
	}

	s.mu.Lock()
	s.status.Interval = d
	s.mu.Unlock()

	// 未処理の変更は新しい値で置き換える
	select {
	case <-s.resetCh:
	default:
	}
	s.resetCh <- d
	return nil
}

// Interval は現在の間隔を返す
func (s *Sampler) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.Interval
}

// Status は現在の状態を返す
func (s *Sampler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.status
	if st.LastReading != nil {
		r := *st.LastReading
		st.LastReading = &r
	}
	return st
}

func (s *Sampler) loop(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.resetCh:
			ticker.Reset(d)
			s.logger.Info().Dur("interval", d).Msg("サンプリング間隔を変更しました")
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は1周期分の処理（センサー読み取り、履歴保存、自動撮影）を行う
func (s *Sampler) RunOnce(ctx context.Context) {
	reading, err := s.sensor.Read(ctx)
	if err != nil {
		// DHT11の読み取り失敗は頻繁に起きるためリトライせず次の周期を待つ
		s.logger.Debug().Err(err).Msg("センサーの読み取りに失敗しました")
		s.mu.Lock()
		s.status.Failures++
		s.status.LastRun = time.Now()
		s.mu.Unlock()
	} else {
		s.record(ctx, reading)
	}

	if s.config.Timelapse && s.scopes != nil {
		s.captureAll(ctx)
	}
}

func (s *Sampler) record(ctx context.Context, reading sensor.Reading) {
	s.mu.Lock()
	s.status.Samples++
	s.status.LastReading = &reading
	s.status.LastRun = time.Now()
	sensorLog := s.sensorLog
	s.mu.Unlock()

	sensorLog.Info().
		Float64("temperature", reading.Temperature).
		Float64("humidity", reading.Humidity).
		Str("taken_at", reading.Timestamp.Format(sensor.TimestampLayout)).
		Send()

	if s.history != nil {
		if err := s.history.Record(ctx, reading); err != nil {
			s.logger.Warn().Err(err).Msg("センサー履歴の保存に失敗しました")
		}
	}

	s.logger.Debug().
		Float64("temperature", reading.Temperature).
		Float64("humidity", reading.Humidity).
		Msg("環境データを記録しました")
}

func (s *Sampler) captureAll(ctx context.Context) {
	for _, id := range s.scopes.IDs() {
		if ctx.Err() != nil {
			return
		}
		c, err := s.scopes.AutoCapture(ctx, id, s.config.LEDAutoOn)
		if err != nil {
			s.logger.Warn().Err(err).Str("microscope_id", id).Msg("自動撮影に失敗しました")
			continue
		}

		s.mu.Lock()
		s.status.Captures++
		s.mu.Unlock()

		s.logger.Debug().Str("microscope_id", id).Str("path", c.Path).Msg("自動撮影しました")
	}
}
