package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"kenbikyo/internal/config"
	"kenbikyo/internal/generated"
	"kenbikyo/internal/microscope"
	"kenbikyo/internal/sensor"
	"kenbikyo/internal/state"
	"kenbikyo/internal/telemetry"
)

// TelemetrySource はシステム情報の取得元
type TelemetrySource = telemetry.Source

// IntervalController はサンプリング間隔の変更先
type IntervalController interface {
	SetInterval(d time.Duration) error
	Interval() time.Duration
}

// Deps はハンドラーが使うコンポーネント
type Deps struct {
	Registry  *microscope.Registry
	Sensor    sensor.Sensor
	Telemetry TelemetrySource
	State     *state.Store
	Sampler   IntervalController // nilなら状態ファイルの値のみ更新する
	History   HistoryReader      // nilなら履歴APIは503
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	engine     *gin.Engine
	httpServer *http.Server
	logger     zerolog.Logger
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) (*Server, error) {
	if deps.Registry == nil || deps.State == nil || deps.Telemetry == nil {
		return nil, errors.New("registry, state, telemetry は必須です")
	}
	if deps.Sensor == nil {
		deps.Sensor = sensor.NoneSensor{}
	}

	logger = logger.With().Str("component", "server").Logger()

	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	if cfg.Server.ValidateRequests {
		doc, err := generated.GetSwagger()
		if err != nil {
			return nil, err
		}
		validator, err := openAPIValidator(doc)
		if err != nil {
			return nil, err
		}
		engine.Use(validator)
	}

	handler := &KenbikyoHandler{
		registry:  deps.Registry,
		sensor:    deps.Sensor,
		telemetry: deps.Telemetry,
		state:     deps.State,
		sampler:   deps.Sampler,
		history:   deps.History,
		wsPeriod:  cfg.Telemetry.StreamInterval,
	}
	generated.RegisterHandlersWithOptions(engine, handler, generated.GinServerOptions{
		ErrorHandler: func(c *gin.Context, err error, status int) {
			respondError(c, status, codeInvalidRequest, err.Error())
		},
	})

	engine.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "not_found", "エンドポイントが見つかりません")
	})

	return &Server{
		config: cfg,
		engine: engine,
		logger: logger,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}, nil
}

// Handler はテストなどで使うhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start はサーバーを起動し、コンテキストのキャンセルかシグナルで停止する
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve は指定されたリスナーでサーバーを動かす
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("HTTPサーバーを起動しています")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info().Str("signal", sig.String()).Msg("シグナルを受信しました")
	case err := <-shutdownCh:
		return err
	}

	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("サーバーをシャットダウンしています...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info().Msg("サーバーが正常にシャットダウンされました")
	return nil
}
