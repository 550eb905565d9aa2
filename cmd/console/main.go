// Package main は顕微鏡デバイスサービスに接続する端末用コンソールです
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"kenbikyo/internal/client"
	"kenbikyo/internal/logging"
	"kenbikyo/internal/tui"
)

func main() {
	var (
		serverURL  = flag.String("server", envOrDefault("KENBIKYO_SERVER", "http://localhost:5000"), "デバイスサービスのURL")
		logFile    = flag.String("log", "kenbikyo_console.log", "ログファイル")
		logLevel   = flag.String("log-level", "info", "ログレベル (debug / info / warn / error)")
		captureDir = flag.String("capture-dir", "captures", "キャプチャ画像の保存先")
	)
	flag.Parse()

	// 画面はbubbleteaが使うため、ログはファイルにだけ書く
	logger, cleanup, err := logging.New(logging.Options{
		Level:  *logLevel,
		Format: "json",
		File:   *logFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ロガーの初期化に失敗しました: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	c, err := client.New(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 起動時に接続を確認する
	ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
	err = c.Health(ctx)
	cancel()
	if err != nil {
		logger.Error().Err(err).Str("server", c.BaseURL()).Msg("サービスに接続できません")
		fmt.Fprintf(os.Stderr, "サービス %s に接続できません。サービスが起動しているか確認してください。\n(%v)\n", c.BaseURL(), err)
		cleanup()
		os.Exit(1)
	}
	logger.Info().Str("server", c.BaseURL()).Msg("サービスに接続しました")

	seq := client.NewSequencer()
	p := tea.NewProgram(
		tui.New(tui.Options{
			Actions:    c,
			Sequencer:  seq,
			Server:     c.BaseURL(),
			CaptureDir: *captureDir,
			Logger:     logger,
		}),
		tea.WithAltScreen(),
	)

	pollCtx, stopPolling := context.WithCancel(context.Background())
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		tui.RunPollers(pollCtx, c, seq, p.Send)
	}()

	_, runErr := p.Run()

	// 画面の終了後にポーリングを止める
	stopPolling()
	select {
	case <-pollDone:
	case <-time.After(client.DefaultTimeout):
		logger.Warn().Msg("ポーリングの停止がタイムアウトしました")
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("コンソールが異常終了しました")
		fmt.Fprintf(os.Stderr, "コンソールの実行に失敗しました: %v\n", runErr)
		cleanup()
		os.Exit(1)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
