// Package logging はzerologベースのロガーを設定から組み立てる
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Options はロガーの出力設定
type Options struct {
	Level  string // debug / info / warn / error
	Format string // console / json
	File   string // 空の場合はファイル出力なし
	Stdout bool   // 標準出力にも書き出すか
}

// New はOptionsからロガーを作成する
// 返されるcleanupはシャットダウン時に呼び出すこと
func New(opts Options) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	cleanup := func() {}

	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return zerolog.Nop(), cleanup, fmt.Errorf("ログディレクトリの作成に失敗: %w", err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), cleanup, fmt.Errorf("ログファイルのオープンに失敗: %w", err)
		}
		writers = append(writers, f)
		cleanup = func() { _ = f.Close() }
	}

	if opts.Stdout || len(writers) == 0 {
		if opts.Format == "json" {
			writers = append(writers, os.Stdout)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime})
		}
	}

	var w io.Writer
	if len(writers) == 1 {
		w = writers[0]
	} else {
		w = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return logger, cleanup, nil
}

// Component はコンポーネント名付きの子ロガーを返す
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
