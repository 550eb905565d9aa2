package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kenbikyo.log")

	logger, cleanup, err := New(Options{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cl := Component(logger, "test")
	cl.Info().Str("microscope_id", "microscope_1").Msg("LEDを点灯")
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ログファイルが読めません: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"component":"test"`, `"microscope_id":"microscope_1"`, `"level":"info"`} {
		if !strings.Contains(out, want) {
			t.Errorf("ログに %s が含まれていません: %s", want, out)
		}
	}
}

func TestNew_Level(t *testing.T) {
	testCases := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "x.log")
			logger, cleanup, err := New(Options{Level: tc.level, File: path})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer cleanup()

			if logger.GetLevel() != tc.want {
				t.Errorf("level = %s, want %s", logger.GetLevel(), tc.want)
			}
		})
	}
}
