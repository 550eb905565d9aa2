// Package tui はデバイスサービスを操作する端末用ダッシュボード
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"kenbikyo/internal/client"
	"kenbikyo/internal/generated"
)

type screen int

const (
	statusScreen screen = iota
	microscopesScreen
	calibrationScreen
)

var screenTitles = []string{"1 システム", "2 顕微鏡", "3 キャリブレーション"}

const (
	intensityStep    = 5
	histogramBuckets = 64
	histogramHeight  = 8
)

// Actions は画面操作から呼び出すサービスAPI
type Actions interface {
	SetLED(ctx context.Context, id string, on bool) error
	SetIntensity(ctx context.Context, id string, intensity int) error
	Capture(ctx context.Context, id string) (*client.Capture, error)
}

// MicroscopeView は一覧の1行分。Configは取得できなかった場合nil
type MicroscopeView struct {
	Info   generated.MicroscopeInfo
	Config *generated.MicroscopeConfig
}

// ポーリング結果のメッセージ
type (
	StatusResult      = client.Result[*generated.SystemConfigResponse]
	MicroscopesResult = client.Result[[]MicroscopeView]
	SensorResult      = client.Result[*generated.SensorDataResponse]
)

type tickMsg time.Time

type ledMsg struct {
	id  string
	on  bool
	err error
}

type intensityMsg struct {
	id    string
	value int
	err   error
}

type captureMsg struct {
	id      string
	path    string
	buckets []int
	err     error
}

// Options はModelの初期設定
type Options struct {
	Actions    Actions
	Sequencer  *client.Sequencer
	Server     string // 表示用の接続先
	CaptureDir string // キャプチャのローカル保存先
	Logger     zerolog.Logger
}

// Model はダッシュボードの状態
type Model struct {
	actions    Actions
	seq        *client.Sequencer
	server     string
	captureDir string
	logger     zerolog.Logger
	now        func() time.Time

	width       int
	height      int
	currentTime time.Time
	screen      screen

	// ポーリングで更新される値。nilは未取得
	status      *generated.SystemConfigResponse
	sensor      *generated.SensorDataResponse
	microscopes []MicroscopeView
	listLoaded  bool

	table   table.Model
	bar     progress.Model
	spinner spinner.Model

	// キャリブレーション画面
	selected    string
	ledOn       bool
	intensity   int
	capturing   bool
	pending     int // 応答待ちのLED操作の数
	lastCapture string
	histogram   []int

	message string
	lastErr string
}

// New は初期状態のModelを返す
func New(opts Options) Model {
	seq := opts.Sequencer
	if seq == nil {
		seq = client.NewSequencer()
	}
	captureDir := opts.CaptureDir
	if captureDir == "" {
		captureDir = "."
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 14},
			{Title: "名前", Width: 20},
			{Title: "デバイス", Width: 12},
			{Title: "LED", Width: 5},
			{Title: "強度", Width: 5},
			{Title: "温度", Width: 8},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	s := spinner.New()
	s.Spinner = spinner.Dot

	now := time.Now()
	return Model{
		actions:     opts.Actions,
		seq:         seq,
		server:      opts.Server,
		captureDir:  captureDir,
		logger:      opts.Logger,
		now:         time.Now,
		currentTime: now,
		screen:      statusScreen,
		table:       t,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		spinner:     s,
		intensity:   50,
		message:     "接続しました",
	}
}

// Init は時計の更新を開始する
func (m Model) Init() tea.Cmd {
	return timeTickCmd()
}

// hasMicroscopes は次の画面に進めるかを返す
func (m Model) hasMicroscopes() bool {
	if m.listLoaded {
		return len(m.microscopes) > 0
	}
	return m.status != nil && m.status.MicroscopeCount > 0
}

func (m Model) findMicroscope(id string) (MicroscopeView, bool) {
	for _, v := range m.microscopes {
		if v.Info.Id == id {
			return v, true
		}
	}
	return MicroscopeView{}, false
}

func clampIntensity(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func timeTickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
