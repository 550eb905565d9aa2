package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"kenbikyo/internal/client"
	"kenbikyo/internal/generated"
	"kenbikyo/internal/imaging"
)

// Update はメッセージに応じてModelを更新する
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.currentTime = time.Time(msg)
		return m, timeTickCmd()

	case StatusResult:
		if !m.accept(msg.Stream, msg.Seq, msg.Err) {
			return m, nil
		}
		m.status = msg.Value

	case SensorResult:
		if !m.accept(msg.Stream, msg.Seq, msg.Err) {
			return m, nil
		}
		m.sensor = msg.Value

	case MicroscopesResult:
		if !m.accept(msg.Stream, msg.Seq, msg.Err) {
			return m, nil
		}
		m.setMicroscopes(msg.Value)

	case ledMsg:
		m.finishAction()
		if msg.err != nil {
			m.fail("LEDの切り替えに失敗しました", msg.err)
			return m, nil
		}
		if msg.id == m.selected {
			m.ledOn = msg.on
		}
		m.updateConfig(msg.id, func(c *generated.MicroscopeConfig) { c.LedOn = msg.on })
		if msg.on {
			m.message = msg.id + " のLEDを点灯しました"
		} else {
			m.message = msg.id + " のLEDを消灯しました"
		}

	case intensityMsg:
		m.finishAction()
		if msg.err != nil {
			m.fail("LED強度の変更に失敗しました", msg.err)
			return m, nil
		}
		m.updateConfig(msg.id, func(c *generated.MicroscopeConfig) { c.LedIntensity = msg.value })
		m.message = fmt.Sprintf("%s のLED強度を %d に変更しました", msg.id, msg.value)

	case captureMsg:
		m.capturing = false
		if msg.path != "" {
			m.lastCapture = msg.path
		}
		if msg.err != nil {
			m.fail("キャプチャに失敗しました", msg.err)
			return m, nil
		}
		m.histogram = msg.buckets
		m.message = "保存しました: " + msg.path

	case spinner.TickMsg:
		if !m.capturing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// accept はポーリング結果を反映すべきかを判定する
// 失敗した場合は表示中の値を残し、エラーだけを記録する
func (m *Model) accept(stream string, seq uint64, err error) bool {
	if !m.seq.Apply(stream, seq) {
		return false
	}
	if err != nil {
		m.lastErr = err.Error()
		m.logger.Warn().Err(err).Str("stream", stream).Msg("ポーリングに失敗しました")
		return false
	}
	m.lastErr = ""
	return true
}

func (m *Model) fail(message string, err error) {
	m.message = message
	m.lastErr = err.Error()
	m.logger.Warn().Err(err).Str("microscope_id", m.selected).Msg(message)
}

// invalidateMicroscopes はそれまでに発行された一覧のポーリング結果を破棄させる
func (m *Model) invalidateMicroscopes() {
	m.seq.Apply(streamMicroscopes, m.seq.Next())
}

// startAction はLED操作の送信前に呼ぶ
func (m *Model) startAction() {
	m.pending++
	m.invalidateMicroscopes()
}

// finishAction はLED操作の応答を受けたときに呼ぶ
// 応答より前に発行されたポーリングはサービスの変更前の値を持つ可能性がある
func (m *Model) finishAction() {
	if m.pending > 0 {
		m.pending--
	}
	m.invalidateMicroscopes()
}

// updateConfig は操作が成功した顕微鏡の表示中の設定を更新する
func (m *Model) updateConfig(id string, fn func(c *generated.MicroscopeConfig)) {
	list := make([]MicroscopeView, len(m.microscopes))
	copy(list, m.microscopes)
	for i, v := range list {
		if v.Info.Id != id || v.Config == nil {
			continue
		}
		cfg := *v.Config
		fn(&cfg)
		list[i].Config = &cfg
	}
	m.setMicroscopes(list)
}

func (m *Model) setMicroscopes(list []MicroscopeView) {
	m.microscopes = list
	m.listLoaded = true

	rows := make([]table.Row, 0, len(list))
	for _, v := range list {
		led, intensity, temp := "--", "--", "--"
		if v.Config != nil {
			led = "OFF"
			if v.Config.LedOn {
				led = "ON"
			}
			intensity = fmt.Sprintf("%d", v.Config.LedIntensity)
			if v.Config.Temperature != nil {
				temp = fmt.Sprintf("%.1f°C", *v.Config.Temperature)
			}
		}
		rows = append(rows, table.Row{v.Info.Id, v.Info.Name, v.Info.Device, led, intensity, temp})
	}
	m.table.SetRows(rows)

	// 選択中の顕微鏡はサービス側の値に合わせる。操作の応答待ちの間は手元の値を優先する
	if m.pending > 0 {
		return
	}
	if v, ok := m.findMicroscope(m.selected); ok && v.Config != nil {
		m.ledOn = v.Config.LedOn
		m.intensity = clampIntensity(v.Config.LedIntensity)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "1":
		m.screen = statusScreen
		return m, nil
	case "2":
		return m.next(), nil
	case "3":
		if m.selected != "" {
			m.screen = calibrationScreen
		}
		return m, nil
	}

	switch m.screen {
	case statusScreen:
		switch msg.String() {
		case "n", "enter", "tab":
			return m.next(), nil
		}

	case microscopesScreen:
		switch msg.String() {
		case "b", "esc":
			m.screen = statusScreen
			return m, nil
		case "enter":
			row := m.table.SelectedRow()
			if row == nil {
				return m, nil
			}
			return m.calibrate(row[0]), nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case calibrationScreen:
		switch msg.String() {
		case "b", "esc":
			m.screen = microscopesScreen
		case "l":
			m.startAction()
			return m, m.ledCmd(m.selected, !m.ledOn)
		case "+", "=", "right":
			return m.changeIntensity(intensityStep)
		case "-", "left":
			return m.changeIntensity(-intensityStep)
		case "c":
			if m.capturing {
				return m, nil
			}
			m.capturing = true
			m.message = "キャプチャ中..."
			return m, tea.Batch(m.spinner.Tick, m.captureCmd(m.selected))
		}
	}

	return m, nil
}

// next は顕微鏡一覧へ進む。顕微鏡がなければ進めない
func (m Model) next() Model {
	if !m.hasMicroscopes() {
		m.message = "顕微鏡が接続されていないため次へ進めません"
		return m
	}
	m.screen = microscopesScreen
	return m
}

// calibrate は指定した顕微鏡のキャリブレーション画面を開く
func (m Model) calibrate(id string) Model {
	m.selected = id
	m.screen = calibrationScreen
	m.histogram = nil
	if v, ok := m.findMicroscope(id); ok && v.Config != nil {
		m.ledOn = v.Config.LedOn
		m.intensity = clampIntensity(v.Config.LedIntensity)
	}
	return m
}

func (m Model) changeIntensity(delta int) (tea.Model, tea.Cmd) {
	next := clampIntensity(m.intensity + delta)
	if next == m.intensity {
		return m, nil
	}
	m.intensity = next
	m.startAction()
	return m, m.intensityCmd(m.selected, next)
}

func (m Model) ledCmd(id string, on bool) tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		err := actions.SetLED(context.Background(), id, on)
		return ledMsg{id: id, on: on, err: err}
	}
}

func (m Model) intensityCmd(id string, value int) tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		err := actions.SetIntensity(context.Background(), id, value)
		return intensityMsg{id: id, value: value, err: err}
	}
}

// captureCmd は撮影した画像をローカルに保存し、ヒストグラムを計算する
func (m Model) captureCmd(id string) tea.Cmd {
	actions, dir, now := m.actions, m.captureDir, m.now
	return func() tea.Msg {
		capture, err := actions.Capture(context.Background(), id)
		if err != nil {
			return captureMsg{id: id, err: err}
		}

		path, err := client.SaveCapture(dir, id, capture.JPEG, now())
		if err != nil {
			return captureMsg{id: id, err: err}
		}

		hist, err := imaging.GrayHistogram(capture.JPEG)
		if err != nil {
			return captureMsg{id: id, path: path, err: err}
		}
		return captureMsg{id: id, path: path, buckets: imaging.Downsample(hist, histogramBuckets)}
	}
}
