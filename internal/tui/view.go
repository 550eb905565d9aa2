package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"kenbikyo/internal/imaging"
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	mainContentStyle = lipgloss.NewStyle().Padding(1, 1)

	tabStyle = lipgloss.NewStyle().Padding(0, 1)

	activeTabStyle = tabStyle.
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	disabledTabStyle = tabStyle.Foreground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().Width(12)

	histogramStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
)

const placeholder = "--"

// View は画面を描画する
func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	header := headerStyle.Width(width).Render(lipgloss.JoinHorizontal(
		lipgloss.Center,
		"kenbikyo "+m.server,
		lipgloss.NewStyle().
			Width(max(width-len(m.server)-14, 0)).
			Align(lipgloss.Right).
			Render(m.currentTime.Format("2006-01-02 15:04:05")),
	))

	var content string
	switch m.screen {
	case statusScreen:
		content = m.viewStatus()
	case microscopesScreen:
		content = m.viewMicroscopes()
	case calibrationScreen:
		content = m.viewCalibration()
	}

	status := m.message
	if m.lastErr != "" {
		status += " " + errorStyle.Render("エラー: "+m.lastErr)
	}
	statusBar := statusBarStyle.Width(width).Render(status)

	return strings.Join([]string{header, m.renderTabs(), mainContentStyle.Render(content), statusBar}, "\n")
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, len(screenTitles))
	for i, title := range screenTitles {
		style := tabStyle
		switch {
		case screen(i) == m.screen:
			style = activeTabStyle
		case screen(i) == microscopesScreen && !m.hasMicroscopes(),
			screen(i) == calibrationScreen && m.selected == "":
			style = disabledTabStyle
		}
		tabs = append(tabs, style.Render(title))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewStatus() string {
	var b strings.Builder

	if m.status == nil {
		for _, label := range []string{"CPU", "メモリ", "ストレージ", "CPU温度"} {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label), placeholder)
		}
	} else {
		fmt.Fprintf(&b, "%s %s %5.1f%%\n", labelStyle.Render("CPU"), m.bar.ViewAs(m.status.CpuUsage/100), m.status.CpuUsage)
		fmt.Fprintf(&b, "%s %s %5.1f%%\n", labelStyle.Render("メモリ"), m.bar.ViewAs(m.status.MemoryUsage/100), m.status.MemoryUsage)
		fmt.Fprintf(&b, "%s %s %5.1f%%\n", labelStyle.Render("ストレージ"), m.bar.ViewAs(m.status.StorageUsage/100), m.status.StorageUsage)
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("CPU温度"), formatTemp(m.status.CpuTemp))
	}

	b.WriteString("\n")
	if m.sensor == nil {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("温度"), placeholder)
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("湿度"), placeholder)
	} else {
		fmt.Fprintf(&b, "%s %.1f°C\n", labelStyle.Render("温度"), m.sensor.Temperature)
		fmt.Fprintf(&b, "%s %.1f%%  (%s)\n", labelStyle.Render("湿度"), m.sensor.Humidity, m.sensor.Timestamp)
	}

	b.WriteString("\n")
	count := placeholder
	if m.listLoaded {
		count = fmt.Sprintf("%d台", len(m.microscopes))
	} else if m.status != nil {
		count = fmt.Sprintf("%d台", m.status.MicroscopeCount)
	}
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("顕微鏡"), count)

	if m.hasMicroscopes() {
		b.WriteString("n: 次へ  q: 終了")
	} else {
		b.WriteString(disabledTabStyle.Render("n: 次へ（顕微鏡がありません）") + "  q: 終了")
	}
	return b.String()
}

func (m Model) viewMicroscopes() string {
	return m.table.View() + "\n\n↑/↓: 選択  enter: キャリブレーション  b: 戻る  q: 終了"
}

func (m Model) viewCalibration() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("顕微鏡"), m.selected)

	led := "OFF"
	if m.ledOn {
		led = "ON"
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("LED"), led)
	fmt.Fprintf(&b, "%s %s %3d\n", labelStyle.Render("強度"), m.bar.ViewAs(float64(m.intensity)/100), m.intensity)

	resolution, temp := placeholder, placeholder
	if v, ok := m.findMicroscope(m.selected); ok && v.Config != nil {
		resolution = v.Config.Resolution
		temp = formatTemp(v.Config.Temperature)
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("解像度"), resolution)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("温度"), temp)

	last := placeholder
	if m.lastCapture != "" {
		last = m.lastCapture
	}
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("最終キャプチャ"), last)

	switch {
	case m.capturing:
		b.WriteString(m.spinner.View() + " キャプチャ中...\n")
	case m.histogram != nil:
		b.WriteString("輝度ヒストグラム\n")
		b.WriteString(histogramStyle.Render(renderHistogram(m.histogram, histogramHeight)))
		b.WriteString("\n")
	}

	b.WriteString("\nl: LED切替  +/-: 強度  c: キャプチャ  b: 戻る  q: 終了")
	return b.String()
}

// renderHistogram は各区間の度数を縦棒で描画する
func renderHistogram(buckets []int, height int) string {
	peak := imaging.Max(buckets)
	if peak == 0 || height <= 0 {
		return "(データなし)"
	}

	lines := make([]string, 0, height+1)
	for row := height; row >= 1; row-- {
		var line strings.Builder
		for _, n := range buckets {
			// 0でない区間は最低1段表示する
			if n*height > (row-1)*peak {
				line.WriteString("█")
			} else {
				line.WriteString(" ")
			}
		}
		lines = append(lines, strings.TrimRight(line.String(), " "))
	}
	lines = append(lines, "0"+strings.Repeat("─", max(len(buckets)-4, 0))+"255")
	return strings.Join(lines, "\n")
}

func formatTemp(v *float64) string {
	if v == nil {
		return placeholder
	}
	return fmt.Sprintf("%.1f°C", *v)
}
