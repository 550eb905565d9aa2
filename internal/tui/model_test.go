package tui

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"kenbikyo/internal/client"
	"kenbikyo/internal/generated"
)

type fakeActions struct {
	mu         sync.Mutex
	led        map[string]bool
	intensity  map[string]int
	jpeg       []byte
	err        error
	ledCalls   int
	intensCall int
}

func newFakeActions(t *testing.T) *fakeActions {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 16)})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return &fakeActions{led: map[string]bool{}, intensity: map[string]int{}, jpeg: buf.Bytes()}
}

func (f *fakeActions) SetLED(_ context.Context, id string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ledCalls++
	if f.err != nil {
		return f.err
	}
	f.led[id] = on
	return nil
}

func (f *fakeActions) SetIntensity(_ context.Context, id string, v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intensCall++
	if f.err != nil {
		return f.err
	}
	f.intensity[id] = v
	return nil
}

func (f *fakeActions) Capture(_ context.Context, id string) (*client.Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &client.Capture{ID: "cap-" + id, JPEG: f.jpeg}, nil
}

func newTestModel(t *testing.T, actions Actions) Model {
	t.Helper()
	m := New(Options{
		Actions:    actions,
		Server:     "http://test",
		CaptureDir: t.TempDir(),
		Logger:     zerolog.Nop(),
	})
	m.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local) }
	return m
}

// send はメッセージを渡し、返されたコマンドを1段だけ実行して結果も反映する
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}

	outs := []tea.Msg{cmd()}
	if batch, ok := outs[0].(tea.BatchMsg); ok {
		outs = outs[:0]
		for _, c := range batch {
			if c != nil {
				outs = append(outs, c())
			}
		}
	}
	for _, out := range outs {
		switch out.(type) {
		case ledMsg, intensityMsg, captureMsg:
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func microscopes(seq uint64, n int) MicroscopesResult {
	views := make([]MicroscopeView, 0, n)
	temp := 24.0
	for i := 1; i <= n; i++ {
		id := "microscope_" + string(rune('0'+i))
		views = append(views, MicroscopeView{
			Info:   generated.MicroscopeInfo{Id: id, Name: "USB", Device: "/dev/video0", Connected: true, Resolution: "1280x720"},
			Config: &generated.MicroscopeConfig{LedOn: false, LedIntensity: 50, Resolution: "1280x720", Temperature: &temp},
		})
	}
	return MicroscopesResult{Stream: streamMicroscopes, Seq: seq, Value: views}
}

func TestNextDisabledWithoutMicroscopes(t *testing.T) {
	m := newTestModel(t, newFakeActions(t))

	m = send(t, m, StatusResult{Stream: streamStatus, Seq: 1, Value: &generated.SystemConfigResponse{MicroscopeCount: 0}})
	m = send(t, m, microscopes(2, 0))
	m = send(t, m, key("n"))

	if m.screen != statusScreen {
		t.Errorf("顕微鏡がないのに次の画面に進みました: %d", m.screen)
	}
	if !strings.Contains(m.message, "次へ進めません") {
		t.Errorf("message = %q", m.message)
	}
	if !strings.Contains(m.View(), "顕微鏡がありません") {
		t.Error("次へが無効であることが表示されていません")
	}

	m = send(t, m, key("2"))
	if m.screen != statusScreen {
		t.Error("数字キーでも進めてはいけません")
	}
}

func TestNavigateToCalibration(t *testing.T) {
	m := newTestModel(t, newFakeActions(t))
	m = send(t, m, microscopes(1, 2))

	m = send(t, m, key("n"))
	if m.screen != microscopesScreen {
		t.Fatalf("screen = %d", m.screen)
	}

	m = send(t, m, key("down"))
	m = send(t, m, key("enter"))
	if m.screen != calibrationScreen || m.selected != "microscope_2" {
		t.Fatalf("screen = %d selected = %s", m.screen, m.selected)
	}
	if m.intensity != 50 || m.ledOn {
		t.Errorf("初期値が不正: intensity=%d led=%v", m.intensity, m.ledOn)
	}

	m = send(t, m, key("b"))
	if m.screen != microscopesScreen {
		t.Errorf("戻れません: %d", m.screen)
	}
}

func TestStaleResultsIgnored(t *testing.T) {
	m := newTestModel(t, newFakeActions(t))

	fresh := &generated.SystemConfigResponse{CpuUsage: 80}
	stale := &generated.SystemConfigResponse{CpuUsage: 10}

	m = send(t, m, StatusResult{Stream: streamStatus, Seq: 5, Value: fresh})
	m = send(t, m, StatusResult{Stream: streamStatus, Seq: 3, Value: stale})

	if m.status.CpuUsage != 80 {
		t.Errorf("古い応答で上書きされました: %v", m.status.CpuUsage)
	}

	// 失敗時は表示中の値を残す
	m = send(t, m, StatusResult{Stream: streamStatus, Seq: 6, Err: errors.New("timeout")})
	if m.status == nil || m.status.CpuUsage != 80 {
		t.Error("失敗で表示中の値が消えました")
	}
	if m.lastErr == "" {
		t.Error("エラーが記録されていません")
	}

	m = send(t, m, StatusResult{Stream: streamStatus, Seq: 7, Value: stale})
	if m.status.CpuUsage != 10 || m.lastErr != "" {
		t.Errorf("新しい応答が反映されません: %+v %q", m.status, m.lastErr)
	}
}

func TestPlaceholdersBeforeFirstPoll(t *testing.T) {
	m := newTestModel(t, newFakeActions(t))
	view := m.View()
	if !strings.Contains(view, placeholder) {
		t.Errorf("未取得の値はプレースホルダーで表示すべきです:\n%s", view)
	}
}

func TestCalibration_LEDAndIntensity(t *testing.T) {
	actions := newFakeActions(t)
	m := newTestModel(t, actions)
	m = send(t, m, microscopes(1, 1))
	m = m.calibrate("microscope_1")

	m = send(t, m, key("l"))
	if !m.ledOn || !actions.led["microscope_1"] {
		t.Errorf("LEDが点灯していません: model=%v service=%v", m.ledOn, actions.led["microscope_1"])
	}
	m = send(t, m, key("l"))
	if m.ledOn {
		t.Error("LEDが消灯していません")
	}

	testCases := []struct {
		name  string
		start int
		key   string
		want  int
		calls int
	}{
		{"増加", 50, "+", 55, 1},
		{"減少", 50, "-", 45, 1},
		{"上限で止まる", 98, "+", 100, 1},
		{"上限では送らない", 100, "+", 100, 0},
		{"下限で止まる", 3, "-", 0, 1},
		{"下限では送らない", 0, "-", 0, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			before := actions.intensCall
			m.intensity = tc.start
			got := send(t, m, key(tc.key))
			if got.intensity != tc.want {
				t.Errorf("intensity = %d, want %d", got.intensity, tc.want)
			}
			if actions.intensCall-before != tc.calls {
				t.Errorf("送信回数 = %d, want %d", actions.intensCall-before, tc.calls)
			}
		})
	}
}

func TestCalibration_LatePollAfterToggleIgnored(t *testing.T) {
	actions := newFakeActions(t)
	m := newTestModel(t, actions)
	m = send(t, m, microscopes(m.seq.Next(), 1))
	m = m.calibrate("microscope_1")

	// 切り替え前に発行され、切り替え後に届いた一覧
	issued := m.seq.Next()
	m = send(t, m, key("l"))
	m = send(t, m, microscopes(issued, 1))

	if !m.ledOn {
		t.Fatal("切り替え前の一覧でLED状態が戻されました")
	}
	if v, _ := m.findMicroscope("microscope_1"); v.Config == nil || !v.Config.LedOn {
		t.Error("一覧の表示に切り替えが反映されていません")
	}

	m = send(t, m, key("l"))
	if actions.ledCalls != 2 || actions.led["microscope_1"] {
		t.Errorf("2回目の切り替えで消灯されていません: calls=%d led=%v", actions.ledCalls, actions.led["microscope_1"])
	}
	if m.ledOn {
		t.Error("LEDが消灯していません")
	}
}

func TestCalibration_PollDuringPendingAction(t *testing.T) {
	actions := newFakeActions(t)
	m := newTestModel(t, actions)
	m = send(t, m, microscopes(m.seq.Next(), 1))
	m = m.calibrate("microscope_1")

	next, cmd := m.Update(key("+"))
	m = next.(Model)
	if m.intensity != 55 || cmd == nil {
		t.Fatalf("intensity = %d", m.intensity)
	}

	// 応答待ちの間に届いた一覧は手元の値を上書きしない
	m = send(t, m, microscopes(m.seq.Next(), 1))
	if m.intensity != 55 {
		t.Errorf("応答待ちの間に強度が戻されました: %d", m.intensity)
	}

	next, _ = m.Update(cmd())
	m = next.(Model)
	if m.intensity != 55 || actions.intensity["microscope_1"] != 55 {
		t.Errorf("intensity = %d service = %d", m.intensity, actions.intensity["microscope_1"])
	}
}

func TestCalibration_IntensityFollowsPoll(t *testing.T) {
	actions := newFakeActions(t)
	m := newTestModel(t, actions)
	m = send(t, m, microscopes(m.seq.Next(), 1))
	m = m.calibrate("microscope_1")

	// 他のクライアントが強度を変更した
	changed := microscopes(m.seq.Next(), 1)
	changed.Value[0].Config.LedIntensity = 70
	changed.Value[0].Config.LedOn = true
	m = send(t, m, changed)

	if m.intensity != 70 || !m.ledOn {
		t.Fatalf("一覧の値に追従していません: intensity=%d led=%v", m.intensity, m.ledOn)
	}

	m = send(t, m, key("+"))
	if actions.intensity["microscope_1"] != 75 {
		t.Errorf("送信した強度 = %d, want 75", actions.intensity["microscope_1"])
	}
}

func TestCalibration_LEDFailureKeepsState(t *testing.T) {
	actions := newFakeActions(t)
	actions.err = &client.StatusError{StatusCode: 500, Code: "led_failure", Message: "LEDの制御に失敗しました"}

	m := newTestModel(t, actions)
	m = send(t, m, microscopes(1, 1))
	m = m.calibrate("microscope_1")

	m = send(t, m, key("l"))
	if m.ledOn {
		t.Error("失敗したのにLED状態が変わりました")
	}
	if !strings.Contains(m.lastErr, "led_failure") {
		t.Errorf("lastErr = %q", m.lastErr)
	}
}

func TestCalibration_CaptureShowsHistogram(t *testing.T) {
	actions := newFakeActions(t)
	m := newTestModel(t, actions)
	m = send(t, m, microscopes(1, 1))
	m = m.calibrate("microscope_1")

	next, cmd := m.Update(key("c"))
	m = next.(Model)
	if !m.capturing || cmd == nil {
		t.Fatal("キャプチャが開始されていません")
	}

	// 2重押しは無視する
	if _, again := m.Update(key("c")); again != nil {
		t.Error("キャプチャ中に再度キャプチャが開始されました")
	}

	result := m.captureCmd("microscope_1")()
	next, _ = m.Update(result)
	m = next.(Model)

	if m.capturing {
		t.Error("キャプチャ中のままです")
	}
	if len(m.histogram) != histogramBuckets {
		t.Fatalf("ヒストグラムの区間数 = %d", len(m.histogram))
	}
	if !strings.HasSuffix(m.lastCapture, "capture_microscope_1_20240501_120000.jpg") {
		t.Errorf("保存先 = %s", m.lastCapture)
	}
	if _, err := os.Stat(m.lastCapture); err != nil {
		t.Errorf("ファイルが保存されていません: %v", err)
	}
	if !strings.Contains(m.View(), "輝度ヒストグラム") {
		t.Error("ヒストグラムが表示されていません")
	}
}

func TestCalibration_CaptureFailure(t *testing.T) {
	actions := newFakeActions(t)
	actions.err = errors.New("capture_failed")
	m := newTestModel(t, actions)
	m = m.calibrate("microscope_1")

	m = send(t, m, key("c"))
	if m.capturing || m.histogram != nil {
		t.Error("失敗後の状態が不正です")
	}
	if m.lastErr == "" {
		t.Error("エラーが表示されていません")
	}
}

func TestRenderHistogram(t *testing.T) {
	testCases := []struct {
		name    string
		buckets []int
		height  int
		want    string
	}{
		{
			name:    "空",
			buckets: []int{0, 0, 0},
			height:  3,
			want:    "(データなし)",
		},
		{
			name:    "段階",
			buckets: []int{1, 2, 4, 0},
			height:  2,
			want:    "  █\n███\n0255",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := renderHistogram(tc.buckets, tc.height); got != tc.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tc.want)
			}
		})
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeFetcher) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeFetcher) SystemStatus(context.Context) (*generated.SystemConfigResponse, error) {
	f.count("status")
	return &generated.SystemConfigResponse{MicroscopeCount: 1}, nil
}

func (f *fakeFetcher) Microscopes(context.Context) ([]generated.MicroscopeInfo, error) {
	f.count("list")
	return []generated.MicroscopeInfo{{Id: "microscope_1"}, {Id: "microscope_2"}}, nil
}

func (f *fakeFetcher) MicroscopeConfig(_ context.Context, id string) (*generated.MicroscopeConfig, error) {
	f.count("config")
	if id == "microscope_2" {
		return nil, &client.StatusError{StatusCode: 404}
	}
	return &generated.MicroscopeConfig{LedIntensity: 30}, nil
}

func (f *fakeFetcher) SensorData(context.Context) (*generated.SensorDataResponse, error) {
	f.count("sensor")
	return nil, &client.StatusError{StatusCode: 503, Code: "sensor_unavailable"}
}

func TestFetchMicroscopes_PartialFailure(t *testing.T) {
	views, err := FetchMicroscopes(context.Background(), &fakeFetcher{calls: map[string]int{}})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || views[0].Config == nil || views[1].Config != nil {
		t.Errorf("views = %+v", views)
	}
}

func TestRunPollers(t *testing.T) {
	f := &fakeFetcher{calls: map[string]int{}}
	seq := client.NewSequencer()

	var mu sync.Mutex
	var msgs []tea.Msg

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunPollers(ctx, f, seq, func(msg tea.Msg) {
			mu.Lock()
			msgs = append(msgs, msg)
			mu.Unlock()
		})
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("キャンセル後にRunPollersが戻りません")
	}

	mu.Lock()
	defer mu.Unlock()

	var status, list, sensor int
	for _, msg := range msgs {
		switch r := msg.(type) {
		case StatusResult:
			status++
		case MicroscopesResult:
			list++
			if len(r.Value) != 2 {
				t.Errorf("一覧 = %+v", r.Value)
			}
		case SensorResult:
			sensor++
			if r.Err == nil {
				t.Error("センサーのエラーが伝わっていません")
			}
		}
	}
	if status != 1 || list != 1 || sensor != 1 {
		t.Errorf("初回ポーリング: status=%d list=%d sensor=%d", status, list, sensor)
	}
}
