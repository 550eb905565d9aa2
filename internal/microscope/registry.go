package microscope

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kenbikyo/internal/camera"
	"kenbikyo/internal/led"
	"kenbikyo/internal/state"
)

// entry はレジストリが所有する顕微鏡1台分の状態
type entry struct {
	id        string
	name      string
	device    string
	channel   int // LEDチャンネル（列挙順）
	connected bool
	config    Config

	capturer camera.Capturer
	// 同じデバイスへのキャプチャを直列化する
	captureMu sync.Mutex
}

func (e *entry) snapshot() Microscope {
	return Microscope{
		ID:        e.id,
		Name:      e.name,
		Device:    e.device,
		Connected: e.connected,
		Config:    e.config,
	}
}

// Registry は顕微鏡の一覧とその設定を所有する
//
// IDの存在確認は全ての操作で同じ方法で行い、未知のIDには ErrNotFound を返す。
type Registry struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*entry

	driver      led.Driver
	store       *state.Store // nilなら永続化しない
	imageFolder string
	logger      zerolog.Logger
	now         func() time.Time
}

// Options はRegistryの設定
type Options struct {
	Driver      led.Driver
	Store       *state.Store
	ImageFolder string
	Logger      zerolog.Logger
}

// NewRegistry は空のRegistryを作成する
func NewRegistry(opts Options) *Registry {
	driver := opts.Driver
	if driver == nil {
		driver = led.NoopDriver{}
	}
	return &Registry{
		entries:     make(map[string]*entry),
		driver:      driver,
		store:       opts.Store,
		imageFolder: opts.ImageFolder,
		logger:      opts.Logger.With().Str("component", "microscope").Logger(),
		now:         time.Now,
	}
}

// DeviceSpec は登録する顕微鏡の情報
type DeviceSpec struct {
	Device     string
	Name       string
	Resolution camera.Resolution
	Capturer   camera.Capturer
}

// Add は顕微鏡を登録し、割り当てたIDを返す
// IDは登録順に microscope_1, microscope_2, ... となる
func (r *Registry) Add(spec DeviceSpec) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := fmt.Sprintf("microscope_%d", len(r.order)+1)
	e := &entry{
		id:        id,
		name:      spec.Name,
		device:    spec.Device,
		channel:   len(r.order),
		connected: true,
		config: Config{
			LEDOn:        false,
			LEDIntensity: DefaultIntensity,
			Resolution:   spec.Resolution.String(),
		},
		capturer: spec.Capturer,
	}
	if e.name == "" {
		e.name = fmt.Sprintf("Microscope %d", len(r.order)+1)
	}

	// 保存済みのLED状態を復元
	if r.store != nil {
		if saved, ok := r.store.Get().Cameras[id]; ok && ValidateIntensity(saved.LEDIntensity) == nil {
			e.config.LEDOn = saved.LEDOn
			e.config.LEDIntensity = saved.LEDIntensity
		}
	}
	if err := r.driver.Set(e.channel, duty(e.config)); err != nil {
		r.logger.Warn().Err(err).Str("microscope_id", id).Msg("LED状態の復元に失敗しました")
		e.config.LEDOn = false
	}

	r.order = append(r.order, id)
	r.entries[id] = e

	r.logger.Info().
		Str("microscope_id", id).
		Str("device", spec.Device).
		Str("name", e.name).
		Msg("顕微鏡を登録しました")

	return id
}

// Discover はデバイスを列挙して登録する
// fixedが空でなければ自動検出せずにその一覧を使う。登録した台数を返す
func (r *Registry) Discover(ctx context.Context, d camera.Discovery, factory camera.CapturerFactory, fixed []DeviceSpec, def camera.Resolution) (int, error) {
	specs := fixed
	if len(specs) == 0 {
		devices, err := d.ScanDevices(ctx)
		if err != nil {
			return 0, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
		}
		for _, device := range devices {
			spec := DeviceSpec{Device: device}
			if info, err := d.GetDeviceInfo(ctx, device); err == nil {
				spec.Name = info.Name
			}
			specs = append(specs, spec)
		}
	}

	for _, spec := range specs {
		if spec.Resolution.Width == 0 || spec.Resolution.Height == 0 {
			spec.Resolution = def
		}
		if spec.Capturer == nil {
			spec.Capturer = factory(spec.Device, spec.Resolution)
		}
		r.Add(spec)
	}

	return len(specs), nil
}

// duty は設定から実際に出力するデューティ比を求める
func duty(c Config) int {
	if !c.LEDOn {
		return 0
	}
	return c.LEDIntensity
}

// lookup はIDの存在を確認する。呼び出し側でロックを取ること
func (r *Registry) lookup(id string) (*entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return e, nil
}

// List は登録順に全顕微鏡を返す
func (r *Registry) List() []Microscope {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Microscope, 0, len(r.order))
	for _, id := range r.order {
		list = append(list, r.entries[id].snapshot())
	}
	return list
}

// IDs は登録順のID一覧を返す
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Count は登録台数を返す
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Get は指定IDの顕微鏡を返す
func (r *Registry) Get(id string) (Microscope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, err := r.lookup(id)
	if err != nil {
		return Microscope{}, err
	}
	return e.snapshot(), nil
}

// Config は指定IDの設定を返す
func (r *Registry) Config(id string) (Config, error) {
	m, err := r.Get(id)
	if err != nil {
		return Config{}, err
	}
	return m.Config, nil
}

// SetLED はLEDの点灯状態を変更する
// ドライバーの操作に失敗した場合は設定を変更しない
func (r *Registry) SetLED(id string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	next := e.config
	next.LEDOn = on
	if err := r.driver.Set(e.channel, duty(next)); err != nil {
		return fmt.Errorf("%s: %w: %v", id, ErrLEDFailure, err)
	}
	e.config = next

	r.persist(e, func(f *state.File) { f.LEDState = on })
	r.logger.Info().Str("microscope_id", id).Bool("led_on", on).Msg("LEDを切り替えました")
	return nil
}

// SetIntensity はLED強度を変更する
// 範囲外の値は ErrInvalidIntensity で拒否し、ハードウェアには渡さない
func (r *Registry) SetIntensity(id string, intensity int) error {
	if err := ValidateIntensity(intensity); err != nil {
		return fmt.Errorf("%d: %w", intensity, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.lookup(id)
	if err != nil {
		return err
	}

	next := e.config
	next.LEDIntensity = intensity
	// 消灯中は値だけ保持し、次に点灯したときに反映する
	if next.LEDOn {
		if err := r.driver.Set(e.channel, duty(next)); err != nil {
			return fmt.Errorf("%s: %w: %v", id, ErrLEDFailure, err)
		}
	}
	e.config = next

	r.persist(e, func(f *state.File) { f.LEDIntensity = intensity })
	r.logger.Info().Str("microscope_id", id).Int("intensity", intensity).Msg("LED強度を変更しました")
	return nil
}

// persist は状態ファイルに書き出す。失敗してもハードウェアは既に変更済みなので警告に留める
func (r *Registry) persist(e *entry, global func(f *state.File)) {
	if r.store == nil {
		return
	}
	err := r.store.Update(func(f *state.File) {
		f.Cameras[e.id] = state.CameraState{LEDOn: e.config.LEDOn, LEDIntensity: e.config.LEDIntensity}
		global(f)
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("microscope_id", e.id).Msg("状態ファイルの保存に失敗しました")
	}
}

// ImageFolder は現在の画像保存先を返す
func (r *Registry) ImageFolder() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.imageFolder
}

// SetImageFolder は画像保存先を変更する。フォルダが無ければ作成する
func (r *Registry) SetImageFolder(folder string) error {
	if folder == "" {
		return errors.New("保存先フォルダが空です")
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("保存先フォルダの作成に失敗: %w", err)
	}

	r.mu.Lock()
	r.imageFolder = folder
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Update(func(f *state.File) { f.ImageFolder = folder }); err != nil {
			r.logger.Warn().Err(err).Msg("状態ファイルの保存に失敗しました")
		}
	}
	r.logger.Info().Str("folder", folder).Msg("画像保存先を変更しました")
	return nil
}

// Capture は1フレームを取得して画像保存先に書き出す
// 同じ顕微鏡へのキャプチャは直列化され、異なる顕微鏡は並行に実行できる
func (r *Registry) Capture(ctx context.Context, id string) (*Capture, []byte, error) {
	r.mu.RLock()
	e, err := r.lookup(id)
	r.mu.RUnlock()
	if err != nil {
		return nil, nil, err
	}

	e.captureMu.Lock()
	defer e.captureMu.Unlock()

	return r.captureLocked(ctx, e)
}

// AutoCapture は設定された強度でLEDを一時的に点灯し、hold待ってから撮影する
// 撮影後はLEDを現在の設定どおりに戻す
func (r *Registry) AutoCapture(ctx context.Context, id string, hold time.Duration) (*Capture, error) {
	r.mu.RLock()
	e, err := r.lookup(id)
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	e.captureMu.Lock()
	defer e.captureMu.Unlock()

	r.mu.Lock()
	intensity := e.config.LEDIntensity
	err = r.driver.Set(e.channel, intensity)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", id, ErrLEDFailure, err)
	}
	defer r.restoreLED(e)

	if hold > 0 {
		timer := time.NewTimer(hold)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	c, _, err := r.captureLocked(ctx, e)
	return c, err
}

func (r *Registry) restoreLED(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.driver.Set(e.channel, duty(e.config)); err != nil {
		r.logger.Warn().Err(err).Str("microscope_id", e.id).Msg("LED状態の復元に失敗しました")
	}
}

// captureLocked はキャプチャロックを保持した状態で呼ぶこと
func (r *Registry) captureLocked(ctx context.Context, e *entry) (*Capture, []byte, error) {
	frame, err := e.capturer.CaptureJPEG(ctx)
	r.setConnected(e, err == nil)
	if err != nil {
		r.logger.Error().Err(err).Str("microscope_id", e.id).Msg("フレームの取得に失敗しました")
		return nil, nil, fmt.Errorf("%s: %w: %v", e.id, ErrCaptureFailed, err)
	}

	takenAt := r.now()
	path, err := r.writeImage(e.id, takenAt, frame)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w: %v", e.id, ErrCaptureFailed, err)
	}

	c := &Capture{
		ID:           uuid.New().String(),
		MicroscopeID: e.id,
		Path:         path,
		Size:         len(frame),
		TakenAt:      takenAt,
	}
	r.logger.Info().
		Str("microscope_id", e.id).
		Str("capture_id", c.ID).
		Str("path", path).
		Int("size", c.Size).
		Msg("画像を保存しました")

	return c, frame, nil
}

func (r *Registry) setConnected(e *entry, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.connected = connected
}

// writeImage は <id>_<YYYYmmdd_HHMMSS>.jpg として保存する。同名があれば連番を付ける
func (r *Registry) writeImage(id string, takenAt time.Time, frame []byte) (string, error) {
	folder := r.ImageFolder()
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("保存先フォルダの作成に失敗: %w", err)
	}

	base := fmt.Sprintf("%s_%s", id, takenAt.Format("20060102_150405"))
	for i := 0; i < 1000; i++ {
		name := base + ".jpg"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.jpg", base, i)
		}
		path := filepath.Join(folder, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("画像ファイルの作成に失敗: %w", err)
		}

		if _, err := f.Write(frame); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return "", fmt.Errorf("画像ファイルの書き込みに失敗: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("画像ファイルの書き込みに失敗: %w", err)
		}
		return path, nil
	}

	return "", fmt.Errorf("画像ファイル名を決められません: %s", base)
}

// Close は全LEDを消灯してドライバーを解放する
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.driver.Close(); err != nil {
		return fmt.Errorf("LEDドライバーの終了に失敗: %w", err)
	}
	return nil
}
