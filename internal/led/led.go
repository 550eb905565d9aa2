// Package led は顕微鏡ごとのLED照明の明るさ制御を提供する
//
// 明るさは0〜100のデューティ比で表し、チャンネル番号は顕微鏡の列挙順（0始まり）に対応する。
// 実際のハードウェア駆動はDriverの実装（GPIO PWM / シリアルブリッジ）に任せる。
package led

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrChannelClosed はClose済みのドライバーを操作した場合のエラー
	ErrChannelClosed = errors.New("LEDドライバーは既にクローズされています")

	// ErrNoChannel は存在しないチャンネルを指定した場合のエラー
	ErrNoChannel = errors.New("LEDチャンネルが存在しません")

	// ErrDutyRange はデューティ比が0〜100の範囲外の場合のエラー
	ErrDutyRange = errors.New("デューティ比は0〜100で指定してください")
)

// Driver はLEDのデューティ比を設定するハードウェアドライバー
type Driver interface {
	// Set は指定チャンネルのデューティ比(0〜100)を設定する。0は消灯
	Set(channel, duty int) error

	// Close は全チャンネルを消灯してリソースを解放する
	Close() error
}

// checkDuty はデューティ比の範囲を検証する
func checkDuty(duty int) error {
	if duty < 0 || duty > 100 {
		return fmt.Errorf("%d: %w", duty, ErrDutyRange)
	}
	return nil
}

// NoopDriver はLEDハードウェアが無い環境用のドライバー
type NoopDriver struct{}

// Set は何もしない
func (NoopDriver) Set(_, duty int) error { return checkDuty(duty) }

// Close は何もしない
func (NoopDriver) Close() error { return nil }

// MockDriver はテスト用のDriver実装
type MockDriver struct {
	mu     sync.Mutex
	duties map[int]int
	calls  int
	err    error
	closed bool
}

// NewMockDriver は新しいMockDriverを作成する
func NewMockDriver() *MockDriver {
	return &MockDriver{duties: make(map[int]int)}
}

// Set はデューティ比を記録する
func (m *MockDriver) Set(channel, duty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.closed {
		return ErrChannelClosed
	}
	if m.err != nil {
		return m.err
	}
	if err := checkDuty(duty); err != nil {
		return err
	}
	m.duties[channel] = duty
	return nil
}

// Close はドライバーをクローズ状態にする
func (m *MockDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ch := range m.duties {
		m.duties[ch] = 0
	}
	m.closed = true
	return nil
}

// Duty は最後に設定されたデューティ比を返す
func (m *MockDriver) Duty(channel int) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	duty, ok := m.duties[channel]
	return duty, ok
}

// Calls はSetの呼び出し回数を返す
func (m *MockDriver) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// SetError はテスト用に以降のSetを失敗させる
func (m *MockDriver) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
