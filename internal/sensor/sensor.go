// Package sensor は温湿度センサーの読み取りと履歴保存を提供する
package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// TimestampLayout は読み取り時刻の表示形式
const TimestampLayout = "2006-01-02 15:04:05"

// ErrNoReading はセンサーから値が得られなかった場合のエラー
// DHT11は読み取りに失敗することが多いため、呼び出し側はリトライせず次の周期を待つ
var ErrNoReading = errors.New("センサーの値を取得できませんでした")

// Reading は1回分の温湿度の読み取り結果
type Reading struct {
	Temperature float64   // 摂氏
	Humidity    float64   // 相対湿度 %
	Timestamp   time.Time // 読み取り時刻
}

// MarshalJSON はタイムスタンプを TimestampLayout で出力する
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Temperature float64 `json:"temperature"`
		Humidity    float64 `json:"humidity"`
		Timestamp   string  `json:"timestamp"`
	}{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Timestamp:   r.Timestamp.Format(TimestampLayout),
	})
}

// Sensor は温湿度センサー
type Sensor interface {
	// Read はセンサーから同期的に値を読み取る。キャッシュはしない
	Read(ctx context.Context) (Reading, error)
}

// NoneSensor はセンサーが接続されていない場合の実装
type NoneSensor struct{}

// Read は常に ErrNoReading を返す
func (NoneSensor) Read(context.Context) (Reading, error) {
	return Reading{}, ErrNoReading
}

// MockSensor はテスト用のSensor実装
type MockSensor struct {
	mu      sync.Mutex
	reading Reading
	err     error
	reads   int
}

// NewMockSensor は固定値を返すMockSensorを作成する
func NewMockSensor(temperature, humidity float64) *MockSensor {
	return &MockSensor{reading: Reading{Temperature: temperature, Humidity: humidity}}
}

// Read は設定された値を現在時刻付きで返す
func (m *MockSensor) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads++
	if m.err != nil {
		return Reading{}, m.err
	}
	r := m.reading
	r.Timestamp = time.Now()
	return r, nil
}

// Set は以降に返す値を変更する
func (m *MockSensor) Set(temperature, humidity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reading.Temperature = temperature
	m.reading.Humidity = humidity
}

// SetError は以降の読み取りを失敗させる。nilで解除
func (m *MockSensor) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Reads はReadの呼び出し回数を返す
func (m *MockSensor) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}
