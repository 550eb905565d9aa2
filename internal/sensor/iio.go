package sensor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// IIOSensor はカーネルのdht11ドライバー（Industrial I/O）経由でDHT11を読む
//
// /boot/config.txt に dtoverlay=dht11,gpiopin=4 を設定すると
// /sys/bus/iio/devices/iio:deviceN 以下に値が公開される。
type IIOSensor struct {
	dir string
	now func() time.Time
}

// NewIIOSensor はIIOデバイスディレクトリを指定してIIOSensorを作成する
func NewIIOSensor(dir string) *IIOSensor {
	return &IIOSensor{dir: dir, now: time.Now}
}

// Read は温度と湿度を読み取る
func (s *IIOSensor) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	// 値はミリ単位 (m°C, m%RH)
	temp, err := readMilli(filepath.Join(s.dir, "in_temp_input"))
	if err != nil {
		return Reading{}, fmt.Errorf("温度の読み取りに失敗 (%v): %w", err, ErrNoReading)
	}
	hum, err := readMilli(filepath.Join(s.dir, "in_humidityrelative_input"))
	if err != nil {
		return Reading{}, fmt.Errorf("湿度の読み取りに失敗 (%v): %w", err, ErrNoReading)
	}

	return Reading{
		Temperature: temp,
		Humidity:    hum,
		Timestamp:   s.now(),
	}, nil
}

// readMilli はsysfsファイルからミリ単位の整数を読み、単位に換算する
func readMilli(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("値の解析に失敗: %w", err)
	}
	return float64(v) / 1000, nil
}
