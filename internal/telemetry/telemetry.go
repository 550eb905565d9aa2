// Package telemetry はホスト（シングルボードコンピューター）の負荷情報を取得する
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// ErrTemperatureNotFound はCPU温度を読み取れなかった場合のエラー
var ErrTemperatureNotFound = errors.New("CPU温度を取得できません")

// Snapshot はリクエストごとに計算されるシステム情報。保存はしない
type Snapshot struct {
	CPUUsage     float64   // CPU使用率 %
	MemoryUsage  float64   // メモリ使用率 %
	StorageUsage float64   // ディスク使用率 %
	CPUTemp      *float64  // CPU温度 ℃（取得できない環境ではnil）
	SampledAt    time.Time // 取得時刻
}

// Source はSnapshotを提供する
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Collector はgopsutilとsysfsからSnapshotを組み立てる
type Collector struct {
	diskPath    string
	thermalPath string
	cpuSample   time.Duration
}

// NewCollector は新しいCollectorを作成する
func NewCollector(diskPath, thermalPath string) *Collector {
	return &Collector{
		diskPath:    diskPath,
		thermalPath: thermalPath,
		cpuSample:   200 * time.Millisecond,
	}
}

// Snapshot は現在のシステム情報を取得する
func (c *Collector) Snapshot(ctx context.Context) (Snapshot, error) {
	percents, err := cpu.PercentWithContext(ctx, c.cpuSample, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("CPU使用率の取得に失敗: %w", err)
	}
	if len(percents) == 0 {
		return Snapshot{}, errors.New("CPU使用率の取得に失敗: 結果が空です")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("メモリ使用率の取得に失敗: %w", err)
	}

	usage, err := disk.UsageWithContext(ctx, c.diskPath)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ディスク使用率の取得に失敗 (%s): %w", c.diskPath, err)
	}

	snap := Snapshot{
		CPUUsage:     round1(percents[0]),
		MemoryUsage:  round1(vm.UsedPercent),
		StorageUsage: round1(usage.UsedPercent),
		SampledAt:    time.Now(),
	}

	// 温度は取得できなくても他の値は返す
	if temp, err := ReadThermal(c.thermalPath); err == nil {
		snap.CPUTemp = &temp
	}

	return snap, nil
}

// ReadThermal はsysfsのthermal_zoneからCPU温度（℃）を読み取る
func ReadThermal(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTemperatureNotFound, err)
	}

	tempStr := strings.TrimSpace(string(data))
	milli, err := strconv.ParseFloat(tempStr, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrTemperatureNotFound, tempStr)
	}

	// ミリ℃単位
	return round1(milli / 1000.0), nil
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

// MockSource はテスト用のSource実装
type MockSource struct {
	mu   sync.Mutex
	snap Snapshot
	err  error
}

// NewMockSource は固定値を返すMockSourceを作成する
func NewMockSource(snap Snapshot) *MockSource {
	return &MockSource{snap: snap}
}

// Snapshot は設定された値を返す
func (m *MockSource) Snapshot(context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return Snapshot{}, m.err
	}
	s := m.snap
	s.SampledAt = time.Now()
	return s, nil
}

// SetError は以降の取得を失敗させる
func (m *MockSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
