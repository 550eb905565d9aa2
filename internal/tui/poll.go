package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"kenbikyo/internal/client"
	"kenbikyo/internal/generated"
)

// ポーリング間隔
const (
	StatusInterval      = 2 * time.Second
	MicroscopesInterval = 2 * time.Second
	SensorInterval      = 5 * time.Second
)

const (
	streamStatus      = "status"
	streamMicroscopes = "microscopes"
	streamSensor      = "sensor"
)

// Fetcher はポーリングで使う読み取りAPI
type Fetcher interface {
	SystemStatus(ctx context.Context) (*generated.SystemConfigResponse, error)
	Microscopes(ctx context.Context) ([]generated.MicroscopeInfo, error)
	MicroscopeConfig(ctx context.Context, id string) (*generated.MicroscopeConfig, error)
	SensorData(ctx context.Context) (*generated.SensorDataResponse, error)
}

// FetchMicroscopes は一覧と各顕微鏡の設定をまとめて取得する
// 個別の設定取得に失敗した顕微鏡はConfigがnilになる
func FetchMicroscopes(ctx context.Context, f Fetcher) ([]MicroscopeView, error) {
	list, err := f.Microscopes(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]MicroscopeView, 0, len(list))
	for _, info := range list {
		v := MicroscopeView{Info: info}
		if cfg, err := f.MicroscopeConfig(ctx, info.Id); err == nil {
			v.Config = cfg
		}
		views = append(views, v)
	}
	return views, nil
}

// RunPollers はctxがキャンセルされるまで各画面のポーリングを行い、結果をsendに渡す
func RunPollers(ctx context.Context, f Fetcher, seq *client.Sequencer, send func(tea.Msg)) {
	var wg sync.WaitGroup
	run := func(p interface{ Run(context.Context) }) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Run(ctx)
		}()
	}

	run(client.NewPoller(streamStatus, StatusInterval, seq, f.SystemStatus,
		func(r StatusResult) { send(r) }))
	run(client.NewPoller(streamMicroscopes, MicroscopesInterval, seq,
		func(ctx context.Context) ([]MicroscopeView, error) { return FetchMicroscopes(ctx, f) },
		func(r MicroscopesResult) { send(r) }))
	run(client.NewPoller(streamSensor, SensorInterval, seq, f.SensorData,
		func(r SensorResult) { send(r) }))

	wg.Wait()
}
