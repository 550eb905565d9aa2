package client

import (
	"context"
	"sync"
	"time"
)

// Sequencer はポーリングごとに単調増加する番号を振り、
// ストリームごとに最後に反映した番号より新しい結果だけを通す
type Sequencer struct {
	mu      sync.Mutex
	last    uint64
	applied map[string]uint64
}

// NewSequencer は新しいSequencerを作成する
func NewSequencer() *Sequencer {
	return &Sequencer{applied: make(map[string]uint64)}
}

// Next は次の番号を返す
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Apply はseqがstreamで反映済みの番号より新しければ記録してtrueを返す
func (s *Sequencer) Apply(stream string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied[stream] {
		return false
	}
	s.applied[stream] = seq
	return true
}

// Result は1回分のポーリング結果
type Result[T any] struct {
	Stream string
	Seq    uint64
	Value  T
	Err    error
}

// Poller は一定間隔でfetchを呼び、結果をdeliverに渡す
//
// 前回の取得の完了は待たない。遅れて届いた古い結果はSequencerで捨てる。
type Poller[T any] struct {
	stream   string
	interval time.Duration
	seq      *Sequencer
	fetch    func(ctx context.Context) (T, error)
	deliver  func(Result[T])
}

// NewPoller は新しいPollerを作成する
func NewPoller[T any](stream string, interval time.Duration, seq *Sequencer, fetch func(ctx context.Context) (T, error), deliver func(Result[T])) *Poller[T] {
	return &Poller[T]{
		stream:   stream,
		interval: interval,
		seq:      seq,
		fetch:    fetch,
		deliver:  deliver,
	}
}

// Run はctxがキャンセルされるまでポーリングする。戻る前に実行中の取得を待つ
func (p *Poller[T]) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		seq := p.seq.Next()
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := p.fetch(ctx)
			if ctx.Err() != nil {
				return
			}
			p.deliver(Result[T]{Stream: p.stream, Seq: seq, Value: v, Err: err})
		}()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
