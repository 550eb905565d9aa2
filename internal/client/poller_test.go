package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSequencer_Apply(t *testing.T) {
	seq := NewSequencer()

	first := seq.Next()
	second := seq.Next()
	if second <= first {
		t.Fatalf("番号が単調増加していません: %d, %d", first, second)
	}

	// 新しい結果が先に届いた場合、古い結果は捨てる
	if !seq.Apply("status", second) {
		t.Error("新しい結果が反映されませんでした")
	}
	if seq.Apply("status", first) {
		t.Error("古い結果が反映されました")
	}
	if seq.Apply("status", second) {
		t.Error("同じ番号が二重に反映されました")
	}

	// ストリームごとに独立
	if !seq.Apply("sensor", first) {
		t.Error("別ストリームの結果が反映されませんでした")
	}
}

func TestSequencer_Concurrent(t *testing.T) {
	seq := NewSequencer()

	var wg sync.WaitGroup
	seen := make(chan uint64, 1000)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				seen <- seq.Next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool)
	for n := range seen {
		if unique[n] {
			t.Fatalf("番号 %d が重複しました", n)
		}
		unique[n] = true
	}
}

func TestPoller_DeliversUntilCancelled(t *testing.T) {
	seq := NewSequencer()
	var calls atomic.Int32

	var mu sync.Mutex
	var results []Result[int]

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller("count", 10*time.Millisecond, seq,
		func(ctx context.Context) (int, error) {
			n := calls.Add(1)
			if n == 2 {
				return 0, errors.New("一時的な失敗")
			}
			return int(n), nil
		},
		func(r Result[int]) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		})

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("キャンセル後にRunが戻りません")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) < 2 {
		t.Fatalf("結果が少なすぎます: %d", len(results))
	}

	failed := 0
	for _, r := range results {
		if r.Stream != "count" || r.Seq == 0 {
			t.Errorf("結果が不正: %+v", r)
		}
		if r.Err != nil {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("失敗の件数 = %d", failed)
	}

	// Runが戻った後は何も届かない
	n := len(results)
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	if len(results) != n {
		t.Error("停止後に結果が届きました")
	}
}

// TestPoller_SlowResponseDiscarded は遅れて届いた古い応答が新しい値を上書きしないことを確認する
func TestPoller_SlowResponseDiscarded(t *testing.T) {
	seq := NewSequencer()
	var calls atomic.Int32
	release := make(chan struct{})

	var mu sync.Mutex
	applied := []int{}
	deliver := func(r Result[int]) {
		mu.Lock()
		defer mu.Unlock()
		if seq.Apply(r.Stream, r.Seq) {
			applied = append(applied, r.Value)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller("status", 20*time.Millisecond, seq,
		func(ctx context.Context) (int, error) {
			n := int(calls.Add(1))
			if n == 1 {
				// 1回目だけ遅い
				select {
				case <-release:
				case <-ctx.Done():
					return 0, ctx.Err()
				}
			}
			return n, nil
		}, deliver)

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// 2回目以降の応答が反映されるのを待ってから1回目を返す
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(applied)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(release)
	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(applied) == 0 {
		t.Fatal("何も反映されませんでした")
	}
	for i, v := range applied {
		if v == 1 {
			t.Errorf("遅れた1回目の応答が反映されました: %v", applied)
		}
		if i > 0 && v <= applied[i-1] {
			t.Errorf("反映順が逆転しました: %v", applied)
		}
	}
}
