package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsTasks(t *testing.T) {
	p := New("test", 3)
	p.Start()
	defer p.Stop()

	var done sync.WaitGroup
	var count atomic.Int32
	for i := 0; i < 20; i++ {
		done.Add(1)
		p.Submit(Task{Run: func(context.Context) {
			count.Add(1)
			done.Done()
		}})
	}

	waitOrFail(t, &done, time.Second)
	if got := count.Load(); got != 20 {
		t.Errorf("ran %d tasks, want 20", got)
	}
}

func TestPoolSerializesSameKey(t *testing.T) {
	p := New("test", 4)
	p.Start()
	defer p.Stop()

	var mu sync.Mutex
	var order []int
	var inFlight, maxInFlight int32
	var done sync.WaitGroup

	for i := 0; i < 10; i++ {
		i := i
		done.Add(1)
		p.Submit(Task{Key: "same", Run: func(context.Context) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				cur := atomic.LoadInt32(&maxInFlight)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			atomic.AddInt32(&inFlight, -1)
			done.Done()
		}})
	}

	waitOrFail(t, &done, 2*time.Second)

	if atomic.LoadInt32(&maxInFlight) != 1 {
		t.Errorf("tasks with the same key overlapped, max in flight = %d", maxInFlight)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("same-key tasks ran out of order: %v", order)
		}
	}
}

func TestPoolDifferentKeysRunConcurrently(t *testing.T) {
	p := New("test", 2)
	p.Start()
	defer p.Stop()

	var done sync.WaitGroup
	block := make(chan struct{})

	done.Add(2)
	p.Submit(Task{Key: "a", Run: func(context.Context) {
		<-block
		done.Done()
	}})
	p.Submit(Task{Key: "b", Run: func(context.Context) {
		// Proves "b" is not stuck behind "a".
		close(block)
		done.Done()
	}})

	waitOrFail(t, &done, time.Second)
}

func TestSubmitAfterDelays(t *testing.T) {
	p := New("test", 1)
	p.Start()
	defer p.Stop()

	var done sync.WaitGroup
	done.Add(1)
	start := time.Now()
	var elapsed time.Duration
	p.SubmitAfter(Task{Run: func(context.Context) {
		elapsed = time.Since(start)
		done.Done()
	}}, 50*time.Millisecond)

	waitOrFail(t, &done, time.Second)
	if elapsed < 50*time.Millisecond {
		t.Errorf("task ran after %v, want at least 50ms", elapsed)
	}
}

func TestStopIsIdempotentAndRejectsSubmits(t *testing.T) {
	p := New("test", 1)
	p.Start()
	p.Stop()
	p.Stop()

	// Submits after Stop are dropped, not panicking.
	p.Submit(Task{Run: func(context.Context) { t.Error("task ran after Stop") }})
	p.SubmitAfter(Task{Run: func(context.Context) { t.Error("delayed task ran after Stop") }}, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for tasks")
	}
}
