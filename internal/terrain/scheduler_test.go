package terrain

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSchedulerRunsEveryTask(t *testing.T) {
	s := NewScheduler[int](4)
	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	var sum int64
	s.Start(func(v int) (int, bool) {
		atomic.AddInt64(&sum, int64(v))
		wg.Done()
		return 0, false
	})
	want := int64(0)
	for i := 1; i <= n; i++ {
		want += int64(i)
		s.Push(i)
	}
	wg.Wait()
	s.Close()
	if got := atomic.LoadInt64(&sum); got != want {
		t.Errorf("sum = %d, want %d", got, want)
	}
}

func TestSchedulerContinuationsRunInThread(t *testing.T) {
	s := NewScheduler[int](2)
	var executions int64
	var wg sync.WaitGroup
	wg.Add(1)
	// A chain of length 5: one pushed task, four continuations.
	s.Start(func(v int) (int, bool) {
		atomic.AddInt64(&executions, 1)
		if v > 0 {
			return v - 1, true
		}
		wg.Done()
		return 0, false
	})
	s.Push(4)
	wg.Wait()
	s.Close()
	if got := atomic.LoadInt64(&executions); got != 5 {
		t.Errorf("executions = %d, want 5", got)
	}
}

func TestSchedulerConcurrentPushers(t *testing.T) {
	s := NewScheduler[int](4)
	const pushers, each = 8, 50
	var wg sync.WaitGroup
	wg.Add(pushers * each)
	var count int64
	s.Start(func(int) (int, bool) {
		atomic.AddInt64(&count, 1)
		wg.Done()
		return 0, false
	})
	for p := 0; p < pushers; p++ {
		go func() {
			for i := 0; i < each; i++ {
				s.Push(i)
			}
		}()
	}
	wg.Wait()
	s.Close()
	if got := atomic.LoadInt64(&count); got != pushers*each {
		t.Errorf("count = %d, want %d", got, pushers*each)
	}
}

func TestSchedulerCloseUnblocksIdleWorkers(t *testing.T) {
	s := NewScheduler[int](4)
	s.Start(func(int) (int, bool) { return 0, false })
	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	<-done
}

func TestSchedulerMinimumOneWorker(t *testing.T) {
	s := NewScheduler[int](0)
	var wg sync.WaitGroup
	wg.Add(1)
	s.Start(func(int) (int, bool) {
		wg.Done()
		return 0, false
	})
	s.Push(1)
	wg.Wait()
	s.Close()
}

func BenchmarkSchedulerThroughput(b *testing.B) {
	s := NewScheduler[int](4)
	var wg sync.WaitGroup
	s.Start(func(int) (int, bool) {
		wg.Done()
		return 0, false
	})
	b.ResetTimer()
	wg.Add(b.N)
	for i := 0; i < b.N; i++ {
		s.Push(i)
	}
	wg.Wait()
	b.StopTimer()
	s.Close()
}
