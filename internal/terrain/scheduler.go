package terrain

import (
	"runtime"
	"sync"
)

// Scheduler is a work-stealing task pool. Each worker owns a private FIFO
// queue; producers push into a shared injector. A worker prefers its own
// queue, then grabs a batch from the injector, then steals one task from a
// peer; steal attempts that hit a busy peer are retried until every source
// reports empty without contention. Only then does the worker park on the
// pool's condition variable.
//
// The handler may return a continuation, which runs in-thread without a
// queue round-trip. This keeps a key's pipeline stages on one worker in the
// common case and bounds queue churn.
type Scheduler[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	injector []T
	workers  []*workerQueue[T]
	wg       sync.WaitGroup
	closed   bool
}

type workerQueue[T any] struct {
	mu    sync.Mutex
	tasks []T
}

// NewScheduler creates a pool with the given worker count. Start must be
// called before any pushed task runs.
func NewScheduler[T any](workers int) *Scheduler[T] {
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler[T]{
		workers: make([]*workerQueue[T], workers),
	}
	s.cond = sync.NewCond(&s.mu)
	for i := range s.workers {
		s.workers[i] = &workerQueue[T]{}
	}
	return s
}

// Start launches the workers. handler runs one task and may return an
// in-thread continuation; ok=false ends the chain.
func (s *Scheduler[T]) Start(handler func(T) (next T, ok bool)) {
	for i := range s.workers {
		s.wg.Add(1)
		go s.run(i, handler)
	}
}

// Push queues a task on the global injector and wakes one parked worker.
func (s *Scheduler[T]) Push(task T) {
	s.mu.Lock()
	s.injector = append(s.injector, task)
	s.mu.Unlock()
	s.cond.Signal()
}

// Close wakes every worker and waits for them to drain and exit. Tasks
// still queued when Close is called may or may not run.
func (s *Scheduler[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
	s.wg.Wait()
}

func (s *Scheduler[T]) run(id int, handler func(T) (T, bool)) {
	defer s.wg.Done()
	local := s.workers[id]
	for {
		for {
			task, ok := s.next(id, local)
			if !ok {
				break
			}
			for ok {
				task, ok = handler(task)
			}
		}
		s.mu.Lock()
		for !s.closed && len(s.injector) == 0 {
			s.cond.Wait()
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
	}
}

// next finds the worker's next task: local queue first, then the injector,
// then peers. A peer whose lock is busy counts as a steal conflict and the
// whole steal pass is retried; an empty pass with no conflict means there
// is genuinely nothing to do.
func (s *Scheduler[T]) next(id int, local *workerQueue[T]) (T, bool) {
	local.mu.Lock()
	if len(local.tasks) > 0 {
		task := local.tasks[0]
		local.tasks = local.tasks[1:]
		local.mu.Unlock()
		return task, true
	}
	local.mu.Unlock()

	for {
		if task, ok := s.stealBatch(local); ok {
			return task, true
		}
		conflict := false
		for j, peer := range s.workers {
			if j == id {
				continue
			}
			task, ok, busy := peer.trySteal()
			if ok {
				return task, true
			}
			if busy {
				conflict = true
			}
		}
		if !conflict {
			var zero T
			return zero, false
		}
		runtime.Gosched()
	}
}

// stealBatch moves up to half of the injector into the local queue and
// returns the first task.
func (s *Scheduler[T]) stealBatch(local *workerQueue[T]) (T, bool) {
	s.mu.Lock()
	n := len(s.injector)
	if n == 0 {
		s.mu.Unlock()
		var zero T
		return zero, false
	}
	take := (n + 1) / 2
	batch := make([]T, take)
	copy(batch, s.injector[:take])
	s.injector = s.injector[take:]
	s.mu.Unlock()

	task := batch[0]
	if len(batch) > 1 {
		local.mu.Lock()
		local.tasks = append(local.tasks, batch[1:]...)
		local.mu.Unlock()
	}
	return task, true
}

// trySteal takes one task from the front of the queue. busy reports that
// the queue's lock was contended and the caller should retry.
func (q *workerQueue[T]) trySteal() (task T, ok, busy bool) {
	if !q.mu.TryLock() {
		var zero T
		return zero, false, true
	}
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		var zero T
		return zero, false, false
	}
	task = q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, true, false
}
