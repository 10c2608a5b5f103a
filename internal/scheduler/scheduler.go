package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	e "github.com/Amund211/tilelight/internal/errors"
	"github.com/Amund211/tilelight/internal/logging"
	"github.com/Amund211/tilelight/internal/progress"
	"go.opentelemetry.io/otel"
)

// Task describes one unit of asynchronous work, typically a network fetch
// plus decode for a single tile.
type Task[T any] struct {
	// ID is the identity used for deduplication. Required.
	ID string
	// Run performs the work. The scheduler never preempts a running task;
	// long-running work must poll ctx itself.
	Run func(ctx context.Context) (T, error)
	// ShouldExecute, if set, is re-checked immediately before execution.
	// Returning false abandons the task without running it.
	ShouldExecute func() bool
	// Cancel, if set, abandons the task when closed before execution starts.
	Cancel <-chan struct{}
}

type inFlightTask[T any] struct {
	ctx     context.Context
	task    Task[T]
	pending *Pending[T]
}

// Scheduler executes tasks with at most maxConcurrentRequests running at
// once, admitting queued tasks in FIFO order. Concurrent enqueues sharing an
// id collapse into a single execution. Completion order is not guaranteed.
type Scheduler[T any] struct {
	maxConcurrentRequests int

	mutex    sync.Mutex
	inFlight map[string]*inFlightTask[T]
	queue    []*inFlightTask[T]
	running  int

	executedListeners []func()

	counter *progress.Counter
	metrics schedulerMetricsCollection
}

func New[T any](maxConcurrentRequests int) (*Scheduler[T], error) {
	if maxConcurrentRequests < 1 {
		maxConcurrentRequests = 1
	}

	meter := otel.Meter("scheduler")
	metrics, err := setupSchedulerMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &Scheduler[T]{
		maxConcurrentRequests: maxConcurrentRequests,
		inFlight:              make(map[string]*inFlightTask[T]),
		counter:               progress.NewCounter(),
		metrics:               metrics,
	}, nil
}

// Enqueue submits a task and returns the shared pending result for its id.
// If a task with the same id is already outstanding, its pending result is
// returned and no new execution is started. A task whose Cancel channel is
// already closed settles immediately with ErrTaskAborted without running.
func (s *Scheduler[T]) Enqueue(ctx context.Context, task Task[T]) *Pending[T] {
	var empty T

	if task.ID == "" {
		logging.FromContext(ctx).Error("Enqueued task with empty id")
		return settledPending(empty, fmt.Errorf("%w: id must be non-empty", e.ErrInvalidTaskID))
	}

	s.mutex.Lock()
	if outstanding, ok := s.inFlight[task.ID]; ok {
		s.mutex.Unlock()
		s.metrics.dedupedCount.Add(ctx, 1)
		return outstanding.pending
	}

	inFlight := &inFlightTask[T]{
		ctx:     ctx,
		task:    task,
		pending: newPending[T](),
	}
	s.inFlight[task.ID] = inFlight
	s.counter.Increment()

	if cancelled(task.Cancel) {
		s.mutex.Unlock()
		s.metrics.enqueuedCount.Add(ctx, 1)
		s.settleAborted(inFlight)
		return inFlight.pending
	}

	s.queue = append(s.queue, inFlight)
	s.mutex.Unlock()

	s.metrics.enqueuedCount.Add(ctx, 1)
	s.dispatch()

	return inFlight.pending
}

// Loading reports whether any task is outstanding.
func (s *Scheduler[T]) Loading() bool {
	return s.counter.Loading()
}

// Progress reports settled tasks over total tasks in the current burst, and
// 1 once the queue has fully drained.
func (s *Scheduler[T]) Progress() float64 {
	return s.counter.Progress()
}

// OnTaskExecuted registers a listener fired once per task settlement,
// successful or not.
func (s *Scheduler[T]) OnTaskExecuted(listener func()) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.executedListeners = append(s.executedListeners, listener)
}

// OnComplete registers a listener fired each time the last outstanding task
// settles.
func (s *Scheduler[T]) OnComplete(listener func()) {
	s.counter.OnComplete(listener)
}

// dispatch admits queued tasks while slots are free. Admission is FIFO;
// the pre-run cancellation and ShouldExecute checks happen here, immediately
// before the task starts.
func (s *Scheduler[T]) dispatch() {
	for {
		s.mutex.Lock()
		if s.running >= s.maxConcurrentRequests || len(s.queue) == 0 {
			s.mutex.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		// Reserve the slot before releasing the lock so concurrent
		// dispatchers cannot admit past the bound
		s.running++
		s.mutex.Unlock()

		if cancelled(next.task.Cancel) || (next.task.ShouldExecute != nil && !next.task.ShouldExecute()) {
			s.mutex.Lock()
			s.running--
			s.mutex.Unlock()

			s.settleAborted(next)
			continue
		}

		go s.run(next)
	}
}

func (s *Scheduler[T]) run(inFlight *inFlightTask[T]) {
	start := time.Now()
	value, err := inFlight.task.Run(inFlight.ctx)
	s.metrics.runDuration.Record(inFlight.ctx, time.Since(start).Seconds())

	s.mutex.Lock()
	s.running--
	delete(s.inFlight, inFlight.task.ID)
	s.mutex.Unlock()

	// Settle the progress accounting before waking any waiter so Loading
	// and Progress are consistent with the observed settlement
	s.counter.Decrement()

	// Failures are propagated verbatim to every waiter, never retried here
	inFlight.pending.settle(value, err)

	s.metrics.executedCount.Add(inFlight.ctx, 1)
	s.notifyExecuted()

	s.dispatch()
}

func (s *Scheduler[T]) settleAborted(inFlight *inFlightTask[T]) {
	s.mutex.Lock()
	delete(s.inFlight, inFlight.task.ID)
	s.mutex.Unlock()

	s.counter.Decrement()

	var empty T
	inFlight.pending.settle(empty, fmt.Errorf("%w: %q", e.ErrTaskAborted, inFlight.task.ID))

	s.metrics.abortedCount.Add(inFlight.ctx, 1)
	s.notifyExecuted()
}

func (s *Scheduler[T]) notifyExecuted() {
	s.mutex.Lock()
	listeners := make([]func(), len(s.executedListeners))
	copy(listeners, s.executedListeners)
	s.mutex.Unlock()

	for _, listener := range listeners {
		listener()
	}
}

func cancelled(cancel <-chan struct{}) bool {
	if cancel == nil {
		return false
	}
	select {
	case <-cancel:
		return true
	default:
		return false
	}
}
