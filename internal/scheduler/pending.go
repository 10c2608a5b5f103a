package scheduler

import "context"

// Pending is the shared handle to the eventual outcome of one task. Every
// caller that enqueues the same outstanding id receives the same Pending, so
// all of them observe the same settled result.
type Pending[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{
		done: make(chan struct{}),
	}
}

func settledPending[T any](value T, err error) *Pending[T] {
	pending := newPending[T]()
	pending.settle(value, err)
	return pending
}

func (p *Pending[T]) settle(value T, err error) {
	p.value = value
	p.err = err
	close(p.done)
}

// Done is closed once the task has settled, successfully or not.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Result blocks until the task settles and returns its outcome.
func (p *Pending[T]) Result() (T, error) {
	<-p.done
	return p.value, p.err
}

// Wait blocks until the task settles or ctx is done. An expired ctx only
// abandons this caller's wait; the task itself keeps running for the other
// waiters.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var empty T
		return empty, ctx.Err()
	case <-p.done:
		return p.value, p.err
	}
}
