package progress

import (
	"log/slog"
	"sync"
)

// Counter aggregates an "is work outstanding" signal across independently
// triggered asynchronous operations. Many concurrent tile refinements can
// share one counter to drive a single loading indicator.
type Counter struct {
	mutex     sync.Mutex
	pending   int
	completed int
	listeners []func()

	logger *slog.Logger
}

type Option func(*Counter)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Counter) {
		c.logger = logger
	}
}

func NewCounter(options ...Option) *Counter {
	counter := &Counter{logger: slog.Default()}
	for _, option := range options {
		option(counter)
	}
	return counter
}

// OnComplete registers a listener fired exactly once each time the pending
// count returns to zero.
func (c *Counter) OnComplete(listener func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.listeners = append(c.listeners, listener)
}

func (c *Counter) Increment() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.pending++
}

// Decrement records the settlement of one operation. Decrementing at zero is
// a programming error: it is clamped and logged rather than allowed to
// corrupt the pending count.
func (c *Counter) Decrement() {
	c.mutex.Lock()

	if c.pending == 0 {
		if c.logger != nil {
			c.logger.Error("Decremented operation counter below zero")
		}
		c.mutex.Unlock()
		return
	}

	c.pending--
	c.completed++

	if c.pending > 0 {
		c.mutex.Unlock()
		return
	}

	// Last outstanding operation settled: reset the completed count so the
	// next burst reports fresh progress, then notify outside the lock.
	c.completed = 0
	listeners := make([]func(), len(c.listeners))
	copy(listeners, c.listeners)
	c.mutex.Unlock()

	for _, listener := range listeners {
		listener()
	}
}

func (c *Counter) Loading() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.pending > 0
}

// Progress returns completed / (completed + pending), and 1 when idle.
func (c *Counter) Progress() float64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.pending == 0 {
		return 1
	}

	return float64(c.completed) / float64(c.completed+c.pending)
}
