package progress_test

import (
	"sync"
	"testing"

	"github.com/Amund211/tilelight/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterIdle(t *testing.T) {
	t.Parallel()

	counter := progress.NewCounter()

	assert.False(t, counter.Loading())
	assert.Equal(t, 1.0, counter.Progress())
}

func TestCounterSingleOperation(t *testing.T) {
	t.Parallel()

	counter := progress.NewCounter()

	counter.Increment()
	assert.True(t, counter.Loading())
	assert.Equal(t, 0.0, counter.Progress())

	counter.Decrement()
	assert.False(t, counter.Loading())
	assert.Equal(t, 1.0, counter.Progress())
}

func TestCounterProgressRatio(t *testing.T) {
	t.Parallel()

	counter := progress.NewCounter()

	for i := 0; i < 4; i++ {
		counter.Increment()
	}

	assert.Equal(t, 0.0, counter.Progress())

	counter.Decrement()
	assert.Equal(t, 0.25, counter.Progress())

	counter.Decrement()
	assert.Equal(t, 0.5, counter.Progress())

	counter.Decrement()
	assert.Equal(t, 0.75, counter.Progress())

	counter.Decrement()
	assert.Equal(t, 1.0, counter.Progress())
	assert.False(t, counter.Loading())
}

func TestCounterProgressMonotonicWithinBurst(t *testing.T) {
	t.Parallel()

	counter := progress.NewCounter()

	const totalOperations = 30
	for i := 0; i < totalOperations; i++ {
		counter.Increment()
	}

	lastProgress := counter.Progress()
	for i := 0; i < totalOperations; i++ {
		counter.Decrement()
		currentProgress := counter.Progress()
		require.GreaterOrEqual(t, currentProgress, lastProgress)
		lastProgress = currentProgress
	}

	assert.Equal(t, 1.0, lastProgress)
}

func TestCounterCompletionFiresOncePerTransition(t *testing.T) {
	t.Parallel()

	counter := progress.NewCounter()

	completions := 0
	counter.OnComplete(func() {
		completions++
	})

	counter.Increment()
	counter.Increment()
	counter.Decrement()
	assert.Equal(t, 0, completions)

	counter.Decrement()
	assert.Equal(t, 1, completions)

	// A new burst fires completion again
	counter.Increment()
	counter.Decrement()
	assert.Equal(t, 2, completions)
}

func TestCounterResetsCompletedBetweenBursts(t *testing.T) {
	t.Parallel()

	counter := progress.NewCounter()

	counter.Increment()
	counter.Increment()
	counter.Decrement()
	counter.Decrement()

	// The second burst should not be skewed by the two completions above
	counter.Increment()
	counter.Decrement()
	counter.Increment()
	assert.Equal(t, 0.5, counter.Progress())
}

func TestCounterDecrementAtZeroIsNoop(t *testing.T) {
	t.Parallel()

	counter := progress.NewCounter()

	completions := 0
	counter.OnComplete(func() {
		completions++
	})

	counter.Decrement()

	assert.False(t, counter.Loading())
	assert.Equal(t, 1.0, counter.Progress())
	assert.Equal(t, 0, completions)

	// The clamped decrement must not offset a real increment
	counter.Increment()
	assert.True(t, counter.Loading())
	counter.Decrement()
	assert.False(t, counter.Loading())
	assert.Equal(t, 1, completions)
}

func TestCounterConcurrentUse(t *testing.T) {
	t.Parallel()

	counter := progress.NewCounter()

	completed := make(chan struct{}, 100)
	counter.OnComplete(func() {
		completed <- struct{}{}
	})

	const goroutines = 50
	wg := sync.WaitGroup{}
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		counter.Increment()
		go func() {
			defer wg.Done()
			counter.Decrement()
		}()
	}
	wg.Wait()

	assert.False(t, counter.Loading())
	assert.Equal(t, 1.0, counter.Progress())
	assert.NotEmpty(t, completed)
}
