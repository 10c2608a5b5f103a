package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/Amund211/tilelight/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetMissingKey(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(10)

	value, ok := contentCache.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestCacheSetAndGet(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(10)

	contentCache.Set("buffer:osm/1/0/0", []byte("imagery"), cache.SetOptions{})

	value, ok := contentCache.Get("buffer:osm/1/0/0")
	require.True(t, ok)
	assert.Equal(t, []byte("imagery"), value)
}

func TestCacheReplaceInvokesOldOnDelete(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(10)

	deletedValues := []any{}
	contentCache.Set("key", "v1", cache.SetOptions{
		OnDelete: func(value any) {
			deletedValues = append(deletedValues, value)
		},
	})

	contentCache.Set("key", "v2", cache.SetOptions{})

	// The old entry's hook fired exactly once, synchronously, with the old value
	require.Equal(t, []any{"v1"}, deletedValues)

	value, ok := contentCache.Get("key")
	require.True(t, ok)
	assert.Equal(t, "v2", value)

	contentCache.Delete("key")
	assert.Equal(t, []any{"v1"}, deletedValues)
}

func TestCacheDelete(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(10)

	deletions := 0
	contentCache.Set("key", 1, cache.SetOptions{
		OnDelete: func(value any) {
			deletions++
		},
	})

	assert.True(t, contentCache.Delete("key"))
	assert.Equal(t, 1, deletions)

	_, ok := contentCache.Get("key")
	assert.False(t, ok)

	assert.False(t, contentCache.Delete("key"))
	assert.Equal(t, 1, deletions)
}

func TestCacheLazyTTLExpiry(t *testing.T) {
	t.Parallel()

	currentTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	contentCache := cache.New(10, cache.WithNowFunc(func() time.Time {
		return currentTime
	}))

	deletions := 0
	contentCache.Set("key", "value", cache.SetOptions{
		TTL: 1 * time.Minute,
		OnDelete: func(value any) {
			deletions++
		},
	})

	_, ok := contentCache.Get("key")
	assert.True(t, ok)

	currentTime = currentTime.Add(59 * time.Second)
	_, ok = contentCache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, 0, deletions)

	currentTime = currentTime.Add(1 * time.Second)
	_, ok = contentCache.Get("key")
	assert.False(t, ok)
	// The call that discovers the expiry runs the disposal hook
	assert.Equal(t, 1, deletions)
	assert.Equal(t, 0, contentCache.Len())

	// Entry is gone for good
	_, ok = contentCache.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 1, deletions)
}

func TestCacheNoTTLNeverExpires(t *testing.T) {
	t.Parallel()

	currentTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	contentCache := cache.New(10, cache.WithNowFunc(func() time.Time {
		return currentTime
	}))

	contentCache.Set("key", "value", cache.SetOptions{})

	currentTime = currentTime.Add(1000 * time.Hour)
	_, ok := contentCache.Get("key")
	assert.True(t, ok)
}

func TestCacheEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(2)

	contentCache.Set("a", 1, cache.SetOptions{Size: 1})
	contentCache.Set("b", 1, cache.SetOptions{Size: 1})
	contentCache.Set("c", 1, cache.SetOptions{Size: 1})

	_, ok := contentCache.Get("a")
	assert.False(t, ok)

	_, ok = contentCache.Get("b")
	assert.True(t, ok)

	_, ok = contentCache.Get("c")
	assert.True(t, ok)
}

func TestCacheEvictionInvokesOnDeleteExactlyOnce(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(4)

	deletedKeys := map[string]int{}
	onDeleteFor := func(key string) func(any) {
		return func(value any) {
			deletedKeys[key]++
		}
	}

	contentCache.Set("a", "a", cache.SetOptions{Size: 2, OnDelete: onDeleteFor("a")})
	contentCache.Set("b", "b", cache.SetOptions{Size: 2, OnDelete: onDeleteFor("b")})

	// Inserting c (size 3) must evict both a and b to get under budget
	contentCache.Set("c", "c", cache.SetOptions{Size: 3})

	assert.Equal(t, map[string]int{"a": 1, "b": 1}, deletedKeys)
	assert.Equal(t, 1, contentCache.Len())
	assert.Equal(t, uint64(3), contentCache.UsedSize())
}

func TestCacheOversizedEntrySurvivesItsOwnInsertion(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(2)

	contentCache.Set("small", 1, cache.SetOptions{Size: 1})
	contentCache.Set("huge", 2, cache.SetOptions{Size: 5})

	_, ok := contentCache.Get("small")
	assert.False(t, ok)

	_, ok = contentCache.Get("huge")
	assert.True(t, ok)
	assert.Equal(t, uint64(5), contentCache.UsedSize())
}

func TestCacheDefaultSizeIsOne(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(3)

	contentCache.Set("a", 1, cache.SetOptions{})
	contentCache.Set("b", 1, cache.SetOptions{})
	contentCache.Set("c", 1, cache.SetOptions{})
	assert.Equal(t, uint64(3), contentCache.UsedSize())

	contentCache.Set("d", 1, cache.SetOptions{})
	assert.Equal(t, 3, contentCache.Len())

	_, ok := contentCache.Get("a")
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(10)

	deletions := 0
	onDelete := func(value any) {
		deletions++
	}

	contentCache.Set("a", 1, cache.SetOptions{OnDelete: onDelete})
	contentCache.Set("b", 2, cache.SetOptions{OnDelete: onDelete})
	contentCache.Set("c", 3, cache.SetOptions{OnDelete: onDelete})

	contentCache.Clear()

	assert.Equal(t, 3, deletions)
	assert.Equal(t, 0, contentCache.Len())
	assert.Equal(t, uint64(0), contentCache.UsedSize())

	_, ok := contentCache.Get("a")
	assert.False(t, ok)
}

func TestCacheIsValueAgnostic(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(10)

	// A pending result is cached exactly like resolved data
	pending := make(chan []byte)
	contentCache.Set("pending:osm/1/0/0", pending, cache.SetOptions{})

	value, ok := contentCache.Get("pending:osm/1/0/0")
	require.True(t, ok)
	assert.Equal(t, (chan []byte)(pending), value)
}

func TestCacheGetAs(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(10)

	contentCache.Set("key", []byte("imagery"), cache.SetOptions{})

	buffer, ok := cache.GetAs[[]byte](contentCache, "key")
	require.True(t, ok)
	assert.Equal(t, []byte("imagery"), buffer)

	_, ok = cache.GetAs[string](contentCache, "key")
	assert.False(t, ok)

	_, ok = cache.GetAs[[]byte](contentCache, "missing")
	assert.False(t, ok)
}

func TestCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	contentCache := cache.New(100)

	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				contentCache.Set("shared", j, cache.SetOptions{})
				contentCache.Get("shared")
			}
		}()
	}
	wg.Wait()

	_, ok := contentCache.Get("shared")
	assert.True(t, ok)
}
