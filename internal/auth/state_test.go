package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState_Unique(t *testing.T) {
	seen := map[string]bool{}
	for range 50 {
		s, err := NewState()
		require.NoError(t, err)
		assert.Len(t, s, 32)
		assert.False(t, seen[s])
		seen[s] = true
	}
}

func TestMemoryStateStore_SingleUse(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)

	require.NoError(t, store.Save(ctx, "abc", time.Now().Add(time.Minute)))

	ok, err := store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok, "a state must not be accepted twice")
}

func TestMemoryStateStore_UnknownAndEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)

	ok, err := store.Consume(ctx, "never-issued")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Consume(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStateStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)

	require.NoError(t, store.Save(ctx, "short", time.Now().Add(30*time.Millisecond)))
	time.Sleep(60 * time.Millisecond)

	ok, err := store.Consume(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, store.Save(ctx, "past", time.Now().Add(-time.Second)))
}

func TestMemoryStateStore_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore(time.Minute)
	require.NoError(t, store.Save(ctx, "race", time.Now().Add(time.Minute)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.Consume(ctx, "race"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
