package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTTLStore_BasicOperations(t *testing.T) {
	clock := newFakeClock()
	store := NewTTLStore(time.Minute, 0, clock.Now)

	t.Run("PutAndGet", func(t *testing.T) {
		store.Put("alice", "hello", "hi there", "ix-1")

		e, ok := store.Get("alice", "hello")
		require.True(t, ok)
		assert.Equal(t, "hi there", e.Answer)
		assert.Equal(t, "ix-1", e.InteractionID)
		assert.Equal(t, clock.Now(), e.CreatedAt)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		_, ok := store.Get("alice", "unknown")
		assert.False(t, ok)
	})

	t.Run("UsersAreIsolated", func(t *testing.T) {
		_, ok := store.Get("bob", "hello")
		assert.False(t, ok)
	})

	t.Run("Delete", func(t *testing.T) {
		store.Put("alice", "bye", "see you", "")
		e, ok := store.Delete("alice", "bye")
		require.True(t, ok)
		assert.Equal(t, "see you", e.Answer)

		_, ok = store.Get("alice", "bye")
		assert.False(t, ok)

		_, ok = store.Delete("alice", "bye")
		assert.False(t, ok)
	})
}

func TestTTLStore_Expiration(t *testing.T) {
	clock := newFakeClock()
	store := NewTTLStore(10*time.Second, 0, clock.Now)

	store.Put("alice", "q", "a", "")

	clock.Advance(10*time.Second - time.Nanosecond)
	_, ok := store.Get("alice", "q")
	assert.True(t, ok, "entry must be visible just before ttl")

	clock.Advance(time.Nanosecond)
	_, ok = store.Get("alice", "q")
	assert.False(t, ok, "entry must be gone at exactly ttl")
	assert.Equal(t, 0, store.Len(), "expired entry is evicted lazily on lookup")
}

func TestTTLStore_OverwriteResetsTimestamp(t *testing.T) {
	clock := newFakeClock()
	store := NewTTLStore(10*time.Second, 0, clock.Now)

	store.Put("alice", "q", "first", "")
	clock.Advance(8 * time.Second)
	store.Put("alice", "q", "second", "")
	clock.Advance(8 * time.Second)

	e, ok := store.Get("alice", "q")
	require.True(t, ok)
	assert.Equal(t, "second", e.Answer)
}

func TestTTLStore_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	store := NewTTLStore(time.Minute, 0, clock.Now)

	store.Put("alice", "old", "a", "")
	clock.Advance(30 * time.Second)
	store.Put("alice", "new", "b", "")
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, store.CleanupExpired())
	assert.Equal(t, 1, store.Len())

	store.Clear()
	assert.Equal(t, 0, store.Len())
}

func TestTTLStore_DeleteReturnsExpiredEntry(t *testing.T) {
	clock := newFakeClock()
	store := NewTTLStore(time.Second, 0, clock.Now)

	store.Put("alice", "q", "a", "ix-9")
	clock.Advance(time.Hour)

	e, ok := store.Delete("alice", "q")
	require.True(t, ok)
	assert.Equal(t, "ix-9", e.InteractionID)
}

func TestTTLStore_Capacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		inserted int
		wantLen  int
	}{
		{name: "BelowCapacityKeepsEverything", capacity: 64, inserted: 20, wantLen: 20},
		{name: "AtCapacityKeepsEverything", capacity: 64, inserted: 64, wantLen: 64},
		{name: "OverCapacityEvicts", capacity: 10, inserted: 1000, wantLen: 10},
		{name: "SingleEntry", capacity: 1, inserted: 50, wantLen: 1},
		{name: "Unbounded", capacity: 0, inserted: 500, wantLen: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewTTLStore(time.Hour, tt.capacity, nil)
			for i := 0; i < tt.inserted; i++ {
				store.Put("alice", fmt.Sprintf("q%d", i), "a", "")
			}
			assert.Equal(t, tt.wantLen, store.Len())

			// The newest entry always survives its own insertion.
			_, ok := store.Get("alice", fmt.Sprintf("q%d", tt.inserted-1))
			assert.True(t, ok)

			if tt.inserted <= tt.capacity || tt.capacity == 0 {
				for i := 0; i < tt.inserted; i++ {
					_, ok := store.Get("alice", fmt.Sprintf("q%d", i))
					assert.True(t, ok, "q%d evicted below capacity", i)
				}
			}
		})
	}
}

func TestTTLStore_LenTracksRemovals(t *testing.T) {
	clock := newFakeClock()
	store := NewTTLStore(time.Minute, 100, clock.Now)

	for i := 0; i < 10; i++ {
		store.Put("alice", fmt.Sprintf("q%d", i), "a", "")
	}
	store.Put("alice", "q0", "b", "") // overwrite keeps the count
	assert.Equal(t, 10, store.Len())

	_, ok := store.Delete("alice", "q1")
	require.True(t, ok)
	assert.Equal(t, 9, store.Len())

	clock.Advance(2 * time.Minute)
	_, ok = store.Get("alice", "q2")
	assert.False(t, ok)
	assert.Equal(t, 8, store.Len())

	assert.Equal(t, 8, store.CleanupExpired())
	assert.Equal(t, 0, store.Len())

	store.Put("bob", "q", "a", "")
	store.Clear()
	assert.Equal(t, 0, store.Len())
}

func TestTTLStore_ConcurrentAccess(t *testing.T) {
	store := NewTTLStore(time.Hour, 0, nil)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			store.Put(fmt.Sprintf("user-%d", n%10), fmt.Sprintf("q-%d", n), fmt.Sprintf("a-%d", n), "")
		}(i)
		go func(n int) {
			defer wg.Done()
			store.Get(fmt.Sprintf("user-%d", n%10), fmt.Sprintf("q-%d", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, store.Len())
	e, ok := store.Get("user-7", "q-37")
	require.True(t, ok)
	assert.Equal(t, "a-37", e.Answer)
}

func TestTTLStore_SameKeyLastWriterWins(t *testing.T) {
	store := NewTTLStore(time.Hour, 0, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Put("alice", "q", fmt.Sprintf("a-%d", n), "")
		}(i)
	}
	wg.Wait()

	e, ok := store.Get("alice", "q")
	require.True(t, ok)
	assert.Regexp(t, `^a-\d+$`, e.Answer)
	assert.Equal(t, 1, store.Len())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Does Alex like cricket?", "does alex like cricket"},
		{"  does   ALEX\tlike cricket ?? ", "does alex like cricket"},
		{"Hello.", "hello"},
		{"what's 2.5 + 1", "what's 2.5 + 1"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}
