package cache

import (
	"container/list"
	"hash/maphash"
	"sync"
	"sync/atomic"
	"time"
)

const shardCount = 64

// Clock returns the current time. Tests inject a controllable one.
type Clock func() time.Time

// Entry is a cached answer for one (user, normalized query) pair.
type Entry struct {
	Query         string
	Answer        string
	InteractionID string // interaction the answer was taken from, if any
	CreatedAt     time.Time
}

type entryKey struct {
	userID string
	query  string
}

type item struct {
	key   entryKey
	entry Entry
}

type shard struct {
	mu      sync.Mutex
	entries map[entryKey]*list.Element
	order   *list.List // front = most recently used
	size    *atomic.Int64
}

// TTLStore maps (user id, normalized query) to an answer. Entries are visible
// while now - CreatedAt < ttl and are evicted lazily on lookup. Keys are
// spread over independently locked shards.
type TTLStore struct {
	ttl      time.Duration
	now      Clock
	seed     maphash.Seed
	capacity int64
	size     atomic.Int64
	shards   [shardCount]*shard
}

// NewTTLStore creates a store. capacity <= 0 means unbounded; otherwise the
// store holds at most capacity entries in total. Eviction drops the least
// recently used entry of the inserting shard, or of another shard when the
// inserting shard holds only the new entry.
func NewTTLStore(ttl time.Duration, capacity int, now Clock) *TTLStore {
	if now == nil {
		now = time.Now
	}
	s := &TTLStore{
		ttl:      ttl,
		now:      now,
		seed:     maphash.MakeSeed(),
		capacity: int64(capacity),
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			entries: make(map[entryKey]*list.Element),
			order:   list.New(),
			size:    &s.size,
		}
	}
	return s
}

// TTL returns the entry lifetime.
func (s *TTLStore) TTL() time.Duration {
	return s.ttl
}

func (s *TTLStore) shardFor(k entryKey) *shard {
	var h maphash.Hash
	h.SetSeed(s.seed)
	_, _ = h.WriteString(k.userID)
	_ = h.WriteByte(0)
	_, _ = h.WriteString(k.query)
	return s.shards[h.Sum64()%shardCount]
}

func (s *TTLStore) expired(e Entry, now time.Time) bool {
	return now.Sub(e.CreatedAt) >= s.ttl
}

// Put inserts or overwrites an entry; overwriting resets its timestamp.
func (s *TTLStore) Put(userID, normalizedQuery, answer, interactionID string) {
	k := entryKey{userID: userID, query: normalizedQuery}
	e := Entry{
		Query:         normalizedQuery,
		Answer:        answer,
		InteractionID: interactionID,
		CreatedAt:     s.now(),
	}

	sh := s.shardFor(k)
	sh.mu.Lock()
	if el, ok := sh.entries[k]; ok {
		el.Value.(*item).entry = e
		sh.order.MoveToFront(el)
		sh.mu.Unlock()
		return
	}
	sh.entries[k] = sh.order.PushFront(&item{key: k, entry: e})
	s.size.Add(1)
	sh.mu.Unlock()

	s.enforceCapacity(sh)
}

// enforceCapacity evicts until the store is back within capacity. Shard locks
// are taken one at a time.
func (s *TTLStore) enforceCapacity(inserted *shard) {
	if s.capacity <= 0 {
		return
	}
	next := 0
	for s.size.Load() > s.capacity {
		if inserted.evictOldest(2) {
			continue
		}
		evicted := false
		for tried := 0; tried < shardCount && !evicted; tried++ {
			sh := s.shards[next]
			next = (next + 1) % shardCount
			if sh != inserted {
				evicted = sh.evictOldest(1)
			}
		}
		if !evicted {
			return
		}
	}
}

// Get returns the entry if present and not expired. An expired entry is removed.
func (s *TTLStore) Get(userID, normalizedQuery string) (Entry, bool) {
	k := entryKey{userID: userID, query: normalizedQuery}
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	el, ok := sh.entries[k]
	if !ok {
		return Entry{}, false
	}

	it := el.Value.(*item)
	if s.expired(it.entry, s.now()) {
		sh.remove(el)
		return Entry{}, false
	}

	sh.order.MoveToFront(el)
	return it.entry, true
}

// Delete removes the entry, expired or not, and returns what was removed.
func (s *TTLStore) Delete(userID, normalizedQuery string) (Entry, bool) {
	k := entryKey{userID: userID, query: normalizedQuery}
	sh := s.shardFor(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	el, ok := sh.entries[k]
	if !ok {
		return Entry{}, false
	}
	e := el.Value.(*item).entry
	sh.remove(el)
	return e, true
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (s *TTLStore) Len() int {
	return int(s.size.Load())
}

// CleanupExpired removes all expired entries.
// Returns the number of entries removed.
func (s *TTLStore) CleanupExpired() int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		// Collect first to avoid modifying the list while walking it.
		var toDelete []*list.Element
		for el := sh.order.Front(); el != nil; el = el.Next() {
			if s.expired(el.Value.(*item).entry, now) {
				toDelete = append(toDelete, el)
			}
		}
		for _, el := range toDelete {
			sh.remove(el)
		}
		removed += len(toDelete)
		sh.mu.Unlock()
	}
	return removed
}

// Clear removes all entries.
func (s *TTLStore) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		s.size.Add(-int64(len(sh.entries)))
		sh.entries = make(map[entryKey]*list.Element)
		sh.order.Init()
		sh.mu.Unlock()
	}
}

// evictOldest removes the least recently used entry if the shard holds at
// least atLeast entries.
func (sh *shard) evictOldest(atLeast int) bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.order.Len() < atLeast {
		return false
	}
	sh.remove(sh.order.Back())
	return true
}

// Must be called with lock held.
func (sh *shard) remove(el *list.Element) {
	sh.order.Remove(el)
	delete(sh.entries, el.Value.(*item).key)
	sh.size.Add(-1)
}
