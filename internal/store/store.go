package store

import (
	"errors"
	"sync"
	"time"
)

// ErrZeroCapacity is returned by Put when the store was configured with
// capacity zero and therefore cannot hold any entry.
var ErrZeroCapacity = errors.New("store: capacity is zero")

// Clock provides time in UnixNano; useful for deterministic TTL tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a Store. Zero values are safe: nil Metrics means
// NoopMetrics, nil Clock means time.Now, SweepInterval <= 0 disables the
// background sweep (lazy expiry still works).
type Options struct {
	// Capacity is the maximum number of resident entries. Zero is a legal
	// configuration that rejects all writes.
	Capacity int

	// SweepInterval is the period of the background expiry sweep.
	SweepInterval time.Duration
	// SweepBatch bounds how many arena slots a single sweep pass examines,
	// so a pass never holds the lock for an unbounded scan.
	SweepBatch int

	Metrics Metrics
	Clock   Clock
}

const noSlot = -1

// entry is an arena slot: key/value plus index-based links of the intrusive
// recency list (head = MRU, tail = LRU). exp is an absolute UnixNano
// deadline, 0 = no TTL.
type entry struct {
	key   string
	value []byte
	exp   int64
	prev  int
	next  int
	used  bool
}

// Store is a thread-safe LRU+TTL key-value container. Entries live in a
// slot arena owned exclusively by the store; the recency ordering is an
// intrusive doubly linked list over arena indices, so no per-entry list
// allocation happens after a slot is first used.
//
// All methods are safe for concurrent use. A single mutex serializes every
// structural mutation; Get takes it too, since a hit moves the entry to MRU.
type Store struct {
	mu     sync.Mutex
	index  map[string]int // key -> arena slot
	arena  []entry
	free   []int // recycled slots
	head   int   // MRU
	tail   int   // LRU
	cursor int   // next arena slot the sweep examines

	capacity int
	metrics  Metrics
	clock    Clock

	hits      uint64
	misses    uint64
	evictions uint64

	sweepEvery time.Duration
	sweepBatch int
	done       chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// Stats is a point-in-time snapshot of the store for monitoring.
type Stats struct {
	Entries   int    `json:"entries"` // resident entries, expired included
	Live      int    `json:"live"`    // resident and not expired
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// New constructs a Store and starts the background sweep if configured.
// Call Close to stop it.
func New(opts Options) *Store {
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics{}
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = 256
	}
	s := &Store{
		index:      make(map[string]int, opts.Capacity),
		head:       noSlot,
		tail:       noSlot,
		capacity:   opts.Capacity,
		metrics:    opts.Metrics,
		clock:      opts.Clock,
		sweepEvery: opts.SweepInterval,
		sweepBatch: opts.SweepBatch,
		done:       make(chan struct{}),
	}
	if s.sweepEvery > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}
	return s
}

// Close stops the background sweep. Safe to call multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	return nil
}

// Get returns a copy of the value for key and refreshes its recency.
// Expired entries are reclaimed on access and reported as a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		s.misses++
		s.metrics.Miss()
		return nil, false
	}
	if s.expiredLocked(i) {
		s.evictLocked(i, EvictTTL)
		s.misses++
		s.metrics.Miss()
		return nil, false
	}

	s.moveToFront(i)
	s.hits++
	s.metrics.Hit()
	return cloneBytes(s.arena[i].value), true
}

// Put inserts or overwrites key with a copy of value and marks it most
// recently used. ttl <= 0 means no expiration. If inserting a new key would
// exceed capacity, the least-recently-used entry is evicted first.
func (s *Store) Put(key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity <= 0 {
		return ErrZeroCapacity
	}

	exp := int64(0)
	if ttl > 0 {
		exp = s.now() + int64(ttl)
	}

	if i, ok := s.index[key]; ok {
		s.arena[i].value = cloneBytes(value)
		s.arena[i].exp = exp
		s.moveToFront(i)
		return nil
	}

	// Make room. The tail is the least-recently-used entry; an entry that is
	// both stale and expired counts as a TTL reclaim rather than an eviction
	// forced by the new key.
	for len(s.index) >= s.capacity {
		t := s.tail
		if t == noSlot {
			break
		}
		if s.expiredLocked(t) {
			s.evictLocked(t, EvictTTL)
		} else {
			s.evictLocked(t, EvictLRU)
		}
	}

	i := s.alloc()
	s.arena[i] = entry{
		key:   key,
		value: cloneBytes(value),
		exp:   exp,
		prev:  noSlot,
		next:  noSlot,
		used:  true,
	}
	s.index[key] = i
	s.pushFront(i)
	s.metrics.Size(len(s.index))
	return nil
}

// Delete removes key if present and reports whether it existed.
// Deleting an absent key is a no-op.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return false
	}
	s.removeLocked(i)
	s.metrics.Size(len(s.index))
	return true
}

// SweepExpired examines at most one batch of arena slots and removes the
// expired entries among them, returning how many were removed. Repeated
// passes cycle through the whole arena, so abandoned keys that are never
// re-queried are still reclaimed.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.arena) == 0 {
		return 0
	}

	removed := 0
	steps := s.sweepBatch
	if steps > len(s.arena) {
		steps = len(s.arena)
	}
	for n := 0; n < steps; n++ {
		if s.cursor >= len(s.arena) {
			s.cursor = 0
		}
		i := s.cursor
		s.cursor++
		if s.arena[i].used && s.expiredLocked(i) {
			s.evictLocked(i, EvictSweep)
			removed++
		}
	}
	if removed > 0 {
		s.metrics.Size(len(s.index))
	}
	return removed
}

// Len returns the number of live (non-expired) resident entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked()
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Entries:   len(s.index),
		Live:      s.liveLocked(),
		Capacity:  s.capacity,
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
	}
}

// -------------------- internals (mu held) --------------------

func (s *Store) now() int64 {
	if s.clock != nil {
		return s.clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

func (s *Store) expiredLocked(i int) bool {
	exp := s.arena[i].exp
	return exp != 0 && s.now() > exp
}

func (s *Store) liveLocked() int {
	live := 0
	for _, i := range s.index {
		if !s.expiredLocked(i) {
			live++
		}
	}
	return live
}

// alloc returns a free arena slot, growing the arena when none is recycled.
func (s *Store) alloc() int {
	if n := len(s.free); n > 0 {
		i := s.free[n-1]
		s.free = s.free[:n-1]
		return i
	}
	s.arena = append(s.arena, entry{})
	return len(s.arena) - 1
}

// pushFront inserts slot i at MRU in O(1).
func (s *Store) pushFront(i int) {
	s.arena[i].prev = noSlot
	s.arena[i].next = s.head
	if s.head != noSlot {
		s.arena[s.head].prev = i
	}
	s.head = i
	if s.tail == noSlot {
		s.tail = i
	}
}

// moveToFront promotes slot i to MRU in O(1).
func (s *Store) moveToFront(i int) {
	if i == s.head {
		return
	}
	s.unlink(i)
	s.pushFront(i)
}

// unlink detaches slot i from the recency list in O(1).
func (s *Store) unlink(i int) {
	p, n := s.arena[i].prev, s.arena[i].next
	if p != noSlot {
		s.arena[p].next = n
	}
	if n != noSlot {
		s.arena[n].prev = p
	}
	if s.head == i {
		s.head = n
	}
	if s.tail == i {
		s.tail = p
	}
	s.arena[i].prev, s.arena[i].next = noSlot, noSlot
}

// removeLocked unlinks slot i, clears it, and recycles it.
func (s *Store) removeLocked(i int) {
	s.unlink(i)
	delete(s.index, s.arena[i].key)
	s.arena[i] = entry{prev: noSlot, next: noSlot}
	s.free = append(s.free, i)
}

// evictLocked removes slot i and records the eviction.
func (s *Store) evictLocked(i int, reason EvictReason) {
	s.removeLocked(i)
	s.evictions++
	s.metrics.Evict(reason)
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
