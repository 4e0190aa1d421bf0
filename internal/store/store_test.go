package store

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// fakeClock is a manually advanced Clock for deterministic TTL tests.
type fakeClock struct{ now atomic.Int64 }

func (c *fakeClock) NowUnixNano() int64 { return c.now.Load() }
func (c *fakeClock) Advance(d time.Duration) { c.now.Add(int64(d)) }

func TestStore_PutGet(t *testing.T) {
	s := New(Options{Capacity: 4})
	defer s.Close()

	if err := s.Put("key1", []byte("value1"), 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	v, ok := s.Get("key1")
	if !ok {
		t.Fatal("Expected key1 to be present")
	}
	if string(v) != "value1" {
		t.Errorf("Expected 'value1', got '%s'", string(v))
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s := New(Options{Capacity: 4})
	defer s.Close()

	if _, ok := s.Get("nonexistent"); ok {
		t.Error("Expected miss for non-existent key")
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := New(Options{Capacity: 4})
	defer s.Close()

	s.Put("key1", []byte("value1"), 0)
	v, _ := s.Get("key1")
	v[0] = 'X'

	v2, _ := s.Get("key1")
	if string(v2) != "value1" {
		t.Errorf("Stored value mutated through returned slice: %q", v2)
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	const capacity = 3
	s := New(Options{Capacity: capacity})
	defer s.Close()

	for i := 0; i <= capacity; i++ {
		key := fmt.Sprintf("key-%d", i)
		if err := s.Put(key, []byte("v"), 0); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
	}

	// Exactly the first-inserted key is gone.
	if _, ok := s.Get("key-0"); ok {
		t.Error("Expected key-0 to be evicted")
	}
	for i := 1; i <= capacity; i++ {
		key := fmt.Sprintf("key-%d", i)
		if _, ok := s.Get(key); !ok {
			t.Errorf("Expected %s to be present", key)
		}
	}
}

func TestStore_RecencyOrder(t *testing.T) {
	s := New(Options{Capacity: 2})
	defer s.Close()

	s.Put("a", []byte("1"), 0)
	s.Put("b", []byte("2"), 0)

	// Touch a, making b the LRU entry.
	if _, ok := s.Get("a"); !ok {
		t.Fatal("Expected a to be present")
	}

	s.Put("c", []byte("3"), 0)

	if _, ok := s.Get("b"); ok {
		t.Error("Expected b to be evicted (least recently used)")
	}
	if _, ok := s.Get("a"); !ok {
		t.Error("Expected a to survive (recently touched)")
	}
	if _, ok := s.Get("c"); !ok {
		t.Error("Expected c to be present")
	}
}

func TestStore_PutOverwritePromotes(t *testing.T) {
	s := New(Options{Capacity: 2})
	defer s.Close()

	s.Put("a", []byte("1"), 0)
	s.Put("b", []byte("2"), 0)
	s.Put("a", []byte("1b"), 0) // overwrite counts as use

	s.Put("c", []byte("3"), 0)

	if _, ok := s.Get("b"); ok {
		t.Error("Expected b to be evicted after a was overwritten")
	}
	v, ok := s.Get("a")
	if !ok || string(v) != "1b" {
		t.Errorf("Expected a='1b', got %q (present=%v)", v, ok)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	clk := &fakeClock{}
	s := New(Options{Capacity: 4, Clock: clk})
	defer s.Close()

	s.Put("key1", []byte("value1"), time.Second)

	if _, ok := s.Get("key1"); !ok {
		t.Fatal("Expected key1 present before TTL elapses")
	}

	clk.Advance(2 * time.Second)

	if _, ok := s.Get("key1"); ok {
		t.Error("Expected key1 absent after TTL elapsed")
	}
}

func TestStore_TTLExpiryWithoutAccess(t *testing.T) {
	clk := &fakeClock{}
	s := New(Options{Capacity: 4, Clock: clk})
	defer s.Close()

	// A recently used entry still expires on schedule.
	s.Put("key1", []byte("value1"), time.Second)
	s.Get("key1")
	clk.Advance(2 * time.Second)

	if _, ok := s.Get("key1"); ok {
		t.Error("Expected key1 absent after TTL regardless of access")
	}
}

func TestStore_OverwriteResetsTTL(t *testing.T) {
	clk := &fakeClock{}
	s := New(Options{Capacity: 4, Clock: clk})
	defer s.Close()

	s.Put("key1", []byte("v1"), time.Second)
	clk.Advance(900 * time.Millisecond)
	s.Put("key1", []byte("v2"), time.Second)
	clk.Advance(900 * time.Millisecond)

	v, ok := s.Get("key1")
	if !ok {
		t.Fatal("Expected key1 present: overwrite reset the deadline")
	}
	if string(v) != "v2" {
		t.Errorf("Expected 'v2', got %q", v)
	}
}

func TestStore_ZeroCapacityRejectsWrites(t *testing.T) {
	s := New(Options{Capacity: 0})
	defer s.Close()

	err := s.Put("key1", []byte("value1"), 0)
	if !errors.Is(err, ErrZeroCapacity) {
		t.Errorf("Expected ErrZeroCapacity, got %v", err)
	}
}

func TestStore_DeleteIdempotent(t *testing.T) {
	s := New(Options{Capacity: 4})
	defer s.Close()

	s.Put("key1", []byte("value1"), 0)

	if !s.Delete("key1") {
		t.Error("Expected Delete to report the key existed")
	}
	if s.Delete("key1") {
		t.Error("Expected second Delete to report absence")
	}
	if s.Delete("never-existed") {
		t.Error("Expected Delete of unknown key to report absence")
	}
}

func TestStore_SweepExpired(t *testing.T) {
	clk := &fakeClock{}
	s := New(Options{Capacity: 8, Clock: clk})
	defer s.Close()

	for i := 0; i < 4; i++ {
		s.Put(fmt.Sprintf("ttl-%d", i), []byte("v"), time.Second)
	}
	s.Put("keeper", []byte("v"), 0)

	clk.Advance(2 * time.Second)

	removed := s.SweepExpired()
	if removed != 4 {
		t.Errorf("Expected sweep to remove 4 entries, removed %d", removed)
	}

	st := s.Stats()
	if st.Entries != 1 {
		t.Errorf("Expected 1 resident entry after sweep, got %d", st.Entries)
	}
	if _, ok := s.Get("keeper"); !ok {
		t.Error("Expected unexpired entry to survive the sweep")
	}
}

func TestStore_SweepBatchBounded(t *testing.T) {
	clk := &fakeClock{}
	s := New(Options{Capacity: 8, SweepBatch: 2, Clock: clk})
	defer s.Close()

	for i := 0; i < 4; i++ {
		s.Put(fmt.Sprintf("ttl-%d", i), []byte("v"), time.Second)
	}
	clk.Advance(2 * time.Second)

	// Each pass examines at most SweepBatch slots; the cursor cycles, so two
	// passes cover the whole arena.
	first := s.SweepExpired()
	if first > 2 {
		t.Errorf("Expected first pass to remove at most 2, removed %d", first)
	}
	second := s.SweepExpired()
	if first+second != 4 {
		t.Errorf("Expected two passes to remove all 4, removed %d", first+second)
	}
}

func TestStore_LenCountsLiveOnly(t *testing.T) {
	clk := &fakeClock{}
	s := New(Options{Capacity: 8, Clock: clk})
	defer s.Close()

	s.Put("live", []byte("v"), 0)
	s.Put("dying", []byte("v"), time.Second)

	if got := s.Len(); got != 2 {
		t.Fatalf("Expected Len 2, got %d", got)
	}

	clk.Advance(2 * time.Second)

	// The expired entry is still resident but no longer live.
	if got := s.Len(); got != 1 {
		t.Errorf("Expected Len 1 after expiry, got %d", got)
	}
	if st := s.Stats(); st.Entries != 2 {
		t.Errorf("Expected 2 resident entries before reclaim, got %d", st.Entries)
	}
}

func TestStore_Stats(t *testing.T) {
	s := New(Options{Capacity: 2})
	defer s.Close()

	s.Put("a", []byte("1"), 0)
	s.Get("a")       // hit
	s.Get("missing") // miss
	s.Put("b", []byte("2"), 0)
	s.Put("c", []byte("3"), 0) // evicts a

	st := s.Stats()
	if st.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", st.Hits)
	}
	if st.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", st.Misses)
	}
	if st.Evictions != 1 {
		t.Errorf("Expected 1 eviction, got %d", st.Evictions)
	}
	if st.Capacity != 2 {
		t.Errorf("Expected capacity 2, got %d", st.Capacity)
	}
}

func TestStore_ArenaSlotReuse(t *testing.T) {
	s := New(Options{Capacity: 2})
	defer s.Close()

	// Churn well past capacity; the arena must not grow beyond it.
	for i := 0; i < 100; i++ {
		s.Put(fmt.Sprintf("key-%d", i), []byte("v"), 0)
	}
	s.mu.Lock()
	arenaLen := len(s.arena)
	s.mu.Unlock()
	if arenaLen > 2 {
		t.Errorf("Expected arena to stay at capacity 2, grew to %d", arenaLen)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := New(Options{Capacity: 128, SweepInterval: time.Millisecond, SweepBatch: 32})
	defer s.Close()

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < 1000; i++ {
				key := fmt.Sprintf("key-%d", (w*1000+i)%200)
				switch i % 4 {
				case 0:
					if err := s.Put(key, []byte("v"), 0); err != nil {
						return err
					}
				case 1:
					s.Put(key, []byte("v"), time.Microsecond)
				case 2:
					s.Get(key)
				case 3:
					s.Delete(key)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Concurrent access failed: %v", err)
	}

	if st := s.Stats(); st.Entries > 128 {
		t.Errorf("Capacity invariant violated: %d resident entries", st.Entries)
	}
}
