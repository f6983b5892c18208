package cache

import (
	"testing"
	"time"
)

func newTestCache(capacity int, ttl time.Duration) (*LRU[string, int], *time.Time) {
	c := NewLRU[string, int](capacity, ttl)
	now := time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLRU_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache returned a value")
	}
	c.Set("a", 1)
	c.Set("a", 2)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Fatalf("Get(a) = %d, %v; want 2, true", v, ok)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestLRU_Eviction(t *testing.T) {
	tests := []struct {
		name    string
		ops     func(c *LRU[string, int])
		evicted string
		kept    []string
	}{
		{
			name:    "oldest write goes first",
			ops:     func(c *LRU[string, int]) { c.Set("a", 1); c.Set("b", 2); c.Set("c", 3) },
			evicted: "a",
			kept:    []string{"b", "c"},
		},
		{
			name:    "read refreshes recency",
			ops:     func(c *LRU[string, int]) { c.Set("a", 1); c.Set("b", 2); c.Get("a"); c.Set("c", 3) },
			evicted: "b",
			kept:    []string{"a", "c"},
		},
		{
			name:    "overwrite refreshes recency",
			ops:     func(c *LRU[string, int]) { c.Set("a", 1); c.Set("b", 2); c.Set("a", 9); c.Set("c", 3) },
			evicted: "b",
			kept:    []string{"a", "c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCache(2, time.Minute)
			tt.ops(c)
			if got := c.Stats().Evictions; got != 1 {
				t.Errorf("Evictions = %d, want 1", got)
			}
			if _, ok := c.Get(tt.evicted); ok {
				t.Errorf("%s should have been evicted", tt.evicted)
			}
			for _, k := range tt.kept {
				if _, ok := c.Get(k); !ok {
					t.Errorf("%s should still be cached", k)
				}
			}
		})
	}
}

func TestLRU_Expiry(t *testing.T) {
	c, now := newTestCache(4, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	*now = now.Add(30 * time.Second)
	c.Set("c", 3)
	*now = now.Add(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1 (b)", n)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Errorf("Get(c) = %d, %v; want 3, true", v, ok)
	}

	st := c.Stats()
	want := Stats{Hits: 1, Misses: 1, Expired: 2, Size: 1}
	if st != want {
		t.Errorf("Stats() = %+v, want %+v", st, want)
	}
}

func TestLRU_DeleteAndClear(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	c.Delete("missing")
	if c.Size() != 1 {
		t.Fatalf("Size() after Delete = %d, want 1", c.Size())
	}
	c.Get("b")
	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", c.Size())
	}
	if st := c.Stats(); st.Hits != 1 || st.Size != 0 {
		t.Errorf("Clear should keep counters: %+v", st)
	}
}

func TestNewLRU_MinimumCapacity(t *testing.T) {
	c := NewLRU[int, string](0, time.Minute)
	c.Set(1, "one")
	c.Set(2, "two")
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", c.Size())
	}
	if v, ok := c.Get(2); !ok || v != "two" {
		t.Errorf("Get(2) = %q, %v", v, ok)
	}
}

type countingCleaner struct{ calls chan struct{} }

func (c *countingCleaner) CleanExpired() int {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return 0
}

func TestManager_RunsCleanup(t *testing.T) {
	m := NewManager()
	cl := &countingCleaner{calls: make(chan struct{}, 1)}
	m.Register(cl)
	m.StartCleanup(5 * time.Millisecond)
	defer m.Stop()

	select {
	case <-cl.calls:
	case <-time.After(time.Second):
		t.Fatal("cleanup never ran")
	}
}

func TestManager_StopWithoutStart(t *testing.T) {
	NewManager().Stop()
}
