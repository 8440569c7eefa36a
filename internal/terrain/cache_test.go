package terrain

import "testing"

func TestCacheInsertEvictsOldest(t *testing.T) {
	c := NewCache[string, int](2)
	c.Insert("a", 1)
	c.Insert("b", 2)
	evicted, ok := c.Insert("c", 3)
	if !ok || evicted != 1 {
		t.Fatalf("expected eviction of a's value, got %v %v", evicted, ok)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("a should have been evicted")
	}
	for _, k := range []string{"b", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should be present", k)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCacheGetDoesNotRefreshRecency(t *testing.T) {
	c := NewCache[string, int](2)
	c.Insert("b", 1)
	c.Insert("c", 2)
	c.Get("b")
	c.Insert("d", 3)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted; Get must not refresh recency")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should survive")
	}
	if _, ok := c.Get("d"); !ok {
		t.Error("d should be present")
	}
}

func TestCacheUpdateLastAccessed(t *testing.T) {
	c := NewCache[string, int](2)
	c.Insert("b", 1)
	c.Insert("c", 2)
	c.UpdateLastAccessed("b")
	c.Insert("d", 3)
	if _, ok := c.Get("c"); ok {
		t.Error("c should have been evicted after b was refreshed")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("b should survive")
	}
	if _, ok := c.Get("d"); !ok {
		t.Error("d should be present")
	}
}

func TestCacheUpdateLastAccessedMissingKey(t *testing.T) {
	c := NewCache[string, int](2)
	c.UpdateLastAccessed("nope")
	if c.Len() != 0 {
		t.Error("refreshing a missing key must not create it")
	}
}

func TestCacheBoundHolds(t *testing.T) {
	c := NewCache[int, int](8)
	for i := 0; i < 100; i++ {
		c.Insert(i, i)
		if c.Len() > c.MaxSize() {
			t.Fatalf("len %d exceeded max %d after insert %d", c.Len(), c.MaxSize(), i)
		}
	}
	// The survivors are the 8 most recent inserts.
	for i := 92; i < 100; i++ {
		if _, ok := c.Get(i); !ok {
			t.Errorf("key %d should survive", i)
		}
	}
}

func TestCacheInsertOverwrites(t *testing.T) {
	c := NewCache[string, int](2)
	c.Insert("a", 1)
	c.Insert("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) = %d, want 2", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestCacheInsertWithPriority(t *testing.T) {
	c := NewCache[string, int](2)
	c.InsertWithPriority("old", 1, 5)
	c.InsertWithPriority("new", 2, 100)
	c.InsertWithPriority("mid", 3, 50)
	if _, ok := c.Get("old"); ok {
		t.Error("entry with the smallest stamp should be evicted")
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache[string, int](4)
	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
	// The recency structure must be reset too.
	c.Insert("c", 3)
	if _, ok := c.Get("c"); !ok {
		t.Error("insert after Clear should work")
	}
}

func TestCacheKeysAndEach(t *testing.T) {
	c := NewCache[string, int](4)
	c.Insert("a", 1)
	c.Insert("b", 2)
	if len(c.Keys()) != 2 {
		t.Errorf("Keys = %v", c.Keys())
	}
	sum := 0
	c.Each(func(_ string, v int) { sum += v })
	if sum != 3 {
		t.Errorf("Each sum = %d, want 3", sum)
	}
}

func BenchmarkCacheInsert(b *testing.B) {
	c := NewCache[int, int](128)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Insert(i, i)
	}
}
