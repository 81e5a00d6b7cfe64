package cache

import (
	"errors"
	"sync"
	"testing"
)

type testKey struct {
	group string
	name  string
}

func (k testKey) String() string {
	return k.group + "|" + k.name
}

func TestNew(t *testing.T) {
	cmap := New[testKey, int]()
	if cmap.Count() != 0 {
		t.Errorf("Expected count 0, got %d", cmap.Count())
	}

	if len(cmap.shards) != ShardCount {
		t.Errorf("Expected %d shards, got %d", ShardCount, len(cmap.shards))
	}
}

func TestGetShard_Stable(t *testing.T) {
	cmap := New[testKey, int]()
	key := testKey{group: "/CINT7", name: "nevents"}

	if cmap.GetShard(key) != cmap.GetShard(key) {
		t.Error("Same key returned different shards")
	}
}

func TestSetAndGet(t *testing.T) {
	cmap := New[testKey, int]()
	key := testKey{group: "/CINT7", name: "nevents"}

	cmap.Set(key, 42)

	got, exists := cmap.Get(key)
	if !exists {
		t.Error("Expected key to exist")
	}

	if got != 42 {
		t.Errorf("Expected value 42, got %d", got)
	}

	if cmap.Has(testKey{group: "/CINT7", name: "MuSparse"}) {
		t.Error("Expected key to be absent")
	}
}

func TestSetIfAbsent(t *testing.T) {
	cmap := New[testKey, int]()
	key := testKey{group: "/a", name: "b"}

	if !cmap.SetIfAbsent(key, 1) {
		t.Error("Expected first SetIfAbsent to insert")
	}

	if cmap.SetIfAbsent(key, 2) {
		t.Error("Expected second SetIfAbsent to be rejected")
	}

	if v, _ := cmap.Get(key); v != 1 {
		t.Errorf("Expected value 1, got %d", v)
	}
}

func TestGetOrInsert(t *testing.T) {
	cmap := New[testKey, *int]()
	key := testKey{group: "/CINT7", name: "nevents"}
	calls := 0

	build := func() (*int, error) {
		calls++
		v := calls

		return &v, nil
	}

	first, created, err := cmap.GetOrInsert(key, build)
	if err != nil || !created {
		t.Fatalf("Expected creation, got created=%v err=%v", created, err)
	}

	second, created, err := cmap.GetOrInsert(key, build)
	if err != nil || created {
		t.Fatalf("Expected lookup, got created=%v err=%v", created, err)
	}

	if first != second {
		t.Error("Expected the same pointer on repeated lookups")
	}

	if calls != 1 {
		t.Errorf("Expected build to run once, ran %d times", calls)
	}
}

func TestGetOrInsert_BuildError(t *testing.T) {
	cmap := New[testKey, int]()
	boom := errors.New("boom")

	_, created, err := cmap.GetOrInsert(testKey{group: "/a", name: "b"}, func() (int, error) { return 0, boom })
	if !errors.Is(err, boom) || created {
		t.Errorf("Expected build error, got created=%v err=%v", created, err)
	}

	if cmap.Count() != 0 {
		t.Errorf("Expected nothing inserted, got %d items", cmap.Count())
	}
}

func TestGetOrInsert_Concurrent(t *testing.T) {
	cmap := New[testKey, *int]()
	key := testKey{group: "/CINT7", name: "nevents"}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		calls int
	)

	results := make([]*int, 16)
	for i := range results {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			v, _, _ := cmap.GetOrInsert(key, func() (*int, error) {
				mu.Lock()
				calls++
				mu.Unlock()

				n := i

				return &n, nil
			})
			results[i] = v
		}(i)
	}

	wg.Wait()

	if calls != 1 {
		t.Errorf("Expected a single build, got %d", calls)
	}

	for _, r := range results {
		if r != results[0] {
			t.Fatal("Expected every goroutine to observe the same value")
		}
	}
}

func TestKeysItemsClear(t *testing.T) {
	cmap := New[testKey, int]()
	for i, name := range []string{"a", "b", "c"} {
		cmap.Set(testKey{group: "/g", name: name}, i)
	}

	if len(cmap.Keys()) != 3 {
		t.Errorf("Expected 3 keys, got %d", len(cmap.Keys()))
	}

	items := cmap.Items()
	if items[testKey{group: "/g", name: "c"}] != 2 {
		t.Errorf("Expected item c=2, got %d", items[testKey{group: "/g", name: "c"}])
	}

	cmap.Clear()

	if cmap.Count() != 0 {
		t.Errorf("Expected empty map after Clear, got %d", cmap.Count())
	}
}

func TestRemove(t *testing.T) {
	cmap := New[testKey, int]()
	key := testKey{group: "/g", name: "a"}
	cmap.Set(key, 1)

	if !cmap.Remove(key) {
		t.Error("Expected Remove to report a present key")
	}

	if cmap.Remove(key) {
		t.Error("Expected second Remove to report an absent key")
	}

	if cmap.Has(key) {
		t.Error("Expected key to be gone")
	}
}
