package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dropcart/session-record-service/internal/core/ports"
)

func TestMemoryStore_PutGet(t *testing.T) {
	store := New()
	bucket := store.Bucket("events")

	obj, err := bucket.Put(context.Background(), "s1.json", []byte(`[]`))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if obj.Version != 1 {
		t.Errorf("Version = %d, want 1", obj.Version)
	}

	retrieved, err := bucket.Get(context.Background(), "s1.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(retrieved.Value) != `[]` {
		t.Errorf("Value = %s, want []", retrieved.Value)
	}

	obj, err = bucket.Put(context.Background(), "s1.json", []byte(`[1]`))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if obj.Version != 2 {
		t.Errorf("Version after overwrite = %d, want 2", obj.Version)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := New()

	_, err := store.Bucket("metadata").Get(context.Background(), "nope")
	if !errors.Is(err, ports.ErrObjectNotFound) {
		t.Errorf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestMemoryStore_BucketsAreIsolated(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.Bucket("metadata").Put(ctx, "recent_sessions", []byte(`{}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, err := store.Bucket("index").Get(ctx, "recent_sessions"); !errors.Is(err, ports.ErrObjectNotFound) {
		t.Errorf("index bucket sees metadata key: err = %v", err)
	}
	if store.Bucket("metadata") != store.Bucket("metadata") {
		t.Error("Bucket() should return the same bucket for the same name")
	}
}

func TestMemoryStore_PutIf(t *testing.T) {
	bucket := New().Bucket("index")
	ctx := context.Background()

	obj, err := bucket.PutIf(ctx, "k", []byte("a"), 0)
	if err != nil {
		t.Fatalf("PutIf(create) error = %v", err)
	}

	if _, err := bucket.PutIf(ctx, "k", []byte("b"), 0); !errors.Is(err, ports.ErrVersionConflict) {
		t.Errorf("PutIf(create existing) error = %v, want ErrVersionConflict", err)
	}

	obj, err = bucket.PutIf(ctx, "k", []byte("c"), obj.Version)
	if err != nil {
		t.Fatalf("PutIf(matching version) error = %v", err)
	}
	if obj.Version != 2 {
		t.Errorf("Version = %d, want 2", obj.Version)
	}

	if _, err := bucket.PutIf(ctx, "k", []byte("d"), 1); !errors.Is(err, ports.ErrVersionConflict) {
		t.Errorf("PutIf(stale version) error = %v, want ErrVersionConflict", err)
	}

	got, _ := bucket.Get(ctx, "k")
	if string(got.Value) != "c" {
		t.Errorf("Value = %s, want c", got.Value)
	}
}

func TestMemoryStore_ValuesAreCopied(t *testing.T) {
	bucket := New().Bucket("events")
	ctx := context.Background()

	value := []byte("abc")
	if _, err := bucket.Put(ctx, "k", value); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	value[0] = 'X'

	got, _ := bucket.Get(ctx, "k")
	got.Value[1] = 'Y'

	again, _ := bucket.Get(ctx, "k")
	if string(again.Value) != "abc" {
		t.Errorf("stored value mutated: %s", again.Value)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New().Bucket("events").Put(ctx, "k", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Put() error = %v, want context.Canceled", err)
	}
}

func TestMemoryStore_ConcurrentPutIf(t *testing.T) {
	bucket := New().Bucket("index")
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := bucket.PutIf(ctx, "k", []byte("v"), 0); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("create-only PutIf succeeded %d times, want 1", wins)
	}
	if n := bucket.(*Bucket).Len(); n != 1 {
		t.Errorf("Len() = %d, want 1", n)
	}
}
