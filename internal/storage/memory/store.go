package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dropcart/session-record-service/internal/core/ports"
)

// Store is an in-memory implementation of ports.BucketProvider
type Store struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

var _ ports.BucketProvider = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		buckets: make(map[string]*Bucket),
	}
}

// Bucket returns the named bucket, creating it on first use.
func (s *Store) Bucket(name string) ports.Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[name]
	if !ok {
		b = &Bucket{name: name, objects: make(map[string]*ports.Object)}
		s.buckets[name] = b
	}
	return b
}

func (s *Store) Close() error {
	return nil
}

// Bucket is one in-memory namespace.
type Bucket struct {
	name    string
	mu      sync.RWMutex
	objects map[string]*ports.Object
}

var _ ports.Bucket = (*Bucket)(nil)

func (b *Bucket) Get(ctx context.Context, key string) (*ports.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, fmt.Errorf("%s/%s: %w", b.name, key, ports.ErrObjectNotFound)
	}

	return copyObject(obj), nil
}

func (b *Bucket) Put(ctx context.Context, key string, value []byte) (*ports.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var version int64
	if obj, exists := b.objects[key]; exists {
		version = obj.Version
	}

	return b.store(key, value, version+1), nil
}

func (b *Bucket) PutIf(ctx context.Context, key string, value []byte, version int64) (*ports.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var current int64
	if obj, exists := b.objects[key]; exists {
		current = obj.Version
	}
	if current != version {
		return nil, fmt.Errorf("%s/%s: expected version %d, found %d: %w",
			b.name, key, version, current, ports.ErrVersionConflict)
	}

	return b.store(key, value, version+1), nil
}

// store must be called with b.mu held.
func (b *Bucket) store(key string, value []byte, version int64) *ports.Object {
	obj := &ports.Object{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Version:   version,
		UpdatedAt: time.Now(),
	}
	b.objects[key] = obj
	return copyObject(obj)
}

// Len returns the number of keys in the bucket.
func (b *Bucket) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

func copyObject(obj *ports.Object) *ports.Object {
	c := *obj
	c.Value = append([]byte(nil), obj.Value...)
	return &c
}
