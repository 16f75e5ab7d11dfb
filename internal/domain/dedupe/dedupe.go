// Package dedupe tracks idempotency keys of write requests.
package dedupe

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 4096

// Deduper records seen keys to ensure at-most-once acceptance of a write.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets an id so the write can be retried, used when the write
	// was rejected before reaching the chain.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// lruDeduper bounds memory by evicting the least recently recorded key.
type lruDeduper struct {
	maxSize int
	cache   *lru.Cache[string, struct{}]
}

// NewInMemoryDeduper creates a bounded deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &lruDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	cache, err := lru.New[string, struct{}](d.maxSize)
	if err != nil {
		// only returned for a non-positive size, which options prevent
		panic(err)
	}
	d.cache = cache
	return d
}

func (d *lruDeduper) SeenAndRecord(_ context.Context, id string) bool {
	seen, _ := d.cache.ContainsOrAdd(id, struct{}{})
	return seen
}

func (d *lruDeduper) Unrecord(_ context.Context, id string) {
	d.cache.Remove(id)
}

func (d *lruDeduper) Size() int64 {
	return int64(d.cache.Len())
}
