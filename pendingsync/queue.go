package pendingsync

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Flabba2018/elkontroll-alver/config"
	"github.com/sirupsen/logrus"
)

// BlobStore is the key/value slice of local storage the queue persists into.
// Implemented by config.RedisBlobStore; tests use an in-memory map.
type BlobStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
}

// Entry is anything the queue can hold. QueueKey is the sole identity used
// for dedup and removal.
type Entry interface {
	QueueKey() string
}

// DurableQueue is an ordered most-recent-first queue persisted as one JSON
// blob on every mutation. It survives process restart via the blob store; a
// corrupt blob is logged and dropped rather than wedging startup.
type DurableQueue[T Entry] struct {
	mu      sync.Mutex
	store   BlobStore
	logger  *logrus.Logger
	key     string
	limit   int
	entries []T
}

// NewDurableQueue restores the queue from the blob store. limit caps retained
// entries; entries beyond it are dropped oldest-first, a deliberate
// bounded-memory policy rather than a failure.
func NewDurableQueue[T Entry](ctx context.Context, store BlobStore, logger *logrus.Logger, key string, limit int) *DurableQueue[T] {
	q := &DurableQueue[T]{
		store:  store,
		logger: logger,
		key:    key,
		limit:  limit,
	}
	q.restore(ctx)
	return q
}

func (q *DurableQueue[T]) restore(ctx context.Context) {
	raw, err := q.store.Get(ctx, q.key)
	if err != nil {
		config.LogError(q.logger, "pendingsync", "restore", q.key, nil, err)
		return
	}
	if raw == "" {
		return
	}
	var entries []T
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		config.LogError(q.logger, "pendingsync", "restore", "korrupt kødata forkasta", q.key, err)
		return
	}
	if len(entries) > q.limit {
		entries = entries[:q.limit]
	}
	q.entries = entries
}

// Enqueue prepends the entry, replacing any existing entry with the same key.
// The persisted image is rewritten before returning; a storage failure is
// logged and the in-memory queue kept, so a submit never fails on local disk.
func (q *DurableQueue[T]) Enqueue(ctx context.Context, entry T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := entry.QueueKey()
	kept := make([]T, 0, len(q.entries)+1)
	kept = append(kept, entry)
	for _, e := range q.entries {
		if e.QueueKey() != key {
			kept = append(kept, e)
		}
	}
	if len(kept) > q.limit {
		kept = kept[:q.limit]
	}
	q.entries = kept
	q.persistLocked(ctx)
}

// Remove drops the entry with the given key, if present, and rewrites the
// persisted image. Callers invoke it only after a confirmed remote write.
func (q *DurableQueue[T]) Remove(ctx context.Context, key string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.entries[:0]
	removed := false
	for _, e := range q.entries {
		if e.QueueKey() == key {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	if removed {
		q.persistLocked(ctx)
	}
}

// List returns a copy of the queue, most-recent-first.
func (q *DurableQueue[T]) List() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]T(nil), q.entries...)
}

func (q *DurableQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Find returns the entry with the given key, or the zero value and false.
func (q *DurableQueue[T]) Find(key string) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.QueueKey() == key {
			return e, true
		}
	}
	var zero T
	return zero, false
}

func (q *DurableQueue[T]) persistLocked(ctx context.Context) {
	data, err := json.Marshal(q.entries)
	if err != nil {
		config.LogError(q.logger, "pendingsync", "persist", q.key, nil, err)
		return
	}
	if err := q.store.Set(ctx, q.key, string(data)); err != nil {
		config.LogError(q.logger, "pendingsync", "persist", q.key, nil, err)
	}
}
