package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// ErrRecordNotFound is returned (wrapped) when an id has no stored entity.
// It is sql.ErrNoRows so SQL and in-memory backends are matched the same way.
var ErrRecordNotFound = sql.ErrNoRows

// Entity is the constraint for values held by MemoryRepository: an int64
// identity plus a deep copy used to keep stored values unaliased.
type Entity[T any] interface {
	Key() int64
	Clone() T
}

// MemoryRepository keeps entities in insertion order with id-keyed lookups.
// Values are copied on the way in and on the way out.
type MemoryRepository[T Entity[T]] struct {
	name  string
	mu    sync.RWMutex
	items map[int64]T
	order []int64
}

// NewMemoryRepository constructs an empty repository. The name is used in
// error messages only.
func NewMemoryRepository[T Entity[T]](name string) *MemoryRepository[T] {
	return &MemoryRepository[T]{name: name, items: make(map[int64]T)}
}

// Create stores the entity. Uniqueness is the caller's responsibility; an
// existing id is overwritten in place and keeps its position.
func (r *MemoryRepository[T]) Create(ctx context.Context, item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := item.Key()
	if _, exists := r.items[key]; !exists {
		r.order = append(r.order, key)
	}
	r.items[key] = item.Clone()
	return nil
}

// FindByID returns a copy of the entity or ErrRecordNotFound.
func (r *MemoryRepository[T]) FindByID(ctx context.Context, id int64) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("find %s %d: %w", r.name, id, ErrRecordNotFound)
	}
	return item.Clone(), nil
}

// List returns copies of every entity in insertion order.
func (r *MemoryRepository[T]) List(ctx context.Context) ([]T, error) {
	return r.Snapshot(), nil
}

// Update replaces the stored value for an existing id.
func (r *MemoryRepository[T]) Update(ctx context.Context, item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := item.Key()
	if _, ok := r.items[key]; !ok {
		return fmt.Errorf("update %s %d: %w", r.name, key, ErrRecordNotFound)
	}
	r.items[key] = item.Clone()
	return nil
}

// Delete removes the entity; unknown ids are ignored.
func (r *MemoryRepository[T]) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return nil
	}
	delete(r.items, id)
	for i, key := range r.order {
		if key == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Snapshot returns copies of every entity in insertion order.
func (r *MemoryRepository[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.items[key].Clone())
	}
	return out
}

// Replace swaps the whole content for the given entities, keeping their order.
func (r *MemoryRepository[T]) Replace(items []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[int64]T, len(items))
	r.order = make([]int64, 0, len(items))
	for _, item := range items {
		key := item.Key()
		if _, exists := r.items[key]; !exists {
			r.order = append(r.order, key)
		}
		r.items[key] = item.Clone()
	}
}

// Len returns the number of stored entities.
func (r *MemoryRepository[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
