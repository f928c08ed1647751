package upload

import (
	"context"
	"errors"
	"sync"
)

// DefaultHistorySize is the number of records kept by a MemoryHistory
// created with a non-positive capacity.
const DefaultHistorySize = 256

// ErrRecordNotFound is returned when a record cannot be found by ID.
var ErrRecordNotFound = errors.New("upload: record not found")

// History stores delivery records.
type History interface {
	// Save persists a record. If it already exists, it is updated.
	Save(ctx context.Context, rec *Record) error

	// FindByID retrieves a record by task ID.
	// Returns ErrRecordNotFound if the record does not exist.
	FindByID(ctx context.Context, id string) (*Record, error)

	// List returns all records, newest first.
	List(ctx context.Context) ([]*Record, error)
}

// Compile-time check that MemoryHistory implements History.
var _ History = (*MemoryHistory)(nil)

// MemoryHistory is a bounded in-memory History. Once capacity records are
// stored, saving a new record evicts the oldest one.
type MemoryHistory struct {
	mu       sync.RWMutex
	records  map[string]*Record
	order    []string
	capacity int
}

// NewMemoryHistory creates a history keeping at most capacity records.
func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &MemoryHistory{
		records:  make(map[string]*Record),
		capacity: capacity,
	}
}

// Save stores a clone of rec to avoid external mutations.
func (h *MemoryHistory) Save(_ context.Context, rec *Record) error {
	clone := rec.Clone()

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.records[clone.ID]; !ok {
		h.order = append(h.order, clone.ID)
		for len(h.order) > h.capacity {
			delete(h.records, h.order[0])
			h.order = h.order[1:]
		}
	}
	h.records[clone.ID] = clone
	return nil
}

// FindByID returns a clone of the record with the given ID.
func (h *MemoryHistory) FindByID(_ context.Context, id string) (*Record, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// List returns clones of all records, newest first.
func (h *MemoryHistory) List(_ context.Context) ([]*Record, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]*Record, 0, len(h.order))
	for i := len(h.order) - 1; i >= 0; i-- {
		result = append(result, h.records[h.order[i]].Clone())
	}
	return result, nil
}
