package idempotency

import (
	"sync"
	"time"
)

// InMemoryRepository keeps records in a map. It backs deployments without
// Postgres and the middleware tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[string]Record)}
}

// Get returns a copy of the record for key, or ErrKeyNotFound.
func (r *InMemoryRepository) Get(key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return &rec, nil
}

// Store saves a new record, or returns ErrKeyExists for a duplicate key.
func (r *InMemoryRepository) Store(record *Record) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.records[record.Key]; dup {
		return ErrKeyExists
	}
	rec := *record
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	r.records[record.Key] = rec
	return nil
}

// DeleteOlderThan removes records created before now minus duration.
func (r *InMemoryRepository) DeleteOlderThan(duration time.Duration) (int64, error) {
	cutoff := time.Now().Add(-duration)

	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key, rec := range r.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(r.records, key)
			deleted++
		}
	}
	return deleted, nil
}
