// Package cache implements the normalized domain cache: a session scoped
// entity store keyed by type and id, keyed paginated query state, and the
// patch layers that mutate both.
package cache

import (
	"sync"

	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

// EntityStore holds at most one record per key. Records are merged onto,
// never replaced wholesale, and never deleted (removal is a visibility
// concern that lives in the query layer).
type EntityStore struct {
	mu      sync.RWMutex
	records map[types.Key]types.Record
}

func NewEntityStore() *EntityStore {
	return &EntityStore{
		records: map[types.Key]types.Record{},
	}
}

// Upsert merges the supplied fields into the record, creating it if
// absent. Arrays present in fields replace the stored array wholesale.
func (s *EntityStore) Upsert(key types.Key, fields types.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		record = types.Record{}
		s.records[key] = record
	}

	record.Merge(fields)
}

func (s *EntityStore) UpsertAll(entities map[types.Key]types.Record) {
	for key, fields := range entities {
		s.Upsert(key, fields)
	}
}

// Patch applies a transform to an existing record. A missing record is a
// no-op and reported by the return value.
func (s *EntityStore) Patch(key types.Key, fn func(r types.Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return false
	}

	fn(record)
	return true
}

// EnsurePatch guarantees the default shape before transforming, so that
// counter patches never operate on absent fields.
func (s *EntityStore) EnsurePatch(key types.Key, defaults types.Record, fn func(r types.Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		record = types.Record{}
		s.records[key] = record
	}

	for name, def := range defaults {
		record.EnsureKey(name, def)
	}

	fn(record)
}

// Get returns a copy of the record; mutating it does not affect the store.
func (s *EntityStore) Get(key types.Key) (types.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key]
	if !ok {
		return nil, false
	}

	return record.Clone(), true
}

func (s *EntityStore) Contains(key types.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[key]
	return ok
}

func (s *EntityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
