package cache

import (
	"github.com/gamedex/catalog-cache/pkg/catalog/schema"
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

// Denormalizer rehydrates nested object graphs from the flat store for
// rendering. It is a pure read: nothing in the store is modified.
type Denormalizer struct {
	store  *EntityStore
	schema schema.Schema
}

func NewDenormalizer(store *EntityStore, s schema.Schema) *Denormalizer {
	return &Denormalizer{store: store, schema: s}
}

// Entity resolves one record with all reference fields expanded. A
// reference to a record that is missing from the store, or that would
// close a cycle, is left as its identifier.
func (d *Denormalizer) Entity(key types.Key) (types.Record, bool) {
	return d.hydrate(key, map[types.Key]bool{})
}

// List resolves an ordered key list, skipping keys with no record.
func (d *Denormalizer) List(keys []types.Key) []types.Record {
	records := make([]types.Record, 0, len(keys))

	for _, key := range keys {
		if record, ok := d.hydrate(key, map[types.Key]bool{}); ok {
			records = append(records, record)
		}
	}

	return records
}

func (d *Denormalizer) hydrate(key types.Key, visited map[types.Key]bool) (types.Record, bool) {
	record, ok := d.store.Get(key)
	if !ok {
		return nil, false
	}

	visited[key] = true
	defer delete(visited, key)

	for _, ref := range d.schema.References(key.Type) {
		switch ref.Cardinality {
		case schema.Singular:
			id, ok := record.Reference(ref.Field)
			if !ok {
				continue
			}

			childKey := types.NewKey(ref.Target, id)
			if visited[childKey] {
				continue
			}

			if child, ok := d.hydrate(childKey, visited); ok {
				record[ref.Field] = child
			}
		case schema.Array:
			ids := record.References(ref.Field)
			if ids == nil {
				continue
			}

			children := make([]any, 0, len(ids))
			for _, id := range ids {
				childKey := types.NewKey(ref.Target, id)
				if visited[childKey] {
					children = append(children, id)
					continue
				}

				if child, ok := d.hydrate(childKey, visited); ok {
					children = append(children, child)
				} else {
					children = append(children, id)
				}
			}
			record[ref.Field] = children
		}
	}

	return record, true
}
