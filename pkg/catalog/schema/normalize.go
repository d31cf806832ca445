package schema

import (
	"fmt"

	"github.com/gamedex/catalog-cache/pkg/catalog/errors"
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

// Normalized is the output of flattening an upstream response: a flat
// entity map plus the ordered keys of the top level records.
type Normalized struct {
	Entities map[types.Key]types.Record
	Result   []types.Key
}

// Normalize flattens a page of records of the given type. It is all or
// nothing: a payload that does not match the schema yields an error and
// no partial output.
func Normalize(s Schema, entityType types.EntityType, payloads []types.Record) (*Normalized, error) {
	n := &Normalized{
		Entities: map[types.Key]types.Record{},
		Result:   make([]types.Key, 0, len(payloads)),
	}

	for idx, payload := range payloads {
		key, err := normalizeInto(n, s, entityType, payload)
		if err != nil {
			return nil, errors.NewNormalizationError(
				fmt.Sprintf("record %d of type %s: %s", idx, entityType, err.Error()),
			)
		}

		n.Result = append(n.Result, key)
	}

	return n, nil
}

// NormalizeOne flattens a single record, such as a nested game object
// returned alongside a list response.
func NormalizeOne(s Schema, entityType types.EntityType, payload types.Record) (*Normalized, error) {
	return Normalize(s, entityType, []types.Record{payload})
}

func normalizeInto(n *Normalized, s Schema, entityType types.EntityType, payload types.Record) (types.Key, error) {
	id, ok := types.IdentifierOf(payload["id"])
	if !ok {
		return types.Key{}, fmt.Errorf("missing or malformed id")
	}

	key := types.NewKey(entityType, id)
	record := payload.Clone()

	for _, ref := range s.References(entityType) {
		value, present := record[ref.Field]
		if !present || value == nil {
			continue
		}

		switch ref.Cardinality {
		case Singular:
			childID, err := normalizeReference(n, s, ref.Target, value)
			if err != nil {
				return types.Key{}, fmt.Errorf("field %s: %w", ref.Field, err)
			}
			record[ref.Field] = childID
		case Array:
			elements, ok := value.([]any)
			if !ok {
				return types.Key{}, fmt.Errorf("field %s: expected an array, got %T", ref.Field, value)
			}

			childIDs := make([]types.Identifier, 0, len(elements))
			for _, element := range elements {
				childID, err := normalizeReference(n, s, ref.Target, element)
				if err != nil {
					return types.Key{}, fmt.Errorf("field %s: %w", ref.Field, err)
				}
				childIDs = append(childIDs, childID)
			}
			record[ref.Field] = childIDs
		}
	}

	if existing, ok := n.Entities[key]; ok {
		existing.Merge(record)
	} else {
		n.Entities[key] = record
	}

	return key, nil
}

func normalizeReference(n *Normalized, s Schema, target types.EntityType, value any) (types.Identifier, error) {
	// a raw foreign id that has not been expanded by the source
	if id, ok := types.IdentifierOf(value); ok {
		return id, nil
	}

	nested, ok := value.(map[string]any)
	if !ok {
		return "", fmt.Errorf("expected an id or a nested %s object, got %T", target, value)
	}

	key, err := normalizeInto(n, s, target, types.Record(nested))
	if err != nil {
		return "", err
	}

	return key.ID, nil
}
