// Package schema declares, per entity type, which fields are references
// to other entity types. The declarations drive normalization of nested
// upstream payloads into a flat entity map, and the inverse hydration
// performed by the cache.
package schema

import (
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

type Cardinality int

const (
	Singular Cardinality = iota
	Array
)

// Reference declares that a field holds a foreign key (or an array of
// them) to records of the target type.
type Reference struct {
	Field       string
	Target      types.EntityType
	Cardinality Cardinality
}

func One(field string, target types.EntityType) Reference {
	return Reference{Field: field, Target: target, Cardinality: Singular}
}

func Many(field string, target types.EntityType) Reference {
	return Reference{Field: field, Target: target, Cardinality: Array}
}

type Schema map[types.EntityType][]Reference

func (s Schema) References(entityType types.EntityType) []Reference {
	return s[entityType]
}

func (s Schema) Reference(entityType types.EntityType, field string) (Reference, bool) {
	for _, ref := range s[entityType] {
		if ref.Field == field {
			return ref, true
		}
	}

	return Reference{}, false
}

// Default returns the schema graph for the catalog domain.
func Default() Schema {
	return Schema{
		types.Game: {
			Many("similar_games", types.Game),
		},
		types.Review: {
			One("game", types.Game),
			One("user", types.User),
			Many("comments", types.Comment),
		},
		types.Collection: {
			One("creator", types.User),
			Many("games", types.Game),
		},
		types.Comment: {
			One("user", types.User),
			One("parent", types.Comment),
		},
		types.User: {},
	}
}
