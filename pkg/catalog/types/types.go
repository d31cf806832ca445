package types

import (
	"fmt"
	"strconv"
	"strings"
)

// EntityType names a normalized domain record kind.
type EntityType string

const (
	Game       EntityType = "Game"
	Review     EntityType = "Review"
	Collection EntityType = "Collection"
	User       EntityType = "User"
	Comment    EntityType = "Comment"
)

// Identifier is the canonical (string) form of an entity id. Upstream
// payloads may carry ids as strings or numbers; IdentifierOf converts both.
type Identifier string

func IdentifierOf(v any) (Identifier, bool) {
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		return Identifier(id), true
	case Identifier:
		if id == "" {
			return "", false
		}
		return id, true
	case float64:
		return Identifier(strconv.FormatInt(int64(id), 10)), true
	case int:
		return Identifier(strconv.Itoa(id)), true
	case int64:
		return Identifier(strconv.FormatInt(id, 10)), true
	default:
		return "", false
	}
}

// Key addresses exactly one record in the store.
type Key struct {
	Type EntityType `json:"type"`
	ID   Identifier `json:"id"`
}

func NewKey(entityType EntityType, id Identifier) Key {
	return Key{Type: entityType, ID: id}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Type, k.ID)
}

func (k Key) IsZero() bool {
	return k.Type == "" && k.ID == ""
}

func ParseKey(s string) (Key, error) {
	typ, id, found := strings.Cut(s, ":")
	if !found || typ == "" || id == "" {
		return Key{}, fmt.Errorf("malformed entity key %q", s)
	}

	return Key{Type: EntityType(typ), ID: Identifier(id)}, nil
}

// Record is the associative entity record held by the store. Reference
// fields hold an Identifier (or a slice of them) once normalized, never
// the nested object itself.
type Record map[string]any

type RecordDecoratorFunc func(r Record)

func NewRecord(decorators ...RecordDecoratorFunc) Record {
	r := Record{}

	for _, decorator := range decorators {
		decorator(r)
	}

	return r
}

func Text(name, value string) RecordDecoratorFunc {
	return func(r Record) { r[name] = value }
}

func Number(name string, value float64) RecordDecoratorFunc {
	return func(r Record) { r[name] = value }
}

func Ref(name string, id Identifier) RecordDecoratorFunc {
	return func(r Record) { r[name] = id }
}

func Refs(name string, ids ...Identifier) RecordDecoratorFunc {
	return func(r Record) { r[name] = append([]Identifier{}, ids...) }
}

// Clone returns a copy that shares no mutable state with the receiver.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	clone := make(Record, len(r))
	for k, v := range r {
		clone[k] = cloneValue(v)
	}

	return clone
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case Record:
		return value.Clone()
	case map[string]any:
		m := make(map[string]any, len(value))
		for k, nested := range value {
			m[k] = cloneValue(nested)
		}
		return m
	case []any:
		s := make([]any, len(value))
		for i := range value {
			s[i] = cloneValue(value[i])
		}
		return s
	case []Identifier:
		return append([]Identifier{}, value...)
	default:
		return v
	}
}

// Merge copies the supplied fields onto the record, one top level field
// at a time. Arrays replace the existing value wholesale.
func (r Record) Merge(fields Record) {
	for k, v := range fields {
		r[k] = cloneValue(v)
	}
}

// EnsureKey initializes a field to the supplied default unless it is
// already present.
func (r Record) EnsureKey(name string, def any) {
	if _, ok := r[name]; !ok {
		r[name] = cloneValue(def)
	}
}

func (r Record) Text(name string) string {
	if s, ok := r[name].(string); ok {
		return s
	}
	return ""
}

// Int reads a numeric field, tolerating the float64 form that JSON
// decoding produces.
func (r Record) Int(name string) int {
	switch n := r[name].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func (r Record) SetInt(name string, value int) {
	r[name] = value
}

// IntIn reads a numeric value from a nested bucket field, such as the
// per status counters on a game record.
func (r Record) IntIn(bucketField, name string) int {
	bucket, ok := r[bucketField].(map[string]any)
	if !ok {
		return 0
	}

	switch n := bucket[name].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func (r Record) SetIntIn(bucketField, name string, value int) {
	bucket, ok := r[bucketField].(map[string]any)
	if !ok {
		bucket = map[string]any{}
		r[bucketField] = bucket
	}

	bucket[name] = value
}

// Reference reads a singular reference field, returning false when the
// field is absent or not yet normalized to an identifier.
func (r Record) Reference(name string) (Identifier, bool) {
	return IdentifierOf(r[name])
}

// References reads an array reference field.
func (r Record) References(name string) []Identifier {
	switch refs := r[name].(type) {
	case []Identifier:
		return refs
	case []any:
		ids := make([]Identifier, 0, len(refs))
		for _, ref := range refs {
			if id, ok := IdentifierOf(ref); ok {
				ids = append(ids, id)
			}
		}
		return ids
	default:
		return nil
	}
}
