package cache

import (
	"sync"

	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

// QueryKey distinguishes one independently paginated list from another
// sharing the same query logic, e.g. "reviews:game:42" or "sitemap:a".
type QueryKey string

// DefaultQueryKey is used by queries that only ever have one instance.
const DefaultQueryKey QueryKey = "default"

// PagedQuery is the state of one keyed paginated list. Count is the
// server reported total, not len(Items). Next and Previous are page
// numbers, nil meaning no such page.
type PagedQuery struct {
	Key      QueryKey
	Items    []types.Key
	Count    int
	Next     *int
	Previous *int
	Loading  bool
	Loaded   bool
	Err      error
}

// NextPage returns the next page number, or 0 when there is none.
func (q PagedQuery) NextPage() int {
	if q.Next == nil {
		return 0
	}

	return *q.Next
}

func (q PagedQuery) ContainsItem(item types.Key) bool {
	for _, existing := range q.Items {
		if existing == item {
			return true
		}
	}

	return false
}

// Event is the sealed set of state transitions a paginated query can
// undergo. The reducer matches every variant exhaustively.
type Event interface {
	queryKey() QueryKey
}

// FetchStarted marks the query as loading without clearing what is
// already there, so stale data stays visible while the page loads.
type FetchStarted struct {
	Key QueryKey
}

// FetchSucceeded applies one fetched page. Replace resets the item list
// to the page results; otherwise results are appended, deduplicated
// against the keys already present.
type FetchSucceeded struct {
	Key      QueryKey
	Results  []types.Key
	Count    int
	Next     *int
	Previous *int
	Replace  bool
}

// FetchFailed ends the loading phase and preserves prior items and
// count, so consumers can offer a retry without losing loaded state.
type FetchFailed struct {
	Key QueryKey
	Err error
}

// QueryReset empties the query, e.g. on an explicit "clear search".
type QueryReset struct {
	Key QueryKey
}

// ItemFollowed prepends an item (most recent first). Following an item
// that is already present is a no-op.
type ItemFollowed struct {
	Key  QueryKey
	Item types.Key
}

// ItemUnfollowed removes an item by exact key match. Unfollowing an
// absent item is a no-op.
type ItemUnfollowed struct {
	Key  QueryKey
	Item types.Key
}

// ItemHidden removes an externally deleted item and decrements the
// count, clamped at zero.
type ItemHidden struct {
	Key  QueryKey
	Item types.Key
}

// ThreadMerged replaces the item list with one computed by the thread
// merger (see threads.go) while applying the page's count and cursors.
type ThreadMerged struct {
	Key      QueryKey
	Items    []types.Key
	Count    int
	Next     *int
	Previous *int
}

func (e FetchStarted) queryKey() QueryKey   { return e.Key }
func (e FetchSucceeded) queryKey() QueryKey { return e.Key }
func (e FetchFailed) queryKey() QueryKey    { return e.Key }
func (e QueryReset) queryKey() QueryKey     { return e.Key }
func (e ItemFollowed) queryKey() QueryKey   { return e.Key }
func (e ItemUnfollowed) queryKey() QueryKey { return e.Key }
func (e ItemHidden) queryKey() QueryKey     { return e.Key }
func (e ThreadMerged) queryKey() QueryKey   { return e.Key }

// apply is the pure three-phase (plus mutation events) transition
// function over a single query's state.
func apply(q PagedQuery, e Event) PagedQuery {
	switch event := e.(type) {
	case FetchStarted:
		q.Loading = true
		q.Err = nil
	case FetchSucceeded:
		q.Loading = false
		q.Loaded = true
		q.Err = nil
		q.Count = event.Count
		q.Next = event.Next
		q.Previous = event.Previous
		if event.Replace {
			q.Items = dedup(nil, event.Results)
		} else {
			q.Items = dedup(q.Items, event.Results)
		}
	case FetchFailed:
		q.Loading = false
		q.Err = event.Err
	case QueryReset:
		q.Items = []types.Key{}
		q.Count = 0
		q.Next = nil
		q.Previous = nil
		q.Loading = false
		q.Loaded = false
		q.Err = nil
	case ItemFollowed:
		if !q.ContainsItem(event.Item) {
			q.Items = append([]types.Key{event.Item}, q.Items...)
			q.Count++
		}
	case ItemUnfollowed:
		if q.ContainsItem(event.Item) {
			q.Items = removeItem(q.Items, event.Item)
			q.Count = clampAtZero(q.Count - 1)
		}
	case ItemHidden:
		if q.ContainsItem(event.Item) {
			q.Items = removeItem(q.Items, event.Item)
			q.Count = clampAtZero(q.Count - 1)
		}
	case ThreadMerged:
		q.Loading = false
		q.Loaded = true
		q.Err = nil
		q.Count = event.Count
		q.Next = event.Next
		q.Previous = event.Previous
		q.Items = dedup(nil, event.Items)
	}

	return q
}

// dedup appends incoming keys onto existing ones, preserving append
// order and dropping keys that are already present.
func dedup(existing, incoming []types.Key) []types.Key {
	seen := make(map[types.Key]struct{}, len(existing)+len(incoming))
	items := make([]types.Key, 0, len(existing)+len(incoming))

	for _, lst := range [][]types.Key{existing, incoming} {
		for _, key := range lst {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			items = append(items, key)
		}
	}

	return items
}

func removeItem(items []types.Key, item types.Key) []types.Key {
	filtered := make([]types.Key, 0, len(items))
	for _, existing := range items {
		if existing != item {
			filtered = append(filtered, existing)
		}
	}

	return filtered
}

func clampAtZero(n int) int {
	if n < 0 {
		return 0
	}

	return n
}

// Reactor lets a specific consumer react to events beyond the standard
// transitions, e.g. a followed games list inserting a key when a game is
// followed from an unrelated screen. Reactors run after the standard
// transition for the event's own query, and are offered every event for
// every query they were registered against.
type Reactor func(q PagedQuery, e Event) (PagedQuery, bool)

// QuerySet is the registry of all paginated queries, passed around as an
// explicit value rather than living in package state.
type QuerySet struct {
	mu       sync.RWMutex
	queries  map[QueryKey]PagedQuery
	reactors map[QueryKey][]Reactor
}

func NewQuerySet() *QuerySet {
	return &QuerySet{
		queries:  map[QueryKey]PagedQuery{},
		reactors: map[QueryKey][]Reactor{},
	}
}

// React registers a reactor for the given query key.
func (qs *QuerySet) React(key QueryKey, r Reactor) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	qs.reactors[key] = append(qs.reactors[key], r)
}

// Dispatch routes an event: the standard transition is applied to the
// event's own query, then every registered reactor is consulted.
func (qs *QuerySet) Dispatch(e Event) PagedQuery {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	key := e.queryKey()

	q := qs.queries[key]
	q.Key = key
	q = apply(q, e)
	qs.queries[key] = q

	for reactorKey, reactors := range qs.reactors {
		target := qs.queries[reactorKey]
		target.Key = reactorKey

		changed := false
		for _, react := range reactors {
			if next, ok := react(target, e); ok {
				target = next
				changed = true
			}
		}

		if changed {
			qs.queries[reactorKey] = target
		}
	}

	return qs.queries[key]
}

func (qs *QuerySet) Get(key QueryKey) (PagedQuery, bool) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()

	q, ok := qs.queries[key]
	return q, ok
}

func (qs *QuerySet) Keys() []QueryKey {
	qs.mu.RLock()
	defer qs.mu.RUnlock()

	keys := make([]QueryKey, 0, len(qs.queries))
	for key := range qs.queries {
		keys = append(keys, key)
	}

	return keys
}
