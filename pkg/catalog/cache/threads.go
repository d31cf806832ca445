package cache

import (
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

// ThreadMergeMode selects how a fetched page of a two level comment
// thread is merged into the existing list.
type ThreadMergeMode int

const (
	// ThreadReplace is a first page top level fetch: the results become
	// the entire list.
	ThreadReplace ThreadMergeMode = iota
	// ThreadShift prepends the results ("load newer").
	ThreadShift
	// ThreadPush appends the results ("load older").
	ThreadPush
	// ThreadCollapse is the reply page fetch under a parent: the existing
	// list is filtered down to items that have a parent reference,
	// stripping stale top level placeholders so a subsequent push or
	// shift can repopulate them. The fetched results themselves are not
	// inserted by this mode.
	ThreadCollapse
)

// ThreadMerger merges independently paginated comment sub lists. The
// collapse mode is order sensitive: it must run before the children's
// own push or shift.
type ThreadMerger struct {
	store   *EntityStore
	queries *QuerySet
}

func NewThreadMerger(store *EntityStore, queries *QuerySet) *ThreadMerger {
	return &ThreadMerger{store: store, queries: queries}
}

// Merge computes the new item list for the query and dispatches it.
func (tm *ThreadMerger) Merge(key QueryKey, results []types.Key, count int, next, previous *int, mode ThreadMergeMode) PagedQuery {
	existing, _ := tm.queries.Get(key)

	var items []types.Key

	switch mode {
	case ThreadReplace:
		items = results
	case ThreadShift:
		items = dedup(results, existing.Items)
	case ThreadPush:
		items = dedup(existing.Items, results)
	case ThreadCollapse:
		items = tm.repliesOnly(existing.Items)
		// count and cursors describe the reply page being loaded; the
		// collapse itself leaves the item list ready for it
	}

	return tm.queries.Dispatch(ThreadMerged{
		Key:      key,
		Items:    items,
		Count:    count,
		Next:     next,
		Previous: previous,
	})
}

func (tm *ThreadMerger) repliesOnly(items []types.Key) []types.Key {
	replies := make([]types.Key, 0, len(items))

	for _, item := range items {
		record, ok := tm.store.Get(item)
		if !ok {
			continue
		}

		if _, hasParent := record.Reference("parent"); hasParent {
			replies = append(replies, item)
		}
	}

	return replies
}
