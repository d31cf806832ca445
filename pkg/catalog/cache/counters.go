package cache

import (
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

const (
	addedField         = "added"
	addedByStatusField = "added_by_status"
	likesCountField    = "likes_count"
	likesPositiveField = "likes_positive"
	likesRatingField   = "likes_rating"
	commentsCountField = "comments_count"
)

// CounterPatcher applies immediate local deltas to denormalized counters
// on user actions, before server confirmation. Counters are UI facing
// derived numbers, not ledger grade accounting: a delta that would go
// negative is clamped at zero instead of raised.
type CounterPatcher struct {
	store *EntityStore
}

func NewCounterPatcher(store *EntityStore) *CounterPatcher {
	return &CounterPatcher{store: store}
}

// ApplyStatusChange moves a game between status buckets: the old bucket
// is decremented (clamped), the new one incremented, and the aggregate
// added count adjusted when the game enters or leaves the set entirely.
// Empty strings denote "no status".
func (cp *CounterPatcher) ApplyStatusChange(key types.Key, oldStatus, newStatus string) {
	defaults := types.Record{
		addedField:         0,
		addedByStatusField: map[string]any{},
	}

	cp.store.EnsurePatch(key, defaults, func(r types.Record) {
		if oldStatus != "" {
			r.SetIntIn(addedByStatusField, oldStatus, clampAtZero(r.IntIn(addedByStatusField, oldStatus)-1))
		}

		if newStatus != "" {
			r.SetIntIn(addedByStatusField, newStatus, r.IntIn(addedByStatusField, newStatus)+1)
		}

		switch {
		case oldStatus == "" && newStatus != "":
			r.SetInt(addedField, r.Int(addedField)+1)
		case oldStatus != "" && newStatus == "":
			r.SetInt(addedField, clampAtZero(r.Int(addedField)-1))
		}
	})
}

// ApplyLikeDelta adjusts a review's like counters. delta is +1 on like
// and -1 on unlike; positive tells whether the vote was a positive one.
// The rating is recomputed as the net score of the counted votes.
func (cp *CounterPatcher) ApplyLikeDelta(key types.Key, delta int, positive bool) {
	defaults := types.Record{
		likesCountField:    0,
		likesPositiveField: 0,
		likesRatingField:   0,
	}

	cp.store.EnsurePatch(key, defaults, func(r types.Record) {
		r.SetInt(likesCountField, clampAtZero(r.Int(likesCountField)+delta))

		if positive {
			r.SetInt(likesPositiveField, clampAtZero(r.Int(likesPositiveField)+delta))
		}

		count := r.Int(likesCountField)
		positives := r.Int(likesPositiveField)
		r.SetInt(likesRatingField, positives-(count-positives))
	})
}

// ApplyCommentDelta adjusts a comment count on a review or a parent
// comment, e.g. on create or delete.
func (cp *CounterPatcher) ApplyCommentDelta(key types.Key, delta int) {
	defaults := types.Record{
		commentsCountField: 0,
	}

	cp.store.EnsurePatch(key, defaults, func(r types.Record) {
		r.SetInt(commentsCountField, clampAtZero(r.Int(commentsCountField)+delta))
	})
}

// Confirm applies the server confirmed counters once the authoritative
// response lands. The confirmed values overwrite the optimistic guess,
// last write wins, so a racing optimistic delta is never double counted.
func (cp *CounterPatcher) Confirm(key types.Key, counters types.Record) {
	cp.store.Upsert(key, counters)
}
