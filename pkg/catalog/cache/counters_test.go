package cache

import (
	"testing"

	"github.com/matryer/is"

	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

func TestThatAddingAGameIncrementsBothCounters(t *testing.T) {
	is := is.New(t)

	store := NewEntityStore()
	key := types.NewKey(types.Game, "g1")
	store.Upsert(key, types.NewRecord(types.Number("added", 10)))
	store.Patch(key, func(r types.Record) {
		r.SetIntIn("added_by_status", "owned", 4)
	})

	cp := NewCounterPatcher(store)
	cp.ApplyStatusChange(key, "", "owned")

	record, _ := store.Get(key)
	is.Equal(record.Int("added"), 11)                      // entering the set should bump the aggregate
	is.Equal(record.IntIn("added_by_status", "owned"), 5) // the new bucket should be incremented
}

func TestThatMovingBetweenStatusesLeavesTheAggregateAlone(t *testing.T) {
	is := is.New(t)

	store := NewEntityStore()
	key := types.NewKey(types.Game, "g1")
	store.Upsert(key, types.NewRecord(types.Number("added", 10)))
	store.Patch(key, func(r types.Record) {
		r.SetIntIn("added_by_status", "owned", 4)
		r.SetIntIn("added_by_status", "beaten", 2)
	})

	cp := NewCounterPatcher(store)
	cp.ApplyStatusChange(key, "owned", "beaten")

	record, _ := store.Get(key)
	is.Equal(record.Int("added"), 10) // a move between buckets is not an add
	is.Equal(record.IntIn("added_by_status", "owned"), 3)
	is.Equal(record.IntIn("added_by_status", "beaten"), 3)
}

func TestThatRemovingAStatusDecrementsTheAggregate(t *testing.T) {
	is := is.New(t)

	store := NewEntityStore()
	key := types.NewKey(types.Game, "g1")
	store.Upsert(key, types.NewRecord(types.Number("added", 1)))
	store.Patch(key, func(r types.Record) {
		r.SetIntIn("added_by_status", "owned", 1)
	})

	cp := NewCounterPatcher(store)
	cp.ApplyStatusChange(key, "owned", "")

	record, _ := store.Get(key)
	is.Equal(record.Int("added"), 0)
	is.Equal(record.IntIn("added_by_status", "owned"), 0)
}

func TestThatStatusCountersClampAtZero(t *testing.T) {
	is := is.New(t)

	store := NewEntityStore()
	key := types.NewKey(types.Game, "g1")

	cp := NewCounterPatcher(store)
	cp.ApplyStatusChange(key, "owned", "")

	record, _ := store.Get(key)
	is.Equal(record.IntIn("added_by_status", "owned"), 0) // decrementing an empty bucket should clamp, not go negative
	is.Equal(record.Int("added"), 0)
}

func TestThatLikeDeltasRecomputeTheRating(t *testing.T) {
	is := is.New(t)

	store := NewEntityStore()
	key := types.NewKey(types.Review, "r1")
	store.Upsert(key, types.NewRecord(
		types.Number("likes_count", 4),
		types.Number("likes_positive", 3),
		types.Number("likes_rating", 2),
	))

	cp := NewCounterPatcher(store)
	cp.ApplyLikeDelta(key, 1, true)

	record, _ := store.Get(key)
	is.Equal(record.Int("likes_count"), 5)
	is.Equal(record.Int("likes_positive"), 4)
	is.Equal(record.Int("likes_rating"), 3) // rating is positives minus negatives

	cp.ApplyLikeDelta(key, -1, true)

	record, _ = store.Get(key)
	is.Equal(record.Int("likes_count"), 4)
	is.Equal(record.Int("likes_rating"), 2) // retracting the like should restore the rating
}

func TestThatLikeCountersClampAtZero(t *testing.T) {
	is := is.New(t)

	store := NewEntityStore()
	key := types.NewKey(types.Review, "r1")

	cp := NewCounterPatcher(store)
	cp.ApplyLikeDelta(key, -1, false)

	record, _ := store.Get(key)
	is.Equal(record.Int("likes_count"), 0)
	is.Equal(record.Int("likes_rating"), 0)
}

func TestThatCommentDeltasAdjustTheCount(t *testing.T) {
	is := is.New(t)

	store := NewEntityStore()
	key := types.NewKey(types.Review, "r1")

	cp := NewCounterPatcher(store)
	cp.ApplyCommentDelta(key, 1)
	cp.ApplyCommentDelta(key, 1)
	cp.ApplyCommentDelta(key, -1)

	record, _ := store.Get(key)
	is.Equal(record.Int("comments_count"), 1)
}

func TestThatConfirmOverwritesTheOptimisticGuess(t *testing.T) {
	is := is.New(t)

	store := NewEntityStore()
	key := types.NewKey(types.Game, "g1")

	cp := NewCounterPatcher(store)
	cp.ApplyStatusChange(key, "", "owned")

	cp.Confirm(key, types.NewRecord(types.Number("added", 12)))

	record, _ := store.Get(key)
	is.Equal(record.Int("added"), 12) // the server confirmed value should win over the local guess
}
