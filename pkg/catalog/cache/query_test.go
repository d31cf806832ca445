package cache

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/gamedex/catalog-cache/pkg/catalog"
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

func gameKeys(ids ...types.Identifier) []types.Key {
	keys := make([]types.Key, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, types.NewKey(types.Game, id))
	}
	return keys
}

func TestThatFetchStartedPreservesLoadedItems(t *testing.T) {
	is := is.New(t)

	qs := NewQuerySet()
	qs.Dispatch(FetchSucceeded{Key: "games", Results: gameKeys("1", "2"), Count: 2, Replace: true})

	q := qs.Dispatch(FetchStarted{Key: "games"})

	is.True(q.Loading)
	is.Equal(len(q.Items), 2) // stale items should stay visible while the next page loads
}

func TestThatReplaceResetsTheItemList(t *testing.T) {
	is := is.New(t)

	qs := NewQuerySet()
	qs.Dispatch(FetchSucceeded{Key: "games", Results: gameKeys("1", "2"), Count: 2, Replace: true})

	q := qs.Dispatch(FetchSucceeded{Key: "games", Results: gameKeys("3"), Count: 1, Replace: true})

	is.Equal(q.Items, gameKeys("3"))
	is.Equal(q.Count, 1)
}

func TestThatAppendDeduplicatesAgainstLoadedItems(t *testing.T) {
	is := is.New(t)

	qs := NewQuerySet()
	qs.Dispatch(FetchSucceeded{Key: "games", Results: gameKeys("1", "2"), Count: 3, Next: catalog.PageNumber(2), Replace: true})

	q := qs.Dispatch(FetchSucceeded{Key: "games", Results: gameKeys("2", "3"), Count: 3})

	is.Equal(q.Items, gameKeys("1", "2", "3")) // the overlapping key should appear once, in its original position
	is.True(q.Next == nil)
	is.True(q.Loaded)
}

func TestThatFetchFailedPreservesItemsAndCount(t *testing.T) {
	is := is.New(t)

	qs := NewQuerySet()
	qs.Dispatch(FetchSucceeded{Key: "games", Results: gameKeys("1"), Count: 12, Next: catalog.PageNumber(2), Replace: true})
	qs.Dispatch(FetchStarted{Key: "games"})

	q := qs.Dispatch(FetchFailed{Key: "games", Err: errors.New("boom")})

	is.True(!q.Loading)
	is.True(q.Err != nil)
	is.Equal(len(q.Items), 1) // a failed page load should not throw away what was already loaded
	is.Equal(q.Count, 12)
}

func TestThatQueryResetEmptiesEverything(t *testing.T) {
	is := is.New(t)

	qs := NewQuerySet()
	qs.Dispatch(FetchSucceeded{Key: "games", Results: gameKeys("1"), Count: 12, Next: catalog.PageNumber(2), Replace: true})

	q := qs.Dispatch(QueryReset{Key: "games"})

	is.Equal(len(q.Items), 0)
	is.Equal(q.Count, 0)
	is.True(q.Next == nil)
	is.True(!q.Loaded)
}

func TestThatFollowingAnItemIsIdempotent(t *testing.T) {
	is := is.New(t)

	qs := NewQuerySet()
	qs.Dispatch(FetchSucceeded{Key: "followed", Results: gameKeys("1"), Count: 1, Replace: true})

	qs.Dispatch(ItemFollowed{Key: "followed", Item: types.NewKey(types.Game, "2")})
	q := qs.Dispatch(ItemFollowed{Key: "followed", Item: types.NewKey(types.Game, "2")})

	is.Equal(q.Items, gameKeys("2", "1")) // the followed item should be prepended exactly once
	is.Equal(q.Count, 2)
}

func TestThatUnfollowingAnAbsentItemIsANoOp(t *testing.T) {
	is := is.New(t)

	qs := NewQuerySet()
	qs.Dispatch(FetchSucceeded{Key: "followed", Results: gameKeys("1"), Count: 1, Replace: true})

	q := qs.Dispatch(ItemUnfollowed{Key: "followed", Item: types.NewKey(types.Game, "99")})

	is.Equal(q.Items, gameKeys("1"))
	is.Equal(q.Count, 1)
}

func TestThatHidingClampsTheCountAtZero(t *testing.T) {
	is := is.New(t)

	qs := NewQuerySet()
	qs.Dispatch(FetchSucceeded{Key: "games", Results: gameKeys("1"), Count: 0, Replace: true})

	q := qs.Dispatch(ItemHidden{Key: "games", Item: types.NewKey(types.Game, "1")})

	is.Equal(len(q.Items), 0)
	is.Equal(q.Count, 0) // an inconsistent server count should never go negative
}

func TestThatReactorsSeeEventsDispatchedToOtherKeys(t *testing.T) {
	is := is.New(t)

	qs := NewQuerySet()
	qs.Dispatch(FetchSucceeded{Key: "discover", Results: gameKeys("1", "2"), Count: 2, Replace: true})

	qs.React("discover", func(q PagedQuery, e Event) (PagedQuery, bool) {
		hidden, ok := e.(ItemHidden)
		if !ok || hidden.Key == q.Key || !q.ContainsItem(hidden.Item) {
			return q, false
		}

		q.Items = removeItem(q.Items, hidden.Item)
		q.Count = clampAtZero(q.Count - 1)
		return q, true
	})

	qs.Dispatch(ItemHidden{Key: "library", Item: types.NewKey(types.Game, "2")})

	q, _ := qs.Get("discover")
	is.Equal(q.Items, gameKeys("1")) // hiding from one feed should propagate to the reacting feed
	is.Equal(q.Count, 1)
}
