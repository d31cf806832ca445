package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/gamedex/catalog-cache/pkg/catalog"
	catalogerrors "github.com/gamedex/catalog-cache/pkg/catalog/errors"
	"github.com/gamedex/catalog-cache/pkg/catalog/schema"
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

type fetcherFunc func(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error)

func (f fetcherFunc) FetchPage(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error) {
	return f(ctx, endpoint, page, pageSize)
}

func gamePage(count int, next, previous *int, ids ...string) *catalog.Page {
	results := make([]types.Record, 0, len(ids))
	for _, id := range ids {
		results = append(results, types.Record{"id": id, "title": "game " + id})
	}
	return catalog.NewPage(results, count, next, previous)
}

func newTestCoordinator(f Fetcher, options ...func(*Coordinator)) (*EntityStore, *QuerySet, *Coordinator) {
	store := NewEntityStore()
	queries := NewQuerySet()
	return store, queries, NewCoordinator(store, queries, schema.Default(), f, options...)
}

func TestThatFetchNormalizesThePageIntoTheStore(t *testing.T) {
	is := is.New(t)

	fetched := struct{ page, pageSize int }{}
	store, _, c := newTestCoordinator(fetcherFunc(func(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error) {
		fetched.page, fetched.pageSize = page, pageSize
		return gamePage(12, catalog.PageNumber(2), nil, "1", "2"), nil
	}))

	q, err := c.Fetch(context.Background(), FetchRequest{
		Endpoint:   "/api/games",
		EntityType: types.Game,
		QueryKey:   "games",
	})

	is.NoErr(err)
	is.Equal(fetched.page, 1) // an unspecified page should default to the first
	is.Equal(fetched.pageSize, DefaultPageSize)
	is.Equal(q.Items, gameKeys("1", "2"))
	is.Equal(q.Count, 12)
	is.Equal(q.NextPage(), 2)
	is.True(store.Contains(types.NewKey(types.Game, "1"))) // fetched records should land in the entity store
}

func TestThatFetchContinuesFromTheNextPage(t *testing.T) {
	is := is.New(t)

	pages := map[int]*catalog.Page{
		1: gamePage(3, catalog.PageNumber(2), nil, "1", "2"),
		2: gamePage(3, nil, catalog.PageNumber(1), "3"),
	}

	_, _, c := newTestCoordinator(fetcherFunc(func(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error) {
		return pages[page], nil
	}))

	req := FetchRequest{Endpoint: "/api/games", EntityType: types.Game, QueryKey: "games"}

	_, err := c.Fetch(context.Background(), req)
	is.NoErr(err)

	q, err := c.Fetch(context.Background(), req)
	is.NoErr(err)

	is.Equal(q.Items, gameKeys("1", "2", "3")) // the second fetch should append the next page
	is.True(q.Next == nil)
}

func TestThatOnlyAuthoredResolvesEmptyWithoutASession(t *testing.T) {
	is := is.New(t)

	calls := 0
	_, _, c := newTestCoordinator(fetcherFunc(func(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error) {
		calls++
		return gamePage(1, nil, nil, "1"), nil
	}))

	q, err := c.Fetch(context.Background(), FetchRequest{
		Endpoint:     "/api/library",
		EntityType:   types.Game,
		QueryKey:     "library",
		OnlyAuthored: true,
	})

	is.NoErr(err)
	is.Equal(calls, 0) // no network call should be made without a session
	is.Equal(len(q.Items), 0)
	is.True(q.Loaded) // the empty result is a completed load, not a skipped one
}

func TestThatOnlyAuthoredFetchesWithASession(t *testing.T) {
	is := is.New(t)

	_, _, c := newTestCoordinator(fetcherFunc(func(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error) {
		return gamePage(1, nil, nil, "1"), nil
	}), WithSessionFunc(func(ctx context.Context) bool { return true }))

	q, err := c.Fetch(context.Background(), FetchRequest{
		Endpoint:     "/api/library",
		EntityType:   types.Game,
		QueryKey:     "library",
		OnlyAuthored: true,
	})

	is.NoErr(err)
	is.Equal(q.Items, gameKeys("1"))
}

func TestThatAFailedFetchPreservesLoadedState(t *testing.T) {
	is := is.New(t)

	shouldFail := false
	_, _, c := newTestCoordinator(fetcherFunc(func(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error) {
		if shouldFail {
			return nil, errors.New("upstream is down")
		}
		return gamePage(2, catalog.PageNumber(2), nil, "1"), nil
	}))

	req := FetchRequest{Endpoint: "/api/games", EntityType: types.Game, QueryKey: "games"}

	_, err := c.Fetch(context.Background(), req)
	is.NoErr(err)

	shouldFail = true
	q, err := c.Fetch(context.Background(), req)

	is.True(err != nil)
	is.Equal(q.Items, gameKeys("1")) // the failed page should not destroy what was loaded
	is.Equal(q.Count, 2)
	is.True(q.Err != nil)
}

func TestThatANormalizationFailureFailsTheFetch(t *testing.T) {
	is := is.New(t)

	_, _, c := newTestCoordinator(fetcherFunc(func(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error) {
		return catalog.NewPage([]types.Record{{"title": "no id"}}, 1, nil, nil), nil
	}))

	_, err := c.Fetch(context.Background(), FetchRequest{Endpoint: "/api/games", EntityType: types.Game, QueryKey: "games"})

	is.True(errors.Is(err, catalogerrors.ErrNormalization))
}

func TestThatASupersededResponseIsDroppedEntirely(t *testing.T) {
	is := is.New(t)

	var c *Coordinator
	var store *EntityStore

	newerReq := FetchRequest{Endpoint: "/api/games", EntityType: types.Game, QueryKey: "games", Page: 1}

	calls := 0
	fetcher := fetcherFunc(func(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error) {
		calls++
		if calls == 1 {
			// a newer fetch for the same key starts and completes while
			// this response is still in flight
			_, err := c.Fetch(ctx, newerReq)
			is.NoErr(err)
			return gamePage(99, catalog.PageNumber(5), nil, "stale"), nil
		}
		return gamePage(2, nil, nil, "fresh"), nil
	})

	store = NewEntityStore()
	queries := NewQuerySet()
	c = NewCoordinator(store, queries, schema.Default(), fetcher)

	q, err := c.Fetch(context.Background(), FetchRequest{Endpoint: "/api/games", EntityType: types.Game, QueryKey: "games", Page: 1})

	is.NoErr(err)
	is.Equal(q.Items, gameKeys("fresh")) // the superseded response should not touch the list
	is.Equal(q.Count, 2)                 // nor its count and cursors
	is.True(!store.Contains(types.NewKey(types.Game, "stale")))
}

func TestThatOnSuccessRunsAgainstTheRawPage(t *testing.T) {
	is := is.New(t)

	_, _, c := newTestCoordinator(fetcherFunc(func(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error) {
		return gamePage(1, nil, nil, "1"), nil
	}))

	sawCount := 0
	_, err := c.Fetch(context.Background(), FetchRequest{
		Endpoint:   "/api/games",
		EntityType: types.Game,
		QueryKey:   "games",
		OnSuccess: func(ctx context.Context, page *catalog.Page) {
			sawCount = page.Count
		},
	})

	is.NoErr(err)
	is.Equal(sawCount, 1)
}
