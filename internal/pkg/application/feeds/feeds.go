// Package feeds binds the cache engine to the configured set of
// paginated feeds (game lists, discover, collections, comment threads,
// profile lists, sitemap letters) and exposes the operations the
// presentation layer consumes.
package feeds

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gamedex/catalog-cache/internal/pkg/application/notifications"
	"github.com/gamedex/catalog-cache/internal/pkg/application/sessions"
	"github.com/gamedex/catalog-cache/pkg/catalog"
	"github.com/gamedex/catalog-cache/pkg/catalog/cache"
	"github.com/gamedex/catalog-cache/pkg/catalog/client"
	"github.com/gamedex/catalog-cache/pkg/catalog/errors"
	"github.com/gamedex/catalog-cache/pkg/catalog/schema"
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

// Params carries the request parameters a keyed feed derives its query
// key and endpoint from.
type Params map[string]string

// FeedPage is a fetched (or cached) page of a feed, hydrated for
// rendering.
type FeedPage struct {
	Query cache.PagedQuery
	Items []types.Record
}

type Engine interface {
	FetchFeed(ctx context.Context, feed string, params Params, page int, reset bool) (FeedPage, error)
	PeekFeed(feed string, params Params) (FeedPage, error)
	ResetFeed(ctx context.Context, feed string, params Params) error

	RetrieveEntity(ctx context.Context, entityType types.EntityType, id types.Identifier) (types.Record, error)

	FollowItem(ctx context.Context, feed string, params Params, item types.Key) (cache.PagedQuery, error)
	UnfollowItem(ctx context.Context, feed string, params Params, item types.Key) (cache.PagedQuery, error)
	HideGame(ctx context.Context, feed string, params Params, game types.Identifier) error

	SetGameStatus(ctx context.Context, game types.Identifier, oldStatus, newStatus string) (types.Record, error)
	RateReview(ctx context.Context, review types.Identifier, positive bool, delta int) (types.Record, error)
	CreateComment(ctx context.Context, review types.Identifier, parent types.Identifier, comment types.Record) (types.Record, error)

	FetchThreadPage(ctx context.Context, feed string, params Params, mode cache.ThreadMergeMode, page int) (FeedPage, error)
	FetchReplies(ctx context.Context, feed string, params Params, page int) (FeedPage, error)

	Sessions() sessions.Registry

	Start() error
	Stop() error
}

type engineImpl struct {
	feeds map[string]FeedConfig

	store       *cache.EntityStore
	queries     *cache.QuerySet
	coordinator *cache.Coordinator
	merger      *cache.ThreadMerger
	counters    *cache.CounterPatcher
	denorm      *cache.Denormalizer
	schema      schema.Schema

	source   client.CatalogClient
	sessions sessions.Registry
	notifier notifications.Notifier

	mu      sync.Mutex
	reacted map[cache.QueryKey]bool
}

func New(ctx context.Context, cfg Config, source client.CatalogClient, options ...func(*engineImpl)) (Engine, error) {
	store := cache.NewEntityStore()
	queries := cache.NewQuerySet()
	s := schema.Default()

	app := &engineImpl{
		feeds:    map[string]FeedConfig{},
		store:    store,
		queries:  queries,
		merger:   cache.NewThreadMerger(store, queries),
		counters: cache.NewCounterPatcher(store),
		denorm:   cache.NewDenormalizer(store, s),
		schema:   s,
		source:   source,
		sessions: sessions.NewRegistry(),
		reacted:  map[cache.QueryKey]bool{},
	}

	for _, feed := range cfg.Feeds {
		app.feeds[feed.Name] = feed
	}

	if cfg.Notifier.Endpoint != "" {
		app.notifier, _ = notifications.NewNotifier(ctx, cfg.Notifier.Endpoint)
	}

	for _, option := range options {
		option(app)
	}

	app.coordinator = cache.NewCoordinator(store, queries, s, source,
		cache.WithSessionFunc(sessions.HasSession(app.sessions)),
	)

	return app, nil
}

// WithSessions replaces the default empty session registry, e.g. with
// one seeded from configuration.
func WithSessions(r sessions.Registry) func(*engineImpl) {
	return func(app *engineImpl) {
		app.sessions = r
	}
}

func (app *engineImpl) Start() error {
	if app.notifier != nil {
		return app.notifier.Start()
	}

	return nil
}

func (app *engineImpl) Stop() error {
	if app.notifier != nil {
		return app.notifier.Stop()
	}

	return nil
}

func (app *engineImpl) Sessions() sessions.Registry {
	return app.sessions
}

func (app *engineImpl) FetchFeed(ctx context.Context, feed string, params Params, page int, reset bool) (FeedPage, error) {
	cfg, key, endpoint, err := app.resolve(feed, params)
	if err != nil {
		return FeedPage{}, err
	}

	if reset {
		app.coordinator.Reset(key)
	}

	q, err := app.coordinator.Fetch(ctx, cache.FetchRequest{
		Endpoint:     endpoint,
		EntityType:   cfg.Type(),
		QueryKey:     key,
		Page:         page,
		PageSize:     cfg.PageSize,
		Append:       cfg.Append,
		OnlyAuthored: cfg.OnlyAuthored,
	})
	if err != nil {
		return FeedPage{Query: q}, err
	}

	return app.hydrate(q), nil
}

// PeekFeed returns the cached state of a feed without fetching.
func (app *engineImpl) PeekFeed(feed string, params Params) (FeedPage, error) {
	_, key, _, err := app.resolve(feed, params)
	if err != nil {
		return FeedPage{}, err
	}

	q, _ := app.queries.Get(key)
	q.Key = key

	return app.hydrate(q), nil
}

func (app *engineImpl) ResetFeed(ctx context.Context, feed string, params Params) error {
	_, key, _, err := app.resolve(feed, params)
	if err != nil {
		return err
	}

	app.coordinator.Reset(key)
	return nil
}

func (app *engineImpl) RetrieveEntity(ctx context.Context, entityType types.EntityType, id types.Identifier) (types.Record, error) {
	key := types.NewKey(entityType, id)

	if record, ok := app.denorm.Entity(key); ok {
		return record, nil
	}

	return nil, errors.NewNotFoundError(fmt.Sprintf("no cached record for %s", key))
}

func (app *engineImpl) FollowItem(ctx context.Context, feed string, params Params, item types.Key) (cache.PagedQuery, error) {
	_, key, _, err := app.resolve(feed, params)
	if err != nil {
		return cache.PagedQuery{}, err
	}

	return app.queries.Dispatch(cache.ItemFollowed{Key: key, Item: item}), nil
}

func (app *engineImpl) UnfollowItem(ctx context.Context, feed string, params Params, item types.Key) (cache.PagedQuery, error) {
	_, key, _, err := app.resolve(feed, params)
	if err != nil {
		return cache.PagedQuery{}, err
	}

	return app.queries.Dispatch(cache.ItemUnfollowed{Key: key, Item: item}), nil
}

// HideGame removes a game from the named feed and, via the registered
// reactors, from every feed configured to drop hidden items.
func (app *engineImpl) HideGame(ctx context.Context, feed string, params Params, game types.Identifier) error {
	_, key, _, err := app.resolve(feed, params)
	if err != nil {
		return err
	}

	app.queries.Dispatch(cache.ItemHidden{Key: key, Item: types.NewKey(types.Game, game)})
	return nil
}

func (app *engineImpl) SetGameStatus(ctx context.Context, game types.Identifier, oldStatus, newStatus string) (types.Record, error) {
	key := types.NewKey(types.Game, game)

	// optimistic: the UI sees the new counters before the server answers
	app.counters.ApplyStatusChange(key, oldStatus, newStatus)

	confirmed, err := app.source.SubmitAction(ctx, fmt.Sprintf("/api/games/%s/status", game), types.Record{
		"status": newStatus,
	})
	if err != nil {
		return nil, err
	}

	app.counters.Confirm(key, confirmed)
	app.notifyChanged(ctx, key, confirmed)

	record, _ := app.denorm.Entity(key)
	return record, nil
}

func (app *engineImpl) RateReview(ctx context.Context, review types.Identifier, positive bool, delta int) (types.Record, error) {
	key := types.NewKey(types.Review, review)

	app.counters.ApplyLikeDelta(key, delta, positive)

	confirmed, err := app.source.SubmitAction(ctx, fmt.Sprintf("/api/reviews/%s/likes", review), types.Record{
		"positive": positive,
		"delta":    delta,
	})
	if err != nil {
		return nil, err
	}

	app.counters.Confirm(key, confirmed)
	app.notifyChanged(ctx, key, confirmed)

	record, _ := app.denorm.Entity(key)
	return record, nil
}

func (app *engineImpl) CreateComment(ctx context.Context, review types.Identifier, parent types.Identifier, comment types.Record) (types.Record, error) {
	reviewKey := types.NewKey(types.Review, review)

	app.counters.ApplyCommentDelta(reviewKey, 1)
	if parent != "" {
		app.counters.ApplyCommentDelta(types.NewKey(types.Comment, parent), 1)
	}

	body := comment.Clone()
	if parent != "" {
		body["parent"] = parent
	}

	created, err := app.source.SubmitAction(ctx, fmt.Sprintf("/api/reviews/%s/comments", review), body)
	if err != nil {
		return nil, err
	}

	normalized, err := schema.NormalizeOne(app.schema, types.Comment, created)
	if err != nil {
		return nil, err
	}

	app.store.UpsertAll(normalized.Entities)
	app.notifyChanged(ctx, reviewKey, created)

	return created, nil
}

func (app *engineImpl) FetchThreadPage(ctx context.Context, feed string, params Params, mode cache.ThreadMergeMode, page int) (FeedPage, error) {
	cfg, key, endpoint, err := app.resolve(feed, params)
	if err != nil {
		return FeedPage{}, err
	}

	if !cfg.Thread {
		return FeedPage{}, errors.NewBadRequestError(fmt.Sprintf("feed %s is not a thread feed", feed))
	}

	result, normalized, err := app.fetchAndNormalize(ctx, cfg, key, endpoint, page)
	if err != nil {
		q, _ := app.queries.Get(key)
		return FeedPage{Query: q}, err
	}

	q := app.merger.Merge(key, normalized.Result, result.Count, result.Next, result.Previous, mode)

	return app.hydrate(q), nil
}

// FetchReplies loads one page of replies under a parent comment. The
// collapse merge runs first, stripping stale top level placeholders,
// then the fetched replies are pushed.
func (app *engineImpl) FetchReplies(ctx context.Context, feed string, params Params, page int) (FeedPage, error) {
	cfg, key, endpoint, err := app.resolve(feed, params)
	if err != nil {
		return FeedPage{}, err
	}

	if !cfg.Thread {
		return FeedPage{}, errors.NewBadRequestError(fmt.Sprintf("feed %s is not a thread feed", feed))
	}

	result, normalized, err := app.fetchAndNormalize(ctx, cfg, key, endpoint, page)
	if err != nil {
		q, _ := app.queries.Get(key)
		return FeedPage{Query: q}, err
	}

	app.merger.Merge(key, nil, result.Count, result.Next, result.Previous, cache.ThreadCollapse)
	q := app.merger.Merge(key, normalized.Result, result.Count, result.Next, result.Previous, cache.ThreadPush)

	return app.hydrate(q), nil
}

func (app *engineImpl) fetchAndNormalize(ctx context.Context, cfg FeedConfig, key cache.QueryKey, endpoint string, page int) (*catalog.Page, *schema.Normalized, error) {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = cache.DefaultPageSize
	}
	if page <= 0 {
		page = 1
	}

	app.queries.Dispatch(cache.FetchStarted{Key: key})

	result, err := app.source.FetchPage(ctx, endpoint, page, pageSize)
	if err != nil {
		app.queries.Dispatch(cache.FetchFailed{Key: key, Err: err})
		return nil, nil, err
	}

	normalized, err := schema.Normalize(app.schema, cfg.Type(), result.Results)
	if err != nil {
		app.queries.Dispatch(cache.FetchFailed{Key: key, Err: err})
		return nil, nil, err
	}

	app.store.UpsertAll(normalized.Entities)

	return result, normalized, nil
}

func (app *engineImpl) hydrate(q cache.PagedQuery) FeedPage {
	return FeedPage{
		Query: q,
		Items: app.denorm.List(q.Items),
	}
}

func (app *engineImpl) notifyChanged(ctx context.Context, key types.Key, record types.Record) {
	if app.notifier != nil {
		app.notifier.EntityChanged(ctx, key, record)
	}
}

// resolve maps a feed name and its parameters to the feed config, the
// query key, and the endpoint path.
func (app *engineImpl) resolve(feed string, params Params) (FeedConfig, cache.QueryKey, string, error) {
	cfg, ok := app.feeds[feed]
	if !ok {
		return FeedConfig{}, "", "", errors.NewUnknownFeedError(fmt.Sprintf("no feed named %s is configured", feed))
	}

	key := cache.QueryKey(cfg.Name)
	endpoint := cfg.Endpoint

	for _, param := range cfg.KeyedBy {
		value, ok := params[param]
		if !ok || value == "" {
			return FeedConfig{}, "", "", errors.NewBadRequestError(fmt.Sprintf("feed %s requires parameter %s", feed, param))
		}

		key += cache.QueryKey(":" + value)
		endpoint = strings.ReplaceAll(endpoint, "{"+param+"}", value)
	}

	app.ensureReactors(cfg, key)

	return cfg, key, endpoint, nil
}

// ensureReactors registers, once per query key, the reactor that drops
// items hidden from unrelated feeds.
func (app *engineImpl) ensureReactors(cfg FeedConfig, key cache.QueryKey) {
	if !cfg.RemovesHidden {
		return
	}

	app.mu.Lock()
	defer app.mu.Unlock()

	if app.reacted[key] {
		return
	}
	app.reacted[key] = true

	app.queries.React(key, func(q cache.PagedQuery, e cache.Event) (cache.PagedQuery, bool) {
		hidden, ok := e.(cache.ItemHidden)
		if !ok || hidden.Key == q.Key || !q.ContainsItem(hidden.Item) {
			return q, false
		}

		items := make([]types.Key, 0, len(q.Items))
		for _, item := range q.Items {
			if item != hidden.Item {
				items = append(items, item)
			}
		}

		q.Items = items
		if q.Count > 0 {
			q.Count--
		}

		return q, true
	})
}
