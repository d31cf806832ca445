package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gamedex/catalog-cache/pkg/catalog"
	"github.com/gamedex/catalog-cache/pkg/catalog/schema"
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

var tracer = otel.Tracer("catalog-cache/coordinator")

const TraceAttributeQueryKey string = "query-key"

const DefaultPageSize int = 20

// Fetcher is the transport contract: given an endpoint path and paging
// parameters, resolve one page. URL construction beyond page and page
// size is the transport collaborator's responsibility.
type Fetcher interface {
	FetchPage(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error)
}

// SessionFunc reports whether the calling context carries an
// authenticated session.
type SessionFunc func(ctx context.Context) bool

// FetchRequest describes one coordinated fetch.
type FetchRequest struct {
	Endpoint   string
	EntityType types.EntityType
	QueryKey   QueryKey

	// Page selects an explicit page; zero means "the query's next page,
	// else 1".
	Page     int
	PageSize int

	// Append fetches the first page in append mode instead of replacing
	// the list. Used where keeping already loaded items is acceptable;
	// dedup by key makes the overlap safe.
	Append bool

	// OnlyAuthored skips the network entirely and resolves to an empty
	// success when no authenticated session is present.
	OnlyAuthored bool

	// OnSuccess runs auxiliary side effects against the raw page after
	// normalization, e.g. caching a nested object returned alongside
	// the list.
	OnSuccess func(ctx context.Context, page *catalog.Page)
}

// Coordinator orchestrates paginated fetches: it drives the three phase
// query transitions, normalizes responses into the entity store, and
// guards each query key against overlapping fetches (the latest attempt
// wins; a superseded response is dropped entirely so count and cursors
// are never applied out of order).
type Coordinator struct {
	store   *EntityStore
	queries *QuerySet
	schema  schema.Schema
	fetcher Fetcher

	hasSession SessionFunc

	mu       sync.Mutex
	inflight map[QueryKey]string
}

func WithSessionFunc(fn SessionFunc) func(*Coordinator) {
	return func(c *Coordinator) {
		c.hasSession = fn
	}
}

func NewCoordinator(store *EntityStore, queries *QuerySet, s schema.Schema, fetcher Fetcher, options ...func(*Coordinator)) *Coordinator {
	c := &Coordinator{
		store:      store,
		queries:    queries,
		schema:     s,
		fetcher:    fetcher,
		hasSession: func(context.Context) bool { return false },
		inflight:   map[QueryKey]string{},
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Fetch runs one coordinated page fetch and returns the resulting query
// state. It never retries: re-fetching is idempotent and cheap, and the
// caller decides when to try again.
func (c *Coordinator) Fetch(ctx context.Context, req FetchRequest) (PagedQuery, error) {
	var err error

	key := req.QueryKey
	if key == "" {
		key = DefaultQueryKey
	}

	ctx, span := tracer.Start(ctx, "fetch-page",
		trace.WithAttributes(attribute.String(TraceAttributeQueryKey, string(key))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	page := req.Page
	if page <= 0 {
		if q, ok := c.queries.Get(key); ok && q.NextPage() > 0 {
			page = q.NextPage()
		} else {
			page = 1
		}
	}

	attempt := c.beginAttempt(key)
	c.queries.Dispatch(FetchStarted{Key: key})

	if req.OnlyAuthored && !c.hasSession(ctx) {
		empty := catalog.EmptyPage()
		c.endAttempt(key, attempt)
		return c.queries.Dispatch(FetchSucceeded{
			Key:     key,
			Results: []types.Key{},
			Count:   empty.Count,
			Replace: page == 1 && !req.Append,
		}), nil
	}

	result, err := c.fetcher.FetchPage(ctx, req.Endpoint, page, pageSize)
	if err != nil {
		err = fmt.Errorf("failed to fetch page %d from %s: %w", page, req.Endpoint, err)
		return c.fail(ctx, key, attempt, err), err
	}

	normalized, err := schema.Normalize(c.schema, req.EntityType, result.Results)
	if err != nil {
		return c.fail(ctx, key, attempt, err), err
	}

	if !c.isCurrentAttempt(key, attempt) {
		logging.GetFromContext(ctx).Debug("dropping superseded fetch", "query_key", string(key))
		q, _ := c.queries.Get(key)
		return q, nil
	}

	c.store.UpsertAll(normalized.Entities)

	if req.OnSuccess != nil {
		req.OnSuccess(ctx, result)
	}

	c.endAttempt(key, attempt)

	return c.queries.Dispatch(FetchSucceeded{
		Key:      key,
		Results:  normalized.Result,
		Count:    result.Count,
		Next:     result.Next,
		Previous: result.Previous,
		Replace:  page == 1 && !req.Append,
	}), nil
}

// Reset empties the query for the given key.
func (c *Coordinator) Reset(key QueryKey) PagedQuery {
	return c.queries.Dispatch(QueryReset{Key: key})
}

func (c *Coordinator) fail(ctx context.Context, key QueryKey, attempt string, err error) PagedQuery {
	if !c.isCurrentAttempt(key, attempt) {
		logging.GetFromContext(ctx).Debug("dropping superseded fetch failure", "query_key", string(key))
		q, _ := c.queries.Get(key)
		return q
	}

	c.endAttempt(key, attempt)
	return c.queries.Dispatch(FetchFailed{Key: key, Err: err})
}

func (c *Coordinator) beginAttempt(key QueryKey) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	attempt := uuid.NewString()
	c.inflight[key] = attempt
	return attempt
}

func (c *Coordinator) isCurrentAttempt(key QueryKey, attempt string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inflight[key] == attempt
}

func (c *Coordinator) endAttempt(key QueryKey, attempt string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight[key] == attempt {
		delete(c.inflight, key)
	}
}
