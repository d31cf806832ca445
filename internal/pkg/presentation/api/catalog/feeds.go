package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"

	"github.com/gamedex/catalog-cache/internal/pkg/application/feeds"
	"github.com/gamedex/catalog-cache/internal/pkg/presentation/api/catalog/auth"
	apierrors "github.com/gamedex/catalog-cache/internal/pkg/presentation/api/catalog/errors"
	"github.com/gamedex/catalog-cache/pkg/catalog/cache"
	catalogerrors "github.com/gamedex/catalog-cache/pkg/catalog/errors"
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

var tracer = otel.Tracer("catalog-cache/api/feeds")

// feedPageResponse is the JSON shape of a feed page: the hydrated items
// plus the query's pagination and phase state.
type feedPageResponse struct {
	Results  []types.Record `json:"results"`
	Count    int            `json:"count"`
	Next     *int           `json:"next"`
	Previous *int           `json:"previous"`
	Loading  bool           `json:"loading"`
	Loaded   bool           `json:"loaded"`
}

func newFeedPageResponse(page feeds.FeedPage) feedPageResponse {
	items := page.Items
	if items == nil {
		items = []types.Record{}
	}

	return feedPageResponse{
		Results:  items,
		Count:    page.Query.Count,
		Next:     page.Query.Next,
		Previous: page.Query.Previous,
		Loading:  page.Query.Loading,
		Loaded:   page.Query.Loaded,
	}
}

// NewFetchFeedHandler handles GET requests for one page of a configured feed
func NewFetchFeedHandler(app feeds.Engine, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		feedName := chi.URLParam(r, "feedName")

		ctx, span := tracer.Start(ctx, "fetch-feed")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, feedName, nil); err != nil {
			apierrors.ReportUnauthorizedRequest(w, "access denied")
			return
		}

		page := 0
		if pageParam := r.URL.Query().Get("page"); pageParam != "" {
			page, err = strconv.Atoi(pageParam)
			if err != nil {
				apierrors.ReportNewBadRequestData(w, fmt.Sprintf("malformed page number %s", pageParam))
				return
			}
		}

		reset := r.URL.Query().Get("reset") == "true"

		result, err := app.FetchFeed(ctx, feedName, feedParams(r), page, reset)
		if err != nil {
			reportFeedError(w, err)
			return
		}

		writeFeedPage(w, result)
	})
}

// NewResetFeedHandler handles DELETE requests that clear a feed's cached state
func NewResetFeedHandler(app feeds.Engine, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		feedName := chi.URLParam(r, "feedName")

		ctx, span := tracer.Start(ctx, "reset-feed")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, feedName, nil); err != nil {
			apierrors.ReportUnauthorizedRequest(w, "access denied")
			return
		}

		if err = app.ResetFeed(ctx, feedName, feedParams(r)); err != nil {
			reportFeedError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// NewFetchThreadPageHandler handles GET requests for a page of a comment
// thread, merged according to the requested mode
func NewFetchThreadPageHandler(app feeds.Engine, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		feedName := chi.URLParam(r, "feedName")

		ctx, span := tracer.Start(ctx, "fetch-thread-page")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, feedName, nil); err != nil {
			apierrors.ReportUnauthorizedRequest(w, "access denied")
			return
		}

		mode, ok := parseThreadMode(r.URL.Query().Get("mode"))
		if !ok {
			apierrors.ReportNewBadRequestData(w, fmt.Sprintf("unknown thread merge mode %s", r.URL.Query().Get("mode")))
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		result, err := app.FetchThreadPage(ctx, feedName, feedParams(r), mode, page)
		if err != nil {
			reportFeedError(w, err)
			return
		}

		writeFeedPage(w, result)
	})
}

// NewFetchRepliesHandler handles GET requests for a page of replies under
// a parent comment
func NewFetchRepliesHandler(app feeds.Engine, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		feedName := chi.URLParam(r, "feedName")

		ctx, span := tracer.Start(ctx, "fetch-replies")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, feedName, nil); err != nil {
			apierrors.ReportUnauthorizedRequest(w, "access denied")
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		result, err := app.FetchReplies(ctx, feedName, feedParams(r), page)
		if err != nil {
			reportFeedError(w, err)
			return
		}

		writeFeedPage(w, result)
	})
}

// NewFollowItemHandler handles POST requests that prepend an entity to a feed
func NewFollowItemHandler(app feeds.Engine, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		feedName := chi.URLParam(r, "feedName")

		ctx, span := tracer.Start(ctx, "follow-item")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, feedName, nil); err != nil {
			apierrors.ReportUnauthorizedRequest(w, "access denied")
			return
		}

		item := types.Key{}
		if err = json.NewDecoder(r.Body).Decode(&item); err != nil {
			apierrors.ReportNewBadRequestData(w, fmt.Sprintf("unable to decode request payload: %s", err.Error()))
			return
		}

		if item.IsZero() {
			apierrors.ReportNewBadRequestData(w, "an entity type and id are required")
			return
		}

		q, err := app.FollowItem(ctx, feedName, feedParams(r), item)
		if err != nil {
			reportFeedError(w, err)
			return
		}

		writeQueryState(w, q)
	})
}

// NewUnfollowItemHandler handles DELETE requests that remove an entity from a feed
func NewUnfollowItemHandler(app feeds.Engine, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		feedName := chi.URLParam(r, "feedName")

		ctx, span := tracer.Start(ctx, "unfollow-item")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, feedName, nil); err != nil {
			apierrors.ReportUnauthorizedRequest(w, "access denied")
			return
		}

		item, err := types.ParseKey(chi.URLParam(r, "entityKey"))
		if err != nil {
			apierrors.ReportNewBadRequestData(w, err.Error())
			return
		}

		q, err := app.UnfollowItem(ctx, feedName, feedParams(r), item)
		if err != nil {
			reportFeedError(w, err)
			return
		}

		writeQueryState(w, q)
	})
}

// NewHideGameHandler handles POST requests that hide a game from a feed
// (and from every feed configured to drop hidden items)
func NewHideGameHandler(app feeds.Engine, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		feedName := chi.URLParam(r, "feedName")

		ctx, span := tracer.Start(ctx, "hide-game")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, feedName, nil); err != nil {
			apierrors.ReportUnauthorizedRequest(w, "access denied")
			return
		}

		body := struct {
			ID types.Identifier `json:"id"`
		}{}
		if err = json.NewDecoder(r.Body).Decode(&body); err != nil {
			apierrors.ReportNewBadRequestData(w, fmt.Sprintf("unable to decode request payload: %s", err.Error()))
			return
		}

		if body.ID == "" {
			apierrors.ReportNewBadRequestData(w, "a game id is required")
			return
		}

		if err = app.HideGame(ctx, feedName, feedParams(r), body.ID); err != nil {
			reportFeedError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// feedParams collects the request parameters a keyed feed derives its
// query key from, i.e. everything except the reserved control params.
func feedParams(r *http.Request) feeds.Params {
	params := feeds.Params{}

	for name, values := range r.URL.Query() {
		if name == "page" || name == "reset" || name == "mode" {
			continue
		}
		if len(values) > 0 {
			params[name] = values[0]
		}
	}

	return params
}

func parseThreadMode(mode string) (cache.ThreadMergeMode, bool) {
	switch mode {
	case "", "replace":
		return cache.ThreadReplace, true
	case "shift":
		return cache.ThreadShift, true
	case "push":
		return cache.ThreadPush, true
	default:
		return cache.ThreadReplace, false
	}
}

func writeFeedPage(w http.ResponseWriter, page feeds.FeedPage) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	body, err := json.Marshal(newFeedPageResponse(page))
	if err == nil {
		w.Write(body)
	}
}

func writeQueryState(w http.ResponseWriter, q cache.PagedQuery) {
	response := struct {
		Items []types.Key `json:"items"`
		Count int         `json:"count"`
	}{
		Items: q.Items,
		Count: q.Count,
	}

	if response.Items == nil {
		response.Items = []types.Key{}
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	body, err := json.Marshal(response)
	if err == nil {
		w.Write(body)
	}
}

// reportFeedError maps engine errors onto RFC7807 problem reports.
func reportFeedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalogerrors.ErrUnknownFeed):
		apierrors.ReportUnknownFeedError(w, err.Error())
	case errors.Is(err, catalogerrors.ErrNotFound):
		apierrors.ReportNotFoundError(w, err.Error())
	case errors.Is(err, catalogerrors.ErrBadRequest):
		apierrors.ReportNewBadRequestData(w, err.Error())
	case errors.Is(err, catalogerrors.ErrSessionRequired):
		apierrors.ReportUnauthorizedRequest(w, err.Error())
	default:
		apierrors.ReportNewInternalError(w, err.Error())
	}
}
