package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"

	"github.com/gamedex/catalog-cache/internal/pkg/application/feeds"
	"github.com/gamedex/catalog-cache/internal/pkg/presentation/api/catalog/auth"
	apierrors "github.com/gamedex/catalog-cache/internal/pkg/presentation/api/catalog/errors"
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

// NewRetrieveEntityHandler handles GET requests for a single denormalized
// entity, addressed as Type:id
func NewRetrieveEntityHandler(app feeds.Engine, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()

		ctx, span := tracer.Start(ctx, "retrieve-entity")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		key, err := types.ParseKey(chi.URLParam(r, "entityKey"))
		if err != nil {
			apierrors.ReportNewBadRequestData(w, err.Error())
			return
		}

		if err = authenticator.CheckAccess(ctx, r, "", []string{string(key.Type)}); err != nil {
			apierrors.ReportUnauthorizedRequest(w, "access denied")
			return
		}

		record, err := app.RetrieveEntity(ctx, key.Type, key.ID)
		if err != nil {
			reportFeedError(w, err)
			return
		}

		writeRecord(ctx, w, record)
	})
}

// NewSetGameStatusHandler handles POST requests that move a game between
// the caller's status shelves. The counter patch is applied optimistically
// and confirmed by the upstream response.
func NewSetGameStatusHandler(app feeds.Engine, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		gameID := types.Identifier(chi.URLParam(r, "gameId"))

		ctx, span := tracer.Start(ctx, "set-game-status")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, "", []string{string(types.Game)}); err != nil {
			apierrors.ReportUnauthorizedRequest(w, "access denied")
			return
		}

		body := struct {
			Old string `json:"old"`
			New string `json:"new"`
		}{}
		if err = json.NewDecoder(r.Body).Decode(&body); err != nil {
			apierrors.ReportNewBadRequestData(w, fmt.Sprintf("unable to decode request payload: %s", err.Error()))
			return
		}

		record, err := app.SetGameStatus(ctx, gameID, body.Old, body.New)
		if err != nil {
			reportFeedError(w, err)
			return
		}

		writeRecord(ctx, w, record)
	})
}

// NewRateReviewHandler handles POST requests that add or retract a like
// on a review
func NewRateReviewHandler(app feeds.Engine, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		reviewID := types.Identifier(chi.URLParam(r, "reviewId"))

		ctx, span := tracer.Start(ctx, "rate-review")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, "", []string{string(types.Review)}); err != nil {
			apierrors.ReportUnauthorizedRequest(w, "access denied")
			return
		}

		body := struct {
			Positive bool `json:"positive"`
			Delta    int  `json:"delta"`
		}{}
		if err = json.NewDecoder(r.Body).Decode(&body); err != nil {
			apierrors.ReportNewBadRequestData(w, fmt.Sprintf("unable to decode request payload: %s", err.Error()))
			return
		}

		if body.Delta != 1 && body.Delta != -1 {
			apierrors.ReportNewBadRequestData(w, "delta must be 1 or -1")
			return
		}

		record, err := app.RateReview(ctx, reviewID, body.Positive, body.Delta)
		if err != nil {
			reportFeedError(w, err)
			return
		}

		writeRecord(ctx, w, record)
	})
}

// NewCreateCommentHandler handles POST requests that add a comment (or a
// reply, when a parent id is supplied) under a review
func NewCreateCommentHandler(app feeds.Engine, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		reviewID := types.Identifier(chi.URLParam(r, "reviewId"))

		ctx, span := tracer.Start(ctx, "create-comment")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		if err = authenticator.CheckAccess(ctx, r, "", []string{string(types.Comment)}); err != nil {
			apierrors.ReportUnauthorizedRequest(w, "access denied")
			return
		}

		body := struct {
			Parent types.Identifier `json:"parent"`
			Fields types.Record     `json:"fields"`
		}{}
		if err = json.NewDecoder(r.Body).Decode(&body); err != nil {
			apierrors.ReportNewBadRequestData(w, fmt.Sprintf("unable to decode request payload: %s", err.Error()))
			return
		}

		if len(body.Fields) == 0 {
			apierrors.ReportNewBadRequestData(w, "comment fields are required")
			return
		}

		record, err := app.CreateComment(ctx, reviewID, body.Parent, body.Fields)
		if err != nil {
			reportFeedError(w, err)
			return
		}

		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)

		response, err := json.Marshal(record)
		if err == nil {
			w.Write(response)
		}
	})
}

func writeRecord(ctx context.Context, w http.ResponseWriter, record types.Record) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	body, err := json.Marshal(record)
	if err != nil {
		logging.GetFromContext(ctx).Error("failed to marshal record to json", "err", err.Error())
		return
	}

	w.Write(body)
}
