package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/gamedex/catalog-cache/internal/pkg/application/feeds"
	"github.com/gamedex/catalog-cache/internal/pkg/application/sessions"
	"github.com/gamedex/catalog-cache/internal/pkg/presentation/api/catalog/auth"
)

func RegisterHandlers(ctx context.Context, r chi.Router, policies io.Reader, app feeds.Engine) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(
			Logger(logging.GetFromContext(ctx)),
			SessionMiddleware(),
		)

		r.Route("/feeds/{feedName}", func(r chi.Router) {
			r.Get("/", NewFetchFeedHandler(app, authenticator))
			r.Delete("/", NewResetFeedHandler(app, authenticator))

			r.Get("/thread", NewFetchThreadPageHandler(app, authenticator))
			r.Get("/replies", NewFetchRepliesHandler(app, authenticator))

			r.Post("/items", NewFollowItemHandler(app, authenticator))
			r.Delete("/items/{entityKey}", NewUnfollowItemHandler(app, authenticator))
			r.Post("/hidden", NewHideGameHandler(app, authenticator))
		})

		r.Get("/entities/{entityKey}", NewRetrieveEntityHandler(app, authenticator))

		r.Post("/games/{gameId}/status", NewSetGameStatusHandler(app, authenticator))
		r.Post("/reviews/{reviewId}/likes", NewRateReviewHandler(app, authenticator))
		r.Post("/reviews/{reviewId}/comments", NewCreateCommentHandler(app, authenticator))
	})

	return nil
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionMiddleware packs any bearer token into the context so that the
// engine can tell authenticated callers from anonymous ones.
func SessionMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get("Authorization")
			if token, found := strings.CutPrefix(header, "Bearer "); found && token != "" {
				ctx = sessions.NewContextWithToken(ctx, token)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
