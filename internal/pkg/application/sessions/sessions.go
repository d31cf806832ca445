// Package sessions holds the in-memory registry of authenticated
// sessions. The engine consults it for feeds that only make sense for a
// signed in user; everything else about authentication (token issuing,
// verification) belongs to collaborators outside this module.
package sessions

import (
	"context"
	"sync"

	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

type Registry interface {
	Register(token string, user types.Identifier)
	Revoke(token string)
	UserForToken(token string) (types.Identifier, bool)
}

func NewRegistry() Registry {
	return &registryImpl{
		sessions: map[string]types.Identifier{},
	}
}

type registryImpl struct {
	mu       sync.RWMutex
	sessions map[string]types.Identifier
}

func (r *registryImpl) Register(token string, user types.Identifier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[token] = user
}

func (r *registryImpl) Revoke(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
}

func (r *registryImpl) UserForToken(token string) (types.Identifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.sessions[token]
	return user, ok
}

type sessionContextKey struct {
	name string
}

var tokenCtxKey = &sessionContextKey{"session-token"}

// NewContextWithToken stores the caller's bearer token in the context.
func NewContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey, token)
}

// TokenFromContext extracts the bearer token, if any, from the context.
func TokenFromContext(ctx context.Context) string {
	token, ok := ctx.Value(tokenCtxKey).(string)
	if !ok {
		return ""
	}

	return token
}

// HasSession adapts a registry to the coordinator's session check.
func HasSession(r Registry) func(ctx context.Context) bool {
	return func(ctx context.Context) bool {
		token := TokenFromContext(ctx)
		if token == "" {
			return false
		}

		_, ok := r.UserForToken(token)
		return ok
	}
}
