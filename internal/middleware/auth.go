package middleware

import (
	"context"
	"net/http"
	"strings"

	"leadmarket/internal/auth"
	"leadmarket/internal/models"
)

type contextKey string

const actorKey contextKey = "actor"

// ActorFromContext returns the caller resolved by Auth or ServiceKey, or
// Unauthenticated when neither ran.
func ActorFromContext(ctx context.Context) models.Actor {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	if !ok {
		return models.Unauthenticated()
	}
	return actor
}

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			actor, err := claims.Actor()
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// websocket handshakes, so upgrades may pass the token as ?token= instead.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			token := r.URL.Query().Get("token")
			return token, token != ""
		}
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireRole admits only actors of the given kind.
func RequireRole(kind models.ActorKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if !actor.Authenticated() {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if actor.Kind != kind {
				http.Error(w, kind.String()+" privileges required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ServiceKey authenticates a trusted collaborator by the X-Service-Key header
// and resolves it to System(name).
func ServiceKey(hash, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Service-Key")
			if key == "" {
				http.Error(w, "missing service key", http.StatusUnauthorized)
				return
			}
			if !auth.CheckServiceKey(hash, key) {
				http.Error(w, "invalid service key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), models.System(name))))
		})
	}
}
