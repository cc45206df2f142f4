package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"dormbill/internal/core"
	"dormbill/internal/log"
)

type contextKey string

const actorKey contextKey = "actor"

// Validator is satisfied by *JWTManager.
type Validator interface {
	Validate(token string) (*Claims, error)
}

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor core.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the authenticated caller, if any.
func ActorFrom(ctx context.Context) (core.Actor, bool) {
	a, ok := ctx.Value(actorKey).(core.Actor)
	return a, ok
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				deny(w, r, http.StatusUnauthorized, ErrMissingToken)
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				deny(w, r, http.StatusUnauthorized, ErrInvalidToken)
				return
			}
			claims, err := v.Validate(strings.TrimSpace(token))
			if err != nil {
				deny(w, r, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.Actor())))
		})
	}
}

// RequireRole lets through only actors with one of roles. It must run
// after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				deny(w, r, http.StatusUnauthorized, ErrMissingToken)
				return
			}
			for _, role := range roles {
				if strings.EqualFold(actor.Role, role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			deny(w, r, http.StatusForbidden, ErrForbidden)
		})
	}
}

// OwnerFunc returns the dormer ID owning the resource addressed by r.
type OwnerFunc func(r *http.Request) (string, error)

// RequireOwnerOrRole lets through actors with one of roles, and otherwise
// only the actor whose ID is the owning dormer ID. Non-admins get forbidden
// when the owner lookup fails, including for unknown resources. It must run
// after RequireAuth.
func RequireOwnerOrRole(owner OwnerFunc, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				deny(w, r, http.StatusUnauthorized, ErrMissingToken)
				return
			}
			for _, role := range roles {
				if strings.EqualFold(actor.Role, role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			id, err := owner(r)
			if err != nil {
				deny(w, r, http.StatusForbidden, fmt.Errorf("%w: %v", ErrNotOwner, err))
				return
			}
			if actor.ID == "" || id != actor.ID {
				deny(w, r, http.StatusForbidden, ErrNotOwner)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, status int, err error) {
	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
		WarnContext(r.Context(), "Request rejected", log.FieldPath, r.URL.Path, log.FieldError, err.Error())

	code := "unauthorized"
	reason := ErrInvalidToken.Error()
	switch {
	case errors.Is(err, ErrForbidden):
		code, reason = "forbidden", err.Error()
	case errors.Is(err, ErrNotOwner):
		code, reason = "forbidden", ErrNotOwner.Error()
	case errors.Is(err, ErrMissingToken):
		reason = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="dormbill"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "reason": reason})
}
