// Package authz resolves bearer tokens to identities and enforces role requirements.
package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quillpress/quill-server/internal/auth"
	"github.com/quillpress/quill-server/internal/domain"
	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/http/response"
	"github.com/quillpress/quill-server/internal/store"
)

const bearerPrefix = "Bearer "

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

const identityKey ctxKey = "identity"

// IdentityResolver loads the user a verified token points at.
// A deleted user must be reported with store.ErrNotFound.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID string) (*domain.User, error)
}

// Gate authenticates requests and checks roles.
type Gate struct {
	tokens auth.TokenService
	users  IdentityResolver
	logger *slog.Logger
}

// NewGate creates a gate.
func NewGate(tokens auth.TokenService, users IdentityResolver, logger *slog.Logger) *Gate {
	return &Gate{tokens: tokens, users: users, logger: logger}
}

// Authenticate resolves an Authorization header value to a user.
// Every failure is a 401; an expired token is reported as TOKEN_EXPIRED.
func (g *Gate) Authenticate(ctx context.Context, header string) (*domain.User, error) {
	if header == "" {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, domainerrors.Unauthorized("invalid authorization header format")
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return nil, domainerrors.Unauthorized("authentication required")
	}

	userID, err := g.tokens.Verify(token)
	if err != nil {
		g.logger.Debug("token verification failed", "error", err)
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, domainerrors.TokenExpired("token expired")
		}
		return nil, domainerrors.Unauthorized("invalid token")
	}

	user, err := g.users.ResolveIdentity(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.logger.Info("token for deleted user", "user_id", userID)
			return nil, domainerrors.Unauthorized("user no longer exists")
		}
		return nil, domainerrors.Upstream(err, "failed to resolve identity")
	}
	return user, nil
}

// WithIdentity stores the resolved user in the context.
func WithIdentity(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, identityKey, user)
}

// IdentityFrom returns the user attached by the gate, if any.
func IdentityFrom(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(identityKey).(*domain.User)
	return user, ok && user != nil
}

// Require returns the identity in ctx when its role is in roles.
// An empty set only requires authentication.
func Require(ctx context.Context, roles domain.RoleSet) (*domain.User, error) {
	user, ok := IdentityFrom(ctx)
	if !ok {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	if !roles.Allows(user.Role) {
		return nil, domainerrors.Forbidden("insufficient role for this operation")
	}
	return user, nil
}

// Middleware rejects requests without a valid bearer token.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			response.HandleError(w, err, g.logger)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user)))
	})
}

// RequireRoles rejects requests whose identity is outside roles.
// Must be used after Middleware.
func (g *Gate) RequireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	set := domain.RoleSet(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := Require(r.Context(), set); err != nil {
				response.HandleError(w, err, g.logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
