package authz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/auth"
	"github.com/quillpress/quill-server/internal/domain"
	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/store"
)

type fakeTokens struct {
	subjects map[string]string
	errs     map[string]error
}

func (f *fakeTokens) Issue(userID string) (string, time.Time, error) {
	return "tok-" + userID, time.Now().Add(time.Hour), nil
}

func (f *fakeTokens) Verify(token string) (string, error) {
	if err, ok := f.errs[token]; ok {
		return "", err
	}
	if sub, ok := f.subjects[token]; ok {
		return sub, nil
	}
	return "", auth.ErrTokenInvalid
}

type fakeUsers map[string]*domain.User

func (f fakeUsers) ResolveIdentity(_ context.Context, id string) (*domain.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, store.ErrUserNotFound
}

type brokenUsers struct{}

func (brokenUsers) ResolveIdentity(context.Context, string) (*domain.User, error) {
	return nil, fmt.Errorf("disk on fire")
}

func newTestGate() *Gate {
	tokens := &fakeTokens{
		subjects: map[string]string{
			"good-author": "usr-author",
			"good-reader": "usr-reader",
			"ghost":       "usr-deleted",
		},
		errs: map[string]error{
			"expired":   auth.ErrTokenExpired,
			"malformed": auth.ErrTokenMalformed,
		},
	}
	users := fakeUsers{
		"usr-author": {ID: "usr-author", Role: domain.RoleAuthor},
		"usr-reader": {ID: "usr-reader", Role: domain.RoleReader},
	}
	return NewGate(tokens, users, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAuthenticate(t *testing.T) {
	gate := newTestGate()

	tests := []struct {
		name     string
		header   string
		wantUser string
		wantCode domainerrors.Code
	}{
		{name: "valid", header: "Bearer good-author", wantUser: "usr-author"},
		{name: "absent", header: "", wantCode: domainerrors.CodeUnauthorized},
		{name: "missing prefix", header: "good-author", wantCode: domainerrors.CodeUnauthorized},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantCode: domainerrors.CodeUnauthorized},
		{name: "lowercase scheme", header: "bearer good-author", wantCode: domainerrors.CodeUnauthorized},
		{name: "empty token", header: "Bearer ", wantCode: domainerrors.CodeUnauthorized},
		{name: "expired", header: "Bearer expired", wantCode: domainerrors.CodeTokenExpired},
		{name: "malformed", header: "Bearer malformed", wantCode: domainerrors.CodeUnauthorized},
		{name: "unknown signature", header: "Bearer forged", wantCode: domainerrors.CodeUnauthorized},
		{name: "deleted identity", header: "Bearer ghost", wantCode: domainerrors.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := gate.Authenticate(context.Background(), tt.header)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantUser, user.ID)
				return
			}
			require.Error(t, err)
			assert.Nil(t, user)
			assert.Equal(t, tt.wantCode, domainerrors.CodeOf(err))

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusUnauthorized, domainErr.HTTPStatus())
		})
	}
}

func TestAuthenticate_StoreFailureIsUpstream(t *testing.T) {
	tokens := &fakeTokens{subjects: map[string]string{"t": "usr-1"}}
	gate := NewGate(tokens, brokenUsers{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := gate.Authenticate(context.Background(), "Bearer t")
	assert.Equal(t, domainerrors.CodeUpstream, domainerrors.CodeOf(err))
}

func TestRequire(t *testing.T) {
	author := &domain.User{ID: "usr-a", Role: domain.RoleAuthor}
	reader := &domain.User{ID: "usr-r", Role: domain.RoleReader}
	admin := &domain.User{ID: "usr-x", Role: domain.RoleAdmin}

	_, err := Require(context.Background(), domain.Writers)
	assert.Equal(t, domainerrors.CodeUnauthorized, domainerrors.CodeOf(err))

	got, err := Require(WithIdentity(context.Background(), author), domain.Writers)
	require.NoError(t, err)
	assert.Equal(t, author, got)

	_, err = Require(WithIdentity(context.Background(), reader), domain.Writers)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrForbidden))

	_, err = Require(WithIdentity(context.Background(), author), domain.Admins)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrForbidden))

	_, err = Require(WithIdentity(context.Background(), admin), domain.Admins)
	assert.NoError(t, err)

	_, err = Require(WithIdentity(context.Background(), reader), nil)
	assert.NoError(t, err)
}

func TestIdentityFrom_Empty(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	var nilUser *domain.User
	_, ok = IdentityFrom(WithIdentity(context.Background(), nilUser))
	assert.False(t, ok)
}

func protectedHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := IdentityFrom(r.Context())
		if ok {
			_, _ = w.Write([]byte(user.ID))
			return
		}
		_, _ = w.Write([]byte("anonymous"))
	})
}

func TestMiddleware(t *testing.T) {
	gate := newTestGate()
	handler := gate.Middleware(gate.RequireRoles(domain.RoleAuthor, domain.RoleAdmin)(protectedHandler(t)))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "author passes", header: "Bearer good-author", wantStatus: http.StatusOK, wantBody: "usr-author"},
		{name: "reader forbidden", header: "Bearer good-reader", wantStatus: http.StatusForbidden, wantBody: `"code":"FORBIDDEN"`},
		{name: "no token", header: "", wantStatus: http.StatusUnauthorized, wantBody: `"code":"UNAUTHORIZED"`},
		{name: "expired", header: "Bearer expired", wantStatus: http.StatusUnauthorized, wantBody: `"code":"TOKEN_EXPIRED"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/articles", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
