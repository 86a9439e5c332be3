package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/auth"
	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/media"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/validation"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeHost records uploads and deletions and can be told to fail.
type fakeHost struct {
	mu         sync.Mutex
	n          int
	uploaded   []string
	deleted    []string
	failUpload bool
	failDelete bool
}

func (h *fakeHost) Upload(_ context.Context, up media.Upload) (media.Asset, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failUpload {
		return media.Asset{}, errors.New("media host unavailable")
	}
	if _, err := io.Copy(io.Discard, up.Reader); err != nil {
		return media.Asset{}, err
	}
	h.n++
	assetID := fmt.Sprintf("%s/asset-%d%s", up.Folder, h.n, up.Ext)
	h.uploaded = append(h.uploaded, assetID)
	return media.Asset{URL: "https://cdn.test/" + assetID, AssetID: assetID}, nil
}

func (h *fakeHost) Delete(_ context.Context, assetID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failDelete {
		return errors.New("media host unavailable")
	}
	h.deleted = append(h.deleted, assetID)
	return nil
}

func (h *fakeHost) setFailUpload(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failUpload = v
}

func (h *fakeHost) setFailDelete(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failDelete = v
}

func (h *fakeHost) wasDeleted(assetID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Contains(h.deleted, assetID)
}

func (h *fakeHost) uploadCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.uploaded)
}

type testEnv struct {
	store    *store.Badger
	host     *fakeHost
	tokens   auth.TokenService
	auth     *AuthService
	articles *ArticleService
	admin    *AdminService
	feed     *FeedService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupTestEnvWithIndex(t, nil)
}

func setupTestEnvWithIndex(t *testing.T, index SearchIndex) *testEnv {
	t.Helper()

	logger := discardLogger()
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "badger"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	key, err := auth.LoadOrGenerateKey(dir)
	require.NoError(t, err)
	tokens, err := auth.NewPasetoService(key, time.Hour)
	require.NoError(t, err)

	host := &fakeHost{}
	deleter := media.NewDeleter(host, 8, logger)
	t.Cleanup(func() { _ = deleter.Shutdown() })

	mediaClient := NewMediaClient(host, deleter, logger)
	v := validation.New()

	articles := NewArticleService(st, mediaClient, index, v, logger)
	return &testEnv{
		store:    st,
		host:     host,
		tokens:   tokens,
		auth:     NewAuthService(st, tokens, mediaClient, v, logger),
		articles: articles,
		admin:    NewAdminService(st, articles, mediaClient, logger),
		feed:     NewFeedService(st, feedConfig(), "https://quill.test", logger),
	}
}

func pngFile(t *testing.T, name string) *ImageFile {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for x := range 16 {
		for y := range 9 {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 28), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &ImageFile{Data: buf.Bytes(), Filename: name}
}

// register creates a user through the service and returns the stored record.
func (e *testEnv) register(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	ctx := context.Background()

	if role == domain.RoleAdmin {
		u := &domain.User{
			ID:           "usr-admin-" + email,
			Email:        email,
			PasswordHash: mustHash(t, "correct horse battery"),
			Name:         "Admin",
			Role:         domain.RoleAdmin,
			CreatedAt:    time.Now(),
		}
		require.NoError(t, e.store.CreateUser(ctx, u))
		return u
	}

	resp, err := e.auth.Register(ctx, RegisterRequest{
		Email:    email,
		Password: "correct horse battery",
		Name:     "Writer " + email,
		Role:     string(role),
	})
	require.NoError(t, err)

	u, err := e.store.GetUser(ctx, resp.User.ID)
	require.NoError(t, err)
	return u
}

// reload fetches the latest copy of a user.
func (e *testEnv) reload(t *testing.T, u *domain.User) *domain.User {
	t.Helper()
	fresh, err := e.store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	return fresh
}

func (e *testEnv) createArticle(t *testing.T, owner *domain.User, title string, tags ...string) *ArticleView {
	t.Helper()
	view, err := e.articles.Create(context.Background(), owner, CreateArticleRequest{
		Title:   title,
		Content: "<p>Body of " + title + "</p>",
		Tags:    tags,
		Banner:  pngFile(t, "banner.png"),
	})
	require.NoError(t, err)
	return view
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return hash
}

func ptr[T any](v T) *T { return &v }
