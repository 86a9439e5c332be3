package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/auth"
	"github.com/quillpress/quill-server/internal/authz"
	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/http/response"
	"github.com/quillpress/quill-server/internal/media"
	"github.com/quillpress/quill-server/internal/ratelimit"
	"github.com/quillpress/quill-server/internal/service"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/validation"
)

const (
	testPublicURL     = "http://quill.test"
	testPassword      = "correct horse battery"
	testAdminEmail    = "admin@quill.test"
	testAdminPassword = "admin password 123"
)

// testServer wraps the API server with handles tests need to inspect state.
type testServer struct {
	*Server
	store *store.Badger
	host  *media.LocalHost
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithLimiter(t, nil)
}

func setupTestServerWithLimiter(t *testing.T, limiter *ratelimit.KeyedRateLimiter) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "badger"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	key, err := auth.LoadOrGenerateKey(dir)
	require.NoError(t, err)
	tokens, err := auth.NewPasetoService(key, time.Hour)
	require.NoError(t, err)

	host, err := media.NewLocalHost(filepath.Join(dir, "media"), testPublicURL+"/media", logger)
	require.NoError(t, err)
	deleter := media.NewDeleter(host, 8, logger)
	t.Cleanup(func() { _ = deleter.Shutdown() })

	mediaClient := service.NewMediaClient(host, deleter, logger)
	v := validation.New()

	authService := service.NewAuthService(st, tokens, mediaClient, v, logger)
	articleService := service.NewArticleService(st, mediaClient, nil, v, logger)
	services := &Services{
		Auth:     authService,
		Articles: articleService,
		Admin:    service.NewAdminService(st, articleService, mediaClient, logger),
		Feed: service.NewFeedService(st, config.FeedConfig{
			Title:             "Quill",
			Description:       "Latest articles",
			Items:             10,
			DescriptionLength: 120,
		}, testPublicURL, logger),
	}

	require.NoError(t, authService.EnsureAdmin(context.Background(), config.AdminConfig{
		Email:    testAdminEmail,
		Password: testAdminPassword,
		Name:     "Admin",
	}))

	gate := authz.NewGate(tokens, authService, logger)
	srv := NewServer(Options{MaxUploadBytes: 4 << 20}, st, services, &StorageServices{Media: host.Handler()}, gate, limiter, logger)

	return &testServer{Server: srv, store: st, host: host}
}

// do sends a JSON request through the full router.
func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

// doRaw sends an arbitrary body with the given content type.
func (ts *testServer) doRaw(t *testing.T, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

// formFile is a file part of a multipart request.
type formFile struct {
	field    string
	filename string
	data     []byte
}

// doMultipart sends a multipart form through the full router.
func (ts *testServer) doMultipart(t *testing.T, method, path, token string, fields map[string]string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

// register creates an account over HTTP and returns its token and ID.
func (ts *testServer) register(t *testing.T, email string, role domain.Role) (token, userID string) {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": testPassword,
		"name":     "Writer " + email,
		"role":     string(role),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data := dataMap(t, w)
	user := data["user"].(map[string]any)
	return data["token"].(string), user["id"].(string)
}

// adminToken logs the bootstrap admin in.
func (ts *testServer) adminToken(t *testing.T) string {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/api/v1/auth/admin/login", "", map[string]string{
		"email":    testAdminEmail,
		"password": testAdminPassword,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return dataMap(t, w)["token"].(string)
}

// createArticle publishes an article with a fresh banner.
func (ts *testServer) createArticle(t *testing.T, token, title string, extra map[string]string) map[string]any {
	t.Helper()

	fields := map[string]string{
		"title":   title,
		"content": "<p>Body of " + title + "</p>",
	}
	for k, v := range extra {
		fields[k] = v
	}

	w := ts.doMultipart(t, http.MethodPost, "/api/v1/articles", token, fields, bannerFile(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return dataMap(t, w)
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func dataMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	env := decodeEnvelope(t, w)
	require.True(t, env.Success, w.Body.String())
	data, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is not an object: %s", w.Body.String())
	return data
}

func dataList(t *testing.T, w *httptest.ResponseRecorder) []any {
	t.Helper()
	env := decodeEnvelope(t, w)
	require.True(t, env.Success, w.Body.String())
	list, ok := env.Data.([]any)
	require.True(t, ok, "data is not a list: %s", w.Body.String())
	return list
}

func pngBytes(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 9))
	for x := range 16 {
		for y := range 9 {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x * 16), B: uint8(y * 28), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func bannerFile(t *testing.T) formFile {
	t.Helper()
	return formFile{field: "banner", filename: "banner.png", data: pngBytes(t, 200)}
}

// localPath maps a media URL served by the test server onto its request path.
func localPath(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Path
}

// assertAssetGone waits for the background deleter to remove an asset.
func assertAssetGone(t *testing.T, ts *testServer, assetID string) {
	t.Helper()
	path, err := ts.host.Path(assetID)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond, "asset %s still on disk", assetID)
}

func assertAssetExists(t *testing.T, ts *testServer, assetID string) {
	t.Helper()
	path, err := ts.host.Path(assetID)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err, "asset %s missing", assetID)
}
