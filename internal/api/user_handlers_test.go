package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/domain"
)

func TestGetCurrentUser(t *testing.T) {
	ts := setupTestServer(t)
	token, userID := ts.register(t, "ada@example.com", domain.RoleAuthor)

	t.Run("missing token", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeEnvelope(t, w).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/users/me", "not-a-token", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, decodeEnvelope(t, w).Success)
	})

	t.Run("valid token", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		data := dataMap(t, w)
		assert.Equal(t, userID, data["id"])
		assert.Equal(t, "ada@example.com", data["email"])
		assert.NotContains(t, w.Body.String(), "password_hash")
	})
}

func TestGetUserProfile_HidesEmail(t *testing.T) {
	ts := setupTestServer(t)
	_, userID := ts.register(t, "ada@example.com", domain.RoleAuthor)

	w := ts.do(t, http.MethodGet, "/api/v1/users/"+userID, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := dataMap(t, w)
	assert.Equal(t, userID, data["id"])
	assert.NotContains(t, data, "email")

	missing := ts.do(t, http.MethodGet, "/api/v1/users/usr-missing", "", nil)
	require.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, missing).Code)
}

func TestUpdateCurrentUser(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.register(t, "ada@example.com", domain.RoleAuthor)

	w := ts.doMultipart(t, http.MethodPut, "/api/v1/users/me", token, map[string]string{
		"name": "Ada Lovelace",
		"bio":  "Counts things.",
	}, formFile{field: "profileImage", filename: "me.png", data: pngBytes(t, 1)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := dataMap(t, w)
	assert.Equal(t, "Ada Lovelace", data["name"])
	assert.Equal(t, "Counts things.", data["bio"])
	first := data["profile_image"].(map[string]any)
	firstAsset := first["asset_id"].(string)
	require.NotEmpty(t, firstAsset)

	// A second image replaces the first, which is then removed from the host.
	w = ts.doMultipart(t, http.MethodPut, "/api/v1/users/me", token, nil,
		formFile{field: "profileImage", filename: "me2.png", data: pngBytes(t, 2)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data = dataMap(t, w)
	assert.Equal(t, "Ada Lovelace", data["name"], "absent fields are kept")
	assert.NotEqual(t, firstAsset, data["profile_image"].(map[string]any)["asset_id"])

	assertAssetGone(t, ts, firstAsset)
}

func TestUpdateCurrentUser_JSON(t *testing.T) {
	ts := setupTestServer(t)
	token, _ := ts.register(t, "ada@example.com", domain.RoleAuthor)

	w := ts.do(t, http.MethodPut, "/api/v1/users/me", token, map[string]string{"name": "Countess"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Countess", dataMap(t, w)["name"])
}

func TestUpdateCurrentUser_RequiresAuth(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.doMultipart(t, http.MethodPut, "/api/v1/users/me", "", map[string]string{"name": "Nobody"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeEnvelope(t, w).Code)
}
