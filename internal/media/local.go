package media

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// LocalHost stores assets on the local filesystem and serves them over HTTP.
// Thread-safe for concurrent operations.
type LocalHost struct {
	dir     string
	baseURL string
	logger  *slog.Logger
	mu      sync.RWMutex
}

var _ Host = (*LocalHost)(nil)

// NewLocalHost creates the media directory if needed.
// baseURL is the public prefix the files are served under, e.g. http://host/media.
func NewLocalHost(dir, baseURL string, logger *slog.Logger) (*LocalHost, error) {
	if dir == "" {
		return nil, fmt.Errorf("media directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &LocalHost{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Upload writes the payload under <dir>/<folder>/<uuid><ext>.
func (h *LocalHost) Upload(ctx context.Context, up Upload) (Asset, error) {
	if err := validFolder(up.Folder); err != nil {
		return Asset{}, err
	}
	if up.Reader == nil {
		return Asset{}, fmt.Errorf("upload has no content")
	}
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}

	name := uuid.NewString() + extensionFor(up)
	folderPath := filepath.Join(h.dir, up.Folder)

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(folderPath, 0o755); err != nil {
		return Asset{}, fmt.Errorf("create folder: %w", err)
	}

	// Write to a temp file first so a failed copy never leaves a partial asset.
	tmp, err := os.CreateTemp(folderPath, ".upload-*")
	if err != nil {
		return Asset{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, up.Reader); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Asset{}, fmt.Errorf("write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Asset{}, fmt.Errorf("close asset: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(folderPath, name)); err != nil {
		os.Remove(tmpName)
		return Asset{}, fmt.Errorf("rename asset: %w", err)
	}

	assetID := up.Folder + "/" + name
	return Asset{URL: h.baseURL + "/" + assetID, AssetID: assetID}, nil
}

// Delete removes an asset. Deleting a missing asset is not an error.
func (h *LocalHost) Delete(ctx context.Context, assetID string) error {
	folder, file, err := splitAssetID(assetID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.Remove(filepath.Join(h.dir, folder, file)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

// Path returns the filesystem path of an asset.
func (h *LocalHost) Path(assetID string) (string, error) {
	folder, file, err := splitAssetID(assetID)
	if err != nil {
		return "", err
	}
	return filepath.Join(h.dir, folder, file), nil
}

// Handler serves assets. Mount it with the URL prefix stripped so that the
// request path is "/<folder>/<file>". Responses carry a content-hash ETag.
func (h *LocalHost) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assetID := strings.TrimPrefix(r.URL.Path, "/")
		path, err := h.Path(assetID)
		if err != nil {
			http.NotFound(w, r)
			return
		}

		h.mu.RLock()
		f, err := os.Open(path)
		h.mu.RUnlock()
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		hasher := blake3.New()
		if _, err := io.Copy(hasher, f); err != nil {
			h.logger.Error("hash asset", "asset_id", assetID, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("ETag", `"`+hex.EncodeToString(hasher.Sum(nil)[:16])+`"`)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}
