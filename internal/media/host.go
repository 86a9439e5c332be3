// Package media uploads and deletes binary assets at a media host.
//
// Hosts return a stable URL and an opaque asset id for every upload.
// The asset id has the form "<folder>/<name>.<ext>" and is what Delete expects.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/quillpress/quill-server/internal/domain"
)

// Folders used by the application.
const (
	FolderBanners  = "banners"
	FolderProfiles = "profiles"
)

var folderPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ErrInvalidAssetID is returned by Delete for ids that do not name a folder and file.
var ErrInvalidAssetID = errors.New("invalid asset id")

// Upload describes one binary payload.
type Upload struct {
	Reader      io.Reader
	Size        int64
	Filename    string
	ContentType string
	Ext         string // with leading dot; derived from ContentType when empty
	Folder      string
}

// Asset is the result of a successful upload.
type Asset struct {
	URL     string `json:"url"`
	AssetID string `json:"asset_id"`
}

// Host is the boundary to the external media store.
type Host interface {
	Upload(ctx context.Context, up Upload) (Asset, error)
	Delete(ctx context.Context, assetID string) error
}

// Ref builds the reference stored on users and articles.
func Ref(asset Asset, info ImageInfo) domain.MediaRef {
	return domain.MediaRef{
		URL:      asset.URL,
		AssetID:  asset.AssetID,
		BlurHash: info.BlurHash,
		Width:    info.Width,
		Height:   info.Height,
		Size:     info.Size,
	}
}

// ResolveAssetID prefers the stored asset id and falls back to parsing the URL.
func ResolveAssetID(ref domain.MediaRef) string {
	if ref.AssetID != "" {
		return ref.AssetID
	}
	return DeriveAssetID(ref.URL)
}

func validFolder(folder string) error {
	if !folderPattern.MatchString(folder) {
		return fmt.Errorf("invalid media folder %q", folder)
	}
	return nil
}

// splitAssetID validates an asset id and returns its folder and file name.
func splitAssetID(assetID string) (folder, file string, err error) {
	folder, file, ok := strings.Cut(assetID, "/")
	if !ok || strings.Contains(file, "/") || file == "" || path.Ext(file) == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidAssetID, assetID)
	}
	if validFolder(folder) != nil || strings.HasPrefix(file, ".") || strings.Contains(file, "..") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidAssetID, assetID)
	}
	return folder, file, nil
}

func extensionFor(up Upload) string {
	if up.Ext != "" {
		return up.Ext
	}
	if ext, ok := extByContentType[up.ContentType]; ok {
		return ext
	}
	if ext := strings.ToLower(path.Ext(up.Filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	return ".bin"
}
