// Package service implements the business operations behind the HTTP API.
package service

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/quillpress/quill-server/internal/domain"
	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/media"
	"github.com/quillpress/quill-server/internal/store"
)

// ImageFile is an image received from a client, already read into memory.
type ImageFile struct {
	Data     []byte
	Filename string
}

// MediaClient uploads images and schedules deletion of replaced ones.
type MediaClient struct {
	host    media.Host
	deleter *media.Deleter
	logger  *slog.Logger
}

// NewMediaClient creates a media client.
func NewMediaClient(host media.Host, deleter *media.Deleter, logger *slog.Logger) *MediaClient {
	return &MediaClient{host: host, deleter: deleter, logger: logger}
}

// Upload validates the image and stores it under folder.
// Unsupported images are validation errors; host failures are upstream errors.
func (m *MediaClient) Upload(ctx context.Context, file *ImageFile, folder string) (domain.MediaRef, error) {
	info, err := media.Inspect(file.Data)
	if err != nil {
		return domain.MediaRef{}, err
	}

	asset, err := m.host.Upload(ctx, media.Upload{
		Reader:      bytes.NewReader(file.Data),
		Size:        int64(len(file.Data)),
		Filename:    file.Filename,
		ContentType: info.ContentType,
		Ext:         info.Ext,
		Folder:      folder,
	})
	if err != nil {
		m.logger.Error("media upload failed", "folder", folder, "error", err)
		return domain.MediaRef{}, domainerrors.Upstream(err, "image upload failed")
	}

	m.logger.Debug("media uploaded", "asset_id", asset.AssetID, "bytes", len(file.Data))
	return media.Ref(asset, info), nil
}

// Discard schedules deletion of ref in the background.
func (m *MediaClient) Discard(ref domain.MediaRef) {
	if ref.IsZero() {
		return
	}
	assetID := media.ResolveAssetID(ref)
	if assetID == "" {
		m.logger.Warn("cannot resolve asset id, leaving media in place", "url", ref.URL)
		return
	}
	m.deleter.Enqueue(assetID)
}

// DeleteNow deletes ref synchronously and reports whether the host confirmed it.
func (m *MediaClient) DeleteNow(ctx context.Context, ref domain.MediaRef) bool {
	if ref.IsZero() {
		return false
	}
	assetID := media.ResolveAssetID(ref)
	if assetID == "" {
		m.logger.Warn("cannot resolve asset id, leaving media in place", "url", ref.URL)
		return false
	}
	return m.deleter.DeleteNow(ctx, assetID)
}

// storeError maps persistence failures onto domain errors.
func storeError(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case domainerrors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound(notFoundMsg)
	case domainerrors.Is(err, store.ErrEmailExists):
		return domainerrors.Conflict("email already registered")
	case domainerrors.Is(err, store.ErrInvalidInput):
		return domainerrors.Validation(err.Error())
	default:
		return domainerrors.Upstream(err, "storage failure")
	}
}
