package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/media"
)

// MediaHost groups the configured media host and, for the local backend,
// the handler that serves its files.
type MediaHost struct {
	media.Host
	Handler http.Handler
}

// ProvideMediaHost provides the media host selected by configuration.
func ProvideMediaHost(i do.Injector) (*MediaHost, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	mediaLog := log.Component("media")

	switch cfg.Media.Backend {
	case config.MediaBackendS3:
		host, err := media.NewS3Host(context.Background(), cfg.Media.S3, mediaLog)
		if err != nil {
			return nil, fmt.Errorf("s3 media host: %w", err)
		}
		log.Info("Media host initialized", "backend", "s3", "bucket", cfg.Media.S3.Bucket)
		return &MediaHost{Host: host}, nil
	default:
		host, err := media.NewLocalHost(cfg.Media.Local.Dir, cfg.Media.Local.BaseURL, mediaLog)
		if err != nil {
			return nil, fmt.Errorf("local media host: %w", err)
		}
		log.Info("Media host initialized", "backend", "local", "dir", cfg.Media.Local.Dir)
		return &MediaHost{Host: host, Handler: host.Handler()}, nil
	}
}

// MediaDeleterHandle wraps the background deleter with shutdown capability.
type MediaDeleterHandle struct {
	*media.Deleter
}

// Shutdown drains queued deletions.
func (h *MediaDeleterHandle) Shutdown() error {
	return h.Deleter.Shutdown()
}

// ProvideMediaDeleter starts the background asset deleter.
func ProvideMediaDeleter(i do.Injector) (*MediaDeleterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	host := do.MustInvoke[*MediaHost](i)

	deleter := media.NewDeleter(host.Host, cfg.Media.DeleteQueueSize, log.Component("media"))
	return &MediaDeleterHandle{Deleter: deleter}, nil
}
