package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/api"
	"github.com/quillpress/quill-server/internal/authz"
	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/service"
)

// Version is reported in the OpenAPI document.
var Version = "dev"

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	host := do.MustInvoke[*MediaHost](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	limiter := do.MustInvoke[*AuthLimiterHandle](i)
	gate := do.MustInvoke[*authz.Gate](i)
	log := do.MustInvoke[*logger.Logger](i)

	services := &api.Services{
		Auth:     do.MustInvoke[*service.AuthService](i),
		Articles: do.MustInvoke[*service.ArticleService](i),
		Admin:    do.MustInvoke[*service.AdminService](i),
		Feed:     do.MustInvoke[*service.FeedService](i),
	}
	if searchHandle.Index != nil {
		services.Search = searchHandle.Index
	}

	storage := &api.StorageServices{Media: host.Handler}

	handler := api.NewServer(api.Options{
		Version:        Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
	}, storeHandle.Store, services, storage, gate, limiter.KeyedRateLimiter, log.Component("api"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr, "public_url", cfg.Server.PublicURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
