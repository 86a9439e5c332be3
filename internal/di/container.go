// Package di provides dependency injection configuration for the Quill server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/auth"
	"github.com/quillpress/quill-server/internal/authz"
	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/di/providers"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/service"
	"github.com/quillpress/quill-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideAuthKey)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Storage layer
	do.Provide(injector, providers.ProvideMediaHost)
	do.Provide(injector, providers.ProvideMediaDeleter)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideMediaClient)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideArticleService)
	do.Provide(injector, providers.ProvideAdminService)
	do.Provide(injector, providers.ProvideFeedService)
	do.Provide(injector, providers.ProvideGate)

	// Workers
	do.Provide(injector, providers.ProvideAuthLimiter)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[providers.AuthKey](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*providers.MediaHost](injector)
	_ = do.MustInvoke[*providers.MediaDeleterHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[auth.TokenService](injector)

	// Business services
	_ = do.MustInvoke[*service.MediaClient](injector)
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.ArticleService](injector)
	_ = do.MustInvoke[*service.AdminService](injector)
	_ = do.MustInvoke[*service.FeedService](injector)
	_ = do.MustInvoke[*authz.Gate](injector)

	// Workers
	_ = do.MustInvoke[*providers.AuthLimiterHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}
