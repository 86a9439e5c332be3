package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/auth"
	"github.com/quillpress/quill-server/internal/authz"
	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/service"
	"github.com/quillpress/quill-server/internal/validation"
)

// ProvideMediaClient provides the media client used by services.
func ProvideMediaClient(i do.Injector) (*service.MediaClient, error) {
	host := do.MustInvoke[*MediaHost](i)
	deleter := do.MustInvoke[*MediaDeleterHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewMediaClient(host.Host, deleter.Deleter, log.Component("media")), nil
}

// ProvideAuthService provides the authentication service and creates the
// bootstrap administrator when one is configured.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokens := do.MustInvoke[auth.TokenService](i)
	mediaClient := do.MustInvoke[*service.MediaClient](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewAuthService(storeHandle.Store, tokens, mediaClient, validator, log.Component("auth"))
	if err := svc.EnsureAdmin(context.Background(), cfg.Admin); err != nil {
		return nil, err
	}
	return svc, nil
}

// ProvideArticleService provides the article service. A disabled search
// index leaves it on the store scan.
func ProvideArticleService(i do.Injector) (*service.ArticleService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	mediaClient := do.MustInvoke[*service.MediaClient](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	var index service.SearchIndex
	if searchHandle.Index != nil {
		index = searchHandle.Index
	}
	return service.NewArticleService(storeHandle.Store, mediaClient, index, validator, log.Component("articles")), nil
}

// ProvideAdminService provides the moderation service.
func ProvideAdminService(i do.Injector) (*service.AdminService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	articles := do.MustInvoke[*service.ArticleService](i)
	mediaClient := do.MustInvoke[*service.MediaClient](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAdminService(storeHandle.Store, articles, mediaClient, log.Component("admin")), nil
}

// ProvideFeedService provides the RSS feed service.
func ProvideFeedService(i do.Injector) (*service.FeedService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewFeedService(storeHandle.Store, cfg.Feed, cfg.Server.PublicURL, log.Component("feed")), nil
}

// ProvideGate provides the authorization gate.
func ProvideGate(i do.Injector) (*authz.Gate, error) {
	tokens := do.MustInvoke[auth.TokenService](i)
	authService := do.MustInvoke[*service.AuthService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return authz.NewGate(tokens, authService, log.Component("authz")), nil
}
