package api

import (
	"net/http"

	"github.com/quillpress/quill-server/internal/service"
)

// Services groups all business logic services used by the API server.
type Services struct {
	Auth     *service.AuthService
	Articles *service.ArticleService
	Admin    *service.AdminService
	Feed     *service.FeedService
	Search   DocumentCounter // nil when the full-text index is disabled
}

// DocumentCounter reports the size of the search index for health checks.
type DocumentCounter interface {
	DocumentCount() (uint64, error)
}

// StorageServices groups file handlers served by the API server.
type StorageServices struct {
	Media http.Handler // serves /media/* for the local backend; nil otherwise
}
