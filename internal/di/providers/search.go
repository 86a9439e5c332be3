package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/search"
	"github.com/quillpress/quill-server/internal/service"
	"github.com/quillpress/quill-server/internal/store"
)

// SearchIndexHandle wraps the search index with shutdown capability.
// Index is nil when search is disabled.
type SearchIndexHandle struct {
	Index *search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.Index == nil {
		return nil
	}
	return h.Index.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Search.Enabled {
		log.Info("Search index disabled, using store scan")
		return &SearchIndexHandle{}, nil
	}

	index, err := search.Open(search.Options{
		DataPath: cfg.Data.BasePath,
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds an empty index when the store
// already holds articles. Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	handle := do.MustInvoke[*SearchIndexHandle](i)
	if handle.Index == nil {
		return
	}
	storeHandle := do.MustInvoke[*StoreHandle](i)
	articles := do.MustInvoke[*service.ArticleService](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := handle.Index.DocumentCount()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	count, err := storeHandle.CountArticles(ctx, store.ArticleQuery{})
	if err != nil || count == 0 {
		return
	}

	log.Info("Search index is empty but articles exist, triggering initial reindex",
		"article_count", count,
	)

	go func() {
		if err := articles.Reindex(context.Background()); err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		indexed, _ := handle.Index.DocumentCount()
		log.Info("Initial search reindex completed", "documents", indexed)
	}()
}
