package providers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/store/sqlite"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured store driver.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var (
		db   store.Store
		path string
		err  error
	)
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		path = filepath.Join(cfg.Data.BasePath, "quill.db")
		db, err = sqlite.Open(context.Background(), path, log.Component("store"))
	default:
		path = filepath.Join(cfg.Data.BasePath, "db")
		db, err = store.New(path, log.Component("store"))
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}

	log.Info("Database initialized", "driver", cfg.Store.Driver, "path", path)

	return &StoreHandle{Store: db}, nil
}
