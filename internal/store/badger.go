package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/quillpress/quill-server/internal/domain"
)

const (
	userPrefix    = "user:"
	articlePrefix = "article:"

	// Badger aborts a commit when another transaction touched the same
	// keys; create/delete retry a few times since they both write the owner.
	maxTxnRetries = 5
)

// Badger is the embedded key-value implementation of Store.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger

	users    *Entity[domain.User]
	articles *Entity[domain.Article]

	now func() time.Time
}

var _ Store = (*Badger)(nil)

// New opens (or creates) a Badger store at path.
func New(path string, logger *slog.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Badger{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
	s.initUsers()
	s.initArticles()

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}
	return s, nil
}

// Close gracefully closes the database connection.
func (s *Badger) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// initUsers indexes users by email, case-insensitively.
func (s *Badger) initUsers() {
	s.users = NewEntity[domain.User](s.db, userPrefix).
		WithIndexTransform("email",
			func(u *domain.User) []string {
				return []string{normalizeEmail(u.Email)}
			},
			normalizeEmail,
		)
}

// initArticles indexes articles by owner and by every tag.
func (s *Badger) initArticles() {
	s.articles = NewEntity[domain.Article](s.db, articlePrefix).
		WithMultiIndex("owner", func(a *domain.Article) []string {
			return []string{a.OwnerID}
		}).
		WithMultiIndex("tag", func(a *domain.Article) []string {
			return a.Tags
		})
}

// update runs fn in a read-write transaction, retrying on commit conflicts.
func (s *Badger) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for range maxTxnRetries {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// notFound maps the generic entity miss onto a specific sentinel.
func notFound(err error, sentinel *Error) error {
	if errors.Is(err, ErrNotFound) {
		return sentinel
	}
	return err
}
