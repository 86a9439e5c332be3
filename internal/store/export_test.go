package store

import (
	"context"

	"github.com/dgraph-io/badger/v4"
)

// ReplaceArticleIDs overwrites a user's stored article list without touching
// any article, leaving the back-references inconsistent.
func (s *Badger) ReplaceArticleIDs(ctx context.Context, userID string, ids []string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		u, err := s.users.GetTxn(txn, userID)
		if err != nil {
			return err
		}
		u.ArticleIDs = ids
		return s.users.UpdateTxn(txn, userID, u)
	})
}
