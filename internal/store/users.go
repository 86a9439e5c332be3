package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/quillpress/quill-server/internal/domain"
)

// CreateUser creates a new user account.
// Returns ErrEmailExists when the email is taken, compared case-insensitively.
func (s *Badger) CreateUser(ctx context.Context, user *domain.User) error {
	if err := s.users.Create(ctx, user.ID, user); err != nil {
		if IsIndexConflict(err, "email") {
			return ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Badger) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email address.
func (s *Badger) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.GetByIndex(ctx, "email", email)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return u, nil
}

// GetUsersByIDs fetches several users in one transaction. Missing ids are skipped.
func (s *Badger) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.User, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			if _, seen := out[id]; seen {
				continue
			}
			u, err := s.users.GetTxn(txn, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out[id] = u
		}
		return nil
	})
	return out, err
}

// UpdateUser updates an existing user's profile fields.
// ArticleIDs is owned by the article transactions: the stored list is kept
// and copied back into user.
func (s *Badger) UpdateUser(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = s.now()
	err := s.update(ctx, func(txn *badger.Txn) error {
		old, err := s.users.GetTxn(txn, user.ID)
		if err != nil {
			return err
		}
		user.ArticleIDs = old.ArticleIDs
		return s.users.UpdateTxn(txn, user.ID, user)
	})
	if err != nil {
		if IsIndexConflict(err, "email") {
			return ErrEmailExists
		}
		return notFound(err, ErrUserNotFound)
	}
	return nil
}

// DeleteUser removes the user record. Owned articles must be removed first.
func (s *Badger) DeleteUser(ctx context.Context, id string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		u, err := s.users.GetTxn(txn, id)
		if err != nil {
			return notFound(err, ErrUserNotFound)
		}
		if len(u.ArticleIDs) > 0 {
			return ErrInvalidInput.WithMessage("user still owns articles")
		}
		_, err = s.users.DeleteTxn(txn, id)
		return err
	})
}

// ListUsers returns every user.
func (s *Badger) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of users.
func (s *Badger) CountUsers(ctx context.Context) (int, error) {
	n := 0
	for _, err := range s.users.List(ctx) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}
