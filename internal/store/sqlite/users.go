package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, email, password_hash, name, bio, profile_image, role, article_ids, created_at, updated_at`

// scanUser scans a sql.Row (or sql.Rows via its Scan method) into a domain.User.
func scanUser(scanner interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var (
		u            domain.User
		role         string
		profileImage string
		articleIDs   string
		createdAt    string
		updatedAt    string
	)

	err := scanner.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Bio,
		&profileImage,
		&role,
		&articleIDs,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = domain.Role(role)
	if err := json.Unmarshal([]byte(profileImage), &u.ProfileImage); err != nil {
		return nil, fmt.Errorf("decode profile image: %w", err)
	}
	if err := json.Unmarshal([]byte(articleIDs), &u.ArticleIDs); err != nil {
		return nil, fmt.Errorf("decode article ids: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func userArgs(u *domain.User) ([]any, error) {
	profileImage, err := json.Marshal(u.ProfileImage)
	if err != nil {
		return nil, err
	}
	ids := u.ArticleIDs
	if ids == nil {
		ids = []string{}
	}
	articleIDs, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return []any{
		u.Email,
		strings.ToLower(strings.TrimSpace(u.Email)),
		u.PasswordHash,
		u.Name,
		u.Bio,
		string(profileImage),
		string(u.Role),
		string(articleIDs),
		formatTime(u.UpdatedAt),
		u.ID,
	}, nil
}

// CreateUser inserts a new user into the database.
// Returns store.ErrEmailExists if the email is already taken.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	args, err := userArgs(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	args = append(args, formatTime(user.CreatedAt))

	_, err = s.db.ExecContext(ctx, `INSERT INTO users
		(email, email_lower, password_hash, name, bio, profile_image, role, article_ids, updated_at, id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "email_lower") {
				return store.ErrEmailExists
			}
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q querier, id string) (*domain.User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email_lower = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUsersByIDs fetches several users at once. Missing ids are skipped.
func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	out := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

// UpdateUser updates an existing user's profile fields. The stored
// article_ids column is left alone and read back into user.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = s.now()
	profileImage, err := json.Marshal(user.ProfileImage)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	var articleIDs string
	err = s.db.QueryRowContext(ctx, `UPDATE users SET
		email = ?, email_lower = ?, password_hash = ?, name = ?, bio = ?,
		profile_image = ?, role = ?, updated_at = ?
		WHERE id = ?
		RETURNING article_ids`,
		user.Email,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.PasswordHash,
		user.Name,
		user.Bio,
		string(profileImage),
		string(user.Role),
		formatTime(user.UpdatedAt),
		user.ID,
	).Scan(&articleIDs)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrUserNotFound
	case err != nil:
		if isUniqueViolation(err) {
			return store.ErrEmailExists
		}
		return fmt.Errorf("update user: %w", err)
	}

	if err := json.Unmarshal([]byte(articleIDs), &user.ArticleIDs); err != nil {
		return fmt.Errorf("decode article ids: %w", err)
	}
	return nil
}


// updateUser writes the full record, article_ids included. Only the article
// transactions call it.
func updateUser(ctx context.Context, q querier, user *domain.User) error {
	args, err := userArgs(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	res, err := q.ExecContext(ctx, `UPDATE users SET
		email = ?, email_lower = ?, password_hash = ?, name = ?, bio = ?,
		profile_image = ?, role = ?, article_ids = ?, updated_at = ?
		WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrEmailExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

// DeleteUser removes the user record. Owned articles must be removed first.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var owned int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE owner_id = ?`, id).Scan(&owned); err != nil {
			return fmt.Errorf("count owned articles: %w", err)
		}
		if owned > 0 {
			return store.ErrInvalidInput.WithMessage("user still owns articles")
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrUserNotFound
		}
		return nil
	})
}

// ListUsers returns every user, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
