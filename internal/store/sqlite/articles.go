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

// articleColumns must match the scan order in scanArticle.
const articleColumns = `a.id, a.title, a.content, a.source, a.content_format, a.featured, a.banner, a.owner_id, a.created_at, a.updated_at`

func scanArticle(scanner interface{ Scan(dest ...any) error }) (*domain.Article, error) {
	var (
		a         domain.Article
		format    string
		featured  int
		banner    string
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(&a.ID, &a.Title, &a.Content, &a.Source, &format, &featured, &banner, &a.OwnerID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.ContentFormat = domain.ContentFormat(format)
	a.Featured = featured != 0
	if err := json.Unmarshal([]byte(banner), &a.Banner); err != nil {
		return nil, fmt.Errorf("decode banner: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateArticle inserts the article, its tags, and the owner's
// back-reference in one transaction.
func (s *Store) CreateArticle(ctx context.Context, article *domain.Article) error {
	now := s.now()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = now
	}
	article.UpdatedAt = now

	banner, err := json.Marshal(article.Banner)
	if err != nil {
		return fmt.Errorf("encode banner: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		owner, err := getUser(ctx, tx, article.OwnerID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO articles
			(id, title, content, source, content_format, featured, banner, owner_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			article.ID, article.Title, article.Content, article.Source, string(article.ContentFormat),
			boolToInt(article.Featured), string(banner), article.OwnerID,
			formatTime(article.CreatedAt), formatTime(article.UpdatedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrAlreadyExists
			}
			return fmt.Errorf("insert article: %w", err)
		}

		if err := replaceTags(ctx, tx, article.ID, article.Tags); err != nil {
			return err
		}

		if owner.AddArticle(article.ID) {
			owner.UpdatedAt = now
			if err := updateUser(ctx, tx, owner); err != nil {
				return fmt.Errorf("append back-reference: %w", err)
			}
		}
		return nil
	})
}

// GetArticle retrieves an article by ID.
func (s *Store) GetArticle(ctx context.Context, id string) (*domain.Article, error) {
	return getArticle(ctx, s.db, id)
}

func getArticle(ctx context.Context, q querier, id string) (*domain.Article, error) {
	row := q.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles a WHERE a.id = ?`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	if err := loadTags(ctx, q, []*domain.Article{a}); err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateArticle replaces an existing article. Ownership never changes here.
func (s *Store) UpdateArticle(ctx context.Context, article *domain.Article) error {
	article.UpdatedAt = s.now()
	banner, err := json.Marshal(article.Banner)
	if err != nil {
		return fmt.Errorf("encode banner: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx, `SELECT owner_id FROM articles WHERE id = ?`, article.ID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrArticleNotFound
		}
		if err != nil {
			return fmt.Errorf("get article owner: %w", err)
		}
		if owner != article.OwnerID {
			return store.ErrInvalidInput.WithMessage("article owner cannot change")
		}

		_, err = tx.ExecContext(ctx, `UPDATE articles SET
			title = ?, content = ?, source = ?, content_format = ?, featured = ?, banner = ?, updated_at = ?
			WHERE id = ?`,
			article.Title, article.Content, article.Source, string(article.ContentFormat),
			boolToInt(article.Featured), string(banner), formatTime(article.UpdatedAt), article.ID)
		if err != nil {
			return fmt.Errorf("update article: %w", err)
		}
		return replaceTags(ctx, tx, article.ID, article.Tags)
	})
}

// DeleteArticle removes the article and the owner's back-reference in one
// transaction and returns the deleted record.
func (s *Store) DeleteArticle(ctx context.Context, id string) (*domain.Article, error) {
	var deleted *domain.Article
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		a, err := getArticle(ctx, tx, id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM article_tags WHERE article_id = ?`, id); err != nil {
			return fmt.Errorf("delete tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete article: %w", err)
		}

		owner, err := getUser(ctx, tx, a.OwnerID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return err
		case owner.RemoveArticle(id):
			owner.UpdatedAt = s.now()
			if err := updateUser(ctx, tx, owner); err != nil {
				return fmt.Errorf("remove back-reference: %w", err)
			}
		}

		deleted = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListArticles filters, sorts, and pages articles in SQL.
func (s *Store) ListArticles(ctx context.Context, q store.ArticleQuery) (*store.PaginatedResult[*domain.Article], error) {
	q.Page.Normalize()
	where, args := whereClause(q)

	total, err := s.count(ctx, where, args)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + articleColumns + ` FROM articles a` + where +
		` ORDER BY ` + orderBy(q.Sort) + ` LIMIT ? OFFSET ?`
	articles, err := s.queryArticles(ctx, query, append(args, q.Page.Limit, q.Page.Offset())...)
	if err != nil {
		return nil, err
	}
	return pageOf(articles, q.Page, total), nil
}

// CountArticles counts articles passing the filters of q.
func (s *Store) CountArticles(ctx context.Context, q store.ArticleQuery) (int, error) {
	where, args := whereClause(q)
	return s.count(ctx, where, args)
}

// ArticleIDs returns the ids of every article passing the filters of q.
func (s *Store) ArticleIDs(ctx context.Context, q store.ArticleQuery) ([]string, error) {
	where, args := whereClause(q)
	rows, err := s.db.QueryContext(ctx, `SELECT a.id FROM articles a`+where+` ORDER BY a.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list article ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetArticlesByIDs hydrates ids in order. Missing ids are skipped.
func (s *Store) GetArticlesByIDs(ctx context.Context, ids []string) ([]*domain.Article, error) {
	if len(ids) == 0 {
		return []*domain.Article{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	found, err := s.queryArticles(ctx,
		`SELECT `+articleColumns+` FROM articles a WHERE a.id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Article, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]*domain.Article, 0, len(found))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// SearchArticles does a case-insensitive substring match over title,
// content, and tags. Results are newest first.
func (s *Store) SearchArticles(ctx context.Context, term string, page store.Page) (*store.PaginatedResult[*domain.Article], error) {
	page.Normalize()
	pattern := likePattern(strings.TrimSpace(term))
	where := ` WHERE (` + foldFunc + `(a.title) LIKE ? ESCAPE '\' OR ` + foldFunc + `(a.content) LIKE ? ESCAPE '\'
		OR EXISTS (SELECT 1 FROM article_tags t WHERE t.article_id = a.id AND t.tag LIKE ? ESCAPE '\'))`
	args := []any{pattern, pattern, pattern}

	total, err := s.count(ctx, where, args)
	if err != nil {
		return nil, err
	}

	articles, err := s.queryArticles(ctx,
		`SELECT `+articleColumns+` FROM articles a`+where+` ORDER BY `+orderBy(store.SortLatest)+` LIMIT ? OFFSET ?`,
		append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, err
	}
	return pageOf(articles, page, total), nil
}

// RepairBackReferences rebuilds a user's article list from the articles
// that name the user as owner, keeping the existing order where possible.
func (s *Store) RepairBackReferences(ctx context.Context, userID string) (*domain.User, int, error) {
	var (
		repaired *domain.User
		changes  int
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		u, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `SELECT id FROM articles WHERE owner_id = ? ORDER BY created_at, id`, userID)
		if err != nil {
			return fmt.Errorf("list owned articles: %w", err)
		}
		owned := make(map[string]bool)
		var ordered []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			owned[id] = true
			ordered = append(ordered, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, id := range append([]string(nil), u.ArticleIDs...) {
			if !owned[id] {
				u.RemoveArticle(id)
				changes++
			}
		}
		for _, id := range ordered {
			if u.AddArticle(id) {
				changes++
			}
		}

		if changes > 0 {
			u.UpdatedAt = s.now()
			if err := updateUser(ctx, tx, u); err != nil {
				return err
			}
		}
		repaired = u
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	if changes > 0 && s.logger != nil {
		s.logger.Warn("repaired article back-references", "user_id", userID, "changes", changes)
	}
	return repaired, changes, nil
}

func (s *Store) count(ctx context.Context, where string, args []any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles a`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

func (s *Store) queryArticles(ctx context.Context, query string, args ...any) ([]*domain.Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	articles := []*domain.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		articles = append(articles, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadTags(ctx, s.db, articles); err != nil {
		return nil, err
	}
	return articles, nil
}

func whereClause(q store.ArticleQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.Tag != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM article_tags t WHERE t.article_id = a.id AND t.tag = ?)`)
		args = append(args, q.Tag)
	}
	if q.OwnerID != "" {
		conds = append(conds, `a.owner_id = ?`)
		args = append(args, q.OwnerID)
	}
	if q.FeaturedOnly {
		conds = append(conds, `a.featured = 1`)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, " AND "), args
}

func orderBy(sort store.Sort) string {
	switch sort {
	case store.SortOldest:
		return `a.created_at ASC, a.id ASC`
	case store.SortTitleAsc:
		return foldFunc + `(a.title) ASC, a.id ASC`
	case store.SortTitleDesc:
		return foldFunc + `(a.title) DESC, a.id ASC`
	default:
		return `a.created_at DESC, a.id ASC`
	}
}

func pageOf(items []*domain.Article, p store.Page, total int) *store.PaginatedResult[*domain.Article] {
	return &store.PaginatedResult[*domain.Article]{
		Items:      items,
		Page:       p.Number,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: (total + p.Limit - 1) / p.Limit,
		HasMore:    p.Offset()+len(items) < total,
	}
}

func replaceTags(ctx context.Context, q querier, articleID string, tags []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM article_tags WHERE article_id = ?`, articleID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for i, tag := range tags {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO article_tags (article_id, position, tag) VALUES (?, ?, ?)`,
			articleID, i, tag); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}
	return nil
}

// loadTags fills Tags for every article with one query.
func loadTags(ctx context.Context, q querier, articles []*domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Article, len(articles))
	args := make([]any, 0, len(articles))
	for _, a := range articles {
		a.Tags = []string{}
		byID[a.ID] = a
		args = append(args, a.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT article_id, tag FROM article_tags WHERE article_id IN (`+placeholders(len(args))+`) ORDER BY article_id, position`,
		args...)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return err
		}
		if a := byID[id]; a != nil {
			a.Tags = append(a.Tags, tag)
		}
	}
	return rows.Err()
}
