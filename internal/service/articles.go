package service

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/quillpress/quill-server/internal/content"
	"github.com/quillpress/quill-server/internal/domain"
	domainerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/id"
	"github.com/quillpress/quill-server/internal/media"
	"github.com/quillpress/quill-server/internal/search"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/validation"
)

// Home feed keys that are not tags.
const (
	HomeFeatured = "featured"
	HomeLatest   = "latest"
)

// SearchIndex is the full-text index kept in sync with article mutations.
type SearchIndex interface {
	IndexArticle(a *domain.Article) error
	DeleteArticle(id string) error
	Search(ctx context.Context, q string, limit, offset int) (*search.Result, error)
	Reindex(articles []*domain.Article) error
}

// ArticleService owns the article lifecycle and every article query.
type ArticleService struct {
	store     store.Store
	media     *MediaClient
	index     SearchIndex
	validator *validation.Validator
	logger    *slog.Logger
}

// NewArticleService creates an article service. index may be nil, in which
// case search falls back to a store scan.
func NewArticleService(
	store store.Store,
	media *MediaClient,
	index SearchIndex,
	validator *validation.Validator,
	logger *slog.Logger,
) *ArticleService {
	return &ArticleService{
		store:     store,
		media:     media,
		index:     index,
		validator: validator,
		logger:    logger,
	}
}

// CreateArticleRequest contains the data for a new article.
type CreateArticleRequest struct {
	Title         string     `json:"title" validate:"required,max=200"`
	Content       string     `json:"content" validate:"required"`
	ContentFormat string     `json:"content_format"`
	Tags          []string   `json:"tags" validate:"max=20,dive,tag"`
	Featured      bool       `json:"featured"`
	Banner        *ImageFile `json:"-"`
}

// UpdateArticleRequest carries a partial update. Nil fields keep the stored value.
type UpdateArticleRequest struct {
	Title         *string
	Content       *string
	ContentFormat *string
	Tags          *[]string
	Featured      *bool
	Banner        *ImageFile
}

// DeleteResult reports the outcome of a deletion.
type DeleteResult struct {
	ID           string `json:"id"`
	MediaDeleted bool   `json:"mediaDeleted"`
}

// Create uploads the banner, then persists the article and the owner's
// back-reference together. An upload failure persists nothing.
func (s *ArticleService) Create(ctx context.Context, identity *domain.User, req CreateArticleRequest) (*ArticleView, error) {
	if err := requireRole(identity, domain.Writers); err != nil {
		return nil, err
	}

	req.Title = strings.TrimSpace(req.Title)
	if strings.TrimSpace(req.Content) == "" {
		req.Content = ""
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Banner == nil || len(req.Banner.Data) == 0 {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"banner": "is required"})
	}

	format, err := parseFormat(req.ContentFormat)
	if err != nil {
		return nil, err
	}
	body, source, err := renderBody(req.Content, format)
	if err != nil {
		return nil, err
	}

	articleID, err := id.Generate(id.PrefixArticle)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to generate article id")
	}

	banner, err := s.media.Upload(ctx, req.Banner, media.FolderBanners)
	if err != nil {
		return nil, err
	}

	article := &domain.Article{
		ID:            articleID,
		Title:         req.Title,
		Content:       body,
		Source:        source,
		ContentFormat: format,
		Tags:          content.NormalizeTags(req.Tags),
		Featured:      req.Featured,
		Banner:        banner,
		OwnerID:       identity.ID,
		CreatedAt:     time.Now(),
	}

	if err := s.store.CreateArticle(ctx, article); err != nil {
		s.logger.Warn("article not saved, banner left at media host",
			"article_id", articleID,
			"asset_id", banner.AssetID,
			"error", err,
		)
		return nil, storeError(err, "author not found")
	}

	s.reindex(article)
	s.logger.Info("article created", "article_id", article.ID, "owner_id", article.OwnerID)

	view := newView(article, identity)
	return &view, nil
}

// Update applies a partial update. Only the owner may update an article.
// A new banner is uploaded before any field changes; the old banner is
// deleted in the background once the article is saved.
func (s *ArticleService) Update(ctx context.Context, identity *domain.User, articleID string, req UpdateArticleRequest) (*ArticleView, error) {
	if identity == nil {
		return nil, domainerrors.Unauthorized("authentication required")
	}

	current, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, storeError(err, "article not found")
	}
	if !current.IsOwnedBy(identity.ID) {
		return nil, domainerrors.Forbidden("only the author can update this article")
	}

	updated, err := s.applyPatch(current, req)
	if err != nil {
		return nil, err
	}

	if req.Banner != nil && len(req.Banner.Data) > 0 {
		banner, err := s.media.Upload(ctx, req.Banner, media.FolderBanners)
		if err != nil {
			return nil, err
		}
		updated.Banner = banner
	}

	if err := s.store.UpdateArticle(ctx, updated); err != nil {
		if updated.Banner != current.Banner {
			s.media.Discard(updated.Banner)
		}
		return nil, storeError(err, "article not found")
	}

	if updated.Banner != current.Banner {
		s.media.Discard(current.Banner)
	}

	s.reindex(updated)
	s.logger.Info("article updated", "article_id", updated.ID)

	view := newView(updated, identity)
	return &view, nil
}

// applyPatch validates req and returns a copy of a with it applied.
// Empty strings count as not provided.
func (s *ArticleService) applyPatch(a *domain.Article, req UpdateArticleRequest) (*domain.Article, error) {
	out := *a
	out.Tags = append([]string(nil), a.Tags...)

	if req.Title != nil {
		if title := strings.TrimSpace(*req.Title); title != "" {
			if err := s.validator.Var("title", title, "max=200"); err != nil {
				return nil, err
			}
			out.Title = title
		}
	}

	format := a.ContentFormat
	if req.ContentFormat != nil && *req.ContentFormat != "" {
		parsed, err := parseFormat(*req.ContentFormat)
		if err != nil {
			return nil, err
		}
		format = parsed
	}

	switch {
	case req.Content != nil && strings.TrimSpace(*req.Content) != "":
		body, source, err := renderBody(*req.Content, format)
		if err != nil {
			return nil, err
		}
		out.Content, out.Source, out.ContentFormat = body, source, format
	case format != a.ContentFormat:
		// Switching format without new content keeps the rendered body.
		if format == domain.ContentMarkdown {
			md, err := content.ToMarkdown(a.Content)
			if err != nil {
				return nil, domainerrors.Validation("content cannot be converted to markdown").WithCause(err)
			}
			out.Source = md
		} else {
			out.Source = ""
		}
		out.ContentFormat = format
	}

	if req.Tags != nil {
		if err := s.validator.Var("tags", *req.Tags, "max=20,dive,tag"); err != nil {
			return nil, err
		}
		out.Tags = content.NormalizeTags(*req.Tags)
	}

	if req.Featured != nil {
		out.Featured = *req.Featured
	}
	return &out, nil
}

// Delete removes an article. The owner and admins may delete.
// The result reports whether the banner was removed from the media host.
func (s *ArticleService) Delete(ctx context.Context, identity *domain.User, articleID string) (*DeleteResult, error) {
	if identity == nil {
		return nil, domainerrors.Unauthorized("authentication required")
	}

	article, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, storeError(err, "article not found")
	}
	if !article.IsOwnedBy(identity.ID) && !identity.IsAdmin() {
		return nil, domainerrors.Forbidden("only the author or an admin can delete this article")
	}

	result, err := s.remove(ctx, articleID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("article deleted",
		"article_id", articleID,
		"deleted_by", identity.ID,
		"media_deleted", result.MediaDeleted,
	)
	return result, nil
}

// remove deletes the record and back-reference in one transaction, then the
// banner. Media failure is reported, not returned.
func (s *ArticleService) remove(ctx context.Context, articleID string) (*DeleteResult, error) {
	deleted, err := s.store.DeleteArticle(ctx, articleID)
	if err != nil {
		return nil, storeError(err, "article not found")
	}

	mediaDeleted := s.media.DeleteNow(ctx, deleted.Banner)
	s.unindex(articleID)

	return &DeleteResult{ID: articleID, MediaDeleted: mediaDeleted}, nil
}

// removeDetached deletes an article and schedules its banner for background deletion.
func (s *ArticleService) removeDetached(ctx context.Context, articleID string) error {
	deleted, err := s.store.DeleteArticle(ctx, articleID)
	if err != nil {
		return storeError(err, "article not found")
	}
	s.media.Discard(deleted.Banner)
	s.unindex(articleID)
	return nil
}

// Get returns one article with its author.
func (s *ArticleService) Get(ctx context.Context, articleID string) (*ArticleView, error) {
	article, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, storeError(err, "article not found")
	}
	views, err := hydrate(ctx, s.store, []*domain.Article{article})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List pages through every article.
func (s *ArticleService) List(ctx context.Context, sort store.Sort, page store.Page) (*store.PaginatedResult[ArticleView], error) {
	return s.list(ctx, store.ArticleQuery{Sort: sort, Page: page})
}

// ListByTag pages through the articles carrying tag.
func (s *ArticleService) ListByTag(ctx context.Context, tag string, sort store.Sort, page store.Page) (*store.PaginatedResult[ArticleView], error) {
	normalized := content.NormalizeTag(tag)
	if normalized == "" {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"tag": "is required"})
	}
	return s.list(ctx, store.ArticleQuery{Tag: normalized, Sort: sort, Page: page})
}

// AuthorArticles is an author's public profile with one page of their articles.
type AuthorArticles struct {
	Author   domain.PublicUser                    `json:"author"`
	Articles *store.PaginatedResult[ArticleView] `json:"articles"`
}

// ListByAuthor returns an author's articles, newest first. The author's
// back-reference list is reconciled with the articles on the way.
func (s *ArticleService) ListByAuthor(ctx context.Context, authorID string, page store.Page) (*AuthorArticles, error) {
	author, _, err := s.store.RepairBackReferences(ctx, authorID)
	if err != nil {
		return nil, storeError(err, "author not found")
	}

	articles, err := s.list(ctx, store.ArticleQuery{OwnerID: authorID, Sort: store.SortLatest, Page: page})
	if err != nil {
		return nil, err
	}
	return &AuthorArticles{Author: author.Author(), Articles: articles}, nil
}

// Latest returns the newest articles.
func (s *ArticleService) Latest(ctx context.Context, limit int) ([]ArticleView, error) {
	return s.first(ctx, store.ArticleQuery{Sort: store.SortLatest}, limit)
}

// Featured returns the newest featured articles.
func (s *ArticleService) Featured(ctx context.Context, limit int) ([]ArticleView, error) {
	return s.first(ctx, store.ArticleQuery{FeaturedOnly: true, Sort: store.SortLatest}, limit)
}

// Random returns up to limit distinct articles sampled uniformly.
// Only the sampled ids are loaded.
func (s *ArticleService) Random(ctx context.Context, limit int) ([]ArticleView, error) {
	limit = clampLimit(limit)

	ids, err := s.store.ArticleIDs(ctx, store.ArticleQuery{})
	if err != nil {
		return nil, storeError(err, "article not found")
	}

	n := min(limit, len(ids))
	for i := range n {
		j := i + rand.IntN(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}

	articles, err := s.store.GetArticlesByIDs(ctx, ids[:n])
	if err != nil {
		return nil, storeError(err, "article not found")
	}
	return hydrate(ctx, s.store, articles)
}

// Home returns a home page section: "featured", "latest", or the newest
// articles of a tag.
func (s *ArticleService) Home(ctx context.Context, key string, limit int) ([]ArticleView, error) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case HomeFeatured:
		return s.Featured(ctx, limit)
	case HomeLatest:
		return s.Latest(ctx, limit)
	}

	tag := content.NormalizeTag(key)
	if tag == "" {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"key": "must be featured, latest, or a tag"})
	}
	return s.first(ctx, store.ArticleQuery{Tag: tag, Sort: store.SortLatest}, limit)
}

// Search finds articles matching a free-text query. An empty query matches nothing.
func (s *ArticleService) Search(ctx context.Context, query string, page store.Page) (*store.PaginatedResult[ArticleView], error) {
	page.Normalize()
	query = strings.TrimSpace(query)
	if query == "" {
		return hydratePage(ctx, s.store, store.Paginate([]*domain.Article{}, page))
	}

	if s.index != nil {
		res, err := s.index.Search(ctx, query, page.Limit, page.Offset())
		if err == nil {
			return s.indexPage(ctx, res, page)
		}
		s.logger.Warn("search index failed, falling back to scan", "error", err)
	}

	result, err := s.store.SearchArticles(ctx, query, page)
	if err != nil {
		return nil, storeError(err, "article not found")
	}
	return hydratePage(ctx, s.store, result)
}

func (s *ArticleService) indexPage(ctx context.Context, res *search.Result, page store.Page) (*store.PaginatedResult[ArticleView], error) {
	articles, err := s.store.GetArticlesByIDs(ctx, res.IDs)
	if err != nil {
		return nil, storeError(err, "article not found")
	}
	views, err := hydrate(ctx, s.store, articles)
	if err != nil {
		return nil, err
	}
	return &store.PaginatedResult[ArticleView]{
		Items:      views,
		Page:       page.Number,
		Limit:      page.Limit,
		Total:      res.Total,
		TotalPages: (res.Total + page.Limit - 1) / page.Limit,
		HasMore:    page.Offset()+len(res.IDs) < res.Total,
	}, nil
}

// Markdown exports an article as a markdown document.
func (s *ArticleService) Markdown(ctx context.Context, articleID string) (string, error) {
	article, err := s.store.GetArticle(ctx, articleID)
	if err != nil {
		return "", storeError(err, "article not found")
	}

	body := article.Source
	if article.ContentFormat != domain.ContentMarkdown || body == "" {
		body, err = content.ToMarkdown(article.Content)
		if err != nil {
			return "", domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to export article")
		}
	}
	return "# " + article.Title + "\n\n" + body + "\n", nil
}

// Reindex rebuilds the search index from the store. It is a no-op when
// search is disabled.
func (s *ArticleService) Reindex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}

	var all []*domain.Article
	page := store.Page{Number: 1, Limit: store.MaxLimit}
	for {
		res, err := s.store.ListArticles(ctx, store.ArticleQuery{Sort: store.SortOldest, Page: page})
		if err != nil {
			return storeError(err, "article not found")
		}
		all = append(all, res.Items...)
		if !res.HasMore {
			break
		}
		page.Number++
	}
	if err := s.index.Reindex(all); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to rebuild search index")
	}
	return nil
}

func (s *ArticleService) list(ctx context.Context, q store.ArticleQuery) (*store.PaginatedResult[ArticleView], error) {
	q.Page.Normalize()
	res, err := s.store.ListArticles(ctx, q)
	if err != nil {
		return nil, storeError(err, "article not found")
	}
	return hydratePage(ctx, s.store, res)
}

func (s *ArticleService) first(ctx context.Context, q store.ArticleQuery, limit int) ([]ArticleView, error) {
	q.Page = store.Page{Number: 1, Limit: clampLimit(limit)}
	res, err := s.list(ctx, q)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (s *ArticleService) reindex(a *domain.Article) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexArticle(a); err != nil {
		s.logger.Warn("failed to index article", "article_id", a.ID, "error", err)
	}
}

func (s *ArticleService) unindex(articleID string) {
	if s.index == nil {
		return
	}
	if err := s.index.DeleteArticle(articleID); err != nil {
		s.logger.Warn("failed to remove article from index", "article_id", articleID, "error", err)
	}
}

func requireRole(identity *domain.User, roles domain.RoleSet) error {
	if identity == nil {
		return domainerrors.Unauthorized("authentication required")
	}
	if !roles.Allows(identity.Role) {
		return domainerrors.Forbidden("insufficient role for this operation")
	}
	return nil
}

func parseFormat(raw string) (domain.ContentFormat, error) {
	switch domain.ContentFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", domain.ContentHTML:
		return domain.ContentHTML, nil
	case domain.ContentMarkdown:
		return domain.ContentMarkdown, nil
	default:
		return "", domainerrors.ValidationWithDetails("validation failed",
			map[string]string{"content_format": "must be one of: html markdown"})
	}
}

// renderBody returns the stored HTML body and, for markdown, the source.
func renderBody(raw string, format domain.ContentFormat) (body, source string, err error) {
	if format != domain.ContentMarkdown {
		return raw, "", nil
	}
	html, err := content.RenderMarkdown(raw)
	if err != nil {
		return "", "", domainerrors.Validation("content is not valid markdown").WithCause(err)
	}
	return html, raw, nil
}
