package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/quillpress/quill-server/internal/authz"
	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/http/response"
	"github.com/quillpress/quill-server/internal/service"
	"github.com/quillpress/quill-server/internal/store"
)

func (s *Server) registerArticleRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listArticles",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles",
		Summary:     "List articles",
		Description: "Returns a page of articles",
		Tags:        []string{"Articles"},
	}, s.handleListArticles)

	huma.Register(s.api, huma.Operation{
		OperationID: "latestArticles",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/latest",
		Summary:     "Latest articles",
		Tags:        []string{"Articles"},
	}, s.handleLatestArticles)

	huma.Register(s.api, huma.Operation{
		OperationID: "randomArticles",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/random",
		Summary:     "Random articles",
		Description: "Returns up to limit distinct articles in random order",
		Tags:        []string{"Articles"},
	}, s.handleRandomArticles)

	huma.Register(s.api, huma.Operation{
		OperationID: "featuredArticles",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/featured",
		Summary:     "Featured articles",
		Tags:        []string{"Articles"},
	}, s.handleFeaturedArticles)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchArticles",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/search",
		Summary:     "Search articles",
		Description: "Full-text search over titles, content, and tags",
		Tags:        []string{"Articles"},
	}, s.handleSearchArticles)

	huma.Register(s.api, huma.Operation{
		OperationID: "listArticlesByGenre",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/genre/{tag}",
		Summary:     "List articles by genre",
		Description: "Returns a page of articles carrying the tag",
		Tags:        []string{"Articles"},
	}, s.handleListArticlesByGenre)

	huma.Register(s.api, huma.Operation{
		OperationID: "homeSection",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/home/{key}",
		Summary:     "Home page section",
		Description: `Returns "featured", "latest", or the newest articles of a tag`,
		Tags:        []string{"Articles"},
	}, s.handleHomeSection)

	huma.Register(s.api, huma.Operation{
		OperationID: "listArticlesByAuthor",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/author/{id}",
		Summary:     "Author page",
		Description: "Returns an author's profile and a page of their articles",
		Tags:        []string{"Articles"},
	}, s.handleListArticlesByAuthor)

	huma.Register(s.api, huma.Operation{
		OperationID: "getArticle",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/{id}",
		Summary:     "Get article",
		Tags:        []string{"Articles"},
	}, s.handleGetArticle)

	huma.Register(s.api, huma.Operation{
		OperationID: "getArticleMarkdown",
		Method:      http.MethodGet,
		Path:        "/api/v1/articles/{id}/markdown",
		Summary:     "Export article as Markdown",
		Tags:        []string{"Articles"},
	}, s.handleGetArticleMarkdown)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteArticle",
		Method:      http.MethodDelete,
		Path:        "/api/v1/articles/{id}",
		Summary:     "Delete article",
		Description: "Deletes an article. Allowed for its owner and for admins.",
		Tags:        []string{"Articles"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleDeleteArticle)

	// Create and update take a banner upload, so they go through chi.
	s.router.With(s.gate.Middleware, s.gate.RequireRoles(domain.Writers...)).
		Post("/api/v1/articles", s.handleCreateArticle)
	s.router.With(s.gate.Middleware).Put("/api/v1/articles/{id}", s.handleUpdateArticle)
}

// === DTOs ===

// ListArticlesInput contains listing parameters. Values are kept as strings
// so that garbage falls back to defaults instead of failing the request.
type ListArticlesInput struct {
	Sort  string `query:"sort" doc:"latest, oldest, title-asc, or title-desc"`
	Page  string `query:"page" doc:"1-based page number"`
	Limit string `query:"limit" doc:"Page size, at most 100"`
}

// ListByGenreInput contains the tag listing request.
type ListByGenreInput struct {
	Tag   string `path:"tag" doc:"Tag name"`
	Sort  string `query:"sort" doc:"latest, oldest, title-asc, or title-desc"`
	Page  string `query:"page" doc:"1-based page number"`
	Limit string `query:"limit" doc:"Page size, at most 100"`
}

// SearchArticlesInput contains the search request.
type SearchArticlesInput struct {
	Query string `query:"query" doc:"Search terms"`
	Page  string `query:"page" doc:"1-based page number"`
	Limit string `query:"limit" doc:"Page size, at most 100"`
}

// LimitInput selects how many articles a section returns.
type LimitInput struct {
	Limit string `query:"limit" doc:"Number of articles, at most 100"`
}

// HomeSectionInput selects a home page section.
type HomeSectionInput struct {
	Key   string `path:"key" doc:"featured, latest, or a tag"`
	Limit string `query:"limit" doc:"Number of articles, at most 100"`
}

// AuthorArticlesInput selects an author page.
type AuthorArticlesInput struct {
	ID    string `path:"id" doc:"Author user ID"`
	Page  string `query:"page" doc:"1-based page number"`
	Limit string `query:"limit" doc:"Page size, at most 100"`
}

// ArticleIDInput identifies an article.
type ArticleIDInput struct {
	ID string `path:"id" doc:"Article ID"`
}

// DeleteArticleInput identifies an article to delete.
type DeleteArticleInput struct {
	Authorization string `header:"Authorization" doc:"Bearer token"`
	ID            string `path:"id" doc:"Article ID"`
}

// ArticleOutput wraps a single article.
type ArticleOutput struct {
	Body *service.ArticleView
}

// ArticlePageOutput wraps a page of articles.
type ArticlePageOutput struct {
	Body *store.PaginatedResult[service.ArticleView]
}

// ArticlesOutput wraps an unpaginated list of articles.
type ArticlesOutput struct {
	Body []service.ArticleView
}

// AuthorArticlesOutput wraps an author page.
type AuthorArticlesOutput struct {
	Body *service.AuthorArticles
}

// MarkdownOutput is a raw Markdown document.
type MarkdownOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// DeleteArticleOutput wraps a deletion result.
type DeleteArticleOutput struct {
	Body *service.DeleteResult
}

// === Read handlers ===

func (s *Server) handleListArticles(ctx context.Context, input *ListArticlesInput) (*ArticlePageOutput, error) {
	page, err := s.services.Articles.List(ctx, store.ParseSort(input.Sort), store.NewPage(input.Page, input.Limit))
	if err != nil {
		return nil, err
	}
	return &ArticlePageOutput{Body: page}, nil
}

func (s *Server) handleListArticlesByGenre(ctx context.Context, input *ListByGenreInput) (*ArticlePageOutput, error) {
	page, err := s.services.Articles.ListByTag(ctx, input.Tag, store.ParseSort(input.Sort), store.NewPage(input.Page, input.Limit))
	if err != nil {
		return nil, err
	}
	return &ArticlePageOutput{Body: page}, nil
}

func (s *Server) handleSearchArticles(ctx context.Context, input *SearchArticlesInput) (*ArticlePageOutput, error) {
	page, err := s.services.Articles.Search(ctx, input.Query, store.NewPage(input.Page, input.Limit))
	if err != nil {
		return nil, err
	}
	return &ArticlePageOutput{Body: page}, nil
}

func (s *Server) handleLatestArticles(ctx context.Context, input *LimitInput) (*ArticlesOutput, error) {
	articles, err := s.services.Articles.Latest(ctx, limitOf(input.Limit))
	if err != nil {
		return nil, err
	}
	return &ArticlesOutput{Body: articles}, nil
}

func (s *Server) handleRandomArticles(ctx context.Context, input *LimitInput) (*ArticlesOutput, error) {
	articles, err := s.services.Articles.Random(ctx, limitOf(input.Limit))
	if err != nil {
		return nil, err
	}
	return &ArticlesOutput{Body: articles}, nil
}

func (s *Server) handleFeaturedArticles(ctx context.Context, input *LimitInput) (*ArticlesOutput, error) {
	articles, err := s.services.Articles.Featured(ctx, limitOf(input.Limit))
	if err != nil {
		return nil, err
	}
	return &ArticlesOutput{Body: articles}, nil
}

func (s *Server) handleHomeSection(ctx context.Context, input *HomeSectionInput) (*ArticlesOutput, error) {
	articles, err := s.services.Articles.Home(ctx, input.Key, limitOf(input.Limit))
	if err != nil {
		return nil, err
	}
	return &ArticlesOutput{Body: articles}, nil
}

func (s *Server) handleListArticlesByAuthor(ctx context.Context, input *AuthorArticlesInput) (*AuthorArticlesOutput, error) {
	page, err := s.services.Articles.ListByAuthor(ctx, input.ID, store.NewPage(input.Page, input.Limit))
	if err != nil {
		return nil, err
	}
	return &AuthorArticlesOutput{Body: page}, nil
}

func (s *Server) handleGetArticle(ctx context.Context, input *ArticleIDInput) (*ArticleOutput, error) {
	article, err := s.services.Articles.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ArticleOutput{Body: article}, nil
}

func (s *Server) handleGetArticleMarkdown(ctx context.Context, input *ArticleIDInput) (*MarkdownOutput, error) {
	doc, err := s.services.Articles.Markdown(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &MarkdownOutput{
		ContentType:        "text/markdown; charset=utf-8",
		ContentDisposition: `inline; filename="` + input.ID + `.md"`,
		Body:               []byte(doc),
	}, nil
}

func (s *Server) handleDeleteArticle(ctx context.Context, input *DeleteArticleInput) (*DeleteArticleOutput, error) {
	user, err := s.authenticate(ctx, input.Authorization)
	if err != nil {
		return nil, err
	}

	res, err := s.services.Articles.Delete(ctx, user, input.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteArticleOutput{Body: res}, nil
}

// === Write handlers ===

// handleCreateArticle publishes an article.
// POST /api/v1/articles
// Content-Type: multipart/form-data with "title", "content", optional
// "contentFormat", "tags", "featured", and a required "banner" file.
func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := authz.IdentityFrom(ctx)
	if !ok {
		response.Unauthorized(w, "authentication required", s.logger)
		return
	}

	if err := s.parseForm(w, r); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	req := service.CreateArticleRequest{}
	req.Title, _ = formValue(r, "title")
	req.Content, _ = formValue(r, "content")
	req.ContentFormat, _ = formValue(r, "contentFormat")
	req.Tags, _ = formTags(r)

	featured, _, err := formBool(r, "featured")
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	req.Featured = featured

	banner, err := formImage(r, "banner")
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	req.Banner = banner

	article, err := s.services.Articles.Create(ctx, user, req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, article, s.logger)
}

// handleUpdateArticle applies a partial update. Only fields present in the
// form are changed.
// PUT /api/v1/articles/{id}
// Content-Type: multipart/form-data
func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := authz.IdentityFrom(ctx)
	if !ok {
		response.Unauthorized(w, "authentication required", s.logger)
		return
	}

	articleID := chi.URLParam(r, "id")
	if articleID == "" {
		response.BadRequest(w, "article ID is required", s.logger)
		return
	}

	if err := s.parseForm(w, r); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	var req service.UpdateArticleRequest
	if v, ok := formValue(r, "title"); ok {
		req.Title = &v
	}
	if v, ok := formValue(r, "content"); ok {
		req.Content = &v
	}
	if v, ok := formValue(r, "contentFormat"); ok {
		req.ContentFormat = &v
	}
	if tags, ok := formTags(r); ok {
		req.Tags = &tags
	}

	featured, present, err := formBool(r, "featured")
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if present {
		req.Featured = &featured
	}

	banner, err := formImage(r, "banner")
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	req.Banner = banner

	article, err := s.services.Articles.Update(ctx, user, articleID, req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, article, s.logger)
}

// limitOf parses a section size with the listing defaults and cap.
func limitOf(raw string) int {
	return store.NewPage("", raw).Limit
}
