package api

import (
	"net/http"

	"github.com/quillpress/quill-server/internal/http/response"
)

func (s *Server) registerFeedRoutes() {
	// The feed is XML, so it bypasses the JSON envelope.
	s.router.Get("/api/v1/rss/feed", s.handleFeed)
	s.router.Get("/rss/feed", s.handleFeed)
}

func (s *Server) registerMediaRoutes() {
	if s.storage.Media == nil {
		return
	}
	s.router.Mount("/media", http.StripPrefix("/media", s.storage.Media))
}

// handleFeed renders the RSS 2.0 feed of the newest articles.
// GET /rss/feed
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	doc, err := s.services.Feed.Feed(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		s.logger.Debug("feed write aborted", "error", err)
	}
}
