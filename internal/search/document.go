// Package search provides full-text article search using Bleve.
// The index holds ids and searchable text only; articles are hydrated from the store.
package search

import (
	"strings"

	"github.com/quillpress/quill-server/internal/content"
	"github.com/quillpress/quill-server/internal/domain"
)

// Document is the indexed form of an article.
type Document struct {
	ID        string
	Title     string
	Content   string // plain text
	Tags      []string
	OwnerID   string
	Featured  bool
	CreatedAt int64 // Unix millis
}

// NewDocument builds the index document for an article.
func NewDocument(a *domain.Article) *Document {
	return &Document{
		ID:        a.ID,
		Title:     a.Title,
		Content:   content.StripHTML(a.Content),
		Tags:      a.Tags,
		OwnerID:   a.OwnerID,
		Featured:  a.Featured,
		CreatedAt: a.CreatedAt.UnixMilli(),
	}
}

// ToMap converts the document to a map with lowercase field names
// matching the index mapping.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"title_lc":   strings.ToLower(d.Title),
		"content":    d.Content,
		"words":      d.Content,
		"owner_id":   d.OwnerID,
		"featured":   d.Featured,
		"created_at": d.CreatedAt,
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	return m
}
