package domain

import "time"

// ContentFormat describes how Article.Content was authored.
type ContentFormat string

const (
	// ContentHTML is rich text produced by the editor.
	ContentHTML ContentFormat = "html"
	// ContentMarkdown is rendered to HTML on save; Source keeps the original.
	ContentMarkdown ContentFormat = "markdown"
)

// Article is the core content entity. It always has exactly one owner.
type Article struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	Source        string        `json:"source,omitempty"`
	ContentFormat ContentFormat `json:"content_format"`
	Tags          []string      `json:"tags"`
	Featured      bool          `json:"featured"`
	Banner        MediaRef      `json:"banner"`
	OwnerID       string        `json:"owner_id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsOwnedBy compares the owner against userID exactly.
func (a *Article) IsOwnedBy(userID string) bool {
	return userID != "" && a.OwnerID == userID
}

// HasTag reports whether the article carries tag.
func (a *Article) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
