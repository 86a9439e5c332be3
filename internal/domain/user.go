package domain

import (
	"slices"
	"time"
)

// User is an authenticated identity: admin, author, or reader.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Name         string    `json:"name"`
	Bio          string    `json:"bio,omitempty"`
	ProfileImage MediaRef  `json:"profile_image"`
	Role         Role      `json:"role"`
	ArticleIDs   []string  `json:"article_ids"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasArticle reports whether the back-reference list contains articleID.
func (u *User) HasArticle(articleID string) bool {
	return slices.Contains(u.ArticleIDs, articleID)
}

// AddArticle appends articleID unless it is already listed.
// Returns true when the list changed.
func (u *User) AddArticle(articleID string) bool {
	if u.HasArticle(articleID) {
		return false
	}
	u.ArticleIDs = append(u.ArticleIDs, articleID)
	return true
}

// RemoveArticle drops every occurrence of articleID.
// Returns true when the list changed.
func (u *User) RemoveArticle(articleID string) bool {
	before := len(u.ArticleIDs)
	u.ArticleIDs = slices.DeleteFunc(u.ArticleIDs, func(id string) bool { return id == articleID })
	return len(u.ArticleIDs) != before
}

// ProfilePatch carries a partial profile update. Empty fields are ignored.
type ProfilePatch struct {
	Name string
	Bio  string
}

// Apply copies the non-empty fields onto u and reports whether anything changed.
func (p ProfilePatch) Apply(u *User) bool {
	changed := false
	if p.Name != "" && p.Name != u.Name {
		u.Name = p.Name
		changed = true
	}
	if p.Bio != "" && p.Bio != u.Bio {
		u.Bio = p.Bio
		changed = true
	}
	return changed
}

// PublicUser is the projection of a User safe to return to clients.
type PublicUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	Name         string    `json:"name"`
	Bio          string    `json:"bio,omitempty"`
	ProfileImage MediaRef  `json:"profile_image"`
	Role         Role      `json:"role"`
	ArticleIDs   []string  `json:"article_ids"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Public strips the password hash.
func (u *User) Public() PublicUser {
	ids := u.ArticleIDs
	if ids == nil {
		ids = []string{}
	}
	return PublicUser{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Bio:          u.Bio,
		ProfileImage: u.ProfileImage,
		Role:         u.Role,
		ArticleIDs:   ids,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// Author is the public view without the email address, used on article and profile pages.
func (u *User) Author() PublicUser {
	p := u.Public()
	p.Email = ""
	return p
}
