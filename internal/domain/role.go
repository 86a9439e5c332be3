package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Role is the closed set of identity kinds.
type Role string

const (
	// RoleAdmin moderates users and articles.
	RoleAdmin Role = "admin"
	// RoleAuthor writes articles.
	RoleAuthor Role = "author"
	// RoleReader has a profile but cannot publish.
	RoleReader Role = "reader"
)

// ParseRole maps a string onto a Role. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAuthor, RoleReader:
		return true
	}
	return false
}

// SelfAssignable reports whether a user may pick this role at registration.
func (r Role) SelfAssignable() bool {
	return r == RoleAuthor || r == RoleReader
}

// RoleSet is the set of roles allowed to perform an operation.
type RoleSet []Role

// Allows reports whether r is in the set. An empty set allows every role.
func (s RoleSet) Allows(r Role) bool {
	if len(s) == 0 {
		return true
	}
	return slices.Contains(s, r)
}

// Common role sets.
var (
	Writers = RoleSet{RoleAuthor, RoleAdmin}
	Admins  = RoleSet{RoleAdmin}
)
