// Package context provides request-scoped values extraction.
package context

import (
	"context"

	"restock/internal/core/id"
)

// UserContext contains authenticated user information.
type UserContext struct {
	UserID         id.ID
	OrganizationID id.ID
	Email          string
	Roles          []string
	IsAdmin        bool
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or the nil UUID.
func GetUserID(ctx context.Context) id.ID {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return id.Nil()
}

// GetOrganizationID returns the caller's organization or the nil UUID.
// Every repository query is scoped by this value.
func GetOrganizationID(ctx context.Context) id.ID {
	if u := GetUser(ctx); u != nil {
		return u.OrganizationID
	}
	return id.Nil()
}

// HasRole checks if user has specific role.
func HasRole(ctx context.Context, role string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	if u.IsAdmin {
		return true
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
