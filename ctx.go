package cms

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// UserLocalsKey is where the authenticated user lives in fiber locals
const UserLocalsKey = "user"

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// CurrentUser finds the user stored by the auth middleware
func CurrentUser(c *fiber.Ctx) (*User, bool) {
	if user, ok := c.Locals(UserLocalsKey).(*User); ok && user != nil {
		return user, true
	}
	return FromContext(c.UserContext())
}
