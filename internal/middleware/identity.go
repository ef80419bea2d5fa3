package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/coastie-uk/convention-auction/internal/model"
)

const identityKey = "identity"

// SetIdentity stores the authenticated caller on the echo context.
func SetIdentity(c echo.Context, id model.Identity) {
	c.Set(identityKey, id)
}

// IdentityFrom returns the caller stored by JWTAuth. The second result is
// false for unauthenticated routes such as provider webhooks.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok
}

// userID is used for rate limit keys.
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok && id.Username != "" {
		return id.Username
	}
	return "anon"
}
