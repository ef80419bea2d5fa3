package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/coastie-uk/convention-auction/internal/model"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the caller's identity in the request context. The username is
// read from the "username" claim, falling back to "sub". Tokens are issued
// elsewhere; this service only verifies them.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			id, ok := identityFromClaims(claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			SetIdentity(c, id)
			return next(c)
		}
	}
}

func identityFromClaims(claims jwt.MapClaims) (model.Identity, bool) {
	name, _ := claims["username"].(string)
	if name == "" {
		name, _ = claims["sub"].(string)
	}
	role, _ := claims["role"].(string)
	role = strings.ToLower(role)
	if name == "" || !knownRole(role) {
		return model.Identity{}, false
	}
	return model.Identity{Username: name, Role: role}, true
}

func knownRole(role string) bool {
	switch role {
	case model.RoleAdmin, model.RoleCashier, model.RoleMaintenance:
		return true
	}
	return false
}
