package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/auth"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
)

const uidKey = "uid"

var errMissingToken = apperrors.New(apperrors.KindUnauthorized, "missing bearer token")

// Auth resolves the bearer token to a uid and stores it on the context.
func Auth(verifier auth.Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				return errMissingToken
			}

			uid, err := verifier.Verify(c.Request().Context(), token)
			if err != nil {
				return err
			}
			c.Set(uidKey, uid)
			return next(c)
		}
	}
}

// UID returns the authenticated uid, or "" before Auth ran.
func UID(c echo.Context) string {
	uid, _ := c.Get(uidKey).(string)
	return uid
}
