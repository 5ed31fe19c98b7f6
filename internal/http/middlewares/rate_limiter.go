package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/ratelimit"
)

// RateLimiter budgets requests per caller: the authenticated uid when known,
// the client IP otherwise. When the limiter itself fails the request passes.
func RateLimiter(limiter ratelimit.Limiter, logger logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := UID(c)
			if key == "" {
				key = "ip:" + c.RealIP()
			}

			allowed, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				logger.WithError(err).WithField("key", key).Warn("rate limiter unavailable, letting request through")
				return next(c)
			}
			if !allowed {
				return apperrors.ErrRateLimited
			}

			return next(c)
		}
	}
}
