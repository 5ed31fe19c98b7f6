package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/metrics"
)

// Observe logs every request and records its status and latency. Errors are
// rendered here so the recorded status is the one sent.
func Observe(logger logrus.FieldLogger, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			elapsed := time.Since(start)
			m.RecordHTTPRequest(req.Method, route, status, elapsed)

			entry := logger.WithFields(logrus.Fields{
				"method":     req.Method,
				"route":      route,
				"status":     status,
				"latency_ms": elapsed.Milliseconds(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			})
			if uid := UID(c); uid != "" {
				entry = entry.WithField("uid", uid)
			}
			switch {
			case status >= 500:
				entry.WithError(err).Error("request failed")
			case status >= 400:
				entry.Info("request rejected")
			default:
				entry.Debug("request served")
			}
			return nil
		}
	}
}
