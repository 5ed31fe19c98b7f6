package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/auth"
	middleware "github.com/TrizenVenturesLLP/task-connect-relay/internal/http/middlewares"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/metrics"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/ratelimit"
)

// NewEcho builds the engine with error rendering, request observation, the
// health check and the metrics endpoint.
func NewEcho(logger logrus.FieldLogger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger)

	e.Use(echomw.RequestID())
	e.Use(middleware.Observe(logger, m))
	e.Use(echomw.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	return e
}

func Register(e *echo.Echo, h *Handler, verifier auth.Verifier, limiter ratelimit.Limiter, logger logrus.FieldLogger) {
	api := e.Group("/api/v1", middleware.Auth(verifier), middleware.RateLimiter(limiter, logger))

	api.GET("/profiles/me", h.GetMyProfile)
	api.POST("/profiles", h.SaveProfile)
	api.PUT("/profiles/me", h.SaveProfile)

	api.POST("/tasks", h.CreateTask)
	api.GET("/tasks", h.ListTasks)
	api.GET("/tasks/:id", h.GetTask)
	api.PUT("/tasks/:id", h.UpdateTask)
	api.DELETE("/tasks/:id", h.CancelTask)
	api.POST("/tasks/:id/accept", h.AcceptTask)
	api.POST("/tasks/:id/start", h.StartTask)
	api.POST("/tasks/:id/complete", h.CompleteTask)
	api.PATCH("/tasks/:id/status", h.TransitionTask)

	api.GET("/matches/tasks/:taskId/candidates", h.ListCandidates)
	api.GET("/matches/recommended", h.RecommendTasks)

	api.POST("/applications", h.SubmitApplication)
	api.GET("/applications", h.ListApplications)
	api.GET("/applications/:id", h.GetApplication)
	api.PUT("/applications/:id", h.DecideApplication)
	api.POST("/applications/:id/message", h.AddMessage)
	api.DELETE("/applications/:id", h.WithdrawApplication)
}
