package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	dto "github.com/TrizenVenturesLLP/task-connect-relay/internal/data_models"
	middleware "github.com/TrizenVenturesLLP/task-connect-relay/internal/http/middlewares"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/http/validators"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/services"
)

type Handler struct {
	services *services.Services
}

func NewHandler(svcs *services.Services) *Handler {
	return &Handler{
		services: svcs,
	}
}

func (h *Handler) GetMyProfile(c echo.Context) error {
	profile, err := h.services.Profiles.Get(c.Request().Context(), middleware.UID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) SaveProfile(c echo.Context) error {
	var req dto.ProfileRequest
	if err := validators.Bind(c, &req); err != nil {
		return err
	}

	profile, err := h.services.Profiles.Save(c.Request().Context(), middleware.UID(c), req.Input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) CreateTask(c echo.Context) error {
	var req dto.CreateTaskRequest
	if err := validators.Bind(c, &req); err != nil {
		return err
	}
	if err := validators.ValidateCreateTaskRequest(&req); err != nil {
		return err
	}

	task, err := h.services.Tasks.Create(c.Request().Context(), middleware.UID(c), req.Input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *Handler) GetTask(c echo.Context) error {
	task, err := h.services.Tasks.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// ListTasks serves the filtered listing, or recommendations for the caller
// when recommend=true.
func (h *Handler) ListTasks(c echo.Context) error {
	if recommend, _ := strconv.ParseBool(c.QueryParam("recommend")); recommend {
		return h.RecommendTasks(c)
	}

	statuses, err := validators.TaskStatuses(c)
	if err != nil {
		return err
	}
	minBudget, err := validators.Float(c, "minBudget")
	if err != nil {
		return err
	}
	maxBudget, err := validators.Float(c, "maxBudget")
	if err != nil {
		return err
	}
	page, err := validators.Page(c)
	if err != nil {
		return err
	}

	result, err := h.services.Tasks.List(c.Request().Context(), middleware.UID(c), services.TaskQuery{
		Mine:      c.QueryParam("mine"),
		Statuses:  statuses,
		Type:      c.QueryParam("type"),
		City:      c.QueryParam("city"),
		MinBudget: minBudget,
		MaxBudget: maxBudget,
		Skills:    validators.List(c, "skills"),
		Page:      page,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.TaskListResponse{Tasks: result.Tasks, Pagination: result.Pagination})
}

func (h *Handler) RecommendTasks(c echo.Context) error {
	q, err := validators.MatchQuery(c)
	if err != nil {
		return err
	}

	matches, err := h.services.Matches.TasksForProfile(c.Request().Context(), middleware.UID(c), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.TaskMatchesResponse{Count: len(matches), Tasks: matches})
}

func (h *Handler) UpdateTask(c echo.Context) error {
	var req dto.TaskRequestData
	if err := validators.Bind(c, &req); err != nil {
		return err
	}

	task, err := h.services.Tasks.Update(c.Request().Context(), middleware.UID(c), c.Param("id"), req.Input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) CancelTask(c echo.Context) error {
	task, err := h.services.Tasks.Cancel(c.Request().Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) AcceptTask(c echo.Context) error {
	task, err := h.services.Tasks.Accept(c.Request().Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) StartTask(c echo.Context) error {
	task, err := h.services.Tasks.Start(c.Request().Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) CompleteTask(c echo.Context) error {
	var req dto.CompleteTaskRequest
	if err := validators.Bind(c, &req); err != nil {
		return err
	}

	task, err := h.services.Tasks.Complete(c.Request().Context(), middleware.UID(c), c.Param("id"), req.Input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) TransitionTask(c echo.Context) error {
	var req dto.TaskStatusRequest
	if err := validators.Bind(c, &req); err != nil {
		return err
	}
	target, err := validators.ParseTaskStatus(&req)
	if err != nil {
		return err
	}

	task, err := h.services.Tasks.Transition(c.Request().Context(), middleware.UID(c), c.Param("id"), target, req.CompleteTaskRequest.Input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func (h *Handler) ListCandidates(c echo.Context) error {
	q, err := validators.MatchQuery(c)
	if err != nil {
		return err
	}

	taskID := c.Param("taskId")
	candidates, err := h.services.Matches.CandidatesForTask(c.Request().Context(), taskID, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dto.CandidatesResponse{TaskID: taskID, Count: len(candidates), Candidates: candidates})
}

func (h *Handler) SubmitApplication(c echo.Context) error {
	var req dto.ApplicationRequest
	if err := validators.Bind(c, &req); err != nil {
		return err
	}
	if err := validators.ValidateApplicationRequest(&req); err != nil {
		return err
	}

	app, err := h.services.Applications.Submit(c.Request().Context(), middleware.UID(c), req.TaskID, req.Input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, app)
}

func (h *Handler) ListApplications(c echo.Context) error {
	statuses, err := validators.ApplicationStatuses(c)
	if err != nil {
		return err
	}
	page, err := validators.Page(c)
	if err != nil {
		return err
	}

	result, err := h.services.Applications.List(c.Request().Context(), middleware.UID(c), services.ApplicationQuery{
		TaskID:   c.QueryParam("taskId"),
		Statuses: statuses,
		Page:     page,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) GetApplication(c echo.Context) error {
	app, err := h.services.Applications.Get(c.Request().Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, app)
}

func (h *Handler) DecideApplication(c echo.Context) error {
	var req dto.DecisionRequest
	if err := validators.Bind(c, &req); err != nil {
		return err
	}
	decision, err := validators.ParseDecision(&req)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	app, err := h.services.Applications.Decide(ctx, middleware.UID(c), c.Param("id"), decision)
	if err != nil {
		return err
	}
	if req.Message != "" {
		if app, err = h.services.Applications.AddMessage(ctx, middleware.UID(c), app.ID, req.Message); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, app)
}

func (h *Handler) AddMessage(c echo.Context) error {
	var req dto.MessageRequest
	if err := validators.Bind(c, &req); err != nil {
		return err
	}

	app, err := h.services.Applications.AddMessage(c.Request().Context(), middleware.UID(c), c.Param("id"), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, app)
}

func (h *Handler) WithdrawApplication(c echo.Context) error {
	app, err := h.services.Applications.Withdraw(c.Request().Context(), middleware.UID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, app)
}
