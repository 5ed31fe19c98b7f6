package validators

import (
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	dto "github.com/TrizenVenturesLLP/task-connect-relay/internal/data_models"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/services"
)

// Bind decodes the request body; decoding failures become a validation error.
func Bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperrors.ErrInvalidJSON
	}
	return nil
}

func ValidateCreateTaskRequest(r *dto.TaskRequestData) error {
	if r.Title == nil || *r.Title == "" {
		return apperrors.Validation("title is required")
	}
	if r.Type == nil || *r.Type == "" {
		return apperrors.Validation("type is required")
	}
	if r.Location == nil {
		return apperrors.Validation("location is required")
	}
	return nil
}

func ValidateApplicationRequest(r *dto.ApplicationRequest) error {
	if r.TaskID == "" {
		return apperrors.ErrTaskIDRequired
	}
	return nil
}

func ParseDecision(r *dto.DecisionRequest) (constants.Decision, error) {
	raw := r.Decision
	if raw == "" {
		raw = r.Status
	}
	d, err := constants.ParseDecision(raw)
	if err != nil {
		return "", apperrors.Validation("decision must be accept or reject")
	}
	r.Message = strings.TrimSpace(r.Message)
	if utf8.RuneCountInString(r.Message) > services.MaxMessageLength {
		return "", apperrors.Validation("message must be at most %d characters", services.MaxMessageLength)
	}
	return d, nil
}

func ParseTaskStatus(r *dto.TaskStatusRequest) (constants.TaskStatus, error) {
	if r.Status == "" {
		return "", apperrors.Validation("status is required")
	}
	s, err := constants.ParseTaskStatus(r.Status)
	if err != nil {
		return "", apperrors.Validation("%s", err.Error())
	}
	return s, nil
}
