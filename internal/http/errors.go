package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	dto "github.com/TrizenVenturesLLP/task-connect-relay/internal/data_models"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
)

// ErrorHandler renders every error as {"error", "kind"} with the status of
// its kind. Unknown errors are logged and hidden behind a 500.
func ErrorHandler(logger logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status == http.StatusInternalServerError {
			logger.WithError(err).WithField("path", c.Request().URL.Path).Error("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.WithError(err).Warn("failed to write error response")
		}
	}
}

func render(err error) (int, dto.ErrorResponse) {
	var appErr *apperrors.Exception
	if errors.As(err, &appErr) {
		return apperrors.StatusCode(err), dto.ErrorResponse{
			Error: apperrors.Message(err),
			Kind:  string(appErr.Kind),
		}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, dto.ErrorResponse{Error: msg, Kind: string(kindForStatus(httpErr.Code))}
	}

	return http.StatusInternalServerError, dto.ErrorResponse{
		Error: "internal server error",
		Kind:  string(apperrors.KindInternal),
	}
}

func kindForStatus(status int) apperrors.Kind {
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperrors.KindNotFound
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return apperrors.KindValidation
	case http.StatusUnauthorized:
		return apperrors.KindUnauthorized
	case http.StatusForbidden:
		return apperrors.KindForbidden
	case http.StatusTooManyRequests:
		return apperrors.KindRateLimited
	case http.StatusServiceUnavailable:
		return apperrors.KindUnavailable
	default:
		return apperrors.KindInternal
	}
}
