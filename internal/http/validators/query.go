package validators

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/geo"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/services"
)

// List splits a comma-separated query parameter, dropping empty items.
func List(c echo.Context, name string) []string {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Int(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Validation("%s must be an integer", name)
	}
	return n, nil
}

func Float(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperrors.Validation("%s must be a number", name)
	}
	return &f, nil
}

func Page(c echo.Context) (services.Page, error) {
	page, err := Int(c, "page")
	if err != nil {
		return services.Page{}, err
	}
	limit, err := Int(c, "limit")
	if err != nil {
		return services.Page{}, err
	}
	return services.Page{Page: page, Limit: limit}, nil
}

// MatchQuery reads lat, lng, radiusKm and limit. lat and lng come together.
func MatchQuery(c echo.Context) (services.MatchQuery, error) {
	var q services.MatchQuery

	lat, err := Float(c, "lat")
	if err != nil {
		return q, err
	}
	lng, err := Float(c, "lng")
	if err != nil {
		return q, err
	}
	switch {
	case lat != nil && lng != nil:
		q.Origin = &geo.Point{Lat: *lat, Lng: *lng}
	case lat != nil || lng != nil:
		return q, apperrors.Validation("lat and lng must be given together")
	}

	radius, err := Float(c, "radiusKm")
	if err != nil {
		return q, err
	}
	if radius != nil {
		if *radius <= 0 {
			return q, apperrors.Validation("radiusKm must be positive")
		}
		q.RadiusKm = *radius
	}

	if q.Limit, err = Int(c, "limit"); err != nil {
		return q, err
	}
	if q.Limit < 0 {
		return q, apperrors.ErrInvalidLimit
	}
	return q, nil
}

func TaskStatuses(c echo.Context) ([]constants.TaskStatus, error) {
	var out []constants.TaskStatus
	for _, raw := range List(c, "status") {
		s, err := constants.ParseTaskStatus(raw)
		if err != nil {
			return nil, apperrors.Validation("%s", err.Error())
		}
		out = append(out, s)
	}
	return out, nil
}

func ApplicationStatuses(c echo.Context) ([]constants.ApplicationStatus, error) {
	var out []constants.ApplicationStatus
	for _, raw := range List(c, "status") {
		s, err := constants.ParseApplicationStatus(raw)
		if err != nil {
			return nil, apperrors.Validation("%s", err.Error())
		}
		out = append(out, s)
	}
	return out, nil
}
