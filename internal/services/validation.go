package services

import (
	"math"
	"strings"
	"unicode/utf8"

	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/geo"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
)

// MaxMessageLength bounds a single application message, in characters.
const MaxMessageLength = 1000

const (
	maxProfileSkills = 50
	maxTaskSkills    = 20
	maxAttachments   = 10
	maxTitleLen      = 200
	maxTextLen       = 2000
	maxCoverLetter   = 1000
	defaultCurrency  = "INR"
	defaultPageSize  = 20
	maxPageSize      = 100
)

// normalizeSkills trims, lowercases and de-duplicates, keeping first-seen order.
func normalizeSkills(skills []string, limit int) ([]string, error) {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		s = geo.NormalizeSkill(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) > limit {
		return nil, apperrors.Validation("at most %d skills are allowed", limit)
	}
	return out, nil
}

func validatePoint(p geo.Point) error {
	if !p.Valid() {
		return apperrors.Validation("coordinates out of range: lat must be within [-90,90] and lng within [-180,180]")
	}
	return nil
}

// validateLocation checks the coordinates when present; required demands both.
func validateLocation(loc model.Location, required bool) error {
	if (loc.Lat == nil) != (loc.Lng == nil) {
		return apperrors.Validation("location needs both lat and lng")
	}
	p, ok := loc.Point()
	if !ok {
		if required {
			return apperrors.Validation("location coordinates are required")
		}
		return nil
	}
	return validatePoint(p)
}

func validateBudget(b *model.Budget, fallbackCurrency string) error {
	if math.IsNaN(b.Amount) || math.IsInf(b.Amount, 0) || b.Amount < 0 {
		return apperrors.Validation("budget amount must be a non-negative number")
	}
	b.Currency = strings.ToUpper(strings.TrimSpace(b.Currency))
	if b.Currency == "" {
		b.Currency = fallbackCurrency
	}
	if len(b.Currency) != 3 {
		return apperrors.Validation("currency must be a 3-letter code")
	}
	return nil
}

func validateLength(field, value string, limit int) error {
	if utf8.RuneCountInString(value) > limit {
		return apperrors.Validation("%s must be at most %d characters", field, limit)
	}
	return nil
}

func cleanList(items []string, field string, limit int) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) > limit {
		return nil, apperrors.Validation("at most %d %s are allowed", limit, field)
	}
	return out, nil
}

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

func (p Page) resolve() (limit, offset, page int, err error) {
	if p.Limit < 0 || p.Page < 0 {
		return 0, 0, 0, apperrors.ErrInvalidLimit
	}
	limit = p.Limit
	if limit == 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	page = max(p.Page, 1)
	return limit, (page - 1) * limit, page, nil
}

// Pagination describes the page that was served.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

func newPagination(page, limit int, total int64) Pagination {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, PageSize: limit, Total: total, TotalPages: pages}
}
