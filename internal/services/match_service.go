package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/geo"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
)

type MatchService struct {
	*env
}

// MatchQuery overrides the defaults of a match call; zero values fall back
// to configuration.
type MatchQuery struct {
	Origin   *geo.Point
	RadiusKm float64
	Limit    int
}

// Candidate is a tasker ranked against a task. DistanceKm is nil when the
// distance could not be computed and the missing-origin policy kept it.
type Candidate struct {
	UID          string   `json:"uid"`
	Name         string   `json:"name"`
	PhotoURL     string   `json:"photoURL,omitempty"`
	Rating       float64  `json:"rating"`
	DistanceKm   *float64 `json:"distanceKm"`
	SkillOverlap int      `json:"skillOverlap"`
	Score        float64  `json:"score"`

	createdAt time.Time
}

// TaskMatch is an open task ranked for a tasker.
type TaskMatch struct {
	model.Task
	DistanceKm   *float64 `json:"distanceKm"`
	SkillOverlap int      `json:"skillOverlap"`
	Score        float64  `json:"score"`
}

type scored struct {
	distance *float64
	overlap  int
	score    float64
}

func (s *MatchService) CandidatesForTask(ctx context.Context, taskID string, q MatchQuery) ([]Candidate, error) {
	defer s.observe("candidates", s.now())

	radius, limit, err := s.resolve(q)
	if err != nil {
		return nil, err
	}
	task, err := s.store.Tasks().FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	origin, hasOrigin := task.Location.Point()
	if q.Origin != nil {
		origin, hasOrigin = *q.Origin, true
	}
	if !hasOrigin && s.cfg.Match.MissingOrigin != MissingOriginUnfiltered {
		return []Candidate{}, nil
	}

	filter := repository.ProfileFilter{
		TaskersOnly: true,
		ExcludeUID:  task.CreatorUID,
		Limit:       s.cfg.Match.CandidatePool,
	}
	if s.cfg.Match.SkillPrefilter && len(task.SkillsRequired) > 0 {
		filter.SkillsAny = task.SkillsRequired
	}
	profiles, err := s.store.Profiles().List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		if !p.PerformsTasks() {
			continue
		}
		at, ok := p.Location.Point()
		if !ok {
			continue
		}
		m, keep := rank(origin, hasOrigin, at, radius, p.Skills, task.SkillsRequired)
		if !keep {
			continue
		}
		out = append(out, Candidate{
			UID:          p.UID,
			Name:         p.Name,
			PhotoURL:     p.PhotoURL,
			Rating:       p.Rating,
			DistanceKm:   m.distance,
			SkillOverlap: m.overlap,
			Score:        m.score,
			createdAt:    p.CreatedAt,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return ranksBefore(out[i].Score, out[j].Score, out[i].createdAt, out[j].createdAt, out[i].UID, out[j].UID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TasksForProfile ranks open tasks for uid. A caller without a profile is
// matched with no skills and, unless an origin is given, no location.
func (s *MatchService) TasksForProfile(ctx context.Context, uid string, q MatchQuery) ([]TaskMatch, error) {
	defer s.observe("tasks", s.now())

	radius, limit, err := s.resolve(q)
	if err != nil {
		return nil, err
	}

	profile, err := s.store.Profiles().FindByUID(ctx, uid)
	switch {
	case errors.Is(err, apperrors.ErrProfileNotFound):
		profile = &model.Profile{UID: uid}
	case err != nil:
		return nil, err
	}

	origin, hasOrigin := profile.Location.Point()
	if q.Origin != nil {
		origin, hasOrigin = *q.Origin, true
	}
	if !hasOrigin && s.cfg.Match.MissingOrigin != MissingOriginUnfiltered {
		return []TaskMatch{}, nil
	}

	filter := repository.TaskFilter{
		Statuses:       openOnly,
		ExcludeCreator: uid,
		Limit:          s.cfg.Match.CandidatePool,
	}
	if s.cfg.Match.SkillPrefilter && len(profile.Skills) > 0 {
		filter.SkillsAny = profile.Skills
	}
	tasks, err := s.store.Tasks().List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]TaskMatch, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != constants.StatusOpen {
			continue
		}
		at, ok := t.Location.Point()
		if !ok {
			continue
		}
		m, keep := rank(origin, hasOrigin, at, radius, profile.Skills, t.SkillsRequired)
		if !keep {
			continue
		}
		out = append(out, TaskMatch{Task: t, DistanceKm: m.distance, SkillOverlap: m.overlap, Score: m.score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return ranksBefore(out[i].Score, out[j].Score, out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MatchService) resolve(q MatchQuery) (radius float64, limit int, err error) {
	radius = q.RadiusKm
	if radius == 0 {
		radius = s.cfg.Match.RadiusKm
	}
	if radius <= 0 || math.IsNaN(radius) {
		return 0, 0, apperrors.Validation("radiusKm must be positive")
	}

	if q.Limit < 0 {
		return 0, 0, apperrors.ErrInvalidLimit
	}
	limit = q.Limit
	if limit == 0 {
		limit = s.cfg.Match.Limit
	}
	if s.cfg.Match.MaxLimit > 0 {
		limit = min(limit, s.cfg.Match.MaxLimit)
	}

	if q.Origin != nil {
		if err := validatePoint(*q.Origin); err != nil {
			return 0, 0, err
		}
	}
	return radius, limit, nil
}

func (s *MatchService) observe(mode string, started time.Time) {
	s.metrics.ObserveMatch(mode, s.now().Sub(started))
}

// rank scores one entity at point at. Without an origin the distance is
// unknown: it contributes no proximity points and skips the radius filter.
func rank(origin geo.Point, hasOrigin bool, at geo.Point, radiusKm float64, skills, required []string) (scored, bool) {
	overlap := geo.SkillOverlap(skills, required)
	if !hasOrigin {
		return scored{overlap: overlap, score: geo.Score(math.Inf(1), overlap)}, true
	}

	d := geo.HaversineKm(origin, at)
	if d > radiusKm {
		return scored{}, false
	}
	return scored{distance: &d, overlap: overlap, score: geo.Score(d, overlap)}, true
}

// ranksBefore orders by score, then newest first, then id.
func ranksBefore(scoreA, scoreB float64, createdA, createdB time.Time, idA, idB string) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	if !createdA.Equal(createdB) {
		return createdA.After(createdB)
	}
	return idA < idB
}
