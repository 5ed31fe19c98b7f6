package services

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/metrics"
	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
)

// MissingOrigin decides what matching does when no coordinates are known for
// the side the distance is measured from.
type MissingOrigin string

const (
	// MissingOriginExclude treats the distance as infinite, so nothing
	// survives the radius filter.
	MissingOriginExclude MissingOrigin = "exclude"
	// MissingOriginUnfiltered skips the radius filter and scores on skills only.
	MissingOriginUnfiltered MissingOrigin = "unfiltered"
)

func ParseMissingOrigin(s string) (MissingOrigin, error) {
	switch p := MissingOrigin(s); p {
	case "":
		return MissingOriginExclude, nil
	case MissingOriginExclude, MissingOriginUnfiltered:
		return p, nil
	default:
		return "", fmt.Errorf("unknown missing-origin policy %q", s)
	}
}

type MatchConfig struct {
	RadiusKm       float64
	Limit          int
	MaxLimit       int
	CandidatePool  int
	SkillPrefilter bool
	MissingOrigin  MissingOrigin
}

type Config struct {
	// DirectAccept enables taking an open task without an application.
	DirectAccept         bool
	TaskTTL              time.Duration
	SiblingRejectRetries int
	ExpiryBatchSize      int
	Match                MatchConfig
}

func DefaultConfig() Config {
	return Config{
		DirectAccept:         true,
		TaskTTL:              30 * 24 * time.Hour,
		SiblingRejectRetries: 5,
		ExpiryBatchSize:      50,
		Match: MatchConfig{
			RadiusKm:      50,
			Limit:         50,
			MaxLimit:      100,
			CandidatePool: 200,
			MissingOrigin: MissingOriginExclude,
		},
	}
}

// env is shared by every service built from one New call.
type env struct {
	store   repository.Store
	cfg     Config
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time
	// backoff is the pause before retry n of a best-effort follow-up write.
	backoff func(attempt int) time.Duration
}

func (e *env) clock() time.Time {
	return e.now().UTC()
}

type Services struct {
	env *env

	Profiles     *ProfileService
	Tasks        *TaskService
	Applications *ApplicationService
	Matches      *MatchService
	Expiry       *ExpiryService
}

func New(store repository.Store, cfg Config, logger logrus.FieldLogger, m *metrics.Metrics) *Services {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	e := &env{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 25 * time.Millisecond
		},
	}

	return &Services{
		env:          e,
		Profiles:     &ProfileService{env: e},
		Tasks:        &TaskService{env: e},
		Applications: &ApplicationService{env: e},
		Matches:      &MatchService{env: e},
		Expiry:       &ExpiryService{env: e},
	}
}
