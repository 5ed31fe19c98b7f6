package services

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/geo"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/metrics"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories/memory"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	*Services
	store repository.Store
	clock *testClock
	logs  *logtest.Hook
}

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect database")
	require.NoError(t, repository.Migrate(db), "failed to migrate database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// twoPhaseStore hides the transactional accept so the two-phase path runs.
type twoPhaseStore struct {
	repository.Store
}

func newFixture(t *testing.T, store repository.Store, tweak ...func(*Config)) *fixture {
	cfg := DefaultConfig()
	for _, fn := range tweak {
		fn(&cfg)
	}

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	clock := &testClock{t: t0}

	svcs := New(store, cfg, log, metrics.NewMetrics())
	svcs.env.now = clock.Now
	svcs.env.backoff = func(int) time.Duration { return 0 }

	return &fixture{Services: svcs, store: store, clock: clock, logs: hook}
}

// storeVariants covers the transactional gorm and memory stores plus the
// two-phase path.
func storeVariants(t *testing.T) map[string]func(t *testing.T) repository.Store {
	return map[string]func(t *testing.T) repository.Store{
		"gorm": func(t *testing.T) repository.Store {
			return repository.NewGormStore(setupTestDB(t))
		},
		"memory": func(t *testing.T) repository.Store {
			return memory.NewStore()
		},
		"two-phase": func(t *testing.T) repository.Store {
			return twoPhaseStore{memory.NewStore()}
		},
	}
}

func ptr[T any](v T) *T { return &v }

func northOf(p geo.Point, km float64) geo.Point {
	return geo.Point{Lat: p.Lat + km/geo.EarthRadiusKm*180/math.Pi, Lng: p.Lng}
}

func (f *fixture) profile(t *testing.T, uid string, roles []string, at *geo.Point, skills ...string) *model.Profile {
	in := ProfileInput{Name: ptr("user " + uid), Roles: roles, Skills: skills}
	if at != nil {
		loc := model.NewLocation(*at)
		in.Location = &loc
	}
	p, err := f.Profiles.Save(context.Background(), uid, in)
	require.NoError(t, err)
	return p
}

func (f *fixture) task(t *testing.T, creator string, at geo.Point, skills ...string) *model.Task {
	loc := model.NewLocation(at)
	task, err := f.Tasks.Create(context.Background(), creator, TaskInput{
		Type:           ptr("plumbing"),
		Title:          ptr("Fix a leaking tap"),
		Description:    ptr("Bathroom tap drips all night"),
		Budget:         &model.Budget{Amount: 800},
		SkillsRequired: skills,
		Location:       &loc,
	})
	require.NoError(t, err)
	return task
}

func (f *fixture) apply(t *testing.T, uid, taskID string) *model.Application {
	app, err := f.Applications.Submit(context.Background(), uid, taskID, ApplicationInput{
		ProposedBudget: model.Budget{Amount: 750},
		CoverLetter:    "Available this evening",
	})
	require.NoError(t, err)
	return app
}

var hyderabad = geo.Point{Lat: 17.3850, Lng: 78.4741}
