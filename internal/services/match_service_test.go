package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/geo"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories/memory"
)

func uids(cs []Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.UID)
	}
	return out
}

func TestMatchService_CandidatesForTask(t *testing.T) {
	for name, newStore := range storeVariants(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, newStore(t))
			ctx := context.Background()

			f.profile(t, "near", []string{"tasker"}, &hyderabad, "plumbing")
			far := northOf(hyderabad, 60)
			f.profile(t, "far", []string{"tasker"}, &far, "plumbing")
			task := f.task(t, "poster", hyderabad, "plumbing")

			got, err := f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "near", got[0].UID)
			assert.Equal(t, 1, got[0].SkillOverlap)
			require.NotNil(t, got[0].DistanceKm)
			assert.InDelta(t, 0, *got[0].DistanceKm, 1e-9)
			assert.InDelta(t, 60, got[0].Score, 1e-9)

			got, err = f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{RadiusKm: 100})
			require.NoError(t, err)
			assert.Equal(t, []string{"near", "far"}, uids(got))
			assert.InDelta(t, 10, got[1].Score, 1e-6, "beyond the proximity horizon only skills count")
		})
	}
}

func TestMatchService_CandidateExclusions(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()

	f.profile(t, "poster", []string{"both"}, &hyderabad, "plumbing")
	f.profile(t, "client", []string{"poster"}, &hyderabad, "plumbing")
	f.profile(t, "nowhere", []string{"tasker"}, nil, "plumbing")
	f.profile(t, "tasker", []string{"tasker"}, &hyderabad)
	task := f.task(t, "poster", hyderabad, "plumbing")

	got, err := f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"tasker"}, uids(got), "creator, posters and unlocated profiles are skipped")
	assert.InDelta(t, 50, got[0].Score, 1e-9)
}

func TestMatchService_TieBreak(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()

	f.profile(t, "b-older", []string{"tasker"}, &hyderabad)
	f.profile(t, "a-older", []string{"tasker"}, &hyderabad)
	f.clock.Advance(time.Minute)
	f.profile(t, "newest", []string{"tasker"}, &hyderabad)
	near := northOf(hyderabad, 5)
	f.profile(t, "skilled", []string{"tasker"}, &near, "wiring")
	task := f.task(t, "poster", hyderabad, "wiring")

	got, err := f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"skilled", "newest", "a-older", "b-older"}, uids(got))

	got, err = f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"skilled", "newest"}, uids(got))
}

func TestMatchService_Limits(t *testing.T) {
	f := newFixture(t, memory.NewStore(), func(c *Config) { c.Match.MaxLimit = 2 })
	ctx := context.Background()
	for _, uid := range []string{"a", "b", "c"} {
		f.profile(t, uid, []string{"tasker"}, &hyderabad)
	}
	task := f.task(t, "poster", hyderabad)

	got, err := f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{Limit: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidLimit)

	_, err = f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{RadiusKm: -3})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{Origin: &geo.Point{Lat: 120}})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.Matches.CandidatesForTask(ctx, "missing", MatchQuery{})
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
}

func TestMatchService_OriginOverride(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	far := northOf(hyderabad, 200)
	f.profile(t, "far", []string{"tasker"}, &far)
	task := f.task(t, "poster", hyderabad)

	got, err := f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{Origin: &far})
	require.NoError(t, err)
	assert.Equal(t, []string{"far"}, uids(got))
}

func TestMatchService_TasksForProfile(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()

	f.profile(t, "tasker", []string{"tasker"}, &hyderabad, "plumbing", "painting")
	both := f.task(t, "poster", hyderabad, "plumbing", "painting")
	f.clock.Advance(time.Minute)
	one := f.task(t, "poster", northOf(hyderabad, 10), "plumbing")
	f.task(t, "poster", northOf(hyderabad, 80), "plumbing")
	f.task(t, "tasker", hyderabad, "plumbing")
	taken := f.task(t, "poster", hyderabad, "plumbing", "painting")
	_, err := f.Tasks.Accept(ctx, "someone", taken.ID)
	require.NoError(t, err)

	got, err := f.Matches.TasksForProfile(ctx, "tasker", MatchQuery{})
	require.NoError(t, err)
	require.Len(t, got, 2, "own, assigned and distant tasks are skipped")
	assert.Equal(t, both.ID, got[0].ID)
	assert.InDelta(t, 70, got[0].Score, 1e-9)
	assert.Equal(t, one.ID, got[1].ID)
	assert.Equal(t, 1, got[1].SkillOverlap)
	assert.InDelta(t, 50, got[1].Score, 1e-6)
}

func TestMatchService_MissingOrigin(t *testing.T) {
	t.Run("exclude", func(t *testing.T) {
		f := newFixture(t, memory.NewStore())
		f.task(t, "poster", hyderabad, "plumbing")

		got, err := f.Matches.TasksForProfile(context.Background(), "stranger", MatchQuery{})
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NotNil(t, got)
	})

	t.Run("unfiltered", func(t *testing.T) {
		f := newFixture(t, memory.NewStore(), func(c *Config) { c.Match.MissingOrigin = MissingOriginUnfiltered })
		f.profile(t, "tasker", []string{"tasker"}, nil, "plumbing")
		far := f.task(t, "poster", northOf(hyderabad, 900), "plumbing")
		f.task(t, "poster", hyderabad)

		got, err := f.Matches.TasksForProfile(context.Background(), "tasker", MatchQuery{})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, far.ID, got[0].ID)
		assert.Nil(t, got[0].DistanceKm)
		assert.InDelta(t, 10, got[0].Score, 1e-9)
		assert.InDelta(t, 0, got[1].Score, 1e-9)
	})
}

func TestMatchService_SkillPrefilter(t *testing.T) {
	f := newFixture(t, memory.NewStore(), func(c *Config) { c.Match.SkillPrefilter = true })
	ctx := context.Background()
	f.profile(t, "plumber", []string{"tasker"}, &hyderabad, "plumbing")
	f.profile(t, "painter", []string{"tasker"}, &hyderabad, "painting")
	task := f.task(t, "poster", hyderabad, "plumbing")

	got, err := f.Matches.CandidatesForTask(ctx, task.ID, MatchQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"plumber"}, uids(got))
}
