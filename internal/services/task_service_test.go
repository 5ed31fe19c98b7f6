package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories/memory"
)

func TestTaskService_CreateDefaultsAndNormalizes(t *testing.T) {
	f := newFixture(t, memory.NewStore())

	task := f.task(t, "poster", hyderabad, " Plumbing ", "plumbing", "Pipe Fitting")

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, constants.StatusOpen, task.Status)
	assert.Equal(t, "INR", task.Budget.Currency)
	assert.Equal(t, []string{"plumbing", "pipe fitting"}, []string(task.SkillsRequired))
	assert.Equal(t, constants.PriorityMedium, task.Priority)
	assert.Equal(t, constants.UrgencyNormal, task.Urgency)
	require.NotNil(t, task.ExpiresAt)
	assert.True(t, t0.Add(30*24*time.Hour).Equal(*task.ExpiresAt))
	assert.Empty(t, task.AssigneeUID)
}

func TestTaskService_CreateValidation(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	loc := model.NewLocation(hyderabad)

	valid := func() TaskInput {
		return TaskInput{
			Type:        ptr("cleaning"),
			Title:       ptr("Deep clean"),
			Description: ptr("Two bedroom flat"),
			Budget:      &model.Budget{Amount: 100},
			Location:    &loc,
		}
	}
	manySkills := make([]string, 21)
	for i := range manySkills {
		manySkills[i] = strings.Repeat("s", i+1)
	}

	tests := map[string]func(in *TaskInput){
		"missing type":      func(in *TaskInput) { in.Type = ptr("  ") },
		"missing title":     func(in *TaskInput) { in.Title = nil },
		"long title":        func(in *TaskInput) { in.Title = ptr(strings.Repeat("x", 201)) },
		"long description":  func(in *TaskInput) { in.Description = ptr(strings.Repeat("x", 2001)) },
		"negative budget":   func(in *TaskInput) { in.Budget = &model.Budget{Amount: -1} },
		"bad currency":      func(in *TaskInput) { in.Budget = &model.Budget{Amount: 1, Currency: "RUPEE"} },
		"too many skills":   func(in *TaskInput) { in.SkillsRequired = manySkills },
		"missing location":  func(in *TaskInput) { in.Location = &model.Location{City: "Hyderabad"} },
		"half a coordinate": func(in *TaskInput) { in.Location = &model.Location{Lat: ptr(17.0)} },
		"latitude range":    func(in *TaskInput) { in.Location = &model.Location{Lat: ptr(91.0), Lng: ptr(78.0)} },
		"unknown priority":  func(in *TaskInput) { in.Priority = ptr("whenever") },
		"too many images":   func(in *TaskInput) { in.Images = strings.Split("a,b,c,d,e,f,g,h,i,j,k", ",") },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			in := valid()
			mutate(&in)
			_, err := f.Tasks.Create(context.Background(), "poster", in)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Equal(t, 400, apperrors.StatusCode(err))
		})
	}

	_, err := f.Tasks.Create(context.Background(), "poster", valid())
	assert.NoError(t, err)
}

func TestTaskService_GetCountsViews(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	task := f.task(t, "poster", hyderabad)

	got, err := f.Tasks.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ViewCount)

	got, err = f.Tasks.Get(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewCount)

	_, err = f.Tasks.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)
	_, err = f.Tasks.Get(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrTaskIDRequired)
}

func TestTaskService_List(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()

	mine := f.task(t, "poster", hyderabad, "plumbing")
	f.clock.Advance(time.Minute)
	other := f.task(t, "someone", hyderabad, "painting")
	f.clock.Advance(time.Minute)
	taken := f.task(t, "someone", hyderabad, "plumbing")
	_, err := f.Tasks.Accept(ctx, "poster", taken.ID)
	require.NoError(t, err)

	page, err := f.Tasks.List(ctx, "poster", TaskQuery{Mine: "creator"})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, mine.ID, page.Tasks[0].ID)

	page, err = f.Tasks.List(ctx, "poster", TaskQuery{Mine: "assignee"})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, taken.ID, page.Tasks[0].ID)

	page, err = f.Tasks.List(ctx, "poster", TaskQuery{Mine: "all"})
	require.NoError(t, err)
	assert.Len(t, page.Tasks, 2)

	page, err = f.Tasks.List(ctx, "poster", TaskQuery{Statuses: []constants.TaskStatus{constants.StatusOpen}, Skills: []string{"PAINTING"}})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, other.ID, page.Tasks[0].ID)

	page, err = f.Tasks.List(ctx, "poster", TaskQuery{Page: Page{Page: 2, Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 1)
	assert.Equal(t, mine.ID, page.Tasks[0].ID, "oldest task lands on the second page")
	assert.Equal(t, Pagination{Page: 2, PageSize: 2, Total: 3, TotalPages: 2}, page.Pagination)

	page, err = f.Tasks.List(ctx, "poster", TaskQuery{Page: Page{Limit: 500}})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Pagination.PageSize)

	_, err = f.Tasks.List(ctx, "poster", TaskQuery{Mine: "everyone"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = f.Tasks.List(ctx, "poster", TaskQuery{Page: Page{Limit: -1}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidLimit)
}

func TestTaskService_Update(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	task := f.task(t, "poster", hyderabad, "plumbing")

	_, err := f.Tasks.Update(ctx, "intruder", task.ID, TaskInput{Title: ptr("Mine now")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	updated, err := f.Tasks.Update(ctx, "poster", task.ID, TaskInput{
		Title:          ptr("Fix two taps"),
		SkillsRequired: []string{"Plumbing", "Tiling"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Fix two taps", updated.Title)
	assert.Equal(t, "Bathroom tap drips all night", updated.Description, "unset fields are kept")
	assert.Equal(t, []string{"plumbing", "tiling"}, []string(updated.SkillsRequired))
	assert.EqualValues(t, 2, updated.Version)

	_, err = f.Tasks.Update(ctx, "poster", task.ID, TaskInput{Title: ptr("")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.Tasks.Cancel(ctx, "poster", task.ID)
	require.NoError(t, err)
	_, err = f.Tasks.Update(ctx, "poster", task.ID, TaskInput{Title: ptr("Too late")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestTaskService_Lifecycle(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	f.profile(t, "tasker", []string{"tasker"}, &hyderabad, "plumbing")
	task := f.task(t, "poster", hyderabad, "plumbing")

	_, err := f.Tasks.Accept(ctx, "poster", task.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden, "a poster cannot self-assign")

	_, err = f.Tasks.Complete(ctx, "tasker", task.ID, CompletionInput{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState, "open tasks cannot be completed")

	assigned, err := f.Tasks.Accept(ctx, "tasker", task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusAssigned, assigned.Status)
	assert.Equal(t, "tasker", assigned.AssigneeUID)

	_, err = f.Tasks.Accept(ctx, "late", task.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	_, err = f.Tasks.Cancel(ctx, "poster", task.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState, "assigned tasks cannot be cancelled")

	_, err = f.Tasks.Start(ctx, "poster", task.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	started, err := f.Tasks.Start(ctx, "tasker", task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusInProgress, started.Status)

	_, err = f.Tasks.Start(ctx, "tasker", task.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	f.clock.Advance(time.Hour)
	done, err := f.Tasks.Complete(ctx, "tasker", task.ID, CompletionInput{
		Proofs:  []string{"https://img.example/after.jpg", " "},
		Comment: "  Replaced the washer ",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, done.Status)
	assert.Equal(t, "tasker", done.AssigneeUID)
	assert.Equal(t, []string{"https://img.example/after.jpg"}, []string(done.Completion.Proofs))
	assert.Equal(t, "Replaced the washer", done.Completion.Comment)
	require.NotNil(t, done.Completion.CompletedAt)
	assert.True(t, t0.Add(time.Hour).Equal(*done.Completion.CompletedAt))

	_, err = f.Tasks.Complete(ctx, "tasker", task.ID, CompletionInput{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	profile, err := f.Profiles.Get(ctx, "tasker")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.CompletedTasks)
}

// Status guards run before actor guards, so an action on a task in the
// wrong state reports InvalidState whoever asks.
func TestTaskService_StatusCheckedBeforeActor(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		prepare func(t *testing.T, f *fixture, taskID string)
		act     func(f *fixture, taskID string) error
		wantErr error
	}{
		{
			name: "stranger completes open task",
			act: func(f *fixture, id string) error {
				_, err := f.Tasks.Complete(ctx, "stranger", id, CompletionInput{})
				return err
			},
			wantErr: apperrors.ErrInvalidState,
		},
		{
			name: "creator accepts own cancelled task",
			prepare: func(t *testing.T, f *fixture, id string) {
				_, err := f.Tasks.Cancel(ctx, "poster", id)
				require.NoError(t, err)
			},
			act: func(f *fixture, id string) error {
				_, err := f.Tasks.Accept(ctx, "poster", id)
				return err
			},
			wantErr: apperrors.ErrInvalidState,
		},
		{
			name: "stranger starts cancelled task",
			prepare: func(t *testing.T, f *fixture, id string) {
				_, err := f.Tasks.Cancel(ctx, "poster", id)
				require.NoError(t, err)
			},
			act: func(f *fixture, id string) error {
				_, err := f.Tasks.Start(ctx, "stranger", id)
				return err
			},
			wantErr: apperrors.ErrInvalidState,
		},
		{
			name: "creator accepts own open task",
			act: func(f *fixture, id string) error {
				_, err := f.Tasks.Accept(ctx, "poster", id)
				return err
			},
			wantErr: apperrors.ErrForbidden,
		},
		{
			name: "stranger starts assigned task",
			prepare: func(t *testing.T, f *fixture, id string) {
				_, err := f.Tasks.Accept(ctx, "tasker", id)
				require.NoError(t, err)
			},
			act: func(f *fixture, id string) error {
				_, err := f.Tasks.Start(ctx, "stranger", id)
				return err
			},
			wantErr: apperrors.ErrForbidden,
		},
		{
			name: "stranger completes assigned task",
			prepare: func(t *testing.T, f *fixture, id string) {
				_, err := f.Tasks.Accept(ctx, "tasker", id)
				require.NoError(t, err)
			},
			act: func(f *fixture, id string) error {
				_, err := f.Tasks.Complete(ctx, "stranger", id, CompletionInput{})
				return err
			},
			wantErr: apperrors.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, memory.NewStore())
			task := f.task(t, "poster", hyderabad)
			if tt.prepare != nil {
				tt.prepare(t, f, task.ID)
			}
			assert.ErrorIs(t, tt.act(f, task.ID), tt.wantErr)
		})
	}
}

func TestTaskService_CompleteFromAssigned(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	task := f.task(t, "poster", hyderabad)

	_, err := f.Tasks.Accept(ctx, "tasker", task.ID)
	require.NoError(t, err)

	tooMany := strings.Split("1,2,3,4,5,6,7,8,9,10,11", ",")
	_, err = f.Tasks.Complete(ctx, "tasker", task.ID, CompletionInput{Proofs: tooMany})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	done, err := f.Tasks.Complete(ctx, "tasker", task.ID, CompletionInput{Comment: "done"})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, done.Status)
}

func TestTaskService_Cancel(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	task := f.task(t, "poster", hyderabad)
	app := f.apply(t, "tasker", task.ID)

	_, err := f.Tasks.Cancel(ctx, "tasker", task.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	cancelled, err := f.Tasks.Cancel(ctx, "poster", task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCancelled, cancelled.Status)
	assert.Empty(t, cancelled.AssigneeUID)

	stored, err := f.store.Applications().FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ApplicationRejected, stored.Status)

	_, err = f.Tasks.Cancel(ctx, "poster", task.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestTaskService_Transition(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	task := f.task(t, "poster", hyderabad)

	for _, target := range []constants.TaskStatus{constants.StatusInProgress, constants.StatusCompleted, constants.StatusOpen} {
		_, err := f.Tasks.Transition(ctx, "tasker", task.ID, target, CompletionInput{})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "open -> %s", target)
	}

	_, err := f.Tasks.Transition(ctx, "poster", task.ID, constants.StatusExpired, CompletionInput{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "expiry is sweep-only")

	_, err = f.Tasks.Transition(ctx, "poster", task.ID, "archived", CompletionInput{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	got, err := f.Tasks.Transition(ctx, "tasker", task.ID, constants.StatusAssigned, CompletionInput{})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusAssigned, got.Status)

	got, err = f.Tasks.Transition(ctx, "tasker", task.ID, constants.StatusInProgress, CompletionInput{})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusInProgress, got.Status)

	_, err = f.Tasks.Transition(ctx, "poster", task.ID, constants.StatusCancelled, CompletionInput{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	got, err = f.Tasks.Transition(ctx, "tasker", task.ID, constants.StatusCompleted, CompletionInput{Comment: "ok"})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, got.Status)

	for _, target := range constants.TaskStatuses {
		_, err := f.Tasks.Transition(ctx, "tasker", task.ID, target, CompletionInput{})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "completed -> %s", target)
	}
}

func TestTaskService_DirectAcceptDisabled(t *testing.T) {
	f := newFixture(t, memory.NewStore(), func(c *Config) { c.DirectAccept = false })
	task := f.task(t, "poster", hyderabad)

	_, err := f.Tasks.Accept(context.Background(), "tasker", task.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestTaskService_DirectAcceptSettlesApplications(t *testing.T) {
	f := newFixture(t, memory.NewStore())
	ctx := context.Background()
	task := f.task(t, "poster", hyderabad)
	own := f.apply(t, "tasker-1", task.ID)
	other := f.apply(t, "tasker-2", task.ID)

	_, err := f.Tasks.Accept(ctx, "tasker-1", task.ID)
	require.NoError(t, err)

	got, err := f.store.Applications().FindByID(ctx, own.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ApplicationAccepted, got.Status)

	got, err = f.store.Applications().FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ApplicationRejected, got.Status)
}

// Concurrent direct accepts against the real sqlite store: exactly one wins.
func TestTaskService_ConcurrentDirectAccept(t *testing.T) {
	f := newFixture(t, repository.NewGormStore(setupTestDB(t)))
	task := f.task(t, "poster", hyderabad)

	const concurrentCount = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	wg.Add(concurrentCount)

	for i := 0; i < concurrentCount; i++ {
		go func(uid string) {
			defer wg.Done()
			_, err := f.Tasks.Accept(context.Background(), uid, task.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, uid)
				return
			}
			kind := apperrors.KindOf(err)
			assert.Contains(t, []apperrors.Kind{apperrors.KindConflict, apperrors.KindInvalidState}, kind, err.Error())
		}(string(rune('a' + i)))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	got, err := f.store.Tasks().FindByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.AssigneeUID)
	assert.Equal(t, constants.StatusAssigned, got.Status)
}
