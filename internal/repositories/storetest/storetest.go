// Package storetest holds the behavioral contract every Store
// implementation must satisfy. Each implementation's tests call Run.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/geo"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
)

// Factory returns an empty store; cleanup is registered on t.
type Factory func(t *testing.T) repository.Store

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func Run(t *testing.T, newStore Factory) {
	t.Run("TaskCreateAndFind", func(t *testing.T) { testTaskCreateAndFind(t, newStore(t)) })
	t.Run("TaskUpdateIf", func(t *testing.T) { testTaskUpdateIf(t, newStore(t)) })
	t.Run("TaskConcurrentAssign", func(t *testing.T) { testTaskConcurrentAssign(t, newStore(t)) })
	t.Run("TaskListFilters", func(t *testing.T) { testTaskListFilters(t, newStore(t)) })
	t.Run("TaskCounters", func(t *testing.T) { testTaskCounters(t, newStore(t)) })
	t.Run("ApplicationUniqueness", func(t *testing.T) { testApplicationUniqueness(t, newStore(t)) })
	t.Run("ApplicationStatusAndSiblings", func(t *testing.T) { testApplicationStatusAndSiblings(t, newStore(t)) })
	t.Run("ApplicationMessages", func(t *testing.T) { testApplicationMessages(t, newStore(t)) })
	t.Run("AcceptTransactor", func(t *testing.T) { testAcceptTransactor(t, newStore(t)) })
	t.Run("Profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
}

// NewTask builds a valid open task; callers adjust fields before CreateTask.
func NewTask(creator string, createdAt time.Time, skills ...string) *model.Task {
	expires := createdAt.Add(30 * 24 * time.Hour)
	return &model.Task{
		CreatorUID: creator,
		TaskDetails: model.TaskDetails{
			Type:           "handyman",
			Title:          "Fix the sink",
			Description:    "Kitchen sink leaks under the cabinet",
			Budget:         model.Budget{Amount: 500, Currency: "INR"},
			SkillsRequired: skills,
			Location:       model.NewLocation(geo.Point{Lat: 12.97, Lng: 77.59}),
			Priority:       constants.PriorityMedium,
			Urgency:        constants.UrgencyNormal,
		},
		Status:    constants.StatusOpen,
		ExpiresAt: &expires,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func newApplication(taskID, applicant string, at time.Time) *model.Application {
	return &model.Application{
		TaskID:         taskID,
		ApplicantUID:   applicant,
		ProposedBudget: model.Budget{Amount: 450, Currency: "INR"},
		CoverLetter:    "I can do it today",
		Status:         constants.ApplicationPending,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func testTaskCreateAndFind(t *testing.T, store repository.Store) {
	ctx := context.Background()
	task := NewTask("poster-1", base, "plumbing")

	require.NoError(t, store.Tasks().CreateTask(ctx, task))
	require.NotEmpty(t, task.ID)
	assert.EqualValues(t, 1, task.Version)

	got, err := store.Tasks().FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "poster-1", got.CreatorUID)
	assert.Equal(t, constants.StatusOpen, got.Status)
	assert.Equal(t, []string{"plumbing"}, []string(got.SkillsRequired))
	point, ok := got.Location.Point()
	require.True(t, ok)
	assert.InDelta(t, 12.97, point.Lat, 1e-9)
	assert.True(t, base.Equal(got.CreatedAt))

	_, err = store.Tasks().FindByID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func testTaskUpdateIf(t *testing.T, store repository.Store) {
	ctx := context.Background()
	task := NewTask("poster-1", base)
	require.NoError(t, store.Tasks().CreateTask(ctx, task))

	assigned := constants.StatusAssigned
	assignee := "tasker-1"
	open := repository.TaskCondition{Statuses: []constants.TaskStatus{constants.StatusOpen}}

	updated, err := store.Tasks().UpdateIf(ctx, task.ID, open, repository.TaskUpdate{
		Status: &assigned, AssigneeUID: &assignee, UpdatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusAssigned, updated.Status)
	assert.Equal(t, "tasker-1", updated.AssigneeUID)
	assert.EqualValues(t, 2, updated.Version)

	_, err = store.Tasks().UpdateIf(ctx, task.ID, open, repository.TaskUpdate{Status: &assigned, UpdatedAt: base})
	assert.ErrorIs(t, err, apperrors.ErrOptimisticLock)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = store.Tasks().UpdateIf(ctx, "missing", open, repository.TaskUpdate{Status: &assigned, UpdatedAt: base})
	assert.ErrorIs(t, err, apperrors.ErrTaskNotFound)

	wrongAssignee := repository.TaskCondition{
		Statuses:    []constants.TaskStatus{constants.StatusAssigned},
		AssigneeUID: "someone-else",
	}
	inProgress := constants.StatusInProgress
	_, err = store.Tasks().UpdateIf(ctx, task.ID, wrongAssignee, repository.TaskUpdate{Status: &inProgress, UpdatedAt: base})
	assert.ErrorIs(t, err, apperrors.ErrOptimisticLock)

	details := updated.TaskDetails
	details.Title = "Replace the sink"
	details.SkillsRequired = []string{"plumbing", "fitting"}
	edited, err := store.Tasks().UpdateIf(ctx, task.ID, repository.TaskCondition{}, repository.TaskUpdate{
		Details: &details, UpdatedAt: base.Add(2 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, "Replace the sink", edited.Title)
	assert.Equal(t, []string{"plumbing", "fitting"}, []string(edited.SkillsRequired))
	assert.Equal(t, constants.StatusAssigned, edited.Status)
	assert.EqualValues(t, 3, edited.Version)
}

func testTaskConcurrentAssign(t *testing.T, store repository.Store) {
	ctx := context.Background()
	task := NewTask("poster-1", base)
	require.NoError(t, store.Tasks().CreateTask(ctx, task))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	open := repository.TaskCondition{Statuses: []constants.TaskStatus{constants.StatusOpen}}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			assigned := constants.StatusAssigned
			_, err := store.Tasks().UpdateIf(ctx, task.ID, open, repository.TaskUpdate{
				Status: &assigned, AssigneeUID: &uid, UpdatedAt: base,
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, uid)
			} else if assert.ErrorIs(t, err, apperrors.ErrConflict) {
				conflicts++
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, workers-1, conflicts)

	got, err := store.Tasks().FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.AssigneeUID)
}

func testTaskListFilters(t *testing.T, store repository.Store) {
	ctx := context.Background()
	tasks := []*model.Task{
		NewTask("poster-1", base, "plumbing"),
		NewTask("poster-1", base.Add(time.Hour), "electrical"),
		NewTask("poster-2", base.Add(2*time.Hour), "plumbing", "painting"),
	}
	tasks[1].Budget.Amount = 2000
	tasks[2].Location.City = "Bengaluru"
	for _, task := range tasks {
		require.NoError(t, store.Tasks().CreateTask(ctx, task))
	}

	assigned := constants.StatusAssigned
	assignee := "tasker-9"
	_, err := store.Tasks().UpdateIf(ctx, tasks[0].ID, repository.TaskCondition{}, repository.TaskUpdate{
		Status: &assigned, AssigneeUID: &assignee, UpdatedAt: base,
	})
	require.NoError(t, err)

	ids := func(filter repository.TaskFilter) []string {
		list, err := store.Tasks().List(ctx, filter)
		require.NoError(t, err)
		out := make([]string, len(list))
		for i, task := range list {
			out[i] = task.ID
		}
		return out
	}

	assert.Equal(t, []string{tasks[2].ID, tasks[1].ID, tasks[0].ID}, ids(repository.TaskFilter{}))
	assert.Equal(t, []string{tasks[1].ID, tasks[0].ID}, ids(repository.TaskFilter{CreatorUID: "poster-1"}))
	assert.Equal(t, []string{tasks[2].ID}, ids(repository.TaskFilter{ExcludeCreator: "poster-1"}))
	assert.Equal(t, []string{tasks[2].ID, tasks[1].ID},
		ids(repository.TaskFilter{Statuses: []constants.TaskStatus{constants.StatusOpen}}))
	assert.Equal(t, []string{tasks[2].ID, tasks[0].ID}, ids(repository.TaskFilter{SkillsAny: []string{"plumbing"}}))
	assert.Equal(t, []string{tasks[0].ID}, ids(repository.TaskFilter{ParticipantUID: "tasker-9"}))
	assert.Equal(t, []string{tasks[2].ID}, ids(repository.TaskFilter{City: "bengaluru"}))

	minBudget := 1000.0
	assert.Equal(t, []string{tasks[1].ID}, ids(repository.TaskFilter{MinBudget: &minBudget}))

	assert.Equal(t, []string{tasks[1].ID}, ids(repository.TaskFilter{Limit: 1, Offset: 1}))

	n, err := store.Tasks().Count(ctx, repository.TaskFilter{CreatorUID: "poster-1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	cutoff := base.Add(30*24*time.Hour + 90*time.Minute)
	assert.ElementsMatch(t, []string{tasks[0].ID, tasks[1].ID}, ids(repository.TaskFilter{ExpiresBefore: &cutoff}))
}

func testTaskCounters(t *testing.T, store repository.Store) {
	ctx := context.Background()
	task := NewTask("poster-1", base)
	require.NoError(t, store.Tasks().CreateTask(ctx, task))

	require.NoError(t, store.Tasks().IncrementViewCount(ctx, task.ID))
	require.NoError(t, store.Tasks().IncrementViewCount(ctx, task.ID))
	require.NoError(t, store.Tasks().IncrementApplicationCount(ctx, task.ID))

	got, err := store.Tasks().FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewCount)
	assert.Equal(t, 1, got.ApplicationCount)
	assert.EqualValues(t, 1, got.Version)

	assert.ErrorIs(t, store.Tasks().IncrementViewCount(ctx, "missing"), apperrors.ErrNotFound)
}

func testApplicationUniqueness(t *testing.T, store repository.Store) {
	ctx := context.Background()
	task := NewTask("poster-1", base)
	require.NoError(t, store.Tasks().CreateTask(ctx, task))

	first := newApplication(task.ID, "tasker-1", base)
	require.NoError(t, store.Applications().CreateApplication(ctx, first))
	require.NotEmpty(t, first.ID)

	err := store.Applications().CreateApplication(ctx, newApplication(task.ID, "tasker-1", base))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateApplication)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	active, err := store.Applications().FindActive(ctx, task.ID, "tasker-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	_, err = store.Applications().UpdateStatusIf(ctx, first.ID,
		[]constants.ApplicationStatus{constants.ApplicationPending}, constants.ApplicationWithdrawn, base.Add(time.Minute))
	require.NoError(t, err)

	_, err = store.Applications().FindActive(ctx, task.ID, "tasker-1")
	assert.ErrorIs(t, err, apperrors.ErrApplicationNotFound)

	again := newApplication(task.ID, "tasker-1", base.Add(2*time.Minute))
	require.NoError(t, store.Applications().CreateApplication(ctx, again))

	n, err := store.Applications().Count(ctx, repository.ApplicationFilter{TaskID: task.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func testApplicationStatusAndSiblings(t *testing.T, store repository.Store) {
	ctx := context.Background()
	task := NewTask("poster-1", base)
	require.NoError(t, store.Tasks().CreateTask(ctx, task))

	apps := make([]*model.Application, 3)
	for i, uid := range []string{"tasker-1", "tasker-2", "tasker-3"} {
		apps[i] = newApplication(task.ID, uid, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Applications().CreateApplication(ctx, apps[i]))
	}

	pending := []constants.ApplicationStatus{constants.ApplicationPending}
	accepted, err := store.Applications().UpdateStatusIf(ctx, apps[0].ID, pending, constants.ApplicationAccepted, base)
	require.NoError(t, err)
	assert.Equal(t, constants.ApplicationAccepted, accepted.Status)

	_, err = store.Applications().UpdateStatusIf(ctx, apps[0].ID, pending, constants.ApplicationRejected, base)
	assert.ErrorIs(t, err, apperrors.ErrOptimisticLock)

	_, err = store.Applications().UpdateStatusIf(ctx, "missing", pending, constants.ApplicationRejected, base)
	assert.ErrorIs(t, err, apperrors.ErrApplicationNotFound)

	n, err := store.Applications().RejectPending(ctx, task.ID, apps[0].ID, base)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = store.Applications().RejectPending(ctx, task.ID, apps[0].ID, base)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := store.Applications().List(ctx, repository.ApplicationFilter{
		TaskID:   task.ID,
		Statuses: []constants.ApplicationStatus{constants.ApplicationRejected},
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, apps[2].ID, list[0].ID)
	assert.Equal(t, apps[1].ID, list[1].ID)

	mine, err := store.Applications().List(ctx, repository.ApplicationFilter{ApplicantUID: "tasker-1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, constants.ApplicationAccepted, mine[0].Status)
}

func testApplicationMessages(t *testing.T, store repository.Store) {
	ctx := context.Background()
	task := NewTask("poster-1", base)
	require.NoError(t, store.Tasks().CreateTask(ctx, task))
	app := newApplication(task.ID, "tasker-1", base)
	require.NoError(t, store.Applications().CreateApplication(ctx, app))

	_, err := store.Applications().AppendMessage(ctx, app.ID, model.ApplicationMessage{
		SenderUID: "poster-1", Text: "When can you start?", CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)
	got, err := store.Applications().AppendMessage(ctx, app.ID, model.ApplicationMessage{
		SenderUID: "tasker-1", Text: "Tomorrow morning", CreatedAt: base.Add(2 * time.Minute),
	})
	require.NoError(t, err)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "When can you start?", got.Messages[0].Text)
	assert.Equal(t, "tasker-1", got.Messages[1].SenderUID)
	assert.True(t, base.Add(2*time.Minute).Equal(got.UpdatedAt))

	_, err = store.Applications().AppendMessage(ctx, "missing", model.ApplicationMessage{SenderUID: "x", Text: "y", CreatedAt: base})
	assert.ErrorIs(t, err, apperrors.ErrApplicationNotFound)
}

func testAcceptTransactor(t *testing.T, store repository.Store) {
	tx, ok := store.(repository.AcceptTransactor)
	if !ok {
		t.Skip("store has no multi-record transaction")
	}

	ctx := context.Background()
	task := NewTask("poster-1", base)
	require.NoError(t, store.Tasks().CreateTask(ctx, task))
	win := newApplication(task.ID, "tasker-1", base)
	lose := newApplication(task.ID, "tasker-2", base)
	require.NoError(t, store.Applications().CreateApplication(ctx, win))
	require.NoError(t, store.Applications().CreateApplication(ctx, lose))

	gotTask, gotApp, err := tx.AcceptApplication(ctx, win.ID, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, constants.StatusAssigned, gotTask.Status)
	assert.Equal(t, "tasker-1", gotTask.AssigneeUID)
	assert.Equal(t, constants.ApplicationAccepted, gotApp.Status)

	sibling, err := store.Applications().FindByID(ctx, lose.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ApplicationRejected, sibling.Status)

	_, _, err = tx.AcceptApplication(ctx, lose.ID, base.Add(2*time.Minute))
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	after, err := store.Tasks().FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "tasker-1", after.AssigneeUID)

	_, _, err = tx.AcceptApplication(ctx, "missing", base)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func testProfiles(t *testing.T, store repository.Store) {
	ctx := context.Background()
	profiles := []*model.Profile{
		{UID: "u1", Name: "Asha", Roles: []constants.Role{constants.RoleTasker}, Tasker: true, Skills: []string{"plumbing"}, CreatedAt: base},
		{UID: "u2", Name: "Ravi", Roles: []constants.Role{constants.RolePoster}, Skills: []string{"plumbing"}, CreatedAt: base.Add(time.Minute)},
		{UID: "u3", Name: "Meera", Roles: []constants.Role{constants.RoleBoth}, Tasker: true, Skills: []string{"painting"}, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, p := range profiles {
		require.NoError(t, store.Profiles().Save(ctx, p))
	}

	got, err := store.Profiles().FindByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)

	got.Name = "Asha K"
	require.NoError(t, store.Profiles().Save(ctx, got))
	got, err = store.Profiles().FindByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Asha K", got.Name)

	_, err = store.Profiles().FindByUID(ctx, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrProfileNotFound)

	taskers, err := store.Profiles().List(ctx, repository.ProfileFilter{TaskersOnly: true})
	require.NoError(t, err)
	require.Len(t, taskers, 2)
	assert.Equal(t, "u3", taskers[0].UID)

	plumbers, err := store.Profiles().List(ctx, repository.ProfileFilter{TaskersOnly: true, SkillsAny: []string{"plumbing"}})
	require.NoError(t, err)
	require.Len(t, plumbers, 1)
	assert.Equal(t, "u1", plumbers[0].UID)

	others, err := store.Profiles().List(ctx, repository.ProfileFilter{TaskersOnly: true, ExcludeUID: "u3"})
	require.NoError(t, err)
	require.Len(t, others, 1)

	require.NoError(t, store.Profiles().IncrementCounter(ctx, "u1", model.CounterCompletedTasks))
	got, err = store.Profiles().FindByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CompletedTasks)
	assert.ErrorIs(t, store.Profiles().IncrementCounter(ctx, "nobody", model.CounterTotalTasks), apperrors.ErrNotFound)
}
