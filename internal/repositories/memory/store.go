// Package memory is a process-local Store used by tests and the memory
// driver. A single mutex serializes every operation, which makes each
// conditional update trivially atomic.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
)

type Store struct {
	mu           sync.Mutex
	tasks        map[string]*model.Task
	applications map[string]*model.Application
	profiles     map[string]*model.Profile
	messageSeq   uint
}

func NewStore() *Store {
	return &Store{
		tasks:        make(map[string]*model.Task),
		applications: make(map[string]*model.Application),
		profiles:     make(map[string]*model.Profile),
	}
}

func (s *Store) Tasks() repository.TaskStore               { return taskStore{s} }
func (s *Store) Applications() repository.ApplicationStore { return applicationStore{s} }
func (s *Store) Profiles() repository.ProfileStore         { return profileStore{s} }
func (s *Store) Close(context.Context) error               { return nil }

func (s *Store) AcceptApplication(ctx context.Context, applicationID string, at time.Time) (*model.Task, *model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, apperrors.Unavailable(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.applications[applicationID]
	if !ok {
		return nil, nil, apperrors.ErrApplicationNotFound
	}
	task, ok := s.tasks[app.TaskID]
	if !ok {
		return nil, nil, apperrors.ErrTaskNotFound
	}
	if task.Status != constants.StatusOpen || app.Status != constants.ApplicationPending {
		return nil, nil, apperrors.ErrOptimisticLock
	}

	assigned := constants.StatusAssigned
	assignee := app.ApplicantUID
	repository.TaskUpdate{Status: &assigned, AssigneeUID: &assignee, UpdatedAt: at}.Apply(task)

	app.Status = constants.ApplicationAccepted
	app.UpdatedAt = at
	s.rejectPendingLocked(app.TaskID, app.ID, at)

	t, a := task.Clone(), app.Clone()
	return &t, &a, nil
}

func (s *Store) rejectPendingLocked(taskID, exceptID string, at time.Time) int64 {
	var n int64
	for _, a := range s.applications {
		if a.TaskID == taskID && a.ID != exceptID && a.Status == constants.ApplicationPending {
			a.Status = constants.ApplicationRejected
			a.UpdatedAt = at
			n++
		}
	}
	return n
}

type taskStore struct{ s *Store }

func (r taskStore) CreateTask(ctx context.Context, task *model.Task) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Unavailable(err)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = constants.StatusOpen
	}
	task.Version = 1

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.tasks[task.ID]; exists {
		return apperrors.Conflict("task %s already exists", task.ID)
	}
	stored := task.Clone()
	r.s.tasks[task.ID] = &stored
	return nil
}

func (r taskStore) FindByID(ctx context.Context, id string) (*model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return nil, apperrors.ErrTaskNotFound
	}
	out := t.Clone()
	return &out, nil
}

func (r taskStore) List(ctx context.Context, filter repository.TaskFilter) ([]model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []model.Task
	for _, t := range r.s.tasks {
		if filter.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r taskStore) Count(ctx context.Context, filter repository.TaskFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, t := range r.s.tasks {
		if filter.Matches(t) {
			n++
		}
	}
	return n, nil
}

func (r taskStore) UpdateIf(ctx context.Context, id string, cond repository.TaskCondition, upd repository.TaskUpdate) (*model.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return nil, apperrors.ErrTaskNotFound
	}
	if !cond.Matches(t) {
		return nil, apperrors.ErrOptimisticLock
	}
	upd.Apply(t)
	out := t.Clone()
	return &out, nil
}

func (r taskStore) IncrementViewCount(ctx context.Context, id string) error {
	return r.increment(ctx, id, func(t *model.Task) { t.ViewCount++ })
}

func (r taskStore) IncrementApplicationCount(ctx context.Context, id string) error {
	return r.increment(ctx, id, func(t *model.Task) { t.ApplicationCount++ })
}

func (r taskStore) increment(ctx context.Context, id string, bump func(*model.Task)) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return apperrors.ErrTaskNotFound
	}
	bump(t)
	return nil
}

type applicationStore struct{ s *Store }

func (r applicationStore) CreateApplication(ctx context.Context, app *model.Application) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Unavailable(err)
	}
	if app.ID == "" {
		app.ID = uuid.NewString()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if app.Status != constants.ApplicationWithdrawn && r.s.activeLocked(app.TaskID, app.ApplicantUID) != nil {
		return apperrors.ErrDuplicateApplication
	}
	stored := app.Clone()
	r.s.applications[app.ID] = &stored
	return nil
}

func (s *Store) activeLocked(taskID, applicantUID string) *model.Application {
	for _, a := range s.applications {
		if a.TaskID == taskID && a.ApplicantUID == applicantUID && a.Status != constants.ApplicationWithdrawn {
			return a
		}
	}
	return nil
}

func (r applicationStore) FindByID(ctx context.Context, id string) (*model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.applications[id]
	if !ok {
		return nil, apperrors.ErrApplicationNotFound
	}
	out := a.Clone()
	return &out, nil
}

func (r applicationStore) FindActive(ctx context.Context, taskID, applicantUID string) (*model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a := r.s.activeLocked(taskID, applicantUID)
	if a == nil {
		return nil, apperrors.ErrApplicationNotFound
	}
	out := a.Clone()
	return &out, nil
}

func (r applicationStore) List(ctx context.Context, filter repository.ApplicationFilter) ([]model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []model.Application
	for _, a := range r.s.applications {
		if filter.Matches(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (r applicationStore) Count(ctx context.Context, filter repository.ApplicationFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, a := range r.s.applications {
		if filter.Matches(a) {
			n++
		}
	}
	return n, nil
}

func (r applicationStore) UpdateStatusIf(ctx context.Context, id string, from []constants.ApplicationStatus, to constants.ApplicationStatus, at time.Time) (*model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.applications[id]
	if !ok {
		return nil, apperrors.ErrApplicationNotFound
	}
	if !slices.Contains(from, a.Status) {
		return nil, apperrors.ErrOptimisticLock
	}
	a.Status = to
	a.UpdatedAt = at
	out := a.Clone()
	return &out, nil
}

func (r applicationStore) RejectPending(ctx context.Context, taskID, exceptID string, at time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.rejectPendingLocked(taskID, exceptID, at), nil
}

func (r applicationStore) AppendMessage(ctx context.Context, id string, msg model.ApplicationMessage) (*model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.applications[id]
	if !ok {
		return nil, apperrors.ErrApplicationNotFound
	}
	r.s.messageSeq++
	msg.ID = r.s.messageSeq
	msg.ApplicationID = id
	a.Messages = append(a.Messages, msg)
	a.UpdatedAt = msg.CreatedAt
	out := a.Clone()
	return &out, nil
}

type profileStore struct{ s *Store }

func (r profileStore) Save(ctx context.Context, profile *model.Profile) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := profile.Clone()
	r.s.profiles[profile.UID] = &stored
	return nil
}

func (r profileStore) FindByUID(ctx context.Context, uid string) (*model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[uid]
	if !ok {
		return nil, apperrors.ErrProfileNotFound
	}
	out := p.Clone()
	return &out, nil
}

func (r profileStore) List(ctx context.Context, filter repository.ProfileFilter) ([]model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []model.Profile
	for _, p := range r.s.profiles {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].UID, out[j].UID)
	})
	return page(out, filter.Limit, 0), nil
}

func (r profileStore) IncrementCounter(ctx context.Context, uid string, counter model.ProfileCounter) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Unavailable(err)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[uid]
	if !ok {
		return apperrors.ErrProfileNotFound
	}
	switch counter {
	case model.CounterTotalTasks:
		p.TotalTasks++
	case model.CounterCompletedTasks:
		p.CompletedTasks++
	default:
		return apperrors.Validation("unknown profile counter %q", counter)
	}
	return nil
}

func newerFirst(a, b time.Time, idA, idB string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return idA < idB
}

func page[T any](items []T, limit, offset int) []T {
	offset = max(offset, 0)
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var (
	_ repository.Store            = (*Store)(nil)
	_ repository.AcceptTransactor = (*Store)(nil)
)
