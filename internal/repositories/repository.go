package repository

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	"github.com/TrizenVenturesLLP/task-connect-relay/internal/geo"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
)

// Store is the persistence boundary. One implementation is selected at
// startup; domain code never branches on which.
type Store interface {
	Tasks() TaskStore
	Applications() ApplicationStore
	Profiles() ProfileStore
	Close(ctx context.Context) error
}

// AcceptTransactor is implemented by stores that can assign a task, accept
// the winning application and reject its pending siblings in a single
// multi-record transaction. Stores without it go through the two-phase path.
type AcceptTransactor interface {
	AcceptApplication(ctx context.Context, applicationID string, at time.Time) (*model.Task, *model.Application, error)
}

type TaskStore interface {
	CreateTask(ctx context.Context, task *model.Task) error
	FindByID(ctx context.Context, id string) (*model.Task, error)
	List(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	Count(ctx context.Context, filter TaskFilter) (int64, error)
	// UpdateIf applies upd only while cond holds for the stored task. It
	// returns ErrTaskNotFound for an unknown id and ErrOptimisticLock when the
	// precondition no longer holds.
	UpdateIf(ctx context.Context, id string, cond TaskCondition, upd TaskUpdate) (*model.Task, error)
	IncrementViewCount(ctx context.Context, id string) error
	IncrementApplicationCount(ctx context.Context, id string) error
}

type ApplicationStore interface {
	CreateApplication(ctx context.Context, app *model.Application) error
	FindByID(ctx context.Context, id string) (*model.Application, error)
	// FindActive returns the applicant's non-withdrawn application for a task.
	FindActive(ctx context.Context, taskID, applicantUID string) (*model.Application, error)
	List(ctx context.Context, filter ApplicationFilter) ([]model.Application, error)
	Count(ctx context.Context, filter ApplicationFilter) (int64, error)
	UpdateStatusIf(ctx context.Context, id string, from []constants.ApplicationStatus, to constants.ApplicationStatus, at time.Time) (*model.Application, error)
	// RejectPending rejects every pending application of the task except exceptID.
	RejectPending(ctx context.Context, taskID, exceptID string, at time.Time) (int64, error)
	AppendMessage(ctx context.Context, id string, msg model.ApplicationMessage) (*model.Application, error)
}

type ProfileStore interface {
	Save(ctx context.Context, profile *model.Profile) error
	FindByUID(ctx context.Context, uid string) (*model.Profile, error)
	List(ctx context.Context, filter ProfileFilter) ([]model.Profile, error)
	IncrementCounter(ctx context.Context, uid string, counter model.ProfileCounter) error
}

type TaskFilter struct {
	CreatorUID  string
	AssigneeUID string
	// ParticipantUID matches tasks created by or assigned to the uid.
	ParticipantUID string
	ExcludeCreator string
	Statuses       []constants.TaskStatus
	Type           string
	City           string
	MinBudget      *float64
	MaxBudget      *float64
	// SkillsAny matches tasks requiring at least one of the skills.
	SkillsAny     []string
	ExpiresBefore *time.Time
	Limit         int
	Offset        int
}

func (f TaskFilter) Matches(t *model.Task) bool {
	if f.CreatorUID != "" && t.CreatorUID != f.CreatorUID {
		return false
	}
	if f.AssigneeUID != "" && t.AssigneeUID != f.AssigneeUID {
		return false
	}
	if f.ParticipantUID != "" && t.CreatorUID != f.ParticipantUID && t.AssigneeUID != f.ParticipantUID {
		return false
	}
	if f.ExcludeCreator != "" && t.CreatorUID == f.ExcludeCreator {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.City != "" && !strings.EqualFold(t.Location.City, f.City) {
		return false
	}
	if f.MinBudget != nil && t.Budget.Amount < *f.MinBudget {
		return false
	}
	if f.MaxBudget != nil && t.Budget.Amount > *f.MaxBudget {
		return false
	}
	if len(f.SkillsAny) > 0 && geo.SkillOverlap(t.SkillsRequired, f.SkillsAny) == 0 {
		return false
	}
	if f.ExpiresBefore != nil && (t.ExpiresAt == nil || !t.ExpiresAt.Before(*f.ExpiresBefore)) {
		return false
	}
	return true
}

// TaskCondition is the precondition of a conditional task update.
type TaskCondition struct {
	Statuses      []constants.TaskStatus
	AssigneeUID   string
	ExpiresBefore *time.Time
}

func (c TaskCondition) Matches(t *model.Task) bool {
	if len(c.Statuses) > 0 && !slices.Contains(c.Statuses, t.Status) {
		return false
	}
	if c.AssigneeUID != "" && t.AssigneeUID != c.AssigneeUID {
		return false
	}
	if c.ExpiresBefore != nil && (t.ExpiresAt == nil || !t.ExpiresAt.Before(*c.ExpiresBefore)) {
		return false
	}
	return true
}

// TaskUpdate lists the fields a conditional update writes; nil fields are
// left untouched. Every applied update bumps Version.
type TaskUpdate struct {
	Status      *constants.TaskStatus
	AssigneeUID *string
	Completion  *model.Completion
	Details     *model.TaskDetails
	UpdatedAt   time.Time
}

func (u TaskUpdate) Apply(t *model.Task) {
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.AssigneeUID != nil {
		t.AssigneeUID = *u.AssigneeUID
	}
	if u.Completion != nil {
		t.Completion = *u.Completion
	}
	if u.Details != nil {
		t.TaskDetails = *u.Details
	}
	t.UpdatedAt = u.UpdatedAt
	t.Version++
}

type ApplicationFilter struct {
	TaskID       string
	ApplicantUID string
	Statuses     []constants.ApplicationStatus
	Limit        int
	Offset       int
}

func (f ApplicationFilter) Matches(a *model.Application) bool {
	if f.TaskID != "" && a.TaskID != f.TaskID {
		return false
	}
	if f.ApplicantUID != "" && a.ApplicantUID != f.ApplicantUID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
		return false
	}
	return true
}

type ProfileFilter struct {
	TaskersOnly bool
	ExcludeUID  string
	SkillsAny   []string
	Limit       int
}

func (f ProfileFilter) Matches(p *model.Profile) bool {
	if f.TaskersOnly && !p.Tasker {
		return false
	}
	if f.ExcludeUID != "" && p.UID == f.ExcludeUID {
		return false
	}
	if len(f.SkillsAny) > 0 && geo.SkillOverlap(p.Skills, f.SkillsAny) == 0 {
		return false
	}
	return true
}
