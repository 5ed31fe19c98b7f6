package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
)

type ApplicationService struct {
	*env
}

type ApplicationInput struct {
	ProposedBudget   model.Budget
	ProposedSchedule model.Schedule
	CoverLetter      string
}

type ApplicationQuery struct {
	// TaskID lists a task's applications; the creator sees all of them, anyone
	// else only their own. Empty lists the caller's applications.
	TaskID   string
	Statuses []constants.ApplicationStatus
	Page
}

type ApplicationPage struct {
	Applications []model.Application `json:"applications"`
	Pagination   Pagination          `json:"pagination"`
}

var pendingOnly = []constants.ApplicationStatus{constants.ApplicationPending}

func (s *ApplicationService) Submit(ctx context.Context, uid, taskID string, in ApplicationInput) (*model.Application, error) {
	if strings.TrimSpace(taskID) == "" {
		return nil, apperrors.ErrTaskIDRequired
	}
	task, err := s.store.Tasks().FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.CreatorUID == uid {
		return nil, apperrors.Forbidden("cannot apply to your own task")
	}
	if task.Status != constants.StatusOpen {
		return nil, apperrors.InvalidState("task is %s and no longer accepts applications", task.Status)
	}

	if err := validateBudget(&in.ProposedBudget, task.Budget.Currency); err != nil {
		return nil, err
	}
	sched := in.ProposedSchedule
	if sched.StartAt != nil && sched.EndAt != nil && sched.EndAt.Before(*sched.StartAt) {
		return nil, apperrors.Validation("proposed schedule ends before it starts")
	}
	cover := strings.TrimSpace(in.CoverLetter)
	if err := validateLength("cover letter", cover, maxCoverLetter); err != nil {
		return nil, err
	}

	if _, err := s.store.Applications().FindActive(ctx, taskID, uid); err == nil {
		return nil, apperrors.ErrDuplicateApplication
	} else if !errors.Is(err, apperrors.ErrApplicationNotFound) {
		return nil, err
	}

	now := s.clock()
	app := &model.Application{
		TaskID:           taskID,
		ApplicantUID:     uid,
		ProposedBudget:   in.ProposedBudget,
		ProposedSchedule: sched,
		CoverLetter:      cover,
		Status:           constants.ApplicationPending,
		Messages:         []model.ApplicationMessage{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Applications().CreateApplication(ctx, app); err != nil {
		return nil, err
	}

	if err := s.store.Tasks().IncrementApplicationCount(context.WithoutCancel(ctx), taskID); err != nil {
		s.logger.WithError(err).WithField("task_id", taskID).Warn("application count not recorded")
	}
	s.logger.WithFields(logrus.Fields{
		"task_id":        taskID,
		"application_id": app.ID,
		"uid":            uid,
	}).Info("application submitted")

	return app, nil
}

// Decide lets the task creator accept or reject a pending application.
// Accepting assigns the task and rejects every other pending application.
func (s *ApplicationService) Decide(ctx context.Context, uid, applicationID string, decision constants.Decision) (*model.Application, error) {
	app, err := s.store.Applications().FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	task, err := s.store.Tasks().FindByID(ctx, app.TaskID)
	if err != nil {
		return nil, err
	}
	if task.CreatorUID != uid {
		return nil, apperrors.Forbidden("only the task creator can decide on applications")
	}

	switch decision {
	case constants.DecisionAccept:
		if task.Status != constants.StatusOpen {
			s.metrics.RecordConflict("accept")
			return nil, apperrors.Conflict("task is already %s", task.Status)
		}
		if app.Status != constants.ApplicationPending {
			return nil, apperrors.InvalidState("application is %s, not pending", app.Status)
		}
		return s.accept(ctx, app)

	case constants.DecisionReject:
		s.settle(ctx, app, task)
		if app.Status != constants.ApplicationPending {
			return nil, apperrors.InvalidState("application is %s, not pending", app.Status)
		}
		rejected, err := s.store.Applications().UpdateStatusIf(ctx, app.ID, pendingOnly, constants.ApplicationRejected, s.clock())
		if err != nil {
			return nil, s.conflict("reject", err, "application changed state concurrently")
		}
		s.metrics.RecordDecision(string(decision))
		return rejected, nil

	default:
		return nil, apperrors.Validation("decision must be accept or reject")
	}
}

func (s *ApplicationService) accept(ctx context.Context, app *model.Application) (*model.Application, error) {
	log := s.logger.WithFields(logrus.Fields{
		"task_id":        app.TaskID,
		"application_id": app.ID,
		"uid":            app.ApplicantUID,
	})

	if tx, ok := s.store.(repository.AcceptTransactor); ok {
		_, accepted, err := tx.AcceptApplication(ctx, app.ID, s.clock())
		if err != nil {
			return nil, s.conflict("accept", err, "task was assigned or cancelled concurrently")
		}
		s.recordTransition(app.TaskID, constants.StatusOpen, constants.StatusAssigned, app.ApplicantUID)
		s.metrics.RecordDecision(string(constants.DecisionAccept))
		return accepted, nil
	}

	// Two-phase: the conditional task assignment comes first. If the
	// application then turns out to have left pending (withdrawn in between),
	// the assignment is released and the accept fails with Conflict.
	assigned := constants.StatusAssigned
	assignee := app.ApplicantUID
	_, err := s.store.Tasks().UpdateIf(ctx, app.TaskID,
		repository.TaskCondition{Statuses: openOnly},
		repository.TaskUpdate{Status: &assigned, AssigneeUID: &assignee, UpdatedAt: s.clock()})
	if err != nil {
		return nil, s.conflict("accept", err, "task was assigned or cancelled concurrently")
	}

	ctx = context.WithoutCancel(ctx)
	accepted := app.Clone()
	accepted.Status = constants.ApplicationAccepted

	var superseded bool
	err = s.retry(func() error {
		updated, err := s.store.Applications().UpdateStatusIf(ctx, app.ID, pendingOnly, constants.ApplicationAccepted, s.clock())
		if err == nil {
			accepted = *updated
			return nil
		}
		if !errors.Is(err, apperrors.ErrOptimisticLock) {
			return err
		}
		// An earlier attempt may have landed before its reply was lost.
		current, err := s.store.Applications().FindByID(ctx, app.ID)
		if err != nil {
			return err
		}
		if current.Status == constants.ApplicationAccepted {
			accepted = *current
		} else {
			superseded = true
		}
		return nil
	})
	if superseded {
		s.releaseTask(ctx, app, log)
		return nil, s.conflict("accept", apperrors.ErrOptimisticLock, "application was withdrawn while being accepted")
	}
	if err != nil {
		// Still pending with its applicant holding the task: reads settle it
		// as accepted.
		log.WithError(err).Error("accepted application not persisted; reads will repair it")
	}

	s.recordTransition(app.TaskID, constants.StatusOpen, constants.StatusAssigned, app.ApplicantUID)
	s.metrics.RecordDecision(string(constants.DecisionAccept))

	s.rejectSiblings(ctx, app.TaskID, app.ID)
	return &accepted, nil
}

// releaseTask reopens a task assigned to an application that left pending
// before it could be accepted. A task that has moved on is left alone.
func (s *ApplicationService) releaseTask(ctx context.Context, app *model.Application, log logrus.FieldLogger) {
	reopened := constants.StatusOpen
	unassigned := ""
	var movedOn bool

	err := s.retry(func() error {
		_, err := s.store.Tasks().UpdateIf(ctx, app.TaskID,
			repository.TaskCondition{
				Statuses:    []constants.TaskStatus{constants.StatusAssigned},
				AssigneeUID: app.ApplicantUID,
			},
			repository.TaskUpdate{Status: &reopened, AssigneeUID: &unassigned, UpdatedAt: s.clock()})
		if errors.Is(err, apperrors.ErrOptimisticLock) {
			movedOn = true
			return nil
		}
		return err
	})

	switch {
	case err != nil:
		log.WithError(err).Error("task left assigned to a withdrawn application")
	case movedOn:
		log.Warn("task moved on before its assignment could be released")
	default:
		log.Info("assignment released after the application was withdrawn")
	}
}

func (s *ApplicationService) Withdraw(ctx context.Context, uid, applicationID string) (*model.Application, error) {
	app, err := s.store.Applications().FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantUID != uid {
		return nil, apperrors.Forbidden("only the applicant can withdraw this application")
	}
	if task, err := s.store.Tasks().FindByID(ctx, app.TaskID); err == nil {
		s.settle(ctx, app, task)
	}
	if app.Status != constants.ApplicationPending {
		return nil, apperrors.InvalidState("application is %s, not pending", app.Status)
	}

	withdrawn, err := s.store.Applications().UpdateStatusIf(ctx, app.ID, pendingOnly, constants.ApplicationWithdrawn, s.clock())
	if errors.Is(err, apperrors.ErrOptimisticLock) {
		return nil, apperrors.InvalidState("application is no longer pending")
	}
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":        app.TaskID,
		"application_id": app.ID,
		"uid":            uid,
	}).Info("application withdrawn")
	return withdrawn, nil
}

func (s *ApplicationService) AddMessage(ctx context.Context, uid, applicationID, text string) (*model.Application, error) {
	app, err := s.store.Applications().FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	task, err := s.store.Tasks().FindByID(ctx, app.TaskID)
	if err != nil {
		return nil, err
	}
	if uid != task.CreatorUID && uid != app.ApplicantUID {
		return nil, apperrors.Forbidden("only the task creator and the applicant can message on this application")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("message text is required")
	}
	if err := validateLength("message", text, MaxMessageLength); err != nil {
		return nil, err
	}

	updated, err := s.store.Applications().AppendMessage(ctx, applicationID, model.ApplicationMessage{
		SenderUID: uid,
		Text:      text,
		CreatedAt: s.clock(),
	})
	if err != nil {
		return nil, err
	}
	s.settle(ctx, updated, task)
	return updated, nil
}

func (s *ApplicationService) Get(ctx context.Context, uid, applicationID string) (*model.Application, error) {
	app, err := s.store.Applications().FindByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	task, err := s.store.Tasks().FindByID(ctx, app.TaskID)
	if err != nil {
		return nil, err
	}
	if uid != task.CreatorUID && uid != app.ApplicantUID {
		return nil, apperrors.Forbidden("not a participant of this application")
	}
	s.settle(ctx, app, task)
	return app, nil
}

func (s *ApplicationService) List(ctx context.Context, uid string, q ApplicationQuery) (*ApplicationPage, error) {
	limit, offset, page, err := q.Page.resolve()
	if err != nil {
		return nil, err
	}

	filter := repository.ApplicationFilter{
		TaskID:       q.TaskID,
		ApplicantUID: uid,
		Statuses:     q.Statuses,
		Limit:        limit,
		Offset:       offset,
	}
	tasks := make(map[string]*model.Task)
	if q.TaskID != "" {
		task, err := s.store.Tasks().FindByID(ctx, q.TaskID)
		if err != nil {
			return nil, err
		}
		if task.CreatorUID == uid {
			filter.ApplicantUID = ""
		}
		tasks[task.ID] = task
	}

	apps, err := s.store.Applications().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Applications().Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	for i := range apps {
		task, ok := tasks[apps[i].TaskID]
		if !ok {
			if task, err = s.store.Tasks().FindByID(ctx, apps[i].TaskID); err != nil {
				continue
			}
			tasks[task.ID] = task
		}
		s.settle(ctx, &apps[i], task)
	}
	if apps == nil {
		apps = []model.Application{}
	}

	return &ApplicationPage{Applications: apps, Pagination: newPagination(page, limit, total)}, nil
}

// settle repairs a pending application whose task has moved on: it is the
// accepted one if its applicant holds the task, otherwise it was superseded.
// The repaired status is returned at once and persisted best-effort.
func (s *env) settle(ctx context.Context, app *model.Application, task *model.Task) {
	if app.Status != constants.ApplicationPending || task.Status == constants.StatusOpen {
		return
	}

	to := constants.ApplicationRejected
	if task.Status.HasAssignee() && task.AssigneeUID == app.ApplicantUID {
		to = constants.ApplicationAccepted
	}
	app.Status = to

	_, err := s.store.Applications().UpdateStatusIf(context.WithoutCancel(ctx), app.ID, pendingOnly, to, s.clock())
	if err != nil && !errors.Is(err, apperrors.ErrOptimisticLock) {
		s.logger.WithError(err).WithField("application_id", app.ID).Warn("read repair not persisted")
	}
}

// rejectSiblings rejects the task's other pending applications, retrying up
// to SiblingRejectRetries times. Exhaustion is logged and counted only: any
// sibling still pending is reported as rejected by settle on its next read,
// which is where convergence finishes.
func (s *env) rejectSiblings(ctx context.Context, taskID, exceptID string) {
	var rejected int64
	err := s.retry(func() error {
		n, err := s.store.Applications().RejectPending(ctx, taskID, exceptID, s.clock())
		rejected += n
		return err
	})

	log := s.logger.WithFields(logrus.Fields{
		"task_id":        taskID,
		"application_id": exceptID,
	})
	if err != nil {
		log.WithError(err).Error("sibling applications left pending")
		return
	}
	if rejected > 0 {
		log.WithField("rejected", rejected).Info("sibling applications rejected")
	}
}

func (s *env) retry(fn func() error) error {
	attempts := max(s.cfg.SiblingRejectRetries, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < attempts {
			s.metrics.RecordSiblingRetry()
			time.Sleep(s.backoff(attempt))
		}
	}
	return err
}
