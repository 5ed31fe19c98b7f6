package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
	repository "github.com/TrizenVenturesLLP/task-connect-relay/internal/repositories"
)

type TaskService struct {
	*env
}

// TaskInput carries the creator-editable fields. On update, nil fields keep
// their stored value.
type TaskInput struct {
	Type           *string
	Title          *string
	Description    *string
	Budget         *model.Budget
	SkillsRequired []string
	Location       *model.Location
	Priority       *string
	Urgency        *string
	Images         []string
}

type TaskQuery struct {
	// Mine scopes to the caller: "creator", "assignee" or "all" (either).
	Mine      string
	Statuses  []constants.TaskStatus
	Type      string
	City      string
	MinBudget *float64
	MaxBudget *float64
	Skills    []string
	Page
}

type TaskPage struct {
	Tasks      []model.Task `json:"tasks"`
	Pagination Pagination   `json:"pagination"`
}

type CompletionInput struct {
	Proofs  []string
	Comment string
}

var openOnly = []constants.TaskStatus{constants.StatusOpen}

func (s *TaskService) Create(ctx context.Context, creatorUID string, in TaskInput) (*model.Task, error) {
	var details model.TaskDetails
	if err := applyTaskInput(&details, in); err != nil {
		return nil, err
	}
	if err := validateTaskDetails(&details); err != nil {
		return nil, err
	}

	now := s.clock()
	expiresAt := now.Add(s.cfg.TaskTTL)
	task := &model.Task{
		CreatorUID:  creatorUID,
		TaskDetails: details,
		Status:      constants.StatusOpen,
		ExpiresAt:   &expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Tasks().CreateTask(ctx, task); err != nil {
		return nil, err
	}

	s.bumpProfileCounter(ctx, creatorUID, model.CounterTotalTasks)
	s.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"uid":     creatorUID,
	}).Info("task created")

	return task, nil
}

// Get returns the task and counts the view.
func (s *TaskService) Get(ctx context.Context, id string) (*model.Task, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.ErrTaskIDRequired
	}
	task, err := s.store.Tasks().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.Tasks().IncrementViewCount(ctx, id); err != nil {
		s.logger.WithError(err).WithField("task_id", id).Warn("view count not recorded")
	} else {
		task.ViewCount++
	}
	return task, nil
}

func (s *TaskService) List(ctx context.Context, uid string, q TaskQuery) (*TaskPage, error) {
	limit, offset, page, err := q.Page.resolve()
	if err != nil {
		return nil, err
	}

	filter := repository.TaskFilter{
		Statuses:  q.Statuses,
		Type:      strings.TrimSpace(q.Type),
		City:      strings.TrimSpace(q.City),
		MinBudget: q.MinBudget,
		MaxBudget: q.MaxBudget,
		Limit:     limit,
		Offset:    offset,
	}
	switch q.Mine {
	case "":
	case "creator":
		filter.CreatorUID = uid
	case "assignee":
		filter.AssigneeUID = uid
	case "all":
		filter.ParticipantUID = uid
	default:
		return nil, apperrors.Validation("mine must be one of creator, assignee, all")
	}
	if len(q.Skills) > 0 {
		skills, err := normalizeSkills(q.Skills, maxProfileSkills)
		if err != nil {
			return nil, err
		}
		filter.SkillsAny = skills
	}

	tasks, err := s.store.Tasks().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.store.Tasks().Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}

	return &TaskPage{Tasks: tasks, Pagination: newPagination(page, limit, total)}, nil
}

// Update edits descriptive fields of an open task owned by uid.
func (s *TaskService) Update(ctx context.Context, uid, id string, in TaskInput) (*model.Task, error) {
	task, err := s.store.Tasks().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.CreatorUID != uid {
		return nil, apperrors.Forbidden("only the task creator can update this task")
	}
	if task.Status != constants.StatusOpen {
		return nil, apperrors.InvalidState("cannot update a task that is %s", task.Status)
	}

	details := task.Clone().TaskDetails
	if err := applyTaskInput(&details, in); err != nil {
		return nil, err
	}
	if err := validateTaskDetails(&details); err != nil {
		return nil, err
	}

	updated, err := s.store.Tasks().UpdateIf(ctx, id,
		repository.TaskCondition{Statuses: openOnly},
		repository.TaskUpdate{Details: &details, UpdatedAt: s.clock()})
	if err != nil {
		return nil, s.conflict("update", err, "task changed state while being updated")
	}
	return updated, nil
}

// Accept assigns an open task directly to uid, without an application.
func (s *TaskService) Accept(ctx context.Context, uid, id string) (*model.Task, error) {
	if !s.cfg.DirectAccept {
		return nil, apperrors.InvalidState("direct accept is disabled; apply to the task instead")
	}

	task, err := s.store.Tasks().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != constants.StatusOpen {
		return nil, apperrors.InvalidState("task is %s, not open", task.Status)
	}
	if task.CreatorUID == uid {
		return nil, apperrors.Forbidden("cannot accept your own task")
	}

	assigned := constants.StatusAssigned
	updated, err := s.store.Tasks().UpdateIf(ctx, id,
		repository.TaskCondition{Statuses: openOnly},
		repository.TaskUpdate{Status: &assigned, AssigneeUID: &uid, UpdatedAt: s.clock()})
	if err != nil {
		return nil, s.conflict("accept", err, "task was assigned or cancelled concurrently")
	}
	s.recordTransition(updated.ID, constants.StatusOpen, constants.StatusAssigned, uid)

	s.settleDirectAccept(ctx, updated)
	return updated, nil
}

// settleDirectAccept accepts the assignee's own pending application, if any,
// and rejects the rest.
func (s *TaskService) settleDirectAccept(ctx context.Context, task *model.Task) {
	ctx = context.WithoutCancel(ctx)
	keep := ""

	app, err := s.store.Applications().FindActive(ctx, task.ID, task.AssigneeUID)
	switch {
	case err == nil && app.Status == constants.ApplicationPending:
		_, err = s.store.Applications().UpdateStatusIf(ctx, app.ID,
			[]constants.ApplicationStatus{constants.ApplicationPending}, constants.ApplicationAccepted, s.clock())
		if err != nil {
			s.logger.WithError(err).WithField("application_id", app.ID).Warn("assignee application not marked accepted")
		}
		keep = app.ID
	case err != nil && !errors.Is(err, apperrors.ErrApplicationNotFound):
		s.logger.WithError(err).WithField("task_id", task.ID).Warn("assignee application lookup failed")
	}

	s.rejectSiblings(ctx, task.ID, keep)
}

// Start moves an assigned task into progress; only the assignee may start it.
func (s *TaskService) Start(ctx context.Context, uid, id string) (*model.Task, error) {
	task, err := s.store.Tasks().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != constants.StatusAssigned {
		return nil, apperrors.InvalidState("task is %s, not assigned", task.Status)
	}
	if task.AssigneeUID != uid {
		return nil, apperrors.Forbidden("only the assignee can start this task")
	}

	inProgress := constants.StatusInProgress
	updated, err := s.store.Tasks().UpdateIf(ctx, id,
		repository.TaskCondition{Statuses: []constants.TaskStatus{constants.StatusAssigned}, AssigneeUID: uid},
		repository.TaskUpdate{Status: &inProgress, UpdatedAt: s.clock()})
	if err != nil {
		return nil, s.conflict("start", err, "task changed state concurrently")
	}
	s.recordTransition(id, constants.StatusAssigned, constants.StatusInProgress, uid)
	return updated, nil
}

func (s *TaskService) Complete(ctx context.Context, uid, id string, in CompletionInput) (*model.Task, error) {
	task, err := s.store.Tasks().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != constants.StatusAssigned && task.Status != constants.StatusInProgress {
		return nil, apperrors.InvalidState("task is %s; only assigned or in-progress tasks can be completed", task.Status)
	}
	if task.AssigneeUID == "" || task.AssigneeUID != uid {
		return nil, apperrors.Forbidden("only the assignee can complete this task")
	}

	proofs, err := cleanList(in.Proofs, "proofs", maxAttachments)
	if err != nil {
		return nil, err
	}
	comment := strings.TrimSpace(in.Comment)
	if err := validateLength("comment", comment, maxTextLen); err != nil {
		return nil, err
	}

	now := s.clock()
	completed := constants.StatusCompleted
	updated, err := s.store.Tasks().UpdateIf(ctx, id,
		repository.TaskCondition{
			Statuses:    []constants.TaskStatus{constants.StatusAssigned, constants.StatusInProgress},
			AssigneeUID: uid,
		},
		repository.TaskUpdate{
			Status:     &completed,
			Completion: &model.Completion{Proofs: proofs, Comment: comment, CompletedAt: &now},
			UpdatedAt:  now,
		})
	if err != nil {
		return nil, s.conflict("complete", err, "task changed state concurrently")
	}
	s.recordTransition(id, task.Status, constants.StatusCompleted, uid)
	s.bumpProfileCounter(ctx, uid, model.CounterCompletedTasks)

	return updated, nil
}

// Cancel withdraws an open task; only its creator may cancel it.
func (s *TaskService) Cancel(ctx context.Context, uid, id string) (*model.Task, error) {
	task, err := s.store.Tasks().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.CreatorUID != uid {
		return nil, apperrors.Forbidden("only the task creator can cancel this task")
	}
	if task.Status != constants.StatusOpen {
		return nil, apperrors.InvalidState("cannot cancel a task that is %s", task.Status)
	}

	cancelled := constants.StatusCancelled
	updated, err := s.store.Tasks().UpdateIf(ctx, id,
		repository.TaskCondition{Statuses: openOnly},
		repository.TaskUpdate{Status: &cancelled, UpdatedAt: s.clock()})
	if err != nil {
		return nil, s.conflict("cancel", err, "task was assigned concurrently")
	}
	s.recordTransition(id, constants.StatusOpen, constants.StatusCancelled, uid)

	s.rejectSiblings(context.WithoutCancel(ctx), id, "")
	return updated, nil
}

// Transition dispatches a requested target status to the matching operation.
// Edges absent from the state machine fail with InvalidTransition.
func (s *TaskService) Transition(ctx context.Context, uid, id string, target constants.TaskStatus, in CompletionInput) (*model.Task, error) {
	if !target.Valid() {
		return nil, apperrors.Validation("unknown task status %q", target)
	}
	task, err := s.store.Tasks().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.Status.CanTransitionTo(target) {
		return nil, apperrors.InvalidTransition("cannot move task from %s to %s", task.Status, target)
	}

	switch target {
	case constants.StatusAssigned:
		return s.Accept(ctx, uid, id)
	case constants.StatusInProgress:
		return s.Start(ctx, uid, id)
	case constants.StatusCompleted:
		return s.Complete(ctx, uid, id, in)
	case constants.StatusCancelled:
		return s.Cancel(ctx, uid, id)
	default:
		return nil, apperrors.InvalidTransition("%s is only set by the expiry sweep", target)
	}
}

// conflict turns a lost conditional write into a Conflict with a readable
// message; other errors pass through.
func (s *env) conflict(operation string, err error, message string) error {
	if !errors.Is(err, apperrors.ErrOptimisticLock) {
		return err
	}
	s.metrics.RecordConflict(operation)
	return &apperrors.Exception{
		Kind:       apperrors.KindConflict,
		Message:    message,
		StatusCode: apperrors.ErrConflict.StatusCode,
		Err:        err,
	}
}

func (s *env) recordTransition(taskID string, from, to constants.TaskStatus, uid string) {
	s.metrics.RecordTransition(string(from), string(to))
	s.logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"uid":     uid,
		"from":    from,
		"to":      to,
	}).Info("task transitioned")
}

func (s *env) bumpProfileCounter(ctx context.Context, uid string, counter model.ProfileCounter) {
	err := s.store.Profiles().IncrementCounter(context.WithoutCancel(ctx), uid, counter)
	if err != nil && !errors.Is(err, apperrors.ErrProfileNotFound) {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"uid":     uid,
			"counter": counter,
		}).Warn("profile counter not updated")
	}
}

func applyTaskInput(d *model.TaskDetails, in TaskInput) error {
	if in.Type != nil {
		d.Type = strings.ToLower(strings.TrimSpace(*in.Type))
	}
	if in.Title != nil {
		d.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		d.Description = strings.TrimSpace(*in.Description)
	}
	if in.Budget != nil {
		d.Budget = *in.Budget
	}
	if in.SkillsRequired != nil {
		d.SkillsRequired = in.SkillsRequired
	}
	if in.Location != nil {
		d.Location = *in.Location
	}
	if in.Priority != nil {
		p, err := constants.ParsePriority(strings.TrimSpace(*in.Priority))
		if err != nil {
			return apperrors.Validation("%s", err.Error())
		}
		d.Priority = p
	}
	if in.Urgency != nil {
		u, err := constants.ParseUrgency(strings.TrimSpace(*in.Urgency))
		if err != nil {
			return apperrors.Validation("%s", err.Error())
		}
		d.Urgency = u
	}
	if in.Images != nil {
		d.Images = in.Images
	}
	return nil
}

func validateTaskDetails(d *model.TaskDetails) error {
	if d.Type == "" {
		return apperrors.Validation("type is required")
	}
	if d.Title == "" {
		return apperrors.Validation("title is required")
	}
	if err := validateLength("title", d.Title, maxTitleLen); err != nil {
		return err
	}
	if err := validateLength("description", d.Description, maxTextLen); err != nil {
		return err
	}
	if err := validateBudget(&d.Budget, defaultCurrency); err != nil {
		return err
	}

	skills, err := normalizeSkills(d.SkillsRequired, maxTaskSkills)
	if err != nil {
		return err
	}
	d.SkillsRequired = skills

	if err := validateLocation(d.Location, true); err != nil {
		return err
	}

	images, err := cleanList(d.Images, "images", maxAttachments)
	if err != nil {
		return err
	}
	d.Images = images

	if d.Priority == "" {
		d.Priority = constants.PriorityMedium
	}
	if d.Urgency == "" {
		d.Urgency = constants.UrgencyNormal
	}
	return nil
}
