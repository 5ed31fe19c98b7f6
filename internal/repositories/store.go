package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
)

// GormStore backs the relational drivers (sqlite, postgres).
type GormStore struct {
	db           *gorm.DB
	tasks        *TaskRepository
	applications *ApplicationRepository
	profiles     *ProfileRepository
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:           db,
		tasks:        NewTaskRepository(db),
		applications: NewApplicationRepository(db),
		profiles:     NewProfileRepository(db),
	}
}

// Migrate creates or updates the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Task{},
		&model.Application{},
		&model.ApplicationMessage{},
		&model.Profile{},
	)
}

func (s *GormStore) Tasks() TaskStore               { return s.tasks }
func (s *GormStore) Applications() ApplicationStore { return s.applications }
func (s *GormStore) Profiles() ProfileStore         { return s.profiles }

func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AcceptApplication assigns the task to the applicant, accepts the
// application and rejects the pending siblings in one transaction.
func (s *GormStore) AcceptApplication(ctx context.Context, applicationID string, at time.Time) (*model.Task, *model.Application, error) {
	var task *model.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app model.Application
		if err := tx.First(&app, "id = ?", applicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrApplicationNotFound
			}
			return apperrors.Unavailable(err)
		}

		assigned := constants.StatusAssigned
		assignee := app.ApplicantUID
		t, err := updateTaskIf(tx, app.TaskID,
			TaskCondition{Statuses: []constants.TaskStatus{constants.StatusOpen}},
			TaskUpdate{Status: &assigned, AssigneeUID: &assignee, UpdatedAt: at})
		if err != nil {
			return err
		}
		task = t

		pending := []constants.ApplicationStatus{constants.ApplicationPending}
		if err := updateApplicationStatusIf(tx, applicationID, pending, constants.ApplicationAccepted, at); err != nil {
			return err
		}

		_, err = rejectPending(tx, app.TaskID, applicationID, at)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	return task, app, nil
}

var (
	_ Store            = (*GormStore)(nil)
	_ AcceptTransactor = (*GormStore)(nil)
)
