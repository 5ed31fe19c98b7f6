package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
)

type ApplicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) CreateApplication(ctx context.Context, app *model.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).Create(app).Error
	if isDuplicateKey(err) {
		return apperrors.ErrDuplicateApplication
	}
	return apperrors.Unavailable(err)
}

func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*model.Application, error) {
	return findApplication(r.db.WithContext(ctx), "id = ?", id)
}

func (r *ApplicationRepository) FindActive(ctx context.Context, taskID, applicantUID string) (*model.Application, error) {
	return findApplication(r.db.WithContext(ctx),
		"task_id = ? AND applicant_uid = ? AND status <> ?",
		taskID, applicantUID, string(constants.ApplicationWithdrawn))
}

func (r *ApplicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]model.Application, error) {
	var apps []model.Application
	query := applyApplicationFilter(withMessages(r.db.WithContext(ctx)), filter).
		Order("created_at desc").Order("id asc")
	query = paginate(query, filter.Limit, filter.Offset)

	if err := query.Find(&apps).Error; err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return apps, nil
}

func (r *ApplicationRepository) Count(ctx context.Context, filter ApplicationFilter) (int64, error) {
	var n int64
	err := applyApplicationFilter(r.db.WithContext(ctx).Model(&model.Application{}), filter).Count(&n).Error
	return n, apperrors.Unavailable(err)
}

func (r *ApplicationRepository) UpdateStatusIf(ctx context.Context, id string, from []constants.ApplicationStatus, to constants.ApplicationStatus, at time.Time) (*model.Application, error) {
	db := r.db.WithContext(ctx)
	if err := updateApplicationStatusIf(db, id, from, to, at); err != nil {
		return nil, err
	}
	return findApplication(db, "id = ?", id)
}

func (r *ApplicationRepository) RejectPending(ctx context.Context, taskID, exceptID string, at time.Time) (int64, error) {
	return rejectPending(r.db.WithContext(ctx), taskID, exceptID, at)
}

func (r *ApplicationRepository) AppendMessage(ctx context.Context, id string, msg model.ApplicationMessage) (*model.Application, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Application{}).Where("id = ?", id).Update("updated_at", msg.CreatedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrApplicationNotFound
		}
		msg.ID = 0
		msg.ApplicationID = id
		return tx.Create(&msg).Error
	})
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return r.FindByID(ctx, id)
}

func withMessages(db *gorm.DB) *gorm.DB {
	return db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("id asc")
	})
}

func findApplication(db *gorm.DB, query string, args ...interface{}) (*model.Application, error) {
	var app model.Application
	err := withMessages(db).Where(query, args...).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrApplicationNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &app, nil
}

func updateApplicationStatusIf(db *gorm.DB, id string, from []constants.ApplicationStatus, to constants.ApplicationStatus, at time.Time) error {
	res := db.Model(&model.Application{}).
		Where("id = ? AND status IN ?", id, statusStrings(from)).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": at,
		})
	if res.Error != nil {
		if isDuplicateKey(res.Error) {
			return apperrors.ErrDuplicateApplication
		}
		return apperrors.Unavailable(res.Error)
	}

	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(&model.Application{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return apperrors.Unavailable(err)
		}
		if n == 0 {
			return apperrors.ErrApplicationNotFound
		}
		return apperrors.ErrOptimisticLock
	}
	return nil
}

func rejectPending(db *gorm.DB, taskID, exceptID string, at time.Time) (int64, error) {
	res := db.Model(&model.Application{}).
		Where("task_id = ? AND id <> ? AND status = ?", taskID, exceptID, string(constants.ApplicationPending)).
		Updates(map[string]interface{}{
			"status":     constants.ApplicationRejected,
			"updated_at": at,
		})
	return res.RowsAffected, apperrors.Unavailable(res.Error)
}

// isDuplicateKey recognizes unique violations whether or not the dialector
// translated them.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
