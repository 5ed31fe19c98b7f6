package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/TrizenVenturesLLP/task-connect-relay/internal/constants"
	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) CreateTask(ctx context.Context, task *model.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = constants.StatusOpen
	}
	task.Version = 1

	return apperrors.Unavailable(r.db.WithContext(ctx).Create(task).Error)
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	return findTask(r.db.WithContext(ctx), id)
}

func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var tasks []model.Task
	query := applyTaskFilter(r.db.WithContext(ctx).Model(&model.Task{}), filter).
		Order("created_at desc").Order("id asc")
	query = paginate(query, filter.Limit, filter.Offset)

	if err := query.Find(&tasks).Error; err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return tasks, nil
}

func (r *TaskRepository) Count(ctx context.Context, filter TaskFilter) (int64, error) {
	var n int64
	err := applyTaskFilter(r.db.WithContext(ctx).Model(&model.Task{}), filter).Count(&n).Error
	return n, apperrors.Unavailable(err)
}

func (r *TaskRepository) UpdateIf(ctx context.Context, id string, cond TaskCondition, upd TaskUpdate) (*model.Task, error) {
	return updateTaskIf(r.db.WithContext(ctx), id, cond, upd)
}

func (r *TaskRepository) IncrementViewCount(ctx context.Context, id string) error {
	return r.increment(ctx, id, "view_count")
}

func (r *TaskRepository) IncrementApplicationCount(ctx context.Context, id string) error {
	return r.increment(ctx, id, "application_count")
}

func (r *TaskRepository) increment(ctx context.Context, id, column string) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return apperrors.Unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrTaskNotFound
	}
	return nil
}

func findTask(db *gorm.DB, id string) (*model.Task, error) {
	var task model.Task
	err := db.First(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrTaskNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &task, nil
}

// updateTaskIf is a single conditional UPDATE; a miss is disambiguated into
// not-found or a lost race afterwards.
func updateTaskIf(db *gorm.DB, id string, cond TaskCondition, upd TaskUpdate) (*model.Task, error) {
	res := applyTaskCondition(db.Model(&model.Task{}).Where("id = ?", id), cond).
		Updates(taskColumns(upd))

	if res.Error != nil {
		return nil, apperrors.Unavailable(res.Error)
	}

	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(&model.Task{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return nil, apperrors.Unavailable(err)
		}
		if n == 0 {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, apperrors.ErrOptimisticLock
	}

	return findTask(db, id)
}

func taskColumns(upd TaskUpdate) map[string]interface{} {
	cols := map[string]interface{}{
		"updated_at": upd.UpdatedAt,
		"version":    gorm.Expr("version + 1"),
	}
	if upd.Status != nil {
		cols["status"] = *upd.Status
	}
	if upd.AssigneeUID != nil {
		cols["assignee_uid"] = *upd.AssigneeUID
	}
	if c := upd.Completion; c != nil {
		cols["completion_proofs"] = c.Proofs
		cols["completion_comment"] = c.Comment
		cols["completion_completed_at"] = c.CompletedAt
	}
	if d := upd.Details; d != nil {
		cols["type"] = d.Type
		cols["title"] = d.Title
		cols["description"] = d.Description
		cols["budget_amount"] = d.Budget.Amount
		cols["budget_currency"] = d.Budget.Currency
		cols["budget_negotiable"] = d.Budget.Negotiable
		cols["skills_required"] = d.SkillsRequired
		cols["location_lat"] = d.Location.Lat
		cols["location_lng"] = d.Location.Lng
		cols["location_address"] = d.Location.Address
		cols["location_city"] = d.Location.City
		cols["location_state"] = d.Location.State
		cols["location_country"] = d.Location.Country
		cols["location_postal_code"] = d.Location.PostalCode
		cols["priority"] = d.Priority
		cols["urgency"] = d.Urgency
		cols["images"] = d.Images
	}
	return cols
}
