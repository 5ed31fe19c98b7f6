package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/TrizenVenturesLLP/task-connect-relay/internal/errors"
	model "github.com/TrizenVenturesLLP/task-connect-relay/internal/models"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Save upserts the profile keyed by uid.
func (r *ProfileRepository) Save(ctx context.Context, profile *model.Profile) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			UpdateAll: true,
		}).
		Create(profile).Error
	return apperrors.Unavailable(err)
}

func (r *ProfileRepository) FindByUID(ctx context.Context, uid string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).First(&profile, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrProfileNotFound
	}
	if err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return &profile, nil
}

func (r *ProfileRepository) List(ctx context.Context, filter ProfileFilter) ([]model.Profile, error) {
	var profiles []model.Profile
	query := applyProfileFilter(r.db.WithContext(ctx).Model(&model.Profile{}), filter).
		Order("created_at desc").Order("uid asc")
	query = paginate(query, filter.Limit, 0)

	if err := query.Find(&profiles).Error; err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return profiles, nil
}

func (r *ProfileRepository) IncrementCounter(ctx context.Context, uid string, counter model.ProfileCounter) error {
	column, err := counterColumn(counter)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&model.Profile{}).
		Where("uid = ?", uid).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return apperrors.Unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrProfileNotFound
	}
	return nil
}

func counterColumn(counter model.ProfileCounter) (string, error) {
	switch counter {
	case model.CounterTotalTasks, model.CounterCompletedTasks:
		return string(counter), nil
	}
	return "", apperrors.Validation("unknown profile counter %q", counter)
}
