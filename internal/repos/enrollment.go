package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/types"
)

type EnrollmentRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string) ([]*types.Enrollment, error)
	GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (*types.Enrollment, error)
	CountActiveByUserID(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
	Create(ctx context.Context, tx *gorm.DB, row *types.Enrollment) error
	Save(ctx context.Context, tx *gorm.DB, row *types.Enrollment) error
}

type enrollmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEnrollmentRepo(db *gorm.DB, baseLog *logger.Logger) EnrollmentRepo {
	return &enrollmentRepo{db: db, log: baseLog.With("repo", "EnrollmentRepo")}
}

func (r *enrollmentRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) ([]*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Enrollment
	if userID == "" {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *enrollmentRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (*types.Enrollment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.Enrollment
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *enrollmentRepo) CountActiveByUserID(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Enrollment{}).
		Where("user_id = ? AND status = ?", userID, types.EnrollmentActive).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *enrollmentRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Enrollment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *enrollmentRepo) Save(ctx context.Context, tx *gorm.DB, row *types.Enrollment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).Save(row).Error
}
