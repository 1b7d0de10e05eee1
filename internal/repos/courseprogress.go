package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/types"
)

type CourseProgressRepo interface {
	GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (*types.CourseProgress, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string) ([]*types.CourseProgress, error)
	GetRecentByUserID(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.CourseProgress, error)
	Save(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) error
}

type courseProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseProgressRepo(db *gorm.DB, baseLog *logger.Logger) CourseProgressRepo {
	return &courseProgressRepo{db: db, log: baseLog.With("repo", "CourseProgressRepo")}
}

func (r *courseProgressRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (*types.CourseProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.CourseProgress
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

func (r *courseProgressRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) ([]*types.CourseProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CourseProgress
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

func (r *courseProgressRepo) GetRecentByUserID(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.CourseProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.CourseProgress
	if userID == "" || limit <= 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_accessed DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *courseProgressRepo) Save(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).Save(row).Error
}
