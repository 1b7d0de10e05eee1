package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/types"
)

type VideoProgressRepo interface {
	GetByUserAndVideo(ctx context.Context, tx *gorm.DB, userID, videoID string) (*types.VideoProgress, error)
	GetByUserAndVideoIDs(ctx context.Context, tx *gorm.DB, userID string, videoIDs []string) ([]*types.VideoProgress, error)
	CountCompletedByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
	SumWatchTimeByUser(ctx context.Context, tx *gorm.DB, userID string) (float64, error)
	Save(ctx context.Context, tx *gorm.DB, row *types.VideoProgress) error
}

type videoProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoProgressRepo(db *gorm.DB, baseLog *logger.Logger) VideoProgressRepo {
	return &videoProgressRepo{db: db, log: baseLog.With("repo", "VideoProgressRepo")}
}

func (r *videoProgressRepo) GetByUserAndVideo(ctx context.Context, tx *gorm.DB, userID, videoID string) (*types.VideoProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row types.VideoProgress
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND video_id = ?", userID, videoID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *videoProgressRepo) GetByUserAndVideoIDs(ctx context.Context, tx *gorm.DB, userID string, videoIDs []string) ([]*types.VideoProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.VideoProgress
	if userID == "" || len(videoIDs) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND video_id IN ?", userID, videoIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *videoProgressRepo) CountCompletedByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.VideoProgress{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *videoProgressRepo) SumWatchTimeByUser(ctx context.Context, tx *gorm.DB, userID string) (float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var total float64
	if err := transaction.WithContext(ctx).
		Model(&types.VideoProgress{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(current_time_seconds), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *videoProgressRepo) Save(ctx context.Context, tx *gorm.DB, row *types.VideoProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).Save(row).Error
}
