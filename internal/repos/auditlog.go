package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/types"
)

// AuditLogRepo is append-only: there is deliberately no update or delete.
type AuditLogRepo interface {
	Append(ctx context.Context, tx *gorm.DB, row *types.AuditLog) error
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.AuditLog, error)
}

type auditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) AuditLogRepo {
	return &auditLogRepo{db: db, log: baseLog.With("repo", "AuditLogRepo")}
}

func (r *auditLogRepo) Append(ctx context.Context, tx *gorm.DB, row *types.AuditLog) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *auditLogRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.AuditLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.AuditLog
	if userID == "" {
		return results, nil
	}

	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
