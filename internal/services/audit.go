package services

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/repos"
	"github.com/edubridge/progress-backend/internal/types"
)

// AuditService records state-changing actions. It is strictly best-effort:
// a failed append is logged and swallowed so it can never fail the
// operation that produced it.
type AuditService interface {
	Log(ctx context.Context, tx *gorm.DB, userID, action, detail string)
	LogWithMetadata(ctx context.Context, tx *gorm.DB, userID, action, detail string, metadata map[string]interface{})
}

type auditService struct {
	log       *logger.Logger
	auditRepo repos.AuditLogRepo
	now       func() time.Time
}

func NewAuditService(baseLog *logger.Logger, auditRepo repos.AuditLogRepo) AuditService {
	return &auditService{
		log:       baseLog.With("service", "AuditService"),
		auditRepo: auditRepo,
		now:       time.Now,
	}
}

func (s *auditService) Log(ctx context.Context, tx *gorm.DB, userID, action, detail string) {
	s.LogWithMetadata(ctx, tx, userID, action, detail, nil)
}

func (s *auditService) LogWithMetadata(ctx context.Context, tx *gorm.DB, userID, action, detail string, metadata map[string]interface{}) {
	row := &types.AuditLog{
		UserID:    userID,
		Action:    action,
		Detail:    detail,
		Timestamp: s.now().UTC(),
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			s.log.Warn("audit metadata not serializable, dropping it", "action", action, "error", err)
		} else {
			row.Metadata = datatypes.JSON(raw)
		}
	}
	if err := s.auditRepo.Append(ctx, tx, row); err != nil {
		s.log.Error("failed to append audit entry", "user_id", userID, "action", action, "error", err)
	}
}
