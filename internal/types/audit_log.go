package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditLog is a pure append-only event stream: no updates, no deletes, no
// uniqueness constraint. Detail is human-readable; Metadata carries the
// structured payload when one exists.
type AuditLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    string         `gorm:"column:user_id;not null;index" json:"user_id"`
	Action    string         `gorm:"column:action;not null" json:"action"`
	Detail    string         `gorm:"column:detail" json:"detail"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	Timestamp time.Time      `gorm:"column:timestamp;not null" json:"timestamp"`
}

func (AuditLog) TableName() string { return "audit_log" }
