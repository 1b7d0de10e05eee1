package types

import (
	"time"

	"github.com/google/uuid"
)

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentDropped   EnrollmentStatus = "dropped"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// Enrollment mirrors the external ledger per (user, course). Drops are a
// status transition, never a delete, so the row history survives audits.
type Enrollment struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         string           `gorm:"column:user_id;not null;index:idx_user_course_enrollment,unique" json:"user_id"`
	CourseID       string           `gorm:"column:course_id;not null;index:idx_user_course_enrollment,unique" json:"course_id"`
	EnrollmentDate time.Time        `gorm:"column:enrollment_date;not null" json:"enrollment_date"`
	Status         EnrollmentStatus `gorm:"column:status;not null;default:'active'" json:"status"`
	CreatedAt      time.Time        `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"not null;default:now()" json:"updated_at"`
}

func (Enrollment) TableName() string { return "enrollment" }
