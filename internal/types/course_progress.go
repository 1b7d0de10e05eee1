package types

import (
	"time"

	"github.com/google/uuid"
)

// CourseProgress is a recomputed snapshot, not an incremental counter: every
// rollup derives all fields from the catalog structure plus the current
// VideoProgress rows.
type CourseProgress struct {
	ID                    uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID                string    `gorm:"column:user_id;not null;index:idx_user_course_progress,unique" json:"user_id"`
	CourseID              string    `gorm:"column:course_id;not null;index:idx_user_course_progress,unique" json:"course_id"`
	CompletedVideos       int       `gorm:"column:completed_videos;not null;default:0" json:"completed_videos"`
	TotalVideos           int       `gorm:"column:total_videos;not null;default:0" json:"total_videos"`
	CompletionPercentage  float64   `gorm:"column:completion_percentage;not null;default:0" json:"completion_percentage"`
	TotalWatchTimeSeconds float64   `gorm:"column:total_watch_time_seconds;not null;default:0" json:"total_watch_time_seconds"`
	LastAccessed          time.Time `gorm:"column:last_accessed;not null" json:"last_accessed"`
	CreatedAt             time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt             time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (CourseProgress) TableName() string { return "course_progress" }
