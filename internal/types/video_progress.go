package types

import (
	"time"

	"github.com/google/uuid"
)

// VideoProgress is the per-(user, video) watch record. Rows are created on
// first update and mutated afterwards, never deleted.
type VideoProgress struct {
	ID                   uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID               string    `gorm:"column:user_id;not null;index:idx_user_video,unique" json:"user_id"`
	VideoID              string    `gorm:"column:video_id;not null;index:idx_user_video,unique" json:"video_id"`
	CurrentTimeSeconds   int       `gorm:"column:current_time_seconds;not null;default:0" json:"current_time_seconds"`
	CompletionPercentage float64   `gorm:"column:completion_percentage;not null;default:0" json:"completion_percentage"`
	IsCompleted          bool      `gorm:"column:is_completed;not null;default:false" json:"is_completed"`
	LastWatched          time.Time `gorm:"column:last_watched;not null" json:"last_watched"`
	CreatedAt            time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (VideoProgress) TableName() string { return "video_progress" }
