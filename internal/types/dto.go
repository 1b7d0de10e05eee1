package types

import (
	"time"

	"github.com/google/uuid"
)

// UpdateVideoProgressRequest is the inbound payload for a single video
// progress update.
type UpdateVideoProgressRequest struct {
	CurrentTimeSeconds   int  `json:"currentTimeSeconds" binding:"min=0"`
	TotalDurationSeconds int  `json:"totalDurationSeconds" binding:"min=0"`
	MarkAsCompleted      bool `json:"markAsCompleted"`
}

// BulkVideoProgressItem is one entry of a bulk update.
type BulkVideoProgressItem struct {
	VideoID              string `json:"videoId" binding:"required"`
	CurrentTimeSeconds   int    `json:"currentTimeSeconds" binding:"min=0"`
	TotalDurationSeconds int    `json:"totalDurationSeconds" binding:"min=0"`
	MarkAsCompleted      bool   `json:"markAsCompleted"`
}

type BulkUpdateProgressRequest struct {
	VideoProgresses []BulkVideoProgressItem `json:"videoProgresses" binding:"required,min=1"`
}

// CatalogWebhookEvent is pushed by the content service when a course or
// video record changes.
type CatalogWebhookEvent struct {
	ID string `json:"id"`
}

// EnrollmentWebhookEvent is the externally pushed enrollment change.
type EnrollmentWebhookEvent struct {
	UserID   string `json:"userId"`
	CourseID string `json:"courseId"`
	Action   string `json:"action"`
}

type VideoProgressDTO struct {
	ID                   uuid.UUID `json:"id"`
	VideoID              string    `json:"video_id"`
	VideoTitle           string    `json:"video_title"`
	CurrentTimeSeconds   int       `json:"current_time_seconds"`
	CompletionPercentage float64   `json:"completion_percentage"`
	IsCompleted          bool      `json:"is_completed"`
	LastWatched          time.Time `json:"last_watched"`
}

type CourseProgressDTO struct {
	ID                    uuid.UUID `json:"id"`
	CourseID              string    `json:"course_id"`
	CourseTitle           string    `json:"course_title"`
	CompletedVideos       int       `json:"completed_videos"`
	TotalVideos           int       `json:"total_videos"`
	CompletionPercentage  float64   `json:"completion_percentage"`
	TotalWatchTimeSeconds float64   `json:"total_watch_time_seconds"`
	LastAccessed          time.Time `json:"last_accessed"`
}

type ProgressSummary struct {
	UserID               string              `json:"user_id"`
	TotalCoursesEnrolled int                 `json:"total_courses_enrolled"`
	CompletedCourses     int                 `json:"completed_courses"`
	TotalVideosWatched   int                 `json:"total_videos_watched"`
	TotalWatchTimeHours  float64             `json:"total_watch_time_hours"`
	RecentCourses        []CourseProgressDTO `json:"recent_courses"`
}
