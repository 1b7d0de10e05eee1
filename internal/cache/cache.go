package cache

import (
	"context"
	"time"
)

// Cache is the shared best-effort TTL store. A miss is reported through the
// bool return, never through an error: cache-internal failures degrade to a
// miss and must not abort the caller's request.
type Cache interface {
	// GetJSON decodes the cached value for key into out and reports whether
	// a live entry existed.
	GetJSON(ctx context.Context, key string, out interface{}) bool
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// TTLs per key family.
const (
	TTLCatalog = time.Hour       // course/video metadata
	TTLSummary = 5 * time.Minute // progress summary per user
	TTLCount   = 5 * time.Minute // enrolled-course count per user
)

func KeyEnrolledCount(userID string) string   { return "total_enrolled_courses:" + userID }
func KeyProgressSummary(userID string) string { return "progress_summary:" + userID }
func KeyCourse(courseID string) string        { return "catalog_course:" + courseID }
func KeyVideo(videoID string) string          { return "catalog_video:" + videoID }
