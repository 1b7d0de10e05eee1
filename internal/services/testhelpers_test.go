package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/edubridge/progress-backend/internal/clients/catalog"
	"github.com/edubridge/progress-backend/internal/clients/identity"
	"github.com/edubridge/progress-backend/internal/types"
)

// testDB opens a throwaway in-memory database so service transactions have
// a real BEGIN/COMMIT to run inside. The fake repos below keep their own
// state, so no tables are migrated.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return db
}

type fakeEnrollmentRepo struct {
	mu   sync.Mutex
	rows []*types.Enrollment
	err  error
}

func (f *fakeEnrollmentRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) ([]*types.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*types.Enrollment
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEnrollmentRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (*types.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.rows {
		if r.UserID == userID && r.CourseID == courseID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeEnrollmentRepo) CountActiveByUserID(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, r := range f.rows {
		if r.UserID == userID && r.Status == types.EnrollmentActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeEnrollmentRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, r := range f.rows {
		if r.UserID == row.UserID && r.CourseID == row.CourseID {
			return fmt.Errorf("duplicate enrollment %s/%s", row.UserID, row.CourseID)
		}
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeEnrollmentRepo) Save(ctx context.Context, tx *gorm.DB, row *types.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for i, r := range f.rows {
		if r.UserID == row.UserID && r.CourseID == row.CourseID {
			f.rows[i] = row
			return nil
		}
	}
	f.rows = append(f.rows, row)
	return nil
}

type fakeVideoProgressRepo struct {
	mu   sync.Mutex
	rows []*types.VideoProgress
}

func (f *fakeVideoProgressRepo) GetByUserAndVideo(ctx context.Context, tx *gorm.DB, userID, videoID string) (*types.VideoProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == userID && r.VideoID == videoID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeVideoProgressRepo) GetByUserAndVideoIDs(ctx context.Context, tx *gorm.DB, userID string, videoIDs []string) ([]*types.VideoProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]struct{}, len(videoIDs))
	for _, id := range videoIDs {
		wanted[id] = struct{}{}
	}
	var out []*types.VideoProgress
	for _, r := range f.rows {
		if r.UserID != userID {
			continue
		}
		if _, ok := wanted[r.VideoID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeVideoProgressRepo) CountCompletedByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.UserID == userID && r.IsCompleted {
			n++
		}
	}
	return n, nil
}

func (f *fakeVideoProgressRepo) SumWatchTimeByUser(ctx context.Context, tx *gorm.DB, userID string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total float64
	for _, r := range f.rows {
		if r.UserID == userID {
			total += float64(r.CurrentTimeSeconds)
		}
	}
	return total, nil
}

func (f *fakeVideoProgressRepo) Save(ctx context.Context, tx *gorm.DB, row *types.VideoProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.UserID == row.UserID && r.VideoID == row.VideoID {
			f.rows[i] = row
			return nil
		}
	}
	f.rows = append(f.rows, row)
	return nil
}

type fakeCourseProgressRepo struct {
	mu   sync.Mutex
	rows []*types.CourseProgress
}

func (f *fakeCourseProgressRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID, courseID string) (*types.CourseProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == userID && r.CourseID == courseID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeCourseProgressRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) ([]*types.CourseProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.CourseProgress
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCourseProgressRepo) GetRecentByUserID(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.CourseProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.CourseProgress
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	// Newest first.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].LastAccessed.After(out[i].LastAccessed) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCourseProgressRepo) Save(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.UserID == row.UserID && r.CourseID == row.CourseID {
			f.rows[i] = row
			return nil
		}
	}
	f.rows = append(f.rows, row)
	return nil
}

type fakeAuditLogRepo struct {
	mu   sync.Mutex
	rows []*types.AuditLog
}

func (f *fakeAuditLogRepo) Append(ctx context.Context, tx *gorm.DB, row *types.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeAuditLogRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*types.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AuditLog
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAuditLogRepo) countByAction(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Action == action {
			n++
		}
	}
	return n
}

type fakeIdentityClient struct {
	profiles map[string]*identity.UserProfile
	err      error
}

func (f *fakeIdentityClient) GetUserProfile(ctx context.Context, userID string) (*identity.UserProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profiles[userID], nil
}

type fakeCatalogClient struct {
	courses  map[string]*catalog.Course
	videos   map[string]*catalog.Video
	sections map[string][]catalog.Section // courseID -> sections
	byGroup  map[string][]catalog.Video   // sectionID -> videos

	courseErr error
	videoErr  error

	invalidatedCourses []string
	invalidatedVideos  []string
}

func (f *fakeCatalogClient) GetCourse(ctx context.Context, courseID string) (*catalog.Course, error) {
	if f.courseErr != nil {
		return nil, f.courseErr
	}
	return f.courses[courseID], nil
}

func (f *fakeCatalogClient) GetVideo(ctx context.Context, videoID string) (*catalog.Video, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	return f.videos[videoID], nil
}

func (f *fakeCatalogClient) GetSections(ctx context.Context, courseID string) ([]catalog.Section, error) {
	return f.sections[courseID], nil
}

func (f *fakeCatalogClient) GetVideos(ctx context.Context, sectionID string) ([]catalog.Video, error) {
	return f.byGroup[sectionID], nil
}

func (f *fakeCatalogClient) InvalidateCourse(ctx context.Context, courseID string) {
	f.invalidatedCourses = append(f.invalidatedCourses, courseID)
}

func (f *fakeCatalogClient) InvalidateVideo(ctx context.Context, videoID string) {
	f.invalidatedVideos = append(f.invalidatedVideos, videoID)
}

type fakeLedgerClient struct {
	courseIDs []string
	err       error
	calls     int
}

func (f *fakeLedgerClient) GetEnrolledCourseIDs(ctx context.Context, userID string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.courseIDs, nil
}

func studentIdentity(userIDs ...string) *fakeIdentityClient {
	profiles := make(map[string]*identity.UserProfile, len(userIDs))
	for _, id := range userIDs {
		profiles[id] = &identity.UserProfile{ID: id, Role: identity.RoleStudent}
	}
	return &fakeIdentityClient{profiles: profiles}
}
