package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/edubridge/progress-backend/internal/cache"
	"github.com/edubridge/progress-backend/internal/clients/catalog"
	"github.com/edubridge/progress-backend/internal/clients/identity"
	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/pkg/apperr"
	"github.com/edubridge/progress-backend/internal/repos"
	"github.com/edubridge/progress-backend/internal/requestdata"
	"github.com/edubridge/progress-backend/internal/types"
)

// completionThreshold is the watch percentage at which a video (and, for the
// summary, a course) counts as completed.
const completionThreshold = 95.0

const recentCourseLimit = 5

// ProgressService owns VideoProgress and CourseProgress. Every video update
// recomputes the owning course's rollup from scratch inside the same
// transaction, so the rollup is a pure function of current video rows plus
// current catalog structure.
type ProgressService interface {
	UpdateVideoProgress(ctx context.Context, userID, videoID string, req types.UpdateVideoProgressRequest) (*types.VideoProgressDTO, error)
	UpdateVideoProgressBulk(ctx context.Context, userID string, items []types.BulkVideoProgressItem) ([]*types.VideoProgressDTO, error)
	GetProgressSummary(ctx context.Context, userID string) (*types.ProgressSummary, error)
}

type progressService struct {
	db                 *gorm.DB
	log                *logger.Logger
	videoProgressRepo  repos.VideoProgressRepo
	courseProgressRepo repos.CourseProgressRepo
	enrollmentService  EnrollmentService
	catalogClient      catalog.Client
	cache              cache.Cache
	audit              AuditService
	now                func() time.Time

	// summaryGroup collapses concurrent summary recomputes per user.
	summaryGroup singleflight.Group
	// userLocks serializes rollup writers per user within this process;
	// the storage unique indexes remain the cross-process backstop.
	userLocks keyedMutex
}

func NewProgressService(
	db *gorm.DB,
	baseLog *logger.Logger,
	videoProgressRepo repos.VideoProgressRepo,
	courseProgressRepo repos.CourseProgressRepo,
	enrollmentService EnrollmentService,
	catalogClient catalog.Client,
	c cache.Cache,
	audit AuditService,
) ProgressService {
	return &progressService{
		db:                 db,
		log:                baseLog.With("service", "ProgressService"),
		videoProgressRepo:  videoProgressRepo,
		courseProgressRepo: courseProgressRepo,
		enrollmentService:  enrollmentService,
		catalogClient:      catalogClient,
		cache:              c,
		audit:              audit,
		now:                time.Now,
	}
}

// requireStudentRole reads the role claim from the request identity. An
// absent role is assumed to be Student; that fallback is an explicit,
// logged policy for the progress read/write paths only (the enrollment
// paths demand positive proof instead).
func (s *progressService) requireStudentRole(ctx context.Context, userID string) error {
	role := ""
	if rd := requestdata.GetRequestData(ctx); rd != nil {
		role = rd.Role
	}
	if role == "" {
		s.log.Warn("no role claim on request, assuming student", "user_id", userID)
		role = identity.RoleStudent
	}
	if role != identity.RoleStudent {
		return apperr.Authorization("not_a_student", "only students can access progress")
	}
	return nil
}

func clampPercentage(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func (s *progressService) UpdateVideoProgress(ctx context.Context, userID, videoID string, req types.UpdateVideoProgressRequest) (*types.VideoProgressDTO, error) {
	if userID == "" || videoID == "" {
		return nil, apperr.Validation("invalid_request", "userId and videoId are required")
	}
	if req.CurrentTimeSeconds < 0 {
		return nil, apperr.Validation("invalid_position", "currentTimeSeconds must be >= 0")
	}
	if err := s.requireStudentRole(ctx, userID); err != nil {
		return nil, err
	}

	video, err := s.catalogClient.GetVideo(ctx, videoID)
	if err != nil {
		return nil, apperr.Upstream("catalog_unavailable", err)
	}
	if video == nil {
		// Persisted completion math must never run against fabricated
		// metadata, so an unknown video fails the update.
		return nil, apperr.NotFound("video_not_found", "video %s not found in catalog", videoID)
	}

	unlock := s.userLocks.Lock(userID)
	defer unlock()

	var row *types.VideoProgress
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = s.videoProgressRepo.GetByUserAndVideo(ctx, tx, userID, videoID)
		if err != nil {
			return err
		}
		if row == nil {
			row = &types.VideoProgress{UserID: userID, VideoID: videoID}
		}

		row.CurrentTimeSeconds = req.CurrentTimeSeconds
		pct := 0.0
		if video.DurationSeconds > 0 {
			pct = clampPercentage(float64(req.CurrentTimeSeconds) / float64(video.DurationSeconds) * 100)
		}
		row.CompletionPercentage = pct
		row.IsCompleted = req.MarkAsCompleted || pct >= completionThreshold
		row.LastWatched = s.now().UTC()

		if err := s.videoProgressRepo.Save(ctx, tx, row); err != nil {
			return err
		}

		if err := s.recomputeCourseProgress(ctx, tx, userID, video.CourseID); err != nil {
			return err
		}

		s.audit.Log(ctx, tx, userID, "VideoProgressUpdated", "VideoId: "+videoID)
		s.cache.Delete(ctx, cache.KeyProgressSummary(userID))
		return nil
	})
	if err != nil {
		s.log.Error("video progress update failed", "user_id", userID, "video_id", videoID, "error", err)
		return nil, fmt.Errorf("update video progress for user %s, video %s: %w", userID, videoID, err)
	}

	return &types.VideoProgressDTO{
		ID:                   row.ID,
		VideoID:              videoID,
		VideoTitle:           video.Title,
		CurrentTimeSeconds:   row.CurrentTimeSeconds,
		CompletionPercentage: row.CompletionPercentage,
		IsCompleted:          row.IsCompleted,
		LastWatched:          row.LastWatched,
	}, nil
}

func (s *progressService) UpdateVideoProgressBulk(ctx context.Context, userID string, items []types.BulkVideoProgressItem) ([]*types.VideoProgressDTO, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("empty_bulk", "bulk update requires at least one item")
	}

	results := make([]*types.VideoProgressDTO, 0, len(items))
	for _, item := range items {
		dto, err := s.UpdateVideoProgress(ctx, userID, item.VideoID, types.UpdateVideoProgressRequest{
			CurrentTimeSeconds:   item.CurrentTimeSeconds,
			TotalDurationSeconds: item.TotalDurationSeconds,
			MarkAsCompleted:      item.MarkAsCompleted,
		})
		if err != nil {
			return nil, fmt.Errorf("bulk update aborted at video %s: %w", item.VideoID, err)
		}
		results = append(results, dto)
	}
	return results, nil
}

// recomputeCourseProgress rebuilds the (user, course) rollup snapshot by
// re-enumerating the catalog's sections and videos. No incremental deltas:
// correctness must not depend on prior update order.
func (s *progressService) recomputeCourseProgress(ctx context.Context, tx *gorm.DB, userID, courseID string) error {
	sections, err := s.catalogClient.GetSections(ctx, courseID)
	if err != nil {
		return apperr.Upstream("catalog_unavailable", err)
	}

	totalVideos := 0
	completedVideos := 0
	totalWatchTime := 0.0

	for _, section := range sections {
		videos, err := s.catalogClient.GetVideos(ctx, section.ID)
		if err != nil {
			return apperr.Upstream("catalog_unavailable", err)
		}
		totalVideos += len(videos)

		videoIDs := make([]string, 0, len(videos))
		for _, v := range videos {
			videoIDs = append(videoIDs, v.ID)
		}
		rows, err := s.videoProgressRepo.GetByUserAndVideoIDs(ctx, tx, userID, videoIDs)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.IsCompleted {
				completedVideos++
			}
			totalWatchTime += float64(row.CurrentTimeSeconds)
		}
	}

	courseProgress, err := s.courseProgressRepo.GetByUserAndCourse(ctx, tx, userID, courseID)
	if err != nil {
		return err
	}
	if courseProgress == nil {
		courseProgress = &types.CourseProgress{UserID: userID, CourseID: courseID}
	}

	courseProgress.CompletedVideos = completedVideos
	courseProgress.TotalVideos = totalVideos
	if totalVideos > 0 {
		courseProgress.CompletionPercentage = float64(completedVideos) / float64(totalVideos) * 100
	} else {
		courseProgress.CompletionPercentage = 0
	}
	courseProgress.TotalWatchTimeSeconds = totalWatchTime
	courseProgress.LastAccessed = s.now().UTC()

	if err := s.courseProgressRepo.Save(ctx, tx, courseProgress); err != nil {
		return err
	}
	s.audit.Log(ctx, tx, userID, "CourseProgressUpdated", "CourseId: "+courseID)
	return nil
}

func (s *progressService) GetProgressSummary(ctx context.Context, userID string) (*types.ProgressSummary, error) {
	key := cache.KeyProgressSummary(userID)
	var cached types.ProgressSummary
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	result, err, _ := s.summaryGroup.Do(userID, func() (interface{}, error) {
		return s.buildProgressSummary(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*types.ProgressSummary), nil
}

func (s *progressService) buildProgressSummary(ctx context.Context, userID string) (*types.ProgressSummary, error) {
	if err := s.requireStudentRole(ctx, userID); err != nil {
		return nil, err
	}

	// The summary survives a ledger outage: the count degrades to zero
	// rather than failing the whole read.
	totalEnrolled, err := s.enrollmentService.GetTotalEnrolledCourses(ctx, userID)
	if err != nil {
		s.log.Warn("enrolled course count unavailable, degrading to 0", "user_id", userID, "error", err)
		totalEnrolled = 0
	}

	courseProgresses, err := s.courseProgressRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load course progress for user %s: %w", userID, err)
	}

	completedCourses := 0
	for _, cp := range courseProgresses {
		if cp.CompletionPercentage >= completionThreshold {
			completedCourses++
		}
	}

	totalVideosWatched, err := s.videoProgressRepo.CountCompletedByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("count completed videos for user %s: %w", userID, err)
	}
	totalWatchSeconds, err := s.videoProgressRepo.SumWatchTimeByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("sum watch time for user %s: %w", userID, err)
	}

	recent, err := s.courseProgressRepo.GetRecentByUserID(ctx, nil, userID, recentCourseLimit)
	if err != nil {
		return nil, fmt.Errorf("load recent courses for user %s: %w", userID, err)
	}

	recentCourses := make([]types.CourseProgressDTO, 0, len(recent))
	for _, cp := range recent {
		title := "Course " + cp.CourseID
		course, err := s.catalogClient.GetCourse(ctx, cp.CourseID)
		if err != nil {
			s.log.Warn("course title unavailable, using placeholder", "course_id", cp.CourseID, "error", err)
		} else if course != nil {
			title = course.Title
		}
		recentCourses = append(recentCourses, types.CourseProgressDTO{
			ID:                    cp.ID,
			CourseID:              cp.CourseID,
			CourseTitle:           title,
			CompletedVideos:       cp.CompletedVideos,
			TotalVideos:           cp.TotalVideos,
			CompletionPercentage:  cp.CompletionPercentage,
			TotalWatchTimeSeconds: cp.TotalWatchTimeSeconds,
			LastAccessed:          cp.LastAccessed,
		})
	}

	summary := &types.ProgressSummary{
		UserID:               userID,
		TotalCoursesEnrolled: totalEnrolled,
		CompletedCourses:     completedCourses,
		TotalVideosWatched:   int(totalVideosWatched),
		TotalWatchTimeHours:  totalWatchSeconds / 3600.0,
		RecentCourses:        recentCourses,
	}

	s.cache.SetJSON(ctx, cache.KeyProgressSummary(userID), summary, cache.TTLSummary)
	s.audit.Log(ctx, nil, userID, "ProgressSummaryFetched", fmt.Sprintf("CoursesEnrolled: %d", totalEnrolled))
	return summary, nil
}
