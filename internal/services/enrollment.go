package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/edubridge/progress-backend/internal/cache"
	"github.com/edubridge/progress-backend/internal/clients/catalog"
	"github.com/edubridge/progress-backend/internal/clients/identity"
	"github.com/edubridge/progress-backend/internal/clients/ledger"
	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/pkg/apperr"
	"github.com/edubridge/progress-backend/internal/repos"
	"github.com/edubridge/progress-backend/internal/types"
)

// EnrollmentService owns the Enrollment lifecycle. Local rows converge to
// the external ledger through two paths that share one state machine: the
// full pull sync and the per-event webhook.
type EnrollmentService interface {
	SyncEnrollments(ctx context.Context, userID string) error
	GetTotalEnrolledCourses(ctx context.Context, userID string) (int, error)
	HandleEnrollmentWebhook(ctx context.Context, event types.EnrollmentWebhookEvent) error
}

type enrollmentService struct {
	db             *gorm.DB
	log            *logger.Logger
	enrollmentRepo repos.EnrollmentRepo
	identityClient identity.Client
	catalogClient  catalog.Client
	ledgerClient   ledger.Client
	cache          cache.Cache
	audit          AuditService
	now            func() time.Time
}

func NewEnrollmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	enrollmentRepo repos.EnrollmentRepo,
	identityClient identity.Client,
	catalogClient catalog.Client,
	ledgerClient ledger.Client,
	c cache.Cache,
	audit AuditService,
) EnrollmentService {
	return &enrollmentService{
		db:             db,
		log:            baseLog.With("service", "EnrollmentService"),
		enrollmentRepo: enrollmentRepo,
		identityClient: identityClient,
		catalogClient:  catalogClient,
		ledgerClient:   ledgerClient,
		cache:          c,
		audit:          audit,
		now:            time.Now,
	}
}

// requireStudent resolves the user's role positively via the identity
// collaborator. Resolver failure is an authorization error here: enrollment
// state must never change for a caller whose role could not be proven.
func (s *enrollmentService) requireStudent(ctx context.Context, userID string) error {
	profile, err := s.identityClient.GetUserProfile(ctx, userID)
	if err != nil {
		return apperr.New(apperr.KindAuthorization, "role_unresolved", fmt.Errorf("resolve role for user %s: %w", userID, err))
	}
	if profile == nil || profile.Role != identity.RoleStudent {
		return apperr.Authorization("not_a_student", "only students can have enrollments")
	}
	return nil
}

func (s *enrollmentService) SyncEnrollments(ctx context.Context, userID string) error {
	if err := s.requireStudent(ctx, userID); err != nil {
		return err
	}

	externalIDs, err := s.ledgerClient.GetEnrolledCourseIDs(ctx, userID)
	if err != nil {
		s.log.Error("failed to fetch ledger enrollments", "user_id", userID, "error", err)
		return apperr.Upstream("ledger_unavailable", err)
	}

	// Ids the catalog no longer knows are dropped from consideration, not
	// treated as failures.
	validIDs := make([]string, 0, len(externalIDs))
	for _, courseID := range externalIDs {
		course, err := s.catalogClient.GetCourse(ctx, courseID)
		if err != nil {
			s.log.Warn("could not validate course against catalog, skipping", "course_id", courseID, "user_id", userID, "error", err)
			continue
		}
		if course == nil {
			s.log.Warn("ledger references unknown course, skipping", "course_id", courseID, "user_id", userID)
			continue
		}
		validIDs = append(validIDs, courseID)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.enrollmentRepo.GetByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}

		validSet := make(map[string]struct{}, len(validIDs))
		for _, id := range validIDs {
			validSet[id] = struct{}{}
		}
		existingSet := make(map[string]struct{}, len(existing))
		for _, e := range existing {
			existingSet[e.CourseID] = struct{}{}
		}

		for _, courseID := range validIDs {
			if _, ok := existingSet[courseID]; ok {
				continue
			}
			row := &types.Enrollment{
				UserID:         userID,
				CourseID:       courseID,
				EnrollmentDate: s.now().UTC(),
				Status:         types.EnrollmentActive,
			}
			if err := s.enrollmentRepo.Create(ctx, tx, row); err != nil {
				return err
			}
		}

		for _, e := range existing {
			if e.Status != types.EnrollmentActive {
				continue
			}
			if _, ok := validSet[e.CourseID]; ok {
				continue
			}
			e.Status = types.EnrollmentDropped
			if err := s.enrollmentRepo.Save(ctx, tx, e); err != nil {
				return err
			}
		}

		s.cache.Delete(ctx, cache.KeyEnrolledCount(userID))
		s.audit.LogWithMetadata(ctx, tx, userID, "EnrollmentsSynced",
			"Courses: "+strings.Join(validIDs, ","),
			map[string]interface{}{"courseIds": validIDs})
		return nil
	})
	if err != nil {
		s.log.Error("enrollment sync failed", "user_id", userID, "error", err)
		return fmt.Errorf("sync enrollments for user %s: %w", userID, err)
	}
	return nil
}

func (s *enrollmentService) GetTotalEnrolledCourses(ctx context.Context, userID string) (int, error) {
	key := cache.KeyEnrolledCount(userID)
	var cached int
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	if err := s.SyncEnrollments(ctx, userID); err != nil {
		return 0, err
	}

	count, err := s.enrollmentRepo.CountActiveByUserID(ctx, nil, userID)
	if err != nil {
		return 0, fmt.Errorf("count active enrollments for user %s: %w", userID, err)
	}

	s.cache.SetJSON(ctx, key, int(count), cache.TTLCount)
	return int(count), nil
}

func (s *enrollmentService) HandleEnrollmentWebhook(ctx context.Context, event types.EnrollmentWebhookEvent) error {
	if event.UserID == "" || event.CourseID == "" || event.Action == "" {
		return apperr.Validation("invalid_webhook", "webhook requires userId, courseId and action")
	}

	if err := s.requireStudent(ctx, event.UserID); err != nil {
		return err
	}

	course, err := s.catalogClient.GetCourse(ctx, event.CourseID)
	if err != nil {
		return apperr.Upstream("catalog_unavailable", err)
	}
	if course == nil {
		return apperr.NotFound("course_not_found", "course %s not found", event.CourseID)
	}

	action := strings.ToLower(event.Action)
	if action != "enroll" && action != "drop" {
		return apperr.Conflict("unsupported_action", "unsupported action: %s", event.Action)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		enrollment, err := s.enrollmentRepo.GetByUserAndCourse(ctx, tx, event.UserID, event.CourseID)
		if err != nil {
			return err
		}

		changed := false
		switch action {
		case "enroll":
			if enrollment == nil {
				row := &types.Enrollment{
					UserID:         event.UserID,
					CourseID:       event.CourseID,
					EnrollmentDate: s.now().UTC(),
					Status:         types.EnrollmentActive,
				}
				if err := s.enrollmentRepo.Create(ctx, tx, row); err != nil {
					return err
				}
				changed = true
			} else if enrollment.Status != types.EnrollmentActive {
				enrollment.Status = types.EnrollmentActive
				enrollment.EnrollmentDate = s.now().UTC()
				if err := s.enrollmentRepo.Save(ctx, tx, enrollment); err != nil {
					return err
				}
				changed = true
			}
		case "drop":
			if enrollment != nil && enrollment.Status == types.EnrollmentActive {
				enrollment.Status = types.EnrollmentDropped
				if err := s.enrollmentRepo.Save(ctx, tx, enrollment); err != nil {
					return err
				}
				changed = true
			}
		}

		if changed {
			s.cache.Delete(ctx, cache.KeyEnrolledCount(event.UserID))
			s.audit.LogWithMetadata(ctx, tx, event.UserID, "EnrollmentWebhookProcessed",
				fmt.Sprintf("CourseId: %s, Action: %s", event.CourseID, action),
				map[string]interface{}{"courseId": event.CourseID, "action": action})
		}
		return nil
	})
	if err != nil {
		s.log.Error("enrollment webhook failed", "user_id", event.UserID, "course_id", event.CourseID, "action", action, "error", err)
		return fmt.Errorf("process enrollment webhook: %w", err)
	}
	return nil
}
