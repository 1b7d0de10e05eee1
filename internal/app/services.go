package app

import (
	"gorm.io/gorm"

	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/services"
)

type Services struct {
	Audit      services.AuditService
	Enrollment services.EnrollmentService
	Progress   services.ProgressService
}

func wireServices(db *gorm.DB, log *logger.Logger, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	auditService := services.NewAuditService(log, reposet.AuditLog)

	enrollmentService := services.NewEnrollmentService(
		db, log,
		reposet.Enrollment,
		clients.Identity,
		clients.Catalog,
		clients.Ledger,
		clients.Cache,
		auditService,
	)

	progressService := services.NewProgressService(
		db, log,
		reposet.VideoProgress,
		reposet.CourseProgress,
		enrollmentService,
		clients.Catalog,
		clients.Cache,
		auditService,
	)

	return Services{
		Audit:      auditService,
		Enrollment: enrollmentService,
		Progress:   progressService,
	}
}
