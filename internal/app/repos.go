package app

import (
	"gorm.io/gorm"

	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/repos"
)

type Repos struct {
	VideoProgress  repos.VideoProgressRepo
	CourseProgress repos.CourseProgressRepo
	Enrollment     repos.EnrollmentRepo
	AuditLog       repos.AuditLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		VideoProgress:  repos.NewVideoProgressRepo(db, log),
		CourseProgress: repos.NewCourseProgressRepo(db, log),
		Enrollment:     repos.NewEnrollmentRepo(db, log),
		AuditLog:       repos.NewAuditLogRepo(db, log),
	}
}
