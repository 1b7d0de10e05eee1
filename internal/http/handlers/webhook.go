package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edubridge/progress-backend/internal/clients/catalog"
	"github.com/edubridge/progress-backend/internal/http/response"
	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/services"
	"github.com/edubridge/progress-backend/internal/types"
)

type WebhookHandler struct {
	log               *logger.Logger
	enrollmentService services.EnrollmentService
	catalogClient     catalog.Client
}

func NewWebhookHandler(log *logger.Logger, enrollmentService services.EnrollmentService, catalogClient catalog.Client) *WebhookHandler {
	return &WebhookHandler{
		log:               log.With("handler", "WebhookHandler"),
		enrollmentService: enrollmentService,
		catalogClient:     catalogClient,
	}
}

// EnrollmentUpdated handles POST /api/v1/progress/webhook/enrollment-updated.
func (h *WebhookHandler) EnrollmentUpdated(c *gin.Context) {
	var event types.EnrollmentWebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.enrollmentService.HandleEnrollmentWebhook(c.Request.Context(), event); err != nil {
		h.log.Error("enrollment webhook failed",
			"user_id", event.UserID, "course_id", event.CourseID, "action", event.Action, "error", err)
		response.RespondAppError(c, "enrollment_webhook_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "processed"})
}

// CourseUpdated handles POST /api/v1/progress/webhook/course-updated.
// Catalog payloads are cached aggressively, so edits push an invalidation.
func (h *WebhookHandler) CourseUpdated(c *gin.Context) {
	var event types.CatalogWebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if event.ID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_id", nil)
		return
	}

	h.catalogClient.InvalidateCourse(c.Request.Context(), event.ID)
	h.log.Info("course cache invalidated", "course_id", event.ID)
	response.RespondOK(c, gin.H{"status": "invalidated"})
}

// VideoUpdated handles POST /api/v1/progress/webhook/video-updated.
func (h *WebhookHandler) VideoUpdated(c *gin.Context) {
	var event types.CatalogWebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if event.ID == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_id", nil)
		return
	}

	h.catalogClient.InvalidateVideo(c.Request.Context(), event.ID)
	h.log.Info("video cache invalidated", "video_id", event.ID)
	response.RespondOK(c, gin.H{"status": "invalidated"})
}
