package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edubridge/progress-backend/internal/http/response"
	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/requestdata"
	"github.com/edubridge/progress-backend/internal/services"
	"github.com/edubridge/progress-backend/internal/types"
)

type ProgressHandler struct {
	log             *logger.Logger
	progressService services.ProgressService
}

func NewProgressHandler(log *logger.Logger, progressService services.ProgressService) *ProgressHandler {
	return &ProgressHandler{
		log:             log.With("handler", "ProgressHandler"),
		progressService: progressService,
	}
}

// UpdateVideoProgress handles POST /api/v1/progress/video/:userId/:videoId.
func (h *ProgressHandler) UpdateVideoProgress(c *gin.Context) {
	userID := c.Param("userId")
	videoID := c.Param("videoId")

	var req types.UpdateVideoProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	dto, err := h.progressService.UpdateVideoProgress(c.Request.Context(), userID, videoID, req)
	if err != nil {
		h.log.Error("UpdateVideoProgress failed", "user_id", userID, "video_id", videoID, "error", err)
		response.RespondAppError(c, "update_video_progress_failed", err)
		return
	}
	response.RespondOK(c, dto)
}

// UpdateVideoProgressBulk handles POST /api/v1/progress/video/:userId/bulk.
func (h *ProgressHandler) UpdateVideoProgressBulk(c *gin.Context) {
	userID := c.Param("userId")

	var req types.BulkUpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	dtos, err := h.progressService.UpdateVideoProgressBulk(c.Request.Context(), userID, req.VideoProgresses)
	if err != nil {
		h.log.Error("UpdateVideoProgressBulk failed", "user_id", userID, "error", err)
		response.RespondAppError(c, "bulk_update_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"video_progresses": dtos})
}

// GetProgressSummary handles GET /api/v1/progress/summary/:userId.
func (h *ProgressHandler) GetProgressSummary(c *gin.Context) {
	userID := c.Param("userId")

	summary, err := h.progressService.GetProgressSummary(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("GetProgressSummary failed", "user_id", userID, "error", err)
		response.RespondAppError(c, "progress_summary_failed", err)
		return
	}
	response.RespondOK(c, summary)
}

// GetCurrentUser handles GET /api/v1/progress/user.
func (h *ProgressHandler) GetCurrentUser(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == "" {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	response.RespondOK(c, gin.H{"user_id": rd.UserID, "role": rd.Role})
}
