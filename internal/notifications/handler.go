package notifications

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sangam-association/backend/internal/middleware"
	"github.com/sangam-association/backend/pkg/response"
)

// Handler handles notification feed HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a notifications handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /notifications. Returns the caller's feed plus the
// unread count.
func (h *Handler) List(c *gin.Context) {
	userID := middleware.MemberID(c)
	limit, _ := strconv.Atoi(c.Query("limit"))

	list, err := h.repo.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("list notifications failed", zap.Error(err), zap.Int64("user_id", userID))
		response.Internal(c, "failed to list notifications")
		return
	}
	unread, err := h.repo.CountUnread(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("count unread failed", zap.Error(err), zap.Int64("user_id", userID))
		response.Internal(c, "failed to list notifications")
		return
	}
	response.OK(c, gin.H{"notifications": list, "unread": unread})
}

// MarkRead handles POST /notifications/:id/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid notification id")
		return
	}
	userID := middleware.MemberID(c)
	ok, err := h.repo.MarkRead(c.Request.Context(), id, userID)
	if err != nil {
		h.logger.Error("mark read failed", zap.Error(err), zap.Int64("id", id))
		response.Internal(c, "failed to mark notification read")
		return
	}
	if !ok {
		response.NotFound(c, "notification not found")
		return
	}
	response.NoContent(c)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *Handler) MarkAllRead(c *gin.Context) {
	userID := middleware.MemberID(c)
	if err := h.repo.MarkAllRead(c.Request.Context(), userID); err != nil {
		h.logger.Error("mark all read failed", zap.Error(err), zap.Int64("user_id", userID))
		response.Internal(c, "failed to mark notifications read")
		return
	}
	response.NoContent(c)
}
