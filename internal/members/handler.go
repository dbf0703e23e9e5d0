package members

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sangam-association/backend/internal/middleware"
	"github.com/sangam-association/backend/internal/models"
	"github.com/sangam-association/backend/pkg/response"
	"github.com/sangam-association/backend/pkg/storage"
)

// Handler handles member HTTP endpoints.
type Handler struct {
	repo   *Repository
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a members handler. s3 may be nil; photo endpoints then return 503-like errors.
func NewHandler(repo *Repository, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, s3: s3, logger: logger}
}

// CreateRequest is the body for POST /members (admin).
type CreateRequest struct {
	FullName     string `json:"full_name" binding:"required"`
	Phone        string `json:"phone" binding:"required"`
	Role         string `json:"role"`
	BusinessName string `json:"business_name"`
	City         string `json:"city"`
}

// Create handles POST /members (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	m := &models.Member{
		FullName:     req.FullName,
		Phone:        req.Phone,
		Role:         req.Role,
		BusinessName: req.BusinessName,
		City:         req.City,
	}
	if err := h.repo.Create(c.Request.Context(), m); err != nil {
		h.logger.Error("create member failed", zap.Error(err))
		response.Internal(c, "failed to create member")
		return
	}
	response.Created(c, m)
}

// List handles GET /members (admin). Supports ?q=, ?limit=, ?offset=.
func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, err := h.repo.List(c.Request.Context(), c.Query("q"), limit, offset)
	if err != nil {
		response.Internal(c, "failed to list members")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /members/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}
	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load member")
		return
	}
	if m == nil {
		response.NotFound(c, "member not found")
		return
	}
	response.OK(c, m)
}

// UpdateRequest is the body for PATCH /members/:id.
type UpdateRequest struct {
	FullName     string `json:"full_name" binding:"required"`
	BusinessName string `json:"business_name"`
	City         string `json:"city"`
}

// Update handles PATCH /members/:id (self or admin).
func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}
	if role, _ := c.Get(middleware.ContextMemberRole); role != models.RoleAdmin && id != middleware.MemberID(c) {
		response.Forbidden(c, "not your profile")
		return
	}
	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load member")
		return
	}
	if m == nil {
		response.NotFound(c, "member not found")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "full_name required")
		return
	}
	m.FullName = req.FullName
	m.BusinessName = req.BusinessName
	m.City = req.City
	if err := h.repo.Update(c.Request.Context(), m); err != nil {
		h.logger.Error("update member failed", zap.Error(err), zap.Int64("member_id", id))
		response.Internal(c, "failed to update member")
		return
	}
	response.OK(c, m)
}

// PhotoUploadURLRequest is the body for POST /members/:id/photo-upload-url.
type PhotoUploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

// GeneratePhotoUploadURL handles POST /members/:id/photo-upload-url. Returns
// a pre-signed PUT URL; the client uploads directly and the stored key is
// recorded on the member row.
func (h *Handler) GeneratePhotoUploadURL(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}
	if role, _ := c.Get(middleware.ContextMemberRole); role != models.RoleAdmin && id != middleware.MemberID(c) {
		response.Forbidden(c, "not your profile")
		return
	}
	if h.s3 == nil {
		response.Unavailable(c, "media storage not configured")
		return
	}
	var req PhotoUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "filename required")
		return
	}
	if !storage.ValidatePhotoFileType(req.ContentType, req.Filename) {
		response.BadRequest(c, "unsupported photo type")
		return
	}
	key := storage.PhotoKey(strconv.FormatInt(id, 10), uuid.New().String()+"-"+req.Filename)
	url, err := h.s3.GeneratePresignedUploadURL(c.Request.Context(), h.s3.MediaBucket(), key, req.ContentType, h.s3.PresignExpire())
	if err != nil {
		h.logger.Error("presign photo upload failed", zap.Error(err), zap.Int64("member_id", id))
		response.Internal(c, "failed to generate upload url")
		return
	}
	if err := h.repo.SetPhotoKey(c.Request.Context(), id, key); err != nil {
		h.logger.Error("set photo key failed", zap.Error(err), zap.Int64("member_id", id))
		response.Internal(c, "failed to record photo")
		return
	}
	response.OK(c, gin.H{"upload_url": url, "photo_key": key})
}

// Delete handles DELETE /members/:id (admin). Soft delete.
func (h *Handler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid member id")
		return
	}
	if err := h.repo.SoftDelete(c.Request.Context(), id); err != nil {
		h.logger.Error("delete member failed", zap.Error(err), zap.Int64("member_id", id))
		response.Internal(c, "failed to delete member")
		return
	}
	response.NoContent(c)
}
