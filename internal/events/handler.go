package events

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sangam-association/backend/internal/middleware"
	"github.com/sangam-association/backend/internal/models"
	"github.com/sangam-association/backend/pkg/response"
)

// Handler handles event HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateRequest is the body for POST /events (admin).
type CreateRequest struct {
	Title          string     `json:"title" binding:"required"`
	Description    string     `json:"description"`
	VenueName      string     `json:"venue_name"`
	StartsAt       time.Time  `json:"starts_at" binding:"required"`
	EndsAt         *time.Time `json:"ends_at"`
	IsPaid         bool       `json:"is_paid"`
	FeeAmountPaise int64      `json:"fee_amount_paise"`
	FeeCurrency    string     `json:"fee_currency"`
}

// Create handles POST /events (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.FeeCurrency == "" {
		req.FeeCurrency = "INR"
	}
	e := &models.Event{
		Title:          req.Title,
		Description:    req.Description,
		VenueName:      req.VenueName,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		IsPaid:         req.IsPaid,
		FeeAmountPaise: req.FeeAmountPaise,
		FeeCurrency:    req.FeeCurrency,
		CreatedBy:      middleware.MemberID(c),
	}
	if err := h.repo.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// List handles GET /events. Supports ?upcoming=true.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), c.Query("upcoming") == "true")
	if err != nil {
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /events/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /events/:id (admin).
func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load event")
		return
	}
	if e == nil {
		response.NotFound(c, "event not found")
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e.Title = req.Title
	e.Description = req.Description
	e.VenueName = req.VenueName
	e.StartsAt = req.StartsAt
	e.EndsAt = req.EndsAt
	e.IsPaid = req.IsPaid
	e.FeeAmountPaise = req.FeeAmountPaise
	if req.FeeCurrency != "" {
		e.FeeCurrency = req.FeeCurrency
	}
	if err := h.repo.Update(c.Request.Context(), e); err != nil {
		h.logger.Error("update event failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, e)
}
