package registrations

import (
	"bytes"
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sangam-association/backend/internal/events"
	"github.com/sangam-association/backend/internal/middleware"
	"github.com/sangam-association/backend/internal/models"
	"github.com/sangam-association/backend/pkg/response"
	"github.com/sangam-association/backend/pkg/storage"
)

// PassRenderer produces the printable visitor-pass PDF.
type PassRenderer interface {
	Render(ctx context.Context, reg *models.Registration, event *models.Event, member *models.Member, baseURL string) ([]byte, error)
}

// PassDispatcher hands a rendered pass to the notification pipeline.
// Returns a job handle (empty for the direct path).
type PassDispatcher interface {
	Dispatch(ctx context.Context, detail *models.RegistrationDetail, pdf []byte, force bool, notifierID *int64) (string, error)
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	repo       *Repository
	eventRepo  *events.Repository
	renderer   PassRenderer
	dispatcher PassDispatcher
	archive    *storage.S3 // nil disables pass archiving
	baseURL    string
	logger     *zap.Logger
}

// NewHandler creates a registrations handler. archive may be nil; rendered
// passes then travel inline with delivery jobs instead of being stored.
func NewHandler(repo *Repository, eventRepo *events.Repository, renderer PassRenderer, dispatcher PassDispatcher, archive *storage.S3, baseURL string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, eventRepo: eventRepo, renderer: renderer, dispatcher: dispatcher, archive: archive, baseURL: baseURL, logger: logger}
}

// RegisterRequest is the body for POST /events/:id/register.
type RegisterRequest struct {
	Notes string `json:"notes"`
}

// Register handles POST /events/:id/register. Creates (or reactivates) the
// caller's registration and queues pass delivery in the background.
func (h *Handler) Register(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, err := h.eventRepo.GetByID(c.Request.Context(), eventID)
	if err != nil || event == nil {
		response.NotFound(c, "event not found")
		return
	}
	var req RegisterRequest
	_ = c.ShouldBindJSON(&req) // body optional

	memberID := middleware.MemberID(c)
	reg, err := h.repo.Register(c.Request.Context(), eventID, memberID, req.Notes)
	if err != nil {
		h.logger.Error("register failed", zap.Error(err), zap.Int64("event_id", eventID), zap.Int64("member_id", memberID))
		response.Internal(c, "failed to register")
		return
	}
	if !event.IsPaid && reg.PaymentStatus == models.PaymentPending {
		if err := h.repo.MarkPaid(c.Request.Context(), reg.ID, 0, "", ""); err != nil {
			h.logger.Warn("mark free event paid failed", zap.Error(err), zap.Int64("registration_id", reg.ID))
		} else {
			reg.PaymentStatus = models.PaymentPaid
		}
	}

	jobID, _ := h.deliverPass(c.Request.Context(), reg.ID, false, nil)
	response.Created(c, gin.H{"registration": reg, "pass_job_id": jobID})
}

// deliverPass renders and dispatches the pass for a registration. Best
// effort: a delivery problem never fails the registration itself. The job
// ID is empty on the direct transport even when delivery succeeded.
func (h *Handler) deliverPass(ctx context.Context, regID int64, force bool, notifierID *int64) (string, bool) {
	detail, err := h.repo.GetDetail(ctx, regID)
	if err != nil || detail == nil {
		h.logger.Error("load registration for pass delivery failed", zap.Error(err), zap.Int64("registration_id", regID))
		return "", false
	}
	pdf, err := h.renderer.Render(ctx, &detail.Registration, &detail.Event, &detail.Member, h.baseURL)
	if err != nil {
		h.logger.Error("render pass failed", zap.Error(err), zap.Int64("registration_id", regID))
		return "", false
	}
	h.archivePass(ctx, detail, pdf)
	jobID, err := h.dispatcher.Dispatch(ctx, detail, pdf, force, notifierID)
	if err != nil {
		h.logger.Error("dispatch pass failed", zap.Error(err), zap.Int64("registration_id", regID))
		return "", false
	}
	return jobID, true
}

// archivePass stores the rendered PDF in the passes bucket and records its
// key, so a queued delivery job can re-fetch it and support staff can pull
// the exact document a member received. Best effort.
func (h *Handler) archivePass(ctx context.Context, detail *models.RegistrationDetail, pdf []byte) {
	if h.archive == nil {
		return
	}
	regID := detail.Registration.ID
	key := storage.PassKey(strconv.FormatInt(detail.Event.ID, 10), strconv.FormatInt(regID, 10))
	if _, err := h.archive.Upload(ctx, h.archive.PassesBucket(), key, "application/pdf", bytes.NewReader(pdf)); err != nil {
		h.logger.Warn("archive pass failed", zap.Error(err), zap.Int64("registration_id", regID))
		return
	}
	if err := h.repo.SetPassKey(ctx, regID, key); err != nil {
		h.logger.Warn("record pass key failed", zap.Error(err), zap.Int64("registration_id", regID))
		return
	}
	detail.Registration.PassKey = &key
}

// GetPass handles GET /registrations/:id/pass. Renders the pass PDF inline.
func (h *Handler) GetPass(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	detail, err := h.repo.GetDetail(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load registration")
		return
	}
	if detail == nil {
		response.NotFound(c, "registration not found")
		return
	}
	if role, _ := c.Get(middleware.ContextMemberRole); role != models.RoleAdmin && detail.Member.ID != middleware.MemberID(c) {
		response.Forbidden(c, "not your registration")
		return
	}
	pdf, err := h.renderer.Render(c.Request.Context(), &detail.Registration, &detail.Event, &detail.Member, h.baseURL)
	if err != nil {
		h.logger.Error("render pass failed", zap.Error(err), zap.Int64("registration_id", id))
		response.Internal(c, "failed to render pass")
		return
	}
	c.Header("Content-Disposition", `inline; filename="visitor-pass.pdf"`)
	c.Data(200, "application/pdf", pdf)
}

// Cancel handles POST /registrations/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load registration")
		return
	}
	if reg == nil {
		response.NotFound(c, "registration not found")
		return
	}
	if role, _ := c.Get(middleware.ContextMemberRole); role != models.RoleAdmin && reg.MemberID != middleware.MemberID(c) {
		response.Forbidden(c, "not your registration")
		return
	}
	ok, err := h.repo.Cancel(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("cancel failed", zap.Error(err), zap.Int64("registration_id", id))
		response.Internal(c, "failed to cancel")
		return
	}
	if !ok {
		response.Conflict(c, "registration is not in a cancellable state")
		return
	}
	response.OK(c, gin.H{"cancelled": true})
}

// ResendPass handles POST /registrations/:id/resend-pass (admin). Forces a
// fresh delivery even when the pass was already sent.
func (h *Handler) ResendPass(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	notifierID := middleware.MemberID(c)
	jobID, ok := h.deliverPass(c.Request.Context(), id, true, &notifierID)
	if !ok {
		response.Internal(c, "failed to resend pass")
		return
	}
	response.OK(c, gin.H{"pass_job_id": jobID})
}

// PaymentRequest is the body for POST /registrations/:id/payment (admin).
type PaymentRequest struct {
	AmountPaise   int64  `json:"amount_paise" binding:"required"`
	PaymentOrderID string `json:"payment_order_id"`
	PaymentID      string `json:"payment_id"`
	CashReceipt    string `json:"cash_receipt_number"`
}

// RecordPayment handles POST /registrations/:id/payment (admin). Records an
// online confirmation or a manual cash receipt.
func (h *Handler) RecordPayment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "amount_paise required")
		return
	}
	if req.CashReceipt != "" {
		err = h.repo.RecordCashReceipt(c.Request.Context(), id, req.AmountPaise, req.CashReceipt)
	} else {
		err = h.repo.MarkPaid(c.Request.Context(), id, req.AmountPaise, req.PaymentOrderID, req.PaymentID)
	}
	if err != nil {
		h.logger.Error("record payment failed", zap.Error(err), zap.Int64("registration_id", id))
		response.Internal(c, "failed to record payment")
		return
	}
	response.OK(c, gin.H{"recorded": true})
}

// Refund handles POST /registrations/:id/refund (admin).
func (h *Handler) Refund(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	if err := h.repo.Refund(c.Request.Context(), id); err != nil {
		h.logger.Error("refund failed", zap.Error(err), zap.Int64("registration_id", id))
		response.Internal(c, "failed to refund")
		return
	}
	response.OK(c, gin.H{"refunded": true})
}

// BulkRegisterRequest is the body for POST /events/:id/bulk-register (admin).
type BulkRegisterRequest struct {
	MemberIDs []int64 `json:"member_ids" binding:"required,min=1"`
}

// BulkRegister handles POST /events/:id/bulk-register (admin). Registers a
// batch of members, reactivating cancelled rows, and queues their passes.
func (h *Handler) BulkRegister(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req BulkRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "member_ids required")
		return
	}
	regs, err := h.repo.BulkRegister(c.Request.Context(), eventID, req.MemberIDs)
	if err != nil {
		h.logger.Error("bulk register failed", zap.Error(err), zap.Int64("event_id", eventID))
		response.Internal(c, "failed to bulk register")
		return
	}
	notifierID := middleware.MemberID(c)
	for _, reg := range regs {
		_, _ = h.deliverPass(c.Request.Context(), reg.ID, false, &notifierID)
	}
	response.OK(c, gin.H{"registrations": regs})
}

// ListByEvent handles GET /events/:id/registrations (admin). Supports ?status= filter.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	status := models.RegistrationStatus(c.Query("status"))
	list, err := h.repo.ListByEvent(c.Request.Context(), eventID, status)
	if err != nil {
		response.Internal(c, "failed to list registrations")
		return
	}
	total, attended, cancelled, err := h.repo.CountByEvent(c.Request.Context(), eventID)
	if err != nil {
		response.Internal(c, "failed to count registrations")
		return
	}
	response.OK(c, gin.H{
		"registrations": list,
		"total":         total,
		"attended":      attended,
		"cancelled":     cancelled,
	})
}

// ListMine handles GET /registrations/mine.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.repo.ListByMember(c.Request.Context(), middleware.MemberID(c))
	if err != nil {
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}
