package checkin

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sangam-association/backend/pkg/response"
)

// Announcer receives successful check-ins (the live gate dashboard feed).
type Announcer interface {
	AnnounceCheckIn(result *Result)
}

// Handler handles the gate scan endpoint.
type Handler struct {
	service   *Service
	announcer Announcer
	logger    *zap.Logger
}

// NewHandler creates a check-in handler. announcer may be nil.
func NewHandler(service *Service, announcer Announcer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, announcer: announcer, logger: logger}
}

// ScanRequest is the body for POST /checkin.
type ScanRequest struct {
	QRToken string `json:"qr_token" binding:"required"`
}

// Scan handles POST /checkin (gate staff). Returns the member/event context
// on success or the structured refusal reason; gate staff need to see why a
// scan was refused.
func (h *Handler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "qr_token required")
		return
	}
	result, err := h.service.CheckIn(c.Request.Context(), req.QRToken)
	if err != nil {
		h.logger.Error("check-in failed", zap.Error(err))
		response.Internal(c, "check-in failed")
		return
	}
	if !result.Success {
		switch result.Reason {
		case ReasonNotFound:
			response.NotFound(c, string(result.Reason))
		case ReasonCancelled, ReasonAlreadyAttended:
			response.Conflict(c, string(result.Reason))
		default:
			response.BadRequest(c, string(ReasonInvalidToken))
		}
		return
	}
	if h.announcer != nil {
		h.announcer.AnnounceCheckIn(result)
	}
	response.OK(c, result)
}
