package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sangam-association/backend/pkg/response"
)

// TextSender delivers the OTP text message (WhatsApp in production).
type TextSender interface {
	SendText(ctx context.Context, phone, text string) error
}

// Handler handles mobile OTP login endpoints.
type Handler struct {
	repo        *Repository
	otp         *OTPStore
	jwt         *JWTService
	sender      TextSender
	devLogCodes bool
	logger      *zap.Logger
}

// NewHandler creates an auth handler. otp may be nil when Redis is
// unavailable; login endpoints then answer 503 while issued JWTs keep
// working.
func NewHandler(repo *Repository, otp *OTPStore, jwt *JWTService, sender TextSender, devLogCodes bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, otp: otp, jwt: jwt, sender: sender, devLogCodes: devLogCodes, logger: logger}
}

// RequestOTPRequest is the body for POST /auth/request-otp.
type RequestOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// RequestOTP handles POST /auth/request-otp. Issues a code to a known member's phone.
func (h *Handler) RequestOTP(c *gin.Context) {
	var req RequestOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "phone required")
		return
	}
	if h.otp == nil {
		response.Unavailable(c, "login temporarily unavailable")
		return
	}
	member, err := h.repo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil {
		h.logger.Error("member lookup failed", zap.Error(err))
		response.Internal(c, "failed to request otp")
		return
	}
	if member == nil {
		// Do not reveal whether a phone is registered.
		response.OK(c, gin.H{"message": "if the number is registered, a code has been sent"})
		return
	}
	code, err := h.otp.Issue(c.Request.Context(), member.Phone)
	if err != nil {
		h.logger.Error("issue otp failed", zap.Error(err))
		response.Internal(c, "failed to request otp")
		return
	}
	if h.devLogCodes {
		h.logger.Info("otp issued (dev)", zap.String("phone", member.Phone), zap.String("code", code))
	} else if err := h.sender.SendText(c.Request.Context(), member.Phone, "Your login code is "+code); err != nil {
		h.logger.Error("otp delivery failed", zap.Error(err), zap.String("phone", member.Phone))
		response.Internal(c, "failed to deliver otp")
		return
	}
	response.OK(c, gin.H{"message": "if the number is registered, a code has been sent"})
}

// VerifyOTPRequest is the body for POST /auth/verify-otp.
type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// VerifyOTP handles POST /auth/verify-otp. Exchanges a valid code for a JWT.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "phone and code required")
		return
	}
	if h.otp == nil {
		response.Unavailable(c, "login temporarily unavailable")
		return
	}
	if err := h.otp.Verify(c.Request.Context(), req.Phone, req.Code); err != nil {
		if errors.Is(err, ErrOTPMismatch) || errors.Is(err, ErrOTPExpired) {
			response.Unauthorized(c, "invalid or expired code")
			return
		}
		h.logger.Error("verify otp failed", zap.Error(err))
		response.Internal(c, "failed to verify otp")
		return
	}
	member, err := h.repo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil || member == nil {
		response.Unauthorized(c, "invalid or expired code")
		return
	}
	token, err := h.jwt.Generate(member.ID, member.Phone, member.Role)
	if err != nil {
		h.logger.Error("generate jwt failed", zap.Error(err))
		response.Internal(c, "failed to issue token")
		return
	}
	response.OK(c, gin.H{"token": token, "member": member})
}
