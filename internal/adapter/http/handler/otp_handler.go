package handler

import (
	"wallet-vault/internal/adapter/http/dto"
	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"
	"wallet-vault/pkg/apperror"
	"wallet-vault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OTPHandler handles one-time code endpoints.
type OTPHandler struct {
	otpSvc ports.OTPService
}

// NewOTPHandler creates a new OTPHandler.
func NewOTPHandler(otpSvc ports.OTPService) *OTPHandler {
	return &OTPHandler{otpSvc: otpSvc}
}

// Issue handles POST /api/v1/otp/issue. The plaintext code leaves the
// process only through the delivery channel, never this response.
func (h *OTPHandler) Issue(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.OTPIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.otpSvc.Issue(c.Request.Context(), ports.OTPIssueRequest{
		OwnerID:        ownerID,
		Purpose:        domain.OTPPurpose(req.Purpose),
		BoundReference: req.BoundReference,
		Channel:        domain.OTPChannel(req.Channel),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.OTPIssueResponse{
		CodeID:    result.CodeID.String(),
		ExpiresAt: result.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// Verify handles POST /api/v1/otp/verify.
func (h *OTPHandler) Verify(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		return
	}

	var req dto.OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	codeID, err := uuid.Parse(req.CodeID)
	if err != nil {
		response.Error(c, apperror.Validation("code_id must be a UUID"))
		return
	}

	result, err := h.otpSvc.Verify(c.Request.Context(), codeID, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.OTPVerifyResponse{
		Outcome:           string(result.Outcome),
		AttemptsRemaining: result.AttemptsRemaining,
	})
}
