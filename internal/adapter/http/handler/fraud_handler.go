package handler

import (
	"strconv"

	"wallet-vault/internal/adapter/http/dto"
	"wallet-vault/internal/adapter/http/middleware"
	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"
	"wallet-vault/pkg/apperror"
	"wallet-vault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FraudHandler handles fraud review endpoints (admin only).
type FraudHandler struct {
	fraudSvc ports.FraudService
}

// NewFraudHandler creates a new FraudHandler.
func NewFraudHandler(fraudSvc ports.FraudService) *FraudHandler {
	return &FraudHandler{fraudSvc: fraudSvc}
}

// ListByOwner handles GET /api/v1/admin/fraud/:owner_id.
func (h *FraudHandler) ListByOwner(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("owner_id"))
	if err != nil {
		response.Error(c, apperror.Validation("owner_id must be a UUID"))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	logs, err := h.fraudSvc.ListByOwner(c.Request.Context(), ownerID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.FraudLogResponse, 0, len(logs))
	for i := range logs {
		items = append(items, toFraudLogResponse(&logs[i]))
	}
	response.OK(c, items)
}

// Resolve handles POST /api/v1/admin/fraud/:id/resolve.
func (h *FraudHandler) Resolve(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a UUID"))
		return
	}

	resolverID, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.FraudResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.fraudSvc.Resolve(c.Request.Context(), logID, resolverID.(uuid.UUID), req.Notes); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"id": logID.String(), "resolved": true})
}

func toFraudLogResponse(f *domain.FraudLog) dto.FraudLogResponse {
	return dto.FraudLogResponse{
		ID:                   f.ID.String(),
		OwnerID:              f.OwnerID.String(),
		Reason:               string(f.Reason),
		Score:                f.Score,
		Action:               string(f.Action),
		TransactionReference: f.TransactionReference,
		Resolved:             f.Resolved,
		CreatedAt:            f.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
