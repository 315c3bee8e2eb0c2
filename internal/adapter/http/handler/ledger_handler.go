package handler

import (
	"strconv"

	"wallet-vault/internal/adapter/http/dto"
	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"
	"wallet-vault/pkg/apperror"
	"wallet-vault/pkg/response"

	"github.com/gin-gonic/gin"
)

// LedgerHandler handles ledger query and reversal endpoints.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// List handles GET /api/v1/transactions.
func (h *LedgerHandler) List(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}

	params := ports.TransactionListParams{OwnerID: ownerID}
	params.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	params.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(s)
		params.Status = &status
	}
	if t := c.Query("type"); t != "" {
		txType := domain.TransactionType(t)
		params.Type = &txType
	}
	if from := c.Query("from"); from != "" {
		ts, err := strconv.ParseInt(from, 10, 64)
		if err != nil {
			response.Error(c, apperror.Validation("from must be a Unix timestamp"))
			return
		}
		params.From = &ts
	}
	if to := c.Query("to"); to != "" {
		ts, err := strconv.ParseInt(to, 10, 64)
		if err != nil {
			response.Error(c, apperror.Validation("to must be a Unix timestamp"))
			return
		}
		params.To = &ts
	}

	txns, total, err := h.ledgerSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// GetByReference handles GET /api/v1/transactions/:reference.
func (h *LedgerHandler) GetByReference(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		return
	}

	txn, err := h.ledgerSvc.GetByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(txn))
}

// Reverse handles POST /api/v1/admin/transactions/:reference/reverse.
func (h *LedgerHandler) Reverse(c *gin.Context) {
	var req dto.ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	refund, err := h.ledgerSvc.Reverse(c.Request.Context(), c.Param("reference"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(refund))
}
