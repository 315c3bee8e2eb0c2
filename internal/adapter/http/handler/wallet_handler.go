package handler

import (
	"wallet-vault/internal/adapter/http/dto"
	"wallet-vault/internal/adapter/http/middleware"
	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"
	"wallet-vault/pkg/apperror"
	"wallet-vault/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallet, err := h.walletSvc.Create(c.Request.Context(), ownerID, req.Currency, domain.OriginMetadata{
		IPAddress: c.ClientIP(),
		DeviceID:  req.DeviceID,
		Location:  req.Location,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWalletResponse(wallet))
}

// GetBalance handles GET /api/v1/wallets/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}

	balance, currency, err := h.walletSvc.GetBalance(c.Request.Context(), ownerID, c.GetHeader("X-Wallet-Credential"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		Balance:  balance,
		Currency: currency,
	})
}

// Adjust handles POST /api/v1/wallets/adjust.
func (h *WalletHandler) Adjust(c *gin.Context) {
	ownerID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	adjust := ports.AdjustRequest{
		OwnerID:        ownerID,
		Delta:          req.Delta,
		Type:           domain.TransactionType(req.Type),
		Source:         domain.SourceWallet,
		Actor:          domain.ActorUserAction,
		Credential:     c.GetHeader("X-Wallet-Credential"),
		Reference:      req.Reference,
		IdempotencyKey: req.IdempotencyKey,
		ClientIP:       c.ClientIP(),
		DeviceID:       req.DeviceID,
	}
	if req.OTPCodeID != nil {
		codeID, err := uuid.Parse(*req.OTPCodeID)
		if err != nil {
			response.Error(c, apperror.Validation("otp_code_id must be a UUID"))
			return
		}
		adjust.OTPCodeID = &codeID
	}
	if req.OrderID != nil {
		orderID, err := uuid.Parse(*req.OrderID)
		if err != nil {
			response.Error(c, apperror.Validation("order_id must be a UUID"))
			return
		}
		adjust.OrderID = &orderID
	}

	result, err := h.walletSvc.AdjustBalance(c.Request.Context(), adjust)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(result))
}

// SetStatus handles PUT /api/v1/admin/wallets/:owner_id/status.
func (h *WalletHandler) SetStatus(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("owner_id"))
	if err != nil {
		response.Error(c, apperror.Validation("owner_id must be a UUID"))
		return
	}

	var req dto.SetWalletStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.walletSvc.SetStatus(c.Request.Context(), ownerID, domain.WalletStatus(req.Status), domain.ActorAdmin); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"owner_id": ownerID.String(), "status": req.Status})
}

// AdminAdjust handles POST /api/v1/admin/wallets/:owner_id/adjust.
// Admin corrections always demand a consumed SENSITIVE_ACTION code.
func (h *WalletHandler) AdminAdjust(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("owner_id"))
	if err != nil {
		response.Error(c, apperror.Validation("owner_id must be a UUID"))
		return
	}

	var req dto.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	adjust := ports.AdjustRequest{
		OwnerID:        ownerID,
		Delta:          req.Delta,
		Type:           domain.TransactionTypeAdminAdjustment,
		Source:         domain.SourceAdmin,
		Actor:          domain.ActorAdmin,
		Reference:      req.Reference,
		IdempotencyKey: req.IdempotencyKey,
		ClientIP:       c.ClientIP(),
		DeviceID:       req.DeviceID,
	}
	if req.OTPCodeID != nil {
		codeID, perr := uuid.Parse(*req.OTPCodeID)
		if perr != nil {
			response.Error(c, apperror.Validation("otp_code_id must be a UUID"))
			return
		}
		adjust.OTPCodeID = &codeID
	}

	result, err := h.walletSvc.AdjustBalance(c.Request.Context(), adjust)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(result))
}

// callerID extracts the authenticated user id set by the JWT middleware.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		ID:        w.ID.String(),
		OwnerID:   w.OwnerID.String(),
		Currency:  w.Currency,
		Status:    string(w.Status),
		RiskScore: w.RiskScore,
		Version:   w.Version,
		CreatedAt: w.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:              tx.ID.String(),
		Reference:       tx.Reference,
		Type:            string(tx.Type),
		Amount:          tx.Amount,
		Currency:        tx.Currency,
		PreviousBalance: tx.PreviousBalance,
		NewBalance:      tx.NewBalance,
		Status:          string(tx.Status),
		Source:          string(tx.Source),
		FraudScore:      tx.FraudScore,
		FraudFlags:      tx.FraudFlags,
		CreatedAt:       tx.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if tx.ProcessedAt != nil {
		s := tx.ProcessedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ProcessedAt = &s
	}
	return resp
}
