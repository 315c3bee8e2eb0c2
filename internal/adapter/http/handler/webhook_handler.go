package handler

import (
	"encoding/json"
	"io"

	"wallet-vault/internal/adapter/http/dto"
	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"
	"wallet-vault/pkg/apperror"
	"wallet-vault/pkg/response"

	"github.com/gin-gonic/gin"
)

// Header names used by the external payment provider.
const (
	HeaderProviderSignature = "X-Provider-Signature"
	HeaderIdempotencyKey    = "Idempotency-Key"
)

// WebhookHandler receives settlement notifications from the external
// payment provider. The endpoint is unauthenticated at the transport
// level; the HMAC signature on the raw body is the credential.
type WebhookHandler struct {
	reconcileSvc ports.ReconcileService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(reconcileSvc ports.ReconcileService) *WebhookHandler {
	return &WebhookHandler{reconcileSvc: reconcileSvc}
}

// ProviderWebhook handles POST /api/v1/webhooks/provider.
//
// The raw body is kept byte-for-byte for signature verification and
// audit storage. Only the provider reference is pre-parsed here; full
// payload validation happens after the signature check.
func (h *WebhookHandler) ProviderWebhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("unable to read request body"))
		return
	}

	var envelope struct {
		ProviderReference string `json:"provider_reference"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		response.Error(c, apperror.Validation("request body must be JSON"))
		return
	}

	record, err := h.reconcileSvc.Reconcile(c.Request.Context(), ports.ReconcileRequest{
		ProviderReference: envelope.ProviderReference,
		RawResponse:       raw,
		Signature:         c.GetHeader(HeaderProviderSignature),
		IdempotencyKey:    c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toReconcileResponse(record))
}

func toReconcileResponse(r *domain.ExternalPaymentRecord) dto.ReconcileResponse {
	resp := dto.ReconcileResponse{
		ProviderReference:  r.ProviderReference,
		VerificationStatus: string(r.VerificationStatus),
	}
	if r.LedgerTransactionID != nil {
		id := r.LedgerTransactionID.String()
		resp.LedgerTransactionID = &id
	}
	return resp
}
