package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-vault/internal/adapter/http/dto"
	"wallet-vault/internal/adapter/http/middleware"
	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"
	"wallet-vault/internal/core/ports/mocks"
	"wallet-vault/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errDepDown = errors.New("dependency down")

// --- Wallet Handler Tests ---

func TestCreateWallet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	ownerID := uuid.New()
	walletID := uuid.New()
	now := time.Now()

	mockWallet.EXPECT().Create(gomock.Any(), ownerID, "USD", gomock.Any()).Return(&domain.Wallet{
		ID:        walletID,
		OwnerID:   ownerID,
		Currency:  "USD",
		Status:    domain.WalletStatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil)

	body, _ := json.Marshal(dto.CreateWalletRequest{
		Currency: "USD",
		DeviceID: "dev-1",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserID, ownerID)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, walletID.String(), data["id"])
	assert.Equal(t, "USD", data["currency"])
}

func TestCreateWallet_MissingIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateWallet_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	ownerID := uuid.New()
	mockWallet.EXPECT().Create(gomock.Any(), ownerID, "USD", gomock.Any()).Return(nil, apperror.ErrWalletExists())

	body, _ := json.Marshal(dto.CreateWalletRequest{Currency: "USD"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserID, ownerID)

	h.Create(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetBalance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	ownerID := uuid.New()
	mockWallet.EXPECT().GetBalance(gomock.Any(), ownerID, "hunter2").Return(int64(150000), "USD", nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-Wallet-Credential", "hunter2")
	c.Set(middleware.CtxUserID, ownerID)

	h.GetBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, float64(150000), data["balance"])
	assert.Equal(t, "USD", data["currency"])
}

func TestGetBalance_DecryptFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	ownerID := uuid.New()
	mockWallet.EXPECT().GetBalance(gomock.Any(), ownerID, gomock.Any()).Return(int64(0), "", apperror.ErrDecryptionFailed(errDepDown))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(middleware.CtxUserID, ownerID)

	h.GetBalance(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAdjust_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	ownerID := uuid.New()
	txID := uuid.New()
	now := time.Now()

	mockWallet.EXPECT().AdjustBalance(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ interface{}, req ports.AdjustRequest) (*domain.Transaction, error) {
			assert.Equal(t, ownerID, req.OwnerID)
			assert.Equal(t, int64(5000), req.Delta)
			assert.Equal(t, domain.TransactionTypeFunding, req.Type)
			assert.Equal(t, domain.SourceWallet, req.Source)
			assert.Equal(t, domain.ActorUserAction, req.Actor)
			return &domain.Transaction{
				ID:          txID,
				Reference:   "TXN-001",
				OwnerID:     ownerID,
				Type:        domain.TransactionTypeFunding,
				Amount:      5000,
				Currency:    "USD",
				NewBalance:  15000,
				Status:      domain.TransactionStatusCompleted,
				Source:      domain.SourceWallet,
				CreatedAt:   now,
				ProcessedAt: &now,
			}, nil
		})

	body, _ := json.Marshal(dto.AdjustBalanceRequest{
		Delta:     5000,
		Type:      "FUNDING",
		Reference: "TXN-001",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserID, ownerID)

	h.Adjust(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, txID.String(), data["id"])
	assert.Equal(t, "COMPLETED", data["status"])
}

func TestAdjust_ZeroDeltaRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	body, _ := json.Marshal(dto.AdjustBalanceRequest{
		Delta: 0,
		Type:  "FUNDING",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserID, uuid.New())

	h.Adjust(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdjust_BadOTPCodeID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	bad := "not-a-uuid"
	body, _ := json.Marshal(dto.AdjustBalanceRequest{
		Delta:     -2000,
		Type:      "PURCHASE",
		OTPCodeID: &bad,
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserID, uuid.New())

	h.Adjust(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdjust_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	mockWallet.EXPECT().AdjustBalance(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())

	body, _ := json.Marshal(dto.AdjustBalanceRequest{
		Delta: -999999,
		Type:  "PURCHASE",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserID, uuid.New())

	h.Adjust(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestSetStatus_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	ownerID := uuid.New()
	mockWallet.EXPECT().SetStatus(gomock.Any(), ownerID, domain.WalletStatusFrozen, domain.ActorAdmin).Return(nil)

	body, _ := json.Marshal(dto.SetWalletStatusRequest{Status: "FROZEN"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "owner_id", Value: ownerID.String()}}

	h.SetStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetStatus_BadOwnerID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/", nil)
	c.Params = gin.Params{{Key: "owner_id", Value: "nope"}}

	h.SetStatus(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminAdjust_ForcesAdminActor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	ownerID := uuid.New()
	now := time.Now()

	mockWallet.EXPECT().AdjustBalance(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ interface{}, req ports.AdjustRequest) (*domain.Transaction, error) {
			assert.Equal(t, domain.TransactionTypeAdminAdjustment, req.Type)
			assert.Equal(t, domain.SourceAdmin, req.Source)
			assert.Equal(t, domain.ActorAdmin, req.Actor)
			return &domain.Transaction{
				ID:        uuid.New(),
				OwnerID:   ownerID,
				Type:      domain.TransactionTypeAdminAdjustment,
				Status:    domain.TransactionStatusCompleted,
				CreatedAt: now,
			}, nil
		})

	body, _ := json.Marshal(dto.AdjustBalanceRequest{
		Delta: -10000,
		Type:  "ADMIN_ADJUSTMENT",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "owner_id", Value: ownerID.String()}}

	h.AdminAdjust(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

// --- OTP Handler Tests ---

func TestOTPIssue_PlaintextNotReturned(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOTP := mocks.NewMockOTPService(ctrl)
	h := NewOTPHandler(mockOTP)

	ownerID := uuid.New()
	codeID := uuid.New()
	expires := time.Now().Add(5 * time.Minute)
	boundRef := "TXN-42"

	mockOTP.EXPECT().Issue(gomock.Any(), ports.OTPIssueRequest{
		OwnerID:        ownerID,
		Purpose:        domain.OTPPurposeFunding,
		BoundReference: &boundRef,
		Channel:        domain.OTPChannelEmail,
	}).Return(&ports.OTPIssueResult{
		CodeID:    codeID,
		Code:      "482913",
		ExpiresAt: expires,
	}, nil)

	body, _ := json.Marshal(dto.OTPIssueRequest{
		Purpose:        "FUNDING",
		BoundReference: &boundRef,
		Channel:        "EMAIL",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserID, ownerID)

	h.Issue(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "482913")
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, codeID.String(), data["code_id"])
}

func TestOTPIssue_BadPurpose(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOTP := mocks.NewMockOTPService(ctrl)
	h := NewOTPHandler(mockOTP)

	body, _ := json.Marshal(dto.OTPIssueRequest{
		Purpose: "MAKE_COFFEE",
		Channel: "EMAIL",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserID, uuid.New())

	h.Issue(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOTPVerify_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOTP := mocks.NewMockOTPService(ctrl)
	h := NewOTPHandler(mockOTP)

	codeID := uuid.New()
	mockOTP.EXPECT().Verify(gomock.Any(), codeID, "482913").Return(&ports.OTPVerifyResult{
		Outcome:           ports.OTPOutcomeSuccess,
		AttemptsRemaining: 2,
	}, nil)

	body, _ := json.Marshal(dto.OTPVerifyRequest{
		CodeID: codeID.String(),
		Code:   "482913",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserID, uuid.New())

	h.Verify(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "SUCCESS", data["outcome"])
}

func TestOTPVerify_Locked(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOTP := mocks.NewMockOTPService(ctrl)
	h := NewOTPHandler(mockOTP)

	codeID := uuid.New()
	mockOTP.EXPECT().Verify(gomock.Any(), codeID, gomock.Any()).Return(nil, apperror.ErrOTPLocked())

	body, _ := json.Marshal(dto.OTPVerifyRequest{
		CodeID: codeID.String(),
		Code:   "000000",
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserID, uuid.New())

	h.Verify(c)

	assert.Equal(t, http.StatusLocked, w.Code)
}

// --- Ledger Handler Tests ---

func TestListTransactions_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(mockLedger)

	ownerID := uuid.New()
	now := time.Now()

	mockLedger.EXPECT().List(gomock.Any(), gomock.Any()).Return([]domain.Transaction{
		{
			ID:        uuid.New(),
			Reference: "TXN-001",
			OwnerID:   ownerID,
			Type:      domain.TransactionTypeFunding,
			Amount:    5000,
			Status:    domain.TransactionStatusCompleted,
			CreatedAt: now,
		},
	}, int64(1), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=1&page_size=20", nil)
	c.Set(middleware.CtxUserID, ownerID)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	assert.Len(t, items, 1)
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["total_pages"])
}

func TestListTransactions_BadFromTimestamp(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(mockLedger)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?from=yesterday", nil)
	c.Set(middleware.CtxUserID, uuid.New())

	h.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetByReference_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(mockLedger)

	mockLedger.EXPECT().GetByReference(gomock.Any(), "TXN-MISSING").Return(nil, apperror.ErrTransactionNotFound())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "reference", Value: "TXN-MISSING"}}
	c.Set(middleware.CtxUserID, uuid.New())

	h.GetByReference(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReverse_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(mockLedger)

	txID := uuid.New()
	originalID := uuid.New()
	now := time.Now()

	mockLedger.EXPECT().Reverse(gomock.Any(), "TXN-001", "chargeback").Return(&domain.Transaction{
		ID:                    txID,
		Reference:             "TXN-001-R",
		Type:                  domain.TransactionTypeRefund,
		Amount:                5000,
		Status:                domain.TransactionStatusCompleted,
		RefundOfTransactionID: &originalID,
		CreatedAt:             now,
	}, nil)

	body, _ := json.Marshal(dto.ReverseRequest{Reason: "chargeback"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "reference", Value: "TXN-001"}}

	h.Reverse(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "REFUND", data["type"])
}

func TestReverse_AlreadyReversed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewLedgerHandler(mockLedger)

	mockLedger.EXPECT().Reverse(gomock.Any(), "TXN-001", gomock.Any()).Return(nil, apperror.ErrAlreadyReversed())

	body, _ := json.Marshal(dto.ReverseRequest{Reason: "duplicate request"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "reference", Value: "TXN-001"}}

	h.Reverse(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

// --- Fraud Handler Tests ---

func TestFraudResolve_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockFraud := mocks.NewMockFraudService(ctrl)
	h := NewFraudHandler(mockFraud)

	logID := uuid.New()
	resolverID := uuid.New()
	mockFraud.EXPECT().Resolve(gomock.Any(), logID, resolverID, "manual review cleared").Return(nil)

	body, _ := json.Marshal(dto.FraudResolveRequest{Notes: "manual review cleared"})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: logID.String()}}
	c.Set(middleware.CtxUserID, resolverID)

	h.Resolve(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFraudListByOwner_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockFraud := mocks.NewMockFraudService(ctrl)
	h := NewFraudHandler(mockFraud)

	ownerID := uuid.New()
	mockFraud.EXPECT().ListByOwner(gomock.Any(), ownerID, 20).Return([]domain.FraudLog{
		{
			ID:      uuid.New(),
			OwnerID: ownerID,
			Reason:  domain.FraudReasonVelocity,
			Score:   30,
			Action:  domain.FraudActionRequireOTP,
		},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Params = gin.Params{{Key: "owner_id", Value: ownerID.String()}}

	h.ListByOwner(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	items := resp["data"].([]interface{})
	assert.Len(t, items, 1)
}

// --- Webhook Handler Tests ---

func TestProviderWebhook_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReconcile := mocks.NewMockReconcileService(ctrl)
	h := NewWebhookHandler(mockReconcile)

	ledgerID := uuid.New()
	raw := []byte(`{"provider_reference":"PROV-001","amount":5000,"currency":"USD"}`)

	mockReconcile.EXPECT().Reconcile(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ interface{}, req ports.ReconcileRequest) (*domain.ExternalPaymentRecord, error) {
			assert.Equal(t, "PROV-001", req.ProviderReference)
			assert.Equal(t, raw, req.RawResponse)
			assert.Equal(t, "sig-abc", req.Signature)
			assert.Equal(t, "idem-123", req.IdempotencyKey)
			return &domain.ExternalPaymentRecord{
				ProviderReference:   "PROV-001",
				VerificationStatus:  domain.VerificationStatusVerified,
				LedgerTransactionID: &ledgerID,
			}, nil
		})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Header.Set(HeaderProviderSignature, "sig-abc")
	c.Request.Header.Set(HeaderIdempotencyKey, "idem-123")

	h.ProviderWebhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "VERIFIED", data["verification_status"])
	assert.Equal(t, ledgerID.String(), data["ledger_transaction_id"])
}

func TestProviderWebhook_NotJSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReconcile := mocks.NewMockReconcileService(ctrl)
	h := NewWebhookHandler(mockReconcile)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("not json at all")))

	h.ProviderWebhook(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProviderWebhook_BadSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReconcile := mocks.NewMockReconcileService(ctrl)
	h := NewWebhookHandler(mockReconcile)

	mockReconcile.EXPECT().Reconcile(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrSignatureInvalid())

	raw := []byte(`{"provider_reference":"PROV-001"}`)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	c.Request.Header.Set(HeaderProviderSignature, "forged")

	h.ProviderWebhook(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Health Check Test ---

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Ping(_ context.Context) error { return f.err }
func (f fakeChecker) Name() string                         { return f.name }

func TestHealthCheck_AllHealthy(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(fakeChecker{name: "postgresql"}, fakeChecker{name: "redis"})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(fakeChecker{name: "postgresql"}, fakeChecker{name: "redis", err: errDepDown})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	redis := deps["redis"].(map[string]interface{})
	assert.Equal(t, "unhealthy", redis["status"])
}
