package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// Validation returns a caller's-fault malformed-input error. Never retried.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ---- Wallet (WAL) ----

func ErrWalletNotFound() *AppError {
	return New("WAL_001", "Wallet not found", http.StatusNotFound)
}

func ErrWalletNotActive(status string) *AppError {
	return New("WAL_002", fmt.Sprintf("Wallet is %s and rejects balance mutations", status), http.StatusConflict)
}

func ErrInsufficientFunds() *AppError {
	return New("WAL_003", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrWriteConflict() *AppError {
	return New("WAL_004", "Wallet was modified concurrently, re-fetch and retry", http.StatusConflict)
}

func ErrWalletExists() *AppError {
	return New("WAL_005", "Owner already has a wallet", http.StatusConflict)
}

// ---- Cryptography (CRY) ----
// Messages never carry ciphertext or key material.

func ErrCipherFailure(err error) *AppError {
	return Wrap("CRY_001", "Balance cipher failure", http.StatusInternalServerError, err)
}

func ErrDecryptionFailed(err error) *AppError {
	return Wrap("CRY_002", "Stored balance could not be decrypted", http.StatusInternalServerError, err)
}

// ---- Ledger (LED) ----

func ErrTransactionNotFound() *AppError {
	return New("LED_001", "Transaction not found", http.StatusNotFound)
}

func ErrNotReversible() *AppError {
	return New("LED_002", "Original transaction is not eligible for reversal", http.StatusConflict)
}

func ErrAlreadyReversed() *AppError {
	return New("LED_003", "Transaction has already been reversed", http.StatusConflict)
}

func ErrTerminalStatus() *AppError {
	return New("LED_004", "Transaction already reached a terminal status", http.StatusConflict)
}

// ---- One-Time Codes (OTP) ----

func ErrOTPNotFound() *AppError {
	return New("OTP_001", "One-time code not found", http.StatusNotFound)
}

func ErrOTPExpired() *AppError {
	return New("OTP_002", "One-time code has expired", http.StatusGone)
}

func ErrOTPLocked() *AppError {
	return New("OTP_003", "One-time code is locked after too many attempts", http.StatusLocked)
}

func ErrOTPAlreadyUsed() *AppError {
	return New("OTP_004", "One-time code has already been used", http.StatusConflict)
}

func ErrOTPRequired() *AppError {
	return New("OTP_005", "A verified one-time code is required for this action", http.StatusForbidden)
}

func ErrOTPPurposeMismatch() *AppError {
	return New("OTP_006", "One-time code was issued for a different purpose", http.StatusForbidden)
}

// ---- Fraud (FRD) ----

func ErrFraudBlocked() *AppError {
	return New("FRD_001", "Action denied pending manual fraud review", http.StatusForbidden)
}

func ErrFraudLogNotFound() *AppError {
	return New("FRD_002", "Fraud log not found", http.StatusNotFound)
}

// ---- Reconciliation (RCN) ----

func ErrSignatureInvalid() *AppError {
	return New("RCN_001", "Webhook signature verification failed", http.StatusUnauthorized)
}

func ErrDuplicateReference() *AppError {
	return New("RCN_002", "Provider reference was already reconciled with a different payload", http.StatusConflict)
}

func ErrAmountMismatch() *AppError {
	return New("RCN_003", "Webhook amount or currency does not match the provider response", http.StatusUnprocessableEntity)
}

func ErrProviderPayloadInvalid(err error) *AppError {
	return Wrap("RCN_004", "Provider payload could not be parsed", http.StatusBadRequest, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Missing or invalid authentication token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_002", "Caller does not have permission for this action", http.StatusForbidden)
}

func ErrRateLimitExceeded() *AppError {
	return New("AUTH_003", "Too many requests, slow down", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_002", "Internal database error", http.StatusInternalServerError, err)
}
