package service

import (
	"context"
	"testing"

	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"
	"wallet-vault/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc        *LedgerServiceImpl
	txRepo     *mocks.MockTransactionRepository
	walletRepo *mocks.MockWalletRepository
	cipher     *mocks.MockBalanceCipher
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		cipher:     mocks.NewMockBalanceCipher(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewLedgerService(
		d.txRepo, d.walletRepo, d.cipher, d.transactor,
		testServiceCredential, zerolog.Nop(),
	)
	return d
}

// ==================== Record Tests ====================

func TestLedgerService_Record_Completed(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	ownerID := uuid.New()
	walletID := uuid.New()

	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.Record(ctx, tx, ports.LedgerEvent{
		Reference:       "REF-100",
		OwnerID:         ownerID,
		WalletID:        walletID,
		Type:            domain.TransactionTypeFunding,
		Amount:          5000,
		Currency:        "USD",
		PreviousBalance: 0,
		NewBalance:      5000,
		Source:          domain.SourceWallet,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
	assert.NotNil(t, txn.ProcessedAt)
	assert.Equal(t, int64(0), txn.PreviousBalance)
	assert.Equal(t, int64(5000), txn.NewBalance)
}

func TestLedgerService_Record_PendingForProviderEvents(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.Record(ctx, tx, ports.LedgerEvent{
		Reference: "EXT-900",
		OwnerID:   uuid.New(),
		WalletID:  uuid.New(),
		Type:      domain.TransactionTypeFunding,
		Amount:    2500,
		Currency:  "USD",
		Source:    domain.SourceExternalProvider,
		Pending:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, txn.Status)
	assert.Nil(t, txn.ProcessedAt)
}

func TestLedgerService_Record_DuplicateReference(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrUniqueViolation)

	txn, err := d.svc.Record(ctx, tx, ports.LedgerEvent{
		Reference: "REF-DUP", OwnerID: uuid.New(), WalletID: uuid.New(),
		Type: domain.TransactionTypeFunding, Amount: 100, Currency: "USD",
		Source: domain.SourceWallet,
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "RCN_002")
}

func TestLedgerService_Record_NegativeAmount(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	txn, err := d.svc.Record(context.Background(), &mockTx{}, ports.LedgerEvent{
		Reference: "REF-NEG", Amount: -5,
	})
	assert.Nil(t, txn)
	assertAppError(t, err, "VAL_001")
}

// ==================== Reverse Tests ====================

func TestLedgerService_Reverse_Success(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	ownerID := uuid.New()
	origTxID := uuid.New()
	wallet := activeWallet(ownerID, "enc_2000", 5)

	orig := &domain.Transaction{
		ID:        origTxID,
		Reference: "REF-200",
		OwnerID:   ownerID,
		WalletID:  wallet.ID,
		Type:      domain.TransactionTypePurchase,
		Amount:    3000,
		Currency:  "USD",
		Status:    domain.TransactionStatusCompleted,
		Source:    domain.SourceWallet,
	}

	d.txRepo.EXPECT().GetByReference(ctx, "REF-200").Return(orig, nil)
	d.txRepo.EXPECT().CheckRefundExists(ctx, origTxID).Return(false, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, wallet.ID).Return(wallet, nil)
	d.cipher.EXPECT().Decrypt("enc_2000", testServiceCredential, &wallet.Encryption).Return(int64(2000), nil)
	d.cipher.EXPECT().Encrypt(int64(5000), testServiceCredential, &wallet.Encryption).Return("enc_5000", nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, ports.UpdateBalanceParams{
		WalletID:         wallet.ID,
		EncryptedBalance: "enc_5000",
		UpdatedBy:        domain.ActorSystem,
		ExpectedVersion:  5,
	}).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.txRepo.EXPECT().UpdateStatus(ctx, tx, origTxID, domain.TransactionStatusReversed).Return(nil)

	refund, err := d.svc.Reverse(ctx, "REF-200", "customer dispute")
	require.NoError(t, err)
	require.NotNil(t, refund)
	assert.Equal(t, domain.TransactionTypeRefund, refund.Type)
	assert.Equal(t, "REFUND-REF-200", refund.Reference)
	assert.Equal(t, &origTxID, refund.RefundOfTransactionID)
	assert.Equal(t, int64(2000), refund.PreviousBalance)
	assert.Equal(t, int64(5000), refund.NewBalance)
}

func TestLedgerService_Reverse_OriginalNotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.txRepo.EXPECT().GetByReference(ctx, "GONE").Return(nil, nil)

	refund, err := d.svc.Reverse(ctx, "GONE", "oops")
	assert.Nil(t, refund)
	assertAppError(t, err, "LED_001")
}

func TestLedgerService_Reverse_NotReversible(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.txRepo.EXPECT().GetByReference(ctx, "REF-FAILED").Return(&domain.Transaction{
		ID:     uuid.New(),
		Type:   domain.TransactionTypePurchase,
		Status: domain.TransactionStatusFailed,
	}, nil)

	refund, err := d.svc.Reverse(ctx, "REF-FAILED", "no")
	assert.Nil(t, refund)
	assertAppError(t, err, "LED_002")
}

func TestLedgerService_Reverse_RefundOfRefundRejected(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.txRepo.EXPECT().GetByReference(ctx, "REFUND-REF-1").Return(&domain.Transaction{
		ID:     uuid.New(),
		Type:   domain.TransactionTypeRefund,
		Status: domain.TransactionStatusCompleted,
	}, nil)

	refund, err := d.svc.Reverse(ctx, "REFUND-REF-1", "no")
	assert.Nil(t, refund)
	assertAppError(t, err, "LED_002")
}

func TestLedgerService_Reverse_AlreadyReversed(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	origTxID := uuid.New()
	d.txRepo.EXPECT().GetByReference(ctx, "REF-300").Return(&domain.Transaction{
		ID:     origTxID,
		Type:   domain.TransactionTypePurchase,
		Status: domain.TransactionStatusCompleted,
	}, nil)
	d.txRepo.EXPECT().CheckRefundExists(ctx, origTxID).Return(true, nil)

	refund, err := d.svc.Reverse(ctx, "REF-300", "again")
	assert.Nil(t, refund)
	assertAppError(t, err, "LED_003")
}

func TestLedgerService_Reverse_FrozenWalletRejected(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	ownerID := uuid.New()
	origTxID := uuid.New()
	wallet := activeWallet(ownerID, "enc_1000", 1)
	wallet.Status = domain.WalletStatusFrozen

	d.txRepo.EXPECT().GetByReference(ctx, "REF-400").Return(&domain.Transaction{
		ID:       origTxID,
		OwnerID:  ownerID,
		WalletID: wallet.ID,
		Type:     domain.TransactionTypePurchase,
		Amount:   500,
		Currency: "USD",
		Status:   domain.TransactionStatusCompleted,
	}, nil)
	d.txRepo.EXPECT().CheckRefundExists(ctx, origTxID).Return(false, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, wallet.ID).Return(wallet, nil)

	refund, err := d.svc.Reverse(ctx, "REF-400", "dispute")
	assert.Nil(t, refund)
	assertAppError(t, err, "WAL_002")
}

func TestLedgerService_Reverse_DuplicateRefundReference(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	ownerID := uuid.New()
	origTxID := uuid.New()
	wallet := activeWallet(ownerID, "enc_1000", 3)

	d.txRepo.EXPECT().GetByReference(ctx, "REF-500").Return(&domain.Transaction{
		ID:       origTxID,
		OwnerID:  ownerID,
		WalletID: wallet.ID,
		Type:     domain.TransactionTypePurchase,
		Amount:   700,
		Currency: "USD",
		Status:   domain.TransactionStatusCompleted,
	}, nil)
	d.txRepo.EXPECT().CheckRefundExists(ctx, origTxID).Return(false, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(ctx, tx, wallet.ID).Return(wallet, nil)
	d.cipher.EXPECT().Decrypt("enc_1000", testServiceCredential, &wallet.Encryption).Return(int64(1000), nil)
	d.cipher.EXPECT().Encrypt(int64(1700), testServiceCredential, &wallet.Encryption).Return("enc_1700", nil)
	d.walletRepo.EXPECT().UpdateBalance(ctx, tx, gomock.Any()).Return(nil)
	// A concurrent reversal already claimed REFUND-REF-500.
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrUniqueViolation)

	refund, err := d.svc.Reverse(ctx, "REF-500", "dispute")
	assert.Nil(t, refund)
	assertAppError(t, err, "LED_003")
}

// ==================== Query Tests ====================

func TestLedgerService_GetByReference_NotFound(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.txRepo.EXPECT().GetByReference(ctx, "NOPE").Return(nil, nil)

	txn, err := d.svc.GetByReference(ctx, "NOPE")
	assert.Nil(t, txn)
	assertAppError(t, err, "LED_001")
}

func TestLedgerService_List_NormalizesPagination(t *testing.T) {
	d := setupLedgerService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ownerID := uuid.New()

	d.txRepo.EXPECT().List(ctx, ports.TransactionListParams{
		OwnerID: ownerID, Page: 1, PageSize: 20,
	}).Return([]domain.Transaction{}, int64(0), nil)

	_, total, err := d.svc.List(ctx, ports.TransactionListParams{OwnerID: ownerID, Page: 0, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}
