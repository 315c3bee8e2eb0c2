package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.wallets {
		if existing.OwnerID == w.OwnerID {
			return ports.ErrUniqueViolation
		}
	}
	cp := *w
	r.wallets[w.ID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.OwnerID == ownerID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) GetByOwnerIDForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByOwnerID(ctx, ownerID)
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

// UpdateBalance enforces the version check atomically, so concurrent
// writers detect each other the same way the SQL implementation does.
// There is no row lock here: losers get ErrVersionConflict instead of
// waiting, which the concurrency tests rely on.
func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, params ports.UpdateBalanceParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[params.WalletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	if w.Version != params.ExpectedVersion {
		return ports.ErrVersionConflict
	}
	w.EncryptedBalance = params.EncryptedBalance
	w.LastUpdatedBy = params.UpdatedBy
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryWalletRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus, actor domain.ActorTag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.Status = status
	w.LastUpdatedBy = actor
	return nil
}

func (r *inMemoryWalletRepo) UpdateRiskScore(ctx context.Context, id uuid.UUID, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	w.RiskScore = score
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[uuid.UUID]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.transactions {
		if existing.Reference == t.Reference {
			return ports.ErrUniqueViolation
		}
	}
	cp := *t
	r.transactions[t.ID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.transactions {
		if t.Reference == reference {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok {
		return ports.ErrVersionConflict
	}
	allowed := t.Status == domain.TransactionStatusPending ||
		(t.Status == domain.TransactionStatusCompleted && status == domain.TransactionStatusReversed)
	if !allowed {
		return ports.ErrVersionConflict
	}
	t.Status = status
	if t.ProcessedAt == nil {
		now := time.Now().UTC()
		t.ProcessedAt = &now
	}
	return nil
}

func (r *inMemoryTransactionRepo) CheckRefundExists(ctx context.Context, originalTxID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.transactions {
		if t.RefundOfTransactionID != nil && *t.RefundOfTransactionID == originalTxID &&
			t.Type == domain.TransactionTypeRefund && t.Status != domain.TransactionStatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryTransactionRepo) CountCompletedSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, t := range r.transactions {
		if t.OwnerID == ownerID && t.Status == domain.TransactionStatusCompleted && t.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryTransactionRepo) RecentAggregate(ctx context.Context, ownerID uuid.UUID, limit int) (*ports.TransactionAggregate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var recent []*domain.Transaction
	for _, t := range r.transactions {
		if t.OwnerID == ownerID && t.Status == domain.TransactionStatusCompleted {
			recent = append(recent, t)
		}
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })
	if len(recent) > limit {
		recent = recent[:limit]
	}

	agg := &ports.TransactionAggregate{Count: int64(len(recent))}
	if len(recent) == 0 {
		return agg, nil
	}
	var sum int64
	for _, t := range recent {
		sum += t.Amount
	}
	agg.AverageAmount = sum / int64(len(recent))
	last := recent[0].CreatedAt
	agg.LastCreatedAt = &last
	return agg, nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if t.OwnerID != params.OwnerID {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		if params.From != nil && t.CreatedAt.Unix() < *params.From {
			continue
		}
		if params.To != nil && t.CreatedAt.Unix() > *params.To {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	total := int64(len(result))

	page, pageSize := params.Page, params.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + pageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory OTP Repo ---

type inMemoryOTPRepo struct {
	mu    sync.Mutex
	codes map[uuid.UUID]*domain.OneTimeCode
}

func newInMemoryOTPRepo() *inMemoryOTPRepo {
	return &inMemoryOTPRepo{codes: make(map[uuid.UUID]*domain.OneTimeCode)}
}

func (r *inMemoryOTPRepo) Create(ctx context.Context, code *domain.OneTimeCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *code
	r.codes[code.ID] = &cp
	return nil
}

func (r *inMemoryOTPRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.OneTimeCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *inMemoryOTPRepo) RegisterFailedAttempt(ctx context.Context, id uuid.UUID, lockedUntil time.Time) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok {
		return 0, false, fmt.Errorf("code not found")
	}
	c.Attempts++
	if c.Attempts >= c.MaxAttempts {
		c.IsLocked = true
		lu := lockedUntil
		c.LockedUntil = &lu
	}
	return c.Attempts, c.IsLocked, nil
}

func (r *inMemoryOTPRepo) MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok || c.IsUsed || c.IsLocked || c.Attempts >= c.MaxAttempts {
		return false, nil
	}
	c.IsUsed = true
	ua := usedAt
	c.UsedAt = &ua
	return true, nil
}

func (r *inMemoryOTPRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.codes {
		if c.ExpiresAt.Before(cutoff) {
			delete(r.codes, id)
			n++
		}
	}
	return n, nil
}

// --- In-Memory Fraud Log Repo ---

type inMemoryFraudRepo struct {
	mu   sync.RWMutex
	logs map[uuid.UUID]*domain.FraudLog
}

func newInMemoryFraudRepo() *inMemoryFraudRepo {
	return &inMemoryFraudRepo{logs: make(map[uuid.UUID]*domain.FraudLog)}
}

func (r *inMemoryFraudRepo) Create(ctx context.Context, log *domain.FraudLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.logs[log.ID] = &cp
	return nil
}

func (r *inMemoryFraudRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FraudLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logs[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *inMemoryFraudRepo) HasUnresolvedBlocking(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.logs {
		if l.OwnerID == ownerID && !l.Resolved && l.Action.IsBlocking() {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryFraudRepo) Resolve(ctx context.Context, id uuid.UUID, resolverID uuid.UUID, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return fmt.Errorf("fraud log not found")
	}
	l.Resolved = true
	l.ResolvedBy = &resolverID
	l.ResolutionNotes = &notes
	return nil
}

func (r *inMemoryFraudRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.FraudLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.FraudLog
	for _, l := range r.logs {
		if l.OwnerID == ownerID {
			result = append(result, *l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// --- In-Memory Provider Payment Repo ---

type inMemoryProviderRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.ExternalPaymentRecord
}

func newInMemoryProviderRepo() *inMemoryProviderRepo {
	return &inMemoryProviderRepo{records: make(map[uuid.UUID]*domain.ExternalPaymentRecord)}
}

func (r *inMemoryProviderRepo) Create(ctx context.Context, record *domain.ExternalPaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.ProviderReference == record.ProviderReference || existing.IdempotencyKey == record.IdempotencyKey {
			return ports.ErrUniqueViolation
		}
	}
	cp := *record
	r.records[record.ID] = &cp
	return nil
}

func (r *inMemoryProviderRepo) GetByProviderReference(ctx context.Context, providerReference string) (*domain.ExternalPaymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.ProviderReference == providerReference {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryProviderRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.ExternalPaymentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.IdempotencyKey == key {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryProviderRepo) MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID, ledgerTxID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("payment record not found")
	}
	rec.VerificationStatus = domain.VerificationStatusVerified
	rec.LedgerTransactionID = &ledgerTxID
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryProviderRepo) MarkFailed(ctx context.Context, id uuid.UUID, provErr domain.ProviderError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("payment record not found")
	}
	rec.VerificationStatus = domain.VerificationStatusFailed
	rec.Error = &provErr
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-Memory Idempotency Repo ---

type inMemoryIdempotencyRepo struct {
	mu   sync.RWMutex
	logs map[string]*domain.IdempotencyLog
}

func newInMemoryIdempotencyRepo() *inMemoryIdempotencyRepo {
	return &inMemoryIdempotencyRepo{logs: make(map[string]*domain.IdempotencyLog)}
}

func (r *inMemoryIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.logs[log.Key] = &cp
	return nil
}

func (r *inMemoryIdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logs[key]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
