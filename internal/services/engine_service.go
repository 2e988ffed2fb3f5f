package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/susupay/backend/internal/config"
	"github.com/susupay/backend/internal/models"
)

// EngineService validates and records all five transaction types. It is
// the only caller of the pool ledger's mutation paths.
type EngineService struct {
	db        *sql.DB
	redis     *redis.Client
	cfg       *config.EngineConfig
	ledger    *PoolLedgerService
	rotation  *RotationService
	audit     *AuditService
	chat      *ChatService
	validator *ValidationHelper
}

func NewEngineService(db *sql.DB, redisClient *redis.Client, chat *ChatService) *EngineService {
	return &EngineService{
		db:        db,
		redis:     redisClient,
		cfg:       config.LoadEngineConfig(),
		ledger:    NewPoolLedgerService(db),
		rotation:  NewRotationService(db),
		audit:     NewAuditService(db),
		chat:      chat,
		validator: NewValidationHelper(),
	}
}

// Ledger exposes the pool ledger for read paths (wallet balance).
func (e *EngineService) Ledger() *PoolLedgerService {
	return e.ledger
}

// eligibleMember loads a user's group-scoped eligibility inside an open
// transaction: platform status, KYC status and membership status must all
// allow transacting.
func (e *EngineService) eligibleMember(tx *sql.Tx, userID, groupID string) (string, error) {
	var name string
	var status models.UserStatus
	var verification models.VerificationStatus
	var memberStatus models.UserStatus

	err := tx.QueryRow(`
        SELECT u.name, u.status, u.verification_status, m.status
        FROM users u
        JOIN group_members m ON m.user_id = u.id AND m.group_id = $2
        WHERE u.id = $1
    `, userID, groupID).Scan(&name, &status, &verification, &memberStatus)

	if err == sql.ErrNoRows {
		return "", ErrNotGroupMember
	}
	if err != nil {
		return "", err
	}

	if status != models.StatusActive || verification != models.VerificationVerified {
		return "", ErrInsufficientEligibility
	}
	if memberStatus != models.StatusActive {
		return "", ErrNotGroupMember
	}

	return name, nil
}

// RecordContribution appends a COMPLETED contribution for the group's
// fixed amount and increments the pool, atomically.
func (e *EngineService) RecordContribution(txID, userID, groupID string) (*models.Transaction, error) {
	if txID == "" {
		txID = uuid.New().String()
	}

	if _, exists, err := e.ledger.TransactionStatusByID(txID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateTransaction
	}

	dbTx, err := e.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	userName, err := e.eligibleMember(dbTx, userID, groupID)
	if err != nil {
		return nil, err
	}

	var amount int64
	var currency string
	err = dbTx.QueryRow(`
        SELECT contribution_amount, currency FROM groups WHERE id = $1 FOR UPDATE
    `, groupID).Scan(&amount, &currency)
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		ID:       txID,
		UserID:   userID,
		UserName: userName,
		GroupID:  groupID,
		Type:     models.TxContribution,
		Amount:   amount,
		Currency: currency,
		Status:   models.TxCompleted,
	}

	if err := e.ledger.AppendTx(dbTx, t); err != nil {
		return nil, err
	}

	if err := e.ledger.AddToPoolTx(dbTx, groupID, amount); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[ENGINE] Contribution %s recorded: user=%s group=%s amount=%d", txID, userID, groupID, amount)
	return t, nil
}

// RecordDeposit appends a PENDING mobile-money deposit. The wallet is only
// credited once an admin confirms the provider callback via ResolveDeposit.
func (e *EngineService) RecordDeposit(ctx context.Context, txID, userID string, amount int64, provider, phoneNumber string) (*models.Transaction, error) {
	if amount < e.cfg.DepositMin || amount > e.cfg.DepositMax {
		return nil, fmt.Errorf("%w: deposit must be between %d and %d", ErrAmountOutOfRange, e.cfg.DepositMin, e.cfg.DepositMax)
	}

	normalized, err := ValidateProviderPhone(provider, phoneNumber)
	if err != nil {
		return nil, err
	}

	if err := e.checkDepositRateLimit(ctx, userID); err != nil {
		return nil, err
	}

	if txID == "" {
		txID = uuid.New().String()
	}

	if _, exists, err := e.ledger.TransactionStatusByID(txID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateTransaction
	}

	var userName string
	if err := e.db.QueryRow(`SELECT name FROM users WHERE id = $1`, userID).Scan(&userName); err != nil {
		return nil, err
	}

	dbTx, err := e.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	t := &models.Transaction{
		ID:          txID,
		UserID:      userID,
		UserName:    userName,
		Type:        models.TxDeposit,
		Amount:      amount,
		Currency:    e.cfg.DefaultCurrency,
		Provider:    provider,
		PhoneNumber: normalized,
		Status:      models.TxPending,
	}

	if err := e.ledger.AppendTx(dbTx, t); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	e.incrementDepositRateLimit(ctx, userID)

	log.Printf("[ENGINE] Deposit %s pending: user=%s amount=%d provider=%s phone=%s",
		txID, userID, amount, provider, FormatPhoneDisplay(normalized))
	return t, nil
}

// RecordWithdrawal verifies the user's password against the stored argon2
// credential, debits the wallet, and appends a COMPLETED withdrawal. If
// funds are short the transaction rolls back and no row is appended.
func (e *EngineService) RecordWithdrawal(txID, userID string, amount int64, password string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var userName, passwordHash string
	var status models.UserStatus
	var verification models.VerificationStatus
	err := e.db.QueryRow(`
        SELECT name, status, verification_status, password FROM users WHERE id = $1
    `, userID).Scan(&userName, &status, &verification, &passwordHash)
	if err != nil {
		return nil, err
	}

	if status != models.StatusActive || verification != models.VerificationVerified {
		return nil, ErrInsufficientEligibility
	}

	if !verifyPassword(password, passwordHash) {
		return nil, ErrInvalidPassword
	}

	if txID == "" {
		txID = uuid.New().String()
	}

	if _, exists, err := e.ledger.TransactionStatusByID(txID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateTransaction
	}

	dbTx, err := e.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	if err := e.ledger.DebitWalletTx(dbTx, userID, amount); err != nil {
		return nil, err
	}

	t := &models.Transaction{
		ID:       txID,
		UserID:   userID,
		UserName: userName,
		Type:     models.TxWithdrawal,
		Amount:   amount,
		Currency: e.cfg.DefaultCurrency,
		Status:   models.TxCompleted,
	}

	if err := e.ledger.AppendTx(dbTx, t); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	if err := e.queueForSettlement(t); err != nil {
		log.Printf("[ENGINE] Failed to queue withdrawal %s for settlement: %v", txID, err)
	}

	log.Printf("[ENGINE] Withdrawal %s recorded: user=%s amount=%d", txID, userID, amount)
	return t, nil
}

// RecordPayout pays the current cycle's recipient the full pool and
// advances the rotation, all in one database transaction.
func (e *EngineService) RecordPayout(groupID string) (*models.Transaction, error) {
	dbTx, err := e.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	var groupName, currency string
	var frequency models.Frequency
	var pool int64
	var cycleNumber int
	err = dbTx.QueryRow(`
        SELECT name, total_pool, cycle_number, currency, frequency FROM groups WHERE id = $1 FOR UPDATE
    `, groupID).Scan(&groupName, &pool, &cycleNumber, &currency, &frequency)
	if err != nil {
		return nil, err
	}

	if pool <= 0 {
		return nil, ErrEmptyPool
	}

	schedule, err := e.rotation.scheduleTx(dbTx, groupID)
	if err != nil {
		return nil, err
	}

	recipient, err := NextForCycle(schedule, cycleNumber)
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		ID:       uuid.New().String(),
		UserID:   recipient.UserID,
		UserName: recipient.UserName,
		GroupID:  groupID,
		Type:     models.TxPayout,
		Amount:   pool,
		Currency: currency,
		Status:   models.TxCompleted,
	}

	if err := e.ledger.AppendTx(dbTx, t); err != nil {
		return nil, err
	}

	if err := e.ledger.CreditWalletTx(dbTx, recipient.UserID, pool); err != nil {
		return nil, err
	}

	nextPayoutAt := time.Now().Add(frequency.PayoutInterval())
	if err := e.ledger.DrainPoolTx(dbTx, groupID, nextPayoutAt); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[ENGINE] Payout %s completed: group=%s recipient=%s amount=%d cycle=%d",
		t.ID, groupID, recipient.UserID, pool, cycleNumber)

	if e.chat != nil {
		notice := fmt.Sprintf("Cycle %d payout of %d %s went to %s", cycleNumber, pool, currency, recipient.UserName)
		if err := e.chat.PostSystemMessage(groupID, notice); err != nil {
			log.Printf("[ENGINE] Failed to post payout notice for group %s: %v", groupID, err)
		}
	}

	return t, nil
}

// RecordFee debits a platform fee from a user's wallet.
func (e *EngineService) RecordFee(txID, userID string, amount int64) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if txID == "" {
		txID = uuid.New().String()
	}

	if _, exists, err := e.ledger.TransactionStatusByID(txID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateTransaction
	}

	var userName string
	if err := e.db.QueryRow(`SELECT name FROM users WHERE id = $1`, userID).Scan(&userName); err != nil {
		return nil, err
	}

	dbTx, err := e.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	if err := e.ledger.DebitWalletTx(dbTx, userID, amount); err != nil {
		return nil, err
	}

	t := &models.Transaction{
		ID:       txID,
		UserID:   userID,
		UserName: userName,
		Type:     models.TxFee,
		Amount:   amount,
		Currency: e.cfg.DefaultCurrency,
		Status:   models.TxCompleted,
	}

	if err := e.ledger.AppendTx(dbTx, t); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[ENGINE] Fee %s recorded: user=%s amount=%d", txID, userID, amount)
	return t, nil
}

// ResolveDeposit settles a PENDING deposit: approve credits the wallet and
// completes the row, decline marks it FAILED. Audited either way.
func (e *EngineService) ResolveDeposit(txID, adminID, adminName string, approve bool, reason string) error {
	dbTx, err := e.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	var t models.Transaction
	err = dbTx.QueryRow(`
        SELECT id, user_id, user_name, type, amount, status
        FROM transactions
        WHERE id = $1
        FOR UPDATE
    `, txID).Scan(&t.ID, &t.UserID, &t.UserName, &t.Type, &t.Amount, &t.Status)
	if err != nil {
		return err
	}

	if t.Type != models.TxDeposit || t.Status != models.TxPending {
		return ErrInvalidTransition
	}

	if approve {
		if err := e.ledger.CompleteDepositTx(dbTx, &t); err != nil {
			return err
		}
	} else {
		if err := e.ledger.FailPendingTx(dbTx, txID); err != nil {
			return err
		}
	}

	outcome := "confirmed"
	if !approve {
		outcome = "declined"
	}
	entry := &models.AuditLog{
		UserID:    t.UserID,
		UserName:  t.UserName,
		Action:    models.AuditModified,
		Reason:    fmt.Sprintf("Deposit %s %s: %s", txID, outcome, reason),
		AdminID:   adminID,
		AdminName: adminName,
	}
	if err := e.audit.RecordTx(dbTx, entry); err != nil {
		return err
	}

	return dbTx.Commit()
}

// Redis-backed deposit rate limiting; skipped when Redis is unavailable.

func (e *EngineService) checkDepositRateLimit(ctx context.Context, userID string) error {
	if e.redis == nil {
		return nil
	}
	key := fmt.Sprintf("deposit:ratelimit:%s", userID)
	count, err := e.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		return err
	}
	if count >= e.cfg.MaxDepositsPerUser {
		return ErrRateLimited
	}
	return nil
}

func (e *EngineService) incrementDepositRateLimit(ctx context.Context, userID string) {
	if e.redis == nil {
		return
	}
	key := fmt.Sprintf("deposit:ratelimit:%s", userID)
	pipe := e.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, e.cfg.RateLimitWindow)
	pipe.Exec(ctx)
}

func (e *EngineService) queueForSettlement(t *models.Transaction) error {
	if e.redis == nil {
		return nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return e.redis.RPush(context.Background(), e.cfg.SettlementQueue, data).Err()
}

// HTTP handlers

// Contribute records the caller's contribution for a group
// @Summary Pay a contribution
// @Description Record the fixed contribution for the authenticated member and grow the group pool
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param request body object{id=string} false "Optional client-generated transaction id"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /groups/{groupId}/contribute [post]
func (e *EngineService) Contribute(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	groupID := chi.URLParam(r, "groupId")

	var req struct {
		ID string `json:"id"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1_048_576))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
			return
		}
	}

	t, err := e.RecordContribution(req.ID, userID, groupID)
	if err != nil {
		e.writeEngineError(w, "contribution", req.ID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": t,
	})
}

// Payout triggers the current cycle's payout for a group
// @Summary Trigger group payout
// @Description Pay the full pool to the rotation's current recipient and advance the cycle
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 201 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /groups/{groupId}/payout [post]
func (e *EngineService) Payout(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	t, err := e.RecordPayout(groupID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Group not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		e.writeEngineError(w, "payout", groupID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": t,
	})
}

// CreateTransaction is the generic ledger entry point per the external
// contract; it dispatches on the transaction type
// @Summary Create a transaction
// @Description Record a transaction of any type (dispatches to the matching engine operation)
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{id=string,userId=string,type=string,amount=int64,groupId=string,provider=string,phoneNumber=string,password=string} true "Transaction data"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /transactions [post]
func (e *EngineService) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("userID").(string)
	callerRole, _ := r.Context().Value("role").(string)

	var req struct {
		ID          string                 `json:"id"`
		UserID      string                 `json:"userId"`
		Type        models.TransactionType `json:"type" validate:"required,oneof=CONTRIBUTION PAYOUT WITHDRAWAL DEPOSIT FEE"`
		Amount      int64                  `json:"amount"`
		GroupID     string                 `json:"groupId"`
		Provider    string                 `json:"provider"`
		PhoneNumber string                 `json:"phoneNumber"`
		Password    string                 `json:"password"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := e.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	// Members may only transact for themselves; admins may act on behalf
	// of any user.
	userID := callerID
	if req.UserID != "" && req.UserID != callerID {
		if callerRole != string(models.RoleAdmin) && callerRole != string(models.RoleSuperuser) {
			SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
			return
		}
		userID = req.UserID
	}

	var t *models.Transaction
	var err error
	switch req.Type {
	case models.TxContribution:
		t, err = e.RecordContribution(req.ID, userID, req.GroupID)
	case models.TxDeposit:
		t, err = e.RecordDeposit(r.Context(), req.ID, userID, req.Amount, req.Provider, req.PhoneNumber)
	case models.TxWithdrawal:
		t, err = e.RecordWithdrawal(req.ID, userID, req.Amount, req.Password)
	case models.TxPayout:
		if callerRole != string(models.RoleAdmin) && callerRole != string(models.RoleSuperuser) {
			SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
			return
		}
		t, err = e.RecordPayout(req.GroupID)
	case models.TxFee:
		if callerRole != string(models.RoleSuperuser) {
			SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
			return
		}
		t, err = e.RecordFee(req.ID, userID, req.Amount)
	}

	if err != nil {
		e.writeEngineError(w, string(req.Type), req.ID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": t,
	})
}

// ListUserTransactions returns a user's ledger rows, newest first
// @Summary List a user's transactions
// @Description Get transactions for a user with optional type/status filters
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param type query string false "Filter by transaction type"
// @Param status query string false "Filter by status"
// @Param limit query int false "Number of rows (default: 50, max: 200)"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /transactions/{userId} [get]
func (e *EngineService) ListUserTransactions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	txType := r.URL.Query().Get("type")
	status := r.URL.Query().Get("status")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	query := `
        SELECT id, user_id, user_name, COALESCE(group_id, ''), type, amount, currency,
               COALESCE(provider, ''), COALESCE(phone_number, ''), status, created_at
        FROM transactions
        WHERE user_id = $1`
	args := []any{userID}

	if txType != "" {
		args = append(args, txType)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := e.db.Query(query, args...)
	if err != nil {
		log.Printf("[ENGINE] Failed to list transactions for %s: %v", userID, err)
		SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.UserName, &t.GroupID, &t.Type, &t.Amount, &t.Currency,
			&t.Provider, &t.PhoneNumber, &t.Status, &t.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
			return
		}
		transactions = append(transactions, t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// ConfirmDeposit settles a pending deposit
// @Summary Confirm or decline a pending deposit
// @Description Advance a PENDING deposit to COMPLETED (crediting the wallet) or FAILED
// @Tags transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param txId path string true "Transaction ID"
// @Param request body object{approve=bool,reason=string} true "Resolution"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /transactions/{txId}/confirm [put]
func (e *EngineService) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	adminID, _ := r.Context().Value("userID").(string)
	txID := chi.URLParam(r, "txId")

	var req struct {
		Approve bool   `json:"approve"`
		Reason  string `json:"reason" validate:"required,min=3,max=200"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := e.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var adminName string
	if err := e.db.QueryRow(`SELECT name FROM users WHERE id = $1`, adminID).Scan(&adminName); err != nil {
		adminName = adminID
	}

	err := e.ResolveDeposit(txID, adminID, adminName, req.Approve, req.Reason)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		e.writeEngineError(w, "deposit confirmation", txID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Deposit resolved"})
}

// writeEngineError maps engine failures onto the error taxonomy. A
// duplicate id is reported as already-processed so re-delivery stays
// idempotent from the client's point of view.
func (e *EngineService) writeEngineError(w http.ResponseWriter, op, id string, err error) {
	if errors.Is(err, ErrDuplicateTransaction) {
		log.Printf("[ENGINE] Duplicate %s detected: %s", op, id)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"message": "Transaction already processed",
		})
		return
	}

	statusCode := StatusForError(err)
	if statusCode == http.StatusInternalServerError {
		log.Printf("[ENGINE] %s failed: %v", op, err)
		SendErrorResponse(w, "Failed to process transaction", statusCode, nil)
		return
	}

	log.Printf("[ENGINE] %s rejected: %v", op, err)
	SendErrorResponse(w, err.Error(), statusCode, nil)
}
