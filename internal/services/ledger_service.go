package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/susupay/backend/internal/models"
)

// PoolLedgerService owns every mutation of transactions, wallet balances
// and group pools. All writes happen inside the caller's SQL transaction:
// the ledger row and the balance it implies commit atomically, so two
// concurrent contributions can never overwrite each other's pool
// increment. No other component may touch these tables.
type PoolLedgerService struct {
	db *sql.DB
}

func NewPoolLedgerService(db *sql.DB) *PoolLedgerService {
	return &PoolLedgerService{db: db}
}

// TransactionStatusByID reports the stored status for an id, used for
// idempotent re-delivery: a known id is never processed twice.
func (s *PoolLedgerService) TransactionStatusByID(txID string) (models.TransactionStatus, bool, error) {
	var status models.TransactionStatus
	err := s.db.QueryRow(`SELECT status FROM transactions WHERE id = $1`, txID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return status, true, nil
}

// AppendTx inserts one ledger row. Amounts must already be validated
// positive; rows are append-only and never updated except for the
// PENDING -> COMPLETED/FAILED status advance. A primary-key collision
// means a concurrent delivery of the same id won the race, so it is
// reported as the duplicate it is rather than a storage failure.
func (s *PoolLedgerService) AppendTx(tx *sql.Tx, t *models.Transaction) error {
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	t.CreatedAt = time.Now()

	_, err := tx.Exec(`
        INSERT INTO transactions (id, user_id, user_name, group_id, type, amount, currency, provider, phone_number, status, created_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)
    `, t.ID, t.UserID, t.UserName, t.GroupID, t.Type, t.Amount, t.Currency, t.Provider, t.PhoneNumber, t.Status, t.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateTransaction
	}
	return err
}

// lockWallet loads a wallet row FOR UPDATE.
func (s *PoolLedgerService) lockWallet(tx *sql.Tx, userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.QueryRow(`
        SELECT user_id, balance, version, updated_at
        FROM wallets
        WHERE user_id = $1
        FOR UPDATE`, userID).Scan(&wallet.UserID, &wallet.Balance, &wallet.Version, &wallet.UpdatedAt)

	return &wallet, err
}

func (s *PoolLedgerService) updateWalletBalance(tx *sql.Tx, userID string, newBalance int64, version int) error {
	if newBalance < 0 {
		return ErrInsufficientBalance
	}

	result, err := tx.Exec(`
        UPDATE wallets
        SET balance = $1, version = version + 1, updated_at = $2
        WHERE user_id = $3 AND version = $4`,
		newBalance, time.Now(), userID, version)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return fmt.Errorf("optimistic lock failed for wallet %s", userID)
	}

	return nil
}

// CreditWalletTx adds to a user's maintained balance.
func (s *PoolLedgerService) CreditWalletTx(tx *sql.Tx, userID string, amount int64) error {
	wallet, err := s.lockWallet(tx, userID)
	if err != nil {
		return err
	}
	return s.updateWalletBalance(tx, userID, wallet.Balance+amount, wallet.Version)
}

// DebitWalletTx subtracts from a user's maintained balance, failing with
// ErrInsufficientBalance before any row is written when funds are short.
func (s *PoolLedgerService) DebitWalletTx(tx *sql.Tx, userID string, amount int64) error {
	wallet, err := s.lockWallet(tx, userID)
	if err != nil {
		return err
	}

	if wallet.Balance < amount {
		return ErrInsufficientBalance
	}

	return s.updateWalletBalance(tx, userID, wallet.Balance-amount, wallet.Version)
}

// AddToPoolTx increments a group pool atomically in the database; the
// read-modify-write never happens client-side.
func (s *PoolLedgerService) AddToPoolTx(tx *sql.Tx, groupID string, amount int64) error {
	result, err := tx.Exec(`
        UPDATE groups
        SET total_pool = total_pool + $1, updated_at = $2
        WHERE id = $3`,
		amount, time.Now(), groupID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// DrainPoolTx zeroes a locked group's pool and advances its cycle. The
// caller must already hold the group row FOR UPDATE so the payout amount
// and the reset agree.
func (s *PoolLedgerService) DrainPoolTx(tx *sql.Tx, groupID string, nextPayoutAt time.Time) error {
	_, err := tx.Exec(`
        UPDATE groups
        SET total_pool = 0, cycle_number = cycle_number + 1, next_payout_date = $1, updated_at = $2
        WHERE id = $3`,
		nextPayoutAt, time.Now(), groupID)
	return err
}

// CompleteDepositTx advances one PENDING deposit to COMPLETED and credits
// the wallet in the same transaction.
func (s *PoolLedgerService) CompleteDepositTx(tx *sql.Tx, t *models.Transaction) error {
	_, err := tx.Exec(`
        UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3`,
		models.TxCompleted, t.ID, models.TxPending)
	if err != nil {
		return err
	}
	return s.CreditWalletTx(tx, t.UserID, t.Amount)
}

// FailPendingTx marks a PENDING transaction FAILED. COMPLETED rows are
// immutable and are never touched by this path.
func (s *PoolLedgerService) FailPendingTx(tx *sql.Tx, txID string) error {
	result, err := tx.Exec(`
        UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3`,
		models.TxFailed, txID, models.TxPending)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// RecomputeWalletBalance derives the balance from the full COMPLETED
// ledger: payouts + deposits - withdrawals - contributions - fees. Used to
// verify the maintained wallet row, never as the serving path.
func (s *PoolLedgerService) RecomputeWalletBalance(userID string) (int64, error) {
	var balance int64
	err := s.db.QueryRow(`
        SELECT COALESCE(SUM(CASE WHEN type IN ('PAYOUT', 'DEPOSIT') THEN amount ELSE -amount END), 0)
        FROM transactions
        WHERE user_id = $1 AND status = 'COMPLETED'
    `, userID).Scan(&balance)
	return balance, err
}

// WalletBalance reads the maintained balance for a user.
func (s *PoolLedgerService) WalletBalance(userID string) (int64, error) {
	var balance int64
	err := s.db.QueryRow(`SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}
