package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/susupay/backend/internal/models"
)

func newTestEngine(t *testing.T) (*EngineService, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	engine := NewEngineService(db, nil, nil)
	return engine, mock, func() { db.Close() }
}

func expectNoExistingTransaction(mock sqlmock.Sqlmock, txID string) {
	mock.ExpectQuery("SELECT status FROM transactions WHERE id = \\$1").
		WithArgs(txID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
}

func TestEngineService_RecordContribution(t *testing.T) {
	engine, mock, closeDB := newTestEngine(t)
	defer closeDB()

	t.Run("contribution grows the pool by the group amount", func(t *testing.T) {
		expectNoExistingTransaction(mock, "tx1")

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT u.name, u.status, u.verification_status, m.status FROM users u").
			WithArgs("user1", "group1").
			WillReturnRows(sqlmock.NewRows([]string{"name", "status", "verification_status", "m_status"}).
				AddRow("Ama", models.StatusActive, models.VerificationVerified, models.StatusActive))

		mock.ExpectQuery("SELECT contribution_amount, currency FROM groups WHERE id = \\$1 FOR UPDATE").
			WithArgs("group1").
			WillReturnRows(sqlmock.NewRows([]string{"contribution_amount", "currency"}).
				AddRow(500, "GHS"))

		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("tx1", "user1", "Ama", "group1", models.TxContribution, int64(500), "GHS", "", "", models.TxCompleted, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE groups SET total_pool = total_pool \\+ \\$1, updated_at = \\$2 WHERE id = \\$3").
			WithArgs(int64(500), sqlmock.AnyArg(), "group1").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		tx, err := engine.RecordContribution("tx1", "user1", "group1")
		assert.NoError(t, err)
		assert.Equal(t, int64(500), tx.Amount)
		assert.Equal(t, models.TxCompleted, tx.Status)
		assert.Equal(t, models.TxContribution, tx.Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pending user is rejected and nothing commits", func(t *testing.T) {
		expectNoExistingTransaction(mock, "tx2")

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT u.name, u.status, u.verification_status, m.status FROM users u").
			WithArgs("user2", "group1").
			WillReturnRows(sqlmock.NewRows([]string{"name", "status", "verification_status", "m_status"}).
				AddRow("Bene", models.StatusPending, models.VerificationPending, models.StatusActive))

		mock.ExpectRollback()

		_, err := engine.RecordContribution("tx2", "user2", "group1")
		assert.ErrorIs(t, err, ErrInsufficientEligibility)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("suspended membership is rejected even for a verified user", func(t *testing.T) {
		expectNoExistingTransaction(mock, "tx3")

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT u.name, u.status, u.verification_status, m.status FROM users u").
			WithArgs("user3", "group1").
			WillReturnRows(sqlmock.NewRows([]string{"name", "status", "verification_status", "m_status"}).
				AddRow("Cofie", models.StatusActive, models.VerificationVerified, models.StatusSuspended))

		mock.ExpectRollback()

		_, err := engine.RecordContribution("tx3", "user3", "group1")
		assert.ErrorIs(t, err, ErrNotGroupMember)
	})

	t.Run("non-member is rejected", func(t *testing.T) {
		expectNoExistingTransaction(mock, "tx4")

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT u.name, u.status, u.verification_status, m.status FROM users u").
			WithArgs("stranger", "group1").
			WillReturnRows(sqlmock.NewRows([]string{"name", "status", "verification_status", "m_status"}))

		mock.ExpectRollback()

		_, err := engine.RecordContribution("tx4", "stranger", "group1")
		assert.ErrorIs(t, err, ErrNotGroupMember)
	})

	t.Run("re-delivered transaction id is a no-op", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM transactions WHERE id = \\$1").
			WithArgs("tx1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(models.TxCompleted))

		_, err := engine.RecordContribution("tx1", "user1", "group1")
		assert.ErrorIs(t, err, ErrDuplicateTransaction)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEngineService_RecordDeposit(t *testing.T) {
	engine, mock, closeDB := newTestEngine(t)
	defer closeDB()
	ctx := context.Background()

	t.Run("deposit above the cap is rejected before any query", func(t *testing.T) {
		_, err := engine.RecordDeposit(ctx, "dep1", "user1", 15000, ProviderMTN, "0244123456")
		assert.ErrorIs(t, err, ErrAmountOutOfRange)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("phone not matching provider prefix is rejected", func(t *testing.T) {
		_, err := engine.RecordDeposit(ctx, "dep2", "user1", 2000, ProviderVodafone, "0244123456")
		assert.ErrorIs(t, err, ErrInvalidPhoneNumber)
	})

	t.Run("valid deposit is recorded PENDING", func(t *testing.T) {
		expectNoExistingTransaction(mock, "dep3")

		mock.ExpectQuery("SELECT name FROM users WHERE id = \\$1").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Ama"))

		mock.ExpectBegin()

		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("dep3", "user1", "Ama", "", models.TxDeposit, int64(2000), "GHS", ProviderMTN, "0244123456", models.TxPending, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		tx, err := engine.RecordDeposit(ctx, "dep3", "user1", 2000, ProviderMTN, "+233244123456")
		assert.NoError(t, err)
		assert.Equal(t, models.TxPending, tx.Status)
		assert.Equal(t, "0244123456", tx.PhoneNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEngineService_RecordWithdrawal(t *testing.T) {
	engine, mock, closeDB := newTestEngine(t)
	defer closeDB()

	hash, err := hashPassword("correct-horse")
	assert.NoError(t, err)

	userRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"name", "status", "verification_status", "password"}).
			AddRow("Ama", models.StatusActive, models.VerificationVerified, hash)
	}

	t.Run("withdrawal debits the wallet and appends a row", func(t *testing.T) {
		mock.ExpectQuery("SELECT name, status, verification_status, password FROM users WHERE id = \\$1").
			WithArgs("user1").
			WillReturnRows(userRow())

		expectNoExistingTransaction(mock, "wd1")

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT user_id, balance, version, updated_at FROM wallets WHERE user_id = \\$1 FOR UPDATE").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance", "version", "updated_at"}).
				AddRow("user1", 5000, 1, time.Now()))

		mock.ExpectExec("UPDATE wallets SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE user_id = \\$3 AND version = \\$4").
			WithArgs(int64(3000), sqlmock.AnyArg(), "user1", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("INSERT INTO transactions").
			WithArgs("wd1", "user1", "Ama", "", models.TxWithdrawal, int64(2000), "GHS", "", "", models.TxCompleted, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		tx, err := engine.RecordWithdrawal("wd1", "user1", 2000, "correct-horse")
		assert.NoError(t, err)
		assert.Equal(t, models.TxCompleted, tx.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("withdrawal beyond the balance rolls back without a ledger row", func(t *testing.T) {
		mock.ExpectQuery("SELECT name, status, verification_status, password FROM users WHERE id = \\$1").
			WithArgs("user1").
			WillReturnRows(userRow())

		expectNoExistingTransaction(mock, "wd2")

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT user_id, balance, version, updated_at FROM wallets WHERE user_id = \\$1 FOR UPDATE").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance", "version", "updated_at"}).
				AddRow("user1", 1000, 1, time.Now()))

		mock.ExpectRollback()

		_, err := engine.RecordWithdrawal("wd2", "user1", 2000, "correct-horse")
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		mock.ExpectQuery("SELECT name, status, verification_status, password FROM users WHERE id = \\$1").
			WithArgs("user1").
			WillReturnRows(userRow())

		_, err := engine.RecordWithdrawal("wd3", "user1", 500, "wrong")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})

	t.Run("unverified user cannot withdraw", func(t *testing.T) {
		mock.ExpectQuery("SELECT name, status, verification_status, password FROM users WHERE id = \\$1").
			WithArgs("user2").
			WillReturnRows(sqlmock.NewRows([]string{"name", "status", "verification_status", "password"}).
				AddRow("Bene", models.StatusActive, models.VerificationPending, hash))

		_, err := engine.RecordWithdrawal("wd4", "user2", 500, "correct-horse")
		assert.ErrorIs(t, err, ErrInsufficientEligibility)
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		_, err := engine.RecordWithdrawal("wd5", "user1", 0, "correct-horse")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestEngineService_RecordPayout(t *testing.T) {
	engine, mock, closeDB := newTestEngine(t)
	defer closeDB()

	t.Run("payout pays the full pool to the cycle recipient", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT name, total_pool, cycle_number, currency, frequency FROM groups WHERE id = \\$1 FOR UPDATE").
			WithArgs("group1").
			WillReturnRows(sqlmock.NewRows([]string{"name", "total_pool", "cycle_number", "currency", "frequency"}).
				AddRow("Accra Circle", 1500, 2, "GHS", models.FrequencyMonthly))

		mock.ExpectQuery("SELECT m.user_id, u.name, m.position FROM group_members m").
			WithArgs("group1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "position"}).
				AddRow("a", "Ama", 0).
				AddRow("b", "Bene", 1).
				AddRow("c", "Cofie", 2))

		mock.ExpectExec("INSERT INTO transactions").
			WithArgs(sqlmock.AnyArg(), "b", "Bene", "group1", models.TxPayout, int64(1500), "GHS", "", "", models.TxCompleted, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("SELECT user_id, balance, version, updated_at FROM wallets WHERE user_id = \\$1 FOR UPDATE").
			WithArgs("b").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance", "version", "updated_at"}).
				AddRow("b", 0, 1, time.Now()))

		mock.ExpectExec("UPDATE wallets SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE user_id = \\$3 AND version = \\$4").
			WithArgs(int64(1500), sqlmock.AnyArg(), "b", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE groups SET total_pool = 0, cycle_number = cycle_number \\+ 1, next_payout_date = \\$1, updated_at = \\$2 WHERE id = \\$3").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "group1").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		tx, err := engine.RecordPayout("group1")
		assert.NoError(t, err)
		assert.Equal(t, "b", tx.UserID)
		assert.Equal(t, int64(1500), tx.Amount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty pool blocks the payout", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT name, total_pool, cycle_number, currency, frequency FROM groups WHERE id = \\$1 FOR UPDATE").
			WithArgs("group1").
			WillReturnRows(sqlmock.NewRows([]string{"name", "total_pool", "cycle_number", "currency", "frequency"}).
				AddRow("Accra Circle", 0, 3, "GHS", models.FrequencyMonthly))

		mock.ExpectRollback()

		_, err := engine.RecordPayout("group1")
		assert.ErrorIs(t, err, ErrEmptyPool)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEngineService_ResolveDeposit(t *testing.T) {
	engine, mock, closeDB := newTestEngine(t)
	defer closeDB()

	t.Run("approving a pending deposit credits the wallet and audits", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, user_id, user_name, type, amount, status FROM transactions WHERE id = \\$1 FOR UPDATE").
			WithArgs("dep1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "user_name", "type", "amount", "status"}).
				AddRow("dep1", "user1", "Ama", models.TxDeposit, 2500, models.TxPending))

		mock.ExpectExec("UPDATE transactions SET status = \\$1 WHERE id = \\$2 AND status = \\$3").
			WithArgs(models.TxCompleted, "dep1", models.TxPending).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("SELECT user_id, balance, version, updated_at FROM wallets WHERE user_id = \\$1 FOR UPDATE").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "balance", "version", "updated_at"}).
				AddRow("user1", 500, 1, time.Now()))

		mock.ExpectExec("UPDATE wallets SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE user_id = \\$3 AND version = \\$4").
			WithArgs(int64(3000), sqlmock.AnyArg(), "user1", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("INSERT INTO audit_logs").
			WithArgs(sqlmock.AnyArg(), "user1", "Ama", models.AuditModified, sqlmock.AnyArg(), "admin1", "Admin", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		err := engine.ResolveDeposit("dep1", "admin1", "Admin", true, "Provider callback received")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("declining marks the deposit FAILED without touching the wallet", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, user_id, user_name, type, amount, status FROM transactions WHERE id = \\$1 FOR UPDATE").
			WithArgs("dep2").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "user_name", "type", "amount", "status"}).
				AddRow("dep2", "user1", "Ama", models.TxDeposit, 2500, models.TxPending))

		mock.ExpectExec("UPDATE transactions SET status = \\$1 WHERE id = \\$2 AND status = \\$3").
			WithArgs(models.TxFailed, "dep2", models.TxPending).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("INSERT INTO audit_logs").
			WithArgs(sqlmock.AnyArg(), "user1", "Ama", models.AuditModified, sqlmock.AnyArg(), "admin1", "Admin", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		err := engine.ResolveDeposit("dep2", "admin1", "Admin", false, "Callback timed out")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a settled deposit cannot be resolved again", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, user_id, user_name, type, amount, status FROM transactions WHERE id = \\$1 FOR UPDATE").
			WithArgs("dep1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "user_name", "type", "amount", "status"}).
				AddRow("dep1", "user1", "Ama", models.TxDeposit, 2500, models.TxCompleted))

		mock.ExpectRollback()

		err := engine.ResolveDeposit("dep1", "admin1", "Admin", true, "Retry")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}
