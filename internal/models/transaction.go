package models

import "time"

// TransactionType discriminates ledger rows.
type TransactionType string

const (
	TxContribution TransactionType = "CONTRIBUTION"
	TxPayout       TransactionType = "PAYOUT"
	TxWithdrawal   TransactionType = "WITHDRAWAL"
	TxDeposit      TransactionType = "DEPOSIT"
	TxFee          TransactionType = "FEE"
)

// TransactionStatus advances PENDING -> COMPLETED or PENDING -> FAILED and
// never reverses. Only COMPLETED rows count toward balances.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxCompleted TransactionStatus = "COMPLETED"
	TxFailed    TransactionStatus = "FAILED"
)

// Transaction is one append-only ledger row. Amounts are int64 minor
// currency units (pesewas) and must be positive; corrections are new
// offsetting rows, never edits. ID is client-generated where the caller
// supplies one, so re-delivery of the same ID is a no-op.
type Transaction struct {
	ID          string            `json:"id" db:"id"`
	UserID      string            `json:"userId" db:"user_id"`
	UserName    string            `json:"userName" db:"user_name"`
	GroupID     string            `json:"groupId,omitempty" db:"group_id"`
	Type        TransactionType   `json:"type" db:"type"`
	Amount      int64             `json:"amount" db:"amount"`
	Currency    string            `json:"currency" db:"currency"`
	Provider    string            `json:"provider,omitempty" db:"provider"`
	PhoneNumber string            `json:"phoneNumber,omitempty" db:"phone_number"`
	Status      TransactionStatus `json:"status" db:"status"`
	CreatedAt   time.Time         `json:"date" db:"created_at"`
}

// Wallet is the incrementally maintained balance for one user, guarded by
// the pool ledger's single mutation path. Version implements optimistic
// locking; a full recomputation over COMPLETED transactions exists for
// verification.
type Wallet struct {
	UserID    string    `json:"userId" db:"user_id"`
	Balance   int64     `json:"balance" db:"balance"`
	Version   int       `json:"version" db:"version"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
