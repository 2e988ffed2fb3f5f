package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/susupay/backend/internal/models"
)

const backupVersion = 1

// BackupSnapshot is the portable export format. Transactions are included
// so a restore carries the full ledger history.
type BackupSnapshot struct {
	Version      int                      `json:"version"`
	Timestamp    time.Time                `json:"timestamp"`
	Groups       []models.Group           `json:"groups"`
	Members      []models.GroupMembership `json:"members"`
	Transactions []models.Transaction     `json:"transactions"`
	Messages     []models.GroupMessage    `json:"messages"`
}

// BackupService exports and restores group data snapshots.
type BackupService struct {
	db *sql.DB
}

func NewBackupService(db *sql.DB) *BackupService {
	return &BackupService{db: db}
}

// Export builds a snapshot of all groups, memberships, transactions and
// messages.
func (s *BackupService) Export() (*BackupSnapshot, error) {
	snapshot := &BackupSnapshot{
		Version:      backupVersion,
		Timestamp:    time.Now().UTC(),
		Groups:       []models.Group{},
		Members:      []models.GroupMembership{},
		Transactions: []models.Transaction{},
		Messages:     []models.GroupMessage{},
	}

	rows, err := s.db.Query(`
        SELECT id, name, contribution_amount, currency, frequency, total_pool, cycle_number,
               invite_code, members_count, next_payout_date, created_at, updated_at
        FROM groups ORDER BY created_at
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.ContributionAmount, &g.Currency, &g.Frequency, &g.TotalPool,
			&g.CycleNumber, &g.InviteCode, &g.MembersCount, &g.NextPayoutDate, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		snapshot.Groups = append(snapshot.Groups, g)
	}

	memberRows, err := s.db.Query(`
        SELECT group_id, user_id, role, status, position, join_date, reliability_score
        FROM group_members ORDER BY group_id, position
    `)
	if err != nil {
		return nil, err
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var m models.GroupMembership
		if err := memberRows.Scan(&m.GroupID, &m.UserID, &m.Role, &m.Status, &m.Position, &m.JoinDate, &m.ReliabilityScore); err != nil {
			return nil, err
		}
		snapshot.Members = append(snapshot.Members, m)
	}

	txRows, err := s.db.Query(`
        SELECT id, user_id, user_name, COALESCE(group_id, ''), type, amount, currency,
               COALESCE(provider, ''), COALESCE(phone_number, ''), status, created_at
        FROM transactions ORDER BY created_at
    `)
	if err != nil {
		return nil, err
	}
	defer txRows.Close()
	for txRows.Next() {
		var t models.Transaction
		if err := txRows.Scan(&t.ID, &t.UserID, &t.UserName, &t.GroupID, &t.Type, &t.Amount, &t.Currency,
			&t.Provider, &t.PhoneNumber, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		snapshot.Transactions = append(snapshot.Transactions, t)
	}

	msgRows, err := s.db.Query(`
        SELECT id, group_id, sender_id, sender_name, text, type, created_at
        FROM group_messages ORDER BY created_at
    `)
	if err != nil {
		return nil, err
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var m models.GroupMessage
		if err := msgRows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.SenderName, &m.Text, &m.Type, &m.CreatedAt); err != nil {
			return nil, err
		}
		snapshot.Messages = append(snapshot.Messages, m)
	}

	return snapshot, nil
}

// ValidateSnapshot checks a snapshot's internal consistency before a
// restore touches the database.
func ValidateSnapshot(s *BackupSnapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot is empty")
	}
	if s.Version != backupVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}

	groupIDs := make(map[string]bool, len(s.Groups))
	for i, g := range s.Groups {
		if g.ID == "" || g.Name == "" {
			return fmt.Errorf("group %d is missing id or name", i)
		}
		if g.ContributionAmount <= 0 {
			return fmt.Errorf("group %s has non-positive contribution amount", g.ID)
		}
		if g.TotalPool < 0 {
			return fmt.Errorf("group %s has negative pool", g.ID)
		}
		if groupIDs[g.ID] {
			return fmt.Errorf("duplicate group id %s", g.ID)
		}
		groupIDs[g.ID] = true
	}

	for i, m := range s.Members {
		if m.GroupID == "" || m.UserID == "" {
			return fmt.Errorf("membership %d is missing group or user id", i)
		}
		if !groupIDs[m.GroupID] {
			return fmt.Errorf("membership %d references unknown group %s", i, m.GroupID)
		}
	}

	for i, t := range s.Transactions {
		if t.ID == "" || t.UserID == "" {
			return fmt.Errorf("transaction %d is missing id or user id", i)
		}
		if t.Amount <= 0 {
			return fmt.Errorf("transaction %s has non-positive amount", t.ID)
		}
		switch t.Type {
		case models.TxContribution, models.TxPayout, models.TxWithdrawal, models.TxDeposit, models.TxFee:
		default:
			return fmt.Errorf("transaction %s has unknown type %s", t.ID, t.Type)
		}
		switch t.Status {
		case models.TxPending, models.TxCompleted, models.TxFailed:
		default:
			return fmt.Errorf("transaction %s has unknown status %s", t.ID, t.Status)
		}
		// Wallet-only deposits and withdrawals carry no group.
		if t.GroupID != "" && !groupIDs[t.GroupID] {
			return fmt.Errorf("transaction %s references unknown group %s", t.ID, t.GroupID)
		}
	}

	for i, m := range s.Messages {
		if m.ID == "" || m.GroupID == "" {
			return fmt.Errorf("message %d is missing id or group id", i)
		}
		if !groupIDs[m.GroupID] {
			return fmt.Errorf("message %s references unknown group %s", m.ID, m.GroupID)
		}
	}

	return nil
}

// Restore validates the snapshot and replaces all group data with its
// contents in one transaction. Users and wallets are out of scope; rows
// referencing unknown users will fail the foreign key checks and roll the
// whole restore back.
func (s *BackupService) Restore(snapshot *BackupSnapshot) error {
	if err := ValidateSnapshot(snapshot); err != nil {
		return err
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	for _, table := range []string{"group_messages", "transactions", "group_members", "groups"} {
		if _, err := dbTx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}

	for _, g := range snapshot.Groups {
		_, err := dbTx.Exec(`
            INSERT INTO groups (id, name, contribution_amount, currency, frequency, total_pool, cycle_number,
                                invite_code, members_count, next_payout_date, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        `, g.ID, g.Name, g.ContributionAmount, g.Currency, g.Frequency, g.TotalPool, g.CycleNumber,
			g.InviteCode, g.MembersCount, g.NextPayoutDate, g.CreatedAt, g.UpdatedAt)
		if err != nil {
			return err
		}
	}

	for _, m := range snapshot.Members {
		_, err := dbTx.Exec(`
            INSERT INTO group_members (group_id, user_id, role, status, position, join_date, reliability_score)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
        `, m.GroupID, m.UserID, m.Role, m.Status, m.Position, m.JoinDate, m.ReliabilityScore)
		if err != nil {
			return err
		}
	}

	for _, t := range snapshot.Transactions {
		_, err := dbTx.Exec(`
            INSERT INTO transactions (id, user_id, user_name, group_id, type, amount, currency, provider, phone_number, status, created_at)
            VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
        `, t.ID, t.UserID, t.UserName, t.GroupID, t.Type, t.Amount, t.Currency, t.Provider, t.PhoneNumber, t.Status, t.CreatedAt)
		if err != nil {
			return err
		}
	}

	for _, m := range snapshot.Messages {
		_, err := dbTx.Exec(`
            INSERT INTO group_messages (id, group_id, sender_id, sender_name, text, type, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
        `, m.ID, m.GroupID, m.SenderID, m.SenderName, m.Text, m.Type, m.CreatedAt)
		if err != nil {
			return err
		}
	}

	return dbTx.Commit()
}
