package models

import "time"

// AuditAction is the kind of privileged state change being recorded.
type AuditAction string

const (
	AuditSuspended   AuditAction = "SUSPENDED"
	AuditReactivated AuditAction = "REACTIVATED"
	AuditDeleted     AuditAction = "DELETED"
	AuditVerified    AuditAction = "VERIFIED"
	AuditRejected    AuditAction = "REJECTED"
	AuditModified    AuditAction = "MODIFIED"
)

// AuditLog is append-only and written in the same database transaction as
// the privileged change it records.
type AuditLog struct {
	ID        string      `json:"id" db:"id"`
	UserID    string      `json:"userId" db:"user_id"`
	UserName  string      `json:"user" db:"user_name"`
	Action    AuditAction `json:"action" db:"action"`
	Reason    string      `json:"reason" db:"reason"`
	AdminID   string      `json:"adminId" db:"admin_id"`
	AdminName string      `json:"admin" db:"admin_name"`
	CreatedAt time.Time   `json:"date" db:"created_at"`
}
