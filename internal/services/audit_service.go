package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/susupay/backend/internal/models"
)

// AuditService appends the audit trail for privileged state changes. Every
// entry is written in the caller's database transaction so the change and
// its record commit or roll back together, and mirrored to the process log
// as a JSON event.
type AuditService struct {
	db *sql.DB
}

func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

// RecordTx appends one audit row inside an open transaction.
func (a *AuditService) RecordTx(tx *sql.Tx, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now()

	_, err := tx.Exec(`
        INSERT INTO audit_logs (id, user_id, user_name, action, reason, admin_id, admin_name, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, entry.ID, entry.UserID, entry.UserName, entry.Action, entry.Reason, entry.AdminID, entry.AdminName, entry.CreatedAt)
	if err != nil {
		return err
	}

	data, _ := json.Marshal(entry)
	log.Printf("AUDIT: %s", string(data))
	return nil
}

// ListAuditLogs returns recent audit entries, newest first
// @Summary List audit logs
// @Description Get recent privileged-action audit entries
// @Tags audit
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of entries to return (default: 50, max: 200)"
// @Success 200 {array} models.AuditLog
// @Failure 500 {object} ErrorResponse
// @Router /audit-logs [get]
func (a *AuditService) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}

	rows, err := a.db.Query(`
        SELECT id, user_id, user_name, action, reason, admin_id, admin_name, created_at
        FROM audit_logs
        ORDER BY created_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		log.Printf("[AUDIT] Failed to list audit logs: %v", err)
		SendErrorResponse(w, "Failed to fetch audit logs", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	logs := []models.AuditLog{}
	for rows.Next() {
		var entry models.AuditLog
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.UserName, &entry.Action, &entry.Reason,
			&entry.AdminID, &entry.AdminName, &entry.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch audit logs", http.StatusInternalServerError, nil)
			return
		}
		logs = append(logs, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}
