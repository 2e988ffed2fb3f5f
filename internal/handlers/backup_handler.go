package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/susupay/backend/internal/services"
)

// BackupHandler exposes snapshot export and restore.
type BackupHandler struct {
	backup *services.BackupService
}

func NewBackupHandler(backup *services.BackupService) *BackupHandler {
	return &BackupHandler{backup: backup}
}

// Export downloads a full data snapshot
// @Summary Export a backup snapshot
// @Description Download all groups, memberships, transactions and messages as JSON
// @Tags backup
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.BackupSnapshot
// @Failure 500 {object} services.ErrorResponse
// @Router /backup/export [get]
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.backup.Export()
	if err != nil {
		log.Printf("[BACKUP] Export failed: %v", err)
		services.SendErrorResponse(w, "Failed to export backup", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="susupay-backup.json"`)
	json.NewEncoder(w).Encode(snapshot)
}

// Restore replaces group data from a snapshot
// @Summary Restore a backup snapshot
// @Description Validate and import a snapshot, replacing all group data atomically
// @Tags backup
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param snapshot body services.BackupSnapshot true "Snapshot to restore"
// @Success 200 {object} map[string]string
// @Failure 400 {object} services.ErrorResponse
// @Router /backup/restore [post]
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var snapshot services.BackupSnapshot

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 32<<20))
	if err := dec.Decode(&snapshot); err != nil {
		services.SendErrorResponse(w, "Invalid snapshot payload", http.StatusBadRequest, nil)
		return
	}

	if err := services.ValidateSnapshot(&snapshot); err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	if err := h.backup.Restore(&snapshot); err != nil {
		log.Printf("[BACKUP] Restore failed: %v", err)
		services.SendErrorResponse(w, "Failed to restore backup", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[BACKUP] Snapshot restored: %d groups, %d members, %d transactions, %d messages",
		len(snapshot.Groups), len(snapshot.Members), len(snapshot.Transactions), len(snapshot.Messages))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Backup restored"})
}
