package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RotationService answers whose turn it is for a group payout. The
// schedule is the group's ACTIVE memberships in join order (position
// assigned at approval) and never reorders; reliability scores are
// tracked on members but deliberately not consulted here.
type RotationService struct {
	db *sql.DB
}

type scheduleEntry struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Position int    `json:"position"`
}

func NewRotationService(db *sql.DB) *RotationService {
	return &RotationService{db: db}
}

// NextForCycle picks the recipient index for a 1-based cycle number over a
// fixed schedule. The rotation is cyclic: cycle N+1 repeats cycle 1's
// order exactly, and any cycle number is a valid restart point.
func NextForCycle(schedule []scheduleEntry, cycleNumber int) (scheduleEntry, error) {
	if len(schedule) == 0 {
		return scheduleEntry{}, ErrEmptySchedule
	}
	if cycleNumber < 1 {
		cycleNumber = 1
	}
	return schedule[(cycleNumber-1)%len(schedule)], nil
}

func (s *RotationService) scheduleTx(q interface {
	Query(query string, args ...any) (*sql.Rows, error)
}, groupID string) ([]scheduleEntry, error) {
	rows, err := q.Query(`
        SELECT m.user_id, u.name, m.position
        FROM group_members m
        JOIN users u ON u.id = m.user_id
        WHERE m.group_id = $1 AND m.status = 'ACTIVE'
        ORDER BY m.position
    `, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedule []scheduleEntry
	for rows.Next() {
		var e scheduleEntry
		if err := rows.Scan(&e.UserID, &e.UserName, &e.Position); err != nil {
			return nil, err
		}
		schedule = append(schedule, e)
	}
	return schedule, rows.Err()
}

// Next returns the recipient of the group's current cycle.
func (s *RotationService) Next(groupID string) (scheduleEntry, int, error) {
	var cycleNumber int
	if err := s.db.QueryRow(`SELECT cycle_number FROM groups WHERE id = $1`, groupID).Scan(&cycleNumber); err != nil {
		return scheduleEntry{}, 0, err
	}

	schedule, err := s.scheduleTx(s.db, groupID)
	if err != nil {
		return scheduleEntry{}, 0, err
	}

	entry, err := NextForCycle(schedule, cycleNumber)
	return entry, cycleNumber, err
}

// NextRecipient reports the pending payout recipient for a group
// @Summary Get next payout recipient
// @Description Return the member whose turn the current cycle belongs to
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {object} object{userId=string,userName=string,cycleNumber=int}
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /groups/{groupId}/next-recipient [get]
func (s *RotationService) NextRecipient(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	entry, cycleNumber, err := s.Next(groupID)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Group not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[ROTATION] Failed to resolve next recipient for group %s: %v", groupID, err)
		SendErrorResponse(w, err.Error(), StatusForError(err), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"userId":      entry.UserID,
		"userName":    entry.UserName,
		"cycleNumber": cycleNumber,
	})
}
