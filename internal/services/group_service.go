package services

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/susupay/backend/internal/config"
	"github.com/susupay/backend/internal/models"
)

const inviteCodeAttempts = 5

// GroupService manages the savings-group directory: creation, membership
// and invite resolution.
type GroupService struct {
	db        *sql.DB
	cfg       *config.EngineConfig
	validator *ValidationHelper
}

func NewGroupService(db *sql.DB) *GroupService {
	return &GroupService{
		db:        db,
		cfg:       config.LoadEngineConfig(),
		validator: NewValidationHelper(),
	}
}

// generateInviteCode produces a short shareable code like SUSU-4821.
func (s *GroupService) generateInviteCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", s.cfg.InviteCodePrefix, n.Int64()), nil
}

type createGroupRequest struct {
	Name               string           `json:"name" validate:"required,min=3,max=100"`
	ContributionAmount int64            `json:"contributionAmount" validate:"required,gt=0"`
	Currency           string           `json:"currency" validate:"omitempty,len=3,uppercase"`
	Frequency          models.Frequency `json:"frequency" validate:"omitempty,oneof=Weekly Bi-Weekly Monthly"`
	InviteCode         string           `json:"inviteCode" validate:"omitempty,min=4,max=20"`
}

// CreateGroup creates a group with the caller as its first member. The
// creator holds group-admin rights and position 0 in the rotation.
func (s *GroupService) CreateGroup(creatorID string, req *createGroupRequest) (*models.Group, error) {
	currency := req.Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	frequency := req.Frequency
	if frequency == "" {
		frequency = models.FrequencyMonthly
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	g := &models.Group{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		ContributionAmount: req.ContributionAmount,
		Currency:           currency,
		Frequency:          frequency,
		CycleNumber:        1,
		MembersCount:       1,
	}

	// A supplied invite code that collides is an error; generated codes
	// retry a few times before giving up.
	if req.InviteCode != "" {
		g.InviteCode = strings.ToUpper(req.InviteCode)
		var exists bool
		if err := dbTx.QueryRow(`SELECT EXISTS(SELECT 1 FROM groups WHERE UPPER(invite_code) = $1)`, g.InviteCode).Scan(&exists); err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrDuplicateInviteCode
		}
	} else {
		for attempt := 0; ; attempt++ {
			code, err := s.generateInviteCode()
			if err != nil {
				return nil, err
			}
			var exists bool
			if err := dbTx.QueryRow(`SELECT EXISTS(SELECT 1 FROM groups WHERE invite_code = $1)`, code).Scan(&exists); err != nil {
				return nil, err
			}
			if !exists {
				g.InviteCode = code
				break
			}
			if attempt >= inviteCodeAttempts {
				return nil, ErrDuplicateInviteCode
			}
		}
	}

	_, err = dbTx.Exec(`
        INSERT INTO groups (id, name, contribution_amount, currency, frequency, total_pool, cycle_number, invite_code, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 0, 1, $6, NOW(), NOW())
    `, g.ID, g.Name, g.ContributionAmount, g.Currency, g.Frequency, g.InviteCode)
	if err != nil {
		return nil, err
	}

	_, err = dbTx.Exec(`
        INSERT INTO group_members (group_id, user_id, role, status, position, join_date)
        VALUES ($1, $2, $3, $4, 0, NOW())
    `, g.ID, creatorID, models.RoleAdmin, models.StatusActive)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[GROUP] Group %s created by %s: %s (%d %s %s)", g.ID, creatorID, g.Name, g.ContributionAmount, g.Currency, g.Frequency)
	return g, nil
}

// AddMember appends a user to the rotation at the next position. New
// members join PENDING until a group admin approves them; invited members
// join ACTIVE directly.
func (s *GroupService) AddMember(groupID, userID string, status models.UserStatus) (*models.GroupMembership, error) {
	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	var exists bool
	err = dbTx.QueryRow(`
        SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
    `, groupID, userID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateTransaction
	}

	var position int
	err = dbTx.QueryRow(`
        SELECT COALESCE(MAX(position), -1) + 1 FROM group_members WHERE group_id = $1 FOR UPDATE
    `, groupID).Scan(&position)
	if err != nil {
		return nil, err
	}

	m := &models.GroupMembership{
		GroupID:  groupID,
		UserID:   userID,
		Role:     models.RoleMember,
		Status:   status,
		Position: position,
	}

	_, err = dbTx.Exec(`
        INSERT INTO group_members (group_id, user_id, role, status, position, join_date)
        VALUES ($1, $2, $3, $4, $5, NOW())
    `, m.GroupID, m.UserID, m.Role, m.Status, m.Position)
	if err != nil {
		return nil, err
	}

	res, err := dbTx.Exec(`
        UPDATE groups SET members_count = members_count + 1, updated_at = NOW() WHERE id = $1
    `, groupID)
	if err != nil {
		return nil, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, sql.ErrNoRows
	}

	// A join request is what moves a freshly registered user into the
	// review queue.
	_, err = dbTx.Exec(`
        UPDATE users SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3
    `, models.StatusPending, userID, models.StatusNew)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[GROUP] User %s joined group %s at position %d (%s)", userID, groupID, position, status)
	return m, nil
}

// ResolveInviteCode finds a group by invite code or, failing that, by
// exact name. Both lookups are case-insensitive.
func (s *GroupService) ResolveInviteCode(code string) (*models.Group, error) {
	var g models.Group
	err := s.db.QueryRow(`
        SELECT id, name, contribution_amount, currency, frequency, total_pool, cycle_number,
               invite_code, members_count, next_payout_date, created_at, updated_at
        FROM groups
        WHERE UPPER(invite_code) = UPPER($1) OR LOWER(name) = LOWER($1)
        LIMIT 1
    `, strings.TrimSpace(code)).Scan(
		&g.ID, &g.Name, &g.ContributionAmount, &g.Currency, &g.Frequency, &g.TotalPool,
		&g.CycleNumber, &g.InviteCode, &g.MembersCount, &g.NextPayoutDate, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// HTTP handlers

// ResolveInvite looks up a group by invite code or name
// @Summary Resolve an invite code
// @Description Find a group by invite code or group name, case-insensitive
// @Tags groups
// @Produce json
// @Param code query string true "Invite code or group name"
// @Success 200 {object} models.Group
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /groups/resolve-invite [get]
func (s *GroupService) ResolveInvite(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		SendErrorResponse(w, "Query parameter 'code' is required", http.StatusBadRequest, nil)
		return
	}

	g, err := s.ResolveInviteCode(code)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Group not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[GROUP] Invite resolve failed: %v", err)
		SendErrorResponse(w, "Failed to resolve invite", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g)
}

// Create creates a savings group
// @Summary Create a group
// @Description Create a savings group with the caller as first member and rotation position 0
// @Tags groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createGroupRequest true "Group data"
// @Success 201 {object} models.Group
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /groups [post]
func (s *GroupService) Create(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("userID").(string)

	var req createGroupRequest

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

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	g, err := s.CreateGroup(callerID, &req)
	if err != nil {
		statusCode := StatusForError(err)
		if statusCode == http.StatusInternalServerError {
			log.Printf("[GROUP] Create failed: %v", err)
			SendErrorResponse(w, "Failed to create group", statusCode, nil)
			return
		}
		SendErrorResponse(w, err.Error(), statusCode, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(g)
}

// List returns all groups
// @Summary List groups
// @Description Get the group directory
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{groups=[]models.Group,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /groups [get]
func (s *GroupService) List(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(`
        SELECT id, name, contribution_amount, currency, frequency, total_pool, cycle_number,
               invite_code, members_count, next_payout_date, created_at, updated_at
        FROM groups
        ORDER BY created_at DESC
    `)
	if err != nil {
		log.Printf("[GROUP] Failed to list groups: %v", err)
		SendErrorResponse(w, "Failed to fetch groups", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.ContributionAmount, &g.Currency, &g.Frequency, &g.TotalPool,
			&g.CycleNumber, &g.InviteCode, &g.MembersCount, &g.NextPayoutDate, &g.CreatedAt, &g.UpdatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch groups", http.StatusInternalServerError, nil)
			return
		}
		groups = append(groups, g)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

// Get returns one group
// @Summary Get a group
// @Description Fetch a single group by id
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {object} models.Group
// @Failure 404 {object} ErrorResponse
// @Router /groups/{groupId} [get]
func (s *GroupService) Get(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	var g models.Group
	err := s.db.QueryRow(`
        SELECT id, name, contribution_amount, currency, frequency, total_pool, cycle_number,
               invite_code, members_count, next_payout_date, created_at, updated_at
        FROM groups
        WHERE id = $1
    `, groupID).Scan(&g.ID, &g.Name, &g.ContributionAmount, &g.Currency, &g.Frequency, &g.TotalPool,
		&g.CycleNumber, &g.InviteCode, &g.MembersCount, &g.NextPayoutDate, &g.CreatedAt, &g.UpdatedAt)

	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Group not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[GROUP] Failed to fetch group %s: %v", groupID, err)
		SendErrorResponse(w, "Failed to fetch group", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g)
}

// Update edits a group's settings
// @Summary Update a group
// @Description Partially update name, contribution amount, currency or frequency; omitted fields are left unchanged
// @Tags groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param request body object{name=string,contributionAmount=int64,currency=string,frequency=string} true "Fields to update"
// @Success 200 {object} models.Group
// @Failure 400 {object} ErrorResponse
// @Router /groups/{groupId} [put]
func (s *GroupService) Update(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	var req struct {
		Name               *string           `json:"name" validate:"omitempty,min=3,max=100"`
		ContributionAmount *int64            `json:"contributionAmount" validate:"omitempty,gt=0"`
		Currency           *string           `json:"currency" validate:"omitempty,len=3,uppercase"`
		Frequency          *models.Frequency `json:"frequency" validate:"omitempty,oneof=Weekly Bi-Weekly Monthly"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var g models.Group
	err := s.db.QueryRow(`
        UPDATE groups
        SET name = COALESCE($1, name),
            contribution_amount = COALESCE($2, contribution_amount),
            currency = COALESCE($3, currency),
            frequency = COALESCE($4, frequency),
            updated_at = NOW()
        WHERE id = $5
        RETURNING id, name, contribution_amount, currency, frequency, total_pool, cycle_number,
                  invite_code, members_count, next_payout_date, created_at, updated_at
    `, req.Name, req.ContributionAmount, req.Currency, req.Frequency, groupID).Scan(
		&g.ID, &g.Name, &g.ContributionAmount, &g.Currency, &g.Frequency, &g.TotalPool,
		&g.CycleNumber, &g.InviteCode, &g.MembersCount, &g.NextPayoutDate, &g.CreatedAt, &g.UpdatedAt)

	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Group not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[GROUP] Failed to update group %s: %v", groupID, err)
		SendErrorResponse(w, "Failed to update group", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g)
}

// Delete removes a group and its memberships
// @Summary Delete a group
// @Description Delete a group; its ledger rows are kept for history
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /groups/{groupId} [delete]
func (s *GroupService) Delete(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	dbTx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to delete group", http.StatusInternalServerError, nil)
		return
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec(`DELETE FROM group_members WHERE group_id = $1`, groupID); err != nil {
		SendErrorResponse(w, "Failed to delete group", http.StatusInternalServerError, nil)
		return
	}
	if _, err := dbTx.Exec(`DELETE FROM group_messages WHERE group_id = $1`, groupID); err != nil {
		SendErrorResponse(w, "Failed to delete group", http.StatusInternalServerError, nil)
		return
	}

	res, err := dbTx.Exec(`DELETE FROM groups WHERE id = $1`, groupID)
	if err != nil {
		SendErrorResponse(w, "Failed to delete group", http.StatusInternalServerError, nil)
		return
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		SendErrorResponse(w, "Group not found", http.StatusNotFound, nil)
		return
	}

	if err := dbTx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to delete group", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[GROUP] Group %s deleted", groupID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Group deleted"})
}

// Join adds the caller to a group via invite code
// @Summary Join a group
// @Description Resolve an invite code (or group name) and join as a PENDING member
// @Tags groups
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{code=string} true "Invite code or group name"
// @Success 201 {object} models.GroupMembership
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /groups/join [post]
func (s *GroupService) Join(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("userID").(string)

	var req struct {
		Code string `json:"code" validate:"required,min=2,max=100"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	g, err := s.ResolveInviteCode(req.Code)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "No group matches that code", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[GROUP] Invite lookup failed: %v", err)
		SendErrorResponse(w, "Failed to resolve invite", http.StatusInternalServerError, nil)
		return
	}

	m, err := s.AddMember(g.ID, callerID, models.StatusPending)
	if err != nil {
		if err == ErrDuplicateTransaction {
			SendErrorResponse(w, "Already a member of this group", http.StatusConflict, nil)
			return
		}
		log.Printf("[GROUP] Join failed for user %s group %s: %v", callerID, g.ID, err)
		SendErrorResponse(w, "Failed to join group", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"group":      g,
		"membership": m,
	})
}

// Members lists a group's rotation roster
// @Summary List group members
// @Description Get a group's members in rotation order
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {object} object{members=[]models.GroupMembership,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /groups/{groupId}/members [get]
func (s *GroupService) Members(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	rows, err := s.db.Query(`
        SELECT m.group_id, m.user_id, u.name, m.role, m.status, m.position, m.join_date, m.reliability_score
        FROM group_members m
        JOIN users u ON u.id = m.user_id
        WHERE m.group_id = $1
        ORDER BY m.position
    `, groupID)
	if err != nil {
		log.Printf("[GROUP] Failed to list members for %s: %v", groupID, err)
		SendErrorResponse(w, "Failed to fetch members", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	type memberRow struct {
		models.GroupMembership
		UserName string `json:"userName"`
	}

	members := []memberRow{}
	for rows.Next() {
		var m memberRow
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.UserName, &m.Role, &m.Status, &m.Position, &m.JoinDate, &m.ReliabilityScore); err != nil {
			SendErrorResponse(w, "Failed to fetch members", http.StatusInternalServerError, nil)
			return
		}
		members = append(members, m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"members": members,
		"count":   len(members),
	})
}

// InviteQR renders a group's invite code as a QR image
// @Summary Group invite QR code
// @Description Generate a PNG QR code encoding the group's invite code
// @Tags groups
// @Produce png
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /groups/{groupId}/invite-qr [get]
func (s *GroupService) InviteQR(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupId")

	var inviteCode string
	err := s.db.QueryRow(`SELECT invite_code FROM groups WHERE id = $1`, groupID).Scan(&inviteCode)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Group not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch group", http.StatusInternalServerError, nil)
		return
	}

	png, err := qrcode.Encode(inviteCode, qrcode.Medium, 256)
	if err != nil {
		log.Printf("[GROUP] QR generation failed for %s: %v", groupID, err)
		SendErrorResponse(w, "Failed to generate QR code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}
