package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/susupay/backend/internal/models"
)

// MemberService owns the user lifecycle. Every privileged state change
// goes through Apply, which runs the transition, the row update and the
// audit entry in one database transaction.
type MemberService struct {
	db        *sql.DB
	audit     *AuditService
	validator *ValidationHelper
}

func NewMemberService(db *sql.DB) *MemberService {
	return &MemberService{
		db:        db,
		audit:     NewAuditService(db),
		validator: NewValidationHelper(),
	}
}

// MemberCommand is a privileged user-state change. Transition mutates the
// loaded user in place or rejects the move; Audit names the entry written
// alongside it.
type MemberCommand interface {
	Transition(u *models.User) error
	Audit() (action models.AuditAction, reason string)
}

// ApproveMember moves a PENDING or INVITED user to ACTIVE.
type ApproveMember struct{ Reason string }

func (c ApproveMember) Transition(u *models.User) error {
	if u.Status != models.StatusPending && u.Status != models.StatusInvited {
		return fmt.Errorf("%w: cannot approve user in status %s", ErrInvalidTransition, u.Status)
	}
	u.Status = models.StatusActive
	return nil
}

func (c ApproveMember) Audit() (models.AuditAction, string) {
	return models.AuditModified, "Approved: " + c.Reason
}

// SuspendMember moves an ACTIVE user to SUSPENDED.
type SuspendMember struct{ Reason string }

func (c SuspendMember) Transition(u *models.User) error {
	if u.Status != models.StatusActive {
		return fmt.Errorf("%w: cannot suspend user in status %s", ErrInvalidTransition, u.Status)
	}
	u.Status = models.StatusSuspended
	return nil
}

func (c SuspendMember) Audit() (models.AuditAction, string) {
	return models.AuditSuspended, c.Reason
}

// ReactivateMember moves a SUSPENDED user back to ACTIVE.
type ReactivateMember struct{ Reason string }

func (c ReactivateMember) Transition(u *models.User) error {
	if u.Status != models.StatusSuspended {
		return fmt.Errorf("%w: cannot reactivate user in status %s", ErrInvalidTransition, u.Status)
	}
	u.Status = models.StatusActive
	return nil
}

func (c ReactivateMember) Audit() (models.AuditAction, string) {
	return models.AuditReactivated, c.Reason
}

// VerifyMember marks a user's identity check as passed. A user whose
// platform status is still PENDING is activated at the same time.
type VerifyMember struct{ Reason string }

func (c VerifyMember) Transition(u *models.User) error {
	if u.VerificationStatus != models.VerificationUnverified && u.VerificationStatus != models.VerificationPending {
		return fmt.Errorf("%w: cannot verify user with verification status %s", ErrInvalidTransition, u.VerificationStatus)
	}
	u.VerificationStatus = models.VerificationVerified
	if u.Status == models.StatusPending {
		u.Status = models.StatusActive
	}
	return nil
}

func (c VerifyMember) Audit() (models.AuditAction, string) {
	return models.AuditVerified, c.Reason
}

// RejectVerification marks a user's identity check as failed. A REJECTED
// user may re-submit, which puts them back at PENDING.
type RejectVerification struct{ Reason string }

func (c RejectVerification) Transition(u *models.User) error {
	if u.VerificationStatus != models.VerificationUnverified && u.VerificationStatus != models.VerificationPending {
		return fmt.Errorf("%w: cannot reject user with verification status %s", ErrInvalidTransition, u.VerificationStatus)
	}
	u.VerificationStatus = models.VerificationRejected
	return nil
}

func (c RejectVerification) Audit() (models.AuditAction, string) {
	return models.AuditRejected, c.Reason
}

// ChangeRole reassigns a user's platform role.
type ChangeRole struct {
	To     models.Role
	Reason string
}

func (c ChangeRole) Transition(u *models.User) error {
	switch c.To {
	case models.RoleMember, models.RoleAdmin, models.RoleSuperuser:
	default:
		return fmt.Errorf("%w: unknown role %s", ErrInvalidTransition, c.To)
	}
	if u.Role == c.To {
		return fmt.Errorf("%w: user already has role %s", ErrInvalidTransition, c.To)
	}
	u.Role = c.To
	return nil
}

func (c ChangeRole) Audit() (models.AuditAction, string) {
	return models.AuditModified, fmt.Sprintf("Role changed to %s: %s", c.To, c.Reason)
}

// Apply loads the target user under a row lock, runs the command's
// transition, persists the result and writes the audit entry.
func (s *MemberService) Apply(targetID, adminID, adminName string, cmd MemberCommand) (*models.User, error) {
	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	var u models.User
	err = dbTx.QueryRow(`
        SELECT id, name, email, phone_number, role, status, verification_status
        FROM users
        WHERE id = $1
        FOR UPDATE
    `, targetID).Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.Role, &u.Status, &u.VerificationStatus)
	if err != nil {
		return nil, err
	}

	if err := cmd.Transition(&u); err != nil {
		return nil, err
	}

	_, err = dbTx.Exec(`
        UPDATE users
        SET role = $1, status = $2, verification_status = $3, updated_at = NOW()
        WHERE id = $4
    `, u.Role, u.Status, u.VerificationStatus, targetID)
	if err != nil {
		return nil, err
	}

	action, reason := cmd.Audit()
	entry := &models.AuditLog{
		UserID:    u.ID,
		UserName:  u.Name,
		Action:    action,
		Reason:    reason,
		AdminID:   adminID,
		AdminName: adminName,
	}
	if err := s.audit.RecordTx(dbTx, entry); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[MEMBER] User %s %s by %s: %s", targetID, action, adminID, reason)
	return &u, nil
}

// InviteMember creates an INVITED user with no credentials. The account
// stays dormant until the person accepts and chooses a password; declining
// is a no-op. The invite itself is audited like any other privileged change.
func (s *MemberService) InviteMember(name, email, phone, adminID, adminName, reason string) (*models.User, error) {
	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	var exists bool
	if err := dbTx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailRegistered
	}

	u := &models.User{
		ID:                 uuid.New().String(),
		Name:               name,
		Email:              email,
		PhoneNumber:        phone,
		Role:               models.RoleMember,
		Status:             models.StatusInvited,
		VerificationStatus: models.VerificationUnverified,
	}

	_, err = dbTx.Exec(`
        INSERT INTO users (id, name, email, phone_number, password, role, status, verification_status, created_at, updated_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), '', $5, $6, $7, NOW(), NOW())
    `, u.ID, u.Name, u.Email, phone, u.Role, u.Status, u.VerificationStatus)
	if err != nil {
		return nil, err
	}

	entry := &models.AuditLog{
		UserID:    u.ID,
		UserName:  u.Name,
		Action:    models.AuditModified,
		Reason:    "Invited: " + reason,
		AdminID:   adminID,
		AdminName: adminName,
	}
	if err := s.audit.RecordTx(dbTx, entry); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[MEMBER] User %s invited by %s: %s", u.Email, adminID, reason)
	return u, nil
}

// DeleteUser removes a user who has no ledger history. Users referenced by
// transactions must be suspended instead so the ledger stays attributable.
func (s *MemberService) DeleteUser(targetID, adminID, adminName, reason string) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	var name string
	err = dbTx.QueryRow(`SELECT name FROM users WHERE id = $1 FOR UPDATE`, targetID).Scan(&name)
	if err != nil {
		return err
	}

	var refCount int
	err = dbTx.QueryRow(`SELECT COUNT(*) FROM transactions WHERE user_id = $1`, targetID).Scan(&refCount)
	if err != nil {
		return err
	}
	if refCount > 0 {
		return ErrUserReferenced
	}

	if _, err := dbTx.Exec(`DELETE FROM group_members WHERE user_id = $1`, targetID); err != nil {
		return err
	}
	if _, err := dbTx.Exec(`DELETE FROM wallets WHERE user_id = $1`, targetID); err != nil {
		return err
	}
	if _, err := dbTx.Exec(`DELETE FROM users WHERE id = $1`, targetID); err != nil {
		return err
	}

	entry := &models.AuditLog{
		UserID:    targetID,
		UserName:  name,
		Action:    models.AuditDeleted,
		Reason:    reason,
		AdminID:   adminID,
		AdminName: adminName,
	}
	if err := s.audit.RecordTx(dbTx, entry); err != nil {
		return err
	}

	return dbTx.Commit()
}

// adminIdentity resolves the acting admin's id and display name from the
// request context.
func (s *MemberService) adminIdentity(r *http.Request) (string, string) {
	adminID, _ := r.Context().Value("userID").(string)
	var adminName string
	if err := s.db.QueryRow(`SELECT name FROM users WHERE id = $1`, adminID).Scan(&adminName); err != nil {
		adminName = adminID
	}
	return adminID, adminName
}

type memberActionRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=200"`
}

func (s *MemberService) decodeActionRequest(w http.ResponseWriter, r *http.Request) (*memberActionRequest, bool) {
	var req memberActionRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return nil, false
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return nil, false
	}

	return &req, true
}

func (s *MemberService) applyAndRespond(w http.ResponseWriter, r *http.Request, cmd MemberCommand) {
	targetID := chi.URLParam(r, "id")
	adminID, adminName := s.adminIdentity(r)

	u, err := s.Apply(targetID, adminID, adminName, cmd)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		statusCode := StatusForError(err)
		if statusCode == http.StatusInternalServerError {
			log.Printf("[MEMBER] State change for %s failed: %v", targetID, err)
			SendErrorResponse(w, "Failed to update user", statusCode, nil)
			return
		}
		SendErrorResponse(w, err.Error(), statusCode, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"user":    u,
	})
}

// InviteUser creates an invited account
// @Summary Invite a member
// @Description Create an INVITED account that activates when the person accepts
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{name=string,email=string,phoneNumber=string,reason=string} true "Invitee details and reason"
// @Success 201 {object} models.User
// @Failure 409 {object} ErrorResponse
// @Router /users/invite [post]
func (s *MemberService) InviteUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name" validate:"required,min=2,max=100"`
		Email       string `json:"email" validate:"required,email"`
		PhoneNumber string `json:"phoneNumber" validate:"omitempty,gh_phone"`
		Reason      string `json:"reason" validate:"required,min=3,max=200"`
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

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	phone := ""
	if req.PhoneNumber != "" {
		var err error
		phone, err = NormalizePhone(req.PhoneNumber)
		if err != nil {
			SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
			return
		}
	}

	adminID, adminName := s.adminIdentity(r)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	u, err := s.InviteMember(req.Name, email, phone, adminID, adminName, req.Reason)
	if err != nil {
		statusCode := StatusForError(err)
		if statusCode == http.StatusInternalServerError {
			log.Printf("[MEMBER] Invite of %s failed: %v", email, err)
			SendErrorResponse(w, "Failed to invite user", statusCode, nil)
			return
		}
		SendErrorResponse(w, err.Error(), statusCode, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(u)
}

// ApproveUser activates a pending or invited user
// @Summary Approve a user
// @Description Move a PENDING or INVITED user to ACTIVE
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body memberActionRequest true "Reason"
// @Success 200 {object} models.User
// @Failure 409 {object} ErrorResponse
// @Router /users/{id}/approve [put]
func (s *MemberService) ApproveUser(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeActionRequest(w, r)
	if !ok {
		return
	}
	s.applyAndRespond(w, r, ApproveMember{Reason: req.Reason})
}

// SuspendUser suspends an active user
// @Summary Suspend a user
// @Description Move an ACTIVE user to SUSPENDED; they can no longer transact
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body memberActionRequest true "Reason"
// @Success 200 {object} models.User
// @Failure 409 {object} ErrorResponse
// @Router /users/{id}/suspend [put]
func (s *MemberService) SuspendUser(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeActionRequest(w, r)
	if !ok {
		return
	}
	s.applyAndRespond(w, r, SuspendMember{Reason: req.Reason})
}

// ReactivateUser restores a suspended user
// @Summary Reactivate a user
// @Description Move a SUSPENDED user back to ACTIVE
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body memberActionRequest true "Reason"
// @Success 200 {object} models.User
// @Failure 409 {object} ErrorResponse
// @Router /users/{id}/reactivate [put]
func (s *MemberService) ReactivateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeActionRequest(w, r)
	if !ok {
		return
	}
	s.applyAndRespond(w, r, ReactivateMember{Reason: req.Reason})
}

// VerifyUser passes a user's identity check
// @Summary Verify a user's identity
// @Description Mark the user's verification as VERIFIED, activating them if still PENDING
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body memberActionRequest true "Reason"
// @Success 200 {object} models.User
// @Failure 409 {object} ErrorResponse
// @Router /users/{id}/verify [put]
func (s *MemberService) VerifyUser(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeActionRequest(w, r)
	if !ok {
		return
	}
	s.applyAndRespond(w, r, VerifyMember{Reason: req.Reason})
}

// RejectUser fails a user's identity check
// @Summary Reject a user's identity check
// @Description Mark the user's verification as REJECTED; they may re-submit
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body memberActionRequest true "Reason"
// @Success 200 {object} models.User
// @Failure 409 {object} ErrorResponse
// @Router /users/{id}/reject [put]
func (s *MemberService) RejectUser(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeActionRequest(w, r)
	if !ok {
		return
	}
	s.applyAndRespond(w, r, RejectVerification{Reason: req.Reason})
}

// ChangeUserRole reassigns a user's role
// @Summary Change a user's role
// @Description Reassign the user's platform role
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body object{role=string,reason=string} true "New role and reason"
// @Success 200 {object} models.User
// @Failure 409 {object} ErrorResponse
// @Router /users/{id}/role [put]
func (s *MemberService) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role   models.Role `json:"role" validate:"required,oneof=MEMBER ADMIN SUPERUSER"`
		Reason string      `json:"reason" validate:"required,min=3,max=200"`
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

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	s.applyAndRespond(w, r, ChangeRole{To: req.Role, Reason: req.Reason})
}

// RemoveUser deletes a user with no ledger history
// @Summary Delete a user
// @Description Remove a user; refused with 409 if any transaction references them
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body memberActionRequest true "Reason"
// @Success 200 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Router /users/{id} [delete]
func (s *MemberService) RemoveUser(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeActionRequest(w, r)
	if !ok {
		return
	}

	targetID := chi.URLParam(r, "id")
	adminID, adminName := s.adminIdentity(r)

	err := s.DeleteUser(targetID, adminID, adminName, req.Reason)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		statusCode := StatusForError(err)
		if statusCode == http.StatusInternalServerError {
			log.Printf("[MEMBER] Delete of %s failed: %v", targetID, err)
			SendErrorResponse(w, "Failed to delete user", statusCode, nil)
			return
		}
		SendErrorResponse(w, err.Error(), statusCode, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "User deleted"})
}

// ListUsers returns the user directory
// @Summary List users
// @Description Get all users with optional status and role filters
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param role query string false "Filter by role"
// @Success 200 {object} object{users=[]models.User,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /users [get]
func (s *MemberService) ListUsers(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	role := r.URL.Query().Get("role")

	query := `
        SELECT id, name, email, COALESCE(phone_number, ''), role, status, verification_status, created_at
        FROM users
        WHERE 1=1`
	args := []any{}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if role != "" {
		args = append(args, role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("[MEMBER] Failed to list users: %v", err)
		SendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.Role, &u.Status, &u.VerificationStatus, &u.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch users", http.StatusInternalServerError, nil)
			return
		}
		users = append(users, u)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"users": users,
		"count": len(users),
	})
}

// GetUser returns one user by id or email
// @Summary Get a user
// @Description Fetch a single user by id or email address
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID or email"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (s *MemberService) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var u models.User
	err := s.db.QueryRow(`
        SELECT id, name, email, COALESCE(phone_number, ''), role, status, verification_status, created_at
        FROM users
        WHERE id = $1 OR LOWER(email) = LOWER($1)
    `, id).Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.Role, &u.Status, &u.VerificationStatus, &u.CreatedAt)

	if err == sql.ErrNoRows {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[MEMBER] Failed to fetch user %s: %v", id, err)
		SendErrorResponse(w, "Failed to fetch user", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(u)
}

// UpdateUser edits a user's own profile fields. Status, role and
// verification are only reachable through the privileged endpoints.
// @Summary Update profile
// @Description Update a user's name and phone number
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body object{name=string,phoneNumber=string} true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Router /users/{id} [put]
func (s *MemberService) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	callerID, _ := r.Context().Value("userID").(string)
	callerRole, _ := r.Context().Value("role").(string)

	if callerID != id && callerRole != string(models.RoleAdmin) && callerRole != string(models.RoleSuperuser) {
		SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	var req struct {
		Name        string `json:"name" validate:"required,min=2,max=100"`
		PhoneNumber string `json:"phoneNumber" validate:"omitempty,gh_phone"`
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

	phone := ""
	if req.PhoneNumber != "" {
		var err error
		phone, err = NormalizePhone(req.PhoneNumber)
		if err != nil {
			SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
			return
		}
	}

	var u models.User
	err := s.db.QueryRow(`
        UPDATE users
        SET name = $1, phone_number = NULLIF($2, ''), updated_at = NOW()
        WHERE id = $3
        RETURNING id, name, email, COALESCE(phone_number, ''), role, status, verification_status, created_at
    `, req.Name, phone, id).Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.Role, &u.Status, &u.VerificationStatus, &u.CreatedAt)

	if err == sql.ErrNoRows {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[MEMBER] Failed to update user %s: %v", id, err)
		SendErrorResponse(w, "Failed to update user", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(u)
}
