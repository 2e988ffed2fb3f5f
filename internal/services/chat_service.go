package services

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/susupay/backend/internal/models"
)

// ChatService stores group chat messages. TEXT messages come from members;
// SYSTEM messages are posted by the engine after payouts.
type ChatService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewChatService(db *sql.DB) *ChatService {
	return &ChatService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// PostSystemMessage appends an engine-generated notice to a group's chat.
func (s *ChatService) PostSystemMessage(groupID, text string) error {
	_, err := s.db.Exec(`
        INSERT INTO group_messages (id, group_id, sender_id, sender_name, text, type, created_at)
        VALUES ($1, $2, 'system', 'System', $3, $4, NOW())
    `, uuid.New().String(), groupID, text, models.MessageSystem)
	return err
}

// isMember checks that a user belongs to a group in any membership state.
func (s *ChatService) isMember(groupID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
        SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
    `, groupID, userID).Scan(&exists)
	return exists, err
}

// ListMessages returns a group's chat history
// @Summary List group messages
// @Description Get a group's chat messages, oldest first, optionally since a timestamp
// @Tags chat
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param since query string false "RFC3339 timestamp; only newer messages are returned"
// @Param limit query int false "Number of messages (default: 100, max: 500)"
// @Success 200 {object} object{messages=[]models.GroupMessage,count=int}
// @Failure 403 {object} ErrorResponse
// @Router /group-messages/{groupId} [get]
func (s *ChatService) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("userID").(string)
	groupID := chi.URLParam(r, "groupId")

	ok, err := s.isMember(groupID, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch messages", http.StatusInternalServerError, nil)
		return
	}
	if !ok {
		SendErrorResponse(w, "Not a member of this group", http.StatusForbidden, nil)
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	query := `
        SELECT id, group_id, sender_id, sender_name, text, type, created_at
        FROM group_messages
        WHERE group_id = $1`
	args := []any{groupID}

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			SendErrorResponse(w, "Invalid since timestamp", http.StatusBadRequest, nil)
			return
		}
		args = append(args, since)
		query += " AND created_at > $2"
	}

	args = append(args, limit)
	query += " ORDER BY created_at ASC LIMIT $" + strconv.Itoa(len(args))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		log.Printf("[CHAT] Failed to list messages for %s: %v", groupID, err)
		SendErrorResponse(w, "Failed to fetch messages", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	messages := []models.GroupMessage{}
	for rows.Next() {
		var m models.GroupMessage
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.SenderName, &m.Text, &m.Type, &m.CreatedAt); err != nil {
			SendErrorResponse(w, "Failed to fetch messages", http.StatusInternalServerError, nil)
			return
		}
		messages = append(messages, m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"messages": messages,
		"count":    len(messages),
	})
}

// PostMessage appends a member's chat message
// @Summary Post a group message
// @Description Send a text message to a group the caller belongs to
// @Tags chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param groupId path string true "Group ID"
// @Param request body object{text=string} true "Message text"
// @Success 201 {object} models.GroupMessage
// @Failure 403 {object} ErrorResponse
// @Router /group-messages/{groupId} [post]
func (s *ChatService) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("userID").(string)
	groupID := chi.URLParam(r, "groupId")

	var req struct {
		Text string `json:"text" validate:"required,min=1,max=2000"`
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

	ok, err := s.isMember(groupID, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to post message", http.StatusInternalServerError, nil)
		return
	}
	if !ok {
		SendErrorResponse(w, "Not a member of this group", http.StatusForbidden, nil)
		return
	}

	var senderName string
	if err := s.db.QueryRow(`SELECT name FROM users WHERE id = $1`, userID).Scan(&senderName); err != nil {
		senderName = userID
	}

	m := models.GroupMessage{
		ID:         uuid.New().String(),
		GroupID:    groupID,
		SenderID:   userID,
		SenderName: senderName,
		Text:       req.Text,
		Type:       models.MessageText,
		CreatedAt:  time.Now(),
	}

	_, err = s.db.Exec(`
        INSERT INTO group_messages (id, group_id, sender_id, sender_name, text, type, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, m.ID, m.GroupID, m.SenderID, m.SenderName, m.Text, m.Type, m.CreatedAt)
	if err != nil {
		log.Printf("[CHAT] Failed to post message in %s: %v", groupID, err)
		SendErrorResponse(w, "Failed to post message", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(m)
}
