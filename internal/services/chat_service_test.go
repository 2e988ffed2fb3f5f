package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/susupay/backend/internal/models"
)

func chatRequest(method, target, userID string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), "userID", userID)

	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("groupId", "g1")
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)

	return req.WithContext(ctx)
}

func TestChatService_PostSystemMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewChatService(db)

	mock.ExpectExec("INSERT INTO group_messages").
		WithArgs(sqlmock.AnyArg(), "g1", "Cycle 2 payout of 1500 GHS went to Bene", models.MessageSystem).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = service.PostSystemMessage("g1", "Cycle 2 payout of 1500 GHS went to Bene")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChatService_PostMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewChatService(db)

	t.Run("non-member cannot post", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"text": "hello"})

		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM group_members WHERE group_id = \\$1 AND user_id = \\$2\\)").
			WithArgs("g1", "stranger").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		rec := httptest.NewRecorder()
		service.PostMessage(rec, chatRequest(http.MethodPost, "/api/v1/group-messages/g1", "stranger", body))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("member post is stored as TEXT", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"text": "akwaaba"})

		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM group_members WHERE group_id = \\$1 AND user_id = \\$2\\)").
			WithArgs("g1", "user1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		mock.ExpectQuery("SELECT name FROM users WHERE id = \\$1").
			WithArgs("user1").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Ama"))

		mock.ExpectExec("INSERT INTO group_messages").
			WithArgs(sqlmock.AnyArg(), "g1", "user1", "Ama", "akwaaba", models.MessageText, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		rec := httptest.NewRecorder()
		service.PostMessage(rec, chatRequest(http.MethodPost, "/api/v1/group-messages/g1", "user1", body))

		assert.Equal(t, http.StatusCreated, rec.Code)

		var m models.GroupMessage
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
		assert.Equal(t, models.MessageText, m.Type)
		assert.Equal(t, "akwaaba", m.Text)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty text fails validation", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"text": ""})

		rec := httptest.NewRecorder()
		service.PostMessage(rec, chatRequest(http.MethodPost, "/api/v1/group-messages/g1", "user1", body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
