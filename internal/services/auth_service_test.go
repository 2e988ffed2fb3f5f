package services

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/susupay/backend/internal/models"
)

func TestPasswordHashing(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		hash, err := hashPassword("correct-horse")
		assert.NoError(t, err)
		assert.Contains(t, hash, "$")

		assert.True(t, verifyPassword("correct-horse", hash))
		assert.False(t, verifyPassword("wrong", hash))
	})

	t.Run("same password hashes differently per salt", func(t *testing.T) {
		h1, err := hashPassword("secret123")
		assert.NoError(t, err)
		h2, err := hashPassword("secret123")
		assert.NoError(t, err)
		assert.NotEqual(t, h1, h2)

		assert.True(t, verifyPassword("secret123", h1))
		assert.True(t, verifyPassword("secret123", h2))
	})

	t.Run("malformed stored hash never verifies", func(t *testing.T) {
		assert.False(t, verifyPassword("anything", ""))
		assert.False(t, verifyPassword("anything", "not-a-hash"))
		assert.False(t, verifyPassword("anything", "a$b$c"))
	})
}

func TestGenerateJWT(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")

	token, err := generateJWT("user1", models.RoleAdmin)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))
}

func TestAuthService_Login(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil)

	hash, err := hashPassword("secret123")
	assert.NoError(t, err)

	userColumns := []string{"id", "name", "email", "phone_number", "password", "role", "status", "verification_status", "created_at"}

	t.Run("valid credentials return a token", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, email, COALESCE\\(phone_number, ''\\), password, role, status, verification_status, created_at FROM users WHERE email = \\$1").
			WithArgs("ama@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow("user1", "Ama", "ama@example.com", "0244123456", hash, models.RoleMember, models.StatusActive, models.VerificationVerified, time.Now()))

		body, _ := json.Marshal(map[string]string{"email": "Ama@Example.com", "password": "secret123"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		service.Login(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["token"])
	})

	t.Run("wrong password", func(t *testing.T) {
		mock.ExpectQuery("FROM users WHERE email = \\$1").
			WithArgs("ama@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow("user1", "Ama", "ama@example.com", "0244123456", hash, models.RoleMember, models.StatusActive, models.VerificationVerified, time.Now()))

		body, _ := json.Marshal(map[string]string{"email": "ama@example.com", "password": "nope"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		service.Login(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		mock.ExpectQuery("FROM users WHERE email = \\$1").
			WithArgs("ghost@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns))

		body, _ := json.Marshal(map[string]string{"email": "ghost@example.com", "password": "secret123"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		service.Login(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("suspended account is refused", func(t *testing.T) {
		mock.ExpectQuery("FROM users WHERE email = \\$1").
			WithArgs("ama@example.com").
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow("user1", "Ama", "ama@example.com", "0244123456", hash, models.RoleMember, models.StatusSuspended, models.VerificationVerified, time.Now()))

		body, _ := json.Marshal(map[string]string{"email": "ama@example.com", "password": "secret123"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		service.Login(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAuthService_Register(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil)

	t.Run("duplicate email", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS\\(SELECT 1 FROM users WHERE email = \\$1\\)").
			WithArgs("ama@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		body, _ := json.Marshal(map[string]string{
			"name":     "Ama",
			"email":    "ama@example.com",
			"password": "secret123",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		service.Register(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("weak password fails validation", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{
			"name":     "Ama",
			"email":    "ama@example.com",
			"password": "short",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		service.Register(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthService_AcceptInvite(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil)

	inviteColumns := []string{"id", "name", "email", "phone_number", "role", "status", "verification_status", "created_at"}

	t.Run("acceptance activates the account and opens the wallet", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("FROM users WHERE email = \\$1 FOR UPDATE").
			WithArgs("kofi@example.com").
			WillReturnRows(sqlmock.NewRows(inviteColumns).
				AddRow("user7", "Kofi", "kofi@example.com", "", models.RoleMember, models.StatusInvited, models.VerificationUnverified, time.Now()))

		mock.ExpectExec("UPDATE users SET password = \\$1, status = \\$2, updated_at = NOW\\(\\) WHERE id = \\$3").
			WithArgs(sqlmock.AnyArg(), models.StatusActive, "user7").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("INSERT INTO wallets").
			WithArgs("user7").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		body, _ := json.Marshal(map[string]string{"email": "kofi@example.com", "password": "chosen-secret"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/accept-invite", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		service.AcceptInvite(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var u models.User
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
		assert.Equal(t, models.StatusActive, u.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already active account is rejected", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("FROM users WHERE email = \\$1 FOR UPDATE").
			WithArgs("ama@example.com").
			WillReturnRows(sqlmock.NewRows(inviteColumns).
				AddRow("user1", "Ama", "ama@example.com", "", models.RoleMember, models.StatusActive, models.VerificationVerified, time.Now()))

		mock.ExpectRollback()

		body, _ := json.Marshal(map[string]string{"email": "ama@example.com", "password": "chosen-secret"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/accept-invite", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		service.AcceptInvite(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("FROM users WHERE email = \\$1 FOR UPDATE").
			WithArgs("ghost@example.com").
			WillReturnError(sql.ErrNoRows)

		mock.ExpectRollback()

		body, _ := json.Marshal(map[string]string{"email": "ghost@example.com", "password": "chosen-secret"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/accept-invite", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		service.AcceptInvite(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
