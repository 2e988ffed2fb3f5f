package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	type payload struct {
		Name  string `validate:"required,min=2"`
		Email string `validate:"required,email"`
		Phone string `validate:"omitempty,gh_phone"`
	}

	t.Run("valid struct", func(t *testing.T) {
		err := vh.ValidateStruct(&payload{Name: "Ama", Email: "ama@example.com", Phone: "0244123456"})
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := vh.ValidateStruct(&payload{Email: "ama@example.com"})
		assert.Error(t, err)
	})

	t.Run("invalid email", func(t *testing.T) {
		err := vh.ValidateStruct(&payload{Name: "Ama", Email: "not-an-email"})
		assert.Error(t, err)
	})

	t.Run("gh_phone accepts international format", func(t *testing.T) {
		err := vh.ValidateStruct(&payload{Name: "Ama", Email: "ama@example.com", Phone: "+233244123456"})
		assert.NoError(t, err)
	})

	t.Run("gh_phone rejects foreign numbers", func(t *testing.T) {
		err := vh.ValidateStruct(&payload{Name: "Ama", Email: "ama@example.com", Phone: "+447911123456"})
		assert.Error(t, err)
	})

	t.Run("empty optional phone passes", func(t *testing.T) {
		err := vh.ValidateStruct(&payload{Name: "Ama", Email: "ama@example.com"})
		assert.NoError(t, err)
	})
}

func TestSendErrorResponse(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("plain error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendErrorResponse(rec, "Something failed", http.StatusBadRequest, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Something failed", resp.Error)
		assert.Empty(t, resp.Details)
	})

	t.Run("validation error carries field details", func(t *testing.T) {
		type payload struct {
			Email string `validate:"required,email"`
		}
		err := vh.ValidateStruct(&payload{Email: "bad"})
		assert.Error(t, err)

		rec := httptest.NewRecorder()
		SendErrorResponse(rec, "Validation failed", http.StatusBadRequest, err)

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Validation failed", resp.Error)
		assert.Contains(t, resp.Details, "Email")
	})

	t.Run("non-validation error is ignored for details", func(t *testing.T) {
		rec := httptest.NewRecorder()
		SendErrorResponse(rec, "Oops", http.StatusInternalServerError, assert.AnError)

		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Empty(t, resp.Details)
	})
}
