package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/susupay/backend/internal/models"
	"github.com/susupay/backend/internal/services"
)

// WalletHandler exposes the deposit, withdrawal and balance endpoints on
// top of the transaction engine.
type WalletHandler struct {
	engine    *services.EngineService
	validator *services.ValidationHelper
}

func NewWalletHandler(engine *services.EngineService) *WalletHandler {
	return &WalletHandler{
		engine:    engine,
		validator: services.NewValidationHelper(),
	}
}

// Deposit starts a mobile-money deposit
// @Summary Deposit from mobile money
// @Description Record a PENDING deposit from a mobile-money account; the wallet is credited on confirmation
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{id=string,amount=int64,provider=string,phoneNumber=string} true "Deposit data"
// @Success 201 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 429 {object} services.ErrorResponse
// @Router /wallet/deposit [post]
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("userID").(string)

	var req struct {
		ID          string `json:"id"`
		Amount      int64  `json:"amount" validate:"required,gt=0"`
		Provider    string `json:"provider" validate:"required,oneof=MTN Vodafone AirtelTigo"`
		PhoneNumber string `json:"phoneNumber" validate:"required,gh_phone"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	t, err := h.engine.RecordDeposit(r.Context(), req.ID, userID, req.Amount, req.Provider, req.PhoneNumber)
	if err != nil {
		h.writeError(w, "deposit", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": t,
	})
}

// Withdraw moves wallet funds out to mobile money
// @Summary Withdraw to mobile money
// @Description Debit the wallet after password confirmation and queue the payout for settlement
// @Tags wallet
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{id=string,amount=int64,password=string} true "Withdrawal data"
// @Success 201 {object} models.Transaction
// @Failure 401 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /wallet/withdraw [post]
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("userID").(string)

	var req struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount" validate:"required,gt=0"`
		Password string `json:"password" validate:"required"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	t, err := h.engine.RecordWithdrawal(req.ID, userID, req.Amount, req.Password)
	if err != nil {
		h.writeError(w, "withdrawal", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":     true,
		"transaction": t,
	})
}

// Balance returns a user's wallet balance
// @Summary Get wallet balance
// @Description Fetch the wallet balance for a user; members may only read their own
// @Tags wallet
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} object{userId=string,balance=int64}
// @Failure 403 {object} services.ErrorResponse
// @Router /wallet/{userId}/balance [get]
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	callerID, _ := r.Context().Value("userID").(string)
	callerRole, _ := r.Context().Value("role").(string)
	userID := chi.URLParam(r, "userId")

	if callerID != userID && callerRole != string(models.RoleAdmin) && callerRole != string(models.RoleSuperuser) {
		services.SendErrorResponse(w, "Forbidden", http.StatusForbidden, nil)
		return
	}

	balance, err := h.engine.Ledger().WalletBalance(userID)
	if err != nil {
		log.Printf("[WALLET] Balance lookup for %s failed: %v", userID, err)
		services.SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"userId":  userID,
		"balance": balance,
	})
}

func (h *WalletHandler) writeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, services.ErrDuplicateTransaction) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"message": "Transaction already processed",
		})
		return
	}

	statusCode := services.StatusForError(err)
	if statusCode == http.StatusInternalServerError {
		log.Printf("[WALLET] %s failed: %v", op, err)
		services.SendErrorResponse(w, "Failed to process transaction", statusCode, nil)
		return
	}

	services.SendErrorResponse(w, err.Error(), statusCode, nil)
}
