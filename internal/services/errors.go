package services

import (
	"errors"
	"net/http"
)

// Expected failure modes are sentinel errors so callers can branch with
// errors.Is instead of string matching. Anything not listed here is an
// unexpected failure and surfaces as a 500.
var (
	ErrInsufficientEligibility = errors.New("user is not eligible to transact")
	ErrNotGroupMember          = errors.New("user is not an active member of this group")
	ErrEmptySchedule           = errors.New("payout schedule is empty")
	ErrEmptyPool               = errors.New("group pool is empty")
	ErrInsufficientBalance     = errors.New("insufficient wallet balance")
	ErrDuplicateTransaction    = errors.New("transaction already processed")
	ErrDuplicateInviteCode     = errors.New("invite code already in use")
	ErrAmountOutOfRange        = errors.New("amount outside allowed range")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrInvalidPhoneNumber      = errors.New("invalid mobile money phone number")
	ErrInvalidTransition       = errors.New("status transition not allowed")
	ErrInvalidPassword         = errors.New("invalid password")
	ErrUserReferenced          = errors.New("user is referenced by ledger transactions")
	ErrEmailRegistered         = errors.New("email already registered")
	ErrRateLimited             = errors.New("rate limit exceeded")
)

// StatusForError maps engine errors onto HTTP status codes so every
// handler reports the same taxonomy: 422 for eligibility, 400 for
// validation, 409 for conflicts, 429 for rate limits.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrInsufficientEligibility),
		errors.Is(err, ErrNotGroupMember),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrEmptyPool),
		errors.Is(err, ErrEmptySchedule):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrAmountOutOfRange),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidPhoneNumber),
		errors.Is(err, ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateTransaction),
		errors.Is(err, ErrDuplicateInviteCode),
		errors.Is(err, ErrUserReferenced),
		errors.Is(err, ErrEmailRegistered):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidPassword):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
