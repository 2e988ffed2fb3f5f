package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/susupay/backend/internal/models"
	"golang.org/x/crypto/argon2"
)

const (
	otpTTL        = 5 * time.Minute
	tokenLifetime = 24 * time.Hour
)

// AuthService handles registration, login, phone verification and token
// revocation.
type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	audit     *AuditService
	validator *ValidationHelper
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		audit:     NewAuditService(db),
		validator: NewValidationHelper(),
	}
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return base64.RawStdEncoding.EncodeToString(salt) + "$" + base64.RawStdEncoding.EncodeToString(hash), nil
}

func verifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expected) == 1
}

func generateJWT(userID string, role models.Role) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(tokenLifetime).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

// Register creates a user, opens their wallet and runs the automatic risk
// screen. High-scoring users come out VERIFIED and ACTIVE immediately;
// the rest start at NEW and move to PENDING when they request to join a
// group.
// @Summary Register a new user
// @Description Create an account, open a wallet and run the automatic identity screen
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{name=string,email=string,password=string,phoneNumber=string} true "Registration data"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name" validate:"required,min=2,max=100"`
		Email       string `json:"email" validate:"required,email"`
		Password    string `json:"password" validate:"required,min=8,max=72"`
		PhoneNumber string `json:"phoneNumber" validate:"omitempty,gh_phone"`
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

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var exists bool
	if err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		SendErrorResponse(w, "Registration failed", http.StatusInternalServerError, nil)
		return
	}
	if exists {
		SendErrorResponse(w, "Email already registered", http.StatusConflict, nil)
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		SendErrorResponse(w, "Registration failed", http.StatusInternalServerError, nil)
		return
	}

	phone := ""
	if req.PhoneNumber != "" {
		phone, err = NormalizePhone(req.PhoneNumber)
		if err != nil {
			SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
			return
		}
	}

	u := &models.User{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		Email:              email,
		PhoneNumber:        phone,
		Role:               models.RoleMember,
		Status:             models.StatusNew,
		VerificationStatus: models.VerificationPending,
	}

	score := StubRiskScore(u.ID)
	autoVerified := score >= AutoVerifyThreshold
	if autoVerified {
		u.Status = models.StatusActive
		u.VerificationStatus = models.VerificationVerified
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Registration failed", http.StatusInternalServerError, nil)
		return
	}
	defer dbTx.Rollback()

	_, err = dbTx.Exec(`
        INSERT INTO users (id, name, email, phone_number, password, role, status, verification_status, created_at, updated_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, NOW(), NOW())
    `, u.ID, u.Name, u.Email, phone, passwordHash, u.Role, u.Status, u.VerificationStatus)
	if err != nil {
		log.Printf("[AUTH] Registration insert failed: %v", err)
		SendErrorResponse(w, "Registration failed", http.StatusInternalServerError, nil)
		return
	}

	_, err = dbTx.Exec(`
        INSERT INTO wallets (user_id, balance, version, updated_at) VALUES ($1, 0, 1, NOW())
    `, u.ID)
	if err != nil {
		SendErrorResponse(w, "Registration failed", http.StatusInternalServerError, nil)
		return
	}

	if autoVerified {
		entry := &models.AuditLog{
			UserID:    u.ID,
			UserName:  u.Name,
			Action:    models.AuditVerified,
			Reason:    fmt.Sprintf("Automatic identity screen passed (score %d)", score),
			AdminID:   "system",
			AdminName: "system",
		}
		if err := s.audit.RecordTx(dbTx, entry); err != nil {
			SendErrorResponse(w, "Registration failed", http.StatusInternalServerError, nil)
			return
		}
	}

	if err := dbTx.Commit(); err != nil {
		SendErrorResponse(w, "Registration failed", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] User registered: %s (%s) status=%s verification=%s", u.ID, u.Email, u.Status, u.VerificationStatus)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(u)
}

// AcceptInvite lets an INVITED user claim their account by setting a
// password. Acceptance activates the account and opens the wallet;
// declining is simply never calling this.
// @Summary Accept an invitation
// @Description Set a password on an invited account and activate it
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Invite email and chosen password"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/accept-invite [post]
func (s *AuthService) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8,max=72"`
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

	email := strings.ToLower(strings.TrimSpace(req.Email))

	dbTx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to accept invitation", http.StatusInternalServerError, nil)
		return
	}
	defer dbTx.Rollback()

	var u models.User
	err = dbTx.QueryRow(`
        SELECT id, name, email, COALESCE(phone_number, ''), role, status, verification_status, created_at
        FROM users
        WHERE email = $1
        FOR UPDATE
    `, email).Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.Role, &u.Status, &u.VerificationStatus, &u.CreatedAt)

	if err == sql.ErrNoRows {
		SendErrorResponse(w, "No invitation for that email", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[AUTH] Invite lookup failed: %v", err)
		SendErrorResponse(w, "Failed to accept invitation", http.StatusInternalServerError, nil)
		return
	}

	if u.Status != models.StatusInvited {
		SendErrorResponse(w, "Account is not awaiting invitation acceptance", http.StatusConflict, nil)
		return
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		SendErrorResponse(w, "Failed to accept invitation", http.StatusInternalServerError, nil)
		return
	}

	u.Status = models.StatusActive
	_, err = dbTx.Exec(`
        UPDATE users SET password = $1, status = $2, updated_at = NOW() WHERE id = $3
    `, passwordHash, u.Status, u.ID)
	if err != nil {
		SendErrorResponse(w, "Failed to accept invitation", http.StatusInternalServerError, nil)
		return
	}

	_, err = dbTx.Exec(`
        INSERT INTO wallets (user_id, balance, version, updated_at) VALUES ($1, 0, 1, NOW())
        ON CONFLICT (user_id) DO NOTHING
    `, u.ID)
	if err != nil {
		SendErrorResponse(w, "Failed to accept invitation", http.StatusInternalServerError, nil)
		return
	}

	if err := dbTx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to accept invitation", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Invitation accepted: %s (%s)", u.ID, u.Email)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(u)
}

// Login authenticates by email and password
// @Summary Log in
// @Description Authenticate and receive a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Credentials"
// @Success 200 {object} object{token=string,user=models.User}
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
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

	var u models.User
	var passwordHash string
	err := s.db.QueryRow(`
        SELECT id, name, email, COALESCE(phone_number, ''), password, role, status, verification_status, created_at
        FROM users
        WHERE email = $1
    `, strings.ToLower(strings.TrimSpace(req.Email))).Scan(
		&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &passwordHash, &u.Role, &u.Status, &u.VerificationStatus, &u.CreatedAt)

	if err == sql.ErrNoRows || (err == nil && !verifyPassword(req.Password, passwordHash)) {
		SendErrorResponse(w, "Invalid email or password", http.StatusUnauthorized, nil)
		return
	}
	if err != nil {
		log.Printf("[AUTH] Login lookup failed: %v", err)
		SendErrorResponse(w, "Login failed", http.StatusInternalServerError, nil)
		return
	}

	if u.Status == models.StatusSuspended {
		SendErrorResponse(w, "Account suspended", http.StatusForbidden, nil)
		return
	}

	token, err := generateJWT(u.ID, u.Role)
	if err != nil {
		log.Printf("[AUTH] Token generation failed: %v", err)
		SendErrorResponse(w, "Login failed", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] User logged in: %s", u.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"token": token,
		"user":  u,
	})
}

// Logout revokes the presented token
// @Summary Log out
// @Description Blacklist the presented token until it would have expired
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" || tokenString == authHeader {
		SendErrorResponse(w, "Missing token", http.StatusUnauthorized, nil)
		return
	}

	if s.redis != nil {
		ttl := tokenLifetime
		token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
		if err == nil {
			if exp, err := token.Claims.GetExpirationTime(); err == nil && exp != nil {
				if remaining := time.Until(exp.Time); remaining > 0 {
					ttl = remaining
				}
			}
		}
		key := fmt.Sprintf("blacklist:%s", tokenString)
		if err := s.redis.Set(r.Context(), key, "revoked", ttl).Err(); err != nil {
			log.Printf("[AUTH] Failed to blacklist token: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logged out"})
}

// Account returns the authenticated user's profile and wallet balance
// @Summary Get own account
// @Description Fetch the authenticated user's profile and wallet balance
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{user=models.User,balance=int64}
// @Failure 404 {object} ErrorResponse
// @Router /auth/account [get]
func (s *AuthService) Account(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("userID").(string)

	var u models.User
	err := s.db.QueryRow(`
        SELECT id, name, email, COALESCE(phone_number, ''), role, status, verification_status, created_at
        FROM users
        WHERE id = $1
    `, userID).Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.Role, &u.Status, &u.VerificationStatus, &u.CreatedAt)

	if err == sql.ErrNoRows {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	var balance int64
	err = s.db.QueryRow(`SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil && err != sql.ErrNoRows {
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user":    u,
		"balance": balance,
	})
}

// RequestPhoneOTP sends a one-time code to the user's phone
// @Summary Request phone OTP
// @Description Generate a one-time code for phone verification (delivery is out of band)
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{phoneNumber=string} true "Phone number"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Router /auth/otp/request [post]
func (s *AuthService) RequestPhoneOTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("userID").(string)

	var req struct {
		PhoneNumber string `json:"phoneNumber" validate:"required,gh_phone"`
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

	if s.redis == nil {
		SendErrorResponse(w, "Phone verification unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	otp, err := generateOTP()
	if err != nil {
		SendErrorResponse(w, "Failed to generate code", http.StatusInternalServerError, nil)
		return
	}

	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	key := fmt.Sprintf("otp:%s:%s", userID, phone)
	if err := s.redis.Set(r.Context(), key, otp, otpTTL).Err(); err != nil {
		log.Printf("[AUTH] Failed to store OTP: %v", err)
		SendErrorResponse(w, "Failed to generate code", http.StatusInternalServerError, nil)
		return
	}

	// SMS delivery is handled by the provider integration; logged here for
	// development environments only.
	log.Printf("[AUTH] OTP generated for user %s phone %s", userID, FormatPhoneDisplay(phone))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Verification code sent"})
}

// VerifyPhoneOTP confirms a one-time code and stores the phone number
// @Summary Verify phone OTP
// @Description Confirm the one-time code and attach the phone number to the account
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{phoneNumber=string,otp=string} true "Phone number and code"
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Router /auth/otp/verify [post]
func (s *AuthService) VerifyPhoneOTP(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value("userID").(string)

	var req struct {
		PhoneNumber string `json:"phoneNumber" validate:"required,gh_phone"`
		OTP         string `json:"otp" validate:"required,len=6,numeric"`
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

	if s.redis == nil {
		SendErrorResponse(w, "Phone verification unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	phone, err := NormalizePhone(req.PhoneNumber)
	if err != nil {
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	key := fmt.Sprintf("otp:%s:%s", userID, phone)
	stored, err := s.redis.Get(r.Context(), key).Result()
	if err == redis.Nil || (err == nil && stored != req.OTP) {
		SendErrorResponse(w, "Invalid or expired code", http.StatusUnauthorized, nil)
		return
	}
	if err != nil {
		SendErrorResponse(w, "Verification failed", http.StatusInternalServerError, nil)
		return
	}

	s.redis.Del(context.Background(), key)

	_, err = s.db.Exec(`UPDATE users SET phone_number = $1, updated_at = NOW() WHERE id = $2`, phone, userID)
	if err != nil {
		SendErrorResponse(w, "Verification failed", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Phone verified for user %s: %s", userID, FormatPhoneDisplay(phone))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Phone number verified"})
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
