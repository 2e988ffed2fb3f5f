package models

import "time"

// Role is the platform-wide role of a user. Group-level roles live on
// GroupMembership so one person can admin one group and be a plain
// member of another.
type Role string

const (
	RoleMember    Role = "MEMBER"
	RoleAdmin     Role = "ADMIN"
	RoleSuperuser Role = "SUPERUSER"
)

// UserStatus drives what the contribution engine allows.
type UserStatus string

const (
	StatusNew       UserStatus = "NEW"
	StatusPending   UserStatus = "PENDING"
	StatusActive    UserStatus = "ACTIVE"
	StatusSuspended UserStatus = "SUSPENDED"
	StatusInvited   UserStatus = "INVITED"
)

// VerificationStatus is the KYC state of a user.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "UNVERIFIED"
	VerificationPending    VerificationStatus = "PENDING"
	VerificationVerified   VerificationStatus = "VERIFIED"
	VerificationRejected   VerificationStatus = "REJECTED"
)

type User struct {
	ID                 string             `json:"id" db:"id"`
	Name               string             `json:"name" db:"name"`
	Email              string             `json:"email" db:"email"`
	PhoneNumber        string             `json:"phoneNumber" db:"phone_number"`
	Role               Role               `json:"role" db:"role"`
	Status             UserStatus         `json:"status" db:"status"`
	VerificationStatus VerificationStatus `json:"verificationStatus" db:"verification_status"`
	ReliabilityScore   int                `json:"reliabilityScore" db:"reliability_score"`
	CreatedAt          time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time          `json:"updatedAt" db:"updated_at"`
}

// CanTransact reports whether the engine may accept money movements for
// this user: ACTIVE status and VERIFIED KYC, no exceptions.
func (u *User) CanTransact() bool {
	return u.Status == StatusActive && u.VerificationStatus == VerificationVerified
}

// GroupMembership is a user's per-group projection: role, status and
// payout position are scoped to one group.
type GroupMembership struct {
	GroupID          string     `json:"groupId" db:"group_id"`
	UserID           string     `json:"userId" db:"user_id"`
	Role             Role       `json:"role" db:"role"`
	Status           UserStatus `json:"status" db:"status"`
	Position         int        `json:"position" db:"position"`
	JoinDate         time.Time  `json:"joinDate" db:"join_date"`
	ReliabilityScore int        `json:"reliabilityScore" db:"reliability_score"`
}
