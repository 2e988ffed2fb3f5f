package models

import "time"

// Frequency is a group's contribution cadence.
type Frequency string

const (
	FrequencyWeekly   Frequency = "Weekly"
	FrequencyBiWeekly Frequency = "Bi-Weekly"
	FrequencyMonthly  Frequency = "Monthly"
)

// Group is one susu circle. TotalPool is strictly per-group and is only
// mutated by the pool ledger inside a database transaction: it equals the
// sum of COMPLETED contributions minus COMPLETED payouts since the last
// payout reset.
type Group struct {
	ID                 string     `json:"id" db:"id"`
	Name               string     `json:"name" db:"name"`
	ContributionAmount int64      `json:"contributionAmount" db:"contribution_amount"`
	Currency           string     `json:"currency" db:"currency"`
	Frequency          Frequency  `json:"frequency" db:"frequency"`
	TotalPool          int64      `json:"totalPool" db:"total_pool"`
	MembersCount       int        `json:"membersCount" db:"members_count"`
	CycleNumber        int        `json:"cycleNumber" db:"cycle_number"`
	InviteCode         string     `json:"inviteCode" db:"invite_code"`
	NextPayoutDate     *time.Time `json:"nextPayoutDate" db:"next_payout_date"`
	CreatedAt          time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time  `json:"updatedAt" db:"updated_at"`
}

// PayoutInterval maps a frequency onto the wall-clock gap between payouts.
func (f Frequency) PayoutInterval() time.Duration {
	switch f {
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyBiWeekly:
		return 14 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}
