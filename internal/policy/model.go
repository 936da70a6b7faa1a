package policy

import (
	"math"
	"time"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusExpiring Status = "EXPIRING"
	StatusExpired  Status = "EXPIRED"
)

// DefaultExpiringWindow is how close to expiry a policy gets flagged EXPIRING.
const DefaultExpiringWindow = 60 * 24 * time.Hour

// Policy is a transient copy of an insurance coverage contract owned by the
// policy service. Status is never stored; it is derived from ExpiryDate.
type Policy struct {
	PolicyNumber   string
	Provider       string
	PolicyName     string
	HolderID       string
	HolderName     string
	CoverageAmount float64
	Premium        float64
	IssueDate      time.Time
	ExpiryDate     time.Time
}

// View is a policy annotated with its locally derived status.
type View struct {
	Policy
	Status        Status
	DaysRemaining int
}

// DaysRemaining returns the ceiling of the time left until expiry in days.
// It is negative once the policy has expired.
func DaysRemaining(expiry, now time.Time) int {
	return int(math.Ceil(expiry.Sub(now).Hours() / 24))
}

// Classify derives the policy status from the clock alone: EXPIRED at or past
// expiry, EXPIRING within the window, ACTIVE otherwise.
func Classify(expiry, now time.Time, window time.Duration) Status {
	days := DaysRemaining(expiry, now)
	switch {
	case days <= 0:
		return StatusExpired
	case time.Duration(days)*24*time.Hour <= window:
		return StatusExpiring
	default:
		return StatusActive
	}
}

// Expired reports whether the policy has expired as of now.
func Expired(p Policy, now time.Time) bool {
	return DaysRemaining(p.ExpiryDate, now) <= 0
}

// NewView annotates a policy with its derived status.
func NewView(p Policy, now time.Time, window time.Duration) View {
	return View{
		Policy:        p,
		Status:        Classify(p.ExpiryDate, now, window),
		DaysRemaining: DaysRemaining(p.ExpiryDate, now),
	}
}
