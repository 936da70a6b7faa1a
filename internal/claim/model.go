package claim

import "time"

type Status string

const (
	StatusOpen            Status = "OPEN"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
)

// transitions is the authoritative claim state machine. Transitions are
// one-directional; APPROVED and REJECTED are terminal.
var transitions = map[Status][]Status{
	StatusOpen:            {StatusPendingApproval},
	StatusPendingApproval: {StatusApproved, StatusRejected},
	StatusApproved:        nil,
	StatusRejected:        nil,
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a claim in this status is read-only.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Decision is a provider's review verdict.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Target maps a decision to the terminal status it produces.
func (d Decision) Target() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	default:
		return "", false
	}
}

// Claim is a transient copy of a reimbursement request owned by the claim
// service. InsurancePays is computed upstream on approval and is zero before.
type Claim struct {
	ID                   string
	PolicyNumber         string
	Provider             string
	PatientID            string
	PatientName          string
	DoctorID             string
	DoctorName           string
	TotalBillAmount      float64
	InsurancePays        float64
	DiagnosisCode        string
	TreatmentDescription string
	ReviewerNotes        string
	ReviewedBy           string
	Status               Status
	DateFiled            time.Time
	AppointmentID        string
}

// Metrics summarizes a provider's claim queue.
type Metrics struct {
	TotalClaims   int
	ClaimsToday   int
	PendingReview int
	Approved      int
	Rejected      int
}
