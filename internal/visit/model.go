package visit

import "time"

type Status string

const (
	StatusConfirmed   Status = "CONFIRMED"
	StatusCompleted   Status = "COMPLETED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusCancelled   Status = "CANCELLED"
)

// transitions is the authoritative appointment state machine. COMPLETED and
// CANCELLED are terminal.
var transitions = map[Status][]Status{
	StatusConfirmed:   {StatusCompleted, StatusRescheduled, StatusCancelled},
	StatusRescheduled: {StatusConfirmed, StatusCancelled},
	StatusCompleted:   nil,
	StatusCancelled:   nil,
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

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether the status is one the state machine knows about.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Appointment is a transient copy of a visit owned by the visit service.
// PolicyNumber is empty for self-pay visits.
type Appointment struct {
	ID           string
	PatientID    string
	PatientName  string
	DoctorID     string
	DoctorName   string
	Date         string // 2006-01-02
	Time         string // 15:04
	Reason       string
	PolicyNumber string
	SelfPay      bool
	Status       Status
	BookedAt     time.Time
}
