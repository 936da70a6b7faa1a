package visit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/insurego/claims-gateway/internal/auth"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvalidTransition   = errors.New("invalid appointment status transition")
	ErrMissingFields       = errors.New("appointment is missing required fields")
	ErrForbidden           = errors.New("appointment does not belong to caller")
)

// Filter narrows an upstream appointment listing to one party.
type Filter struct {
	PatientID string
	DoctorID  string
}

// Backend is the slice of the visit service the gateway depends on.
type Backend interface {
	GetAppointment(ctx context.Context, id string) (*Appointment, error)
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)
	BookAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, id, date, timeOfDay string) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id string, to Status) (*Appointment, error)
}

type Service struct {
	backend Backend
}

func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

type BookInput struct {
	DoctorID     string
	DoctorName   string
	Date         string
	Time         string
	Reason       string
	PolicyNumber string // empty means self-pay
}

// Book creates a CONFIRMED appointment for the calling patient.
func (s *Service) Book(ctx context.Context, id auth.Identity, in BookInput) (*Appointment, error) {
	if strings.TrimSpace(in.DoctorID) == "" && strings.TrimSpace(in.DoctorName) == "" {
		return nil, fmt.Errorf("%w: doctor", ErrMissingFields)
	}
	if in.Date == "" || in.Time == "" {
		return nil, fmt.Errorf("%w: date and time", ErrMissingFields)
	}

	appt := Appointment{
		PatientID:    id.UserID,
		PatientName:  id.Name,
		DoctorID:     strings.TrimSpace(in.DoctorID),
		DoctorName:   strings.TrimSpace(in.DoctorName),
		Date:         in.Date,
		Time:         in.Time,
		Reason:       in.Reason,
		PolicyNumber: strings.TrimSpace(in.PolicyNumber),
		SelfPay:      strings.TrimSpace(in.PolicyNumber) == "",
		Status:       StatusConfirmed,
	}

	created, err := s.backend.BookAppointment(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("book appointment: %w", err)
	}
	return created, nil
}

// Reschedule moves an appointment to RESCHEDULED with a new date and time.
// Only the booking patient may reschedule, and only from a non-terminal state.
func (s *Service) Reschedule(ctx context.Context, id auth.Identity, apptID, date, timeOfDay string) (*Appointment, error) {
	if date == "" || timeOfDay == "" {
		return nil, fmt.Errorf("%w: date and time", ErrMissingFields)
	}

	current, err := s.backend.GetAppointment(ctx, apptID)
	if err != nil {
		return nil, err
	}
	if current.PatientID != id.UserID {
		return nil, ErrForbidden
	}
	if !CanTransition(current.Status, StatusRescheduled) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.backend.RescheduleAppointment(ctx, apptID, date, timeOfDay)
	if err != nil {
		return nil, fmt.Errorf("reschedule appointment: %w", err)
	}
	return updated, nil
}

// UpdateStatus advances the appointment state machine: doctors complete or
// confirm visits, patients cancel their own.
func (s *Service) UpdateStatus(ctx context.Context, id auth.Identity, apptID string, to Status) (*Appointment, error) {
	if !to.Valid() {
		return nil, ErrInvalidTransition
	}

	current, err := s.backend.GetAppointment(ctx, apptID)
	if err != nil {
		return nil, err
	}

	switch id.Role {
	case auth.RoleDoctor:
		if !doctorMatches(*current, id) {
			return nil, ErrForbidden
		}
	case auth.RolePatient:
		if current.PatientID != id.UserID {
			return nil, ErrForbidden
		}
		if to != StatusCancelled {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	if !CanTransition(current.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.backend.UpdateAppointmentStatus(ctx, apptID, to)
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return updated, nil
}

// ListForRole returns the caller's appointments, newest first.
func (s *Service) ListForRole(ctx context.Context, id auth.Identity) ([]Appointment, error) {
	var f Filter
	switch id.Role {
	case auth.RolePatient:
		f.PatientID = id.UserID
	case auth.RoleDoctor:
		f.DoctorID = id.UserID
	default:
		return nil, auth.ErrUnknownRole
	}

	appts, err := s.backend.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	sort.Slice(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date > appts[j].Date
		}
		if appts[i].Time != appts[j].Time {
			return appts[i].Time > appts[j].Time
		}
		return appts[i].ID > appts[j].ID
	})

	return appts, nil
}

// doctorMatches applies the same defensive identity reconciliation used for
// claims: the doctor id propagated from booking is not guaranteed, so the
// name is accepted as a fallback, trimmed and case-insensitive.
func doctorMatches(a Appointment, id auth.Identity) bool {
	if a.DoctorID != "" && a.DoctorID == id.UserID {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(a.DoctorName), strings.TrimSpace(id.Name))
}
