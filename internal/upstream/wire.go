package upstream

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/insurego/claims-gateway/internal/claim"
	"github.com/insurego/claims-gateway/internal/policy"
	"github.com/insurego/claims-gateway/internal/visit"
)

// errNotFound is internal to this package; each call site maps it to the
// matching domain error.
var errNotFound = errors.New("upstream resource not found")

// The services disagree on field names for the same semantic value (the
// provider name alone arrives under three keys), so every inbound payload
// goes through an explicit wire struct and normalize step here.

type policyWire struct {
	PolicyNumber      string  `json:"policyNumber"`
	PolicyNo          string  `json:"policyNo"`
	InsuranceProvider string  `json:"insuranceProvider"`
	Provider          string  `json:"provider"`
	CompanyName       string  `json:"companyName"`
	PolicyName        string  `json:"policyName"`
	UserID            string  `json:"userId"`
	PatientID         string  `json:"patientId"`
	PatientName       string  `json:"patientName"`
	HolderName        string  `json:"holderName"`
	CoverageAmount    float64 `json:"coverageAmount"`
	Premium           float64 `json:"premium"`
	IssueDate         string  `json:"issueDate"`
	ExpiryDate        string  `json:"expiryDate"`
}

func (w policyWire) normalize() (policy.Policy, error) {
	expiry, err := parseDate(w.ExpiryDate)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("policy expiry date: %w", err)
	}
	issue, err := parseDate(w.IssueDate)
	if err != nil {
		return policy.Policy{}, fmt.Errorf("policy issue date: %w", err)
	}

	return policy.Policy{
		PolicyNumber:   firstNonEmpty(w.PolicyNumber, w.PolicyNo),
		Provider:       firstNonEmpty(w.InsuranceProvider, w.Provider, w.CompanyName),
		PolicyName:     w.PolicyName,
		HolderID:       firstNonEmpty(w.UserID, w.PatientID),
		HolderName:     firstNonEmpty(w.PatientName, w.HolderName),
		CoverageAmount: w.CoverageAmount,
		Premium:        w.Premium,
		IssueDate:      issue,
		ExpiryDate:     expiry,
	}, nil
}

type claimWire struct {
	ClaimID              string  `json:"claimId"`
	ID                   string  `json:"id"`
	PolicyNo             string  `json:"policyNo"`
	PolicyNumber         string  `json:"policyNumber"`
	InsuranceProvider    string  `json:"insuranceProvider"`
	Provider             string  `json:"provider"`
	CompanyName          string  `json:"companyName"`
	UserID               string  `json:"userId"`
	PatientID            string  `json:"patientId"`
	PatientName          string  `json:"patientName"`
	DoctorID             string  `json:"doctorId"`
	DoctorName           string  `json:"doctorName"`
	Doctor               string  `json:"doctor"`
	TotalBillAmount      float64 `json:"totalBillAmount"`
	InsurancePays        float64 `json:"insurancePays"`
	DiagnosisCode        string  `json:"diagnosisCode"`
	TreatmentDescription string  `json:"treatmentDescription"`
	ReviewerNotes        string  `json:"reviewerNotes"`
	Notes                string  `json:"notes"`
	ReviewedBy           string  `json:"reviewedBy"`
	Status               string  `json:"status"`
	DateFiled            string  `json:"dateFiled"`
	AppointmentID        string  `json:"appointmentId"`
}

func (w claimWire) normalize() (claim.Claim, error) {
	filed, err := parseDate(w.DateFiled)
	if err != nil {
		return claim.Claim{}, fmt.Errorf("claim date filed: %w", err)
	}

	return claim.Claim{
		ID:                   firstNonEmpty(w.ClaimID, w.ID),
		PolicyNumber:         firstNonEmpty(w.PolicyNo, w.PolicyNumber),
		Provider:             firstNonEmpty(w.InsuranceProvider, w.Provider, w.CompanyName),
		PatientID:            firstNonEmpty(w.UserID, w.PatientID),
		PatientName:          w.PatientName,
		DoctorID:             w.DoctorID,
		DoctorName:           firstNonEmpty(w.DoctorName, w.Doctor),
		TotalBillAmount:      w.TotalBillAmount,
		InsurancePays:        w.InsurancePays,
		DiagnosisCode:        w.DiagnosisCode,
		TreatmentDescription: w.TreatmentDescription,
		ReviewerNotes:        firstNonEmpty(w.ReviewerNotes, w.Notes),
		ReviewedBy:           w.ReviewedBy,
		Status:               claim.Status(w.Status),
		DateFiled:            filed,
		AppointmentID:        w.AppointmentID,
	}, nil
}

type appointmentWire struct {
	AppointmentID string `json:"appointmentId"`
	ID            string `json:"id"`
	UserID        string `json:"userId"`
	PatientID     string `json:"patientId"`
	PatientName   string `json:"patientName"`
	DoctorID      string `json:"doctorId"`
	DoctorName    string `json:"doctorName"`
	Doctor        string `json:"doctor"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Reason        string `json:"reason"`
	PolicyNo      string `json:"policyNo"`
	PolicyNumber  string `json:"policyNumber"`
	SelfPay       bool   `json:"selfPay"`
	Status        string `json:"status"`
	BookedAt      string `json:"bookedAt"`
}

func (w appointmentWire) normalize() visit.Appointment {
	booked, err := parseDate(w.BookedAt)
	if err != nil {
		booked = time.Time{}
	}

	policyNo := firstNonEmpty(w.PolicyNo, w.PolicyNumber)
	return visit.Appointment{
		ID:           firstNonEmpty(w.AppointmentID, w.ID),
		PatientID:    firstNonEmpty(w.UserID, w.PatientID),
		PatientName:  w.PatientName,
		DoctorID:     w.DoctorID,
		DoctorName:   firstNonEmpty(w.DoctorName, w.Doctor),
		Date:         w.Date,
		Time:         w.Time,
		Reason:       w.Reason,
		PolicyNumber: policyNo,
		SelfPay:      w.SelfPay || policyNo == "",
		Status:       visit.Status(w.Status),
		BookedAt:     booked,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// parseDate accepts the two formats the services actually emit: bare dates
// from the Java LocalDate fields and RFC3339 timestamps from everything else.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
