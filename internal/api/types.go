package api

import (
	"time"

	"github.com/insurego/claims-gateway/internal/claim"
	"github.com/insurego/claims-gateway/internal/policy"
	"github.com/insurego/claims-gateway/internal/visit"
)

type PolicyResponse struct {
	PolicyNumber   string  `json:"policyNumber"`
	Provider       string  `json:"insuranceProvider"`
	PolicyName     string  `json:"policyName,omitempty"`
	HolderID       string  `json:"holderId,omitempty"`
	HolderName     string  `json:"holderName,omitempty"`
	CoverageAmount float64 `json:"coverageAmount"`
	Premium        float64 `json:"premium"`
	IssueDate      string  `json:"issueDate"`
	ExpiryDate     string  `json:"expiryDate"`
	Status         string  `json:"status"`
	DaysRemaining  int     `json:"daysRemaining"`
}

func toPolicyResponse(v policy.View) PolicyResponse {
	return PolicyResponse{
		PolicyNumber:   v.PolicyNumber,
		Provider:       v.Provider,
		PolicyName:     v.PolicyName,
		HolderID:       v.HolderID,
		HolderName:     v.HolderName,
		CoverageAmount: v.CoverageAmount,
		Premium:        v.Premium,
		IssueDate:      v.IssueDate.Format("2006-01-02"),
		ExpiryDate:     v.ExpiryDate.Format("2006-01-02"),
		Status:         string(v.Status),
		DaysRemaining:  v.DaysRemaining,
	}
}

type CreateClaimRequest struct {
	PolicyNo             string  `json:"policyNo"`
	TotalBillAmount      float64 `json:"totalBillAmount"`
	DiagnosisCode        string  `json:"diagnosisCode"`
	TreatmentDescription string  `json:"treatmentDescription"`
	AppointmentID        string  `json:"appointmentId"`
}

type ReviewClaimRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

type ClaimResponse struct {
	ClaimID              string  `json:"claimId"`
	PolicyNo             string  `json:"policyNo"`
	Provider             string  `json:"insuranceProvider"`
	PatientID            string  `json:"patientId,omitempty"`
	PatientName          string  `json:"patientName,omitempty"`
	DoctorID             string  `json:"doctorId,omitempty"`
	DoctorName           string  `json:"doctorName,omitempty"`
	TotalBillAmount      float64 `json:"totalBillAmount"`
	InsurancePays        float64 `json:"insurancePays"`
	DiagnosisCode        string  `json:"diagnosisCode,omitempty"`
	TreatmentDescription string  `json:"treatmentDescription,omitempty"`
	ReviewerNotes        string  `json:"reviewerNotes,omitempty"`
	ReviewedBy           string  `json:"reviewedBy,omitempty"`
	Status               string  `json:"status"`
	DateFiled            string  `json:"dateFiled"`
	AppointmentID        string  `json:"appointmentId,omitempty"`
}

func toClaimResponse(c claim.Claim) ClaimResponse {
	dateFiled := ""
	if !c.DateFiled.IsZero() {
		dateFiled = c.DateFiled.Format(time.RFC3339)
	}
	return ClaimResponse{
		ClaimID:              c.ID,
		PolicyNo:             c.PolicyNumber,
		Provider:             c.Provider,
		PatientID:            c.PatientID,
		PatientName:          c.PatientName,
		DoctorID:             c.DoctorID,
		DoctorName:           c.DoctorName,
		TotalBillAmount:      c.TotalBillAmount,
		InsurancePays:        c.InsurancePays,
		DiagnosisCode:        c.DiagnosisCode,
		TreatmentDescription: c.TreatmentDescription,
		ReviewerNotes:        c.ReviewerNotes,
		ReviewedBy:           c.ReviewedBy,
		Status:               string(c.Status),
		DateFiled:            dateFiled,
		AppointmentID:        c.AppointmentID,
	}
}

func toClaimResponses(claims []claim.Claim) []ClaimResponse {
	out := make([]ClaimResponse, 0, len(claims))
	for _, c := range claims {
		out = append(out, toClaimResponse(c))
	}
	return out
}

type MetricsResponse struct {
	TotalClaims   int `json:"totalClaims"`
	ClaimsToday   int `json:"claimsToday"`
	PendingReview int `json:"pendingReview"`
	Approved      int `json:"approved"`
	Rejected      int `json:"rejected"`
}

type BookAppointmentRequest struct {
	DoctorID     string `json:"doctorId"`
	DoctorName   string `json:"doctorName"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Reason       string `json:"reason"`
	PolicyNumber string `json:"policyNo"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type AppointmentStatusRequest struct {
	Status string `json:"status"`
}

type AppointmentResponse struct {
	AppointmentID string `json:"appointmentId"`
	PatientID     string `json:"patientId"`
	PatientName   string `json:"patientName,omitempty"`
	DoctorID      string `json:"doctorId,omitempty"`
	DoctorName    string `json:"doctorName,omitempty"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Reason        string `json:"reason,omitempty"`
	PolicyNo      string `json:"policyNo,omitempty"`
	SelfPay       bool   `json:"selfPay"`
	Status        string `json:"status"`
}

func toAppointmentResponse(a visit.Appointment) AppointmentResponse {
	return AppointmentResponse{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		PatientName:   a.PatientName,
		DoctorID:      a.DoctorID,
		DoctorName:    a.DoctorName,
		Date:          a.Date,
		Time:          a.Time,
		Reason:        a.Reason,
		PolicyNo:      a.PolicyNumber,
		SelfPay:       a.SelfPay,
		Status:        string(a.Status),
	}
}

func toAppointmentResponses(appts []visit.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
