// stub-upstream emulates the external policy, claim and visit services for
// local development and the simulator. Data lives in memory and is seeded
// with fake but stable records. It deliberately mimics the real services'
// quirks: inconsistent field names and doctor identities that sometimes
// propagate as names without ids.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/insurego/claims-gateway/internal/logging"
)

var providers = []string{"BlueShield Health", "MediCare Plus", "Sunrise Assurance", "Unity Mutual"}

type stubPolicy struct {
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

type stubClaim struct {
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
	Status               string
	DateFiled            time.Time
	AppointmentID        string
}

type stubAppointment struct {
	ID           string
	PatientID    string
	PatientName  string
	DoctorID     string
	DoctorName   string
	Date         string
	Time         string
	Reason       string
	PolicyNumber string
	SelfPay      bool
	Status       string
}

type store struct {
	mu           sync.Mutex
	policies     map[string]*stubPolicy
	claims       map[string]*stubClaim
	appointments map[string]*stubAppointment
	nextClaim    int
	nextAppt     int
}

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	logging.Init("stub-upstream", env)

	port := os.Getenv("STUB_PORT")
	if port == "" {
		port = "9090"
	}
	s := &store{
		policies:     make(map[string]*stubPolicy),
		claims:       make(map[string]*stubClaim),
		appointments: make(map[string]*stubAppointment),
		nextClaim:    1,
		nextAppt:     1,
	}
	s.seed(40, 10)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/policy/{policyNumber}", s.getPolicy)
	r.Get("/policy", s.listPolicies)
	r.Put("/policy/{policyNumber}/renew", s.renewPolicy)

	r.Post("/claim", s.createClaim)
	r.Get("/claim/{id}", s.getClaim)
	r.Get("/claim", s.listClaims)
	r.Put("/claim/{id}/action", s.claimAction)

	r.Post("/appointment", s.bookAppointment)
	r.Get("/appointment/{id}", s.getAppointment)
	r.Get("/appointment", s.listAppointments)
	r.Put("/appointment/{id}/reschedule", s.reschedule)
	r.Put("/appointment/{id}/status", s.appointmentStatus)

	log.Info().Str("port", port).Int("policies", len(s.policies)).Msg("stub upstream listening")
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal().Err(err).Msg("stub upstream stopped")
	}
}

// seed creates deterministic ids (POL-1000.., P-1.., D-1..) so the simulator
// can address records without querying first. A slice of policies is already
// expired or about to expire to exercise the verification and renewal paths.
func (s *store) seed(policyCount, doctorCount int) {
	gofakeit.Seed(42)
	now := time.Now()

	doctors := make([]struct{ id, name string }, doctorCount)
	for i := range doctors {
		doctors[i].id = fmt.Sprintf("D-%d", i+1)
		doctors[i].name = "Dr. " + gofakeit.Name()
	}

	for i := 0; i < policyCount; i++ {
		holderID := fmt.Sprintf("P-%d", i+1)
		expiry := now.AddDate(1, 0, -gofakeit.Number(0, 30))
		switch i % 10 {
		case 0:
			expiry = now.AddDate(0, 0, -gofakeit.Number(1, 200)) // expired
		case 1:
			expiry = now.AddDate(0, 0, gofakeit.Number(1, 59)) // expiring
		}

		p := &stubPolicy{
			PolicyNumber:   fmt.Sprintf("POL-%d", 1000+i),
			Provider:       providers[i%len(providers)],
			PolicyName:     gofakeit.RandomString([]string{"Essential Care", "Family Shield", "Total Health", "Silver Plan"}),
			HolderID:       holderID,
			HolderName:     gofakeit.Name(),
			CoverageAmount: float64(gofakeit.Number(50, 500)) * 1000,
			Premium:        float64(gofakeit.Number(80, 600)),
			IssueDate:      expiry.AddDate(-1, 0, 0),
			ExpiryDate:     expiry,
		}
		s.policies[p.PolicyNumber] = p

		doc := doctors[i%len(doctors)]
		appt := &stubAppointment{
			ID:           fmt.Sprintf("APT-%d", s.nextAppt),
			PatientID:    holderID,
			PatientName:  p.HolderName,
			DoctorID:     doc.id,
			DoctorName:   doc.name,
			Date:         now.AddDate(0, 0, -gofakeit.Number(0, 20)).Format("2006-01-02"),
			Time:         fmt.Sprintf("%02d:00", gofakeit.Number(8, 17)),
			Reason:       gofakeit.RandomString([]string{"Checkup", "Follow-up", "Consultation"}),
			PolicyNumber: p.PolicyNumber,
			Status:       "COMPLETED",
		}
		s.nextAppt++
		s.appointments[appt.ID] = appt

		if i%3 == 0 {
			c := &stubClaim{
				ID:                   fmt.Sprintf("CLM-%d", s.nextClaim),
				PolicyNumber:         p.PolicyNumber,
				Provider:             p.Provider,
				PatientID:            holderID,
				PatientName:          p.HolderName,
				DoctorName:           doc.name, // id deliberately dropped for some records
				TotalBillAmount:      float64(gofakeit.Number(50, 2000)),
				DiagnosisCode:        fmt.Sprintf("%c%02d.%d", 'A'+rune(gofakeit.Number(0, 20)), gofakeit.Number(0, 99), gofakeit.Number(0, 9)),
				TreatmentDescription: gofakeit.Sentence(6),
				Status:               "PENDING_APPROVAL",
				DateFiled:            now.AddDate(0, 0, -gofakeit.Number(0, 15)),
				AppointmentID:        appt.ID,
			}
			if i%6 == 0 {
				c.DoctorID = doc.id
			}
			s.nextClaim++
			s.claims[c.ID] = c
		}
	}
}

// policy payloads use the canonical names the policy service emits
func policyJSON(p *stubPolicy) map[string]any {
	return map[string]any{
		"policyNumber":      p.PolicyNumber,
		"insuranceProvider": p.Provider,
		"policyName":        p.PolicyName,
		"userId":            p.HolderID,
		"patientName":       p.HolderName,
		"coverageAmount":    p.CoverageAmount,
		"premium":           p.Premium,
		"issueDate":         p.IssueDate.Format("2006-01-02"),
		"expiryDate":        p.ExpiryDate.Format("2006-01-02"),
	}
}

// claim payloads use the claim service's divergent names on purpose
func claimJSON(c *stubClaim) map[string]any {
	return map[string]any{
		"claimId":              c.ID,
		"policyNo":             c.PolicyNumber,
		"provider":             c.Provider,
		"userId":               c.PatientID,
		"patientName":          c.PatientName,
		"doctorId":             c.DoctorID,
		"doctor":               c.DoctorName,
		"totalBillAmount":      c.TotalBillAmount,
		"insurancePays":        c.InsurancePays,
		"diagnosisCode":        c.DiagnosisCode,
		"treatmentDescription": c.TreatmentDescription,
		"notes":                c.ReviewerNotes,
		"reviewedBy":           c.ReviewedBy,
		"status":               c.Status,
		"dateFiled":            c.DateFiled.Format(time.RFC3339),
		"appointmentId":        c.AppointmentID,
	}
}

func appointmentJSON(a *stubAppointment) map[string]any {
	return map[string]any{
		"appointmentId": a.ID,
		"userId":        a.PatientID,
		"patientName":   a.PatientName,
		"doctorId":      a.DoctorID,
		"doctorName":    a.DoctorName,
		"date":          a.Date,
		"time":          a.Time,
		"reason":        a.Reason,
		"policyNo":      a.PolicyNumber,
		"selfPay":       a.SelfPay,
		"status":        a.Status,
	}
}

func (s *store) getPolicy(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[chi.URLParam(r, "policyNumber")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, policyJSON(p))
}

func (s *store) listPolicies(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patient := r.URL.Query().Get("patient")
	out := make([]map[string]any, 0)
	for _, p := range s.policies {
		if patient == "" || p.HolderID == patient {
			out = append(out, policyJSON(p))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *store) renewPolicy(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[chi.URLParam(r, "policyNumber")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	today := time.Now()
	if p.ExpiryDate.Before(today) {
		p.ExpiryDate = today.AddDate(1, 0, 0)
	} else {
		p.ExpiryDate = p.ExpiryDate.AddDate(1, 0, 0)
	}
	writeJSON(w, http.StatusOK, policyJSON(p))
}

func (s *store) createClaim(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PolicyNo             string  `json:"policyNo"`
		InsuranceProvider    string  `json:"insuranceProvider"`
		UserID               string  `json:"userId"`
		PatientName          string  `json:"patientName"`
		DoctorID             string  `json:"doctorId"`
		DoctorName           string  `json:"doctorName"`
		TotalBillAmount      float64 `json:"totalBillAmount"`
		DiagnosisCode        string  `json:"diagnosisCode"`
		TreatmentDescription string  `json:"treatmentDescription"`
		Status               string  `json:"status"`
		AppointmentID        string  `json:"appointmentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	status := body.Status
	if status == "" {
		status = "OPEN"
	}

	c := &stubClaim{
		ID:                   fmt.Sprintf("CLM-%d", s.nextClaim),
		PolicyNumber:         body.PolicyNo,
		Provider:             body.InsuranceProvider,
		PatientID:            body.UserID,
		PatientName:          body.PatientName,
		DoctorID:             body.DoctorID,
		DoctorName:           body.DoctorName,
		TotalBillAmount:      body.TotalBillAmount,
		DiagnosisCode:        body.DiagnosisCode,
		TreatmentDescription: body.TreatmentDescription,
		Status:               status,
		DateFiled:            time.Now(),
		AppointmentID:        body.AppointmentID,
	}
	s.nextClaim++
	s.claims[c.ID] = c

	writeJSON(w, http.StatusCreated, claimJSON(c))
}

func (s *store) getClaim(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[chi.URLParam(r, "id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, claimJSON(c))
}

func (s *store) listClaims(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	provider := r.URL.Query().Get("provider")
	patient := r.URL.Query().Get("patient")
	doctor := r.URL.Query().Get("doctor")

	out := make([]map[string]any, 0)
	for _, c := range s.claims {
		switch {
		case provider != "":
			if strings.EqualFold(c.Provider, provider) {
				out = append(out, claimJSON(c))
			}
		case patient != "":
			if c.PatientID == patient {
				out = append(out, claimJSON(c))
			}
		case doctor != "":
			if c.DoctorID == doctor || strings.EqualFold(strings.TrimSpace(c.DoctorName), strings.TrimSpace(doctor)) {
				out = append(out, claimJSON(c))
			}
		default:
			out = append(out, claimJSON(c))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *store) claimAction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes      string `json:"notes"`
		ReviewedBy string `json:"reviewedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	status := r.URL.Query().Get("status")
	if status != "APPROVED" && status != "REJECTED" {
		http.Error(w, "status must be APPROVED or REJECTED", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[chi.URLParam(r, "id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if c.Status == "APPROVED" || c.Status == "REJECTED" {
		http.Error(w, "claim already resolved", http.StatusConflict)
		return
	}

	c.Status = status
	c.ReviewerNotes = body.Notes
	c.ReviewedBy = body.ReviewedBy
	if status == "APPROVED" {
		// same 80/20 split the real claim service applies
		c.InsurancePays = c.TotalBillAmount * 0.80
	} else {
		c.InsurancePays = 0
	}
	c.TreatmentDescription = fmt.Sprintf("%s | Provider Action (%s by %s): %s",
		c.TreatmentDescription, status, body.ReviewedBy, body.Notes)

	writeJSON(w, http.StatusOK, claimJSON(c))
}

func (s *store) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID      string `json:"userId"`
		PatientName string `json:"patientName"`
		DoctorID    string `json:"doctorId"`
		DoctorName  string `json:"doctorName"`
		Date        string `json:"date"`
		Time        string `json:"time"`
		Reason      string `json:"reason"`
		PolicyNo    string `json:"policyNo"`
		SelfPay     bool   `json:"selfPay"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := &stubAppointment{
		ID:           fmt.Sprintf("APT-%d", s.nextAppt),
		PatientID:    body.UserID,
		PatientName:  body.PatientName,
		DoctorID:     body.DoctorID,
		DoctorName:   body.DoctorName,
		Date:         body.Date,
		Time:         body.Time,
		Reason:       body.Reason,
		PolicyNumber: body.PolicyNo,
		SelfPay:      body.SelfPay,
		Status:       "CONFIRMED",
	}
	s.nextAppt++
	s.appointments[a.ID] = a

	writeJSON(w, http.StatusCreated, appointmentJSON(a))
}

func (s *store) getAppointment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[chi.URLParam(r, "id")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, appointmentJSON(a))
}

func (s *store) listAppointments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patient := r.URL.Query().Get("patient")
	doctor := r.URL.Query().Get("doctor")

	out := make([]map[string]any, 0)
	for _, a := range s.appointments {
		switch {
		case patient != "":
			if a.PatientID == patient {
				out = append(out, appointmentJSON(a))
			}
		case doctor != "":
			if a.DoctorID == doctor || strings.EqualFold(a.DoctorName, doctor) {
				out = append(out, appointmentJSON(a))
			}
		default:
			out = append(out, appointmentJSON(a))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *store) reschedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date string `json:"date"`
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[chi.URLParam(r, "id")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	a.Date = body.Date
	a.Time = body.Time
	a.Status = "RESCHEDULED"
	writeJSON(w, http.StatusOK, appointmentJSON(a))
}

func (s *store) appointmentStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[chi.URLParam(r, "id")]
	if !ok {
		http.NotFound(w, r)
		return
	}

	a.Status = body.Status
	writeJSON(w, http.StatusOK, appointmentJSON(a))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
