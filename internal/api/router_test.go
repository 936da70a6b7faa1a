package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurego/claims-gateway/internal/auth"
	"github.com/insurego/claims-gateway/internal/claim"
	"github.com/insurego/claims-gateway/internal/policy"
	"github.com/insurego/claims-gateway/internal/visit"
)

const testSecret = "router-test-secret"

// fakeServices stands in for all three upstream services behind the
// coordinator, policy and visit layers.
type fakeServices struct {
	policies     map[string]policy.Policy
	claims       map[string]claim.Claim
	appointments map[string]visit.Appointment
	nextClaim    int
}

func newFakeServices() *fakeServices {
	return &fakeServices{
		policies:     make(map[string]policy.Policy),
		claims:       make(map[string]claim.Claim),
		appointments: make(map[string]visit.Appointment),
	}
}

func (f *fakeServices) GetPolicy(_ context.Context, policyNumber string) (*policy.Policy, error) {
	p, ok := f.policies[policyNumber]
	if !ok {
		return nil, policy.ErrPolicyNotFound
	}
	return &p, nil
}

func (f *fakeServices) ListPolicies(_ context.Context, patientID string) ([]policy.Policy, error) {
	var out []policy.Policy
	for _, p := range f.policies {
		if p.HolderID == patientID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeServices) RenewPolicy(_ context.Context, policyNumber string) error {
	p, ok := f.policies[policyNumber]
	if !ok {
		return policy.ErrPolicyNotFound
	}
	p.ExpiryDate = p.ExpiryDate.AddDate(1, 0, 0)
	f.policies[policyNumber] = p
	return nil
}

func (f *fakeServices) GetClaim(_ context.Context, id string) (*claim.Claim, error) {
	c, ok := f.claims[id]
	if !ok {
		return nil, claim.ErrClaimNotFound
	}
	return &c, nil
}

func (f *fakeServices) ListClaims(_ context.Context, filter claim.Filter) ([]claim.Claim, error) {
	var out []claim.Claim
	for _, c := range f.claims {
		switch {
		case filter.PatientID != "":
			if c.PatientID == filter.PatientID {
				out = append(out, c)
			}
		case filter.Doctor != "":
			if c.DoctorID == filter.Doctor || c.DoctorName == filter.Doctor {
				out = append(out, c)
			}
		case filter.Provider != "":
			if c.Provider == filter.Provider {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (f *fakeServices) CreateClaim(_ context.Context, c claim.Claim) (*claim.Claim, error) {
	f.nextClaim++
	c.ID = fmt.Sprintf("CLM-%d", f.nextClaim)
	c.DateFiled = time.Now()
	f.claims[c.ID] = c
	return &c, nil
}

func (f *fakeServices) ClaimAction(_ context.Context, id string, to claim.Status, notes, reviewedBy string) (*claim.Claim, error) {
	c, ok := f.claims[id]
	if !ok {
		return nil, claim.ErrClaimNotFound
	}
	c.Status = to
	c.ReviewerNotes = notes
	c.ReviewedBy = reviewedBy
	f.claims[id] = c
	return &c, nil
}

func (f *fakeServices) GetAppointment(_ context.Context, id string) (*visit.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok {
		return nil, visit.ErrAppointmentNotFound
	}
	return &a, nil
}

func (f *fakeServices) ListAppointments(_ context.Context, filter visit.Filter) ([]visit.Appointment, error) {
	var out []visit.Appointment
	for _, a := range f.appointments {
		if filter.PatientID != "" && a.PatientID != filter.PatientID {
			continue
		}
		if filter.DoctorID != "" && a.DoctorID != filter.DoctorID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeServices) BookAppointment(_ context.Context, a visit.Appointment) (*visit.Appointment, error) {
	a.ID = fmt.Sprintf("APT-%d", len(f.appointments)+1)
	f.appointments[a.ID] = a
	return &a, nil
}

func (f *fakeServices) RescheduleAppointment(_ context.Context, id, date, timeOfDay string) (*visit.Appointment, error) {
	a := f.appointments[id]
	a.Date = date
	a.Time = timeOfDay
	a.Status = visit.StatusRescheduled
	f.appointments[id] = a
	return &a, nil
}

func (f *fakeServices) UpdateAppointmentStatus(_ context.Context, id string, to visit.Status) (*visit.Appointment, error) {
	a := f.appointments[id]
	a.Status = to
	f.appointments[id] = a
	return &a, nil
}

func newTestRouter(t *testing.T, fake *fakeServices) http.Handler {
	t.Helper()

	store := claim.NewMemoryStore(30 * time.Minute)
	watch := policy.NewMemoryWatchlist()

	return NewRouter(RouterConfig{
		Claims:    claim.NewCoordinator(fake, store, watch, policy.DefaultExpiringWindow),
		Policies:  policy.NewService(fake, watch, policy.DefaultExpiringWindow),
		Visits:    visit.NewService(fake),
		Redis:     redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}),
		Upstreams: map[string]string{},
		JWTSecret: testSecret,
		Env:       "test",
		Version:   "test",
	})
}

func token(t *testing.T, id auth.Identity) string {
	t.Helper()
	raw, err := auth.GenerateToken(id, testSecret, time.Hour)
	require.NoError(t, err)
	return raw
}

func doRequest(t *testing.T, router http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

var (
	doctorID   = auth.Identity{UserID: "D-1", Name: "Dr. Gregory House", Role: auth.RoleDoctor}
	patientID  = auth.Identity{UserID: "P-7", Name: "Jane Doe", Role: auth.RolePatient}
	providerID = auth.Identity{UserID: "PRV-1", Name: "Alice Reviewer", Role: auth.RoleProvider, Provider: "BlueShield Health"}
)

func seedPolicy(fake *fakeServices) {
	fake.policies["POL-1001"] = policy.Policy{
		PolicyNumber: "POL-1001",
		Provider:     "BlueShield Health",
		HolderID:     "P-7",
		HolderName:   "Jane Doe",
		ExpiryDate:   time.Now().Add(200 * 24 * time.Hour),
	}
}

func TestRouterRejectsMissingToken(t *testing.T) {
	router := newTestRouter(t, newFakeServices())

	rec := doRequest(t, router, http.MethodGet, "/claims", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "missing_token", resp.Error)
}

func TestRouterRejectsBadToken(t *testing.T) {
	router := newTestRouter(t, newFakeServices())

	rec := doRequest(t, router, http.MethodGet, "/claims", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterEnforcesRoles(t *testing.T) {
	router := newTestRouter(t, newFakeServices())

	// Metrics are provider-only.
	rec := doRequest(t, router, http.MethodGet, "/claims/metrics", token(t, patientID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Verification is doctor-only.
	rec = doRequest(t, router, http.MethodPost, "/policies/POL-1/verify", token(t, patientID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Providers never create claims.
	rec = doRequest(t, router, http.MethodPost, "/claims", token(t, providerID),
		map[string]any{"policyNo": "POL-1", "totalBillAmount": 100})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVerifyThenFileOverHTTP(t *testing.T) {
	fake := newFakeServices()
	seedPolicy(fake)
	router := newTestRouter(t, fake)
	bearer := token(t, doctorID)

	rec := doRequest(t, router, http.MethodPost, "/policies/POL-1001/verify", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var verified PolicyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verified))
	assert.Equal(t, "ACTIVE", verified.Status)

	rec = doRequest(t, router, http.MethodPost, "/claims", bearer, map[string]any{
		"policyNo":             "POL-1001",
		"totalBillAmount":      250.00,
		"diagnosisCode":        "J45.909",
		"treatmentDescription": "Inhaler prescription",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created ClaimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "PENDING_APPROVAL", created.Status)
	assert.Equal(t, 250.00, created.TotalBillAmount)
	assert.Equal(t, "P-7", created.PatientID)
	assert.Equal(t, "Jane Doe", created.PatientName)
}

func TestFileWithoutVerificationOverHTTP(t *testing.T) {
	fake := newFakeServices()
	seedPolicy(fake)
	router := newTestRouter(t, fake)

	rec := doRequest(t, router, http.MethodPost, "/claims", token(t, doctorID), map[string]any{
		"policyNo":        "POL-1001",
		"totalBillAmount": 100,
	})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "policy_not_verified", resp.Error)
}

func TestVerifyExpiredPolicyOverHTTP(t *testing.T) {
	fake := newFakeServices()
	fake.policies["POL-OLD"] = policy.Policy{
		PolicyNumber: "POL-OLD",
		HolderID:     "P-7",
		ExpiryDate:   time.Now().Add(-24 * time.Hour),
	}
	router := newTestRouter(t, fake)

	rec := doRequest(t, router, http.MethodPost, "/policies/POL-OLD/verify", token(t, doctorID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVerifyUnknownPolicyOverHTTP(t *testing.T) {
	router := newTestRouter(t, newFakeServices())

	rec := doRequest(t, router, http.MethodPost, "/policies/POL-404/verify", token(t, doctorID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewFlowOverHTTP(t *testing.T) {
	fake := newFakeServices()
	fake.claims["CLM-1"] = claim.Claim{
		ID:       "CLM-1",
		Provider: "BlueShield Health",
		Status:   claim.StatusPendingApproval,
	}
	router := newTestRouter(t, fake)
	bearer := token(t, providerID)

	rec := doRequest(t, router, http.MethodPut, "/claims/CLM-1/review", bearer,
		map[string]string{"decision": "APPROVE", "notes": "verified against records"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reviewed ClaimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reviewed))
	assert.Equal(t, "APPROVED", reviewed.Status)
	assert.Equal(t, "Alice Reviewer", reviewed.ReviewedBy)

	// A second review of the same claim is rejected.
	rec = doRequest(t, router, http.MethodPut, "/claims/CLM-1/review", bearer,
		map[string]string{"decision": "REJECT", "notes": "changed my mind"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviewWithoutNotesOverHTTP(t *testing.T) {
	fake := newFakeServices()
	fake.claims["CLM-1"] = claim.Claim{ID: "CLM-1", Provider: "BlueShield Health", Status: claim.StatusPendingApproval}
	router := newTestRouter(t, fake)

	rec := doRequest(t, router, http.MethodPut, "/claims/CLM-1/review", token(t, providerID),
		map[string]string{"decision": "APPROVE", "notes": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "missing_notes", resp.Error)
}

func TestPatientListsOwnClaims(t *testing.T) {
	fake := newFakeServices()
	fake.claims["CLM-1"] = claim.Claim{ID: "CLM-1", PatientID: "P-7", Status: claim.StatusOpen}
	fake.claims["CLM-2"] = claim.Claim{ID: "CLM-2", PatientID: "P-9", Status: claim.StatusOpen}
	router := newTestRouter(t, fake)

	rec := doRequest(t, router, http.MethodGet, "/claims", token(t, patientID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var claims []ClaimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claims))
	require.Len(t, claims, 1)
	assert.Equal(t, "CLM-1", claims[0].ClaimID)
}

func TestHighValueThresholdValidation(t *testing.T) {
	router := newTestRouter(t, newFakeServices())

	rec := doRequest(t, router, http.MethodGet, "/claims/highvalue?threshold=abc", token(t, providerID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/claims/highvalue?threshold=1000", token(t, providerID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBookAndCancelAppointmentOverHTTP(t *testing.T) {
	fake := newFakeServices()
	router := newTestRouter(t, fake)
	bearer := token(t, patientID)

	rec := doRequest(t, router, http.MethodPost, "/appointments", bearer, map[string]any{
		"doctorName": "Dr. Gregory House",
		"date":       "2026-03-10",
		"time":       "14:30",
		"reason":     "checkup",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var booked AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booked))
	assert.Equal(t, "CONFIRMED", booked.Status)
	assert.True(t, booked.SelfPay)

	rec = doRequest(t, router, http.MethodPut, "/appointments/"+booked.AppointmentID+"/status", bearer,
		map[string]string{"status": "CANCELLED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cancelled AppointmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, "CANCELLED", cancelled.Status)
}

func TestPatientCannotCompleteAppointment(t *testing.T) {
	fake := newFakeServices()
	fake.appointments["APT-1"] = visit.Appointment{ID: "APT-1", PatientID: "P-7", Status: visit.StatusConfirmed}
	router := newTestRouter(t, fake)

	rec := doRequest(t, router, http.MethodPut, "/appointments/APT-1/status", token(t, patientID),
		map[string]string{"status": "COMPLETED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLivenessOpen(t *testing.T) {
	router := newTestRouter(t, newFakeServices())

	rec := doRequest(t, router, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestReadinessDegradedWithoutRedis(t *testing.T) {
	router := newTestRouter(t, newFakeServices())

	rec := doRequest(t, router, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "down", resp.Dependencies["redis"])
}
