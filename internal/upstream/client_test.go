package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurego/claims-gateway/internal/auth"
	"github.com/insurego/claims-gateway/internal/claim"
	"github.com/insurego/claims-gateway/internal/policy"
	"github.com/insurego/claims-gateway/internal/visit"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, srv.URL, srv.URL, 5*time.Second), srv
}

func TestGetPolicyNormalizesVariantFields(t *testing.T) {
	// The policy service emits provider under "companyName" and the holder
	// under "patientId" in some responses.
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/policy/POL-1001", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"policyNo":       "POL-1001",
			"companyName":    "Sunrise Assurance",
			"patientId":      "P-7",
			"holderName":     "Jane Doe",
			"coverageAmount": 50000.0,
			"issueDate":      "2025-04-01",
			"expiryDate":     "2026-04-01",
		})
	}))
	defer srv.Close()

	p, err := client.GetPolicy(context.Background(), "POL-1001")
	require.NoError(t, err)

	assert.Equal(t, "POL-1001", p.PolicyNumber)
	assert.Equal(t, "Sunrise Assurance", p.Provider)
	assert.Equal(t, "P-7", p.HolderID)
	assert.Equal(t, "Jane Doe", p.HolderName)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), p.ExpiryDate)
}

func TestGetPolicyCanonicalFieldsWin(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"policyNumber":      "POL-1",
			"insuranceProvider": "BlueShield Health",
			"provider":          "stale-value",
			"userId":            "P-1",
			"expiryDate":        "2026-04-01",
		})
	}))
	defer srv.Close()

	p, err := client.GetPolicy(context.Background(), "POL-1")
	require.NoError(t, err)
	assert.Equal(t, "BlueShield Health", p.Provider)
}

func TestGetPolicyNotFound(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := client.GetPolicy(context.Background(), "POL-404")
	assert.ErrorIs(t, err, policy.ErrPolicyNotFound)
}

func TestServerErrorSurfacesStatusError(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := client.GetPolicy(context.Background(), "POL-1")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "policy", statusErr.Service)
	assert.Contains(t, statusErr.Body, "database down")
}

func TestTransportErrorIsNotStatusError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "http://127.0.0.1:1", "http://127.0.0.1:1", time.Second)

	_, err := client.GetPolicy(context.Background(), "POL-1")
	require.Error(t, err)

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestBearerTokenForwarded(t *testing.T) {
	var gotAuth string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	ctx := auth.WithToken(context.Background(), "token-123")
	_, err := client.ListPolicies(ctx, "P-1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer token-123", gotAuth)
}

func TestCreateClaimSendsCanonicalNames(t *testing.T) {
	var got map[string]any
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/claim", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"claimId":   "CLM-1",
			"policyNo":  "POL-1",
			"status":    "PENDING_APPROVAL",
			"dateFiled": "2026-03-01T12:00:00Z",
		})
	}))
	defer srv.Close()

	created, err := client.CreateClaim(context.Background(), claim.Claim{
		PolicyNumber:    "POL-1",
		Provider:        "BlueShield Health",
		PatientID:       "P-7",
		DoctorID:        "D-1",
		DoctorName:      "Dr. House",
		TotalBillAmount: 250,
		Status:          claim.StatusPendingApproval,
	})
	require.NoError(t, err)

	assert.Equal(t, "POL-1", got["policyNo"])
	assert.Equal(t, "BlueShield Health", got["insuranceProvider"])
	assert.Equal(t, "P-7", got["userId"])
	assert.Equal(t, "PENDING_APPROVAL", got["status"])

	assert.Equal(t, "CLM-1", created.ID)
	assert.Equal(t, claim.StatusPendingApproval, created.Status)
	assert.False(t, created.DateFiled.IsZero())
}

func TestListClaimsNormalizesDoctorAndNotes(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "D-1", r.URL.Query().Get("doctor"))
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":       "CLM-1",
				"policyNo": "POL-1",
				"provider": "MediCare Plus",
				"doctor":   "Dr. House",
				"notes":    "approved on review",
				"status":   "APPROVED",
			},
		})
	}))
	defer srv.Close()

	claims, err := client.ListClaims(context.Background(), claim.Filter{Doctor: "D-1"})
	require.NoError(t, err)

	require.Len(t, claims, 1)
	assert.Equal(t, "CLM-1", claims[0].ID)
	assert.Equal(t, "MediCare Plus", claims[0].Provider)
	assert.Equal(t, "Dr. House", claims[0].DoctorName)
	assert.Equal(t, "approved on review", claims[0].ReviewerNotes)
}

func TestClaimActionQueryAndBody(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/claim/CLM-1/action", r.URL.Path)
		assert.Equal(t, "APPROVED", r.URL.Query().Get("status"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "looks good", body["notes"])
		assert.Equal(t, "Alice Reviewer", body["reviewedBy"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"claimId": "CLM-1",
			"status":  "APPROVED",
		})
	}))
	defer srv.Close()

	updated, err := client.ClaimAction(context.Background(), "CLM-1", claim.StatusApproved, "looks good", "Alice Reviewer")
	require.NoError(t, err)
	assert.Equal(t, claim.StatusApproved, updated.Status)
}

func TestGetAppointmentSelfPayDerivedFromMissingPolicy(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"appointmentId": "APT-1",
			"userId":        "P-7",
			"doctor":        "Dr. House",
			"date":          "2026-03-10",
			"time":          "14:30",
			"status":        "CONFIRMED",
		})
	}))
	defer srv.Close()

	a, err := client.GetAppointment(context.Background(), "APT-1")
	require.NoError(t, err)

	assert.Equal(t, "APT-1", a.ID)
	assert.Equal(t, "P-7", a.PatientID)
	assert.Equal(t, "Dr. House", a.DoctorName)
	assert.True(t, a.SelfPay)
	assert.Equal(t, visit.StatusConfirmed, a.Status)
}

func TestParseDate(t *testing.T) {
	got, err := parseDate("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("2026-03-01T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, 15, got.Hour())

	got, err = parseDate("  ")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseDate("03/01/2026")
	assert.Error(t, err)
}
