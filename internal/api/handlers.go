package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/insurego/claims-gateway/internal/auth"
	"github.com/insurego/claims-gateway/internal/claim"
	"github.com/insurego/claims-gateway/internal/policy"
	"github.com/insurego/claims-gateway/internal/upstream"
	"github.com/insurego/claims-gateway/internal/visit"
)

func identityFrom(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token", "authentication required")
	}
	return id, ok
}

func verifyPolicyHandler(claims *claim.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		policyNumber := chi.URLParam(r, "policyNumber")
		view, err := claims.VerifyPolicy(r.Context(), id, policyNumber)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toPolicyResponse(*view))
	}
}

func listPoliciesHandler(policies *policy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		views, err := policies.List(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		out := make([]PolicyResponse, 0, len(views))
		for _, v := range views {
			out = append(out, toPolicyResponse(v))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func renewPolicyHandler(policies *policy.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		view, err := policies.Renew(r.Context(), id, chi.URLParam(r, "policyNumber"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toPolicyResponse(*view))
	}
}

// createClaimHandler routes by role: doctors file a billed claim against a
// verified policy, patients open a claim with no bill yet.
func createClaimHandler(claims *claim.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		var req CreateClaimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var (
			created *claim.Claim
			err     error
		)
		switch id.Role {
		case auth.RoleDoctor:
			created, err = claims.FileClaim(r.Context(), id, claim.FileInput{
				PolicyNumber:         req.PolicyNo,
				TotalBillAmount:      req.TotalBillAmount,
				DiagnosisCode:        req.DiagnosisCode,
				TreatmentDescription: req.TreatmentDescription,
				AppointmentID:        req.AppointmentID,
			})
		case auth.RolePatient:
			created, err = claims.InitiateClaim(r.Context(), id, claim.InitiateInput{
				PolicyNumber:         req.PolicyNo,
				DiagnosisCode:        req.DiagnosisCode,
				TreatmentDescription: req.TreatmentDescription,
			})
		default:
			writeError(w, http.StatusForbidden, "forbidden", "providers cannot create claims")
			return
		}
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toClaimResponse(*created))
	}
}

func listClaimsHandler(claims *claim.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		list, err := claims.ListForRole(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toClaimResponses(list))
	}
}

func reviewClaimHandler(claims *claim.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		var req ReviewClaimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		updated, err := claims.ReviewClaim(r.Context(), id, chi.URLParam(r, "id"),
			claim.Decision(req.Decision), req.Notes)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toClaimResponse(*updated))
	}
}

func claimMetricsHandler(claims *claim.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		m, err := claims.ProviderMetrics(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, MetricsResponse{
			TotalClaims:   m.TotalClaims,
			ClaimsToday:   m.ClaimsToday,
			PendingReview: m.PendingReview,
			Approved:      m.Approved,
			Rejected:      m.Rejected,
		})
	}
}

const defaultHighValueThreshold = 500

func highValueClaimsHandler(claims *claim.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		threshold := float64(defaultHighValueThreshold)
		if raw := r.URL.Query().Get("threshold"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < 0 {
				writeError(w, http.StatusBadRequest, "invalid_threshold", "threshold must be a non-negative number")
				return
			}
			threshold = v
		}

		list, err := claims.HighValueClaims(r.Context(), id, threshold)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toClaimResponses(list))
	}
}

func listAppointmentsHandler(visits *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		appts, err := visits.ListForRole(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func bookAppointmentHandler(visits *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		created, err := visits.Book(r.Context(), id, visit.BookInput{
			DoctorID:     req.DoctorID,
			DoctorName:   req.DoctorName,
			Date:         req.Date,
			Time:         req.Time,
			Reason:       req.Reason,
			PolicyNumber: req.PolicyNumber,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*created))
	}
}

func rescheduleAppointmentHandler(visits *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		updated, err := visits.Reschedule(r.Context(), id, chi.URLParam(r, "id"), req.Date, req.Time)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*updated))
	}
}

func appointmentStatusHandler(visits *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(w, r)
		if !ok {
			return
		}

		var req AppointmentStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		updated, err := visits.UpdateStatus(r.Context(), id, chi.URLParam(r, "id"),
			visit.Status(req.Status))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*updated))
	}
}

// writeDomainError maps workflow errors to HTTP responses. Every failure is
// surfaced to the caller; nothing is swallowed beyond logging, and no partial
// state is left behind for any of these.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, policy.ErrPolicyNotFound):
		writeError(w, http.StatusNotFound, "policy_not_found", "no policy matches that number")
	case errors.Is(err, claim.ErrPolicyExpired):
		writeError(w, http.StatusConflict, "policy_expired", "the policy is expired")
	case errors.Is(err, claim.ErrPolicyNotVerified):
		writeError(w, http.StatusPreconditionFailed, "policy_not_verified", "verify the policy before filing a claim")
	case errors.Is(err, claim.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", "bill amount must be greater than zero")
	case errors.Is(err, claim.ErrMissingNotes):
		writeError(w, http.StatusBadRequest, "missing_notes", "reviewer notes are required")
	case errors.Is(err, claim.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", "the claim cannot move to that status")
	case errors.Is(err, claim.ErrClaimNotFound):
		writeError(w, http.StatusNotFound, "claim_not_found", "no claim matches that id")
	case errors.Is(err, claim.ErrVisitNotCompleted):
		writeError(w, http.StatusConflict, "visit_not_completed", "the linked appointment must be completed first")
	case errors.Is(err, policy.ErrRenewalFailed):
		writeError(w, http.StatusBadGateway, "renewal_failed", "the policy service could not renew the policy")
	case errors.Is(err, visit.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "no appointment matches that id")
	case errors.Is(err, visit.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", "the appointment cannot move to that status")
	case errors.Is(err, visit.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "missing_fields", err.Error())
	case errors.Is(err, visit.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "the appointment does not belong to you")
	case errors.Is(err, auth.ErrUnknownRole):
		writeError(w, http.StatusForbidden, "forbidden", "role not permitted for this operation")
	default:
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("upstream rejection")
			writeError(w, http.StatusBadGateway, "upstream_error", "a backend service rejected the request")
			return
		}
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("unhandled error")
		writeError(w, http.StatusBadGateway, "network_error", "a backend service could not be reached")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
