package claim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/insurego/claims-gateway/internal/auth"
	"github.com/insurego/claims-gateway/internal/policy"
	"github.com/insurego/claims-gateway/internal/visit"
)

var (
	ErrPolicyExpired     = errors.New("policy is expired")
	ErrPolicyNotVerified = errors.New("policy has not been verified in this session")
	ErrInvalidAmount     = errors.New("bill amount must be greater than zero")
	ErrInvalidTransition = errors.New("invalid claim status transition")
	ErrMissingNotes      = errors.New("reviewer notes are required")
	ErrClaimNotFound     = errors.New("claim not found")
	ErrVisitNotCompleted = errors.New("linked appointment is not completed")
)

// Filter narrows an upstream claim listing to one party. Doctor may carry an
// id or a bare name; the source system does not guarantee which propagates.
type Filter struct {
	Provider  string
	PatientID string
	Doctor    string
}

// Backend is the slice of the policy, claim and visit services the
// coordinator depends on.
type Backend interface {
	GetPolicy(ctx context.Context, policyNumber string) (*policy.Policy, error)
	GetClaim(ctx context.Context, id string) (*Claim, error)
	ListClaims(ctx context.Context, f Filter) ([]Claim, error)
	CreateClaim(ctx context.Context, c Claim) (*Claim, error)
	ClaimAction(ctx context.Context, id string, to Status, notes, reviewedBy string) (*Claim, error)
	GetAppointment(ctx context.Context, id string) (*visit.Appointment, error)
}

// Coordinator enforces the legal sequence of operations and role permissions
// for moving a claim from creation to resolution. It holds no durable state:
// the backend services are the source of truth and are re-queried after every
// mutation.
type Coordinator struct {
	backend Backend
	store   VerificationStore
	watch   policy.Watchlist
	window  time.Duration
	now     func() time.Time
}

func NewCoordinator(backend Backend, store VerificationStore, watch policy.Watchlist, window time.Duration) *Coordinator {
	if window <= 0 {
		window = policy.DefaultExpiringWindow
	}
	return &Coordinator{
		backend: backend,
		store:   store,
		watch:   watch,
		window:  window,
		now:     time.Now,
	}
}

// VerifyPolicy looks up a policy by number and, on success, records the
// verification in the caller's session so a claim can be filed against it.
// Read-only with respect to the backend.
func (c *Coordinator) VerifyPolicy(ctx context.Context, id auth.Identity, policyNumber string) (*policy.View, error) {
	policyNumber = strings.TrimSpace(policyNumber)
	if policyNumber == "" {
		return nil, policy.ErrPolicyNotFound
	}

	p, err := c.backend.GetPolicy(ctx, policyNumber)
	if err != nil {
		return nil, err
	}
	if policy.Expired(*p, c.now()) {
		return nil, ErrPolicyExpired
	}

	if err := c.store.Put(ctx, id.UserID, policyNumber, *p); err != nil {
		return nil, fmt.Errorf("record verification: %w", err)
	}
	if c.watch != nil {
		if err := c.watch.Watch(ctx, policyNumber); err != nil {
			log.Error().Err(err).Str("policy", policyNumber).Msg("failed to watch verified policy")
		}
	}

	v := policy.NewView(*p, c.now(), c.window)
	return &v, nil
}

type FileInput struct {
	PolicyNumber         string
	TotalBillAmount      float64
	DiagnosisCode        string
	TreatmentDescription string
	AppointmentID        string // optional link to a completed visit
}

// FileClaim submits a bill against a policy verified earlier in the same
// session, producing a claim in PENDING_APPROVAL. The server-assigned claim
// is returned as-is; nothing is updated optimistically.
func (c *Coordinator) FileClaim(ctx context.Context, id auth.Identity, in FileInput) (*Claim, error) {
	policyNumber := strings.TrimSpace(in.PolicyNumber)

	verified, err := c.store.Get(ctx, id.UserID, policyNumber)
	if err != nil {
		return nil, fmt.Errorf("load verification: %w", err)
	}
	if verified == nil {
		return nil, ErrPolicyNotVerified
	}

	if in.TotalBillAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	if in.AppointmentID != "" {
		appt, err := c.backend.GetAppointment(ctx, in.AppointmentID)
		if err != nil {
			return nil, err
		}
		if appt.Status != visit.StatusCompleted {
			return nil, ErrVisitNotCompleted
		}
	}

	created, err := c.backend.CreateClaim(ctx, Claim{
		PolicyNumber:         policyNumber,
		Provider:             verified.Provider,
		PatientID:            verified.HolderID,
		PatientName:          verified.HolderName,
		DoctorID:             id.UserID,
		DoctorName:           id.Name,
		TotalBillAmount:      in.TotalBillAmount,
		DiagnosisCode:        in.DiagnosisCode,
		TreatmentDescription: in.TreatmentDescription,
		Status:               StatusPendingApproval,
		AppointmentID:        in.AppointmentID,
	})
	if err != nil {
		return nil, fmt.Errorf("create claim: %w", err)
	}

	log.Info().
		Str("claim", created.ID).
		Str("policy", policyNumber).
		Str("doctor", id.UserID).
		Msg("claim filed")

	return created, nil
}

type InitiateInput struct {
	PolicyNumber         string
	DiagnosisCode        string
	TreatmentDescription string
}

// InitiateClaim opens a claim with no bill attached yet. The referenced
// policy must exist and be unexpired at creation time.
func (c *Coordinator) InitiateClaim(ctx context.Context, id auth.Identity, in InitiateInput) (*Claim, error) {
	policyNumber := strings.TrimSpace(in.PolicyNumber)
	if policyNumber == "" {
		return nil, policy.ErrPolicyNotFound
	}

	p, err := c.backend.GetPolicy(ctx, policyNumber)
	if err != nil {
		return nil, err
	}
	if policy.Expired(*p, c.now()) {
		return nil, ErrPolicyExpired
	}

	created, err := c.backend.CreateClaim(ctx, Claim{
		PolicyNumber:         policyNumber,
		Provider:             p.Provider,
		PatientID:            id.UserID,
		PatientName:          id.Name,
		DiagnosisCode:        in.DiagnosisCode,
		TreatmentDescription: in.TreatmentDescription,
		Status:               StatusOpen,
	})
	if err != nil {
		return nil, fmt.Errorf("initiate claim: %w", err)
	}

	return created, nil
}

// ReviewClaim applies a provider's approve/reject decision. Only a claim in
// PENDING_APPROVAL may be resolved, and the resolution is final; a repeat
// review fails with ErrInvalidTransition. The payout split is computed by the
// claim service, never here.
func (c *Coordinator) ReviewClaim(ctx context.Context, id auth.Identity, claimID string, decision Decision, notes string) (*Claim, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, ErrMissingNotes
	}

	target, ok := decision.Target()
	if !ok {
		return nil, ErrInvalidTransition
	}

	current, err := c.backend.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, target) {
		return nil, ErrInvalidTransition
	}

	updated, err := c.backend.ClaimAction(ctx, claimID, target, notes, id.Name)
	if err != nil {
		return nil, fmt.Errorf("apply claim action: %w", err)
	}

	log.Info().
		Str("claim", claimID).
		Str("decision", string(decision)).
		Str("reviewed_by", id.Name).
		Msg("claim reviewed")

	return updated, nil
}

// ListForRole returns the claims visible to the caller: patients see their
// own, doctors see claims matching their id or name, providers see every
// claim tagged to their company. The result is deduplicated by claim id and
// ordered newest first.
func (c *Coordinator) ListForRole(ctx context.Context, id auth.Identity) ([]Claim, error) {
	var claims []Claim

	switch id.Role {
	case auth.RolePatient:
		list, err := c.backend.ListClaims(ctx, Filter{PatientID: id.UserID})
		if err != nil {
			return nil, fmt.Errorf("list claims: %w", err)
		}
		claims = list

	case auth.RoleDoctor:
		// The doctor identity propagated from booking may be id-only or
		// name-only, so both queries run and the union is reconciled below.
		byID, err := c.backend.ListClaims(ctx, Filter{Doctor: id.UserID})
		if err != nil {
			return nil, fmt.Errorf("list claims by doctor id: %w", err)
		}
		byName, err := c.backend.ListClaims(ctx, Filter{Doctor: id.Name})
		if err != nil {
			return nil, fmt.Errorf("list claims by doctor name: %w", err)
		}
		for _, cl := range append(byID, byName...) {
			if doctorMatches(cl, id) {
				claims = append(claims, cl)
			}
		}

	case auth.RoleProvider:
		list, err := c.backend.ListClaims(ctx, Filter{Provider: id.Provider})
		if err != nil {
			return nil, fmt.Errorf("list claims: %w", err)
		}
		claims = list

	default:
		return nil, auth.ErrUnknownRole
	}

	return dedupeNewestFirst(claims), nil
}

// ProviderMetrics summarizes the caller's claim queue.
func (c *Coordinator) ProviderMetrics(ctx context.Context, id auth.Identity) (Metrics, error) {
	claims, err := c.ListForRole(ctx, id)
	if err != nil {
		return Metrics{}, err
	}

	var m Metrics
	today := c.now().Format("2006-01-02")
	for _, cl := range claims {
		m.TotalClaims++
		if cl.DateFiled.Format("2006-01-02") == today {
			m.ClaimsToday++
		}
		switch cl.Status {
		case StatusPendingApproval:
			m.PendingReview++
		case StatusApproved:
			m.Approved++
		case StatusRejected:
			m.Rejected++
		}
	}
	return m, nil
}

// HighValueClaims returns the provider's unresolved claims billed above the
// threshold, newest first.
func (c *Coordinator) HighValueClaims(ctx context.Context, id auth.Identity, threshold float64) ([]Claim, error) {
	claims, err := c.ListForRole(ctx, id)
	if err != nil {
		return nil, err
	}

	high := make([]Claim, 0)
	for _, cl := range claims {
		if cl.TotalBillAmount > threshold && !cl.Status.Terminal() {
			high = append(high, cl)
		}
	}
	return high, nil
}

// doctorMatches accepts a claim when either the doctor id or the trimmed,
// case-insensitive doctor name matches the caller. Matching by name is
// deliberate: doctor identifiers do not propagate consistently across
// services, and dropping the name fallback makes claims silently disappear
// from a doctor's queue.
func doctorMatches(c Claim, id auth.Identity) bool {
	if c.DoctorID != "" && c.DoctorID == id.UserID {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(c.DoctorName), strings.TrimSpace(id.Name))
}

func dedupeNewestFirst(claims []Claim) []Claim {
	seen := make(map[string]bool, len(claims))
	out := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateFiled.Equal(out[j].DateFiled) {
			return out[i].DateFiled.After(out[j].DateFiled)
		}
		return out[i].ID > out[j].ID
	})

	return out
}
