package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/insurego/claims-gateway/internal/auth"
)

var (
	ErrPolicyNotFound = errors.New("policy not found")
	ErrRenewalFailed  = errors.New("policy renewal failed")
)

// Backend is the slice of the policy service the gateway depends on.
type Backend interface {
	GetPolicy(ctx context.Context, policyNumber string) (*Policy, error)
	ListPolicies(ctx context.Context, patientID string) ([]Policy, error)
	RenewPolicy(ctx context.Context, policyNumber string) error
}

// Watchlist tracks policy numbers the expiry monitor should keep an eye on.
type Watchlist interface {
	Watch(ctx context.Context, policyNumber string) error
	Watched(ctx context.Context) ([]string, error)
	Flag(ctx context.Context, policyNumber string, status Status) error
}

type Service struct {
	backend Backend
	watch   Watchlist
	window  time.Duration
	now     func() time.Time
}

func NewService(backend Backend, watch Watchlist, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultExpiringWindow
	}
	return &Service{
		backend: backend,
		watch:   watch,
		window:  window,
		now:     time.Now,
	}
}

// List returns the caller's policies with locally derived status. The server
// never sends status; it is always recomputed here against the current clock.
func (s *Service) List(ctx context.Context, id auth.Identity) ([]View, error) {
	policies, err := s.backend.ListPolicies(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}

	now := s.now()
	views := make([]View, 0, len(policies))
	for _, p := range policies {
		views = append(views, NewView(p, now, s.window))
		s.addToWatchlist(ctx, p.PolicyNumber)
	}
	return views, nil
}

// Renew asks the policy service for a one-year extension and re-fetches the
// authoritative record. The new expiry date is never guessed locally.
func (s *Service) Renew(ctx context.Context, id auth.Identity, policyNumber string) (*View, error) {
	if err := s.backend.RenewPolicy(ctx, policyNumber); err != nil {
		if errors.Is(err, ErrPolicyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRenewalFailed, err)
	}

	renewed, err := s.backend.GetPolicy(ctx, policyNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: refetch after renewal: %v", ErrRenewalFailed, err)
	}

	s.addToWatchlist(ctx, renewed.PolicyNumber)

	v := NewView(*renewed, s.now(), s.window)
	return &v, nil
}

// Sweep re-classifies every watched policy and flags the ones needing action.
// Called by the expiry monitor worker.
func (s *Service) Sweep(ctx context.Context) error {
	numbers, err := s.watch.Watched(ctx)
	if err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}

	now := s.now()
	for _, number := range numbers {
		p, err := s.backend.GetPolicy(ctx, number)
		if err != nil {
			if errors.Is(err, ErrPolicyNotFound) {
				log.Warn().Str("policy", number).Msg("watched policy no longer exists")
				continue
			}
			return fmt.Errorf("refetch policy %s: %w", number, err)
		}

		status := Classify(p.ExpiryDate, now, s.window)
		if status != StatusActive {
			log.Info().
				Str("policy", number).
				Str("status", string(status)).
				Int("days_remaining", DaysRemaining(p.ExpiryDate, now)).
				Msg("policy needs attention")
		}
		if err := s.watch.Flag(ctx, number, status); err != nil {
			log.Error().Err(err).Str("policy", number).Msg("failed to flag policy status")
		}
	}

	return nil
}

func (s *Service) addToWatchlist(ctx context.Context, policyNumber string) {
	if s.watch == nil {
		return
	}
	if err := s.watch.Watch(ctx, policyNumber); err != nil {
		log.Error().Err(err).Str("policy", policyNumber).Msg("failed to add policy to watchlist")
	}
}
