package service

import (
	"context"
	"errors"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/metrics"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store"
	"go.uber.org/zap"
)

// Profile is an identity together with its current tier allowances.
type Profile struct {
	*domain.Identity
	Tier   domain.TrustTier  `json:"tier"`
	Limits domain.TierLimits `json:"limits"`
}

type IdentityService struct {
	store      domain.IdentityStore
	classifier domain.AnonymizationClassifier
	policy     domain.TrustPolicy
	logger     *zap.Logger
	now        func() time.Time
}

func NewIdentityService(s domain.IdentityStore, classifier domain.AnonymizationClassifier, policy domain.TrustPolicy, logger *zap.Logger) *IdentityService {
	return &IdentityService{
		store:      s,
		classifier: classifier,
		policy:     policy,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *IdentityService) Policy() domain.TrustPolicy {
	return s.policy
}

// DeriveIdentity maps a signature to its identity, creating it on first
// sight. Returning identities get their flags, trust and last-seen time
// refreshed.
func (s *IdentityService) DeriveIdentity(ctx context.Context, sig domain.Signature) (*domain.Identity, error) {
	if !sig.Complete() {
		metrics.IdentitiesDerived.WithLabelValues("incomplete").Inc()
		return nil, domain.ErrSignatureIncomplete
	}

	publicID := sig.PublicID()
	existing, err := s.store.GetIdentity(ctx, publicID)
	switch {
	case err == nil:
		return s.refreshSeen(ctx, existing, sig)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	now := s.now()
	identity := &domain.Identity{
		PublicID:   publicID,
		Signature:  sig,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	s.applySignals(identity, sig)

	if err := s.detectDuplicate(ctx, identity); err != nil {
		// Duplicate detection is advisory.
		s.logger.Warn("duplicate detection failed", zap.String("identity", publicID), zap.Error(err))
	}
	identity.TrustScore = ComputeTrust(identity, now, s.policy)

	if err := s.store.CreateIdentity(ctx, identity); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Concurrent derivation of the same signature.
			existing, getErr := s.store.GetIdentity(ctx, publicID)
			if getErr != nil {
				return nil, getErr
			}
			return existing, nil
		}
		return nil, err
	}

	metrics.IdentitiesDerived.WithLabelValues("created").Inc()
	s.logger.Info("identity created",
		zap.String("identity", publicID),
		zap.Float64("trust", identity.TrustScore),
		zap.Bool("possible_duplicate", identity.Flags.PossibleDuplicate))
	return identity, nil
}

func (s *IdentityService) refreshSeen(ctx context.Context, identity *domain.Identity, sig domain.Signature) (*domain.Identity, error) {
	identity.Signature = sig
	identity.LastSeenAt = s.now()
	s.applySignals(identity, sig)
	identity.TrustScore = ComputeTrust(identity, identity.LastSeenAt, s.policy)

	if err := s.store.UpdateIdentity(ctx, identity); err != nil {
		return nil, err
	}
	metrics.IdentitiesDerived.WithLabelValues("returning").Inc()
	return identity, nil
}

// applySignals recomputes the network flags. Duplicate flags are sticky.
func (s *IdentityService) applySignals(identity *domain.Identity, sig domain.Signature) {
	c := s.classifier.Classify(sig)
	identity.Flags.VPNSuspected = c.VPN
	identity.Flags.TorSuspected = c.Tor
	identity.Flags.ProxySuspected = c.Proxy
	identity.Flags.GeoMismatch = GeoMismatch(sig)
}

func (s *IdentityService) detectDuplicate(ctx context.Context, identity *domain.Identity) error {
	sig := identity.Signature
	if sig.IPAddress == "" && sig.GeoHash == "" {
		return nil
	}
	candidates, err := s.store.FindDuplicateCandidates(ctx, sig.IPAddress, sig.GeoHash, identity.PublicID, s.policy.DuplicateCandidates)
	if err != nil {
		return err
	}

	var (
		best      float64
		bestMatch string
	)
	for _, c := range candidates {
		sim := CompareSignatures(sig, c.Signature)
		if sim > best {
			best, bestMatch = sim, c.PublicID
		}
	}
	if IsDuplicate(best, s.policy.DuplicateThreshold) {
		identity.Flags.PossibleDuplicate = true
		identity.DuplicateOf = bestMatch
		s.logger.Info("possible duplicate identity",
			zap.String("identity", identity.PublicID),
			zap.String("duplicate_of", bestMatch),
			zap.Float64("similarity", best))
	}
	return nil
}

func (s *IdentityService) GetIdentity(ctx context.Context, publicID string) (*domain.Identity, error) {
	identity, err := s.store.GetIdentity(ctx, publicID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	return identity, nil
}

func (s *IdentityService) GetProfile(ctx context.Context, publicID string) (*Profile, error) {
	identity, err := s.GetIdentity(ctx, publicID)
	if err != nil {
		return nil, err
	}
	limits := domain.LimitsForTrust(identity.TrustScore)
	return &Profile{Identity: identity, Tier: limits.Tier, Limits: limits}, nil
}

// RecordContribution credits reputation and counters, then refreshes the
// contributor's trust.
func (s *IdentityService) RecordContribution(ctx context.Context, publicID string, delta domain.CounterDelta) error {
	if err := s.store.IncrementCounters(ctx, publicID, delta); err != nil {
		return err
	}
	identity, err := s.store.GetIdentity(ctx, publicID)
	if err != nil {
		return err
	}
	_, err = s.RefreshTrust(ctx, identity)
	return err
}

// RefreshTrust recomputes the trust score and persists it if it changed.
func (s *IdentityService) RefreshTrust(ctx context.Context, identity *domain.Identity) (bool, error) {
	trust := ComputeTrust(identity, s.now(), s.policy)
	if trust == identity.TrustScore {
		return false, nil
	}
	previous := identity.TrustScore
	identity.TrustScore = trust
	if err := s.store.UpdateIdentity(ctx, identity); err != nil {
		return false, err
	}
	if domain.TrustTierFor(previous) != domain.TrustTierFor(trust) {
		s.logger.Info("identity changed tier",
			zap.String("identity", identity.PublicID),
			zap.String("from", string(domain.TrustTierFor(previous))),
			zap.String("to", string(identity.Tier())))
	}
	return true, nil
}
