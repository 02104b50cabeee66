package service

import (
	"context"
	"errors"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/metrics"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type VerificationService struct {
	store      domain.EdgeStore
	identities *IdentityService
	scores     ScoreInvalidator
	policy     domain.ScoringPolicy
	logger     *zap.Logger
}

func NewVerificationService(s domain.EdgeStore, identities *IdentityService, scores ScoreInvalidator, policy domain.ScoringPolicy, logger *zap.Logger) *VerificationService {
	return &VerificationService{
		store:      s,
		identities: identities,
		scores:     scores,
		policy:     policy,
		logger:     logger,
	}
}

// VoteWeight is the weight a vote carries when cast: the voter's trust
// factor, discounted for suspected duplicate identities.
func (s *VerificationService) VoteWeight(voter *domain.Identity) float64 {
	w := s.policy.TrustFactor(voter.TrustScore)
	if voter.Flags.PossibleDuplicate {
		w *= s.policy.DuplicateDiscount
	}
	return w
}

// CastVerification records one vote per identity per edge and returns the
// updated tally.
func (s *VerificationService) CastVerification(ctx context.Context, edgeID uuid.UUID, agree bool, identityID string) (domain.Tally, error) {
	voter, err := s.identities.GetIdentity(ctx, identityID)
	if err != nil {
		return domain.Tally{}, err
	}

	edge, err := s.store.GetEdge(ctx, edgeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Tally{}, domain.ErrEdgeNotFound
		}
		return domain.Tally{}, err
	}
	if edge.Retracted {
		metrics.VotesRejected.WithLabelValues("retracted").Inc()
		return domain.Tally{}, domain.ErrRetracted
	}

	vote := &domain.Vote{
		EdgeID:     edgeID,
		IdentityID: identityID,
		Agree:      agree,
		Weight:     s.VoteWeight(voter),
		CastAt:     time.Now().UTC(),
	}
	tally, err := s.store.ApplyVote(ctx, vote)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			metrics.VotesRejected.WithLabelValues("duplicate").Inc()
			return domain.Tally{}, domain.ErrAlreadyVoted
		case errors.Is(err, store.ErrReference):
			metrics.VotesRejected.WithLabelValues("retracted").Inc()
			return domain.Tally{}, domain.ErrRetracted
		case errors.Is(err, store.ErrNotFound):
			return domain.Tally{}, domain.ErrEdgeNotFound
		}
		return domain.Tally{}, err
	}

	metrics.GraphWrites.WithLabelValues("vote").Inc()
	s.scores.Invalidate(ctx, edge.TargetID)

	delta := domain.CounterDelta{Reputation: domain.ReputationPerVote, Verifications: 1}
	if err := s.identities.RecordContribution(ctx, identityID, delta); err != nil {
		s.logger.Warn("failed to record verification", zap.String("identity", identityID), zap.Error(err))
	}

	s.logger.Debug("verification cast",
		zap.String("edge_id", edgeID.String()),
		zap.String("identity", identityID),
		zap.Bool("agree", agree),
		zap.Float64("weight", vote.Weight))
	return tally, nil
}
