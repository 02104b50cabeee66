package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/cache"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/metrics"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultScoreCacheTTL = 30 * time.Second

// ScoreInvalidator drops cached scores after a write touching the nodes.
type ScoreInvalidator interface {
	Invalidate(ctx context.Context, nodeIDs ...uuid.UUID)
}

var scoringRelations = []domain.Relation{
	domain.RelationSupports,
	domain.RelationDisputes,
	domain.RelationContext,
}

type ScoringService struct {
	store  domain.Store
	cache  cache.Cache
	policy domain.ScoringPolicy
	logger *zap.Logger

	group    singleflight.Group
	versions sync.Map

	CacheTTL time.Duration
}

var _ ScoreInvalidator = (*ScoringService)(nil)

func NewScoringService(s domain.Store, c cache.Cache, policy domain.ScoringPolicy, logger *zap.Logger) *ScoringService {
	if c == nil {
		c = cache.Noop{}
	}
	return &ScoringService{
		store:    s,
		cache:    c,
		policy:   policy,
		logger:   logger,
		CacheTTL: DefaultScoreCacheTTL,
	}
}

func (s *ScoringService) Policy() domain.ScoringPolicy {
	return s.policy
}

// CalculateScore returns the Citadel Score of a node. Cached breakdowns are
// served until a write invalidates them or the TTL passes; concurrent misses
// for the same node share one computation.
func (s *ScoringService) CalculateScore(ctx context.Context, nodeID uuid.UUID) (*domain.ScoreBreakdown, error) {
	key := cache.ScoreKey(nodeID.String())
	if raw, ok := s.cache.Get(ctx, key); ok {
		var b domain.ScoreBreakdown
		if err := json.Unmarshal(raw, &b); err == nil {
			metrics.ScoreComputations.WithLabelValues("hit").Inc()
			return &b, nil
		}
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		version := s.version(nodeID)
		start := time.Now()
		b, err := s.compute(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		metrics.ScoreDuration.Observe(time.Since(start).Seconds())

		// Skip the write if an invalidation raced with the computation, and
		// undo it if one landed between the check and the write.
		if s.version(nodeID) == version {
			if raw, err := json.Marshal(b); err == nil {
				if err := s.cache.Set(ctx, key, raw, s.CacheTTL); err != nil {
					s.logger.Warn("failed to cache score", zap.String("node_id", nodeID.String()), zap.Error(err))
				} else if s.version(nodeID) != version {
					if err := s.cache.Delete(ctx, key); err != nil {
						s.logger.Warn("failed to drop stale score", zap.String("node_id", nodeID.String()), zap.Error(err))
					}
				}
			}
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		metrics.ScoreComputations.WithLabelValues("shared").Inc()
	} else {
		metrics.ScoreComputations.WithLabelValues("miss").Inc()
	}
	out := *v.(*domain.ScoreBreakdown)
	return &out, nil
}

func (s *ScoringService) compute(ctx context.Context, nodeID uuid.UUID) (*domain.ScoreBreakdown, error) {
	if _, err := s.store.GetNode(ctx, nodeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrNodeNotFound
		}
		return nil, err
	}

	edges, err := s.store.GetNeighbors(ctx, nodeID, domain.DirectionIncoming, scoringRelations)
	if err != nil {
		return nil, err
	}

	b := &domain.ScoreBreakdown{NodeID: nodeID}
	w := newEdgeWeigher(s.store, s.policy)
	for _, e := range edges {
		if e.Relation == domain.RelationContext {
			b.ContextCount++
			continue
		}
		eff, err := w.weight(ctx, e)
		if err != nil {
			return nil, err
		}
		if e.Tally.Total() == 0 {
			b.PendingCount++
		}
		switch e.Relation {
		case domain.RelationSupports:
			b.VerifiedCount++
			b.SupportWeight += eff
		case domain.RelationDisputes:
			b.DisputedCount++
			b.DisputeWeight += eff
		}
	}

	b.TotalEdges = b.VerifiedCount + b.DisputedCount
	b.TrustWeightedScore = b.SupportWeight - s.policy.DisputeFactor*b.DisputeWeight
	b.Controversy = s.policy.Controversy(b.SupportWeight, b.DisputeWeight, b.TotalEdges)
	b.ComputedAt = time.Now().UTC()

	s.logger.Debug("score computed",
		zap.String("node_id", nodeID.String()),
		zap.Float64("score", b.TrustWeightedScore),
		zap.Int("edges", b.TotalEdges),
		zap.String("controversy", string(b.Controversy)))
	return b, nil
}

func (s *ScoringService) version(nodeID uuid.UUID) uint64 {
	v, ok := s.versions.Load(nodeID)
	if !ok {
		return 0
	}
	return v.(uint64)
}

func (s *ScoringService) Invalidate(ctx context.Context, nodeIDs ...uuid.UUID) {
	if len(nodeIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		for {
			old, loaded := s.versions.LoadOrStore(id, uint64(1))
			if !loaded || s.versions.CompareAndSwap(id, old, old.(uint64)+1) {
				break
			}
		}
		keys = append(keys, cache.ScoreKey(id.String()))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("failed to invalidate scores", zap.Int("nodes", len(nodeIDs)), zap.Error(err))
	}
}

// edgeWeigher computes effective edge weights, remembering creator
// identities for the lifetime of one query.
type edgeWeigher struct {
	identities domain.IdentityStore
	policy     domain.ScoringPolicy
	creators   map[string]*domain.Identity
}

func newEdgeWeigher(identities domain.IdentityStore, policy domain.ScoringPolicy) *edgeWeigher {
	return &edgeWeigher{
		identities: identities,
		policy:     policy,
		creators:   make(map[string]*domain.Identity),
	}
}

func (w *edgeWeigher) weight(ctx context.Context, e *domain.Edge) (float64, error) {
	creator, ok := w.creators[e.CreatedBy]
	if !ok {
		identity, err := w.identities.GetIdentity(ctx, e.CreatedBy)
		switch {
		case err == nil:
			creator = identity
		case errors.Is(err, store.ErrNotFound):
			creator = nil
		default:
			return 0, err
		}
		w.creators[e.CreatedBy] = creator
	}
	return w.policy.EffectiveWeight(e, creator), nil
}
