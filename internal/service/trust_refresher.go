package service

import (
	"context"
	"sync"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultTrustRefreshInterval = 15 * time.Minute

type RefreshResult struct {
	IdentitiesScanned int `json:"identities_scanned"`
	TrustChanged      int `json:"trust_changed"`
	AccuracyUpdated   int `json:"accuracy_updated"`
}

// TrustRefresher periodically recomputes verification accuracy against the
// current consensus of each voted edge, then every identity's trust.
type TrustRefresher struct {
	store      domain.Store
	identities *IdentityService
	logger     *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewTrustRefresher(s domain.Store, identities *IdentityService, logger *zap.Logger) *TrustRefresher {
	return &TrustRefresher{
		store:      s,
		identities: identities,
		logger:     logger,
		interval:   DefaultTrustRefreshInterval,
		stopCh:     make(chan struct{}),
	}
}

func (r *TrustRefresher) SetInterval(d time.Duration) {
	r.interval = d
}

func (r *TrustRefresher) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("trust refresher started", zap.Duration("interval", r.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				r.RunRefresh(ctx)
				cancel()
			case <-r.stopCh:
				r.logger.Info("trust refresher stopped")
				return
			}
		}
	}()
}

func (r *TrustRefresher) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *TrustRefresher) RunRefresh(ctx context.Context) *RefreshResult {
	start := time.Now()
	defer func() {
		metrics.TrustRefreshDuration.Observe(time.Since(start).Seconds())
	}()

	result := &RefreshResult{}
	edges := make(map[uuid.UUID]*domain.Edge)
	page := domain.Page{Limit: domain.MaxPageLimit}

	for {
		batch, err := r.store.ListIdentities(ctx, page)
		if err != nil {
			r.logger.Error("failed to list identities for trust refresh", zap.Error(err))
			return result
		}

		for _, identity := range batch {
			result.IdentitiesScanned++
			accuracyChanged, trustChanged, err := r.refreshIdentity(ctx, identity, edges)
			if err != nil {
				r.logger.Error("trust refresh failed for identity",
					zap.String("identity", identity.PublicID),
					zap.Error(err))
				continue
			}
			if accuracyChanged {
				result.AccuracyUpdated++
			}
			if trustChanged {
				result.TrustChanged++
			}
		}

		if len(batch) < page.Limit {
			break
		}
		page.Offset += page.Limit
	}

	if result.TrustChanged > 0 || result.AccuracyUpdated > 0 {
		r.logger.Info("trust refresh complete",
			zap.Int("identities", result.IdentitiesScanned),
			zap.Int("trust_changed", result.TrustChanged),
			zap.Int("accuracy_updated", result.AccuracyUpdated))
	}
	return result
}

func (r *TrustRefresher) refreshIdentity(ctx context.Context, identity *domain.Identity, edges map[uuid.UUID]*domain.Edge) (bool, bool, error) {
	votes, err := r.store.ListVotesByIdentity(ctx, identity.PublicID)
	if err != nil {
		return false, false, err
	}

	accurate, decided := 0, 0
	for _, v := range votes {
		e, ok := edges[v.EdgeID]
		if !ok {
			e, err = r.store.GetEdge(ctx, v.EdgeID)
			if err != nil {
				return false, false, err
			}
			edges[v.EdgeID] = e
		}
		if e.Retracted {
			continue
		}
		consensus, ok := e.Tally.Consensus()
		if !ok {
			continue
		}
		decided++
		if v.Agree == consensus {
			accurate++
		}
	}

	accuracyChanged := accurate != identity.AccurateVerificationCount || decided != identity.DecidedVerificationCount
	identity.AccurateVerificationCount = accurate
	identity.DecidedVerificationCount = decided

	trustChanged, err := r.identities.RefreshTrust(ctx, identity)
	if err != nil {
		return false, false, err
	}
	if accuracyChanged && !trustChanged {
		if err := r.store.UpdateIdentity(ctx, identity); err != nil {
			return false, false, err
		}
	}
	return accuracyChanged, trustChanged, nil
}
