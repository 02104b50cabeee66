package memory

import (
	"context"
	"sort"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store"
)

func (s *Store) CreateIdentity(ctx context.Context, i *domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[i.PublicID]; ok {
		return store.ErrConflict
	}
	s.identities[i.PublicID] = i.Clone()
	return nil
}

func (s *Store) GetIdentity(ctx context.Context, publicID string) (*domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.identities[publicID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return i.Clone(), nil
}

// UpdateIdentity replaces trust, flags and signature. Counters are only
// changed through IncrementCounters, except the accuracy counts which the
// trust refresher recomputes.
func (s *Store) UpdateIdentity(ctx context.Context, i *domain.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.identities[i.PublicID]
	if !ok {
		return store.ErrNotFound
	}
	updated := i.Clone()
	updated.Reputation = existing.Reputation
	updated.ContributionCount = existing.ContributionCount
	updated.VerificationCount = existing.VerificationCount
	updated.CreatedAt = existing.CreatedAt
	s.identities[i.PublicID] = updated
	return nil
}

func (s *Store) ListIdentities(ctx context.Context, page domain.Page) ([]*domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page.Limit <= 0 {
		page.Limit = domain.MaxPageLimit
	}

	s.mu.RLock()
	all := make([]*domain.Identity, 0, len(s.identities))
	for _, i := range s.identities {
		all = append(all, i.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(a, b int) bool { return all[a].PublicID < all[b].PublicID })
	if page.Offset >= len(all) {
		return []*domain.Identity{}, nil
	}
	end := page.Offset + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Offset:end], nil
}

func (s *Store) FindDuplicateCandidates(ctx context.Context, ipAddress, geoHash, exclude string, limit int) ([]*domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Identity
	for id, i := range s.identities {
		if id == exclude {
			continue
		}
		sameIP := ipAddress != "" && i.Signature.IPAddress == ipAddress
		sameGeo := geoHash != "" && i.Signature.GeoHash == geoHash
		if sameIP || sameGeo {
			out = append(out, i.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) IncrementCounters(ctx context.Context, publicID string, delta domain.CounterDelta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.identities[publicID]
	if !ok {
		return store.ErrNotFound
	}
	if delta.Reputation > 0 {
		i.Reputation += delta.Reputation
	}
	i.ContributionCount += delta.Contributions
	i.VerificationCount += delta.Verifications
	return nil
}
