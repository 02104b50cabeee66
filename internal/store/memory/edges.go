package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store"
	"github.com/google/uuid"
)

func (s *Store) CreateEdge(ctx context.Context, e *domain.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []uuid.UUID{e.SourceID, e.TargetID} {
		n, ok := s.nodes[id]
		if !ok || n.Retracted {
			return store.ErrReference
		}
	}
	if _, ok := s.edges[e.ID]; ok {
		return store.ErrConflict
	}

	s.edges[e.ID] = e.Clone()
	s.outgoing[e.SourceID] = append(s.outgoing[e.SourceID], e.ID)
	s.incoming[e.TargetID] = append(s.incoming[e.TargetID], e.ID)
	return nil
}

func (s *Store) GetEdge(ctx context.Context, id uuid.UUID) (*domain.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *Store) RetractEdge(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[id]
	if !ok || e.Retracted {
		return store.ErrNotFound
	}
	e.Retracted = true
	e.RetractedAt = &at
	e.RetractedBy = by
	return nil
}

func (s *Store) GetNeighbors(ctx context.Context, nodeID uuid.UUID, direction domain.Direction, relations []domain.Relation) ([]*domain.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var allowed map[domain.Relation]bool
	if len(relations) > 0 {
		allowed = make(map[domain.Relation]bool, len(relations))
		for _, r := range relations {
			allowed[r] = true
		}
	}

	s.mu.RLock()
	var ids []uuid.UUID
	switch direction {
	case domain.DirectionOutgoing:
		ids = s.outgoing[nodeID]
	case domain.DirectionIncoming:
		ids = s.incoming[nodeID]
	default:
		ids = append(append([]uuid.UUID(nil), s.outgoing[nodeID]...), s.incoming[nodeID]...)
	}

	edges := make([]*domain.Edge, 0, len(ids))
	for _, id := range ids {
		e := s.edges[id]
		if e == nil || e.Retracted {
			continue
		}
		if allowed != nil && !allowed[e.Relation] {
			continue
		}
		edges = append(edges, e.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		return edges[i].CreatedAt.Before(edges[j].CreatedAt)
	})
	return edges, nil
}

func (s *Store) edgeLock(id uuid.UUID) *sync.Mutex {
	l, _ := s.edgeLocks.LoadOrStore(id, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// ApplyVote serialises votes per edge: the duplicate check and tally
// computation run under the edge lock with only a read lock on the store,
// and the global write lock is held just long enough to commit. A repeated
// (edge, identity) pair returns store.ErrConflict with the tally unchanged.
func (s *Store) ApplyVote(ctx context.Context, v *domain.Vote) (domain.Tally, error) {
	if err := ctx.Err(); err != nil {
		return domain.Tally{}, err
	}
	if v.CastAt.IsZero() {
		v.CastAt = time.Now().UTC()
	}

	lock := s.edgeLock(v.EdgeID)
	lock.Lock()
	defer lock.Unlock()

	key := voteKey{edgeID: v.EdgeID, identityID: v.IdentityID}

	s.mu.RLock()
	e, ok := s.edges[v.EdgeID]
	var (
		tally     domain.Tally
		retracted bool
		dup       bool
	)
	if ok {
		tally = e.Tally
		retracted = e.Retracted
		_, dup = s.votes[key]
	}
	s.mu.RUnlock()

	switch {
	case !ok:
		return domain.Tally{}, store.ErrNotFound
	case retracted:
		return domain.Tally{}, store.ErrReference
	case dup:
		return tally, store.ErrConflict
	}

	if v.Agree {
		tally.Agree++
		tally.AgreeWeight += v.Weight
	} else {
		tally.Disagree++
		tally.DisagreeWeight += v.Weight
	}

	if s.afterVoteCheck != nil {
		s.afterVoteCheck()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A retraction may have landed since the read lock was released.
	if e.Retracted {
		return domain.Tally{}, store.ErrReference
	}
	s.votes[key] = *v
	e.Tally = tally
	if !e.HasVerifier(v.IdentityID) {
		e.VerifierIDs = append(e.VerifierIDs, v.IdentityID)
	}
	return tally, nil
}

func (s *Store) ListVotesByIdentity(ctx context.Context, identityID string) ([]domain.Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	votes := []domain.Vote{}
	for k, v := range s.votes {
		if k.identityID == identityID {
			votes = append(votes, v)
		}
	}
	sort.Slice(votes, func(i, j int) bool {
		return votes[i].CastAt.Before(votes[j].CastAt)
	})
	return votes, nil
}
