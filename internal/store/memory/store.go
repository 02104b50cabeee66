// Package memory is an in-process graph store. It is the default backend and
// the one used by tests.
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

type voteKey struct {
	edgeID     uuid.UUID
	identityID string
}

// Store keeps every entity in maps guarded by one RWMutex. Votes on the same
// edge are additionally serialised by a per-edge mutex so tally updates
// never interleave.
type Store struct {
	mu         sync.RWMutex
	nodes      map[uuid.UUID]*domain.Node
	edges      map[uuid.UUID]*domain.Edge
	outgoing   map[uuid.UUID][]uuid.UUID
	incoming   map[uuid.UUID][]uuid.UUID
	votes      map[voteKey]domain.Vote
	identities map[string]*domain.Identity

	edgeLocks sync.Map

	// afterVoteCheck runs between the read-locked checks and the commit of
	// ApplyVote. Tests use it to interleave writes.
	afterVoteCheck func()
}

var _ domain.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		nodes:      make(map[uuid.UUID]*domain.Node),
		edges:      make(map[uuid.UUID]*domain.Edge),
		outgoing:   make(map[uuid.UUID][]uuid.UUID),
		incoming:   make(map[uuid.UUID][]uuid.UUID),
		votes:      make(map[voteKey]domain.Vote),
		identities: make(map[string]*domain.Identity),
	}
}

func (s *Store) CreateNode(ctx context.Context, n *domain.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = n.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[n.ID]; ok {
		return store.ErrConflict
	}
	s.nodes[n.ID] = n.Clone()
	return nil
}

func (s *Store) UpdateNode(ctx context.Context, n *domain.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.nodes[n.ID]
	if !ok {
		return store.ErrNotFound
	}
	if existing.Kind != n.Kind {
		return store.ErrKindMismatch
	}
	updated := existing.Clone()
	updated.Title = n.Title
	updated.Body = n.Body
	updated.Tags = append([]string(nil), n.Tags...)
	updated.Payload = n.Payload
	updated.Archive = n.Archive
	updated.UpdatedAt = time.Now().UTC()
	s.nodes[n.ID] = updated
	n.UpdatedAt = updated.UpdatedAt
	return nil
}

func (s *Store) GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return n.Clone(), nil
}

func (s *Store) RetractNode(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok || n.Retracted {
		return store.ErrNotFound
	}
	n.Retracted = true
	n.RetractedAt = &at
	n.RetractedBy = by
	n.UpdatedAt = at
	return nil
}

func (s *Store) ListNodesByKind(ctx context.Context, kind domain.NodeKind, page domain.Page) ([]*domain.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page = page.Normalize()

	s.mu.RLock()
	var matched []*domain.Node
	for _, n := range s.nodes {
		if n.Kind == kind && !n.Retracted {
			matched = append(matched, n.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	if page.Offset >= len(matched) {
		return []*domain.Node{}, nil
	}
	end := page.Offset + page.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[page.Offset:end], nil
}

func (s *Store) SearchNodes(ctx context.Context, query string, tokens []string, limit int) ([]domain.SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return []domain.SearchHit{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := []domain.SearchHit{}
	for _, n := range s.nodes {
		if n.Retracted {
			continue
		}
		rank, matched := domain.MatchNode(n, query, tokens)
		if rank == 0 {
			continue
		}
		hits = append(hits, domain.SearchHit{Node: n, Rank: rank, MatchedTokens: matched})
	}

	domain.SortHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	for i := range hits {
		hits[i].Node = hits[i].Node.Clone()
	}
	return hits, nil
}

func (s *Store) Stats(ctx context.Context) (*domain.GraphStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &domain.GraphStats{
		Nodes:      len(s.nodes),
		Edges:      len(s.edges),
		Votes:      len(s.votes),
		Identities: len(s.identities),
	}, nil
}
