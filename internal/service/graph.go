package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/metrics"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NodeInput struct {
	Kind    domain.NodeKind
	Title   string
	Body    string
	Tags    []string
	Payload domain.Payload
	// Content is archived when present and its reference kept on the node.
	Content []byte
}

type EdgeInput struct {
	SourceID uuid.UUID
	TargetID uuid.UUID
	Relation domain.Relation
	Weight   *float64
}

// ArchiveCheck reports whether a node's archived evidence is intact.
type ArchiveCheck struct {
	NodeID  uuid.UUID `json:"node_id"`
	Hash    string    `json:"hash"`
	Locator string    `json:"locator"`
	Intact  bool      `json:"intact"`
}

type GraphService struct {
	store      domain.Store
	identities *IdentityService
	archive    domain.Archive
	scores     ScoreInvalidator
	logger     *zap.Logger
}

func NewGraphService(s domain.Store, identities *IdentityService, archive domain.Archive, scores ScoreInvalidator, logger *zap.Logger) *GraphService {
	return &GraphService{
		store:      s,
		identities: identities,
		archive:    archive,
		scores:     scores,
		logger:     logger,
	}
}

func validateNodeInput(in *NodeInput) error {
	if !domain.ValidNodeKind(string(in.Kind)) {
		return domain.ErrInvalidKind
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return domain.ErrTitleRequired
	}
	if in.Payload == nil {
		p, err := domain.EmptyPayload(in.Kind)
		if err != nil {
			return err
		}
		in.Payload = p
	}
	if in.Payload.Kind() != in.Kind {
		return fmt.Errorf("%w: %s payload on %s node", domain.ErrInvalidPayload, in.Payload.Kind(), in.Kind)
	}
	return domain.ValidatePayload(in.Payload)
}

func (s *GraphService) CreateNode(ctx context.Context, in NodeInput, identityID string) (*domain.Node, error) {
	if _, err := s.identities.GetIdentity(ctx, identityID); err != nil {
		return nil, err
	}
	if err := validateNodeInput(&in); err != nil {
		return nil, err
	}

	node := &domain.Node{
		Kind:        in.Kind,
		Title:       in.Title,
		Body:        in.Body,
		Tags:        domain.NormalizeTags(in.Tags),
		Payload:     in.Payload,
		CreatedBy:   identityID,
		Controversy: domain.ControversyLow,
	}
	if len(in.Content) > 0 {
		ref, err := s.archiveContent(ctx, in.Content)
		if err != nil {
			return nil, err
		}
		node.Archive = ref
	}

	if err := s.store.CreateNode(ctx, node); err != nil {
		return nil, err
	}
	metrics.GraphWrites.WithLabelValues("node").Inc()

	delta := domain.CounterDelta{Reputation: domain.ReputationPerNode, Contributions: 1}
	if err := s.identities.RecordContribution(ctx, identityID, delta); err != nil {
		s.logger.Warn("failed to record contribution", zap.String("identity", identityID), zap.Error(err))
	}

	s.logger.Debug("node created",
		zap.String("node_id", node.ID.String()),
		zap.String("kind", string(node.Kind)),
		zap.String("identity", identityID))
	return node, nil
}

func (s *GraphService) archiveContent(ctx context.Context, content []byte) (*domain.ArchiveRef, error) {
	if s.archive == nil {
		s.logger.Warn("no archive configured, evidence content dropped", zap.Int("bytes", len(content)))
		return nil, nil
	}
	ref, err := s.archive.Store(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("archive evidence: %w", err)
	}
	return &ref, nil
}

// UpdateNode changes the title, body, tags and payload of a node. The kind
// is fixed at creation.
func (s *GraphService) UpdateNode(ctx context.Context, id uuid.UUID, in NodeInput, identityID string) (*domain.Node, error) {
	node, err := s.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if node.CreatedBy != identityID {
		return nil, domain.ErrNotCreator
	}
	if node.Retracted {
		return nil, domain.ErrRetracted
	}
	if in.Kind == "" {
		in.Kind = node.Kind
	}
	if in.Kind != node.Kind {
		return nil, domain.ErrKindImmutable
	}
	if err := validateNodeInput(&in); err != nil {
		return nil, err
	}

	node.Title = in.Title
	node.Body = in.Body
	node.Tags = domain.NormalizeTags(in.Tags)
	node.Payload = in.Payload
	if len(in.Content) > 0 {
		ref, err := s.archiveContent(ctx, in.Content)
		if err != nil {
			return nil, err
		}
		node.Archive = ref
	}

	if err := s.store.UpdateNode(ctx, node); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, domain.ErrNodeNotFound
		case errors.Is(err, store.ErrKindMismatch):
			return nil, domain.ErrKindImmutable
		}
		return nil, err
	}
	metrics.GraphWrites.WithLabelValues("node").Inc()
	return node, nil
}

func (s *GraphService) GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	node, err := s.store.GetNode(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrNodeNotFound
		}
		return nil, err
	}
	return node, nil
}

// GetNodeWithNeighbors returns the node and one hop of live edges, each
// annotated with its direction relative to the node.
func (s *GraphService) GetNodeWithNeighbors(ctx context.Context, id uuid.UUID) (*domain.NodeWithNeighbors, error) {
	node, err := s.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	edges, err := s.store.GetNeighbors(ctx, id, domain.DirectionBoth, nil)
	if err != nil {
		return nil, err
	}

	nodes := newNodeCache(s.store)
	out := &domain.NodeWithNeighbors{Node: node, Neighbors: make([]domain.Neighbor, 0, len(edges))}
	for _, e := range edges {
		dir := domain.DirectionIncoming
		if e.SourceID == id {
			dir = domain.DirectionOutgoing
		}
		other, err := nodes.get(ctx, e.Other(id))
		if err != nil {
			return nil, err
		}
		out.Neighbors = append(out.Neighbors, domain.Neighbor{Edge: *e, Direction: dir, Node: other})
	}
	return out, nil
}

func (s *GraphService) ListNodesByKind(ctx context.Context, kind domain.NodeKind, page domain.Page) ([]*domain.Node, error) {
	if !domain.ValidNodeKind(string(kind)) {
		return nil, domain.ErrInvalidKind
	}
	return s.store.ListNodesByKind(ctx, kind, page.Normalize())
}

// RetractNode marks a node and its live edges retracted. Only the creator
// may retract; retracting twice is a no-op.
func (s *GraphService) RetractNode(ctx context.Context, id uuid.UUID, identityID string) error {
	node, err := s.GetNode(ctx, id)
	if err != nil {
		return err
	}
	if node.CreatedBy != identityID {
		return domain.ErrNotCreator
	}
	if node.Retracted {
		return nil
	}

	edges, err := s.store.GetNeighbors(ctx, id, domain.DirectionBoth, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if err := s.store.RetractNode(ctx, id, identityID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	touched := []uuid.UUID{id}
	for _, e := range edges {
		if err := s.store.RetractEdge(ctx, e.ID, identityID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("retract edge %s: %w", e.ID, err)
		}
		touched = append(touched, e.Other(id))
	}
	s.scores.Invalidate(ctx, touched...)
	metrics.GraphWrites.WithLabelValues("retraction").Inc()

	s.logger.Info("node retracted",
		zap.String("node_id", id.String()),
		zap.String("identity", identityID),
		zap.Int("edges", len(edges)))
	return nil
}

func (s *GraphService) CreateEdge(ctx context.Context, in EdgeInput, identityID string) (*domain.Edge, error) {
	creator, err := s.identities.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !domain.ValidRelation(string(in.Relation)) {
		return nil, domain.ErrInvalidRelation
	}
	if in.SourceID == in.TargetID {
		return nil, domain.ErrSelfLoop
	}
	weight, err := domain.CapWeight(in.Weight, creator.TrustScore)
	if err != nil {
		return nil, err
	}

	edge := &domain.Edge{
		SourceID:  in.SourceID,
		TargetID:  in.TargetID,
		Relation:  in.Relation,
		Weight:    weight,
		CreatedBy: identityID,
	}
	if err := s.store.CreateEdge(ctx, edge); err != nil {
		if errors.Is(err, store.ErrReference) {
			return nil, domain.ErrDanglingReference
		}
		return nil, err
	}
	metrics.GraphWrites.WithLabelValues("edge").Inc()
	s.scores.Invalidate(ctx, edge.SourceID, edge.TargetID)

	delta := domain.CounterDelta{Reputation: domain.ReputationPerEdge, Contributions: 1}
	if err := s.identities.RecordContribution(ctx, identityID, delta); err != nil {
		s.logger.Warn("failed to record contribution", zap.String("identity", identityID), zap.Error(err))
	}

	s.logger.Debug("edge created",
		zap.String("edge_id", edge.ID.String()),
		zap.String("relation", string(edge.Relation)),
		zap.Float64("weight", edge.Weight))
	return edge, nil
}

func (s *GraphService) GetEdge(ctx context.Context, id uuid.UUID) (*domain.Edge, error) {
	edge, err := s.store.GetEdge(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrEdgeNotFound
		}
		return nil, err
	}
	return edge, nil
}

func (s *GraphService) RetractEdge(ctx context.Context, id uuid.UUID, identityID string) error {
	edge, err := s.GetEdge(ctx, id)
	if err != nil {
		return err
	}
	if edge.CreatedBy != identityID {
		return domain.ErrNotCreator
	}
	if edge.Retracted {
		return nil
	}
	if err := s.store.RetractEdge(ctx, id, identityID, time.Now().UTC()); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	s.scores.Invalidate(ctx, edge.SourceID, edge.TargetID)
	metrics.GraphWrites.WithLabelValues("retraction").Inc()
	return nil
}

// SearchText ranks live nodes against a free-text query: exact phrase, then
// all tokens, then any token. Ties go to more matched tokens, then the most
// recently updated node. The store ranks before applying the limit.
func (s *GraphService) SearchText(ctx context.Context, query string, limit int) ([]domain.SearchHit, error) {
	tokens := domain.Tokenize(query)
	if len(tokens) == 0 {
		return nil, domain.ErrQueryEmpty
	}
	limit = domain.Page{Limit: limit}.Normalize().Limit
	return s.store.SearchNodes(ctx, query, tokens, limit)
}

// VerifyArchive checks the archived evidence of a node against its stored
// hash.
func (s *GraphService) VerifyArchive(ctx context.Context, id uuid.UUID) (*ArchiveCheck, error) {
	node, err := s.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if node.Archive == nil || s.archive == nil {
		return nil, domain.ErrArchiveNotFound
	}
	ok, err := s.archive.Verify(ctx, node.Archive.Hash, nil)
	if err != nil {
		return nil, err
	}
	return &ArchiveCheck{
		NodeID:  id,
		Hash:    node.Archive.Hash,
		Locator: node.Archive.Locator,
		Intact:  ok,
	}, nil
}

func (s *GraphService) Stats(ctx context.Context) (*domain.GraphStats, error) {
	return s.store.Stats(ctx)
}
