package service

import (
	"context"
	"errors"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/cache"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// searchScoreWorkers bounds the concurrent score computations of a search.
const searchScoreWorkers = 8

type ClaimInput struct {
	Title    string
	Body     string
	Tags     []string
	ImageRef string
	Caption  string
}

type EvidenceInput struct {
	Kind    domain.NodeKind
	Title   string
	Body    string
	Tags    []string
	Payload domain.Payload
	Content []byte
	Weight  *float64
}

// Attachment is the evidence node and the edge linking it to a claim.
type Attachment struct {
	NodeID  uuid.UUID          `json:"node_id"`
	EdgeID  uuid.UUID          `json:"edge_id"`
	Weight  float64            `json:"weight"`
	Archive *domain.ArchiveRef `json:"archive,omitempty"`
}

type EngineOptions struct {
	TrustPolicy   domain.TrustPolicy
	ScoringPolicy domain.ScoringPolicy
	Classifier    domain.AnonymizationClassifier
	Archive       domain.Archive
	Cache         cache.Cache
	ScoreCacheTTL time.Duration
	MaxDepth      int
	MaxHops       int
}

// Engine is the transport independent entry point to the knowledge graph.
type Engine struct {
	Identities   *IdentityService
	Graph        *GraphService
	Scoring      *ScoringService
	Traversal    *TraversalService
	Verification *VerificationService

	logger *zap.Logger
}

func NewEngine(s domain.Store, opts EngineOptions, logger *zap.Logger) *Engine {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = NewSignalClassifier(opts.TrustPolicy)
	}

	identities := NewIdentityService(s, classifier, opts.TrustPolicy, logger)
	scoring := NewScoringService(s, opts.Cache, opts.ScoringPolicy, logger)
	if opts.ScoreCacheTTL > 0 {
		scoring.CacheTTL = opts.ScoreCacheTTL
	}
	traversal := NewTraversalService(s, opts.ScoringPolicy, logger)
	if opts.MaxDepth > 0 {
		traversal.MaxDepth = opts.MaxDepth
	}
	if opts.MaxHops > 0 {
		traversal.MaxHops = opts.MaxHops
	}

	return &Engine{
		Identities:   identities,
		Graph:        NewGraphService(s, identities, opts.Archive, scoring, logger),
		Scoring:      scoring,
		Traversal:    traversal,
		Verification: NewVerificationService(s, identities, scoring, opts.ScoringPolicy, logger),
		logger:       logger,
	}
}

func (e *Engine) DeriveIdentity(ctx context.Context, sig domain.Signature) (*domain.Identity, error) {
	return e.Identities.DeriveIdentity(ctx, sig)
}

func (e *Engine) CreateClaim(ctx context.Context, in ClaimInput, identityID string) (uuid.UUID, error) {
	node, err := e.Graph.CreateNode(ctx, NodeInput{
		Kind:    domain.KindClaim,
		Title:   in.Title,
		Body:    in.Body,
		Tags:    in.Tags,
		Payload: domain.ClaimPayload{ImageRef: in.ImageRef, Caption: in.Caption},
	}, identityID)
	if err != nil {
		return uuid.Nil, err
	}
	return node.ID, nil
}

// AttachEvidence creates an evidence node and links it to the claim with
// the given relation. If the link cannot be created the evidence node is
// retracted again.
func (e *Engine) AttachEvidence(ctx context.Context, claimID uuid.UUID, in EvidenceInput, relation domain.Relation, identityID string) (*Attachment, error) {
	if !domain.ValidRelation(string(relation)) {
		return nil, domain.ErrInvalidRelation
	}
	if in.Weight != nil && (*in.Weight < 0 || *in.Weight > 1) {
		return nil, domain.ErrInvalidWeight
	}

	claim, err := e.Graph.GetNode(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Kind != domain.KindClaim {
		return nil, domain.ErrNotAClaim
	}
	if claim.Retracted {
		return nil, domain.ErrDanglingReference
	}

	node, err := e.Graph.CreateNode(ctx, NodeInput{
		Kind:    in.Kind,
		Title:   in.Title,
		Body:    in.Body,
		Tags:    in.Tags,
		Payload: in.Payload,
		Content: in.Content,
	}, identityID)
	if err != nil {
		return nil, err
	}

	edge, err := e.Graph.CreateEdge(ctx, EdgeInput{
		SourceID: node.ID,
		TargetID: claimID,
		Relation: relation,
		Weight:   in.Weight,
	}, identityID)
	if err != nil {
		if rerr := e.Graph.RetractNode(ctx, node.ID, identityID); rerr != nil {
			e.logger.Warn("failed to retract orphaned evidence",
				zap.String("node_id", node.ID.String()),
				zap.Error(rerr))
		}
		return nil, err
	}

	return &Attachment{
		NodeID:  node.ID,
		EdgeID:  edge.ID,
		Weight:  edge.Weight,
		Archive: node.Archive,
	}, nil
}

func (e *Engine) CastVerification(ctx context.Context, edgeID uuid.UUID, agree bool, identityID string) (domain.Tally, error) {
	return e.Verification.CastVerification(ctx, edgeID, agree, identityID)
}

func (e *Engine) Traverse(ctx context.Context, nodeID uuid.UUID, depth int, filters domain.TraverseOptions) (*domain.TraversalResult, error) {
	filters.MaxDepth = depth
	return e.Traversal.Traverse(ctx, nodeID, filters)
}

func (e *Engine) ShortestPath(ctx context.Context, from, to uuid.UUID, maxHops int) (*domain.Path, error) {
	return e.Traversal.ShortestPath(ctx, from, to, maxHops)
}

func (e *Engine) Score(ctx context.Context, nodeID uuid.UUID) (*domain.ScoreBreakdown, error) {
	return e.Scoring.CalculateScore(ctx, nodeID)
}

// GetNode returns the node with its neighbours and its current
// controversy level.
func (e *Engine) GetNode(ctx context.Context, id uuid.UUID) (*domain.NodeWithNeighbors, error) {
	out, err := e.Graph.GetNodeWithNeighbors(ctx, id)
	if err != nil {
		return nil, err
	}
	score, err := e.Scoring.CalculateScore(ctx, id)
	if err != nil {
		return nil, err
	}
	out.Node.Controversy = score.Controversy
	return out, nil
}

// Search ranks nodes against the query and splits the hits into claims,
// each with its score, and evidence nodes.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*domain.SearchResult, error) {
	hits, err := e.Graph.SearchText(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	result := &domain.SearchResult{
		Claims:        []domain.ScoredClaim{},
		EvidenceNodes: []*domain.Node{},
	}
	for _, h := range hits {
		if h.Node.Kind == domain.KindClaim {
			result.Claims = append(result.Claims, domain.ScoredClaim{Node: h.Node})
		} else {
			result.EvidenceNodes = append(result.EvidenceNodes, h.Node)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchScoreWorkers)
	for i := range result.Claims {
		i := i
		g.Go(func() error {
			score, err := e.Scoring.CalculateScore(gctx, result.Claims[i].Node.ID)
			if err != nil {
				if errors.Is(err, domain.ErrNodeNotFound) {
					return nil
				}
				return err
			}
			result.Claims[i].Score = score
			result.Claims[i].Node.Controversy = score.Controversy
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
