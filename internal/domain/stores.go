package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type NodeStore interface {
	CreateNode(ctx context.Context, n *Node) error
	// UpdateNode rewrites title, body, tags and payload. The stored kind
	// must match n.Kind.
	UpdateNode(ctx context.Context, n *Node) error
	// GetNode returns retracted nodes too.
	GetNode(ctx context.Context, id uuid.UUID) (*Node, error)
	RetractNode(ctx context.Context, id uuid.UUID, by string, at time.Time) error
	ListNodesByKind(ctx context.Context, kind NodeKind, page Page) ([]*Node, error)
	// SearchNodes returns the best limit non-retracted matches for query,
	// ranked as SortHits orders them. Ranking happens before the cut.
	SearchNodes(ctx context.Context, query string, tokens []string, limit int) ([]SearchHit, error)
}

type EdgeStore interface {
	// CreateEdge fails when either endpoint is missing or retracted.
	CreateEdge(ctx context.Context, e *Edge) error
	GetEdge(ctx context.Context, id uuid.UUID) (*Edge, error)
	RetractEdge(ctx context.Context, id uuid.UUID, by string, at time.Time) error
	// GetNeighbors returns the non-retracted edges touching nodeID.
	GetNeighbors(ctx context.Context, nodeID uuid.UUID, direction Direction, relations []Relation) ([]*Edge, error)
	// ApplyVote records v and updates the edge tally atomically.
	ApplyVote(ctx context.Context, v *Vote) (Tally, error)
	ListVotesByIdentity(ctx context.Context, identityID string) ([]Vote, error)
}

// CounterDelta increments identity activity counters.
type CounterDelta struct {
	Reputation    int
	Contributions int
	Verifications int
}

type IdentityStore interface {
	CreateIdentity(ctx context.Context, i *Identity) error
	GetIdentity(ctx context.Context, publicID string) (*Identity, error)
	UpdateIdentity(ctx context.Context, i *Identity) error
	ListIdentities(ctx context.Context, page Page) ([]*Identity, error)
	// FindDuplicateCandidates returns identities sharing the network address
	// or geo hash, excluding the given public id.
	FindDuplicateCandidates(ctx context.Context, ipAddress, geoHash, exclude string, limit int) ([]*Identity, error)
	IncrementCounters(ctx context.Context, publicID string, delta CounterDelta) error
}

type GraphStats struct {
	Nodes      int `json:"nodes"`
	Edges      int `json:"edges"`
	Votes      int `json:"votes"`
	Identities int `json:"identities"`
}

type Store interface {
	NodeStore
	EdgeStore
	IdentityStore
	Stats(ctx context.Context) (*GraphStats, error)
}

// Archive is the permanent content store evidence can be pinned to.
type Archive interface {
	Store(ctx context.Context, content []byte) (ArchiveRef, error)
	Retrieve(ctx context.Context, hash string) ([]byte, error)
	Verify(ctx context.Context, hash string, content []byte) (bool, error)
}

// AnonymizationClassifier flags signatures that look like they come through
// an anonymising network.
type AnonymizationClassifier interface {
	Classify(sig Signature) Classification
}
