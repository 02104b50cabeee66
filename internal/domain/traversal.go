package domain

import "github.com/google/uuid"

const (
	DefaultMaxTraversalDepth = 4
	DefaultMaxPathHops       = 10
)

// TraverseOptions constrains a breadth-first walk from a root node.
type TraverseOptions struct {
	MaxDepth  int        `json:"max_depth"`
	Relations []Relation `json:"relations,omitempty"`
	MinWeight float64    `json:"min_weight,omitempty"`
	Direction Direction  `json:"direction,omitempty"`
}

func (o TraverseOptions) allows(r Relation) bool {
	if len(o.Relations) == 0 {
		return true
	}
	for _, want := range o.Relations {
		if want == r {
			return true
		}
	}
	return false
}

// Allows reports whether an edge with relation r and effective weight w
// qualifies under the options.
func (o TraverseOptions) Allows(r Relation, w float64) bool {
	return o.allows(r) && w >= o.MinWeight
}

type TraversalResult struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// Path is the result of a shortest path query. Found is false when no path
// exists within the hop bound.
type Path struct {
	Found       bool        `json:"found"`
	NodeIDs     []uuid.UUID `json:"node_ids"`
	Edges       []*Edge     `json:"edges"`
	Hops        int         `json:"hops"`
	TotalWeight float64     `json:"total_weight"`
}

// SearchResult groups matches into claims and evidence nodes.
type SearchResult struct {
	Claims        []ScoredClaim `json:"claims"`
	EvidenceNodes []*Node       `json:"evidence_nodes"`
}

type ScoredClaim struct {
	Node  *Node           `json:"node"`
	Score *ScoreBreakdown `json:"score,omitempty"`
}

// SearchHit is a ranked text match.
type SearchHit struct {
	Node          *Node `json:"node"`
	Rank          int   `json:"rank"`
	MatchedTokens int   `json:"matched_tokens"`
}
