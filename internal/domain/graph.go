package domain

import (
	"time"

	"github.com/google/uuid"
)

type Relation string

const (
	RelationSupports    Relation = "supports"
	RelationDisputes    Relation = "disputes"
	RelationDerivesFrom Relation = "derives_from"
	RelationCites       Relation = "cites"
	RelationContext     Relation = "context"
	RelationRelated     Relation = "related"
	RelationChallenges  Relation = "challenges"
	RelationAddresses   Relation = "addresses"
	RelationParallels   Relation = "parallels"
	RelationInfluenced  Relation = "influenced"
	RelationExpands     Relation = "expands"
)

func ValidRelation(r string) bool {
	switch Relation(r) {
	case RelationSupports, RelationDisputes, RelationDerivesFrom, RelationCites,
		RelationContext, RelationRelated, RelationChallenges, RelationAddresses,
		RelationParallels, RelationInfluenced, RelationExpands:
		return true
	}
	return false
}

// ScoringRelations are the relations that carry weight in a claim's score.
var ScoringRelations = map[Relation]bool{
	RelationSupports: true,
	RelationDisputes: true,
}

type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

func ValidDirection(d string) bool {
	switch Direction(d) {
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
		return true
	}
	return false
}

// Tally is the running verification count of an edge. Weights are the sum
// of voter weights at cast time.
type Tally struct {
	Agree          int     `json:"agree"`
	Disagree       int     `json:"disagree"`
	AgreeWeight    float64 `json:"agree_weight"`
	DisagreeWeight float64 `json:"disagree_weight"`
}

func (t Tally) Total() int {
	return t.Agree + t.Disagree
}

// Consensus reports the weighted majority of the tally. ok is false when no
// votes were cast or the weights are tied.
func (t Tally) Consensus() (agree bool, ok bool) {
	if t.Total() == 0 || t.AgreeWeight == t.DisagreeWeight {
		return false, false
	}
	return t.AgreeWeight > t.DisagreeWeight, true
}

type Edge struct {
	ID          uuid.UUID  `json:"id"`
	SourceID    uuid.UUID  `json:"source_id"`
	TargetID    uuid.UUID  `json:"target_id"`
	Relation    Relation   `json:"relation"`
	Weight      float64    `json:"weight"`
	CreatedBy   string     `json:"created_by"`
	VerifierIDs []string   `json:"verifier_ids,omitempty"`
	Tally       Tally      `json:"tally"`
	Retracted   bool       `json:"retracted"`
	RetractedAt *time.Time `json:"retracted_at,omitempty"`
	RetractedBy string     `json:"retracted_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (e *Edge) Clone() *Edge {
	c := *e
	if e.VerifierIDs != nil {
		c.VerifierIDs = append([]string(nil), e.VerifierIDs...)
	}
	if e.RetractedAt != nil {
		t := *e.RetractedAt
		c.RetractedAt = &t
	}
	return &c
}

// Other returns the endpoint of e that is not id.
func (e *Edge) Other(id uuid.UUID) uuid.UUID {
	if e.SourceID == id {
		return e.TargetID
	}
	return e.SourceID
}

func (e *Edge) HasVerifier(identityID string) bool {
	for _, v := range e.VerifierIDs {
		if v == identityID {
			return true
		}
	}
	return false
}

type Vote struct {
	EdgeID     uuid.UUID `json:"edge_id"`
	IdentityID string    `json:"identity_id"`
	Agree      bool      `json:"agree"`
	Weight     float64   `json:"weight"`
	CastAt     time.Time `json:"cast_at"`
}

// Neighbor is an edge seen from one endpoint.
type Neighbor struct {
	Edge      Edge      `json:"edge"`
	Direction Direction `json:"direction"`
	Node      *Node     `json:"node,omitempty"`
}

type NodeWithNeighbors struct {
	Node      *Node      `json:"node"`
	Neighbors []Neighbor `json:"neighbors"`
}
