package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScoreBreakdown is the Citadel Score of a node with its contributing counts.
type ScoreBreakdown struct {
	NodeID             uuid.UUID        `json:"node_id"`
	VerifiedCount      int              `json:"verified_count"`
	DisputedCount      int              `json:"disputed_count"`
	PendingCount       int              `json:"pending_count"`
	ContextCount       int              `json:"context_count"`
	SupportWeight      float64          `json:"support_weight"`
	DisputeWeight      float64          `json:"dispute_weight"`
	TrustWeightedScore float64          `json:"trust_weighted_score"`
	Controversy        ControversyLevel `json:"controversy"`
	TotalEdges         int              `json:"total_edges"`
	ComputedAt         time.Time        `json:"computed_at"`
}

// ScoringPolicy tunes the score computation. The zero value is not usable;
// start from DefaultScoringPolicy.
type ScoringPolicy struct {
	DisputeFactor      float64 `yaml:"dispute_factor"`
	TrustFloor         float64 `yaml:"trust_floor"`
	TrustSpan          float64 `yaml:"trust_span"`
	ConsensusRatio     float64 `yaml:"consensus_ratio"`
	AgreeMultiplier    float64 `yaml:"agree_multiplier"`
	DisagreeMultiplier float64 `yaml:"disagree_multiplier"`
	DuplicateDiscount  float64 `yaml:"duplicate_discount"`
	HighDisputeShare   float64 `yaml:"high_dispute_share"`
	HighMinEdges       int     `yaml:"high_min_edges"`
	MediumDisputeShare float64 `yaml:"medium_dispute_share"`
}

func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		DisputeFactor:      0.5,
		TrustFloor:         0.2,
		TrustSpan:          0.8,
		ConsensusRatio:     2.0,
		AgreeMultiplier:    1.5,
		DisagreeMultiplier: 0.5,
		DuplicateDiscount:  0.5,
		HighDisputeShare:   0.40,
		HighMinEdges:       5,
		MediumDisputeShare: 0.15,
	}
}

// TrustFactor maps a trust score in [0,100] to a weight multiplier.
func (p ScoringPolicy) TrustFactor(trust float64) float64 {
	if trust < MinTrustScore {
		trust = MinTrustScore
	}
	if trust > MaxTrustScore {
		trust = MaxTrustScore
	}
	return p.TrustFloor + p.TrustSpan*trust/MaxTrustScore
}

// VerificationMultiplier scales an edge by the margin of its vote counts.
// Voter trust does not enter here; it already shapes the tally weights used
// for accuracy.
func (p ScoringPolicy) VerificationMultiplier(t Tally) float64 {
	agree, disagree := float64(t.Agree), float64(t.Disagree)
	switch {
	case t.Total() == 0:
		return 1.0
	case agree >= p.ConsensusRatio*disagree && agree > disagree:
		return p.AgreeMultiplier
	case disagree >= p.ConsensusRatio*agree && disagree > agree:
		return p.DisagreeMultiplier
	default:
		return 1.0
	}
}

// EffectiveWeight is the edge weight after trust, verification and duplicate
// adjustments. It never exceeds the raw weight. A nil creator counts as
// zero trust.
func (p ScoringPolicy) EffectiveWeight(e *Edge, creator *Identity) float64 {
	trust := 0.0
	discount := 1.0
	if creator != nil {
		trust = creator.TrustScore
		if creator.Flags.PossibleDuplicate {
			discount = p.DuplicateDiscount
		}
	}
	w := e.Weight * p.TrustFactor(trust) * p.VerificationMultiplier(e.Tally) * discount
	if w > e.Weight {
		return e.Weight
	}
	return w
}

// Controversy classifies the dispute share of the scoring edges.
func (p ScoringPolicy) Controversy(supportWeight, disputeWeight float64, edges int) ControversyLevel {
	total := supportWeight + disputeWeight
	if total <= 0 {
		return ControversyLow
	}
	share := disputeWeight / total
	switch {
	case share > p.HighDisputeShare && edges >= p.HighMinEdges:
		return ControversyHigh
	case share > p.MediumDisputeShare:
		return ControversyMedium
	default:
		return ControversyLow
	}
}
