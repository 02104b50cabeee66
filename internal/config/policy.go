package config

import (
	"fmt"
	"os"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"gopkg.in/yaml.v3"
)

// Policy groups the tunable trust and scoring constants.
type Policy struct {
	Trust   domain.TrustPolicy   `yaml:"trust"`
	Scoring domain.ScoringPolicy `yaml:"scoring"`
}

func DefaultPolicy() Policy {
	return Policy{
		Trust:   domain.DefaultTrustPolicy(),
		Scoring: domain.DefaultScoringPolicy(),
	}
}

// LoadPolicy overlays the YAML file at path onto the defaults. Keys absent
// from the file keep their default values. An empty path returns the
// defaults.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicy(raw)
}

func ParsePolicy(raw []byte) (Policy, error) {
	p := DefaultPolicy()
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func (p Policy) Validate() error {
	s := p.Scoring
	if s.TrustFloor < 0 || s.TrustFloor+s.TrustSpan > 1+1e-9 {
		return fmt.Errorf("invalid policy: trust factor must stay within [0, 1]")
	}
	if s.MediumDisputeShare < 0 || s.HighDisputeShare > 1 || s.MediumDisputeShare > s.HighDisputeShare {
		return fmt.Errorf("invalid policy: dispute shares must satisfy 0 <= medium <= high <= 1")
	}
	if s.DuplicateDiscount < 0 || s.DuplicateDiscount > 1 {
		return fmt.Errorf("invalid policy: duplicate discount must be within [0, 1]")
	}
	if t := p.Trust.DuplicateThreshold; t < 0 || t > 1 {
		return fmt.Errorf("invalid policy: duplicate threshold must be within [0, 1]")
	}
	return nil
}
