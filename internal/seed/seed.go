// Package seed loads a YAML fixture of identities, claims, evidence and
// votes into an engine.
package seed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/service"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type Fixture struct {
	Identities []IdentitySpec `yaml:"identities"`
	Claims     []ClaimSpec    `yaml:"claims"`
	Votes      []VoteSpec     `yaml:"votes"`
}

// IdentitySpec uses the same attribute names as the HTTP API.
type IdentitySpec struct {
	Key       string         `yaml:"key"`
	Signature map[string]any `yaml:"signature"`
}

type ClaimSpec struct {
	Key      string         `yaml:"key"`
	By       string         `yaml:"by"`
	Title    string         `yaml:"title"`
	Body     string         `yaml:"body"`
	Tags     []string       `yaml:"tags"`
	ImageRef string         `yaml:"image_ref"`
	Caption  string         `yaml:"caption"`
	Evidence []EvidenceSpec `yaml:"evidence"`
}

type EvidenceSpec struct {
	Key      string         `yaml:"key"`
	By       string         `yaml:"by"`
	Kind     string         `yaml:"kind"`
	Title    string         `yaml:"title"`
	Body     string         `yaml:"body"`
	Tags     []string       `yaml:"tags"`
	Payload  map[string]any `yaml:"payload"`
	Content  string         `yaml:"content"`
	Relation string         `yaml:"relation"`
	Weight   *float64       `yaml:"weight"`
}

// VoteSpec verifies the edge that attached the named evidence.
type VoteSpec struct {
	Evidence string `yaml:"evidence"`
	By       string `yaml:"by"`
	Agree    bool   `yaml:"agree"`
}

type Result struct {
	Identities map[string]string    `json:"identities"`
	Claims     map[string]uuid.UUID `json:"claims"`
	Evidence   map[string]uuid.UUID `json:"evidence"`
	Edges      map[string]uuid.UUID `json:"edges"`
	Votes      int                  `json:"votes"`
}

func Parse(raw []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &fx, nil
}

// Apply creates everything in the fixture in order. It stops at the first
// failure; whatever was created before stays.
func Apply(ctx context.Context, engine *service.Engine, fx *Fixture) (*Result, error) {
	res := &Result{
		Identities: make(map[string]string),
		Claims:     make(map[string]uuid.UUID),
		Evidence:   make(map[string]uuid.UUID),
		Edges:      make(map[string]uuid.UUID),
	}

	for _, spec := range fx.Identities {
		sig, err := decodeSignature(spec.Signature)
		if err != nil {
			return res, fmt.Errorf("identity %q: %w", spec.Key, err)
		}
		identity, err := engine.DeriveIdentity(ctx, sig)
		if err != nil {
			return res, fmt.Errorf("identity %q: %w", spec.Key, err)
		}
		res.Identities[spec.Key] = identity.PublicID
	}

	for _, c := range fx.Claims {
		author, err := res.identity(c.By)
		if err != nil {
			return res, fmt.Errorf("claim %q: %w", c.Key, err)
		}
		id, err := engine.CreateClaim(ctx, service.ClaimInput{
			Title:    c.Title,
			Body:     c.Body,
			Tags:     c.Tags,
			ImageRef: c.ImageRef,
			Caption:  c.Caption,
		}, author)
		if err != nil {
			return res, fmt.Errorf("claim %q: %w", c.Key, err)
		}
		res.Claims[c.Key] = id

		for _, ev := range c.Evidence {
			if err := applyEvidence(ctx, engine, res, id, author, ev); err != nil {
				return res, fmt.Errorf("evidence %q: %w", ev.Key, err)
			}
		}
	}

	for _, v := range fx.Votes {
		voter, err := res.identity(v.By)
		if err != nil {
			return res, fmt.Errorf("vote on %q: %w", v.Evidence, err)
		}
		edgeID, ok := res.Edges[v.Evidence]
		if !ok {
			return res, fmt.Errorf("vote on %q: unknown evidence", v.Evidence)
		}
		if _, err := engine.CastVerification(ctx, edgeID, v.Agree, voter); err != nil {
			return res, fmt.Errorf("vote on %q: %w", v.Evidence, err)
		}
		res.Votes++
	}
	return res, nil
}

func applyEvidence(ctx context.Context, engine *service.Engine, res *Result, claimID uuid.UUID, claimAuthor string, ev EvidenceSpec) error {
	author := claimAuthor
	if ev.By != "" {
		var err error
		if author, err = res.identity(ev.By); err != nil {
			return err
		}
	}

	kind := domain.NodeKind(ev.Kind)
	var raw []byte
	if ev.Payload != nil {
		var err error
		if raw, err = json.Marshal(ev.Payload); err != nil {
			return err
		}
	}
	payload, err := domain.DecodePayload(kind, raw)
	if err != nil {
		return err
	}

	in := service.EvidenceInput{
		Kind:    kind,
		Title:   ev.Title,
		Body:    ev.Body,
		Tags:    ev.Tags,
		Payload: payload,
		Weight:  ev.Weight,
	}
	if ev.Content != "" {
		in.Content = []byte(ev.Content)
	}

	att, err := engine.AttachEvidence(ctx, claimID, in, domain.Relation(ev.Relation), author)
	if err != nil {
		return err
	}
	res.Evidence[ev.Key] = att.NodeID
	res.Edges[ev.Key] = att.EdgeID
	return nil
}

func (r *Result) identity(key string) (string, error) {
	id, ok := r.Identities[key]
	if !ok {
		return "", fmt.Errorf("unknown identity %q", key)
	}
	return id, nil
}

func decodeSignature(attrs map[string]any) (domain.Signature, error) {
	var sig domain.Signature
	raw, err := json.Marshal(attrs)
	if err != nil {
		return sig, err
	}
	if err := json.Unmarshal(raw, &sig); err != nil {
		return sig, fmt.Errorf("decode signature: %w", err)
	}
	return sig, nil
}
