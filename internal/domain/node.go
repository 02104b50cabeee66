package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type NodeKind string

const (
	KindClaim     NodeKind = "claim"
	KindAxiom     NodeKind = "axiom"
	KindEvent     NodeKind = "event"
	KindStatistic NodeKind = "statistic"
	KindText      NodeKind = "text"
	KindPerson    NodeKind = "person"
	KindConcept   NodeKind = "concept"
)

func ValidNodeKind(k string) bool {
	switch NodeKind(k) {
	case KindClaim, KindAxiom, KindEvent, KindStatistic, KindText, KindPerson, KindConcept:
		return true
	}
	return false
}

func AllNodeKinds() []NodeKind {
	return []NodeKind{KindClaim, KindAxiom, KindEvent, KindStatistic, KindText, KindPerson, KindConcept}
}

// Payload is the kind-specific part of a node. Exactly one implementation
// exists per NodeKind.
type Payload interface {
	Kind() NodeKind
	// SearchText returns the free-text fields that take part in text search.
	SearchText() []string
}

type ClaimPayload struct {
	ImageRef string `json:"image_ref,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

func (ClaimPayload) Kind() NodeKind          { return KindClaim }
func (p ClaimPayload) SearchText() []string { return []string{p.Caption} }

type AxiomPayload struct {
	Statement string `json:"statement,omitempty"`
	Domain    string `json:"domain,omitempty"`
}

func (AxiomPayload) Kind() NodeKind          { return KindAxiom }
func (p AxiomPayload) SearchText() []string { return []string{p.Statement, p.Domain} }

type TimePrecision string

const (
	PrecisionYear   TimePrecision = "year"
	PrecisionMonth  TimePrecision = "month"
	PrecisionDay    TimePrecision = "day"
	PrecisionHour   TimePrecision = "hour"
	PrecisionMinute TimePrecision = "minute"
)

func ValidTimePrecision(p string) bool {
	switch TimePrecision(p) {
	case PrecisionYear, PrecisionMonth, PrecisionDay, PrecisionHour, PrecisionMinute:
		return true
	}
	return false
}

type EventPayload struct {
	Start     time.Time     `json:"start"`
	End       *time.Time    `json:"end,omitempty"`
	Precision TimePrecision `json:"precision"`
	Location  string        `json:"location,omitempty"`
}

func (EventPayload) Kind() NodeKind          { return KindEvent }
func (p EventPayload) SearchText() []string { return []string{p.Location} }

type StatisticPayload struct {
	Value   float64 `json:"value"`
	Unit    string  `json:"unit,omitempty"`
	Context string  `json:"context,omitempty"`
	Source  string  `json:"source,omitempty"`
}

func (StatisticPayload) Kind() NodeKind { return KindStatistic }
func (p StatisticPayload) SearchText() []string {
	return []string{p.Unit, p.Context, p.Source}
}

type TextPayload struct {
	Source  string `json:"source,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	Author  string `json:"author,omitempty"`
}

func (TextPayload) Kind() NodeKind { return KindText }
func (p TextPayload) SearchText() []string {
	return []string{p.Source, p.Excerpt, p.Author}
}

type PersonPayload struct {
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

func (PersonPayload) Kind() NodeKind { return KindPerson }
func (p PersonPayload) SearchText() []string {
	return []string{p.Name, p.Role, p.Affiliation}
}

type ConceptPayload struct {
	Definition string   `json:"definition,omitempty"`
	Aliases    []string `json:"aliases,omitempty"`
}

func (ConceptPayload) Kind() NodeKind { return KindConcept }
func (p ConceptPayload) SearchText() []string {
	return append([]string{p.Definition}, p.Aliases...)
}

// EmptyPayload returns the zero payload for a kind.
func EmptyPayload(kind NodeKind) (Payload, error) {
	switch kind {
	case KindClaim:
		return ClaimPayload{}, nil
	case KindAxiom:
		return AxiomPayload{}, nil
	case KindEvent:
		return EventPayload{Precision: PrecisionDay}, nil
	case KindStatistic:
		return StatisticPayload{}, nil
	case KindText:
		return TextPayload{}, nil
	case KindPerson:
		return PersonPayload{}, nil
	case KindConcept:
		return ConceptPayload{}, nil
	}
	return nil, ErrInvalidKind
}

// DecodePayload decodes raw JSON into the payload variant for kind.
// Empty input yields the zero payload.
func DecodePayload(kind NodeKind, raw []byte) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return EmptyPayload(kind)
	}

	var (
		p   Payload
		err error
	)
	switch kind {
	case KindClaim:
		var v ClaimPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindAxiom:
		var v AxiomPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindEvent:
		var v EventPayload
		err = json.Unmarshal(raw, &v)
		if v.Precision == "" {
			v.Precision = PrecisionDay
		}
		p = v
	case KindStatistic:
		var v StatisticPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindText:
		var v TextPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindPerson:
		var v PersonPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindConcept:
		var v ConceptPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, ErrInvalidKind
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

// ValidatePayload checks kind-specific invariants.
func ValidatePayload(p Payload) error {
	switch v := p.(type) {
	case EventPayload:
		if v.Start.IsZero() {
			return fmt.Errorf("%w: event start is required", ErrInvalidPayload)
		}
		if v.End != nil && v.End.Before(v.Start) {
			return fmt.Errorf("%w: event end precedes start", ErrInvalidPayload)
		}
		if !ValidTimePrecision(string(v.Precision)) {
			return fmt.Errorf("%w: invalid precision %q", ErrInvalidPayload, v.Precision)
		}
	case PersonPayload:
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("%w: person name is required", ErrInvalidPayload)
		}
	}
	return nil
}

type ControversyLevel string

const (
	ControversyLow    ControversyLevel = "low"
	ControversyMedium ControversyLevel = "medium"
	ControversyHigh   ControversyLevel = "high"
)

// ArchiveRef points at permanently archived evidence content.
type ArchiveRef struct {
	Hash    string `json:"hash"`
	Locator string `json:"locator"`
}

type Node struct {
	ID          uuid.UUID        `json:"id"`
	Kind        NodeKind         `json:"kind"`
	Title       string           `json:"title"`
	Body        string           `json:"body,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Payload     Payload          `json:"payload"`
	Archive     *ArchiveRef      `json:"archive,omitempty"`
	CreatedBy   string           `json:"created_by"`
	Controversy ControversyLevel `json:"controversy,omitempty"`
	Retracted   bool             `json:"retracted"`
	RetractedAt *time.Time       `json:"retracted_at,omitempty"`
	RetractedBy string           `json:"retracted_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type nodeJSON struct {
	ID          uuid.UUID        `json:"id"`
	Kind        NodeKind         `json:"kind"`
	Title       string           `json:"title"`
	Body        string           `json:"body,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
	Payload     json.RawMessage  `json:"payload"`
	Archive     *ArchiveRef      `json:"archive,omitempty"`
	CreatedBy   string           `json:"created_by"`
	Controversy ControversyLevel `json:"controversy,omitempty"`
	Retracted   bool             `json:"retracted"`
	RetractedAt *time.Time       `json:"retracted_at,omitempty"`
	RetractedBy string           `json:"retracted_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// UnmarshalJSON dispatches the payload on the kind discriminator.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	payload, err := DecodePayload(raw.Kind, raw.Payload)
	if err != nil {
		return err
	}
	*n = Node{
		ID:          raw.ID,
		Kind:        raw.Kind,
		Title:       raw.Title,
		Body:        raw.Body,
		Tags:        raw.Tags,
		Payload:     payload,
		Archive:     raw.Archive,
		CreatedBy:   raw.CreatedBy,
		Controversy: raw.Controversy,
		Retracted:   raw.Retracted,
		RetractedAt: raw.RetractedAt,
		RetractedBy: raw.RetractedBy,
		CreatedAt:   raw.CreatedAt,
		UpdatedAt:   raw.UpdatedAt,
	}
	return nil
}

// Clone returns a copy that shares no mutable slices with n.
func (n *Node) Clone() *Node {
	c := *n
	if n.Tags != nil {
		c.Tags = append([]string(nil), n.Tags...)
	}
	if n.Archive != nil {
		a := *n.Archive
		c.Archive = &a
	}
	if n.RetractedAt != nil {
		t := *n.RetractedAt
		c.RetractedAt = &t
	}
	if cp, ok := n.Payload.(ConceptPayload); ok && cp.Aliases != nil {
		cp.Aliases = append([]string(nil), cp.Aliases...)
		c.Payload = cp
	}
	return &c
}

// SearchFields returns every text field searched for this node.
func (n *Node) SearchFields() []string {
	fields := []string{n.Title, n.Body}
	fields = append(fields, n.Tags...)
	if n.Payload != nil {
		fields = append(fields, n.Payload.SearchText()...)
	}
	return fields
}

// NormalizeTags lower-cases, trims, de-duplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
