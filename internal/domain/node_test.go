package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeUnmarshalDispatchesOnKind(t *testing.T) {
	raw := `{
		"id": "6f1c1a3e-3b65-4c3a-8d8a-0a7b0c1d2e3f",
		"kind": "statistic",
		"title": "Unemployment rate",
		"payload": {"value": 3.7, "unit": "%", "source": "BLS"}
	}`

	var n Node
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	stat, ok := n.Payload.(StatisticPayload)
	require.True(t, ok, "expected StatisticPayload, got %T", n.Payload)
	assert.Equal(t, 3.7, stat.Value)
	assert.Equal(t, "BLS", stat.Source)
}

func TestNodeUnmarshalUnknownKind(t *testing.T) {
	var n Node
	err := json.Unmarshal([]byte(`{"kind":"meme","payload":{}}`), &n)
	assert.True(t, errors.Is(err, ErrInvalidKind))
}

func TestNodeMarshalKeepsPayloadShape(t *testing.T) {
	n := Node{Kind: KindPerson, Title: "Ada", Payload: PersonPayload{Name: "Ada Lovelace", Role: "analyst"}}
	data, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded Node
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, n.Payload, decoded.Payload)
}

func TestValidatePayload(t *testing.T) {
	start := time.Date(1969, 7, 20, 20, 17, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	tests := []struct {
		name    string
		payload Payload
		wantErr bool
	}{
		{"event ok", EventPayload{Start: start, Precision: PrecisionMinute}, false},
		{"event missing start", EventPayload{Precision: PrecisionDay}, true},
		{"event end before start", EventPayload{Start: start, End: &before, Precision: PrecisionDay}, true},
		{"event bad precision", EventPayload{Start: start, Precision: "week"}, true},
		{"person without name", PersonPayload{Role: "x"}, true},
		{"claim always ok", ClaimPayload{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("expected ErrInvalidPayload, got %v", err)
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"Economy", " economy", "", "Labor", "labor "})
	assert.Equal(t, []string{"economy", "labor"}, got)
	assert.Nil(t, NormalizeTags(nil))
}

func TestCloneIsIndependent(t *testing.T) {
	n := &Node{Tags: []string{"a"}, Payload: ConceptPayload{Aliases: []string{"x"}}}
	c := n.Clone()
	c.Tags[0] = "b"
	c.Payload.(ConceptPayload).Aliases[0] = "y"

	assert.Equal(t, "a", n.Tags[0])
	assert.Equal(t, "x", n.Payload.(ConceptPayload).Aliases[0])
}

func TestMatchNode(t *testing.T) {
	n := &Node{Title: "Minimum wage increase", Body: "Effects on employment", Payload: ClaimPayload{}}

	tests := []struct {
		query   string
		rank    int
		matched int
	}{
		{"minimum wage", RankPhrase, 2},
		{"wage employment", RankAllTokens, 2},
		{"wage inflation", RankAnyToken, 1},
		{"inflation", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rank, matched := MatchNode(n, tt.query, Tokenize(tt.query))
			assert.Equal(t, tt.rank, rank)
			assert.Equal(t, tt.matched, matched)
		})
	}
}
