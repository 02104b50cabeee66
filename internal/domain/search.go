package domain

import (
	"sort"
	"strings"
	"unicode"
)

const (
	RankPhrase    = 3
	RankAllTokens = 2
	RankAnyToken  = 1
)

// Tokenize lower-cases the query and splits it on anything that is not a
// letter or digit. Duplicate tokens are dropped.
func Tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// MatchNode ranks n against a query. A zero rank means no match.
func MatchNode(n *Node, query string, tokens []string) (rank, matched int) {
	text := strings.ToLower(strings.Join(n.SearchFields(), " "))
	for _, t := range tokens {
		if strings.Contains(text, t) {
			matched++
		}
	}
	phrase := strings.ToLower(strings.TrimSpace(query))
	switch {
	case phrase != "" && strings.Contains(text, phrase):
		rank = RankPhrase
	case matched > 0 && matched == len(tokens):
		rank = RankAllTokens
	case matched > 0:
		rank = RankAnyToken
	}
	return rank, matched
}

// SortHits orders by rank, then matched tokens, then the most recently
// updated node.
func SortHits(hits []SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Rank != b.Rank {
			return a.Rank > b.Rank
		}
		if a.MatchedTokens != b.MatchedTokens {
			return a.MatchedTokens > b.MatchedTokens
		}
		return a.Node.UpdatedAt.After(b.Node.UpdatedAt)
	})
}
