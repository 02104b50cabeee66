package service

import (
	"strings"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
)

// SignalClassifier flags anonymisation by matching the signature's network
// hints and user agent against known signal substrings.
type SignalClassifier struct {
	VPN   []string
	Tor   []string
	Proxy []string
}

var _ domain.AnonymizationClassifier = (*SignalClassifier)(nil)

func NewSignalClassifier(policy domain.TrustPolicy) *SignalClassifier {
	return &SignalClassifier{
		VPN:   lowerAll(policy.VPNSignals),
		Tor:   lowerAll(policy.TorSignals),
		Proxy: lowerAll(policy.ProxySignals),
	}
}

func (c *SignalClassifier) Classify(sig domain.Signature) domain.Classification {
	haystack := make([]string, 0, len(sig.NetworkHints)+1)
	for _, h := range sig.NetworkHints {
		haystack = append(haystack, strings.ToLower(h))
	}
	haystack = append(haystack, strings.ToLower(sig.UserAgent))

	return domain.Classification{
		VPN:   matchesAny(haystack, c.VPN),
		Tor:   matchesAny(haystack, c.Tor),
		Proxy: matchesAny(haystack, c.Proxy),
	}
}

func matchesAny(haystack, signals []string) bool {
	for _, s := range signals {
		if s == "" {
			continue
		}
		for _, h := range haystack {
			if strings.Contains(h, s) {
				return true
			}
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
