package service

import (
	"math"
	"strings"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
)

// ComputeTrust derives an identity's trust score from its flags, age,
// contributions and verification accuracy. The result is always in
// [MinTrustScore, MaxTrustScore].
func ComputeTrust(i *domain.Identity, now time.Time, p domain.TrustPolicy) float64 {
	score := domain.BaselineTrustScore

	if i.Flags.VPNSuspected {
		score -= p.VPNPenalty
	}
	if i.Flags.TorSuspected {
		score -= p.TorPenalty
	}
	if i.Flags.ProxySuspected {
		score -= p.ProxyPenalty
	}
	if i.Flags.GeoMismatch {
		score -= p.GeoMismatchPenalty
	}

	if !i.CreatedAt.IsZero() && now.After(i.CreatedAt) {
		days := now.Sub(i.CreatedAt).Hours() / 24
		score += math.Min(days*p.AgeBonusPerDay, p.AgeBonusCap)
	}

	score += math.Min(float64(i.ContributionCount)*p.ContributionBonus, p.ContributionBonusCap)
	score += accuracyBonus(i, p)

	return math.Max(domain.MinTrustScore, math.Min(domain.MaxTrustScore, score))
}

func accuracyBonus(i *domain.Identity, p domain.TrustPolicy) float64 {
	decided := i.DecidedVerificationCount
	if decided < p.AccuracyMinVerifications || decided == 0 {
		return 0
	}
	rate := float64(i.AccurateVerificationCount) / float64(decided)
	bonus := 0.0
	if rate >= p.AccuracyTier1 {
		bonus += p.AccuracyTier1Bonus
	}
	if rate >= p.AccuracyTier2 {
		bonus += p.AccuracyTier2Bonus
	}
	return bonus
}

// GeoMismatch reports whether the declared region disagrees with the region
// of the network address. Both must be present.
func GeoMismatch(sig domain.Signature) bool {
	declared := strings.TrimSpace(sig.DeclaredRegion)
	actual := strings.TrimSpace(sig.IPRegion)
	if declared == "" || actual == "" {
		return false
	}
	return !strings.EqualFold(declared, actual)
}

// CompareSignatures returns the fraction of comparison fields that are equal
// in both signatures. Fields missing on either side never match.
func CompareSignatures(a, b domain.Signature) float64 {
	fa, fb := a.ComparisonFields(), b.ComparisonFields()
	matches := 0
	for k := range fa {
		if fa[k] != "" && fa[k] == fb[k] {
			matches++
		}
	}
	return float64(matches) / float64(len(fa))
}

func IsDuplicate(similarity, threshold float64) bool {
	return similarity > threshold
}
