package domain

type TrustTier string

const (
	TrustTierRestricted TrustTier = "restricted"
	TrustTierLimited    TrustTier = "limited"
	TrustTierStandard   TrustTier = "standard"
	TrustTierTrusted    TrustTier = "trusted"
)

const (
	MinTrustScore      = 0.0
	MaxTrustScore      = 100.0
	BaselineTrustScore = 100.0
)

func TrustTierFor(trust float64) TrustTier {
	switch {
	case trust >= 85:
		return TrustTierTrusted
	case trust >= 60:
		return TrustTierStandard
	case trust >= 30:
		return TrustTierLimited
	default:
		return TrustTierRestricted
	}
}

// TierLimits are the write allowances and edge weight ceiling of a tier.
type TierLimits struct {
	Tier          TrustTier `json:"tier"`
	PerHour       int       `json:"per_hour"`
	PerDay        int       `json:"per_day"`
	WeightCeiling float64   `json:"weight_ceiling"`
}

var TierLimitTable = map[TrustTier]TierLimits{
	TrustTierRestricted: {Tier: TrustTierRestricted, PerHour: 2, PerDay: 10, WeightCeiling: 0.5},
	TrustTierLimited:    {Tier: TrustTierLimited, PerHour: 5, PerDay: 30, WeightCeiling: 0.7},
	TrustTierStandard:   {Tier: TrustTierStandard, PerHour: 20, PerDay: 100, WeightCeiling: 0.9},
	TrustTierTrusted:    {Tier: TrustTierTrusted, PerHour: 60, PerDay: 500, WeightCeiling: 1.0},
}

func GetTierLimits(tier TrustTier) TierLimits {
	if l, ok := TierLimitTable[tier]; ok {
		return l
	}
	return TierLimitTable[TrustTierRestricted]
}

func LimitsForTrust(trust float64) TierLimits {
	return GetTierLimits(TrustTierFor(trust))
}

func AllTrustTiers() []TrustTier {
	return []TrustTier{TrustTierRestricted, TrustTierLimited, TrustTierStandard, TrustTierTrusted}
}

// CapWeight applies the tier ceiling to a requested edge weight. A nil
// request yields the ceiling itself.
func CapWeight(requested *float64, trust float64) (float64, error) {
	ceiling := LimitsForTrust(trust).WeightCeiling
	if requested == nil {
		return ceiling, nil
	}
	w := *requested
	if w < 0 || w > 1 {
		return 0, ErrInvalidWeight
	}
	if w > ceiling {
		return ceiling, nil
	}
	return w, nil
}

// TrustPolicy holds the penalties and bonuses of the trust computation.
type TrustPolicy struct {
	VPNPenalty         float64 `yaml:"vpn_penalty"`
	TorPenalty         float64 `yaml:"tor_penalty"`
	ProxyPenalty       float64 `yaml:"proxy_penalty"`
	GeoMismatchPenalty float64 `yaml:"geo_mismatch_penalty"`

	AgeBonusPerDay           float64 `yaml:"age_bonus_per_day"`
	AgeBonusCap              float64 `yaml:"age_bonus_cap"`
	ContributionBonus        float64 `yaml:"contribution_bonus"`
	ContributionBonusCap     float64 `yaml:"contribution_bonus_cap"`
	AccuracyMinVerifications int     `yaml:"accuracy_min_verifications"`
	AccuracyTier1            float64 `yaml:"accuracy_tier1"`
	AccuracyTier1Bonus       float64 `yaml:"accuracy_tier1_bonus"`
	AccuracyTier2            float64 `yaml:"accuracy_tier2"`
	AccuracyTier2Bonus       float64 `yaml:"accuracy_tier2_bonus"`

	DuplicateThreshold  float64 `yaml:"duplicate_threshold"`
	DuplicateCandidates int     `yaml:"duplicate_candidates"`

	VPNSignals   []string `yaml:"vpn_signals"`
	TorSignals   []string `yaml:"tor_signals"`
	ProxySignals []string `yaml:"proxy_signals"`
}

func DefaultTrustPolicy() TrustPolicy {
	return TrustPolicy{
		VPNPenalty:               20,
		TorPenalty:               40,
		ProxyPenalty:             15,
		GeoMismatchPenalty:       10,
		AgeBonusPerDay:           0.5,
		AgeBonusCap:              10,
		ContributionBonus:        0.25,
		ContributionBonusCap:     10,
		AccuracyMinVerifications: 5,
		AccuracyTier1:            0.8,
		AccuracyTier1Bonus:       5,
		AccuracyTier2:            0.9,
		AccuracyTier2Bonus:       5,
		DuplicateThreshold:       0.7,
		DuplicateCandidates:      50,
		VPNSignals:               []string{"vpn", "nordvpn", "expressvpn", "mullvad", "protonvpn", "wireguard"},
		TorSignals:               []string{"tor-exit", "torproject", "tor browser", ".onion"},
		ProxySignals:             []string{"proxy", "squid", "forwarded"},
	}
}
