package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Signature is the set of browser and network attributes an identity is
// derived from.
type Signature struct {
	UserAgent           string `json:"user_agent"`
	Platform            string `json:"platform"`
	Language            string `json:"language"`
	Timezone            string `json:"timezone"`
	ScreenResolution    string `json:"screen_resolution"`
	ColorDepth          int    `json:"color_depth"`
	HardwareConcurrency int    `json:"hardware_concurrency"`
	DeviceMemory        int    `json:"device_memory"`
	WebGLVendor         string `json:"webgl_vendor"`
	WebGLRenderer       string `json:"webgl_renderer"`
	CanvasHash          string `json:"canvas_hash"`
	AudioHash           string `json:"audio_hash"`

	IPAddress      string   `json:"ip_address"`
	IPRegion       string   `json:"ip_region,omitempty"`
	DeclaredRegion string   `json:"declared_region,omitempty"`
	GeoHash        string   `json:"geo_hash,omitempty"`
	RTTBucket      int      `json:"rtt_bucket,omitempty"`
	NetworkHints   []string `json:"network_hints,omitempty"`
}

// MinSignatureAttributes is the number of distinguishing attributes a
// signature must carry to derive an identity.
const MinSignatureAttributes = 5

// distinguishing returns the attributes counted towards completeness, in a
// fixed order.
func (s Signature) distinguishing() []string {
	return []string{
		s.UserAgent,
		s.Platform,
		s.Language,
		s.Timezone,
		s.ScreenResolution,
		intAttr(s.ColorDepth),
		intAttr(s.HardwareConcurrency),
		intAttr(s.DeviceMemory),
		s.WebGLVendor,
		s.WebGLRenderer,
		s.CanvasHash,
		s.AudioHash,
	}
}

func intAttr(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// AttributeCount returns the number of non-empty distinguishing attributes.
func (s Signature) AttributeCount() int {
	n := 0
	for _, a := range s.distinguishing() {
		if strings.TrimSpace(a) != "" {
			n++
		}
	}
	return n
}

func (s Signature) Complete() bool {
	return s.AttributeCount() >= MinSignatureAttributes
}

// PublicID hashes the stable attributes with the RTT bucket and geo hash.
// The network address is not part of the hash.
func (s Signature) PublicID() string {
	h := sha256.New()
	for _, a := range s.distinguishing() {
		h.Write([]byte(a))
		h.Write([]byte{0x1f})
	}
	h.Write([]byte(strconv.Itoa(s.RTTBucket)))
	h.Write([]byte{0x1f})
	h.Write([]byte(s.GeoHash))
	return hex.EncodeToString(h.Sum(nil))
}

// ComparisonFields are the attributes compared when looking for duplicates.
// Missing numeric attributes are reported as empty strings.
func (s Signature) ComparisonFields() [10]string {
	return [10]string{
		s.IPAddress,
		s.ScreenResolution,
		intAttr(s.ColorDepth),
		s.Platform,
		s.Language,
		s.Timezone,
		intAttr(s.HardwareConcurrency),
		intAttr(s.DeviceMemory),
		s.WebGLVendor,
		s.WebGLRenderer,
	}
}

type IdentityFlags struct {
	VPNSuspected      bool `json:"vpn_suspected"`
	TorSuspected      bool `json:"tor_suspected"`
	ProxySuspected    bool `json:"proxy_suspected"`
	GeoMismatch       bool `json:"geo_mismatch"`
	PossibleDuplicate bool `json:"possible_duplicate"`
}

type Identity struct {
	PublicID                  string        `json:"public_id"`
	TrustScore                float64       `json:"trust_score"`
	Flags                     IdentityFlags `json:"flags"`
	DuplicateOf               string        `json:"duplicate_of,omitempty"`
	Reputation                int           `json:"reputation"`
	ContributionCount         int           `json:"contribution_count"`
	VerificationCount         int           `json:"verification_count"`
	AccurateVerificationCount int           `json:"accurate_verification_count"`
	DecidedVerificationCount  int           `json:"decided_verification_count"`
	Signature                 Signature     `json:"-"`
	CreatedAt                 time.Time     `json:"created_at"`
	LastSeenAt                time.Time     `json:"last_seen_at"`
}

func (i *Identity) Clone() *Identity {
	c := *i
	if i.Signature.NetworkHints != nil {
		c.Signature.NetworkHints = append([]string(nil), i.Signature.NetworkHints...)
	}
	return &c
}

// Tier returns the trust tier for the identity's current score.
func (i *Identity) Tier() TrustTier {
	return TrustTierFor(i.TrustScore)
}

// ReputationDelta is the reputation earned per contribution type.
const (
	ReputationPerNode = 1
	ReputationPerEdge = 2
	ReputationPerVote = 1
)

// Classification is the anonymisation verdict for a signature.
type Classification struct {
	VPN   bool
	Tor   bool
	Proxy bool
}
