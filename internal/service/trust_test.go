package service

import (
	"math"
	"testing"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
)

func fullSignature() domain.Signature {
	return domain.Signature{
		UserAgent:           "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0",
		Platform:            "Linux x86_64",
		Language:            "en-CA",
		Timezone:            "America/Toronto",
		ScreenResolution:    "2560x1440",
		ColorDepth:          24,
		HardwareConcurrency: 8,
		DeviceMemory:        16,
		WebGLVendor:         "Mesa",
		WebGLRenderer:       "AMD Radeon",
		CanvasHash:          "c4nv4s",
		AudioHash:           "4ud10",
		IPAddress:           "203.0.113.7",
		GeoHash:             "dpz8",
		RTTBucket:           2,
	}
}

func TestComputeTrust(t *testing.T) {
	p := domain.DefaultTrustPolicy()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		identity domain.Identity
		want     float64
	}{
		{
			name:     "clean new identity",
			identity: domain.Identity{CreatedAt: now},
			want:     100,
		},
		{
			name:     "vpn",
			identity: domain.Identity{CreatedAt: now, Flags: domain.IdentityFlags{VPNSuspected: true}},
			want:     80,
		},
		{
			name: "every penalty",
			identity: domain.Identity{CreatedAt: now, Flags: domain.IdentityFlags{
				VPNSuspected: true, TorSuspected: true, ProxySuspected: true, GeoMismatch: true,
			}},
			want: 15,
		},
		{
			name:     "tor with age bonus",
			identity: domain.Identity{CreatedAt: now.AddDate(0, 0, -4), Flags: domain.IdentityFlags{TorSuspected: true}},
			want:     62,
		},
		{
			name:     "age bonus is capped",
			identity: domain.Identity{CreatedAt: now.AddDate(-1, 0, 0), Flags: domain.IdentityFlags{TorSuspected: true}},
			want:     70,
		},
		{
			name:     "contribution bonus is capped",
			identity: domain.Identity{CreatedAt: now, ContributionCount: 400, Flags: domain.IdentityFlags{TorSuspected: true}},
			want:     70,
		},
		{
			name: "accuracy above ninety percent",
			identity: domain.Identity{
				CreatedAt:                 now,
				Flags:                     domain.IdentityFlags{TorSuspected: true},
				DecidedVerificationCount:  10,
				AccurateVerificationCount: 9,
			},
			want: 70,
		},
		{
			name: "accuracy between eighty and ninety percent",
			identity: domain.Identity{
				CreatedAt:                 now,
				Flags:                     domain.IdentityFlags{TorSuspected: true},
				DecidedVerificationCount:  10,
				AccurateVerificationCount: 8,
			},
			want: 65,
		},
		{
			name: "too few decided verifications",
			identity: domain.Identity{
				CreatedAt:                 now,
				Flags:                     domain.IdentityFlags{TorSuspected: true},
				DecidedVerificationCount:  4,
				AccurateVerificationCount: 4,
			},
			want: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTrust(&tt.identity, now, p)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ComputeTrust() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeTrustStaysInRange(t *testing.T) {
	p := domain.DefaultTrustPolicy()
	p.TorPenalty = 500
	i := &domain.Identity{Flags: domain.IdentityFlags{TorSuspected: true}}
	if got := ComputeTrust(i, time.Now(), p); got != domain.MinTrustScore {
		t.Errorf("expected clamp to %v, got %v", domain.MinTrustScore, got)
	}
}

func TestGeoMismatch(t *testing.T) {
	tests := []struct {
		declared, actual string
		want             bool
	}{
		{"CA", "CA", false},
		{"ca", "CA", false},
		{"CA", "DE", true},
		{"", "DE", false},
		{"CA", "", false},
	}
	for _, tt := range tests {
		sig := domain.Signature{DeclaredRegion: tt.declared, IPRegion: tt.actual}
		if got := GeoMismatch(sig); got != tt.want {
			t.Errorf("GeoMismatch(%q, %q) = %v, want %v", tt.declared, tt.actual, got, tt.want)
		}
	}
}

func TestCompareSignatures(t *testing.T) {
	a := fullSignature()

	if got := CompareSignatures(a, a); got != 1.0 {
		t.Errorf("identical signatures: got %v, want 1.0", got)
	}

	b := a
	b.WebGLVendor = "NVIDIA"
	b.WebGLRenderer = "GeForce"
	b.IPAddress = "198.51.100.1"
	if got := CompareSignatures(a, b); math.Abs(got-0.7) > 1e-9 {
		t.Errorf("three differing fields: got %v, want 0.7", got)
	}
	if IsDuplicate(CompareSignatures(a, b), 0.7) {
		t.Error("0.7 similarity must not count as a duplicate")
	}

	b.IPAddress = a.IPAddress
	if !IsDuplicate(CompareSignatures(a, b), 0.7) {
		t.Error("0.8 similarity should count as a duplicate")
	}

	if got := CompareSignatures(domain.Signature{}, domain.Signature{}); got != 0 {
		t.Errorf("empty signatures should not match, got %v", got)
	}
}

func TestSignalClassifier(t *testing.T) {
	c := NewSignalClassifier(domain.DefaultTrustPolicy())

	tests := []struct {
		name string
		sig  domain.Signature
		want domain.Classification
	}{
		{"clean", fullSignature(), domain.Classification{}},
		{"vpn hint", domain.Signature{NetworkHints: []string{"Mullvad WireGuard"}}, domain.Classification{VPN: true}},
		{"tor user agent", domain.Signature{UserAgent: "Mozilla/5.0 Tor Browser/13.0"}, domain.Classification{Tor: true}},
		{"proxy header", domain.Signature{NetworkHints: []string{"X-Forwarded-For present"}}, domain.Classification{Proxy: true}},
		{"tor substring does not misfire", domain.Signature{UserAgent: "Mozilla/5.0 (Editor Build)"}, domain.Classification{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.sig); got != tt.want {
				t.Errorf("Classify() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
