package service

import (
	"context"
	"testing"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/cache"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store/memory"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	eng := NewEngine(st, EngineOptions{
		TrustPolicy:   domain.DefaultTrustPolicy(),
		ScoringPolicy: domain.DefaultScoringPolicy(),
		Cache:         cache.NewMemoryCache(time.Minute, time.Minute),
	}, testLogger())
	return eng, st
}

// putIdentity stores an identity with a fixed trust score, bypassing
// derivation.
func putIdentity(t *testing.T, st domain.IdentityStore, trust float64, flags domain.IdentityFlags) *domain.Identity {
	t.Helper()
	i := &domain.Identity{
		PublicID:   uuid.NewString(),
		TrustScore: trust,
		Flags:      flags,
		CreatedAt:  time.Now().UTC(),
		LastSeenAt: time.Now().UTC(),
	}
	if err := st.CreateIdentity(context.Background(), i); err != nil {
		t.Fatalf("create identity: %v", err)
	}
	return i
}

// trustedIdentity stores an identity whose recomputed trust stays at 100.
func trustedIdentity(t *testing.T, st domain.IdentityStore) *domain.Identity {
	return putIdentity(t, st, 100, domain.IdentityFlags{})
}

// restrictedIdentity stores an identity whose recomputed trust stays at 15.
func restrictedIdentity(t *testing.T, st domain.IdentityStore) *domain.Identity {
	return putIdentity(t, st, 15, domain.IdentityFlags{
		VPNSuspected: true, TorSuspected: true, ProxySuspected: true, GeoMismatch: true,
	})
}

func putNode(t *testing.T, st domain.NodeStore, kind domain.NodeKind, title string) *domain.Node {
	t.Helper()
	p, err := domain.EmptyPayload(kind)
	if err != nil {
		t.Fatal(err)
	}
	if kind == domain.KindPerson {
		p = domain.PersonPayload{Name: title}
	}
	n := &domain.Node{Kind: kind, Title: title, Payload: p}
	if err := st.CreateNode(context.Background(), n); err != nil {
		t.Fatalf("create node: %v", err)
	}
	return n
}

func putEdge(t *testing.T, st domain.EdgeStore, src, dst uuid.UUID, rel domain.Relation, weight float64, creator string) *domain.Edge {
	t.Helper()
	e := &domain.Edge{SourceID: src, TargetID: dst, Relation: rel, Weight: weight, CreatedBy: creator}
	if err := st.CreateEdge(context.Background(), e); err != nil {
		t.Fatalf("create edge: %v", err)
	}
	return e
}

func floatPtr(f float64) *float64 {
	return &f
}

func approxEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
