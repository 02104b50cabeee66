package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store/memory"
	"github.com/google/uuid"
)

type traversalFixture struct {
	st               *memory.Store
	svc              *TraversalService
	r, a, b, c, d, z *domain.Node
}

// newTraversalFixture builds:
//
//	A -supports 1.0-> R -cites 0.5-> B -related 0.9-> C -related 0.3-> R
//	D -supports 0.8-> R, with D retracted; Z isolated.
func newTraversalFixture(t *testing.T) *traversalFixture {
	t.Helper()
	st := memory.New()
	who := trustedIdentity(t, st)
	f := &traversalFixture{
		st:  st,
		svc: NewTraversalService(st, domain.DefaultScoringPolicy(), testLogger()),
		r:   putNode(t, st, domain.KindClaim, "root"),
		a:   putNode(t, st, domain.KindText, "a"),
		b:   putNode(t, st, domain.KindText, "b"),
		c:   putNode(t, st, domain.KindConcept, "c"),
		d:   putNode(t, st, domain.KindText, "d"),
		z:   putNode(t, st, domain.KindAxiom, "z"),
	}
	putEdge(t, st, f.a.ID, f.r.ID, domain.RelationSupports, 1.0, who.PublicID)
	putEdge(t, st, f.r.ID, f.b.ID, domain.RelationCites, 0.5, who.PublicID)
	putEdge(t, st, f.b.ID, f.c.ID, domain.RelationRelated, 0.9, who.PublicID)
	putEdge(t, st, f.c.ID, f.r.ID, domain.RelationRelated, 0.3, who.PublicID)
	putEdge(t, st, f.d.ID, f.r.ID, domain.RelationSupports, 0.8, who.PublicID)
	if err := st.RetractNode(context.Background(), f.d.ID, who.PublicID, f.d.CreatedAt); err != nil {
		t.Fatal(err)
	}
	return f
}

func nodeIDs(nodes []*domain.Node) []uuid.UUID {
	ids := make([]uuid.UUID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func sameIDs(t *testing.T, got, want []uuid.UUID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d ids, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("id %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTraverse(t *testing.T) {
	f := newTraversalFixture(t)

	tests := []struct {
		name      string
		opts      domain.TraverseOptions
		wantNodes []*domain.Node
		wantEdges int
	}{
		{
			name:      "depth zero returns the root alone",
			opts:      domain.TraverseOptions{MaxDepth: 0},
			wantNodes: []*domain.Node{f.r},
			wantEdges: 0,
		},
		{
			name:      "one hop ordered by effective weight",
			opts:      domain.TraverseOptions{MaxDepth: 1},
			wantNodes: []*domain.Node{f.r, f.a, f.b, f.c},
			wantEdges: 3,
		},
		{
			name:      "cycles are not revisited",
			opts:      domain.TraverseOptions{MaxDepth: 4},
			wantNodes: []*domain.Node{f.r, f.a, f.b, f.c},
			wantEdges: 4,
		},
		{
			name:      "depth beyond the maximum is clamped",
			opts:      domain.TraverseOptions{MaxDepth: 50},
			wantNodes: []*domain.Node{f.r, f.a, f.b, f.c},
			wantEdges: 4,
		},
		{
			name:      "relation filter",
			opts:      domain.TraverseOptions{MaxDepth: 3, Relations: []domain.Relation{domain.RelationSupports}},
			wantNodes: []*domain.Node{f.r, f.a},
			wantEdges: 1,
		},
		{
			name:      "minimum weight",
			opts:      domain.TraverseOptions{MaxDepth: 3, MinWeight: 0.6},
			wantNodes: []*domain.Node{f.r, f.a},
			wantEdges: 1,
		},
		{
			name:      "outgoing only",
			opts:      domain.TraverseOptions{MaxDepth: 2, Direction: domain.DirectionOutgoing},
			wantNodes: []*domain.Node{f.r, f.b, f.c},
			wantEdges: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Traverse(context.Background(), f.r.ID, tt.opts)
			if err != nil {
				t.Fatalf("Traverse() error = %v", err)
			}
			sameIDs(t, nodeIDs(got.Nodes), nodeIDs(tt.wantNodes))
			if len(got.Edges) != tt.wantEdges {
				t.Errorf("got %d edges, want %d", len(got.Edges), tt.wantEdges)
			}
			if got.Edges == nil {
				t.Error("edges must be an empty slice, not nil")
			}
		})
	}
}

func TestTraverseEqualWeightsFollowCreationOrder(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	who := trustedIdentity(t, st)
	svc := NewTraversalService(st, domain.DefaultScoringPolicy(), testLogger())

	root := putNode(t, st, domain.KindClaim, "root")
	older := putNode(t, st, domain.KindText, "older")
	newer := putNode(t, st, domain.KindText, "newer")

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	// Inserted newest first, and the older edge carries the larger id, so
	// neither insertion order nor id order can produce the expected result.
	edges := []*domain.Edge{
		{
			ID:        uuid.MustParse("00000000-0000-0000-0000-000000000001"),
			SourceID:  newer.ID,
			TargetID:  root.ID,
			Relation:  domain.RelationSupports,
			Weight:    0.5,
			CreatedBy: who.PublicID,
			CreatedAt: base.Add(time.Minute),
		},
		{
			ID:        uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff"),
			SourceID:  older.ID,
			TargetID:  root.ID,
			Relation:  domain.RelationSupports,
			Weight:    0.5,
			CreatedBy: who.PublicID,
			CreatedAt: base,
		},
	}
	for _, e := range edges {
		if err := st.CreateEdge(ctx, e); err != nil {
			t.Fatalf("create edge: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		got, err := svc.Traverse(ctx, root.ID, domain.TraverseOptions{MaxDepth: 1})
		if err != nil {
			t.Fatalf("Traverse() error = %v", err)
		}
		sameIDs(t, nodeIDs(got.Nodes), []uuid.UUID{root.ID, older.ID, newer.ID})
		if len(got.Edges) != 2 || got.Edges[0].ID != edges[1].ID {
			t.Fatalf("edges not in creation order: %+v", got.Edges)
		}
	}
}

func TestTraverseMissingRoot(t *testing.T) {
	f := newTraversalFixture(t)
	_, err := f.svc.Traverse(context.Background(), uuid.New(), domain.TraverseOptions{MaxDepth: 2})
	if !errors.Is(err, domain.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestTraverseIsolatedNode(t *testing.T) {
	f := newTraversalFixture(t)
	got, err := f.svc.Traverse(context.Background(), f.z.ID, domain.TraverseOptions{MaxDepth: 3})
	if err != nil {
		t.Fatal(err)
	}
	sameIDs(t, nodeIDs(got.Nodes), []uuid.UUID{f.z.ID})
}

func TestShortestPathReflexive(t *testing.T) {
	f := newTraversalFixture(t)
	p, err := f.svc.ShortestPath(context.Background(), f.r.ID, f.r.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Found || p.Hops != 0 || len(p.Edges) != 0 {
		t.Fatalf("expected a zero length path, got %+v", p)
	}
	sameIDs(t, p.NodeIDs, []uuid.UUID{f.r.ID})
}

func TestShortestPathNotFound(t *testing.T) {
	f := newTraversalFixture(t)
	p, err := f.svc.ShortestPath(context.Background(), f.r.ID, f.z.ID, 0)
	if err != nil {
		t.Fatalf("a missing path is not an error, got %v", err)
	}
	if p.Found {
		t.Fatal("expected Found to be false")
	}
}

func TestShortestPathMissingEndpoint(t *testing.T) {
	f := newTraversalFixture(t)
	_, err := f.svc.ShortestPath(context.Background(), f.r.ID, uuid.New(), 0)
	if !errors.Is(err, domain.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestShortestPathSkipsRetractedNodes(t *testing.T) {
	f := newTraversalFixture(t)
	// A reaches C through R and B only; D is retracted.
	p, err := f.svc.ShortestPath(context.Background(), f.a.ID, f.c.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Found || p.Hops != 2 {
		t.Fatalf("expected a two hop path, got %+v", p)
	}
	sameIDs(t, p.NodeIDs, []uuid.UUID{f.a.ID, f.r.ID, f.c.ID})
}

func TestShortestPathPrefersHeavierEqualLengthPath(t *testing.T) {
	st := memory.New()
	who := trustedIdentity(t, st)
	svc := NewTraversalService(st, domain.DefaultScoringPolicy(), testLogger())

	s := putNode(t, st, domain.KindClaim, "s")
	x := putNode(t, st, domain.KindText, "x")
	y := putNode(t, st, domain.KindText, "y")
	tgt := putNode(t, st, domain.KindText, "t")

	putEdge(t, st, s.ID, x.ID, domain.RelationRelated, 0.2, who.PublicID)
	putEdge(t, st, x.ID, tgt.ID, domain.RelationRelated, 0.2, who.PublicID)
	putEdge(t, st, s.ID, y.ID, domain.RelationRelated, 0.9, who.PublicID)
	putEdge(t, st, y.ID, tgt.ID, domain.RelationRelated, 0.9, who.PublicID)

	p, err := svc.ShortestPath(context.Background(), s.ID, tgt.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	sameIDs(t, p.NodeIDs, []uuid.UUID{s.ID, y.ID, tgt.ID})
	if !approxEqual(p.TotalWeight, 1.8) {
		t.Errorf("total weight = %v, want 1.8", p.TotalWeight)
	}

	direct := putEdge(t, st, s.ID, tgt.ID, domain.RelationRelated, 0.1, who.PublicID)
	p, err = svc.ShortestPath(context.Background(), s.ID, tgt.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Hops != 1 || p.Edges[0].ID != direct.ID {
		t.Fatalf("fewer hops must win over weight, got %+v", p)
	}
}

func TestShortestPathHopBound(t *testing.T) {
	st := memory.New()
	who := trustedIdentity(t, st)
	svc := NewTraversalService(st, domain.DefaultScoringPolicy(), testLogger())

	chain := make([]*domain.Node, 4)
	for i := range chain {
		chain[i] = putNode(t, st, domain.KindText, "n")
		if i > 0 {
			putEdge(t, st, chain[i-1].ID, chain[i].ID, domain.RelationDerivesFrom, 1.0, who.PublicID)
		}
	}

	p, err := svc.ShortestPath(context.Background(), chain[0].ID, chain[3].ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if p.Found {
		t.Fatal("a three hop path must not be found within two hops")
	}

	p, err = svc.ShortestPath(context.Background(), chain[3].ID, chain[0].ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Found || p.Hops != 3 {
		t.Fatalf("edges are followed in both directions, got %+v", p)
	}
}
