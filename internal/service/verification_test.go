package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/google/uuid"
)

func TestCastVerificationRejectsSecondVote(t *testing.T) {
	ctx := context.Background()
	eng, st := newTestEngine(t)
	author := trustedIdentity(t, st)
	voter := trustedIdentity(t, st)

	claimID, err := eng.CreateClaim(ctx, ClaimInput{Title: "claim"}, author.PublicID)
	if err != nil {
		t.Fatal(err)
	}
	att, err := eng.AttachEvidence(ctx, claimID, EvidenceInput{Kind: domain.KindText, Title: "report"}, domain.RelationSupports, author.PublicID)
	if err != nil {
		t.Fatal(err)
	}

	first, err := eng.CastVerification(ctx, att.EdgeID, true, voter.PublicID)
	if err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if first.Agree != 1 || !approxEqual(first.AgreeWeight, 1.0) {
		t.Fatalf("unexpected tally after first vote: %+v", first)
	}

	_, err = eng.CastVerification(ctx, att.EdgeID, false, voter.PublicID)
	if !errors.Is(err, domain.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}

	edge, err := st.GetEdge(ctx, att.EdgeID)
	if err != nil {
		t.Fatal(err)
	}
	if edge.Tally != first {
		t.Errorf("tally changed by rejected vote: %+v != %+v", edge.Tally, first)
	}
	if !edge.HasVerifier(voter.PublicID) {
		t.Error("voter should be recorded as a verifier")
	}

	got, err := st.GetIdentity(ctx, voter.PublicID)
	if err != nil {
		t.Fatal(err)
	}
	if got.VerificationCount != 1 || got.Reputation != domain.ReputationPerVote {
		t.Errorf("expected one verification credited, got count=%d reputation=%d", got.VerificationCount, got.Reputation)
	}
}

func TestCastVerificationWeights(t *testing.T) {
	ctx := context.Background()
	eng, st := newTestEngine(t)
	author := trustedIdentity(t, st)

	claim := putNode(t, st, domain.KindClaim, "claim")
	src := putNode(t, st, domain.KindText, "src")
	edge := putEdge(t, st, src.ID, claim.ID, domain.RelationSupports, 1.0, author.PublicID)

	restricted := restrictedIdentity(t, st)
	dup := putIdentity(t, st, 100, domain.IdentityFlags{PossibleDuplicate: true})

	tally, err := eng.CastVerification(ctx, edge.ID, true, restricted.PublicID)
	if err != nil {
		t.Fatal(err)
	}
	// trust 15 -> 0.2 + 0.8*0.15
	if !approxEqual(tally.AgreeWeight, 0.32) {
		t.Errorf("restricted vote weight = %v, want 0.32", tally.AgreeWeight)
	}

	tally, err = eng.CastVerification(ctx, edge.ID, false, dup.PublicID)
	if err != nil {
		t.Fatal(err)
	}
	if !approxEqual(tally.DisagreeWeight, 0.5) {
		t.Errorf("duplicate vote weight = %v, want 0.5", tally.DisagreeWeight)
	}
}

func TestCastVerificationErrors(t *testing.T) {
	ctx := context.Background()
	eng, st := newTestEngine(t)
	author := trustedIdentity(t, st)
	claim := putNode(t, st, domain.KindClaim, "claim")
	src := putNode(t, st, domain.KindText, "src")
	edge := putEdge(t, st, src.ID, claim.ID, domain.RelationSupports, 1.0, author.PublicID)

	if _, err := eng.CastVerification(ctx, edge.ID, true, "unknown"); !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Errorf("unknown identity: got %v", err)
	}
	if _, err := eng.CastVerification(ctx, uuid.New(), true, author.PublicID); !errors.Is(err, domain.ErrEdgeNotFound) {
		t.Errorf("unknown edge: got %v", err)
	}

	if err := eng.Graph.RetractEdge(ctx, edge.ID, author.PublicID); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.CastVerification(ctx, edge.ID, true, author.PublicID); !errors.Is(err, domain.ErrRetracted) {
		t.Errorf("retracted edge: got %v", err)
	}
}

func TestConcurrentVerificationsFromOneIdentity(t *testing.T) {
	ctx := context.Background()
	eng, st := newTestEngine(t)
	author := trustedIdentity(t, st)
	voter := trustedIdentity(t, st)
	claim := putNode(t, st, domain.KindClaim, "claim")
	src := putNode(t, st, domain.KindText, "src")
	edge := putEdge(t, st, src.ID, claim.ID, domain.RelationSupports, 1.0, author.PublicID)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.CastVerification(ctx, edge.ID, true, voter.PublicID); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly one accepted vote, got %d", accepted)
	}
	got, err := st.GetEdge(ctx, edge.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tally.Agree != 1 {
		t.Errorf("expected agree=1, got %d", got.Tally.Agree)
	}
}
