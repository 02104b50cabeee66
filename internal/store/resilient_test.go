package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store"
	"github.com/ConflictingTheories/meme-citadel-sub000/internal/store/memory"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type netTimeout struct{}

func (netTimeout) Error() string   { return "i/o timeout" }
func (netTimeout) Timeout() bool   { return true }
func (netTimeout) Temporary() bool { return true }

// flakyStore fails the first n GetNode/CreateNode calls, or blocks until the
// context is done when hang is set.
type flakyStore struct {
	domain.Store
	failures int
	calls    int
	hang     bool
	err      error
}

func (f *flakyStore) GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	f.calls++
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.Store.GetNode(ctx, id)
}

func (f *flakyStore) CreateNode(ctx context.Context, n *domain.Node) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return f.Store.CreateNode(ctx, n)
}

func fastResilient(next domain.Store) *store.Resilient {
	r := store.NewResilient(next, zap.NewNop())
	r.Backoff = store.Backoff{Base: time.Millisecond, Max: 2 * time.Millisecond, Factor: 2}
	return r
}

func TestResilientRetriesTransientReads(t *testing.T) {
	mem := memory.New()
	n := &domain.Node{Kind: domain.KindClaim, Title: "x", Payload: domain.ClaimPayload{}}
	if err := mem.CreateNode(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	flaky := &flakyStore{Store: mem, failures: 2, err: netTimeout{}}
	r := fastResilient(flaky)

	got, err := r.GetNode(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got.ID != n.ID {
		t.Errorf("wrong node returned")
	}
	if flaky.calls != 3 {
		t.Errorf("expected 3 calls, got %d", flaky.calls)
	}
}

func TestResilientGivesUpAfterRetries(t *testing.T) {
	flaky := &flakyStore{Store: memory.New(), failures: 10, err: netTimeout{}}
	r := fastResilient(flaky)
	r.Retries = 2

	_, err := r.GetNode(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
	if flaky.calls != 3 {
		t.Errorf("expected 1 call + 2 retries, got %d", flaky.calls)
	}
}

func TestResilientDoesNotRetryNotFound(t *testing.T) {
	flaky := &flakyStore{Store: memory.New(), failures: 10, err: store.ErrNotFound}
	r := fastResilient(flaky)

	_, err := r.GetNode(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if flaky.calls != 1 {
		t.Errorf("expected a single call, got %d", flaky.calls)
	}
}

func TestResilientDoesNotRetryWrites(t *testing.T) {
	flaky := &flakyStore{Store: memory.New(), failures: 1, err: netTimeout{}}
	r := fastResilient(flaky)

	err := r.CreateNode(context.Background(), &domain.Node{Kind: domain.KindClaim, Title: "x"})
	if err == nil {
		t.Fatal("expected the write to fail")
	}
	if flaky.calls != 1 {
		t.Errorf("writes must not be retried, got %d calls", flaky.calls)
	}
}

func TestResilientTimeout(t *testing.T) {
	flaky := &flakyStore{Store: memory.New(), hang: true}
	r := fastResilient(flaky)
	r.Timeout = 10 * time.Millisecond

	_, err := r.GetNode(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if flaky.calls != 1 {
		t.Errorf("timeouts are not retried, got %d calls", flaky.calls)
	}
}

func TestBackoffNext(t *testing.T) {
	b := store.Backoff{Base: 50 * time.Millisecond, Max: time.Second, Factor: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 50 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{10, time.Second},
	}
	for _, tt := range tests {
		if got := b.Next(tt.attempt); got != tt.want {
			t.Errorf("Next(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	b.Jitter = 0.2
	for i := 0; i < 20; i++ {
		got := b.Next(1)
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±20%%", got)
		}
	}
}
