package store

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	DefaultOperationTimeout = 5 * time.Second
	DefaultReadRetries      = 3
)

// Resilient wraps a domain.Store so that every call runs under a
// per-operation timeout and reads retry transient failures. Writes are never
// retried.
type Resilient struct {
	next    domain.Store
	logger  *zap.Logger
	Timeout time.Duration
	Retries int
	Backoff Backoff
}

var _ domain.Store = (*Resilient)(nil)

func NewResilient(next domain.Store, logger *zap.Logger) *Resilient {
	return &Resilient{
		next:    next,
		logger:  logger,
		Timeout: DefaultOperationTimeout,
		Retries: DefaultReadRetries,
		Backoff: DefaultBackoff(),
	}
}

// IsTransient reports whether a failed read may succeed when retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrReference) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected, admin/crash shutdown
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "57P02", "57P03":
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (r *Resilient) mapErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return domain.ErrTimeout
	}
	return err
}

func (r *Resilient) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	err := fn(ctx)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		r.logger.Warn("store write timed out", zap.String("op", op), zap.Duration("timeout", r.Timeout))
		return domain.ErrTimeout
	}
	return r.mapErr(err)
}

func (r *Resilient) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, r.Timeout)
		err = fn(opCtx)
		timedOut := opCtx.Err() == context.DeadlineExceeded
		cancel()

		if err == nil {
			return nil
		}
		if timedOut {
			r.logger.Warn("store read timed out", zap.String("op", op), zap.Duration("timeout", r.Timeout))
			return domain.ErrTimeout
		}
		if attempt >= r.Retries || !IsTransient(err) {
			return r.mapErr(err)
		}

		wait := r.Backoff.Next(attempt)
		r.logger.Debug("retrying store read",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return r.mapErr(ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (r *Resilient) CreateNode(ctx context.Context, n *domain.Node) error {
	return r.write(ctx, "create_node", func(ctx context.Context) error {
		return r.next.CreateNode(ctx, n)
	})
}

func (r *Resilient) UpdateNode(ctx context.Context, n *domain.Node) error {
	return r.write(ctx, "update_node", func(ctx context.Context) error {
		return r.next.UpdateNode(ctx, n)
	})
}

func (r *Resilient) GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	var out *domain.Node
	err := r.read(ctx, "get_node", func(ctx context.Context) error {
		var err error
		out, err = r.next.GetNode(ctx, id)
		return err
	})
	return out, err
}

func (r *Resilient) RetractNode(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	return r.write(ctx, "retract_node", func(ctx context.Context) error {
		return r.next.RetractNode(ctx, id, by, at)
	})
}

func (r *Resilient) ListNodesByKind(ctx context.Context, kind domain.NodeKind, page domain.Page) ([]*domain.Node, error) {
	var out []*domain.Node
	err := r.read(ctx, "list_nodes", func(ctx context.Context) error {
		var err error
		out, err = r.next.ListNodesByKind(ctx, kind, page)
		return err
	})
	return out, err
}

func (r *Resilient) SearchNodes(ctx context.Context, query string, tokens []string, limit int) ([]domain.SearchHit, error) {
	var out []domain.SearchHit
	err := r.read(ctx, "search_nodes", func(ctx context.Context) error {
		var err error
		out, err = r.next.SearchNodes(ctx, query, tokens, limit)
		return err
	})
	return out, err
}

func (r *Resilient) CreateEdge(ctx context.Context, e *domain.Edge) error {
	return r.write(ctx, "create_edge", func(ctx context.Context) error {
		return r.next.CreateEdge(ctx, e)
	})
}

func (r *Resilient) GetEdge(ctx context.Context, id uuid.UUID) (*domain.Edge, error) {
	var out *domain.Edge
	err := r.read(ctx, "get_edge", func(ctx context.Context) error {
		var err error
		out, err = r.next.GetEdge(ctx, id)
		return err
	})
	return out, err
}

func (r *Resilient) RetractEdge(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	return r.write(ctx, "retract_edge", func(ctx context.Context) error {
		return r.next.RetractEdge(ctx, id, by, at)
	})
}

func (r *Resilient) GetNeighbors(ctx context.Context, nodeID uuid.UUID, direction domain.Direction, relations []domain.Relation) ([]*domain.Edge, error) {
	var out []*domain.Edge
	err := r.read(ctx, "get_neighbors", func(ctx context.Context) error {
		var err error
		out, err = r.next.GetNeighbors(ctx, nodeID, direction, relations)
		return err
	})
	return out, err
}

func (r *Resilient) ApplyVote(ctx context.Context, v *domain.Vote) (domain.Tally, error) {
	var out domain.Tally
	err := r.write(ctx, "apply_vote", func(ctx context.Context) error {
		var err error
		out, err = r.next.ApplyVote(ctx, v)
		return err
	})
	return out, err
}

func (r *Resilient) ListVotesByIdentity(ctx context.Context, identityID string) ([]domain.Vote, error) {
	var out []domain.Vote
	err := r.read(ctx, "list_votes", func(ctx context.Context) error {
		var err error
		out, err = r.next.ListVotesByIdentity(ctx, identityID)
		return err
	})
	return out, err
}

func (r *Resilient) CreateIdentity(ctx context.Context, i *domain.Identity) error {
	return r.write(ctx, "create_identity", func(ctx context.Context) error {
		return r.next.CreateIdentity(ctx, i)
	})
}

func (r *Resilient) GetIdentity(ctx context.Context, publicID string) (*domain.Identity, error) {
	var out *domain.Identity
	err := r.read(ctx, "get_identity", func(ctx context.Context) error {
		var err error
		out, err = r.next.GetIdentity(ctx, publicID)
		return err
	})
	return out, err
}

func (r *Resilient) UpdateIdentity(ctx context.Context, i *domain.Identity) error {
	return r.write(ctx, "update_identity", func(ctx context.Context) error {
		return r.next.UpdateIdentity(ctx, i)
	})
}

func (r *Resilient) ListIdentities(ctx context.Context, page domain.Page) ([]*domain.Identity, error) {
	var out []*domain.Identity
	err := r.read(ctx, "list_identities", func(ctx context.Context) error {
		var err error
		out, err = r.next.ListIdentities(ctx, page)
		return err
	})
	return out, err
}

func (r *Resilient) FindDuplicateCandidates(ctx context.Context, ipAddress, geoHash, exclude string, limit int) ([]*domain.Identity, error) {
	var out []*domain.Identity
	err := r.read(ctx, "find_duplicates", func(ctx context.Context) error {
		var err error
		out, err = r.next.FindDuplicateCandidates(ctx, ipAddress, geoHash, exclude, limit)
		return err
	})
	return out, err
}

func (r *Resilient) IncrementCounters(ctx context.Context, publicID string, delta domain.CounterDelta) error {
	return r.write(ctx, "increment_counters", func(ctx context.Context) error {
		return r.next.IncrementCounters(ctx, publicID, delta)
	})
}

func (r *Resilient) Stats(ctx context.Context) (*domain.GraphStats, error) {
	var out *domain.GraphStats
	err := r.read(ctx, "stats", func(ctx context.Context) error {
		var err error
		out, err = r.next.Stats(ctx)
		return err
	})
	return out, err
}
