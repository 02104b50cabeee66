package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Postgres composes the per-entity stores into a domain.Store.
type Postgres struct {
	*NodeStore
	*EdgeStore
	*IdentityStore

	db *pgxpool.Pool
}

var _ domain.Store = (*Postgres)(nil)

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{
		NodeStore:     NewNodeStore(db),
		EdgeStore:     NewEdgeStore(db),
		IdentityStore: NewIdentityStore(db),
		db:            db,
	}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (p *Postgres) Stats(ctx context.Context) (*domain.GraphStats, error) {
	var st domain.GraphStats
	err := p.db.QueryRow(ctx,
		`SELECT
		     (SELECT COUNT(*) FROM nodes),
		     (SELECT COUNT(*) FROM edges),
		     (SELECT COUNT(*) FROM votes),
		     (SELECT COUNT(*) FROM identities)`,
	).Scan(&st.Nodes, &st.Edges, &st.Votes, &st.Identities)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
