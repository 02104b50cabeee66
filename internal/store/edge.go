package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EdgeStore struct {
	db *pgxpool.Pool
}

func NewEdgeStore(db *pgxpool.Pool) *EdgeStore {
	return &EdgeStore{db: db}
}

const edgeColumns = `e.id, e.source_id, e.target_id, e.relation, e.weight, e.created_by,
	e.agree, e.disagree, e.agree_weight, e.disagree_weight,
	e.retracted, e.retracted_at, e.retracted_by, e.created_at,
	COALESCE((SELECT array_agg(v.identity_id ORDER BY v.cast_at) FROM votes v WHERE v.edge_id = e.id), '{}')`

// CreateEdge locks both endpoints for share so a concurrent retraction cannot
// slip in between the check and the insert.
func (s *EdgeStore) CreateEdge(ctx context.Context, e *domain.Edge) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var live int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM (
		     SELECT id FROM nodes WHERE id IN ($1, $2) AND NOT retracted FOR SHARE
		 ) n`,
		e.SourceID, e.TargetID,
	).Scan(&live)
	if err != nil {
		return err
	}
	if live != 2 {
		return ErrReference
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO edges (id, source_id, target_id, relation, weight, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		e.ID, e.SourceID, e.TargetID, e.Relation, e.Weight, e.CreatedBy,
	).Scan(&e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrReference
			}
		}
		return err
	}
	return tx.Commit(ctx)
}

func (s *EdgeStore) GetEdge(ctx context.Context, id uuid.UUID) (*domain.Edge, error) {
	row := s.db.QueryRow(ctx, `SELECT `+edgeColumns+` FROM edges e WHERE e.id = $1`, id)
	e, err := scanEdge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *EdgeStore) RetractEdge(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE edges SET retracted = TRUE, retracted_at = $2, retracted_by = $3
		 WHERE id = $1 AND NOT retracted`,
		id, at, by,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *EdgeStore) GetNeighbors(ctx context.Context, nodeID uuid.UUID, direction domain.Direction, relations []domain.Relation) ([]*domain.Edge, error) {
	var query string
	args := []any{nodeID}

	switch direction {
	case domain.DirectionOutgoing:
		query = `SELECT ` + edgeColumns + ` FROM edges e WHERE e.source_id = $1 AND NOT e.retracted`
	case domain.DirectionIncoming:
		query = `SELECT ` + edgeColumns + ` FROM edges e WHERE e.target_id = $1 AND NOT e.retracted`
	default:
		query = `SELECT ` + edgeColumns + ` FROM edges e WHERE (e.source_id = $1 OR e.target_id = $1) AND NOT e.retracted`
	}

	if len(relations) > 0 {
		names := make([]string, len(relations))
		for i, r := range relations {
			names[i] = string(r)
		}
		query += fmt.Sprintf(" AND e.relation = ANY($%d)", len(args)+1)
		args = append(args, names)
	}

	query += " ORDER BY e.weight DESC, e.created_at ASC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	edges := []*domain.Edge{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ApplyVote inserts the vote and bumps the tally in one transaction. The
// tally update takes the edge row lock, which serialises votes per edge.
func (s *EdgeStore) ApplyVote(ctx context.Context, v *domain.Vote) (domain.Tally, error) {
	var tally domain.Tally

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return tally, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var retracted bool
	err = tx.QueryRow(ctx,
		`SELECT retracted, agree, disagree, agree_weight, disagree_weight
		 FROM edges WHERE id = $1 FOR UPDATE`,
		v.EdgeID,
	).Scan(&retracted, &tally.Agree, &tally.Disagree, &tally.AgreeWeight, &tally.DisagreeWeight)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Tally{}, ErrNotFound
		}
		return domain.Tally{}, err
	}
	if retracted {
		return domain.Tally{}, ErrReference
	}

	castAt := v.CastAt
	if castAt.IsZero() {
		castAt = time.Now().UTC()
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO votes (edge_id, identity_id, agree, weight, cast_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (edge_id, identity_id) DO NOTHING`,
		v.EdgeID, v.IdentityID, v.Agree, v.Weight, castAt,
	)
	if err != nil {
		return domain.Tally{}, err
	}
	if tag.RowsAffected() == 0 {
		return tally, ErrConflict
	}
	v.CastAt = castAt

	err = tx.QueryRow(ctx,
		`UPDATE edges SET
		     agree = agree + CASE WHEN $2 THEN 1 ELSE 0 END,
		     disagree = disagree + CASE WHEN $2 THEN 0 ELSE 1 END,
		     agree_weight = agree_weight + CASE WHEN $2 THEN $3 ELSE 0 END,
		     disagree_weight = disagree_weight + CASE WHEN $2 THEN 0 ELSE $3 END
		 WHERE id = $1
		 RETURNING agree, disagree, agree_weight, disagree_weight`,
		v.EdgeID, v.Agree, v.Weight,
	).Scan(&tally.Agree, &tally.Disagree, &tally.AgreeWeight, &tally.DisagreeWeight)
	if err != nil {
		return domain.Tally{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Tally{}, err
	}
	return tally, nil
}

func (s *EdgeStore) ListVotesByIdentity(ctx context.Context, identityID string) ([]domain.Vote, error) {
	rows, err := s.db.Query(ctx,
		`SELECT edge_id, identity_id, agree, weight, cast_at
		 FROM votes WHERE identity_id = $1
		 ORDER BY cast_at`,
		identityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := []domain.Vote{}
	for rows.Next() {
		var v domain.Vote
		if err := rows.Scan(&v.EdgeID, &v.IdentityID, &v.Agree, &v.Weight, &v.CastAt); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

func scanEdge(row pgx.Row) (*domain.Edge, error) {
	var e domain.Edge
	err := row.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight, &e.CreatedBy,
		&e.Tally.Agree, &e.Tally.Disagree, &e.Tally.AgreeWeight, &e.Tally.DisagreeWeight,
		&e.Retracted, &e.RetractedAt, &e.RetractedBy, &e.CreatedAt, &e.VerifierIDs)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
