package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NodeStore struct {
	db *pgxpool.Pool
}

func NewNodeStore(db *pgxpool.Pool) *NodeStore {
	return &NodeStore{db: db}
}

const nodeColumns = `id, kind, title, body, tags, payload, archive_hash, archive_loc,
	created_by, retracted, retracted_at, retracted_by, created_at, updated_at`

func searchText(n *domain.Node) string {
	return strings.ToLower(strings.Join(n.SearchFields(), " "))
}

func (s *NodeStore) CreateNode(ctx context.Context, n *domain.Node) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	hash, loc := archiveColumns(n.Archive)
	if n.Tags == nil {
		n.Tags = []string{}
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO nodes (id, kind, title, body, tags, payload, search_text, archive_hash, archive_loc, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		n.ID, n.Kind, n.Title, n.Body, n.Tags, payload, searchText(n), hash, loc, n.CreatedBy,
	).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *NodeStore) UpdateNode(ctx context.Context, n *domain.Node) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	hash, loc := archiveColumns(n.Archive)
	if n.Tags == nil {
		n.Tags = []string{}
	}

	err = s.db.QueryRow(ctx,
		`UPDATE nodes
		 SET title = $3, body = $4, tags = $5, payload = $6, search_text = $7,
		     archive_hash = $8, archive_loc = $9, updated_at = NOW()
		 WHERE id = $1 AND kind = $2
		 RETURNING updated_at`,
		n.ID, n.Kind, n.Title, n.Body, n.Tags, payload, searchText(n), hash, loc,
	).Scan(&n.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	// Distinguish a missing row from a kind change.
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM nodes WHERE id = $1)`, n.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrKindMismatch
	}
	return ErrNotFound
}

func (s *NodeStore) GetNode(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	row := s.db.QueryRow(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = $1`, id)
	n, err := scanNode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func (s *NodeStore) RetractNode(ctx context.Context, id uuid.UUID, by string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE nodes SET retracted = TRUE, retracted_at = $2, retracted_by = $3, updated_at = $2
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

func (s *NodeStore) ListNodesByKind(ctx context.Context, kind domain.NodeKind, page domain.Page) ([]*domain.Node, error) {
	page = page.Normalize()
	rows, err := s.db.Query(ctx,
		`SELECT `+nodeColumns+` FROM nodes
		 WHERE kind = $1 AND NOT retracted
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		kind, page.Limit, page.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectNodes(rows)
}

// SearchNodes ranks in SQL so the limit keeps the best matches, not the
// newest. The phrase test mirrors domain.MatchNode on the lower-cased
// search_text column.
func (s *NodeStore) SearchNodes(ctx context.Context, query string, tokens []string, limit int) ([]domain.SearchHit, error) {
	if len(tokens) == 0 {
		return []domain.SearchHit{}, nil
	}
	patterns := make([]string, len(tokens))
	for i, t := range tokens {
		patterns[i] = "%" + t + "%"
	}
	phrase := strings.ToLower(strings.TrimSpace(query))
	if limit <= 0 {
		limit = domain.MaxPageLimit
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+nodeColumns+`,
		        CASE WHEN $2 <> '' AND strpos(search_text, $2) > 0 THEN 3
		             WHEN search_text LIKE ALL($1) THEN 2
		             ELSE 1 END AS rank,
		        (SELECT count(*) FROM unnest($1::text[]) AS p(pattern)
		          WHERE search_text LIKE p.pattern) AS matched
		 FROM nodes
		 WHERE NOT retracted AND search_text LIKE ANY($1)
		 ORDER BY rank DESC, matched DESC, updated_at DESC
		 LIMIT $3`,
		patterns, phrase, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := []domain.SearchHit{}
	for rows.Next() {
		var (
			rank    int32
			matched int64
		)
		n, err := scanNode(rows, &rank, &matched)
		if err != nil {
			return nil, err
		}
		hits = append(hits, domain.SearchHit{Node: n, Rank: int(rank), MatchedTokens: int(matched)})
	}
	return hits, rows.Err()
}

func archiveColumns(ref *domain.ArchiveRef) (*string, *string) {
	if ref == nil {
		return nil, nil
	}
	return &ref.Hash, &ref.Locator
}

// scanNode reads nodeColumns followed by any extra destinations.
func scanNode(row pgx.Row, extra ...any) (*domain.Node, error) {
	var (
		n         domain.Node
		payload   []byte
		hash, loc *string
	)
	dest := []any{&n.ID, &n.Kind, &n.Title, &n.Body, &n.Tags, &payload, &hash, &loc,
		&n.CreatedBy, &n.Retracted, &n.RetractedAt, &n.RetractedBy, &n.CreatedAt, &n.UpdatedAt}
	err := row.Scan(append(dest, extra...)...)
	if err != nil {
		return nil, err
	}
	n.Payload, err = domain.DecodePayload(n.Kind, payload)
	if err != nil {
		return nil, err
	}
	if hash != nil {
		n.Archive = &domain.ArchiveRef{Hash: *hash}
		if loc != nil {
			n.Archive.Locator = *loc
		}
	}
	return &n, nil
}

func collectNodes(rows pgx.Rows) ([]*domain.Node, error) {
	defer rows.Close()
	nodes := []*domain.Node{}
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}
