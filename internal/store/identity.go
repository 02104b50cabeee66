package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IdentityStore struct {
	db *pgxpool.Pool
}

func NewIdentityStore(db *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{db: db}
}

const identityColumns = `public_id, trust_score, vpn_suspected, tor_suspected, proxy_suspected,
	geo_mismatch, possible_duplicate, duplicate_of, reputation, contribution_count,
	verification_count, accurate_verification_count, decided_verification_count,
	signature, created_at, last_seen_at`

func (s *IdentityStore) CreateIdentity(ctx context.Context, i *domain.Identity) error {
	sig, err := json.Marshal(i.Signature)
	if err != nil {
		return fmt.Errorf("encode signature: %w", err)
	}
	err = s.db.QueryRow(ctx,
		`INSERT INTO identities (public_id, trust_score, vpn_suspected, tor_suspected, proxy_suspected,
		     geo_mismatch, possible_duplicate, duplicate_of, ip_address, geo_hash, signature)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, last_seen_at`,
		i.PublicID, i.TrustScore, i.Flags.VPNSuspected, i.Flags.TorSuspected, i.Flags.ProxySuspected,
		i.Flags.GeoMismatch, i.Flags.PossibleDuplicate, i.DuplicateOf,
		i.Signature.IPAddress, i.Signature.GeoHash, sig,
	).Scan(&i.CreatedAt, &i.LastSeenAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *IdentityStore) GetIdentity(ctx context.Context, publicID string) (*domain.Identity, error) {
	row := s.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE public_id = $1`, publicID)
	i, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return i, nil
}

func (s *IdentityStore) UpdateIdentity(ctx context.Context, i *domain.Identity) error {
	sig, err := json.Marshal(i.Signature)
	if err != nil {
		return fmt.Errorf("encode signature: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE identities SET
		     trust_score = $2, vpn_suspected = $3, tor_suspected = $4, proxy_suspected = $5,
		     geo_mismatch = $6, possible_duplicate = $7, duplicate_of = $8,
		     accurate_verification_count = $9, decided_verification_count = $10,
		     ip_address = $11, geo_hash = $12, signature = $13, last_seen_at = $14
		 WHERE public_id = $1`,
		i.PublicID, i.TrustScore, i.Flags.VPNSuspected, i.Flags.TorSuspected, i.Flags.ProxySuspected,
		i.Flags.GeoMismatch, i.Flags.PossibleDuplicate, i.DuplicateOf,
		i.AccurateVerificationCount, i.DecidedVerificationCount,
		i.Signature.IPAddress, i.Signature.GeoHash, sig, i.LastSeenAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *IdentityStore) ListIdentities(ctx context.Context, page domain.Page) ([]*domain.Identity, error) {
	if page.Limit <= 0 {
		page.Limit = domain.MaxPageLimit
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+identityColumns+` FROM identities ORDER BY public_id LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectIdentities(rows)
}

func (s *IdentityStore) FindDuplicateCandidates(ctx context.Context, ipAddress, geoHash, exclude string, limit int) ([]*domain.Identity, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+identityColumns+` FROM identities
		 WHERE public_id <> $3
		   AND ((ip_address <> '' AND ip_address = $1) OR (geo_hash <> '' AND geo_hash = $2))
		 ORDER BY created_at
		 LIMIT $4`,
		ipAddress, geoHash, exclude, limit,
	)
	if err != nil {
		return nil, err
	}
	return collectIdentities(rows)
}

func (s *IdentityStore) IncrementCounters(ctx context.Context, publicID string, delta domain.CounterDelta) error {
	rep := delta.Reputation
	if rep < 0 {
		rep = 0
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE identities SET
		     reputation = reputation + $2,
		     contribution_count = contribution_count + $3,
		     verification_count = verification_count + $4
		 WHERE public_id = $1`,
		publicID, rep, delta.Contributions, delta.Verifications,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		i   domain.Identity
		sig []byte
	)
	err := row.Scan(&i.PublicID, &i.TrustScore, &i.Flags.VPNSuspected, &i.Flags.TorSuspected,
		&i.Flags.ProxySuspected, &i.Flags.GeoMismatch, &i.Flags.PossibleDuplicate, &i.DuplicateOf,
		&i.Reputation, &i.ContributionCount, &i.VerificationCount, &i.AccurateVerificationCount,
		&i.DecidedVerificationCount, &sig, &i.CreatedAt, &i.LastSeenAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sig, &i.Signature); err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	return &i, nil
}

func collectIdentities(rows pgx.Rows) ([]*domain.Identity, error) {
	defer rows.Close()
	out := []*domain.Identity{}
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
