// Package pg implements CredentialStore on PostgreSQL via pgxpool.
//
// Expected schema:
//
//	CREATE TABLE account (
//	    id            UUID PRIMARY KEY,
//	    identifier    TEXT NOT NULL UNIQUE,
//	    password_hash TEXT NOT NULL DEFAULT '',
//	    confirmed     BOOLEAN NOT NULL DEFAULT FALSE,
//	    mfa_kind      TEXT NOT NULL DEFAULT '',
//	    mfa_secret    TEXT NOT NULL DEFAULT '',
//	    attributes    JSONB NOT NULL DEFAULT '{}',
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    updated_at    TIMESTAMPTZ NOT NULL
//	);
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrEthical07/authbridge/store"
)

const uniqueViolation = "23505"

// Store is a CredentialStore backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. The caller owns the pool lifecycle.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Create(ctx context.Context, rec *store.Record) error {
	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO account (id, identifier, password_hash, confirmed, mfa_kind, mfa_secret, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		rec.ID, rec.Identifier, rec.PasswordHash, rec.Confirmed, rec.MFAKind, rec.MFASecret, attrs, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicate
		}
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*store.Record, error) {
	return s.findWhere(ctx, "identifier = $1", identifier)
}

func (s *Store) FindByID(ctx context.Context, id string) (*store.Record, error) {
	return s.findWhere(ctx, "id = $1", id)
}

func (s *Store) findWhere(ctx context.Context, cond, arg string) (*store.Record, error) {
	query := `
		SELECT id, identifier, password_hash, confirmed, mfa_kind, mfa_secret, attributes, created_at, updated_at
		FROM account WHERE ` + cond

	var rec store.Record
	var attrs []byte
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&rec.ID, &rec.Identifier, &rec.PasswordHash, &rec.Confirmed,
		&rec.MFAKind, &rec.MFASecret, &attrs, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return &rec, nil
}

func (s *Store) UpdateAttributes(ctx context.Context, id string, attrs map[string]string) error {
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	// Merge rather than replace so partial updates keep existing keys.
	return s.exec(ctx, `
		UPDATE account SET attributes = attributes || $2::jsonb, updated_at = NOW()
		WHERE id = $1`, id, encoded)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return s.exec(ctx, `UPDATE account SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
}

func (s *Store) SetConfirmed(ctx context.Context, id string) error {
	return s.exec(ctx, `UPDATE account SET confirmed = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (s *Store) SetMFA(ctx context.Context, id, kind, secret string) error {
	return s.exec(ctx, `UPDATE account SET mfa_kind = $2, mfa_secret = $3, updated_at = NOW() WHERE id = $1`, id, kind, secret)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM account WHERE id = $1`, id)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
