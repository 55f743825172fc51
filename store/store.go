// Package store defines the CredentialStore port: the persistence contract
// for user records in self-hosted deployments. Managed-identity adapters may
// also implement it by mapping onto their native attribute APIs, which keeps
// the engine's reset and MFA flows backend-neutral.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned when a create collides on the identifier.
	ErrDuplicate = errors.New("store: duplicate identifier")
	// ErrUnavailable is returned when the backend cannot be reached.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// MFA kinds persisted on a record. Empty string means MFA is disabled.
const (
	MFATotp = "totp"
	MFASms  = "sms"
)

// Record is the persisted projection of a user identity. The engine never
// writes it directly; all mutation goes through the CredentialStore methods
// so adapters can enforce their own consistency rules.
type Record struct {
	ID           string
	Identifier   string
	PasswordHash string
	Confirmed    bool
	MFAKind      string
	MFASecret    string
	Attributes   map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a deep copy safe to hand across goroutines.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Attributes != nil {
		out.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			out.Attributes[k] = v
		}
	}
	return &out
}

// CredentialStore is implemented once per backing database. Every method
// maps native failures onto the package sentinel errors; callers never see
// driver error types.
type CredentialStore interface {
	Create(ctx context.Context, rec *Record) error
	FindByIdentifier(ctx context.Context, identifier string) (*Record, error)
	FindByID(ctx context.Context, id string) (*Record, error)
	UpdateAttributes(ctx context.Context, id string, attrs map[string]string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetConfirmed(ctx context.Context, id string) error
	SetMFA(ctx context.Context, id, kind, secret string) error
	Delete(ctx context.Context, id string) error
}
