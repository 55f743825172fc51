// Package memory implements CredentialStore in process memory. It exists for
// tests and development wiring; nothing expires and nothing survives a
// restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authbridge/store"
)

// Store is a mutex-guarded in-memory CredentialStore.
type Store struct {
	mu           sync.RWMutex
	byID         map[string]*store.Record
	byIdentifier map[string]string
}

func New() *Store {
	return &Store{
		byID:         make(map[string]*store.Record),
		byIdentifier: make(map[string]string),
	}
}

func (s *Store) Create(_ context.Context, rec *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byIdentifier[rec.Identifier]; ok {
		return store.ErrDuplicate
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.byID[rec.ID] = rec.Clone()
	s.byIdentifier[rec.Identifier] = rec.ID
	return nil
}

func (s *Store) FindByIdentifier(_ context.Context, identifier string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIdentifier[identifier]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) UpdateAttributes(_ context.Context, id string, attrs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	if rec.Attributes == nil {
		rec.Attributes = make(map[string]string, len(attrs))
	}
	for k, v := range attrs {
		rec.Attributes[k] = v
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.update(id, func(rec *store.Record) {
		rec.PasswordHash = hash
	})
}

func (s *Store) SetConfirmed(_ context.Context, id string) error {
	return s.update(id, func(rec *store.Record) {
		rec.Confirmed = true
	})
}

func (s *Store) SetMFA(_ context.Context, id, kind, secret string) error {
	return s.update(id, func(rec *store.Record) {
		rec.MFAKind = kind
		rec.MFASecret = secret
	})
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.byIdentifier, rec.Identifier)
	delete(s.byID, id)
	return nil
}

func (s *Store) update(id string, apply func(*store.Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	apply(rec)
	rec.UpdatedAt = time.Now()
	return nil
}
