package memory

import (
	"context"
	"sync"

	"github.com/phonetica/phonauth/session"
)

type sessionKey struct {
	userID int64
	device string
}

// Sessions is an in-memory phonauth.SessionStore. Expired records are kept
// until overwritten or deleted, like the Postgres store.
type Sessions struct {
	mu      sync.RWMutex
	records map[sessionKey]session.Record
	byToken map[string]sessionKey
}

func NewSessions() *Sessions {
	return &Sessions{
		records: make(map[sessionKey]session.Record),
		byToken: make(map[string]sessionKey),
	}
}

// Upsert writes rec for (rec.UserID, rec.Device), replacing any previous
// token for that device. A token owned by another device is a conflict.
func (s *Sessions) Upsert(_ context.Context, rec session.Record) error {
	k := sessionKey{rec.UserID, rec.Device}

	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.byToken[rec.Token]; ok && owner != k {
		return session.ErrTokenConflict
	}
	if old, ok := s.records[k]; ok {
		delete(s.byToken, old.Token)
	}
	s.records[k] = rec
	s.byToken[rec.Token] = k
	return nil
}

func (s *Sessions) Find(_ context.Context, userID int64, device string) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[sessionKey{userID, device}]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &rec, nil
}

func (s *Sessions) FindByToken(_ context.Context, token string) (*session.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.byToken[token]
	if !ok {
		return nil, session.ErrNotFound
	}
	rec := s.records[k]
	return &rec, nil
}

func (s *Sessions) Delete(_ context.Context, userID int64, device string) (bool, error) {
	k := sessionKey{userID, device}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[k]
	if !ok {
		return false, nil
	}
	delete(s.records, k)
	delete(s.byToken, rec.Token)
	return true, nil
}

// Len returns the number of stored sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
