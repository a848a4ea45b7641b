// Package sessionstore provides the durable snapshot stores behind
// onboarding.SessionStore: redis for production, memory for tests.
package sessionstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salesforge-io/salesforge/internal/onboarding"
)

type memEntry struct {
	data    []byte
	savedAt time.Time
}

// MemStore keeps snapshots in memory. The clock is injectable so expiry can
// be tested without sleeping.
type MemStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memEntry
	now     func() time.Time
}

var _ onboarding.SessionStore = &MemStore{}

func NewMemStore() *MemStore {
	return &MemStore{
		entries: map[uuid.UUID]memEntry{},
		now:     time.Now,
	}
}

// WithClock overrides the time source.
func (s *MemStore) WithClock(now func() time.Time) *MemStore {
	s.now = now
	return s
}

func (s *MemStore) Save(_ context.Context, userID uuid.UUID, session *onboarding.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = memEntry{data: data, savedAt: s.now()}
	return nil
}

func (s *MemStore) Restore(_ context.Context, userID uuid.UUID) (*onboarding.Session, error) {
	s.mu.Lock()
	entry, ok := s.entries[userID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	if s.now().Sub(entry.savedAt) > onboarding.SessionTTL {
		s.mu.Lock()
		delete(s.entries, userID)
		s.mu.Unlock()
		return nil, nil
	}
	var session onboarding.Session
	if err := json.Unmarshal(entry.data, &session); err != nil {
		// a corrupt snapshot is the same as no snapshot
		return nil, nil
	}
	return &session, nil
}

func (s *MemStore) Clear(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}
