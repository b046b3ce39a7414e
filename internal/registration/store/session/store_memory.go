package session

import (
	"context"
	"sync"
	"time"

	"enrolld/internal/registration/models"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
)

// retentionFactor keeps entries around past the logical TTL so expired
// sessions stay readable and abortable until swept, matching the Redis
// store's retention.
const retentionFactor = 2

type entry struct {
	session  *models.RegistrationSession
	removeAt time.Time
}

// InMemorySessionStore is the development and test implementation of the
// session store. All reads and writes copy, and Update enforces the same
// version check-and-set contract as the Redis store.
type InMemorySessionStore struct {
	mu      sync.RWMutex
	entries map[id.SessionID]*entry
}

func New() *InMemorySessionStore {
	return &InMemorySessionStore{
		entries: make(map[id.SessionID]*entry),
	}
}

func (s *InMemorySessionStore) Put(_ context.Context, session *models.RegistrationSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := session.Clone()
	stored.Version = 1
	s.entries[session.ID] = &entry{
		session:  stored,
		removeAt: session.CreatedAt.Add(ttl * retentionFactor),
	}
	session.Version = 1
	return nil
}

func (s *InMemorySessionStore) Get(_ context.Context, sessionID id.SessionID) (*models.RegistrationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e.session.Clone(), nil
}

func (s *InMemorySessionStore) Update(_ context.Context, session *models.RegistrationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[session.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.session.Version != session.Version {
		return sentinel.ErrConflict
	}

	stored := session.Clone()
	stored.Version = session.Version + 1
	e.session = stored
	session.Version = stored.Version
	return nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[sessionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entries, sessionID)
	return nil
}

func (s *InMemorySessionStore) List(_ context.Context, filter models.SessionFilter) ([]*models.RegistrationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.RegistrationSession
	for _, e := range s.entries {
		if filter.Matches(e.session) {
			out = append(out, e.session.Clone())
		}
	}
	return out, nil
}

// Sweep removes entries past their retention window. Storage hygiene only;
// correctness never depends on it because expiry is checked passively on
// every operation.
func (s *InMemorySessionStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for sessionID, e := range s.entries {
		if now.After(e.removeAt) {
			delete(s.entries, sessionID)
			removed++
		}
	}
	return removed
}
