package store

import (
	"context"
	"sync"

	"enrolld/internal/settings/models"
	"enrolld/pkg/platform/sentinel"
)

// InMemorySettingsStore backs the settings service in development and tests.
type InMemorySettingsStore struct {
	mu      sync.RWMutex
	cutoffs map[string]models.BenefitCutoff
}

func New() *InMemorySettingsStore {
	return &InMemorySettingsStore{
		cutoffs: make(map[string]models.BenefitCutoff),
	}
}

func (s *InMemorySettingsStore) GetCutoff(_ context.Context, scopeKey string) (*models.BenefitCutoff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff, ok := s.cutoffs[scopeKey]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := cutoff
	return &out, nil
}

func (s *InMemorySettingsStore) UpsertCutoff(_ context.Context, cutoff models.BenefitCutoff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cutoffs[cutoff.ScopeKey] = cutoff
	return nil
}
