package record

import (
	"context"
	"sync"

	"enrolld/internal/registration/models"
	id "enrolld/pkg/domain"
	"enrolld/pkg/platform/sentinel"
)

// InMemoryRecordStore is the development and test implementation of the
// persistence gateway.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.EducationRecord
}

func New() *InMemoryRecordStore {
	return &InMemoryRecordStore{
		records: make(map[id.RecordID]*models.EducationRecord),
	}
}

func (s *InMemoryRecordStore) Create(_ context.Context, record *models.EducationRecord) (*models.EducationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID.IsNil() {
		record.ID = id.NewRecordID()
	}
	if _, exists := s.records[record.ID]; exists {
		return nil, sentinel.ErrConflict
	}

	stored := *record
	s.records[record.ID] = &stored
	out := stored
	return &out, nil
}

func (s *InMemoryRecordStore) FindByID(_ context.Context, recordID id.RecordID) (*models.EducationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *record
	return &out, nil
}

func (s *InMemoryRecordStore) FindByFilter(_ context.Context, filter models.RecordFilter) ([]*models.EducationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.EducationRecord
	for _, record := range s.records {
		if filter.Matches(record) {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryRecordStore) Update(_ context.Context, record *models.EducationRecord) (*models.EducationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; !ok {
		return nil, sentinel.ErrNotFound
	}
	stored := *record
	s.records[record.ID] = &stored
	out := stored
	return &out, nil
}

func (s *InMemoryRecordStore) Delete(_ context.Context, recordID id.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[recordID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, recordID)
	return nil
}
