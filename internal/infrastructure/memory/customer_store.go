package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"call-companion-core/internal/domain"

	"github.com/google/uuid"
)

type CustomerStore struct {
	mu      sync.RWMutex
	records map[string]*domain.CustomerRecord
}

func NewCustomerStore() *CustomerStore {
	return &CustomerStore{records: make(map[string]*domain.CustomerRecord)}
}

func (s *CustomerStore) Create(ctx context.Context, record *domain.CustomerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Position == 0 {
		var max int64
		for _, r := range s.records {
			if r.CollectionID == record.CollectionID && r.Position > max {
				max = r.Position
			}
		}
		record.Position = max + 1
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	s.records[record.ID] = clone(record)
	return nil
}

func (s *CustomerStore) FindByID(ctx context.Context, id string) (*domain.CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return clone(r), nil
}

func (s *CustomerStore) FindByBusinessAndLeadID(ctx context.Context, businessID, externalLeadID string) ([]*domain.CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*domain.CustomerRecord
	for _, r := range s.records {
		if r.BusinessID == businessID && externalLeadID != "" && r.ExternalLeadID == externalLeadID {
			res = append(res, clone(r))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *CustomerStore) FindByCollectionOrdered(ctx context.Context, collectionID string) ([]*domain.CustomerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*domain.CustomerRecord
	for _, r := range s.records {
		if r.CollectionID == collectionID && !r.Deleted {
			res = append(res, clone(r))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Position == res[j].Position {
			return res[i].ID < res[j].ID
		}
		return res[i].Position < res[j].Position
	})
	return res, nil
}

func (s *CustomerStore) UpdateFields(ctx context.Context, id string, fields map[string]string) (*domain.CustomerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	r.ApplyFields(fields)
	r.UpdatedAt = time.Now().UTC()
	return clone(r), nil
}

// SoftDelete marks a record deleted
func (s *CustomerStore) SoftDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[id]; ok {
		r.Deleted = true
	}
}

func clone(r *domain.CustomerRecord) *domain.CustomerRecord {
	c := *r
	if r.ExternalAttributes != nil {
		c.ExternalAttributes = make(map[string]string, len(r.ExternalAttributes))
		for k, v := range r.ExternalAttributes {
			c.ExternalAttributes[k] = v
		}
	}
	return &c
}
