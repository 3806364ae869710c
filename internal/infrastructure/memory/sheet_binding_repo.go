package memory

import (
	"context"
	"sync"
	"time"

	"call-companion-core/internal/domain"

	"github.com/google/uuid"
)

type SheetBindingRepo struct {
	mu       sync.RWMutex
	bindings map[string]domain.SheetBinding
}

func NewSheetBindingRepo() *SheetBindingRepo {
	return &SheetBindingRepo{bindings: make(map[string]domain.SheetBinding)}
}

func (r *SheetBindingRepo) GetByCollectionID(ctx context.Context, collectionID string) (*domain.SheetBinding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[collectionID]
	if !ok {
		return nil, nil
	}
	b.FieldMapping = append([]domain.ColumnMapping(nil), b.FieldMapping...)
	return &b, nil
}

func (r *SheetBindingRepo) Save(ctx context.Context, binding *domain.SheetBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if binding.ID == "" {
		binding.ID = uuid.NewString()
	}
	if binding.CreatedAt.IsZero() {
		binding.CreatedAt = now
	}
	binding.UpdatedAt = now
	b := *binding
	b.FieldMapping = append([]domain.ColumnMapping(nil), binding.FieldMapping...)
	r.bindings[binding.CollectionID] = b
	return nil
}

func (r *SheetBindingRepo) RecordExport(ctx context.Context, collectionID string, exportErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[collectionID]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	b.LastExportAt = &now
	b.LastError = exportErr
	r.bindings[collectionID] = b
	return nil
}
