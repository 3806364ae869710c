package ports

import (
	"context"

	"call-companion-core/internal/domain"
)

// CustomerRecordStore defines the customer-record persistence the integration core depends on.
// Finders return (nil, nil) when nothing matches.
type CustomerRecordStore interface {
	// Create inserts a record, assigning ID and the next Position in its collection when unset
	Create(ctx context.Context, record *domain.CustomerRecord) error

	// FindByID retrieves a record by id, deleted or not
	FindByID(ctx context.Context, id string) (*domain.CustomerRecord, error)

	// FindByBusinessAndLeadID retrieves every record of a business sharing an external lead id
	FindByBusinessAndLeadID(ctx context.Context, businessID, externalLeadID string) ([]*domain.CustomerRecord, error)

	// FindByCollectionOrdered retrieves the non-deleted records of a collection ordered by Position
	FindByCollectionOrdered(ctx context.Context, collectionID string) ([]*domain.CustomerRecord, error)

	// UpdateFields sets the given fields on one record and returns the updated record
	UpdateFields(ctx context.Context, id string, fields map[string]string) (*domain.CustomerRecord, error)
}

// SheetBindingRepository defines persistence for per-collection mirroring configuration
type SheetBindingRepository interface {
	GetByCollectionID(ctx context.Context, collectionID string) (*domain.SheetBinding, error)
	Save(ctx context.Context, binding *domain.SheetBinding) error

	// RecordExport stores the outcome of the latest export; exportErr may be empty
	RecordExport(ctx context.Context, collectionID string, exportErr string) error
}
