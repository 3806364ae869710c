package entity

import (
	"time"

	"call-companion-core/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoColumnMappingDoc is one mapped column
type MongoColumnMappingDoc struct {
	Field string `bson:"field"`
	Label string `bson:"label"`
}

// MongoSheetBindingDoc represents a collection's sheet binding in MongoDB
type MongoSheetBindingDoc struct {
	ID             primitive.ObjectID      `bson:"_id,omitempty"`
	CollectionID   string                  `bson:"collectionId"`
	BusinessID     string                  `bson:"businessId"`
	SpreadsheetRef string                  `bson:"spreadsheetRef"`
	TabName        string                  `bson:"tabName,omitempty"`
	FieldMapping   []MongoColumnMappingDoc `bson:"fieldMapping,omitempty"`
	Enabled        bool                    `bson:"enabled"`
	LastExportAt   *time.Time              `bson:"lastExportAt,omitempty"`
	LastError      string                  `bson:"lastError,omitempty"`
	CreatedAt      time.Time               `bson:"createdAt"`
	UpdatedAt      time.Time               `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoSheetBindingDoc) ToDomain() *domain.SheetBinding {
	binding := &domain.SheetBinding{
		ID:             d.ID.Hex(),
		CollectionID:   d.CollectionID,
		BusinessID:     d.BusinessID,
		SpreadsheetRef: d.SpreadsheetRef,
		TabName:        d.TabName,
		Enabled:        d.Enabled,
		LastExportAt:   d.LastExportAt,
		LastError:      d.LastError,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for _, col := range d.FieldMapping {
		binding.FieldMapping = append(binding.FieldMapping, domain.ColumnMapping{Field: col.Field, Label: col.Label})
	}
	return binding
}

// MongoSheetBindingDocFromDomain converts a domain entity to a MongoDB document
func MongoSheetBindingDocFromDomain(binding *domain.SheetBinding) *MongoSheetBindingDoc {
	doc := &MongoSheetBindingDoc{
		CollectionID:   binding.CollectionID,
		BusinessID:     binding.BusinessID,
		SpreadsheetRef: binding.SpreadsheetRef,
		TabName:        binding.TabName,
		Enabled:        binding.Enabled,
		LastExportAt:   binding.LastExportAt,
		LastError:      binding.LastError,
		CreatedAt:      binding.CreatedAt,
		UpdatedAt:      binding.UpdatedAt,
	}
	for _, col := range binding.FieldMapping {
		doc.FieldMapping = append(doc.FieldMapping, MongoColumnMappingDoc{Field: col.Field, Label: col.Label})
	}

	if binding.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(binding.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}
