package repository

import (
	"context"
	"fmt"
	"time"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/infrastructure/repository/entity"
	"call-companion-core/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSheetBindingRepository implements SheetBindingRepository using MongoDB
type MongoSheetBindingRepository struct {
	collection *mongo.Collection
}

// NewMongoSheetBindingRepository creates a new MongoDB sheet binding repository
func NewMongoSheetBindingRepository(db *mongo.Database) ports.SheetBindingRepository {
	return &MongoSheetBindingRepository{
		collection: db.Collection("sheet_bindings"),
	}
}

// EnsureSheetBindingIndexes makes collectionId unique
func EnsureSheetBindingIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("sheet_bindings").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "collectionId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create sheet binding indexes: %w", err)
	}
	return nil
}

// GetByCollectionID retrieves the binding of a collection
func (r *MongoSheetBindingRepository) GetByCollectionID(ctx context.Context, collectionID string) (*domain.SheetBinding, error) {
	var doc entity.MongoSheetBindingDoc
	err := r.collection.FindOne(ctx, bson.M{"collectionId": collectionID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sheet binding: %w", err)
	}

	return doc.ToDomain(), nil
}

// Save saves or updates the binding of a collection
func (r *MongoSheetBindingRepository) Save(ctx context.Context, binding *domain.SheetBinding) error {
	now := time.Now().UTC()
	binding.UpdatedAt = now
	if binding.CreatedAt.IsZero() {
		binding.CreatedAt = now
	}

	doc := entity.MongoSheetBindingDocFromDomain(binding)
	set := bson.M{
		"collectionId":   doc.CollectionID,
		"businessId":     doc.BusinessID,
		"spreadsheetRef": doc.SpreadsheetRef,
		"tabName":        doc.TabName,
		"fieldMapping":   doc.FieldMapping,
		"enabled":        doc.Enabled,
		"updatedAt":      doc.UpdatedAt,
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdAt": doc.CreatedAt},
	}

	var saved entity.MongoSheetBindingDoc
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"collectionId": binding.CollectionID}, update, opts).Decode(&saved)
	if err != nil {
		return fmt.Errorf("failed to save sheet binding: %w", err)
	}

	binding.ID = saved.ID.Hex()
	binding.CreatedAt = saved.CreatedAt
	return nil
}

// RecordExport stores the outcome of the latest export
func (r *MongoSheetBindingRepository) RecordExport(ctx context.Context, collectionID string, exportErr string) error {
	update := bson.M{"$set": bson.M{
		"lastExportAt": time.Now().UTC(),
		"lastError":    exportErr,
	}}

	_, err := r.collection.UpdateOne(ctx, bson.M{"collectionId": collectionID}, update)
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}

	return nil
}
