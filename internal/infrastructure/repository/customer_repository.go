package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/infrastructure/repository/entity"
	"call-companion-core/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCustomerRepository implements CustomerRecordStore using MongoDB
type MongoCustomerRepository struct {
	customers *mongo.Collection
	counters  *mongo.Collection
}

// NewMongoCustomerRepository creates a new MongoDB customer repository
func NewMongoCustomerRepository(db *mongo.Database) ports.CustomerRecordStore {
	return &MongoCustomerRepository{
		customers: db.Collection("customers"),
		counters:  db.Collection("counters"),
	}
}

// EnsureCustomerIndexes creates the indexes the customer queries rely on
func EnsureCustomerIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("customers").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "businessId", Value: 1}, {Key: "externalLeadId", Value: 1}}},
		{Keys: bson.D{{Key: "collectionId", Value: 1}, {Key: "position", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create customer indexes: %w", err)
	}
	return nil
}

// Create inserts a record, assigning the next position in its collection when unset
func (r *MongoCustomerRepository) Create(ctx context.Context, record *domain.CustomerRecord) error {
	if record.Position == 0 {
		position, err := r.nextPosition(ctx, record.CollectionID)
		if err != nil {
			return err
		}
		record.Position = position
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	doc := entity.MongoCustomerDocFromDomain(record)
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := r.customers.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	record.ID = doc.ID.Hex()
	return nil
}

// FindByID retrieves a record by id
func (r *MongoCustomerRepository) FindByID(ctx context.Context, id string) (*domain.CustomerRecord, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var doc entity.MongoCustomerDoc
	err = r.customers.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return doc.ToDomain(), nil
}

// FindByBusinessAndLeadID retrieves every record of a business sharing an external lead id
func (r *MongoCustomerRepository) FindByBusinessAndLeadID(ctx context.Context, businessID, externalLeadID string) ([]*domain.CustomerRecord, error) {
	if externalLeadID == "" {
		return nil, nil
	}
	filter := bson.M{"businessId": businessID, "externalLeadId": externalLeadID}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	return r.find(ctx, filter, opts)
}

// FindByCollectionOrdered retrieves the non-deleted records of a collection in position order
func (r *MongoCustomerRepository) FindByCollectionOrdered(ctx context.Context, collectionID string) ([]*domain.CustomerRecord, error) {
	filter := bson.M{"collectionId": collectionID, "deleted": bson.M{"$ne": true}}
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, filter, opts)
}

// UpdateFields sets fields on one record and returns the updated record
func (r *MongoCustomerRepository) UpdateFields(ctx context.Context, id string, fields map[string]string) (*domain.CustomerRecord, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	set, err := CustomerUpdateDoc(fields)
	if err != nil {
		return nil, err
	}
	set["updatedAt"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc entity.MongoCustomerDoc
	err = r.customers.FindOneAndUpdate(ctx, bson.M{"_id": objID}, bson.M{"$set": set}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}

	return doc.ToDomain(), nil
}

// CustomerUpdateDoc builds the $set document for a field update.
// Attribute keys must be usable as document keys.
func CustomerUpdateDoc(fields map[string]string) (bson.M, error) {
	set := bson.M{}
	for key, value := range fields {
		if docKey, ok := entity.CustomerFieldKeys[key]; ok {
			set[docKey] = value
			continue
		}
		attr := strings.TrimPrefix(key, domain.AttributeFieldPrefix)
		if attr == "" || strings.ContainsAny(attr, ".$") {
			return nil, fmt.Errorf("%w: attribute key %q", domain.ErrInvalidInput, attr)
		}
		set["externalAttributes."+attr] = value
	}
	return set, nil
}

func (r *MongoCustomerRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.CustomerRecord, error) {
	cursor, err := r.customers.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*domain.CustomerRecord
	for cursor.Next(ctx) {
		var doc entity.MongoCustomerDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode customer: %w", err)
		}
		records = append(records, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return records, nil
}

func (r *MongoCustomerRepository) nextPosition(ctx context.Context, collectionID string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": "position:" + collectionID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate position: %w", err)
	}
	return counter.Seq, nil
}
