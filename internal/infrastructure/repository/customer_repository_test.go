package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/infrastructure/repository/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestCustomerUpdateDoc(t *testing.T) {
	set, err := CustomerUpdateDoc(map[string]string{
		domain.FieldStatus:       "Contacted",
		domain.FieldNextCallDate: "2026-10-20",
		"attributes.city":        "Pune",
	})
	require.NoError(t, err)
	assert.Equal(t, "Contacted", set["status"])
	assert.Equal(t, "2026-10-20", set["nextCallDate"])
	assert.Equal(t, "Pune", set["externalAttributes.city"])

	_, err = CustomerUpdateDoc(map[string]string{"attributes.a.b": "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = CustomerUpdateDoc(map[string]string{"attributes.$where": "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCustomerDocRoundTrip(t *testing.T) {
	record := &domain.CustomerRecord{
		ID:                 "65f1c0ffee0000000000abcd",
		BusinessID:         "B",
		OwnerUserID:        "U1",
		CollectionID:       "col-1",
		Name:               "Asha",
		Status:             "New",
		ExternalAttributes: map[string]string{"city": "Pune"},
		ExternalLeadID:     "L1",
		Position:           3,
	}
	got := entity.MongoCustomerDocFromDomain(record).ToDomain()
	assert.Equal(t, record, got)
}

func newTestDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	db := client.Database("call_companion_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		db.Drop(context.Background())
		client.Disconnect(context.Background())
	})
	return db
}

func TestMongoCustomerRepository(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, EnsureCustomerIndexes(ctx, db))
	repo := NewMongoCustomerRepository(db)

	first := &domain.CustomerRecord{BusinessID: "B", OwnerUserID: "U1", CollectionID: "col-1", Name: "Asha", ExternalLeadID: "L1"}
	second := &domain.CustomerRecord{BusinessID: "B", OwnerUserID: "U2", CollectionID: "col-1", Name: "Ravi", ExternalLeadID: "L1"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	assert.Equal(t, int64(1), first.Position)
	assert.Equal(t, int64(2), second.Position)

	siblings, err := repo.FindByBusinessAndLeadID(ctx, "B", "L1")
	require.NoError(t, err)
	assert.Len(t, siblings, 2)

	updated, err := repo.UpdateFields(ctx, first.ID, map[string]string{domain.FieldStatus: "Won", "attributes.city": "Pune"})
	require.NoError(t, err)
	assert.Equal(t, "Won", updated.Status)
	assert.Equal(t, "Pune", updated.ExternalAttributes["city"])

	ordered, err := repo.FindByCollectionOrdered(ctx, "col-1")
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, first.ID, ordered[0].ID)

	missing, err := repo.FindByID(ctx, "not-an-object-id")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMongoSheetBindingRepository(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, EnsureSheetBindingIndexes(ctx, db))
	repo := NewMongoSheetBindingRepository(db)

	binding := &domain.SheetBinding{
		CollectionID:   "col-1",
		BusinessID:     "B",
		SpreadsheetRef: "sheet-1",
		Enabled:        true,
		FieldMapping:   []domain.ColumnMapping{{Field: "name", Label: "Name"}},
	}
	require.NoError(t, repo.Save(ctx, binding))
	assert.NotEmpty(t, binding.ID)

	require.NoError(t, repo.RecordExport(ctx, "col-1", "quota exceeded"))

	got, err := repo.GetByCollectionID(ctx, "col-1")
	require.NoError(t, err)
	assert.Equal(t, binding.ID, got.ID)
	assert.Equal(t, "quota exceeded", got.LastError)
	assert.NotNil(t, got.LastExportAt)
	assert.Equal(t, binding.FieldMapping, got.FieldMapping)

	none, err := repo.GetByCollectionID(ctx, "col-2")
	require.NoError(t, err)
	assert.Nil(t, none)
}
