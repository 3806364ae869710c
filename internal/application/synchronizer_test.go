package application

import (
	"context"
	"errors"
	"testing"

	"call-companion-core/internal/domain"
	"call-companion-core/internal/infrastructure/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRecord(t *testing.T, store *memory.CustomerStore, record *domain.CustomerRecord) *domain.CustomerRecord {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), record))
	return record
}

func TestSynchronizer_PropagatesStatusAcrossOwners(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCustomerStore()
	c1 := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B", OwnerUserID: "U1", CollectionID: "col-1", Name: "Asha", ExternalLeadID: "L1"})
	c2 := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B", OwnerUserID: "U2", CollectionID: "col-2", Name: "Asha", ExternalLeadID: "L1"})

	_, err := store.UpdateFields(ctx, c2.ID, map[string]string{domain.FieldStatus: "Contacted"})
	require.NoError(t, err)

	sync := NewSynchronizer(store, nil, zerolog.Nop())
	updated, err := sync.Propagate(ctx, c2.ID, map[string]string{domain.FieldStatus: "Contacted"})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, c1.ID, updated[0].ID)

	got, err := store.FindByID(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Contacted", got.Status)
	assert.Equal(t, "U1", got.OwnerUserID, "ownership never propagates")
	assert.Equal(t, "col-1", got.CollectionID)
}

func TestSynchronizer_OnlyAllowListedFieldsPropagate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCustomerStore()
	c1 := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B", OwnerUserID: "U1", CollectionID: "col-1", Name: "Asha", Phone: "111", ExternalLeadID: "L1"})
	c2 := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B", OwnerUserID: "U2", CollectionID: "col-2", Name: "Asha", Phone: "111", ExternalLeadID: "L1"})

	sync := NewSynchronizer(store, nil, zerolog.Nop())
	_, err := sync.Propagate(ctx, c2.ID, map[string]string{
		domain.FieldName:         "Renamed",
		domain.FieldPhone:        "222",
		domain.FieldRemark:       "call after lunch",
		domain.FieldNextCallDate: "2026-10-20",
		"attributes.budget":      "10k",
	})
	require.NoError(t, err)

	got, err := store.FindByID(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, "111", got.Phone)
	assert.Equal(t, "call after lunch", got.Remark)
	assert.Equal(t, "2026-10-20", got.NextCallDate)
	assert.NotContains(t, got.ExternalAttributes, "budget")
}

func TestSynchronizer_NothingToPropagate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCustomerStore()
	plain := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B", OwnerUserID: "U1", CollectionID: "col-1", Name: "Walk-in"})
	other := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B", OwnerUserID: "U2", CollectionID: "col-2", Name: "Walk-in"})

	sync := NewSynchronizer(store, nil, zerolog.Nop())

	updated, err := sync.Propagate(ctx, plain.ID, map[string]string{domain.FieldStatus: "Contacted"})
	require.NoError(t, err)
	assert.Empty(t, updated)

	got, err := store.FindByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Status, "records without a lead id are never linked")

	updated, err = sync.Propagate(ctx, plain.ID, map[string]string{domain.FieldName: "x"})
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestSynchronizer_SkipsDeletedAndOtherBusinesses(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCustomerStore()
	source := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B", OwnerUserID: "U1", CollectionID: "col-1", ExternalLeadID: "L1"})
	deleted := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B", OwnerUserID: "U2", CollectionID: "col-2", ExternalLeadID: "L1"})
	foreign := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B2", OwnerUserID: "U3", CollectionID: "col-3", ExternalLeadID: "L1"})
	live := seedRecord(t, store, &domain.CustomerRecord{BusinessID: "B", OwnerUserID: "U4", CollectionID: "col-4", ExternalLeadID: "L1"})
	store.SoftDelete(deleted.ID)

	sync := NewSynchronizer(store, nil, zerolog.Nop())
	updated, err := sync.Propagate(ctx, source.ID, map[string]string{domain.FieldStatus: "Won"})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, live.ID, updated[0].ID)

	for _, id := range []string{deleted.ID, foreign.ID} {
		got, err := store.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, got.Status)
	}
}

func TestSynchronizer_UnknownSource(t *testing.T) {
	sync := NewSynchronizer(memory.NewCustomerStore(), nil, zerolog.Nop())
	_, err := sync.Propagate(context.Background(), "missing", map[string]string{domain.FieldStatus: "Won"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
