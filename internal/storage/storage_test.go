package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserStoreCreateAndLookup(t *testing.T) {
	store := NewUserStore(t.TempDir())

	user, err := store.Create("Farmer@Example.com", "Farmer", "hash")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "farmer@example.com", user.Email, "emails are normalized")

	byID, err := store.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, byID)

	byEmail, err := store.GetByEmail("farmer@example.com")
	require.NoError(t, err)
	assert.Equal(t, user, byEmail)

	_, err = store.Create("farmer@example.com", "Dupe", "hash2")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = store.GetByID(99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPondStoreCRUD(t *testing.T) {
	store := NewPondStore(t.TempDir())

	pond, err := store.Create(42, "North Pond", "sector A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pond.ID)
	assert.Equal(t, PondStatusActive, pond.Status)

	second, err := store.Create(43, "South Pond", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)

	all, err := store.List(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ownerID := int64(42)
	mine, err := store.List(&ownerID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "North Pond", mine[0].Name)

	pond.Status = PondStatusMaintenance
	updated, err := store.Update(pond)
	require.NoError(t, err)
	assert.Equal(t, PondStatusMaintenance, updated.Status)
	assert.Equal(t, pond.CreatedAt, updated.CreatedAt)

	require.NoError(t, store.Delete(second.ID))
	assert.ErrorIs(t, store.Delete(second.ID), ErrNotFound)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReadingStoreAppendAndList(t *testing.T) {
	store := NewReadingStore(t.TempDir())

	for i, value := range []float64{26.5, 27.1, 28.0} {
		_, err := store.Append(SensorReading{
			PondID:     7,
			SensorType: "temperature",
			Value:      value,
			Status:     "green",
			RecordedAt: time.Now().UTC().Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	_, err := store.Append(SensorReading{PondID: 8, SensorType: "ph", Value: 7.5, Status: "green"})
	require.NoError(t, err)

	readings, err := store.ListByPond(7, 2)
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 28.0, readings[0].Value, "newest first")
	assert.Equal(t, 27.1, readings[1].Value)

	none, err := store.ListByPond(99, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSubscriptionStoreUpsertAndPrune(t *testing.T) {
	store := NewSubscriptionStore(t.TempDir())

	sub := PushSubscription{
		UserID:   42,
		Endpoint: "https://push.example.com/abc",
		P256dh:   "key",
		Auth:     "secret",
	}
	require.NoError(t, store.Upsert(sub))

	sub.Auth = "rotated"
	require.NoError(t, store.Upsert(sub))

	subs, err := store.ListByUser(42)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "rotated", subs[0].Auth)

	require.NoError(t, store.DeleteByEndpoint(sub.Endpoint))
	require.NoError(t, store.DeleteByEndpoint(sub.Endpoint), "unknown endpoint is a no-op")

	subs, err = store.ListByUser(42)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
