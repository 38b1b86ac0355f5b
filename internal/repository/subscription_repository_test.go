package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/chainsplit/chainsplit-backend/internal/apperr"
	"github.com/chainsplit/chainsplit-backend/internal/models"
	"github.com/chainsplit/chainsplit-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionRepository_CRUD(t *testing.T) {
	db := testutil.OpenTestDB(t)
	h := testutil.NewTestHelper(t)
	h.SeedUsers(db, 1, 2)
	repo := NewSubscriptionRepository(db)

	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	sub := h.CreateTestSubscription(1, "Video", start)
	sub.Metadata = map[string]string{"plan": "family"}
	require.NoError(t, repo.Create(sub))
	require.NoError(t, repo.Create(h.CreateTestSubscription(2, "Music", start)))

	got, err := repo.FindByID(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "Video", got.Name)
	assert.True(t, got.NextRenewalDate.Equal(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "family", got.Metadata["plan"])

	list, err := repo.ListByUser(1)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got.ShareWith(7)
	require.NoError(t, repo.Update(got))
	got.Unshare()
	require.NoError(t, repo.Update(got))

	got, err = repo.FindByID(sub.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ChainID)
	assert.False(t, got.IsShared)

	require.NoError(t, repo.Delete(sub.ID))
	_, err = repo.FindByID(sub.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.True(t, errors.Is(repo.Delete(sub.ID), apperr.ErrNotFound))
}

func TestSubscriptionRepository_FindDue(t *testing.T) {
	db := testutil.OpenTestDB(t)
	h := testutil.NewTestHelper(t)
	h.SeedUsers(db, 1)
	repo := NewSubscriptionRepository(db)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	due := h.CreateTestSubscription(1, "Due", time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	future := h.CreateTestSubscription(1, "Future", time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC))
	cancelled := h.CreateTestSubscription(1, "Cancelled", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cancelled.Status = models.SubscriptionCancelled
	for _, s := range []*models.Subscription{due, future, cancelled} {
		require.NoError(t, repo.Create(s))
	}

	list, err := repo.FindDue(now, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)
}
