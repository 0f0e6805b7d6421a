package accounts_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shDupont/merculy/internal/accounts"
	"github.com/shDupont/merculy/internal/models"
)

func openStore(t *testing.T) *accounts.Store {
	t.Helper()
	store, err := accounts.Open(context.Background(), filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndGetUser(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	u := models.User{
		ID:               "u1",
		Email:            "ana@example.com",
		Name:             "Ana",
		Interests:        []string{"tecnologia", "economia"},
		FollowedChannels: []string{"folha"},
		NewsletterFormat: models.FormatByTopic,
		Active:           true,
	}
	require.NoError(t, store.SaveUser(ctx, u))

	got, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, u, got)

	u.Name = "Ana Maria"
	u.Interests = nil
	require.NoError(t, store.SaveUser(ctx, u))

	got, err = store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Ana Maria", got.Name)
	require.Empty(t, got.Interests)
}

func TestGetUserNotFound(t *testing.T) {
	_, err := openStore(t).GetUser(context.Background(), "missing")
	require.ErrorIs(t, err, accounts.ErrNotFound)
}

func TestSaveUserValidation(t *testing.T) {
	require.Error(t, openStore(t).SaveUser(context.Background(), models.User{ID: "u1"}))
}

func TestListActiveUsers(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	require.NoError(t, store.SaveUser(ctx, models.User{ID: "b", Email: "b@example.com", Active: true}))
	require.NoError(t, store.SaveUser(ctx, models.User{ID: "a", Email: "a@example.com", Active: true}))
	require.NoError(t, store.SaveUser(ctx, models.User{ID: "c", Email: "c@example.com", Active: false}))

	users, err := store.ListActiveUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "a", users[0].ID)
	require.Equal(t, "b", users[1].ID)
	require.Equal(t, models.FormatSingle, users[0].NewsletterFormat)
}
