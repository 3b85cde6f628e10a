package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamWentworth/pokesync/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testInstance(instanceID, userID string, lastUpdate int64) *model.PokemonInstance {
	cp := 1500
	return &model.PokemonInstance{
		InstanceID:    instanceID,
		UserID:        userID,
		PokemonID:     25,
		CP:            &cp,
		IsOwned:       true,
		DateAdded:     time.Now().UTC(),
		LastUpdate:    lastUpdate,
		NotTradeList:  "{}",
		NotWantedList: "{}",
		WantedFilters: "{}",
		TradeFilters:  "{}",
	}
}

func TestUsers_CreateGetResolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lat, lng := 49.2, -123.1
	require.NoError(t, s.CreateUser(ctx, &model.User{
		UserID: "u-1", Username: "ash", Latitude: &lat, Longitude: &lng,
	}))

	u, err := s.GetUser(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "ash", u.Username)
	require.NotNil(t, u.Latitude)
	assert.Equal(t, 49.2, *u.Latitude)

	u, err = s.GetUser(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, u, "missing user is (nil, nil)")

	id, err := s.UserIDByUsername(ctx, "ash")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)

	id, err = s.UserIDByUsername(ctx, "misty")
	require.NoError(t, err)
	assert.Equal(t, "", id, "unknown username resolves to empty id")
}

func TestUpdateUserLocation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &model.User{UserID: "u-1", Username: "ash"}))

	lat, lng := 35.6, 139.7
	require.NoError(t, s.UpdateUserLocation(ctx, "u-1", &lat, &lng))

	u, err := s.GetUser(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, u.Longitude)
	assert.Equal(t, 139.7, *u.Longitude)
}

func TestUpsertInstance_Outcomes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// First write inserts.
	outcome, err := s.UpsertInstance(ctx, testInstance("i-1", "u-1", 100))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	// Strictly greater clock replaces.
	newer := testInstance("i-1", "u-1", 200)
	nick := "Sparky"
	newer.Nickname = &nick
	outcome, err = s.UpsertInstance(ctx, newer)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	// Equal clock is stale.
	outcome, err = s.UpsertInstance(ctx, testInstance("i-1", "u-1", 200))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, outcome)

	// Lower clock is stale and leaves the row untouched.
	older := testInstance("i-1", "u-1", 150)
	outcome, err = s.UpsertInstance(ctx, older)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStale, outcome)

	got, err := s.ListInstancesByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(200), got[0].LastUpdate)
	require.NotNil(t, got[0].Nickname)
	assert.Equal(t, "Sparky", *got[0].Nickname)
}

func TestUpsertInstance_NullableFieldsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inst := testInstance("i-1", "u-1", 1)
	inst.CP = nil
	inst.Weight = nil

	_, err := s.UpsertInstance(ctx, inst)
	require.NoError(t, err)

	got, err := s.ListInstancesByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].CP)
	assert.Nil(t, got[0].Weight)
	assert.Equal(t, "{}", got[0].NotTradeList)
}

func TestDeleteInstance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertInstance(ctx, testInstance("i-1", "u-1", 100))
	require.NoError(t, err)

	removed, err := s.DeleteInstance(ctx, "i-1")
	require.NoError(t, err)
	assert.True(t, removed)

	// Deleting again is a no-op.
	removed, err = s.DeleteInstance(ctx, "i-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestUpsertTrade_ReplaceOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTrade(ctx, &model.Trade{
		TradeID:          "tr-1",
		UserIDProposed:   "u-1",
		UsernameProposed: "ash",
		Status:           model.TradeStatusProposed,
		FriendshipLevel:  "Good",
	}))

	// Overwrite is unconditional, regardless of arrival order.
	require.NoError(t, s.UpsertTrade(ctx, &model.Trade{
		TradeID:          "tr-1",
		UserIDProposed:   "u-1",
		UsernameProposed: "ash",
		Status:           model.TradeStatusCompleted,
		FriendshipLevel:  "Ultra",
	}))

	trades, err := s.ListTradesByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, model.TradeStatusCompleted, trades[0].Status)
	assert.Equal(t, "Ultra", trades[0].FriendshipLevel)
}

func TestListTradesByUser_EitherParty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTrade(ctx, &model.Trade{
		TradeID: "tr-1", UserIDProposed: "u-1", UserIDAccepting: "u-2",
		Status: model.TradeStatusProposed, FriendshipLevel: "Good",
	}))
	require.NoError(t, s.UpsertTrade(ctx, &model.Trade{
		TradeID: "tr-2", UserIDProposed: "u-3", UserIDAccepting: "u-1",
		Status: model.TradeStatusProposed, FriendshipLevel: "Good",
	}))
	require.NoError(t, s.UpsertTrade(ctx, &model.Trade{
		TradeID: "tr-3", UserIDProposed: "u-3", UserIDAccepting: "u-4",
		Status: model.TradeStatusProposed, FriendshipLevel: "Good",
	}))

	trades, err := s.ListTradesByUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
