package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
)

// newTestDB opens a throwaway sqlite database backed by a temp file. A
// file, not :memory:, so every pooled connection sees the same data.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.FriendRequestModel{},
		&domain.FriendshipModel{},
		&domain.UserStatsModel{},
	))
	return db
}

func TestGormFriendshipRepo_RequestLifecycle(t *testing.T) {
	repo := NewGormFriendshipRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SendRequest(ctx, "alice", "bob"))

	// Resending is a conflict, and so is the reverse direction while the
	// original is still pending.
	assert.ErrorIs(t, repo.SendRequest(ctx, "alice", "bob"), ErrRequestExists)
	assert.ErrorIs(t, repo.SendRequest(ctx, "bob", "alice"), ErrRequestExists)

	// Only the addressee holds a request to accept.
	assert.ErrorIs(t, repo.AcceptRequest(ctx, "alice", "bob"), ErrRequestNotFound)

	require.NoError(t, repo.AcceptRequest(ctx, "bob", "alice"))

	// The pending row is gone once accepted.
	assert.ErrorIs(t, repo.AcceptRequest(ctx, "bob", "alice"), ErrRequestNotFound)
}

func TestGormFriendshipRepo_AcceptWritesSymmetricEdges(t *testing.T) {
	repo := NewGormFriendshipRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, repo.AcceptRequest(ctx, "bob", "alice"))

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		friends, err := repo.AreFriends(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, friends, "%s -> %s", pair[0], pair[1])
	}

	state, err := repo.State(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.StateFriends, state)

	for _, user := range []string{"alice", "bob"} {
		count, err := repo.FriendsCount(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, user)
	}

	// An established friendship rejects a fresh request.
	assert.ErrorIs(t, repo.SendRequest(ctx, "alice", "bob"), ErrAlreadyFriends)
}

func TestGormFriendshipRepo_StateTracksPendingDirection(t *testing.T) {
	repo := NewGormFriendshipRepository(newTestDB(t))
	ctx := context.Background()

	state, err := repo.State(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.StateNone, state)

	require.NoError(t, repo.SendRequest(ctx, "alice", "bob"))

	state, err = repo.State(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.StateRequestSent, state)

	state, err = repo.State(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.StateRequestReceived, state)
}

func TestGormFriendshipRepo_RemoveDeletesBothEdgesAndDecrements(t *testing.T) {
	repo := NewGormFriendshipRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, repo.AcceptRequest(ctx, "bob", "alice"))
	require.NoError(t, repo.RemoveFriendship(ctx, "alice", "bob"))

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		friends, err := repo.AreFriends(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.False(t, friends, "%s -> %s", pair[0], pair[1])
	}

	state, err := repo.State(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.StateNone, state)

	for _, user := range []string{"alice", "bob"} {
		count, err := repo.FriendsCount(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count, user)
	}

	assert.ErrorIs(t, repo.RemoveFriendship(ctx, "alice", "bob"), ErrFriendshipNotFound)
}

func TestGormFriendshipRepo_CounterIncrementsOnExistingStatsRow(t *testing.T) {
	// Re-befriending after a removal hits the upsert's update path rather
	// than inserting a fresh stats row.
	repo := NewGormFriendshipRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, repo.AcceptRequest(ctx, "bob", "alice"))
	require.NoError(t, repo.RemoveFriendship(ctx, "alice", "bob"))

	require.NoError(t, repo.SendRequest(ctx, "bob", "alice"))
	require.NoError(t, repo.AcceptRequest(ctx, "alice", "bob"))

	for _, user := range []string{"alice", "bob"} {
		count, err := repo.FriendsCount(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, user)
	}
}

func TestGormFriendshipRepo_DeleteRequestAndListing(t *testing.T) {
	repo := NewGormFriendshipRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SendRequest(ctx, "alice", "bob"))
	require.NoError(t, repo.SendRequest(ctx, "carol", "bob"))

	incoming, err := repo.ListRequests(ctx, "bob", domain.DirectionIncoming, 0, 10)
	require.NoError(t, err)
	assert.Len(t, incoming, 2)

	outgoing, err := repo.ListRequests(ctx, "alice", domain.DirectionOutgoing, 0, 10)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, "bob", outgoing[0].AddresseeID)

	require.NoError(t, repo.DeleteRequest(ctx, "alice", "bob"))
	assert.ErrorIs(t, repo.DeleteRequest(ctx, "alice", "bob"), ErrRequestNotFound)

	// alice can ask again once the earlier request is gone.
	require.NoError(t, repo.SendRequest(ctx, "alice", "bob"))
}

func TestGormFriendshipRepo_FriendListing(t *testing.T) {
	repo := NewGormFriendshipRepository(newTestDB(t))
	ctx := context.Background()

	for _, friend := range []string{"bob", "carol", "dave"} {
		require.NoError(t, repo.SendRequest(ctx, "alice", friend))
		require.NoError(t, repo.AcceptRequest(ctx, friend, "alice"))
	}

	ids, err := repo.ListFriendIDs(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "carol", "dave"}, ids)

	page, err := repo.ListFriends(ctx, "alice", 0, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	flags, err := repo.BatchAreFriends(ctx, "alice", []string{"bob", "eve"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"bob": true, "eve": false}, flags)

	count, err := repo.FriendsCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
