package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudience_IsKnownKind(t *testing.T) {
	for _, kind := range []AudienceKind{AudiencePublic, AudienceAllFriends, AudienceSingleFriend, AudienceGroups} {
		assert.True(t, Audience{Kind: kind}.IsKnownKind(), "kind %q", kind)
	}
	assert.False(t, Audience{Kind: "everyone"}.IsKnownKind())
	assert.False(t, Audience{Kind: ""}.IsKnownKind())
}

func TestPostModel_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	p := &Post{
		ID:       "p1",
		AuthorID: "alice",
		Content:  "hello",
		Audience: Audience{
			Kind:     AudienceGroups,
			GroupIDs: []string{"g1", "g2"},
		},
		CreatedAt: now,
	}

	m, err := NewPostModel(p)
	require.NoError(t, err)
	assert.Equal(t, "groups", m.AudienceKind)
	assert.JSONEq(t, `["g1","g2"]`, m.AudienceGroups)

	got := m.ToDomain()
	assert.Equal(t, p.Audience, got.Audience)
	assert.Equal(t, p.Content, got.Content)
	assert.True(t, got.CreatedAt.Equal(now))
}

func TestPostModel_SingleFriendTarget(t *testing.T) {
	p := &Post{
		ID:       "p1",
		AuthorID: "alice",
		Content:  "just for you",
		Audience: Audience{Kind: AudienceSingleFriend, TargetID: "bob"},
	}

	m, err := NewPostModel(p)
	require.NoError(t, err)
	assert.Equal(t, "bob", m.AudienceTarget)
	assert.Empty(t, m.AudienceGroups)

	got := m.ToDomain()
	assert.Equal(t, "bob", got.Audience.TargetID)
	assert.Nil(t, got.Audience.GroupIDs)
}

func TestPostModel_CorruptGroupListDropsGroups(t *testing.T) {
	// An undecodable group list must not fail the read; the post degrades
	// to an empty Groups audience.
	m := &PostModel{
		ID:             "p1",
		AuthorID:       "alice",
		Content:        "hello",
		AudienceKind:   "groups",
		AudienceGroups: "{not json",
	}

	got := m.ToDomain()
	assert.Equal(t, AudienceGroups, got.Audience.Kind)
	assert.Empty(t, got.Audience.GroupIDs)
}

func TestPostModel_LegacyKindSurvivesRoundTrip(t *testing.T) {
	m := &PostModel{
		ID:           "p1",
		AuthorID:     "alice",
		Content:      "old post",
		AudienceKind: "circle",
	}

	got := m.ToDomain()
	assert.Equal(t, AudienceKind("circle"), got.Audience.Kind)
	assert.False(t, got.Audience.IsKnownKind())
}
