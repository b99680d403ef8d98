package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/eventbroker"
)

var (
	// Validation
	ErrInvalidUserID   = errors.New("user id cannot be empty")
	ErrSelfReference   = errors.New("cannot befriend yourself")
	ErrEmptyContent    = errors.New("post content cannot be empty")
	ErrEmptyToken      = errors.New("device token cannot be empty")
	ErrInvalidAudience = errors.New("invalid audience descriptor")

	// State conflicts
	ErrAlreadyFriends = errors.New("already friends")
	ErrAlreadyPending = errors.New("friend request already pending")
	ErrNoSuchRequest  = errors.New("no such friend request")
	ErrNotFriends     = errors.New("not friends")

	// Audience / access
	ErrTargetNotFriend = errors.New("audience target is not a friend")
	ErrGroupNotFound   = errors.New("group not found")
	ErrNotGroupMember  = errors.New("author is not a member of the group")

	// Posts
	ErrPostNotFound   = errors.New("post not found")
	ErrPostNotVisible = errors.New("post not visible to viewer")

	// Infrastructure
	ErrUpstream = errors.New("upstream dependency unavailable")
)

// upstream tags an unexpected repository or store failure so the transport
// layer can answer 503 instead of a generic 500. Sentinel errors are mapped
// before this is applied; only raw infrastructure failures land here.
func upstream(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// FriendshipService defines the business logic for the friendship graph.
type FriendshipService interface {
	SendRequest(ctx context.Context, fromID, toID string) error
	AcceptRequest(ctx context.Context, accepterID, requesterID string) error
	RejectRequest(ctx context.Context, rejecterID, requesterID string) error
	CancelRequest(ctx context.Context, cancelerID, targetID string) error
	RemoveFriendship(ctx context.Context, userID, friendID string) error

	Status(ctx context.Context, viewerID, otherID string) (domain.FriendshipState, error)
	ListFriends(ctx context.Context, userID string, page, limit int) ([]string, error)
	ListPendingRequests(ctx context.Context, userID string, direction domain.RequestDirection, page, limit int) ([]domain.FriendRequest, error)
	FriendsCount(ctx context.Context, userID string) (int64, error)
}

// AudienceService classifies audience descriptors and decides per-viewer
// visibility. An empty viewerID means an unauthenticated viewer.
type AudienceService interface {
	ValidateAudience(ctx context.Context, authorID string, aud domain.Audience) error
	CanView(ctx context.Context, post *domain.Post, viewerID string) (bool, error)

	// FilterFeed applies CanView over the candidate sequence, preserving
	// order. Callers must filter before slicing pages, so a page of N
	// holds N visible posts.
	FilterFeed(ctx context.Context, posts []*domain.Post, viewerID string) ([]*domain.Post, error)
}

// PostService defines the business logic for shared content.
type PostService interface {
	CreatePost(ctx context.Context, authorID, content string, aud domain.Audience) (*domain.Post, error)
	GetPost(ctx context.Context, postID, viewerID string) (*domain.Post, error)
	Feed(ctx context.Context, viewerID string, page, limit int) ([]*domain.Post, error)
	ListByAuthor(ctx context.Context, authorID, viewerID string, page, limit int) ([]*domain.Post, error)
}

// FanoutService derives notification recipient sets and hands them to the
// push pipeline.
type FanoutService interface {
	ResolveRecipients(ctx context.Context, post *domain.Post) ([]string, error)
	Notify(ctx context.Context, post *domain.Post) error
	HandlePostCreated(ctx context.Context, event *eventbroker.PostCreatedEvent) error
}

// DeviceService registers push device tokens.
type DeviceService interface {
	RegisterToken(ctx context.Context, userID, token, platform string) error
}

func normalizePage(page, limit int) (offset, normalizedLimit int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return (page - 1) * limit, limit
}
