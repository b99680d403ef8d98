package repository

import (
	"context"
	"errors"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
)

var (
	ErrRequestExists      = errors.New("friend request already pending")
	ErrAlreadyFriends     = errors.New("users are already friends")
	ErrRequestNotFound    = errors.New("friend request not found")
	ErrFriendshipNotFound = errors.New("friendship not found")
	ErrPostNotFound       = errors.New("post not found")
	ErrGroupNotFound      = errors.New("group not found")
)

// FriendshipRepository defines persistence operations for the friendship
// graph. Every mutating method validates the full transition inside a
// single transaction, so a failed call leaves no partial state behind.
type FriendshipRepository interface {
	SendRequest(ctx context.Context, requesterID, addresseeID string) error
	AcceptRequest(ctx context.Context, accepterID, requesterID string) error
	DeleteRequest(ctx context.Context, requesterID, addresseeID string) error
	RemoveFriendship(ctx context.Context, userID, friendID string) error

	State(ctx context.Context, viewerID, otherID string) (domain.FriendshipState, error)
	AreFriends(ctx context.Context, userID, otherID string) (bool, error)
	BatchAreFriends(ctx context.Context, userID string, targetIDs []string) (map[string]bool, error)

	ListFriends(ctx context.Context, userID string, offset, limit int) ([]string, error)
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)
	ListRequests(ctx context.Context, userID string, direction domain.RequestDirection, offset, limit int) ([]domain.FriendRequest, error)
	FriendsCount(ctx context.Context, userID string) (int64, error)
}

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Save(ctx context.Context, post *domain.Post) error
	FindByID(ctx context.Context, postID string) (*domain.Post, error)

	// ListRecent returns the newest posts regardless of audience; the
	// audience resolver filters them per viewer before pagination.
	ListRecent(ctx context.Context, limit int) ([]*domain.Post, error)
	ListByAuthor(ctx context.Context, authorID string, limit int) ([]*domain.Post, error)
}

// GroupRepository is the read-only view onto group rosters owned by the
// groups service.
type GroupRepository interface {
	GetGroup(ctx context.Context, groupID string) (*domain.Group, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	MemberOfAny(ctx context.Context, groupIDs []string, userID string) (bool, error)

	// ListMemberIDs returns the deduplicated union of members across groups.
	ListMemberIDs(ctx context.Context, groupIDs []string) ([]string, error)
}

// DeviceTokenRepository defines persistence operations for push tokens.
type DeviceTokenRepository interface {
	Upsert(ctx context.Context, userID, token, platform string) error
	GetTokens(ctx context.Context, userIDs []string) ([]string, error)
}
