package domain

import "time"

// FriendshipState is the derived state of a user pair. It is never stored;
// it is computed from the pending-request and friendship tables.
type FriendshipState string

const (
	StateNone            FriendshipState = "none"
	StateRequestSent     FriendshipState = "request_sent"
	StateRequestReceived FriendshipState = "request_received"
	StateFriends         FriendshipState = "friends"
)

// RequestDirection selects which side of the pending-request index to list.
type RequestDirection string

const (
	DirectionIncoming RequestDirection = "in"
	DirectionOutgoing RequestDirection = "out"
)

// FriendRequestModel is the GORM model for pending friend requests.
// A row exists only while the request is pending; accept, reject, and
// cancel all delete it.
type FriendRequestModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	RequesterID string    `gorm:"column:requester_id;type:varchar(36);not null;uniqueIndex:uidx_pending_pair"`
	AddresseeID string    `gorm:"column:addressee_id;type:varchar(36);not null;uniqueIndex:uidx_pending_pair"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (FriendRequestModel) TableName() string { return "friend_requests" }

// FriendshipModel is the GORM model for friendship edges. A friendship
// {A,B} is stored as two rows, (A,B) and (B,A), written and deleted in the
// same transaction so the relation stays symmetric.
type FriendshipModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;type:varchar(36);not null;uniqueIndex:uidx_friend_edge"`
	FriendID  string    `gorm:"column:friend_id;type:varchar(36);not null;uniqueIndex:uidx_friend_edge"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (FriendshipModel) TableName() string { return "friendships" }

// UserStatsModel holds denormalized per-user counters. friends_count is
// updated inside the same transaction as the friendship edges it counts.
type UserStatsModel struct {
	UserID       string    `gorm:"column:user_id;primaryKey;type:varchar(36)"`
	FriendsCount int64     `gorm:"column:friends_count;not null;default:0"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserStatsModel) TableName() string { return "user_stats" }

// FriendRequest is the domain representation of a pending request.
type FriendRequest struct {
	RequesterID string
	AddresseeID string
	CreatedAt   time.Time
}
