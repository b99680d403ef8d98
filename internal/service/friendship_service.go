package service

import (
	"context"
	"errors"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/repository"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/store"
	pkglog "github.com/OmerEfron/friendlinesv2.0-sub002/pkg/log"
)

// friendshipService implements FriendshipService.
type friendshipService struct {
	repo  repository.FriendshipRepository
	store store.FriendCountStore
}

// NewFriendshipService creates a new FriendshipService instance.
func NewFriendshipService(repo repository.FriendshipRepository, store store.FriendCountStore) FriendshipService {
	return &friendshipService{
		repo:  repo,
		store: store,
	}
}

// SendRequest records a pending friend request from fromID to toID.
func (s *friendshipService) SendRequest(ctx context.Context, fromID, toID string) error {
	if fromID == "" || toID == "" {
		return ErrInvalidUserID
	}
	if fromID == toID {
		return ErrSelfReference
	}

	if err := s.repo.SendRequest(ctx, fromID, toID); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyFriends):
			return ErrAlreadyFriends
		case errors.Is(err, repository.ErrRequestExists):
			return ErrAlreadyPending
		}
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str("from_id", fromID).
			Str("to_id", toID).
			Msg("failed to send friend request")
		return upstream(err)
	}

	return nil
}

// AcceptRequest turns a pending request into a friendship. The repository
// commits edges and counters in one transaction; the cached counts are
// nudged afterwards, best effort.
func (s *friendshipService) AcceptRequest(ctx context.Context, accepterID, requesterID string) error {
	if accepterID == "" || requesterID == "" {
		return ErrInvalidUserID
	}

	if err := s.repo.AcceptRequest(ctx, accepterID, requesterID); err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return ErrNoSuchRequest
		}
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str("accepter_id", accepterID).
			Str("requester_id", requesterID).
			Msg("failed to accept friend request")
		return upstream(err)
	}

	s.bumpCachedCounts(ctx, accepterID, requesterID, true)
	return nil
}

// RejectRequest drops a pending request addressed to rejecterID.
func (s *friendshipService) RejectRequest(ctx context.Context, rejecterID, requesterID string) error {
	if rejecterID == "" || requesterID == "" {
		return ErrInvalidUserID
	}

	err := s.repo.DeleteRequest(ctx, requesterID, rejecterID)
	if errors.Is(err, repository.ErrRequestNotFound) {
		return ErrNoSuchRequest
	}
	return upstream(err)
}

// CancelRequest withdraws a pending request the caller sent earlier.
func (s *friendshipService) CancelRequest(ctx context.Context, cancelerID, targetID string) error {
	if cancelerID == "" || targetID == "" {
		return ErrInvalidUserID
	}

	err := s.repo.DeleteRequest(ctx, cancelerID, targetID)
	if errors.Is(err, repository.ErrRequestNotFound) {
		return ErrNoSuchRequest
	}
	return upstream(err)
}

// RemoveFriendship dissolves an existing friendship in both directions.
func (s *friendshipService) RemoveFriendship(ctx context.Context, userID, friendID string) error {
	if userID == "" || friendID == "" {
		return ErrInvalidUserID
	}
	if userID == friendID {
		return ErrSelfReference
	}

	if err := s.repo.RemoveFriendship(ctx, userID, friendID); err != nil {
		if errors.Is(err, repository.ErrFriendshipNotFound) {
			return ErrNotFriends
		}
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str("user_id", userID).
			Str("friend_id", friendID).
			Msg("failed to remove friendship")
		return upstream(err)
	}

	s.bumpCachedCounts(ctx, userID, friendID, false)
	return nil
}

// Status derives the relationship state from viewerID's perspective. A
// user is never their own friend, so asking about oneself is simply None.
func (s *friendshipService) Status(ctx context.Context, viewerID, otherID string) (domain.FriendshipState, error) {
	if viewerID == "" || otherID == "" {
		return domain.StateNone, ErrInvalidUserID
	}
	if viewerID == otherID {
		return domain.StateNone, nil
	}
	state, err := s.repo.State(ctx, viewerID, otherID)
	return state, upstream(err)
}

// ListFriends returns a page of the user's friends, newest first.
func (s *friendshipService) ListFriends(ctx context.Context, userID string, page, limit int) ([]string, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	offset, limit := normalizePage(page, limit)
	friends, err := s.repo.ListFriends(ctx, userID, offset, limit)
	return friends, upstream(err)
}

// ListPendingRequests returns a page of pending requests for the user.
func (s *friendshipService) ListPendingRequests(ctx context.Context, userID string, direction domain.RequestDirection, page, limit int) ([]domain.FriendRequest, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if direction != domain.DirectionOutgoing {
		direction = domain.DirectionIncoming
	}
	offset, limit := normalizePage(page, limit)
	requests, err := s.repo.ListRequests(ctx, userID, direction, offset, limit)
	return requests, upstream(err)
}

// FriendsCount returns the user's friend count.
// It checks Redis first; on miss it reads the denormalized counter from the
// database, populates Redis, and records a hot key access.
func (s *friendshipService) FriendsCount(ctx context.Context, userID string) (int64, error) {
	l := pkglog.Ctx(ctx)

	if userID == "" {
		return 0, ErrInvalidUserID
	}

	// Always record access for hot key tracking (best-effort)
	if err := s.store.RecordAccess(ctx, userID); err != nil {
		l.Warn().Err(err).Str("user_id", userID).Msg("failed to record hot key access")
	}

	// Try Redis cache first
	count, found, err := s.store.GetFriendsCount(ctx, userID)
	if err != nil {
		l.Warn().Err(err).Str("user_id", userID).Msg("redis get friends count failed, falling back to db")
	}
	if found {
		return count, nil
	}

	// Cache miss: read the denormalized counter
	count, err = s.repo.FriendsCount(ctx, userID)
	if err != nil {
		l.Error().Err(err).Str("user_id", userID).Msg("failed to get friends count from db")
		return 0, upstream(err)
	}

	// Populate Redis
	if err := s.store.SetFriendsCount(ctx, userID, count); err != nil {
		l.Warn().Err(err).Str("user_id", userID).Msg("failed to set friends count in redis")
	}

	return count, nil
}

// bumpCachedCounts adjusts the cached counters for both sides of a
// friendship change. The database already holds the truth; a failure here
// only means a stale cache entry until the reconciler's next pass.
func (s *friendshipService) bumpCachedCounts(ctx context.Context, a, b string, up bool) {
	l := pkglog.Ctx(ctx)

	bump := s.store.CondDecrFriendsCount
	if up {
		bump = s.store.CondIncrFriendsCount
	}

	for _, id := range []string{a, b} {
		if err := bump(ctx, id); err != nil {
			l.Warn().Err(err).Str("user_id", id).Msg("failed to adjust cached friends count")
		}
	}
}

// Ensure interface is satisfied at compile time.
var _ FriendshipService = (*friendshipService)(nil)
