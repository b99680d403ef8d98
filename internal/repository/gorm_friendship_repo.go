package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
)

// isUniqueViolation reports whether err is a unique-constraint violation.
// GORM v1.25+ wraps these as gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// GormFriendshipRepository implements FriendshipRepository using GORM.
type GormFriendshipRepository struct {
	db *gorm.DB
}

// NewGormFriendshipRepository creates a new GORM-backed friendship repository.
func NewGormFriendshipRepository(db *gorm.DB) *GormFriendshipRepository {
	return &GormFriendshipRepository{db: db}
}

// SendRequest records a pending request from requesterID to addresseeID.
// The whole transition is validated inside one transaction: an existing
// friendship or a pending request in either direction rejects the call
// before anything is written.
func (r *GormFriendshipRepository) SendRequest(ctx context.Context, requesterID, addresseeID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&domain.FriendshipModel{}).
			Where("user_id = ? AND friend_id = ?", requesterID, addresseeID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyFriends
		}

		// Pending in either direction blocks a new request. A mutual
		// handshake (B already asked A) is reported as a conflict, not
		// auto-accepted.
		err = tx.Model(&domain.FriendRequestModel{}).
			Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
				requesterID, addresseeID, addresseeID, requesterID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrRequestExists
		}

		model := domain.FriendRequestModel{
			RequesterID: requesterID,
			AddresseeID: addresseeID,
		}
		if err := tx.Create(&model).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrRequestExists
			}
			return err
		}
		return nil
	})
}

// AcceptRequest promotes a pending request into a friendship: the pending
// row is deleted, both symmetric edges are inserted, and both users'
// friends_count is incremented — all in one transaction.
func (r *GormFriendshipRepository) AcceptRequest(ctx context.Context, accepterID, requesterID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("requester_id = ? AND addressee_id = ?", requesterID, accepterID).
			Delete(&domain.FriendRequestModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRequestNotFound
		}

		edges := []domain.FriendshipModel{
			{UserID: accepterID, FriendID: requesterID},
			{UserID: requesterID, FriendID: accepterID},
		}
		if err := tx.Create(&edges).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyFriends
			}
			return err
		}

		if err := incrFriendsCount(tx, accepterID); err != nil {
			return err
		}
		return incrFriendsCount(tx, requesterID)
	})
}

// DeleteRequest removes the pending request from requesterID to
// addresseeID. Reject and cancel both land here; they only differ in which
// side the caller occupies.
func (r *GormFriendshipRepository) DeleteRequest(ctx context.Context, requesterID, addresseeID string) error {
	result := r.db.WithContext(ctx).
		Where("requester_id = ? AND addressee_id = ?", requesterID, addresseeID).
		Delete(&domain.FriendRequestModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRequestNotFound
	}
	return nil
}

// RemoveFriendship deletes both symmetric edges and decrements both
// counters in one transaction.
func (r *GormFriendshipRepository) RemoveFriendship(ctx context.Context, userID, friendID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("user_id = ? AND friend_id = ?", userID, friendID).
			Delete(&domain.FriendshipModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrFriendshipNotFound
		}

		if err := tx.
			Where("user_id = ? AND friend_id = ?", friendID, userID).
			Delete(&domain.FriendshipModel{}).Error; err != nil {
			return err
		}

		if err := decrFriendsCount(tx, userID); err != nil {
			return err
		}
		return decrFriendsCount(tx, friendID)
	})
}

// State derives the relationship state between viewerID and otherID.
func (r *GormFriendshipRepository) State(ctx context.Context, viewerID, otherID string) (domain.FriendshipState, error) {
	friends, err := r.AreFriends(ctx, viewerID, otherID)
	if err != nil {
		return domain.StateNone, err
	}
	if friends {
		return domain.StateFriends, nil
	}

	var requests []domain.FriendRequestModel
	err = r.db.WithContext(ctx).
		Where("(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
			viewerID, otherID, otherID, viewerID).
		Find(&requests).Error
	if err != nil {
		return domain.StateNone, err
	}

	for _, req := range requests {
		if req.RequesterID == viewerID {
			return domain.StateRequestSent, nil
		}
		return domain.StateRequestReceived, nil
	}
	return domain.StateNone, nil
}

// AreFriends checks a single friendship edge. Edges are symmetric, so one
// direction suffices.
func (r *GormFriendshipRepository) AreFriends(ctx context.Context, userID, otherID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.FriendshipModel{}).
		Where("user_id = ? AND friend_id = ?", userID, otherID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// BatchAreFriends checks whether userID is friends with each of targetIDs.
func (r *GormFriendshipRepository) BatchAreFriends(ctx context.Context, userID string, targetIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		result[id] = false
	}

	if len(targetIDs) == 0 {
		return result, nil
	}

	var models []domain.FriendshipModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND friend_id IN ?", userID, targetIDs).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	for _, m := range models {
		result[m.FriendID] = true
	}
	return result, nil
}

// ListFriends returns a page of friend IDs, newest friendship first.
func (r *GormFriendshipRepository) ListFriends(ctx context.Context, userID string, offset, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.FriendshipModel{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Pluck("friend_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListFriendIDs returns the full friend set of a user. Used by fan-out.
func (r *GormFriendshipRepository) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.FriendshipModel{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListRequests returns a page of pending requests in the given direction,
// newest first.
func (r *GormFriendshipRepository) ListRequests(ctx context.Context, userID string, direction domain.RequestDirection, offset, limit int) ([]domain.FriendRequest, error) {
	query := r.db.WithContext(ctx).Model(&domain.FriendRequestModel{})
	if direction == domain.DirectionIncoming {
		query = query.Where("addressee_id = ?", userID)
	} else {
		query = query.Where("requester_id = ?", userID)
	}

	var models []domain.FriendRequestModel
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error
	if err != nil {
		return nil, err
	}

	requests := make([]domain.FriendRequest, 0, len(models))
	for _, m := range models {
		requests = append(requests, domain.FriendRequest{
			RequesterID: m.RequesterID,
			AddresseeID: m.AddresseeID,
			CreatedAt:   m.CreatedAt,
		})
	}
	return requests, nil
}

// FriendsCount reads the denormalized counter. A user without a stats row
// has no friends yet.
func (r *GormFriendshipRepository) FriendsCount(ctx context.Context, userID string) (int64, error) {
	var stats domain.UserStatsModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&stats).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return stats.FriendsCount, nil
}

// incrFriendsCount bumps the counter, creating the stats row on first use.
func incrFriendsCount(tx *gorm.DB, userID string) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"friends_count": gorm.Expr("user_stats.friends_count + 1"),
		}),
	}).Create(&domain.UserStatsModel{UserID: userID, FriendsCount: 1}).Error
}

func decrFriendsCount(tx *gorm.DB, userID string) error {
	return tx.Model(&domain.UserStatsModel{}).
		Where("user_id = ? AND friends_count > 0", userID).
		Update("friends_count", gorm.Expr("friends_count - 1")).Error
}

// Ensure interface is satisfied at compile time.
var _ FriendshipRepository = (*GormFriendshipRepository)(nil)
