package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
)

// GormGroupRepository implements the read-only GroupRepository using GORM.
// The groups and group_members tables belong to the groups service; this
// repository never writes them.
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGormGroupRepository creates a new GORM-backed group roster reader.
func NewGormGroupRepository(db *gorm.DB) *GormGroupRepository {
	return &GormGroupRepository{db: db}
}

// GetGroup loads a single group.
func (r *GormGroupRepository) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	var model domain.GroupModel
	err := r.db.WithContext(ctx).
		Where("id = ?", groupID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// IsMember checks whether userID belongs to groupID.
func (r *GormGroupRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.GroupMemberModel{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MemberOfAny checks whether userID belongs to at least one of groupIDs.
func (r *GormGroupRepository) MemberOfAny(ctx context.Context, groupIDs []string, userID string) (bool, error) {
	if len(groupIDs) == 0 {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&domain.GroupMemberModel{}).
		Where("group_id IN ? AND user_id = ?", groupIDs, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListMemberIDs returns the deduplicated union of members across groupIDs.
func (r *GormGroupRepository) ListMemberIDs(ctx context.Context, groupIDs []string) ([]string, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	var ids []string
	err := r.db.WithContext(ctx).Model(&domain.GroupMemberModel{}).
		Distinct("user_id").
		Where("group_id IN ?", groupIDs).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Ensure interface is satisfied at compile time.
var _ GroupRepository = (*GormGroupRepository)(nil)
