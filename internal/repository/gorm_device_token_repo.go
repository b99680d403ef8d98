package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
)

// GormDeviceTokenRepository implements DeviceTokenRepository using GORM.
type GormDeviceTokenRepository struct {
	db *gorm.DB
}

// NewGormDeviceTokenRepository creates a new GORM-backed device token repository.
func NewGormDeviceTokenRepository(db *gorm.DB) *GormDeviceTokenRepository {
	return &GormDeviceTokenRepository{db: db}
}

// Upsert registers a device token for a user. A token re-registered by a
// different account moves to that account, which covers shared devices and
// re-login.
func (r *GormDeviceTokenRepository) Upsert(ctx context.Context, userID, token, platform string) error {
	model := domain.DeviceTokenModel{
		UserID:   userID,
		Token:    token,
		Platform: platform,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "updated_at"}),
	}).Create(&model).Error
}

// GetTokens returns all device tokens registered by the given users.
// Users without a registered device simply contribute nothing.
func (r *GormDeviceTokenRepository) GetTokens(ctx context.Context, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	var tokens []string
	err := r.db.WithContext(ctx).Model(&domain.DeviceTokenModel{}).
		Where("user_id IN ?", userIDs).
		Pluck("token", &tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// Ensure interface is satisfied at compile time.
var _ DeviceTokenRepository = (*GormDeviceTokenRepository)(nil)
