package service

import (
	"context"
	"strings"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/repository"
)

// deviceService implements DeviceService.
type deviceService struct {
	tokens repository.DeviceTokenRepository
}

// NewDeviceService creates a new DeviceService instance.
func NewDeviceService(tokens repository.DeviceTokenRepository) DeviceService {
	return &deviceService{tokens: tokens}
}

// RegisterToken stores or refreshes a push token for the user's device.
func (s *deviceService) RegisterToken(ctx context.Context, userID, token, platform string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	return upstream(s.tokens.Upsert(ctx, userID, token, platform))
}

// Ensure interface is satisfied at compile time.
var _ DeviceService = (*deviceService)(nil)
