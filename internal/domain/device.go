package domain

import "time"

// DeviceTokenModel is the GORM model for push device tokens. One row per
// device; a user with several devices has several rows.
type DeviceTokenModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;type:varchar(36);not null;index"`
	Token     string    `gorm:"type:varchar(512);not null;uniqueIndex"`
	Platform  string    `gorm:"type:varchar(16)"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (DeviceTokenModel) TableName() string { return "device_tokens" }
