package domain

import "time"

// Group is a read-only view of a group owned by the groups service. This
// engine only consults rosters; it never creates or mutates groups.
type Group struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// GroupModel is the GORM model for the externally-owned groups table.
type GroupModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	Name      string    `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (GroupModel) TableName() string { return "groups" }

// GroupMemberModel is the GORM model for group rosters.
type GroupMemberModel struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	GroupID string `gorm:"column:group_id;type:varchar(36);not null;uniqueIndex:uidx_group_member"`
	UserID  string `gorm:"column:user_id;type:varchar(36);not null;uniqueIndex:uidx_group_member;index"`
}

func (GroupMemberModel) TableName() string { return "group_members" }

func (m *GroupModel) ToDomain() *Group {
	return &Group{
		ID:        m.ID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}
