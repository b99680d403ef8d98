package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AudienceKind tags an audience descriptor.
type AudienceKind string

const (
	AudiencePublic       AudienceKind = "public"
	AudienceAllFriends   AudienceKind = "friends"
	AudienceSingleFriend AudienceKind = "friend"
	AudienceGroups       AudienceKind = "groups"
)

// MaxAudienceGroups caps how many groups a single post may target.
const MaxAudienceGroups = 5

// Audience is the tagged audience descriptor of a post. Kind selects which
// of the optional fields is meaningful: TargetID for AudienceSingleFriend,
// GroupIDs for AudienceGroups. It is set once at post creation and never
// changes afterwards.
type Audience struct {
	Kind     AudienceKind
	TargetID string
	GroupIDs []string
}

// IsKnownKind reports whether the kind is one of the four recognized tags.
// Rows written by older releases may carry kinds this build does not know;
// the resolver treats those as public.
func (a Audience) IsKnownKind() bool {
	switch a.Kind {
	case AudiencePublic, AudienceAllFriends, AudienceSingleFriend, AudienceGroups:
		return true
	}
	return false
}

// Post is the domain representation of a shared content item.
type Post struct {
	ID        string
	AuthorID  string
	Content   string
	Audience  Audience
	CreatedAt time.Time
}

// PostModel is the GORM model for posts. The audience descriptor is
// flattened into kind + target + JSON-encoded group ID list.
type PostModel struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)"`
	AuthorID       string    `gorm:"column:author_id;type:varchar(36);not null;index"`
	Content        string    `gorm:"type:text;not null"`
	AudienceKind   string    `gorm:"column:audience_kind;type:varchar(16);not null"`
	AudienceTarget string    `gorm:"column:audience_target;type:varchar(36)"`
	AudienceGroups string    `gorm:"column:audience_groups;type:text"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_posts_created_at,sort:desc"`
}

func (PostModel) TableName() string { return "posts" }

// NewPostModel flattens a domain post into its storage form.
func NewPostModel(p *Post) (*PostModel, error) {
	m := &PostModel{
		ID:             p.ID,
		AuthorID:       p.AuthorID,
		Content:        p.Content,
		AudienceKind:   string(p.Audience.Kind),
		AudienceTarget: p.Audience.TargetID,
		CreatedAt:      p.CreatedAt,
	}

	if len(p.Audience.GroupIDs) > 0 {
		data, err := json.Marshal(p.Audience.GroupIDs)
		if err != nil {
			return nil, fmt.Errorf("marshal audience groups: %w", err)
		}
		m.AudienceGroups = string(data)
	}

	return m, nil
}

// ToDomain converts a stored post back to its domain form. An undecodable
// group list is dropped rather than failing the read; the resolver then
// sees an empty Groups audience, which nobody but the author can view.
func (m *PostModel) ToDomain() *Post {
	aud := Audience{
		Kind:     AudienceKind(m.AudienceKind),
		TargetID: m.AudienceTarget,
	}

	if m.AudienceGroups != "" {
		var ids []string
		if err := json.Unmarshal([]byte(m.AudienceGroups), &ids); err == nil {
			aud.GroupIDs = ids
		}
	}

	return &Post{
		ID:        m.ID,
		AuthorID:  m.AuthorID,
		Content:   m.Content,
		Audience:  aud,
		CreatedAt: m.CreatedAt,
	}
}
