package posts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type enumerates the supported post flavors.
type Type string

const (
	TypeText     Type = "text"
	TypePhoto    Type = "photo"
	TypeVideo    Type = "video"
	TypeFeeling  Type = "feeling"
	TypeActivity Type = "activity"
)

// ErrUnknownType indicates a post type outside the enumeration.
var ErrUnknownType = errors.New("posts: unknown post type")

// ParseType validates a raw post type value.
func ParseType(value string) (Type, error) {
	switch Type(strings.TrimSpace(value)) {
	case TypeText, TypePhoto, TypeVideo, TypeFeeling, TypeActivity:
		return Type(strings.TrimSpace(value)), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, value)
	}
}

// Post models a published post. Tagged user ids and liker ids are stored as
// JSON arrays in text columns.
type Post struct {
	ID            string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserID        string    `gorm:"column:user_id;size:190;not null;index"`
	Type          Type      `gorm:"column:post_type;size:32;not null"`
	Text          string    `gorm:"column:text;type:text"`
	PhotoURL      string    `gorm:"column:photo_url;size:512"`
	VideoURL      string    `gorm:"column:video_url;size:512"`
	TaggedUserIDs string    `gorm:"column:tagged_user_ids;type:text;not null;default:'[]'"`
	Likes         string    `gorm:"column:likes;type:text;not null;default:'[]'"`
	SharedPostID  string    `gorm:"column:shared_post_id;size:190"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "posts"
}

// TaggedUsers decodes the tagged user id list.
func (p Post) TaggedUsers() []string {
	return decodeIDList(p.TaggedUserIDs)
}

// LikedBy decodes the liker id list.
func (p Post) LikedBy() []string {
	return decodeIDList(p.Likes)
}

func decodeIDList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}

func encodeIDList(values []string) string {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}
