package comments

import (
	"encoding/json"
	"time"
)

// Comment models one comment on a post. Liker ids are stored as a JSON
// array in a text column.
type Comment struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	PostID    string    `gorm:"column:post_id;size:190;not null;index"`
	UserID    string    `gorm:"column:user_id;size:190;not null"`
	Content   string    `gorm:"column:content;type:text;not null"`
	Likes     string    `gorm:"column:likes;type:text;not null;default:'[]'"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// LikedBy decodes the liker id list.
func (c Comment) LikedBy() []string {
	if c.Likes == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(c.Likes), &values); err != nil {
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
