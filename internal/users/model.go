package users

import (
	"strings"
	"time"
)

const maxIdentifierLength = 190

// User models a registered account.
type User struct {
	ID              string    `gorm:"column:id;primaryKey;size:190;not null"`
	Name            string    `gorm:"column:name;size:320;not null"`
	Email           string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	PasswordHash    string    `gorm:"column:password_hash;size:190;not null"`
	Bio             string    `gorm:"column:bio;type:text"`
	ProfileImageURL string    `gorm:"column:profile_image_url;size:512"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// Summary is the minimal projection of a user embedded in other records,
// for example the sender block of a push payload.
type Summary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// SummaryOf projects the user into its embeddable form.
func SummaryOf(user User) Summary {
	return Summary{
		ID:              user.ID,
		Name:            user.Name,
		ProfileImageURL: user.ProfileImageURL,
	}
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
