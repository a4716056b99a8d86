package messages

import "time"

// Message models one direct message between two users. PostID is set when
// the message shares a post.
type Message struct {
	ID         string    `gorm:"column:id;primaryKey;size:190;not null"`
	SenderID   string    `gorm:"column:sender_id;size:190;not null;index"`
	ReceiverID string    `gorm:"column:receiver_id;size:190;not null;index"`
	Content    string    `gorm:"column:content;type:text;not null"`
	PostID     string    `gorm:"column:post_id;size:190"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "messages"
}

// Conversation summarizes the latest exchange with one counterpart.
type Conversation struct {
	UserID             string    `json:"userId"`
	UserName           string    `json:"userName"`
	LastMessageAt      time.Time `json:"lastMessageAt"`
	LastMessageContent string    `json:"lastMessageContent"`
}
