package friends

import "time"

// RequestStatus enumerates the lifecycle of a friend request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

// FriendRequest models one directed request between two users.
type FriendRequest struct {
	ID         string        `gorm:"column:id;primaryKey;size:190;not null"`
	SenderID   string        `gorm:"column:sender_id;size:190;not null;index"`
	ReceiverID string        `gorm:"column:receiver_id;size:190;not null;index"`
	Status     RequestStatus `gorm:"column:status;size:32;not null;default:'pending'"`
	CreatedAt  time.Time     `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (FriendRequest) TableName() string {
	return "friend_requests"
}

// Friendship models an established, undirected friendship.
type Friendship struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	UserAID   string    `gorm:"column:user_a_id;size:190;not null;index"`
	UserBID   string    `gorm:"column:user_b_id;size:190;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Friendship) TableName() string {
	return "friendships"
}
