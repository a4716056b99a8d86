package notifications

import (
	"errors"
	"fmt"
	"time"
)

// Kind enumerates the state changes that produce a notification. The values
// are wire-level identifiers consumed by clients; they must stay stable.
type Kind string

const (
	KindFriendRequest         Kind = "friendRequest"
	KindFriendRequestAccepted Kind = "friendRequestAccepted"
	KindFriendRequestRejected Kind = "friendRequestRejected"
	KindPostLiked             Kind = "postLiked"
	KindCommentLiked          Kind = "commentLiked"
	KindPostCommented         Kind = "postCommented"
	KindUserTagged            Kind = "userTagged"
	KindNewMessage            Kind = "newMessage"
)

// ErrUnknownKind indicates a kind value outside the closed enumeration.
var ErrUnknownKind = errors.New("notifications: unknown kind")

// ParseKind validates a raw kind value against the closed enumeration.
func ParseKind(value string) (Kind, error) {
	switch Kind(value) {
	case KindFriendRequest, KindFriendRequestAccepted, KindFriendRequestRejected,
		KindPostLiked, KindCommentLiked, KindPostCommented,
		KindUserTagged, KindNewMessage:
		return Kind(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
	}
}

// Notification is the durable record of a state change of interest to a
// recipient. Records are never deleted; the read flag is the only mutation.
type Notification struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	RecipientID string    `gorm:"column:recipient_id;size:190;not null;index:idx_notifications_recipient_created,priority:1"`
	SenderID    string    `gorm:"column:sender_id;size:190;not null"`
	Kind        Kind      `gorm:"column:kind;size:64;not null"`
	RelatedID   string    `gorm:"column:related_id;size:190;not null"`
	Message     string    `gorm:"column:message;type:text"`
	IsRead      bool      `gorm:"column:is_read;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index:idx_notifications_recipient_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}

// Page is one slice of a recipient's notification list, newest first.
type Page struct {
	Items              []Notification
	CurrentPage        int
	TotalPages         int
	TotalNotifications int64
}
