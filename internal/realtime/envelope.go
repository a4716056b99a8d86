package realtime

import (
	"time"

	"github.com/friendbook-app/backend/internal/notifications"
	"github.com/friendbook-app/backend/internal/users"
)

// Envelope type tags. Clients ignore envelopes whose type they do not
// recognize, so new tags can be added without breaking older clients.
const (
	EnvelopeReady        = "ready"
	EnvelopeHeartbeat    = "heartbeat"
	EnvelopeNotification = "new_notification"
)

// Envelope is the tagged wire frame sent over a live connection.
type Envelope struct {
	Type    string       `json:"type"`
	Payload *PushPayload `json:"payload,omitempty"`
}

// PushPayload is the wire projection of a notification record. It carries
// enough of the record for the client to render it without a follow-up
// fetch. Absent optional fields are omitted rather than sent as null.
type PushPayload struct {
	ID          string             `json:"id"`
	RecipientID string             `json:"recipientId"`
	Sender      users.Summary      `json:"sender"`
	Kind        notifications.Kind `json:"type"`
	RelatedID   string             `json:"relatedId"`
	IsRead      bool               `json:"isRead"`
	CreatedAt   string             `json:"createdAt"`
	Message     string             `json:"message,omitempty"`
}

// NewPushPayload projects a durable notification and its sender summary
// into the wire form.
func NewPushPayload(record notifications.Notification, sender users.Summary) PushPayload {
	return PushPayload{
		ID:          record.ID,
		RecipientID: record.RecipientID,
		Sender:      sender,
		Kind:        record.Kind,
		RelatedID:   record.RelatedID,
		IsRead:      record.IsRead,
		CreatedAt:   record.CreatedAt.UTC().Format(time.RFC3339),
		Message:     record.Message,
	}
}
