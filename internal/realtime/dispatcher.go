package realtime

import (
	"encoding/json"

	"github.com/friendbook-app/backend/internal/notifications"
	"github.com/friendbook-app/backend/internal/users"
	"go.uber.org/zap"
)

// Dispatcher delivers push payloads to a recipient's live connections.
// Delivery is fire and forget: exactly one send attempt per connection, no
// acknowledgment, no retry, no queueing for offline recipients. The durable
// notification record is the system of record; the push only saves a poll.
type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
}

// NewDispatcher constructs a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger,
	}
}

// Push implements notifications.Pusher. Individual send failures are logged
// and skipped without aborting delivery to the remaining connections, and
// nothing is ever reported back to the business caller.
func (d *Dispatcher) Push(recipientID string, record notifications.Notification, sender users.Summary) {
	payload := NewPushPayload(record, sender)
	frame, err := json.Marshal(Envelope{Type: EnvelopeNotification, Payload: &payload})
	if err != nil {
		d.logger.Error("failed to serialize push payload",
			zap.String("notification_id", record.ID),
			zap.Error(err))
		return
	}

	conns := d.registry.ConnectionsFor(recipientID)
	if len(conns) == 0 {
		return
	}
	for _, conn := range conns {
		if err := conn.Enqueue(frame); err != nil {
			d.logger.Warn("push skipped for connection",
				zap.String("recipient_id", recipientID),
				zap.Uint64("connection_id", conn.id),
				zap.Error(err))
		}
	}
}
