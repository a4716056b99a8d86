package notifyclient

import (
	"sort"
	"sync"
	"time"
)

// Sender is the minimal author projection carried in a payload.
type Sender struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// Notification is the client-side view of one event, identical whether it
// arrived over a push or a backfill fetch.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Sender      Sender    `json:"sender"`
	Kind        string    `json:"type"`
	RelatedID   string    `json:"relatedId"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
	Message     string    `json:"message,omitempty"`
}

// store holds the locally known notifications keyed by id. A push and a
// later backfill of the same event merge into one logical copy.
type store struct {
	mu   sync.Mutex
	byID map[string]Notification
}

func newStore() *store {
	return &store{byID: make(map[string]Notification)}
}

// Merge records the notification and reports whether it was new. An already
// known id keeps the stored copy, except that a read flag can only move from
// unread to read.
func (s *store) Merge(notification Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, known := s.byID[notification.ID]
	if known {
		if notification.IsRead && !existing.IsRead {
			existing.IsRead = true
			s.byID[notification.ID] = existing
		}
		return false
	}
	s.byID[notification.ID] = notification
	return true
}

// Snapshot returns all known notifications, newest first.
func (s *store) Snapshot() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Notification, 0, len(s.byID))
	for _, notification := range s.byID {
		items = append(items, notification)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

func (s *store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
