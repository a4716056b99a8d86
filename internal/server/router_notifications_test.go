package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/friendbook-app/backend/internal/notifications"
)

type notificationListingResponse struct {
	Notifications []struct {
		ID        string `json:"id"`
		Kind      string `json:"type"`
		RelatedID string `json:"relatedId"`
		IsRead    bool   `json:"isRead"`
		Sender    struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"sender"`
	} `json:"notifications"`
	CurrentPage        int   `json:"currentPage"`
	TotalPages         int   `json:"totalPages"`
	TotalNotifications int64 `json:"totalNotifications"`
}

func TestListNotificationsPaginates(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	recipientID, token := backend.registerUser(t, "Alice", "alice@example.com")
	senderID, _ := backend.registerUser(t, "Bob", "bob@example.com")

	for i := 0; i < 3; i++ {
		err := backend.notifications.Create(ctx, notifications.CreateInput{
			RecipientID: recipientID,
			SenderID:    senderID,
			Kind:        notifications.KindPostLiked,
			RelatedID:   fmt.Sprintf("post-%d", i),
		})
		if err != nil {
			t.Fatalf("failed to seed notification: %v", err)
		}
	}

	recorder := backend.do(t, http.MethodGet, "/api/notifications?page=1&limit=2", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("list returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var listing notificationListingResponse
	decodeBody(t, recorder, &listing)

	if listing.TotalNotifications != 3 || listing.TotalPages != 2 || listing.CurrentPage != 1 {
		t.Fatalf("unexpected pagination: %+v", listing)
	}
	if len(listing.Notifications) != 2 {
		t.Fatalf("expected 2 items on page 1, got %d", len(listing.Notifications))
	}
	first := listing.Notifications[0]
	if first.Kind != "postLiked" {
		t.Fatalf("expected postLiked kind on the wire, got %q", first.Kind)
	}
	if first.Sender.ID != senderID || first.Sender.Name != "Bob" {
		t.Fatalf("expected the sender summary to be resolved, got %+v", first.Sender)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	recipientID, token := backend.registerUser(t, "Alice", "alice@example.com")
	senderID, intruderToken := backend.registerUser(t, "Bob", "bob@example.com")

	err := backend.notifications.Create(ctx, notifications.CreateInput{
		RecipientID: recipientID,
		SenderID:    senderID,
		Kind:        notifications.KindFriendRequest,
		RelatedID:   "request-1",
	})
	if err != nil {
		t.Fatalf("failed to seed notification: %v", err)
	}

	recorder := backend.do(t, http.MethodGet, "/api/notifications", token, nil)
	var listing notificationListingResponse
	decodeBody(t, recorder, &listing)
	if len(listing.Notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(listing.Notifications))
	}
	notificationID := listing.Notifications[0].ID

	// only the recipient may mark it read.
	recorder = backend.do(t, http.MethodPut, "/api/notifications/"+notificationID+"/read", intruderToken, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a non-recipient, got %d", recorder.Code)
	}

	recorder = backend.do(t, http.MethodPut, "/api/notifications/"+notificationID+"/read", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("mark read returned %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = backend.do(t, http.MethodGet, "/api/notifications", token, nil)
	decodeBody(t, recorder, &listing)
	if !listing.Notifications[0].IsRead {
		t.Fatal("expected the notification to be read")
	}

	recorder = backend.do(t, http.MethodPut, "/api/notifications/missing/read", token, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown notification, got %d", recorder.Code)
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	recipientID, token := backend.registerUser(t, "Alice", "alice@example.com")
	senderID, _ := backend.registerUser(t, "Bob", "bob@example.com")

	for i := 0; i < 2; i++ {
		err := backend.notifications.Create(ctx, notifications.CreateInput{
			RecipientID: recipientID,
			SenderID:    senderID,
			Kind:        notifications.KindPostCommented,
			RelatedID:   fmt.Sprintf("post-%d", i),
		})
		if err != nil {
			t.Fatalf("failed to seed notification: %v", err)
		}
	}

	recorder := backend.do(t, http.MethodPut, "/api/notifications/read-all", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("read-all returned %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = backend.do(t, http.MethodGet, "/api/notifications", token, nil)
	var listing notificationListingResponse
	decodeBody(t, recorder, &listing)
	for _, item := range listing.Notifications {
		if !item.IsRead {
			t.Fatalf("expected every notification to be read, found unread %q", item.ID)
		}
	}
}
