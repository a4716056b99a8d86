package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/friendbook-app/backend/internal/auth"
	"github.com/friendbook-app/backend/internal/comments"
	"github.com/friendbook-app/backend/internal/database"
	"github.com/friendbook-app/backend/internal/friends"
	"github.com/friendbook-app/backend/internal/ids"
	"github.com/friendbook-app/backend/internal/messages"
	"github.com/friendbook-app/backend/internal/notifications"
	"github.com/friendbook-app/backend/internal/posts"
	"github.com/friendbook-app/backend/internal/realtime"
	"github.com/friendbook-app/backend/internal/server"
	"github.com/friendbook-app/backend/internal/users"
	"github.com/friendbook-app/backend/pkg/notifyclient"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	provider := ids.NewUUIDProvider()
	tokenManager := auth.NewTokenManager(auth.TokenManagerConfig{
		SigningSecret: []byte("integration-secret"),
		Issuer:        "friendbook",
		Audience:      "friendbook-clients",
	})
	refreshStore, err := auth.NewRefreshStore(auth.RefreshStoreConfig{Database: db, IDProvider: provider})
	if err != nil {
		t.Fatalf("failed to create refresh store: %v", err)
	}
	usersService, err := users.NewService(users.ServiceConfig{Database: db, IDProvider: provider})
	if err != nil {
		t.Fatalf("failed to create users service: %v", err)
	}

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, nil)
	notificationsService, err := notifications.NewService(notifications.ServiceConfig{
		Database:   db,
		IDProvider: provider,
		Senders:    usersService,
		Pusher:     dispatcher,
	})
	if err != nil {
		t.Fatalf("failed to create notifications service: %v", err)
	}

	postsService, err := posts.NewService(posts.ServiceConfig{
		Database: db, IDProvider: provider,
		Users: usersService, Notifications: notificationsService,
	})
	if err != nil {
		t.Fatalf("failed to create posts service: %v", err)
	}
	commentsService, err := comments.NewService(comments.ServiceConfig{
		Database: db, IDProvider: provider,
		Users: usersService, Posts: postsService, Notifications: notificationsService,
	})
	if err != nil {
		t.Fatalf("failed to create comments service: %v", err)
	}
	friendsService, err := friends.NewService(friends.ServiceConfig{
		Database: db, IDProvider: provider,
		Users: usersService, Notifications: notificationsService,
	})
	if err != nil {
		t.Fatalf("failed to create friends service: %v", err)
	}
	messagesService, err := messages.NewService(messages.ServiceConfig{
		Database: db, IDProvider: provider,
		Users: usersService, Notifications: notificationsService,
	})
	if err != nil {
		t.Fatalf("failed to create messages service: %v", err)
	}

	realtimeHandler, err := realtime.NewHandler(realtime.HandlerConfig{
		Registry: registry,
		Tokens:   tokenManager,
	})
	if err != nil {
		t.Fatalf("failed to create realtime handler: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenManager:  tokenManager,
		RefreshTokens: refreshStore,
		Users:         usersService,
		Posts:         postsService,
		Comments:      commentsService,
		Friends:       friendsService,
		Messages:      messagesService,
		Notifications: notificationsService,
		Realtime:      realtimeHandler,
	})
	if err != nil {
		t.Fatalf("failed to create http handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	t.Cleanup(testServer.Close)
	return testServer
}

func postJSON(t *testing.T, serverURL, path, bearer string, body interface{}, target interface{}) int {
	t.Helper()
	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to encode request: %v", err)
	}
	request, err := http.NewRequest(http.MethodPost, serverURL+path, bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()
	if target != nil {
		if err := json.NewDecoder(response.Body).Decode(target); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return response.StatusCode
}

func putJSON(t *testing.T, serverURL, path, bearer string) int {
	t.Helper()
	request, err := http.NewRequest(http.MethodPut, serverURL+path, http.NoBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Authorization", "Bearer "+bearer)
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()
	return response.StatusCode
}

func registerAccount(t *testing.T, serverURL, name, email string) (string, string) {
	t.Helper()
	var response struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	status := postJSON(t, serverURL, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "integration-pass",
	}, &response)
	if status != http.StatusCreated {
		t.Fatalf("register returned %d", status)
	}
	return response.User.ID, response.Tokens.AccessToken
}

// TestLikePushesNotificationOverWebsocket walks the full path: a connected
// author receives the postLiked push the moment another user likes their
// post, and the same event is durably readable over the REST listing.
func TestLikePushesNotificationOverWebsocket(t *testing.T) {
	backend := startBackend(t)

	_, aliceToken := registerAccount(t, backend.URL, "Alice", "alice@example.com")
	bobID, bobToken := registerAccount(t, backend.URL, "Bob", "bob@example.com")

	endpoint := strings.Replace(backend.URL, "http://", "ws://", 1) + "/ws?token=" + aliceToken
	socket, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer socket.Close()

	_ = socket.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ready struct {
		Type string `json:"type"`
	}
	if err := socket.ReadJSON(&ready); err != nil || ready.Type != "ready" {
		t.Fatalf("expected a ready envelope, got %+v (%v)", ready, err)
	}

	var post struct {
		ID string `json:"id"`
	}
	status := postJSON(t, backend.URL, "/api/posts", aliceToken, map[string]string{
		"type": "text",
		"text": "hello from alice",
	}, &post)
	if status != http.StatusCreated {
		t.Fatalf("post creation returned %d", status)
	}

	if status := putJSON(t, backend.URL, "/api/posts/"+post.ID+"/like", bobToken); status != http.StatusOK {
		t.Fatalf("like returned %d", status)
	}

	var pushed struct {
		Type    string `json:"type"`
		Payload struct {
			Kind      string `json:"type"`
			RelatedID string `json:"relatedId"`
			Sender    struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"sender"`
			IsRead bool `json:"isRead"`
		} `json:"payload"`
	}
	_ = socket.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := socket.ReadJSON(&pushed); err != nil {
		t.Fatalf("failed to read push: %v", err)
	}
	if pushed.Type != "new_notification" {
		t.Fatalf("expected new_notification envelope, got %q", pushed.Type)
	}
	if pushed.Payload.Kind != "postLiked" || pushed.Payload.RelatedID != post.ID {
		t.Fatalf("unexpected payload %+v", pushed.Payload)
	}
	if pushed.Payload.Sender.ID != bobID || pushed.Payload.Sender.Name != "Bob" {
		t.Fatalf("unexpected sender %+v", pushed.Payload.Sender)
	}
	if pushed.Payload.IsRead {
		t.Fatal("expected a fresh notification to be unread")
	}

	// the push supplements the durable record, it does not replace it.
	request, err := http.NewRequest(http.MethodGet, backend.URL+"/api/notifications", http.NoBody)
	if err != nil {
		t.Fatalf("failed to build listing request: %v", err)
	}
	request.Header.Set("Authorization", "Bearer "+aliceToken)
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("listing request failed: %v", err)
	}
	defer response.Body.Close()
	var listing struct {
		TotalNotifications int64 `json:"totalNotifications"`
	}
	if err := json.NewDecoder(response.Body).Decode(&listing); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if listing.TotalNotifications != 1 {
		t.Fatalf("expected 1 durable notification, got %d", listing.TotalNotifications)
	}
}

// TestClientReconnectConvergesViaBackfill exercises the client package: the
// notification created while the client was offline is recovered by the
// backfill on connect, and later pushes arrive live over the same store.
func TestClientReconnectConvergesViaBackfill(t *testing.T) {
	backend := startBackend(t)

	_, aliceToken := registerAccount(t, backend.URL, "Alice", "alice@example.com")
	_, bobToken := registerAccount(t, backend.URL, "Bob", "bob@example.com")

	var firstPost struct {
		ID string `json:"id"`
	}
	if status := postJSON(t, backend.URL, "/api/posts", aliceToken, map[string]string{
		"type": "text",
		"text": "posted before connecting",
	}, &firstPost); status != http.StatusCreated {
		t.Fatalf("post creation returned %d", status)
	}

	// alice is offline for this like; only the durable record exists.
	if status := putJSON(t, backend.URL, "/api/posts/"+firstPost.ID+"/like", bobToken); status != http.StatusOK {
		t.Fatalf("offline like returned %d", status)
	}

	client, err := notifyclient.New(notifyclient.Config{
		BaseURL:     backend.URL,
		AccessToken: aliceToken,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	waitForCount(t, client, 1)

	var secondPost struct {
		ID string `json:"id"`
	}
	if status := postJSON(t, backend.URL, "/api/posts", aliceToken, map[string]string{
		"type": "text",
		"text": "posted while connected",
	}, &secondPost); status != http.StatusCreated {
		t.Fatalf("post creation returned %d", status)
	}
	if status := putJSON(t, backend.URL, "/api/posts/"+secondPost.ID+"/like", bobToken); status != http.StatusOK {
		t.Fatalf("online like returned %d", status)
	}

	snapshot := waitForCount(t, client, 2)
	if snapshot[0].RelatedID != secondPost.ID {
		t.Fatalf("expected the live push first, got related id %q", snapshot[0].RelatedID)
	}
	if snapshot[1].RelatedID != firstPost.ID {
		t.Fatalf("expected the backfilled notification second, got related id %q", snapshot[1].RelatedID)
	}
}

func waitForCount(t *testing.T, client *notifyclient.Client, want int) []notifyclient.Notification {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snapshot := client.Notifications()
		if len(snapshot) == want {
			return snapshot
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected %d notifications within deadline, have %d", want, len(client.Notifications()))
	return nil
}
