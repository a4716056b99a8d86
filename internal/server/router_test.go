package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/friendbook-app/backend/internal/auth"
	"github.com/friendbook-app/backend/internal/comments"
	"github.com/friendbook-app/backend/internal/database"
	"github.com/friendbook-app/backend/internal/friends"
	"github.com/friendbook-app/backend/internal/ids"
	"github.com/friendbook-app/backend/internal/messages"
	"github.com/friendbook-app/backend/internal/notifications"
	"github.com/friendbook-app/backend/internal/posts"
	"github.com/friendbook-app/backend/internal/realtime"
	"github.com/friendbook-app/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type testBackend struct {
	handler       http.Handler
	db            *gorm.DB
	users         *users.Service
	notifications *notifications.Service
	posts         *posts.Service
	registry      *realtime.Registry
	tokens        *auth.TokenManager
}

func newTestBackend(t *testing.T) *testBackend {
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
		SigningSecret: []byte("test-secret"),
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

	handler, err := NewHTTPHandler(Dependencies{
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

	return &testBackend{
		handler:       handler,
		db:            db,
		users:         usersService,
		notifications: notificationsService,
		posts:         postsService,
		registry:      registry,
		tokens:        tokenManager,
	}
}

func (b *testBackend) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}
	recorder := httptest.NewRecorder()
	b.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

// registerUser creates an account over the API and returns the user id and a
// bearer token for it.
func (b *testBackend) registerUser(t *testing.T, name, email string) (string, string) {
	t.Helper()
	recorder := b.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "secret-password",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", recorder.Code, recorder.Body.String())
	}
	var response struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	decodeBody(t, recorder, &response)
	if response.User.ID == "" || response.Tokens.AccessToken == "" {
		t.Fatalf("incomplete register response: %s", recorder.Body.String())
	}
	return response.User.ID, response.Tokens.AccessToken
}
