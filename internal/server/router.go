package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/friendbook-app/backend/internal/comments"
	"github.com/friendbook-app/backend/internal/friends"
	"github.com/friendbook-app/backend/internal/messages"
	"github.com/friendbook-app/backend/internal/notifications"
	"github.com/friendbook-app/backend/internal/posts"
	"github.com/friendbook-app/backend/internal/realtime"
	"github.com/friendbook-app/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDContextKey = "friendbook_user_id"

var (
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingRefreshStore  = errors.New("refresh store dependency required")
	errMissingUsersService  = errors.New("users service dependency required")
	errMissingNotifications = errors.New("notifications service dependency required")
	errMissingRealtime      = errors.New("realtime handler dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates the short-lived access tokens.
type TokenManager interface {
	IssueAccessToken(userID string) (string, int64, error)
	ValidateAccessToken(token string) (string, error)
}

// RefreshStore manages the durable refresh tokens.
type RefreshStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	Redeem(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// Dependencies collects everything the HTTP surface needs.
type Dependencies struct {
	TokenManager  TokenManager
	RefreshTokens RefreshStore
	Users         *users.Service
	Posts         *posts.Service
	Comments      *comments.Service
	Friends       *friends.Service
	Messages      *messages.Service
	Notifications *notifications.Service
	Realtime      *realtime.Handler
	Logger        *zap.Logger
}

// NewHTTPHandler wires the REST routes and the websocket endpoint.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.RefreshTokens == nil {
		return nil, errMissingRefreshStore
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Notifications == nil {
		return nil, errMissingNotifications
	}
	if deps.Realtime == nil {
		return nil, errMissingRealtime
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:        deps.TokenManager,
		refreshTokens: deps.RefreshTokens,
		users:         deps.Users,
		posts:         deps.Posts,
		comments:      deps.Comments,
		friends:       deps.Friends,
		messages:      deps.Messages,
		notifications: deps.Notifications,
		logger:        logger,
	}

	router.POST("/api/auth/register", handler.handleRegister)
	router.POST("/api/auth/login", handler.handleLogin)
	router.POST("/api/auth/refresh", handler.handleRefresh)

	// The websocket endpoint authenticates via query parameter inside its own
	// handshake, not via the bearer middleware.
	router.GET("/ws", deps.Realtime.HandleConnection)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)

	protected.POST("/auth/logout", handler.handleLogout)
	protected.GET("/auth/me", handler.handleMe)

	protected.GET("/users/search", handler.handleSearchUsers)
	protected.PUT("/users/me", handler.handleUpdateProfile)

	protected.POST("/posts", handler.handleCreatePost)
	protected.GET("/posts", handler.handleListPosts)
	protected.GET("/posts/:postId", handler.handleGetPost)
	protected.PUT("/posts/:postId/like", handler.handleLikePost)
	protected.DELETE("/posts/:postId", handler.handleDeletePost)

	protected.POST("/posts/:postId/comments", handler.handleCreateComment)
	protected.GET("/posts/:postId/comments", handler.handleListComments)
	protected.PUT("/comments/:commentId/like", handler.handleLikeComment)

	protected.POST("/friends/requests", handler.handleSendFriendRequest)
	protected.PUT("/friends/requests/:requestId/accept", handler.handleAcceptFriendRequest)
	protected.PUT("/friends/requests/:requestId/reject", handler.handleRejectFriendRequest)
	protected.GET("/friends/requests", handler.handleListFriendRequests)
	protected.GET("/friends", handler.handleListFriends)

	protected.POST("/messages", handler.handleSendMessage)
	protected.GET("/messages/conversations", handler.handleConversations)
	protected.GET("/messages/:userId", handler.handleMessageHistory)

	protected.GET("/notifications", handler.handleListNotifications)
	protected.PUT("/notifications/read-all", handler.handleMarkAllNotificationsRead)
	protected.PUT("/notifications/:notificationId/read", handler.handleMarkNotificationRead)

	return router, nil
}

type httpHandler struct {
	tokens        TokenManager
	refreshTokens RefreshStore
	users         *users.Service
	posts         *posts.Service
	comments      *comments.Service
	friends       *friends.Service
	messages      *messages.Service
	notifications *notifications.Service
	logger        *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	userID, err := h.tokens.ValidateAccessToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

func (h *httpHandler) currentUserID(c *gin.Context) string {
	return c.GetString(userIDContextKey)
}
