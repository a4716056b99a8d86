package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/friendbook-app/backend/internal/auth"
	"github.com/friendbook-app/backend/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type registerRequestPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequestPayload struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponsePayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type userResponsePayload struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Bio             string `json:"bio,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	CreatedAt       string `json:"createdAt"`
}

func presentUser(user users.User) userResponsePayload {
	return userResponsePayload{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Bio:             user.Bio,
		ProfileImageURL: user.ProfileImageURL,
		CreatedAt:       user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *httpHandler) issueTokens(c *gin.Context, userID string) (tokenResponsePayload, bool) {
	accessToken, expiresIn, err := h.tokens.IssueAccessToken(userID)
	if err != nil {
		h.logger.Error("failed to issue access token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return tokenResponsePayload{}, false
	}
	refreshToken, err := h.refreshTokens.Issue(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to issue refresh token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return tokenResponsePayload{}, false
	}
	return tokenResponsePayload{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		TokenType:    "Bearer",
	}, true
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), request.Name, request.Email, request.Password)
	if errors.Is(err, users.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if errors.Is(err, users.ErrEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
		return
	}
	if err != nil {
		h.logger.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration_failed"})
		return
	}

	tokens, ok := h.issueTokens(c, user.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": presentUser(user), "tokens": tokens})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Email, request.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	tokens, ok := h.issueTokens(c, user.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": presentUser(user), "tokens": tokens})
}

func (h *httpHandler) handleRefresh(c *gin.Context) {
	var request refreshRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.RefreshToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	userID, err := h.refreshTokens.Redeem(c.Request.Context(), request.RefreshToken)
	if errors.Is(err, auth.ErrUnknownRefreshToken) || errors.Is(err, auth.ErrExpiredRefreshToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err != nil {
		h.logger.Error("refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh_failed"})
		return
	}

	tokens, ok := h.issueTokens(c, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	var request refreshRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.refreshTokens.Revoke(c.Request.Context(), request.RefreshToken); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), h.currentUserID(c))
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("profile lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}
	c.JSON(http.StatusOK, presentUser(user))
}

type updateProfileRequestPayload struct {
	Bio             string `json:"bio"`
	ProfileImageURL string `json:"profileImageUrl"`
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var request updateProfileRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), h.currentUserID(c), request.Bio, request.ProfileImageURL)
	if err != nil {
		h.logger.Error("profile update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, presentUser(user))
}

func (h *httpHandler) handleSearchUsers(c *gin.Context) {
	matches, err := h.users.Search(c.Request.Context(), h.currentUserID(c), c.Query("q"), 20)
	if err != nil {
		h.logger.Error("user search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": matches})
}
