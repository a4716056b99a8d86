package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/friendbook-app/backend/internal/comments"
	"github.com/friendbook-app/backend/internal/friends"
	"github.com/friendbook-app/backend/internal/messages"
	"github.com/friendbook-app/backend/internal/posts"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type postResponsePayload struct {
	ID            string   `json:"id"`
	UserID        string   `json:"userId"`
	Type          string   `json:"type"`
	Text          string   `json:"text,omitempty"`
	PhotoURL      string   `json:"photoUrl,omitempty"`
	VideoURL      string   `json:"videoUrl,omitempty"`
	TaggedUserIDs []string `json:"taggedUserIds"`
	Likes         []string `json:"likes"`
	TotalLikes    int      `json:"totalLikes"`
	SharedPostID  string   `json:"sharedPostId,omitempty"`
	CreatedAt     string   `json:"createdAt"`
}

func presentPost(post posts.Post) postResponsePayload {
	tagged := post.TaggedUsers()
	if tagged == nil {
		tagged = []string{}
	}
	likes := post.LikedBy()
	if likes == nil {
		likes = []string{}
	}
	return postResponsePayload{
		ID:            post.ID,
		UserID:        post.UserID,
		Type:          string(post.Type),
		Text:          post.Text,
		PhotoURL:      post.PhotoURL,
		VideoURL:      post.VideoURL,
		TaggedUserIDs: tagged,
		Likes:         likes,
		TotalLikes:    len(likes),
		SharedPostID:  post.SharedPostID,
		CreatedAt:     post.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createPostRequestPayload struct {
	Type          string   `json:"type"`
	Text          string   `json:"text"`
	PhotoURL      string   `json:"photoUrl"`
	VideoURL      string   `json:"videoUrl"`
	TaggedUserIDs []string `json:"taggedUserIds"`
	SharedPostID  string   `json:"sharedPostId"`
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	var request createPostRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	post, err := h.posts.Create(c.Request.Context(), posts.CreateInput{
		UserID:        h.currentUserID(c),
		Type:          posts.Type(request.Type),
		Text:          request.Text,
		PhotoURL:      request.PhotoURL,
		VideoURL:      request.VideoURL,
		TaggedUserIDs: request.TaggedUserIDs,
		SharedPostID:  request.SharedPostID,
	})
	if errors.Is(err, posts.ErrUnknownType) || errors.Is(err, posts.ErrEmptyPost) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err != nil {
		h.logger.Error("post creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, presentPost(post))
}

func (h *httpHandler) handleListPosts(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)
	items, err := h.posts.List(c.Request.Context(), page, limit)
	if err != nil {
		h.logger.Error("post listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	presented := make([]postResponsePayload, 0, len(items))
	for _, post := range items {
		presented = append(presented, presentPost(post))
	}
	c.JSON(http.StatusOK, gin.H{"posts": presented, "currentPage": page})
}

func (h *httpHandler) handleGetPost(c *gin.Context) {
	post, err := h.posts.Get(c.Request.Context(), c.Param("postId"))
	if errors.Is(err, posts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("post lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup_failed"})
		return
	}
	c.JSON(http.StatusOK, presentPost(post))
}

func (h *httpHandler) handleLikePost(c *gin.Context) {
	post, liked, err := h.posts.ToggleLike(c.Request.Context(), c.Param("postId"), h.currentUserID(c))
	if errors.Is(err, posts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("post like failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "like_failed"})
		return
	}
	response := presentPost(post)
	c.JSON(http.StatusOK, gin.H{"post": response, "liked": liked})
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	err := h.posts.Delete(c.Request.Context(), c.Param("postId"), h.currentUserID(c))
	if errors.Is(err, posts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if errors.Is(err, posts.ErrNotAuthor) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	if err != nil {
		h.logger.Error("post deletion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}

type commentResponsePayload struct {
	ID        string   `json:"id"`
	PostID    string   `json:"postId"`
	UserID    string   `json:"userId"`
	Content   string   `json:"content"`
	Likes     []string `json:"likes"`
	CreatedAt string   `json:"createdAt"`
}

func presentComment(comment comments.Comment) commentResponsePayload {
	likes := comment.LikedBy()
	if likes == nil {
		likes = []string{}
	}
	return commentResponsePayload{
		ID:        comment.ID,
		PostID:    comment.PostID,
		UserID:    comment.UserID,
		Content:   comment.Content,
		Likes:     likes,
		CreatedAt: comment.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createCommentRequestPayload struct {
	Content string `json:"content"`
}

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	var request createCommentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), c.Param("postId"), h.currentUserID(c), request.Content)
	if errors.Is(err, comments.ErrEmptyContent) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if errors.Is(err, posts.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("comment creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, presentComment(comment))
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	items, err := h.comments.ListForPost(c.Request.Context(), c.Param("postId"))
	if err != nil {
		h.logger.Error("comment listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	presented := make([]commentResponsePayload, 0, len(items))
	for _, comment := range items {
		presented = append(presented, presentComment(comment))
	}
	c.JSON(http.StatusOK, gin.H{"comments": presented})
}

func (h *httpHandler) handleLikeComment(c *gin.Context) {
	comment, liked, err := h.comments.ToggleLike(c.Request.Context(), c.Param("commentId"), h.currentUserID(c))
	if errors.Is(err, comments.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("comment like failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "like_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"comment": presentComment(comment), "liked": liked})
}

type friendRequestRequestPayload struct {
	ReceiverID string `json:"receiverId"`
}

type friendRequestResponsePayload struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
}

func presentFriendRequest(request friends.FriendRequest) friendRequestResponsePayload {
	return friendRequestResponsePayload{
		ID:         request.ID,
		SenderID:   request.SenderID,
		ReceiverID: request.ReceiverID,
		Status:     string(request.Status),
		CreatedAt:  request.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *httpHandler) handleSendFriendRequest(c *gin.Context) {
	var request friendRequestRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.ReceiverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.friends.SendRequest(c.Request.Context(), h.currentUserID(c), request.ReceiverID)
	switch {
	case errors.Is(err, friends.ErrSelfRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot_friend_self"})
		return
	case errors.Is(err, friends.ErrAlreadyFriends):
		c.JSON(http.StatusConflict, gin.H{"error": "already_friends"})
		return
	case errors.Is(err, friends.ErrRequestExists):
		c.JSON(http.StatusConflict, gin.H{"error": "request_pending"})
		return
	case err != nil:
		h.logger.Error("friend request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request_failed"})
		return
	}
	c.JSON(http.StatusCreated, presentFriendRequest(created))
}

func (h *httpHandler) resolveFriendRequest(c *gin.Context, resolve func() error, success string) {
	err := resolve()
	switch {
	case errors.Is(err, friends.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, friends.ErrNotReceiver):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, friends.ErrRequestNotPending):
		c.JSON(http.StatusBadRequest, gin.H{"error": "not_pending"})
	case err != nil:
		h.logger.Error("friend request resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request_failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": success})
	}
}

func (h *httpHandler) handleAcceptFriendRequest(c *gin.Context) {
	h.resolveFriendRequest(c, func() error {
		return h.friends.Accept(c.Request.Context(), h.currentUserID(c), c.Param("requestId"))
	}, "friend request accepted")
}

func (h *httpHandler) handleRejectFriendRequest(c *gin.Context) {
	h.resolveFriendRequest(c, func() error {
		return h.friends.Reject(c.Request.Context(), h.currentUserID(c), c.Param("requestId"))
	}, "friend request rejected")
}

func (h *httpHandler) handleListFriendRequests(c *gin.Context) {
	items, err := h.friends.ListPendingReceived(c.Request.Context(), h.currentUserID(c))
	if err != nil {
		h.logger.Error("friend request listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	presented := make([]friendRequestResponsePayload, 0, len(items))
	for _, request := range items {
		presented = append(presented, presentFriendRequest(request))
	}
	c.JSON(http.StatusOK, gin.H{"requests": presented})
}

func (h *httpHandler) handleListFriends(c *gin.Context) {
	friendIDs, err := h.friends.ListFriends(c.Request.Context(), h.currentUserID(c))
	if err != nil {
		h.logger.Error("friend listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	summaries := make([]interface{}, 0, len(friendIDs))
	for _, friendID := range friendIDs {
		summary, err := h.users.SummaryFor(c.Request.Context(), friendID)
		if err != nil {
			continue
		}
		summaries = append(summaries, summary)
	}
	c.JSON(http.StatusOK, gin.H{"friends": summaries})
}

type sendMessageRequestPayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	PostID     string `json:"postId"`
}

type messageResponsePayload struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	PostID     string `json:"postId,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

func presentMessage(message messages.Message) messageResponsePayload {
	return messageResponsePayload{
		ID:         message.ID,
		SenderID:   message.SenderID,
		ReceiverID: message.ReceiverID,
		Content:    message.Content,
		PostID:     message.PostID,
		CreatedAt:  message.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	var request sendMessageRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	message, err := h.messages.Send(c.Request.Context(), h.currentUserID(c), request.ReceiverID, request.Content, request.PostID)
	if errors.Is(err, messages.ErrEmptyContent) || errors.Is(err, messages.ErrMissingReceiver) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err != nil {
		h.logger.Error("message send failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send_failed"})
		return
	}
	c.JSON(http.StatusCreated, presentMessage(message))
}

func (h *httpHandler) handleConversations(c *gin.Context) {
	conversations, err := h.messages.Conversations(c.Request.Context(), h.currentUserID(c))
	if err != nil {
		h.logger.Error("conversation listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func (h *httpHandler) handleMessageHistory(c *gin.Context) {
	items, err := h.messages.History(c.Request.Context(), h.currentUserID(c), c.Param("userId"), queryInt(c, "limit", 50))
	if err != nil {
		h.logger.Error("message history failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	presented := make([]messageResponsePayload, 0, len(items))
	for _, message := range items {
		presented = append(presented, presentMessage(message))
	}
	c.JSON(http.StatusOK, gin.H{"messages": presented})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
