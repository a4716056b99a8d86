package comments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/friendbook-app/backend/internal/ids"
	"github.com/friendbook-app/backend/internal/notifications"
	"github.com/friendbook-app/backend/internal/posts"
	"github.com/friendbook-app/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the requested comment does not exist.
	ErrNotFound = errors.New("comments: not found")
	// ErrEmptyContent indicates a comment with no text.
	ErrEmptyContent = errors.New("comments: content required")
)

// ServiceConfig describes the dependencies of the comment service.
type ServiceConfig struct {
	Database      *gorm.DB
	IDProvider    ids.Provider
	Users         *users.Service
	Posts         *posts.Service
	Notifications *notifications.Service
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Service owns comment records and the notifications they produce.
type Service struct {
	db            *gorm.DB
	idProvider    ids.Provider
	users         *users.Service
	posts         *posts.Service
	notifications *notifications.Service
	clock         func() time.Time
	logger        *zap.Logger
}

// NewService constructs the comment service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("comments: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("comments: id provider required")
	}
	if cfg.Users == nil {
		return nil, fmt.Errorf("comments: users service required")
	}
	if cfg.Posts == nil {
		return nil, fmt.Errorf("comments: posts service required")
	}
	if cfg.Notifications == nil {
		return nil, fmt.Errorf("comments: notifications service required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:            cfg.Database,
		idProvider:    cfg.IDProvider,
		users:         cfg.Users,
		posts:         cfg.Posts,
		notifications: cfg.Notifications,
		clock:         clock,
		logger:        logger,
	}, nil
}

// Create adds a comment to a post and notifies the post author.
func (s *Service) Create(ctx context.Context, postID, userID, content string) (Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Comment{}, ErrEmptyContent
	}
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return Comment{}, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Comment{}, err
	}
	comment := Comment{
		ID:        id,
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		Likes:     encodeIDList(nil),
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return Comment{}, err
	}

	if post.UserID != userID {
		s.notify(ctx, post.UserID, userID, notifications.KindPostCommented, postID,
			"%s commented on your post.")
	}
	return comment, nil
}

// Get loads a single comment.
func (s *Service) Get(ctx context.Context, commentID string) (Comment, error) {
	var comment Comment
	err := s.db.WithContext(ctx).Where("id = ?", commentID).First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, err
	}
	return comment, nil
}

// ListForPost returns the post's comments, oldest first.
func (s *Service) ListForPost(ctx context.Context, postID string) ([]Comment, error) {
	var items []Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// ToggleLike flips the caller's like on the comment. A fresh like on someone
// else's comment notifies its author; the related id is the enclosing post
// so the client can navigate to it.
func (s *Service) ToggleLike(ctx context.Context, commentID, userID string) (Comment, bool, error) {
	comment, err := s.Get(ctx, commentID)
	if err != nil {
		return Comment{}, false, err
	}

	likes := comment.LikedBy()
	liked := false
	updated := make([]string, 0, len(likes)+1)
	for _, likerID := range likes {
		if likerID == userID {
			liked = true
			continue
		}
		updated = append(updated, likerID)
	}
	if !liked {
		updated = append(updated, userID)
	}

	comment.Likes = encodeIDList(updated)
	if err := s.db.WithContext(ctx).Model(&Comment{}).Where("id = ?", commentID).
		Update("likes", comment.Likes).Error; err != nil {
		return Comment{}, false, err
	}

	nowLiked := !liked
	if nowLiked && comment.UserID != userID {
		s.notify(ctx, comment.UserID, userID, notifications.KindCommentLiked, comment.PostID,
			"%s liked your comment.")
	}
	return comment, nowLiked, nil
}

func (s *Service) notify(ctx context.Context, recipientID, senderID string, kind notifications.Kind, relatedID, messageFormat string) {
	sender, err := s.users.SummaryFor(ctx, senderID)
	if err != nil {
		s.logger.Warn("notification skipped, sender lookup failed",
			zap.String("sender_id", senderID), zap.Error(err))
		return
	}
	err = s.notifications.Create(ctx, notifications.CreateInput{
		RecipientID: recipientID,
		SenderID:    senderID,
		Kind:        kind,
		RelatedID:   relatedID,
		Message:     fmt.Sprintf(messageFormat, sender.Name),
	})
	if err != nil {
		s.logger.Warn("notification creation failed",
			zap.String("recipient_id", recipientID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}
