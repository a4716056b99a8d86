package posts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendbook-app/backend/internal/ids"
	"github.com/friendbook-app/backend/internal/notifications"
	"github.com/friendbook-app/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultFeedLimit = 20

var (
	// ErrNotFound indicates the requested post does not exist.
	ErrNotFound = errors.New("posts: not found")
	// ErrNotAuthor indicates the caller does not own the post.
	ErrNotAuthor = errors.New("posts: caller is not the author")
	// ErrEmptyPost indicates a post with no content at all.
	ErrEmptyPost = errors.New("posts: post has no content")
)

// ServiceConfig describes the dependencies of the post service.
type ServiceConfig struct {
	Database      *gorm.DB
	IDProvider    ids.Provider
	Users         *users.Service
	Notifications *notifications.Service
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Service owns post records and emits the notifications their state changes
// produce.
type Service struct {
	db            *gorm.DB
	idProvider    ids.Provider
	users         *users.Service
	notifications *notifications.Service
	clock         func() time.Time
	logger        *zap.Logger
}

// NewService constructs the post service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("posts: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("posts: id provider required")
	}
	if cfg.Users == nil {
		return nil, fmt.Errorf("posts: users service required")
	}
	if cfg.Notifications == nil {
		return nil, fmt.Errorf("posts: notifications service required")
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
		notifications: cfg.Notifications,
		clock:         clock,
		logger:        logger,
	}, nil
}

// CreateInput names the attributes of a new post.
type CreateInput struct {
	UserID        string
	Type          Type
	Text          string
	PhotoURL      string
	VideoURL      string
	TaggedUserIDs []string
	SharedPostID  string
}

// Create publishes a post and notifies every tagged user.
func (s *Service) Create(ctx context.Context, input CreateInput) (Post, error) {
	if _, err := ParseType(string(input.Type)); err != nil {
		return Post{}, err
	}
	if input.Text == "" && input.PhotoURL == "" && input.VideoURL == "" && input.SharedPostID == "" {
		return Post{}, ErrEmptyPost
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Post{}, err
	}
	post := Post{
		ID:            id,
		UserID:        input.UserID,
		Type:          input.Type,
		Text:          input.Text,
		PhotoURL:      input.PhotoURL,
		VideoURL:      input.VideoURL,
		TaggedUserIDs: encodeIDList(input.TaggedUserIDs),
		Likes:         encodeIDList(nil),
		SharedPostID:  input.SharedPostID,
		CreatedAt:     s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return Post{}, err
	}

	for _, taggedID := range input.TaggedUserIDs {
		s.notify(ctx, taggedID, input.UserID, notifications.KindUserTagged, post.ID,
			"%s tagged you in a post.")
	}
	return post, nil
}

// Get loads a single post.
func (s *Service) Get(ctx context.Context, postID string) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("id = ?", postID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrNotFound
	}
	if err != nil {
		return Post{}, err
	}
	return post, nil
}

// List returns one page of posts, newest first.
func (s *Service) List(ctx context.Context, page, limit int) ([]Post, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	var items []Post
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error
	return items, err
}

// ToggleLike flips the caller's like on the post and reports whether the
// post is now liked. A fresh like on someone else's post notifies the author.
func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (Post, bool, error) {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return Post{}, false, err
	}

	likes := post.LikedBy()
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

	post.Likes = encodeIDList(updated)
	if err := s.db.WithContext(ctx).Model(&Post{}).Where("id = ?", postID).
		Update("likes", post.Likes).Error; err != nil {
		return Post{}, false, err
	}

	nowLiked := !liked
	if nowLiked && post.UserID != userID {
		s.notify(ctx, post.UserID, userID, notifications.KindPostLiked, post.ID,
			"%s liked your post.")
	}
	return post, nowLiked, nil
}

// Delete removes a post owned by the caller.
func (s *Service) Delete(ctx context.Context, postID, userID string) error {
	post, err := s.Get(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return ErrNotAuthor
	}
	return s.db.WithContext(ctx).Delete(&Post{}, "id = ?", postID).Error
}

// notify creates the durable notification for the action. Failures are
// logged and swallowed: a missed notification never rolls back the action
// that triggered it.
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
