package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/friendbook-app/backend/internal/ids"
	"github.com/friendbook-app/backend/internal/notifications"
	"github.com/friendbook-app/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 50

var (
	// ErrEmptyContent indicates a message with no text.
	ErrEmptyContent = errors.New("messages: content required")
	// ErrMissingReceiver indicates no receiver was named.
	ErrMissingReceiver = errors.New("messages: receiver required")
)

// ServiceConfig describes the dependencies of the messaging service.
type ServiceConfig struct {
	Database      *gorm.DB
	IDProvider    ids.Provider
	Users         *users.Service
	Notifications *notifications.Service
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Service owns direct messages and conversation summaries.
type Service struct {
	db            *gorm.DB
	idProvider    ids.Provider
	users         *users.Service
	notifications *notifications.Service
	clock         func() time.Time
	logger        *zap.Logger
}

// NewService constructs the messaging service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("messages: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("messages: id provider required")
	}
	if cfg.Users == nil {
		return nil, fmt.Errorf("messages: users service required")
	}
	if cfg.Notifications == nil {
		return nil, fmt.Errorf("messages: notifications service required")
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

// Send stores a direct message and notifies the receiver.
func (s *Service) Send(ctx context.Context, senderID, receiverID, content, postID string) (Message, error) {
	if strings.TrimSpace(receiverID) == "" {
		return Message{}, ErrMissingReceiver
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyContent
	}
	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		return Message{}, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return Message{}, err
	}
	message := Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		PostID:     postID,
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return Message{}, err
	}

	s.notify(ctx, receiverID, senderID, message.ID)
	return message, nil
}

// History returns the messages between the caller and the counterpart,
// oldest first.
func (s *Service) History(ctx context.Context, userID, otherID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var items []Message
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID, otherID, otherID, userID).
		Order("created_at ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// Conversations returns the latest message per counterpart, newest first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	var involving []Message
	err := s.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&involving).Error
	if err != nil {
		return nil, err
	}

	conversations := make([]Conversation, 0)
	seen := make(map[string]bool)
	for _, message := range involving {
		otherID := message.SenderID
		if otherID == userID {
			otherID = message.ReceiverID
		}
		if seen[otherID] {
			continue
		}
		seen[otherID] = true

		other, err := s.users.SummaryFor(ctx, otherID)
		if err != nil {
			s.logger.Warn("conversation counterpart lookup failed",
				zap.String("user_id", otherID), zap.Error(err))
			continue
		}
		conversations = append(conversations, Conversation{
			UserID:             otherID,
			UserName:           other.Name,
			LastMessageAt:      message.CreatedAt,
			LastMessageContent: message.Content,
		})
	}
	return conversations, nil
}

func (s *Service) notify(ctx context.Context, recipientID, senderID, messageID string) {
	sender, err := s.users.SummaryFor(ctx, senderID)
	if err != nil {
		s.logger.Warn("notification skipped, sender lookup failed",
			zap.String("sender_id", senderID), zap.Error(err))
		return
	}
	err = s.notifications.Create(ctx, notifications.CreateInput{
		RecipientID: recipientID,
		SenderID:    senderID,
		Kind:        notifications.KindNewMessage,
		RelatedID:   messageID,
		Message:     fmt.Sprintf("%s sent you a message.", sender.Name),
	})
	if err != nil {
		s.logger.Warn("notification creation failed",
			zap.String("recipient_id", recipientID),
			zap.Error(err))
	}
}
