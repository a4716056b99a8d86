package friends

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

var (
	// ErrSelfRequest indicates an attempt to befriend oneself.
	ErrSelfRequest = errors.New("friends: cannot send a friend request to yourself")
	// ErrRequestExists indicates a pending request between the two users already exists.
	ErrRequestExists = errors.New("friends: request already pending")
	// ErrAlreadyFriends indicates a friendship between the two users already exists.
	ErrAlreadyFriends = errors.New("friends: already friends")
	// ErrRequestNotFound indicates the request does not exist.
	ErrRequestNotFound = errors.New("friends: request not found")
	// ErrNotReceiver indicates the caller is not the receiver of the request.
	ErrNotReceiver = errors.New("friends: caller is not the receiver")
	// ErrRequestNotPending indicates the request was already resolved.
	ErrRequestNotPending = errors.New("friends: request is not pending")
)

// ServiceConfig describes the dependencies of the friendship service.
type ServiceConfig struct {
	Database      *gorm.DB
	IDProvider    ids.Provider
	Users         *users.Service
	Notifications *notifications.Service
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Service owns the friend request lifecycle and established friendships.
type Service struct {
	db            *gorm.DB
	idProvider    ids.Provider
	users         *users.Service
	notifications *notifications.Service
	clock         func() time.Time
	logger        *zap.Logger
}

// NewService constructs the friendship service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("friends: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("friends: id provider required")
	}
	if cfg.Users == nil {
		return nil, fmt.Errorf("friends: users service required")
	}
	if cfg.Notifications == nil {
		return nil, fmt.Errorf("friends: notifications service required")
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

// SendRequest creates a pending friend request and notifies the receiver.
// A request to oneself is rejected before any record is written.
func (s *Service) SendRequest(ctx context.Context, senderID, receiverID string) (FriendRequest, error) {
	if senderID == receiverID {
		return FriendRequest{}, ErrSelfRequest
	}
	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		return FriendRequest{}, err
	}

	friends, err := s.areFriends(ctx, senderID, receiverID)
	if err != nil {
		return FriendRequest{}, err
	}
	if friends {
		return FriendRequest{}, ErrAlreadyFriends
	}

	var pending int64
	err = s.db.WithContext(ctx).Model(&FriendRequest{}).
		Where("status = ? AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			StatusPending, senderID, receiverID, receiverID, senderID).
		Count(&pending).Error
	if err != nil {
		return FriendRequest{}, err
	}
	if pending > 0 {
		return FriendRequest{}, ErrRequestExists
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return FriendRequest{}, err
	}
	request := FriendRequest{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     StatusPending,
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		return FriendRequest{}, err
	}

	s.notify(ctx, receiverID, senderID, notifications.KindFriendRequest, request.ID,
		"%s sent you a friend request.")
	return request, nil
}

// Accept resolves a pending request in the receiver's favor, records the
// friendship, and notifies the original sender.
func (s *Service) Accept(ctx context.Context, receiverID, requestID string) error {
	request, err := s.pendingRequestFor(ctx, receiverID, requestID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&FriendRequest{}).Where("id = ?", requestID).
		Update("status", StatusAccepted).Error; err != nil {
		return err
	}

	friends, err := s.areFriends(ctx, request.SenderID, request.ReceiverID)
	if err != nil {
		return err
	}
	if !friends {
		friendshipID, err := s.idProvider.NewID()
		if err != nil {
			return err
		}
		friendship := Friendship{
			ID:        friendshipID,
			UserAID:   request.SenderID,
			UserBID:   request.ReceiverID,
			CreatedAt: s.clock().UTC(),
		}
		if err := s.db.WithContext(ctx).Create(&friendship).Error; err != nil {
			return err
		}
	}

	s.notify(ctx, request.SenderID, receiverID, notifications.KindFriendRequestAccepted, receiverID,
		"%s accepted your friend request.")
	return nil
}

// Reject resolves a pending request against the sender and notifies them.
func (s *Service) Reject(ctx context.Context, receiverID, requestID string) error {
	request, err := s.pendingRequestFor(ctx, receiverID, requestID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&FriendRequest{}).Where("id = ?", requestID).
		Update("status", StatusRejected).Error; err != nil {
		return err
	}

	s.notify(ctx, request.SenderID, receiverID, notifications.KindFriendRequestRejected, receiverID,
		"%s rejected your friend request.")
	return nil
}

// ListPendingReceived returns requests awaiting the user's decision.
func (s *Service) ListPendingReceived(ctx context.Context, userID string) ([]FriendRequest, error) {
	var items []FriendRequest
	err := s.db.WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, StatusPending).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// ListFriends returns the ids of the user's friends.
func (s *Service) ListFriends(ctx context.Context, userID string) ([]string, error) {
	var friendships []Friendship
	err := s.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Find(&friendships).Error
	if err != nil {
		return nil, err
	}
	friendIDs := make([]string, 0, len(friendships))
	for _, friendship := range friendships {
		if friendship.UserAID == userID {
			friendIDs = append(friendIDs, friendship.UserBID)
		} else {
			friendIDs = append(friendIDs, friendship.UserAID)
		}
	}
	return friendIDs, nil
}

func (s *Service) pendingRequestFor(ctx context.Context, receiverID, requestID string) (FriendRequest, error) {
	var request FriendRequest
	err := s.db.WithContext(ctx).Where("id = ?", requestID).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return FriendRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return FriendRequest{}, err
	}
	if request.ReceiverID != receiverID {
		return FriendRequest{}, ErrNotReceiver
	}
	if request.Status != StatusPending {
		return FriendRequest{}, ErrRequestNotPending
	}
	return request, nil
}

func (s *Service) areFriends(ctx context.Context, firstID, secondID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Friendship{}).
		Where("(user_a_id = ? AND user_b_id = ?) OR (user_a_id = ? AND user_b_id = ?)",
			firstID, secondID, secondID, firstID).
		Count(&count).Error
	return count > 0, err
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
