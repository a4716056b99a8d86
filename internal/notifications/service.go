package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendbook-app/backend/internal/ids"
	"github.com/friendbook-app/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUsers      = errors.New("users service is required")
	noOpLogger           = zap.NewNop()

	// ErrNotFound indicates the notification does not exist.
	ErrNotFound = errors.New("notifications: not found")
	// ErrNotRecipient indicates the caller does not own the notification.
	ErrNotRecipient = errors.New("notifications: caller is not the recipient")
)

// Pusher delivers a freshly created notification to the recipient's live
// connections. Delivery is best effort; the durable record is the source of
// truth and implementations must never fail the caller.
type Pusher interface {
	Push(recipientID string, record Notification, sender users.Summary)
}

// SenderResolver supplies the sender projection embedded in push payloads.
type SenderResolver interface {
	SummaryFor(ctx context.Context, userID string) (users.Summary, error)
}

// ServiceConfig describes the dependencies of the notification service.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Senders    SenderResolver
	Pusher     Pusher
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service owns durable notification records and hands completed records to
// the realtime dispatcher.
type Service struct {
	db         *gorm.DB
	idProvider ids.Provider
	senders    SenderResolver
	pusher     Pusher
	clock      func() time.Time
	logger     *zap.Logger
}

// NewService constructs the notification service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("notifications: %w", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("notifications: %w", errMissingIDProvider)
	}
	if cfg.Senders == nil {
		return nil, fmt.Errorf("notifications: %w", errMissingUsers)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		senders:    cfg.Senders,
		pusher:     cfg.Pusher,
		clock:      clock,
		logger:     logger,
	}, nil
}

// CreateInput names the attributes of a new notification.
type CreateInput struct {
	RecipientID string
	SenderID    string
	Kind        Kind
	RelatedID   string
	Message     string
}

// Create persists the notification and pushes it to the recipient's live
// connections. A sender equal to the recipient produces no record and no
// push. The push never affects the returned error: once the durable write
// succeeds the caller's action has succeeded.
func (s *Service) Create(ctx context.Context, input CreateInput) error {
	if input.RecipientID == input.SenderID {
		return nil
	}
	if _, err := ParseKind(string(input.Kind)); err != nil {
		return err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return err
	}
	record := Notification{
		ID:          id,
		RecipientID: input.RecipientID,
		SenderID:    input.SenderID,
		Kind:        input.Kind,
		RelatedID:   input.RelatedID,
		Message:     input.Message,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return err
	}

	if s.pusher == nil {
		return nil
	}
	sender, err := s.senders.SummaryFor(ctx, input.SenderID)
	if err != nil {
		s.logger.Warn("skipping push, sender lookup failed",
			zap.String("notification_id", record.ID),
			zap.String("sender_id", input.SenderID),
			zap.Error(err))
		return nil
	}
	s.pusher.Push(record.RecipientID, record, sender)
	return nil
}

// List returns one page of the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipientID string, page, limit int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	var total int64
	query := s.db.WithContext(ctx).Model(&Notification{}).Where("recipient_id = ?", recipientID)
	if err := query.Count(&total).Error; err != nil {
		return Page{}, err
	}

	var items []Notification
	err := s.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return Page{}, err
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Page{
		Items:              items,
		CurrentPage:        page,
		TotalPages:         totalPages,
		TotalNotifications: total,
	}, nil
}

// MarkRead flips the read flag on a single notification owned by the caller.
func (s *Service) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	var record Notification
	err := s.db.WithContext(ctx).Where("id = ?", notificationID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if record.RecipientID != recipientID {
		return ErrNotRecipient
	}
	return s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ?", notificationID).
		Update("is_read", true).Error
}

// MarkAllRead flips the read flag on every notification owned by the caller.
func (s *Service) MarkAllRead(ctx context.Context, recipientID string) error {
	return s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("recipient_id = ?", recipientID).
		Update("is_read", true).Error
}
