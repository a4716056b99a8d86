package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendbook-app/backend/internal/ids"
	"gorm.io/gorm"
)

const defaultRefreshTokenTTL = 7 * 24 * time.Hour

var (
	// ErrUnknownRefreshToken indicates the presented refresh token is not on record.
	ErrUnknownRefreshToken = errors.New("auth: unknown refresh token")
	// ErrExpiredRefreshToken indicates the refresh token is past its expiry.
	ErrExpiredRefreshToken = errors.New("auth: refresh token expired")
)

// RefreshToken is the durable record backing a long-lived credential. Tokens
// are opaque identifiers; possession plus presence of the row grants a refresh.
type RefreshToken struct {
	Token     string    `gorm:"column:token;primaryKey;size:190;not null"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// RefreshStoreConfig describes the dependencies of the refresh token store.
type RefreshStoreConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	TokenTTL   time.Duration
	Clock      func() time.Time
}

// RefreshStore persists refresh tokens so they can be rotated and revoked.
type RefreshStore struct {
	db         *gorm.DB
	idProvider ids.Provider
	ttl        time.Duration
	clock      func() time.Time
}

// NewRefreshStore constructs the store after validating its configuration.
func NewRefreshStore(cfg RefreshStoreConfig) (*RefreshStore, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("auth: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("auth: id provider required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultRefreshTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &RefreshStore{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		ttl:        ttl,
		clock:      clock,
	}, nil
}

// Issue mints a fresh refresh token for the user and persists it.
func (s *RefreshStore) Issue(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errMissingSubjectClaim
	}
	token, err := s.idProvider.NewID()
	if err != nil {
		return "", err
	}
	record := RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.clock().UTC().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", err
	}
	return token, nil
}

// Redeem validates the token, removes it, and returns the user it belongs to.
// The caller is expected to issue a replacement (rotation on every refresh).
func (s *RefreshStore) Redeem(ctx context.Context, token string) (string, error) {
	var record RefreshToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUnknownRefreshToken
	}
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Delete(&RefreshToken{}, "token = ?", token).Error; err != nil {
		return "", err
	}
	if s.clock().UTC().After(record.ExpiresAt) {
		return "", ErrExpiredRefreshToken
	}
	return record.UserID, nil
}

// Revoke removes the token. Unknown tokens are a no-op so logout is idempotent.
func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Delete(&RefreshToken{}, "token = ?", token).Error
}
