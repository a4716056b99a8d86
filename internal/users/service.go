package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/friendbook-app/backend/internal/ids"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const summaryCacheSize = 1024

var (
	// ErrEmailTaken indicates a registration attempt with an email already on record.
	ErrEmailTaken = errors.New("users: email already registered")
	// ErrInvalidCredentials indicates an email/password pair that does not match.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("users: not found")
	// ErrInvalidInput indicates missing or malformed registration fields.
	ErrInvalidInput = errors.New("users: invalid input")
)

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Clock      func() time.Time
}

// Service manages accounts and the cached summary projections consumed by
// the notification dispatcher.
type Service struct {
	db         *gorm.DB
	idProvider ids.Provider
	clock      func() time.Time
	summaries  *lru.Cache[string, Summary]
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	cache, err := lru.New[string, Summary](summaryCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		clock:      clock,
		summaries:  cache,
	}, nil
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, name, email, password string) (User, error) {
	name = normalize(name)
	email = strings.ToLower(normalize(email))
	if name == "" || email == "" || password == "" {
		return User{}, ErrInvalidInput
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return User{}, err
	}
	if count > 0 {
		return User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies the email/password pair and returns the account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(normalize(email))

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetByID loads a single account.
func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// SummaryFor returns the embeddable projection for the user, served from an
// LRU cache since the dispatcher resolves the same senders repeatedly.
func (s *Service) SummaryFor(ctx context.Context, userID string) (Summary, error) {
	if cached, ok := s.summaries.Get(userID); ok {
		return cached, nil
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	summary := SummaryOf(user)
	s.summaries.Add(userID, summary)
	return summary, nil
}

// UpdateProfile mutates the editable profile fields and drops the stale
// cached summary.
func (s *Service) UpdateProfile(ctx context.Context, userID, bio, profileImageURL string) (User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	updates := map[string]interface{}{
		"bio":               normalize(bio),
		"profile_image_url": normalize(profileImageURL),
	}
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return User{}, err
	}
	s.summaries.Remove(userID)
	user.Bio = normalize(bio)
	user.ProfileImageURL = normalize(profileImageURL)
	return user, nil
}

// Search returns summaries of users whose name contains the query, excluding
// the caller.
func (s *Service) Search(ctx context.Context, callerID, query string, limit int) ([]Summary, error) {
	query = normalize(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	var matches []User
	err := s.db.WithContext(ctx).
		Where("name LIKE ? AND id <> ?", "%"+query+"%", callerID).
		Order("name ASC").
		Limit(limit).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(matches))
	for _, match := range matches {
		summaries = append(summaries, SummaryOf(match))
	}
	return summaries, nil
}
