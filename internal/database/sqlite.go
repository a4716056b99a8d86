package database

import (
	"fmt"

	"github.com/friendbook-app/backend/internal/auth"
	"github.com/friendbook-app/backend/internal/comments"
	"github.com/friendbook-app/backend/internal/friends"
	"github.com/friendbook-app/backend/internal/messages"
	"github.com/friendbook-app/backend/internal/notifications"
	"github.com/friendbook-app/backend/internal/posts"
	"github.com/friendbook-app/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Migrate brings the schema up to date for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&auth.RefreshToken{},
		&posts.Post{},
		&comments.Comment{},
		&friends.FriendRequest{},
		&friends.Friendship{},
		&messages.Message{},
		&notifications.Notification{},
	)
}
