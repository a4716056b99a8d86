package users

import (
	"context"
	"errors"
	"testing"

	"github.com/friendbook-app/backend/internal/ids"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: ids.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestRegisterAndAuthenticate(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	user, err := service.Register(ctx, "Alice", "Alice@Example.com", "hunter22")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.PasswordHash == "hunter22" {
		t.Fatal("password must not be stored in the clear")
	}

	authenticated, err := service.Authenticate(ctx, "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if authenticated.ID != user.ID {
		t.Fatalf("expected user %q, got %q", user.ID, authenticated.ID)
	}

	if _, err := service.Authenticate(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := service.Authenticate(ctx, "nobody@example.com", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, "Alice", "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := service.Register(ctx, "Impostor", "ALICE@example.com", "different"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{name: "missing name", email: "a@example.com", password: "secret"},
		{name: "missing email", userName: "Alice", password: "secret"},
		{name: "missing password", userName: "Alice", email: "a@example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.Register(ctx, tc.userName, tc.email, tc.password); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSummaryForReflectsProfileUpdates(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	user, err := service.Register(ctx, "Alice", "alice@example.com", "hunter22")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	summary, err := service.SummaryFor(ctx, user.ID)
	if err != nil {
		t.Fatalf("summary lookup failed: %v", err)
	}
	if summary.ProfileImageURL != "" {
		t.Fatalf("expected empty avatar, got %q", summary.ProfileImageURL)
	}

	if _, err := service.UpdateProfile(ctx, user.ID, "hello", "https://cdn.example.com/alice.png"); err != nil {
		t.Fatalf("profile update failed: %v", err)
	}

	// the cached summary was invalidated by the update.
	summary, err = service.SummaryFor(ctx, user.ID)
	if err != nil {
		t.Fatalf("summary lookup failed: %v", err)
	}
	if summary.ProfileImageURL != "https://cdn.example.com/alice.png" {
		t.Fatalf("expected updated avatar, got %q", summary.ProfileImageURL)
	}
}

func TestSearchExcludesCaller(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	alice, err := service.Register(ctx, "Alice Adams", "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := service.Register(ctx, "Alicia Keys", "alicia@example.com", "secret"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	matches, err := service.Search(ctx, alice.ID, "Alic", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Name != "Alicia Keys" {
		t.Fatalf("expected the caller to be excluded, got %q", matches[0].Name)
	}
}
