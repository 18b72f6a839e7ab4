package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// User represents an account. Guests have no password.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	DisplayName  string
	AvatarURL    string
	IsGuest      bool
	IsAdmin      bool
	SessionID    string // For guest user session tracking
	CreatedAt    time.Time
}

// ProfileUpdate carries optional profile changes. Nil fields are left as they are.
type ProfileUpdate struct {
	DisplayName *string
	AvatarURL   *string
}

// Ad is a creative shown in an ad slot.
type Ad struct {
	ID        string // UUID
	SlotKey   string
	Title     string
	ImageURL  string
	LinkURL   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest user with session ID.
	CreateGuestUser(ctx context.Context, sessionID string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a registered (non-guest) user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// UpdateProfile applies a profile update and returns the updated user.
	UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*User, error)

	// SetUserAdmin grants or revokes site admin rights.
	SetUserAdmin(ctx context.Context, username string, isAdmin bool) error
}

// AdStore handles ad persistence.
type AdStore interface {
	// ListActiveAds returns active ads for a slot (all slots when empty), most recently updated first.
	ListActiveAds(ctx context.Context, slotKey string, limit int) ([]*Ad, error)

	// CreateAd inserts an ad. ID, CreatedAt and UpdatedAt are assigned by the store.
	CreateAd(ctx context.Context, ad *Ad) error

	// UpdateAd replaces the editable fields of an ad.
	UpdateAd(ctx context.Context, ad *Ad) error

	// SetAdActive toggles whether an ad is served.
	SetAdActive(ctx context.Context, id string, active bool) error

	// GetAd retrieves an ad by ID.
	GetAd(ctx context.Context, id string) (*Ad, error)

	// DeleteAd removes an ad.
	DeleteAd(ctx context.Context, id string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	AdStore

	// Close closes the underlying database connection.
	Close() error
}
