package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/voicelink/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	display_name  TEXT NOT NULL DEFAULT '',
	avatar_url    TEXT NOT NULL DEFAULT '',
	is_guest      BOOLEAN NOT NULL DEFAULT 0,
	is_admin      BOOLEAN NOT NULL DEFAULT 0,
	session_id    TEXT,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS ads (
	id         TEXT PRIMARY KEY,
	slot_key   TEXT NOT NULL,
	title      TEXT NOT NULL,
	image_url  TEXT NOT NULL,
	link_url   TEXT NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ads_slot_active ON ads (slot_key, is_active, updated_at DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests that need a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Migrate creates any missing tables.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

const userColumns = `id, username, password_hash, display_name, avatar_url, is_guest, is_admin, COALESCE(session_id, ''), created_at`

func scanUser(row interface{ Scan(...any) error }) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.DisplayName,
		&user.AvatarURL,
		&user.IsGuest,
		&user.IsAdmin,
		&user.SessionID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// CreateUser creates a new user with hashed password. The display name starts as the username.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, display_name, is_guest)
		VALUES (?, ?, ?, 0)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash, username)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a temporary guest user with session ID.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, sessionID string) (*store.User, error) {
	if len(sessionID) < 8 {
		return nil, fmt.Errorf("guest session id too short")
	}
	query := `
		INSERT INTO users (username, password_hash, display_name, is_guest, session_id)
		VALUES (?, '', ?, 1, ?)
	`
	guestUsername := "guest_" + sessionID[:8]

	result, err := s.db.ExecContext(ctx, query, guestUsername, "Guest "+sessionID[:4], sessionID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert guest user: %w", store.ErrConflict)
		}
		return nil, fmt.Errorf("insert guest user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a registered user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ? AND is_guest = 0`
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

// UpdateProfile sets the non-nil fields of update.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, id int64, update store.ProfileUpdate) (*store.User, error) {
	query := `
		UPDATE users
		SET display_name = COALESCE(?, display_name),
		    avatar_url   = COALESCE(?, avatar_url)
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, update.DisplayName, update.AvatarURL, id)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if err := requireAffected(result, "user"); err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

// SetUserAdmin grants or revokes site admin rights for a registered user.
func (s *SQLiteStore) SetUserAdmin(ctx context.Context, username string, isAdmin bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_admin = ? WHERE username = ? AND is_guest = 0`, isAdmin, username)
	if err != nil {
		return fmt.Errorf("set user admin: %w", err)
	}
	return requireAffected(result, "user")
}

// ==== AdStore implementation ====

const adColumns = `id, slot_key, title, image_url, link_url, is_active, created_at, updated_at`

func scanAd(row interface{ Scan(...any) error }) (*store.Ad, error) {
	var ad store.Ad
	err := row.Scan(
		&ad.ID,
		&ad.SlotKey,
		&ad.Title,
		&ad.ImageURL,
		&ad.LinkURL,
		&ad.IsActive,
		&ad.CreatedAt,
		&ad.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ad, nil
}

// ListActiveAds returns up to limit active ads for slotKey, newest updated_at first,
// then newest created_at. An empty slotKey matches every slot.
func (s *SQLiteStore) ListActiveAds(ctx context.Context, slotKey string, limit int) ([]*store.Ad, error) {
	query := `
		SELECT ` + adColumns + `
		FROM ads
		WHERE is_active = 1 AND (? = '' OR slot_key = ?)
		ORDER BY updated_at DESC, created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, slotKey, slotKey, limit)
	if err != nil {
		return nil, fmt.Errorf("query ads: %w", err)
	}
	defer rows.Close()

	ads := make([]*store.Ad, 0, limit)
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ad: %w", err)
		}
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ads: %w", err)
	}

	return ads, nil
}

// CreateAd inserts ad, filling in its ID and timestamps.
func (s *SQLiteStore) CreateAd(ctx context.Context, ad *store.Ad) error {
	now := s.now().UTC()
	ad.ID = uuid.NewString()
	ad.CreatedAt = now
	ad.UpdatedAt = now

	query := `
		INSERT INTO ads (` + adColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		ad.ID, ad.SlotKey, ad.Title, ad.ImageURL, ad.LinkURL, ad.IsActive, ad.CreatedAt, ad.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert ad: %w", err)
	}
	return nil
}

// UpdateAd replaces slot, title, image and link of an existing ad.
func (s *SQLiteStore) UpdateAd(ctx context.Context, ad *store.Ad) error {
	ad.UpdatedAt = s.now().UTC()
	query := `
		UPDATE ads
		SET slot_key = ?, title = ?, image_url = ?, link_url = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, ad.SlotKey, ad.Title, ad.ImageURL, ad.LinkURL, ad.UpdatedAt, ad.ID)
	if err != nil {
		return fmt.Errorf("update ad: %w", err)
	}
	return requireAffected(result, "ad")
}

// SetAdActive toggles an ad on or off.
func (s *SQLiteStore) SetAdActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE ads SET is_active = ?, updated_at = ? WHERE id = ?`, active, s.now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set ad active: %w", err)
	}
	return requireAffected(result, "ad")
}

// GetAd retrieves an ad by ID.
func (s *SQLiteStore) GetAd(ctx context.Context, id string) (*store.Ad, error) {
	query := `SELECT ` + adColumns + ` FROM ads WHERE id = ?`
	ad, err := scanAd(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ad: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query ad: %w", err)
	}
	return ad, nil
}

// DeleteAd removes an ad.
func (s *SQLiteStore) DeleteAd(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ad: %w", err)
	}
	return requireAffected(result, "ad")
}

func requireAffected(result sql.Result, what string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
