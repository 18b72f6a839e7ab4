package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/voicelink/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// steppedClock returns a strictly increasing time on every call.
func steppedClock() func() time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	return func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
}

func TestCreateUserAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 || u.Username != "alice" || u.DisplayName != "alice" || u.IsGuest || u.IsAdmin {
		t.Fatalf("unexpected user: %+v", u)
	}

	byName, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != u.ID || byName.PasswordHash != "hash" {
		t.Fatalf("unexpected user by name: %+v", byName)
	}

	if _, err := s.CreateUser(ctx, "alice", "other"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGuestUsersAreNotFoundByUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g, err := s.CreateGuestUser(ctx, "0123456789abcdef")
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	if !g.IsGuest || g.Username != "guest_01234567" || g.SessionID != "0123456789abcdef" {
		t.Fatalf("unexpected guest: %+v", g)
	}
	if _, err := s.GetUserByUsername(ctx, g.Username); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("guest should not be found by username, got %v", err)
	}
	if _, err := s.CreateGuestUser(ctx, "short"); err == nil {
		t.Fatalf("expected error for short session id")
	}
}

func TestUpdateProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "bob", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	avatar := "https://cdn.example.com/bob.png"
	updated, err := s.UpdateProfile(ctx, u.ID, store.ProfileUpdate{AvatarURL: &avatar})
	if err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	if updated.AvatarURL != avatar || updated.DisplayName != "bob" {
		t.Fatalf("unexpected profile after avatar update: %+v", updated)
	}

	name := "Bobby"
	updated, err = s.UpdateProfile(ctx, u.ID, store.ProfileUpdate{DisplayName: &name})
	if err != nil {
		t.Fatalf("update name: %v", err)
	}
	if updated.DisplayName != name || updated.AvatarURL != avatar {
		t.Fatalf("name update should keep avatar: %+v", updated)
	}

	if _, err := s.UpdateProfile(ctx, 9999, store.ProfileUpdate{DisplayName: &name}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetUserAdmin(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "carol", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.SetUserAdmin(ctx, "carol", true); err != nil {
		t.Fatalf("grant admin: %v", err)
	}
	got, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !got.IsAdmin {
		t.Fatalf("expected admin flag")
	}
	if err := s.SetUserAdmin(ctx, "ghost", true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActiveAdsOrderingAndFiltering(t *testing.T) {
	s := newTestStore(t)
	s.now = steppedClock()
	ctx := context.Background()

	mk := func(slot, title string) *store.Ad {
		ad := &store.Ad{SlotKey: slot, Title: title, ImageURL: "img", LinkURL: "link", IsActive: true}
		if err := s.CreateAd(ctx, ad); err != nil {
			t.Fatalf("create ad %s: %v", title, err)
		}
		return ad
	}

	first := mk("sidebar", "first")
	second := mk("sidebar", "second")
	inactive := mk("sidebar", "inactive")
	mk("footer", "other slot")

	if err := s.SetAdActive(ctx, inactive.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	first.Title = "first, edited"
	if err := s.UpdateAd(ctx, first); err != nil {
		t.Fatalf("update: %v", err)
	}

	ads, err := s.ListActiveAds(ctx, "sidebar", 10)
	if err != nil {
		t.Fatalf("list ads: %v", err)
	}
	if len(ads) != 2 {
		t.Fatalf("expected 2 active sidebar ads, got %d", len(ads))
	}
	if ads[0].ID != first.ID || ads[1].ID != second.ID {
		t.Fatalf("expected most recently updated first, got %q then %q", ads[0].Title, ads[1].Title)
	}
	if ads[0].Title != "first, edited" {
		t.Fatalf("expected edited title, got %q", ads[0].Title)
	}

	limited, err := s.ListActiveAds(ctx, "sidebar", 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	all, err := s.ListActiveAds(ctx, "", 10)
	if err != nil {
		t.Fatalf("list all slots: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 active ads across slots, got %d", len(all))
	}
}

func TestAdLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ad := &store.Ad{SlotKey: "banner", Title: "t", ImageURL: "i", LinkURL: "l", IsActive: true}
	if err := s.CreateAd(ctx, ad); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ad.ID == "" || ad.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps to be assigned: %+v", ad)
	}

	got, err := s.GetAd(ctx, ad.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SlotKey != "banner" || !got.IsActive {
		t.Fatalf("unexpected ad: %+v", got)
	}

	if err := s.DeleteAd(ctx, ad.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetAd(ctx, ad.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteAd(ctx, ad.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := s.SetAdActive(ctx, "missing", true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
