package core

import (
	"errors"
	"strings"
	"testing"
)

func TestAuthorizeJoin(t *testing.T) {
	open := Settings{AdminID: "admin", JoinMode: JoinModeOpen}
	locked := Settings{AdminID: "admin", JoinMode: JoinModePassword}

	tests := []struct {
		name     string
		settings Settings
		id       string
		member   bool
		want     JoinDecision
	}{
		{"open room stranger", open, "x", false, JoinAllowed},
		{"locked room stranger", locked, "x", false, JoinNeedsPassword},
		{"locked room member", locked, "x", true, JoinAllowed},
		{"locked room admin", locked, "admin", false, JoinAllowed},
		{"locked room empty id", Settings{JoinMode: JoinModePassword}, "", false, JoinNeedsPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AuthorizeJoin(tt.settings, tt.id, tt.member); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthorizeKick(t *testing.T) {
	s := Settings{AdminID: "admin"}

	tests := []struct {
		name      string
		requester string
		target    string
		present   bool
		wantKind  error
		wantCode  string
	}{
		{"not admin", "u1", "u2", true, ErrForbidden, ErrCodeNotAdmin},
		{"not admin, absent target", "u1", "ghost", false, ErrForbidden, ErrCodeNotAdmin},
		{"self kick", "admin", "admin", true, ErrForbidden, ErrCodeCannotKickSelf},
		{"absent target", "admin", "ghost", false, ErrNotFound, ErrCodeParticipantNotFound},
		{"ok", "admin", "u2", true, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AuthorizeKick(s, tt.requester, tt.target, tt.present)
			if tt.wantKind == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantKind) || ErrorCode(err) != tt.wantCode {
				t.Fatalf("expected %v/%s, got %v (%s)", tt.wantKind, tt.wantCode, err, ErrorCode(err))
			}
		})
	}
}

func TestAuthorizeSettings(t *testing.T) {
	s := Settings{AdminID: "admin"}
	if err := AuthorizeSettings(s, "admin"); err != nil {
		t.Fatalf("admin should be allowed: %v", err)
	}
	if err := AuthorizeSettings(s, "u1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := AuthorizeSettings(Settings{}, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("empty requester must never be admin, got %v", err)
	}
}

func TestValidateJoinMode(t *testing.T) {
	if err := ValidateJoinMode(JoinModeOpen, ""); err != nil {
		t.Fatalf("open mode needs no password: %v", err)
	}
	if err := ValidateJoinMode(JoinModePassword, "abc"); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
	for _, tc := range []struct {
		mode JoinMode
		pw   string
	}{
		{JoinModePassword, ""},
		{JoinModePassword, strings.Repeat("x", MaxPasswordLen+1)},
		{"secret", "abc"},
	} {
		if err := ValidateJoinMode(tc.mode, tc.pw); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ValidateJoinMode(%q, len %d): expected ErrInvalidInput, got %v", tc.mode, len(tc.pw), err)
		}
	}
}

func TestParseJoinMode(t *testing.T) {
	for in, want := range map[string]JoinMode{"": JoinModeOpen, "open": JoinModeOpen, "password": JoinModePassword} {
		got, err := ParseJoinMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseJoinMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseJoinMode("Password"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
