package core

// Access decisions. These are pure functions over a settings snapshot;
// the Store calls them while holding the room lock.

// JoinDecision is the outcome of AuthorizeJoin.
type JoinDecision int

const (
	// JoinAllowed admits the caller without a password.
	JoinAllowed JoinDecision = iota
	// JoinNeedsPassword admits the caller only if the supplied password matches.
	JoinNeedsPassword
)

// MaxPasswordLen is the longest room password accepted, in bytes.
const MaxPasswordLen = 72

// PasswordHasher hashes room passwords and compares them in constant time.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// IsAdmin reports whether participantID administers the room.
func IsAdmin(s Settings, participantID string) bool {
	return participantID != "" && s.AdminID == participantID
}

// AuthorizeJoin decides whether a join needs a password. Existing participants
// and the admin always rejoin without one.
func AuthorizeJoin(s Settings, participantID string, isMember bool) JoinDecision {
	if s.JoinMode != JoinModePassword {
		return JoinAllowed
	}
	if isMember || IsAdmin(s, participantID) {
		return JoinAllowed
	}
	return JoinNeedsPassword
}

// AuthorizeKick checks that requester may remove target.
func AuthorizeKick(s Settings, requesterID, targetID string, targetPresent bool) error {
	if !IsAdmin(s, requesterID) {
		return coreError(ErrForbidden, ErrCodeNotAdmin, "only the room admin can remove participants")
	}
	if requesterID == targetID {
		return coreError(ErrForbidden, ErrCodeCannotKickSelf, "the admin cannot remove themselves; leave the room instead")
	}
	if !targetPresent {
		return coreError(ErrNotFound, ErrCodeParticipantNotFound, "participant is not in the room")
	}
	return nil
}

// AuthorizeSettings checks that requester may change room settings.
func AuthorizeSettings(s Settings, requesterID string) error {
	if !IsAdmin(s, requesterID) {
		return coreError(ErrForbidden, ErrCodeNotAdmin, "only the room admin can change settings")
	}
	return nil
}

// ValidateJoinMode checks that a password accompanies password mode.
func ValidateJoinMode(mode JoinMode, password string) error {
	switch mode {
	case JoinModeOpen:
		return nil
	case JoinModePassword:
		if password == "" {
			return errBadRequest("a password is required for password-protected rooms")
		}
		if len(password) > MaxPasswordLen {
			return errBadRequest("password exceeds %d bytes", MaxPasswordLen)
		}
		return nil
	default:
		return errBadRequest("unknown join mode %q", mode)
	}
}
