// Package identity derives participant ids.
//
// A participant id tells "same human, new connection" apart from "different human". Signed-in
// users get <userID>:<instanceID>, where the instance id is persisted per browser session, so two
// tabs are two participants while a reload of the same tab rejoins as the same one. Everyone else
// gets a fresh anonymous id.
package identity

import (
	"strings"

	"github.com/google/uuid"
)

const (
	anonymousPrefix = "user-"
	anonymousLen    = 9
	separator       = ":"
)

// Resolve returns the participant id for an optional authenticated user id and instance id.
// An authenticated caller without an instance id gets a newly minted one.
func Resolve(userID, instanceID string) (participantID, resolvedInstanceID string) {
	userID = strings.TrimSpace(userID)
	instanceID = strings.TrimSpace(instanceID)

	if userID == "" {
		return NewAnonymousID(), instanceID
	}
	if instanceID == "" {
		instanceID = NewInstanceID()
	}
	return userID + separator + instanceID, instanceID
}

// NewInstanceID mints a per-browser-session instance id.
func NewInstanceID() string {
	return uuid.NewString()
}

// NewAnonymousID mints an id for a caller who is not signed in.
func NewAnonymousID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return anonymousPrefix + id[:anonymousLen]
}

// IsAnonymous reports whether id was produced by NewAnonymousID rather than Resolve for a user.
func IsAnonymous(participantID string) bool {
	return !strings.Contains(participantID, separator)
}

// UserID extracts the authenticated user id from a participant id, if any.
func UserID(participantID string) (string, bool) {
	user, _, ok := strings.Cut(participantID, separator)
	if !ok || user == "" {
		return "", false
	}
	return user, true
}
