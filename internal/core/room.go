package core

import (
	"sync"
	"time"
)

// JoinMode is the access policy of a room.
type JoinMode string

const (
	JoinModeOpen     JoinMode = "open"
	JoinModePassword JoinMode = "password"
)

// ParseJoinMode accepts the wire names of a join mode. Empty means open.
func ParseJoinMode(s string) (JoinMode, error) {
	switch JoinMode(s) {
	case "", JoinModeOpen:
		return JoinModeOpen, nil
	case JoinModePassword:
		return JoinModePassword, nil
	default:
		return "", errBadRequest("unknown join mode %q", s)
	}
}

// Participant is one connected identity within a room.
type Participant struct {
	ID             string
	DisplayName    string
	AvatarURL      string
	SourceLanguage string
	TargetLanguage string
	JoinedAt       time.Time
}

// Message is one utterance in a room transcript. Immutable once appended.
type Message struct {
	ID                string
	ParticipantID     string
	AuthorDisplayName string
	OriginalText      string
	OriginalLanguage  string
	TargetLanguage    string
	AudioRef          string
	CreatedAt         time.Time
}

// Settings is the access-control state of a room as visible to clients.
// The password hash never leaves the room.
type Settings struct {
	AdminID  string
	JoinMode JoinMode
}

// RoomSnapshot is a point-in-time copy of a room, safe to use without locks.
type RoomSnapshot struct {
	Code           string
	Participants   []Participant
	Messages       []Message
	Settings       Settings
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Room is the mutable state behind a room code. All fields are guarded by mu;
// only the Store touches them.
type Room struct {
	mu sync.Mutex

	code         string
	order        []string
	participants map[string]Participant
	messages     []Message

	settings        Settings
	passwordHash    string
	settingsVersion uint64

	createdAt      time.Time
	lastActivityAt time.Time
	evicted        bool
}

func newRoom(code string, now time.Time) *Room {
	return &Room{
		code:           code,
		participants:   make(map[string]Participant),
		settings:       Settings{JoinMode: JoinModeOpen},
		createdAt:      now,
		lastActivityAt: now,
	}
}

func (r *Room) isMember(id string) bool {
	_, ok := r.participants[id]
	return ok
}

// upsert inserts a participant or refreshes an existing one in place.
// A refresh keeps the original join time and position. Returns true when newly added.
func (r *Room) upsert(p Participant, now time.Time) bool {
	if existing, ok := r.participants[p.ID]; ok {
		p.JoinedAt = existing.JoinedAt
		r.participants[p.ID] = p
		return false
	}
	p.JoinedAt = now
	r.participants[p.ID] = p
	r.order = append(r.order, p.ID)
	if r.settings.AdminID == "" {
		r.settings.AdminID = p.ID
	}
	return true
}

// remove deletes a participant. If it was the admin, admin passes to the
// longest-present remaining participant.
func (r *Room) remove(id string) bool {
	if _, ok := r.participants[id]; !ok {
		return false
	}
	delete(r.participants, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.settings.AdminID == id {
		r.settings.AdminID = ""
		if len(r.order) > 0 {
			r.settings.AdminID = r.order[0]
		}
	}
	return true
}

func (r *Room) appendMessage(m Message, limit int) {
	r.messages = append(r.messages, m)
	if limit > 0 && len(r.messages) > limit {
		drop := len(r.messages) - limit
		copy(r.messages, r.messages[drop:])
		clear(r.messages[limit:])
		r.messages = r.messages[:limit]
	}
}

func (r *Room) setSettings(mode JoinMode, hash string) {
	r.settings.JoinMode = mode
	r.passwordHash = hash
	r.settingsVersion++
}

func (r *Room) empty() bool {
	return len(r.order) == 0
}

func (r *Room) snapshot(withMessages bool) RoomSnapshot {
	snap := RoomSnapshot{
		Code:           r.code,
		Participants:   make([]Participant, 0, len(r.order)),
		Settings:       r.settings,
		CreatedAt:      r.createdAt,
		LastActivityAt: r.lastActivityAt,
	}
	for _, id := range r.order {
		snap.Participants = append(snap.Participants, r.participants[id])
	}
	if withMessages {
		snap.Messages = make([]Message, len(r.messages))
		copy(snap.Messages, r.messages)
	}
	return snap
}

// release drops all state once the room is evicted so late readers cannot see it.
func (r *Room) release() int {
	n := len(r.order)
	r.evicted = true
	r.order = nil
	r.participants = nil
	r.messages = nil
	r.passwordHash = ""
	return n
}
