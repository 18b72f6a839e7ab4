package core

import (
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// MaxRoomCodeLen bounds room codes in bytes.
	MaxRoomCodeLen = 64
	// MaxDisplayNameLen bounds participant display names in runes.
	MaxDisplayNameLen = 64

	defaultShards      = 32
	defaultMaxMessages = 200
)

// EvictReason says why a room left the registry.
type EvictReason string

const (
	EvictIdle  EvictReason = "idle"
	EvictEmpty EvictReason = "empty"
)

// RemoveReason says why a participant left a room.
type RemoveReason string

const (
	RemoveLeave RemoveReason = "leave"
	RemoveKick  RemoveReason = "kick"
)

// Observer receives store events, typically to update metrics.
type Observer interface {
	RoomCreated()
	RoomEvicted(reason EvictReason, participants int)
	ParticipantJoined()
	ParticipantRemoved(reason RemoveReason)
	MessageAppended()
}

type nopObserver struct{}

func (nopObserver) RoomCreated()                    {}
func (nopObserver) RoomEvicted(EvictReason, int)    {}
func (nopObserver) ParticipantJoined()              {}
func (nopObserver) ParticipantRemoved(RemoveReason) {}
func (nopObserver) MessageAppended()                {}

// Options configures a Store. Hasher is required.
type Options struct {
	// MaxMessages caps the retained message log per room; oldest messages are dropped first.
	MaxMessages int
	// MaxMessageChars bounds message text in runes. Zero means unlimited.
	MaxMessageChars int
	// IdleTTL is how long a room may go without activity before Sweep evicts it.
	IdleTTL time.Duration
	// Shards is the number of independently locked partitions of the room table.
	Shards int

	Hasher   PasswordHasher
	Observer Observer
	Logger   *zerolog.Logger
	Now      func() time.Time
}

// CreateOptions are the settings a room is created with when the first caller arrives.
type CreateOptions struct {
	JoinMode JoinMode
	Password string
}

type shard struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// list copies the shard's rooms so callers can lock each one without holding sh.mu.
func (sh *shard) list() []*Room {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	rooms := make([]*Room, 0, len(sh.rooms))
	for _, room := range sh.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Store is the in-memory registry of rooms. Every operation on one room code is
// serialized by that room's lock; shard locks are only held for table lookups,
// so rooms never block each other.
//
// Lock order is room.mu before shard.mu. Nothing takes a room lock while holding a shard lock.
type Store struct {
	shards []*shard

	maxMessages     int
	maxMessageChars int
	idleTTL         time.Duration

	hasher   PasswordHasher
	observer Observer
	log      *zerolog.Logger
	now      func() time.Time
}

// NewStore creates an empty room store.
func NewStore(opts Options) (*Store, error) {
	if opts.Hasher == nil {
		return nil, errors.New("core: password hasher is required")
	}
	if opts.Shards <= 0 {
		opts.Shards = defaultShards
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = defaultMaxMessages
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	shards := make([]*shard, opts.Shards)
	for i := range shards {
		shards[i] = &shard{rooms: make(map[string]*Room)}
	}

	return &Store{
		shards:          shards,
		maxMessages:     opts.MaxMessages,
		maxMessageChars: opts.MaxMessageChars,
		idleTTL:         opts.IdleTTL,
		hasher:          opts.Hasher,
		observer:        opts.Observer,
		log:             opts.Logger,
		now:             opts.Now,
	}, nil
}

// CreateOrGetRoom returns the room for code, creating it with creator as its first
// participant and admin if it does not exist. An existing room is returned unchanged.
func (s *Store) CreateOrGetRoom(code string, creator Participant, opts CreateOptions) (RoomSnapshot, bool, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return RoomSnapshot{}, false, err
	}
	if err := validateParticipant(&creator); err != nil {
		return RoomSnapshot{}, false, err
	}

	for {
		if room := s.lookup(code); room != nil {
			room.mu.Lock()
			if room.evicted {
				room.mu.Unlock()
				continue
			}
			snap := room.snapshot(false)
			room.mu.Unlock()
			return snap, false, nil
		}

		snap, created, err := s.create(code, creator, opts)
		if err != nil || created {
			return snap, created, err
		}
	}
}

// Join admits a participant to the room, creating the room with opts if it does not exist.
// Password-protected rooms require a matching password unless the caller is already a
// participant or the admin. Joining again refreshes the participant's profile and languages.
func (s *Store) Join(code string, p Participant, password string, opts CreateOptions) (RoomSnapshot, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return RoomSnapshot{}, err
	}
	if err := validateParticipant(&p); err != nil {
		return RoomSnapshot{}, err
	}

	for {
		room := s.lookup(code)
		if room == nil {
			snap, created, err := s.create(code, p, opts)
			if err != nil {
				return RoomSnapshot{}, err
			}
			if created {
				return snap, nil
			}
			continue
		}

		snap, retry, err := s.joinExisting(room, p, password)
		if retry {
			continue
		}
		return snap, err
	}
}

// joinExisting runs the access check and insert for a room found in the table.
// retry is set when the room was evicted or its settings changed underneath us.
func (s *Store) joinExisting(room *Room, p Participant, password string) (RoomSnapshot, bool, error) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.evicted {
		return RoomSnapshot{}, true, nil
	}

	if AuthorizeJoin(room.settings, p.ID, room.isMember(p.ID)) == JoinNeedsPassword {
		if password == "" {
			return RoomSnapshot{}, false, coreError(ErrUnauthorized, ErrCodePasswordRequired, "this room requires a password")
		}

		// bcrypt is slow; compare without holding the room.
		hash, version := room.passwordHash, room.settingsVersion
		room.mu.Unlock()
		ok := s.hasher.Compare(hash, password)
		room.mu.Lock()

		if room.evicted || room.settingsVersion != version {
			return RoomSnapshot{}, true, nil
		}
		if !ok {
			s.log.Debug().Str("room", room.code).Str("participant", p.ID).Msg("join rejected: wrong password")
			return RoomSnapshot{}, false, coreError(ErrUnauthorized, ErrCodeInvalidPassword, "incorrect room password")
		}
	}

	now := s.now()
	if room.upsert(p, now) {
		s.observer.ParticipantJoined()
		s.log.Info().Str("room", room.code).Str("participant", p.ID).Msg("participant joined")
	}
	room.lastActivityAt = now
	return room.snapshot(false), false, nil
}

// create inserts a new room holding creator. created is false if another caller won the race.
func (s *Store) create(code string, creator Participant, opts CreateOptions) (RoomSnapshot, bool, error) {
	mode := opts.JoinMode
	if mode == "" {
		mode = JoinModeOpen
	}
	if err := ValidateJoinMode(mode, opts.Password); err != nil {
		return RoomSnapshot{}, false, err
	}

	var hash string
	if mode == JoinModePassword {
		var err error
		if hash, err = s.hasher.Hash(opts.Password); err != nil {
			return RoomSnapshot{}, false, err
		}
	}

	now := s.now()
	room := newRoom(code, now)
	room.setSettings(mode, hash)
	room.upsert(creator, now)

	sh := s.shardFor(code)
	sh.mu.Lock()
	if _, exists := sh.rooms[code]; exists {
		sh.mu.Unlock()
		return RoomSnapshot{}, false, nil
	}
	sh.rooms[code] = room
	sh.mu.Unlock()

	s.observer.RoomCreated()
	s.observer.ParticipantJoined()
	s.log.Info().Str("room", code).Str("admin", creator.ID).Str("join_mode", string(mode)).Msg("room created")

	// The room is visible to other callers from here on.
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.snapshot(false), true, nil
}

// Leave removes a participant. Leaving a live room one is not part of is a no-op;
// leaving a room that no longer exists fails with ErrExpired. The last participant
// out evicts the room.
func (s *Store) Leave(code, participantID string) error {
	participantID = normalizeID(participantID)
	return s.withRoom(code, func(room *Room) error {
		s.removeLocked(room, participantID, RemoveLeave)
		return nil
	})
}

// Kick removes target on behalf of the room admin.
func (s *Store) Kick(code, requesterID, targetID string) error {
	requesterID, targetID = normalizeID(requesterID), normalizeID(targetID)
	return s.withRoom(code, func(room *Room) error {
		if err := AuthorizeKick(room.settings, requesterID, targetID, room.isMember(targetID)); err != nil {
			return err
		}
		s.removeLocked(room, targetID, RemoveKick)
		return nil
	})
}

func (s *Store) removeLocked(room *Room, participantID string, reason RemoveReason) {
	wasAdmin := IsAdmin(room.settings, participantID)
	if !room.remove(participantID) {
		return
	}
	s.observer.ParticipantRemoved(reason)
	room.lastActivityAt = s.now()

	ev := s.log.Info().Str("room", room.code).Str("participant", participantID).Str("reason", string(reason))
	if wasAdmin && room.settings.AdminID != "" {
		ev = ev.Str("new_admin", room.settings.AdminID)
	}
	ev.Msg("participant removed")

	if room.empty() {
		s.evictLocked(room, EvictEmpty)
	}
}

// Poll returns the full current state of a room. Reading does not require membership,
// but only a poll from a current participant counts as room activity.
func (s *Store) Poll(code, viewerID string) (RoomSnapshot, error) {
	viewerID = normalizeID(viewerID)
	var snap RoomSnapshot
	err := s.withRoom(code, func(room *Room) error {
		if viewerID != "" && room.isMember(viewerID) {
			room.lastActivityAt = s.now()
		}
		snap = room.snapshot(true)
		return nil
	})
	return snap, err
}

// AppendMessage adds a message to the room log and returns it as stored.
// The server assigns the timestamp and, when missing, the id. When the author is
// a current participant, the stored display name wins over the one supplied.
func (s *Store) AppendMessage(code string, m Message) (Message, error) {
	m.ParticipantID = normalizeID(m.ParticipantID)
	m.OriginalText = strings.TrimSpace(m.OriginalText)
	switch {
	case m.ParticipantID == "":
		return Message{}, errBadRequest("message author is required")
	case m.OriginalText == "":
		return Message{}, errBadRequest("message text is required")
	case m.OriginalLanguage == "":
		return Message{}, errBadRequest("message language is required")
	case s.maxMessageChars > 0 && utf8.RuneCountInString(m.OriginalText) > s.maxMessageChars:
		return Message{}, errBadRequest("message exceeds %d characters", s.maxMessageChars)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	err := s.withRoom(code, func(room *Room) error {
		if p, ok := room.participants[m.ParticipantID]; ok {
			m.AuthorDisplayName = p.DisplayName
		}
		now := s.now()
		m.CreatedAt = now
		room.appendMessage(m, s.maxMessages)
		room.lastActivityAt = now
		return nil
	})
	if err != nil {
		return Message{}, err
	}

	s.observer.MessageAppended()
	return m, nil
}

// UpdateSettings changes the join mode of a room on behalf of its admin.
// Authorization is checked before and after hashing, since admin may change meanwhile.
func (s *Store) UpdateSettings(code, requesterID string, mode JoinMode, password string) (Settings, error) {
	requesterID = normalizeID(requesterID)
	if err := ValidateJoinMode(mode, password); err != nil {
		return Settings{}, err
	}

	var hash string
	if mode == JoinModePassword {
		err := s.withRoom(code, func(room *Room) error {
			return AuthorizeSettings(room.settings, requesterID)
		})
		if err != nil {
			return Settings{}, err
		}
		if hash, err = s.hasher.Hash(password); err != nil {
			return Settings{}, err
		}
	}

	var settings Settings
	err := s.withRoom(code, func(room *Room) error {
		if err := AuthorizeSettings(room.settings, requesterID); err != nil {
			return err
		}
		room.setSettings(mode, hash)
		room.lastActivityAt = s.now()
		settings = room.settings
		s.log.Info().Str("room", room.code).Str("join_mode", string(mode)).Msg("room settings updated")
		return nil
	})
	return settings, err
}

// Sweep evicts every room idle for longer than the configured TTL and every room
// without participants. It returns the evicted codes.
func (s *Store) Sweep(now time.Time) []string {
	var evicted []string
	for _, sh := range s.shards {
		for _, room := range sh.list() {
			room.mu.Lock()
			var reason EvictReason
			switch {
			case room.evicted:
			case room.empty():
				reason = EvictEmpty
			case s.idleTTL > 0 && now.Sub(room.lastActivityAt) > s.idleTTL:
				reason = EvictIdle
			}
			if reason != "" {
				s.evictLocked(room, reason)
				evicted = append(evicted, room.code)
			}
			room.mu.Unlock()
		}
	}
	return evicted
}

// Len returns the number of live rooms.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.rooms)
		sh.mu.RUnlock()
	}
	return n
}

// Stats is a point-in-time count of live store contents.
type Stats struct {
	Rooms        int
	Participants int
	Messages     int
}

// Stats walks every live room. Each room is read under its own lock, so the totals
// are not an atomic view of the whole store.
func (s *Store) Stats() Stats {
	var st Stats
	for _, sh := range s.shards {
		for _, room := range sh.list() {
			room.mu.Lock()
			if !room.evicted {
				st.Rooms++
				st.Participants += len(room.order)
				st.Messages += len(room.messages)
			}
			room.mu.Unlock()
		}
	}
	return st
}

// evictLocked drops the room from the table. The caller holds room.mu.
// Evicting an already evicted room is a no-op.
func (s *Store) evictLocked(room *Room, reason EvictReason) {
	if room.evicted {
		return
	}
	remaining := room.release()

	sh := s.shardFor(room.code)
	sh.mu.Lock()
	if sh.rooms[room.code] == room {
		delete(sh.rooms, room.code)
	}
	sh.mu.Unlock()

	s.observer.RoomEvicted(reason, remaining)
	s.log.Info().Str("room", room.code).Str("reason", string(reason)).Int("participants", remaining).Msg("room evicted")
}

// withRoom runs fn under the room's lock, failing with ErrExpired if the room is gone.
func (s *Store) withRoom(code string, fn func(*Room) error) error {
	code, err := normalizeCode(code)
	if err != nil {
		return err
	}
	room := s.lookup(code)
	if room == nil {
		return errExpired(code)
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.evicted {
		return errExpired(code)
	}
	return fn(room)
}

func (s *Store) lookup(code string) *Room {
	sh := s.shardFor(code)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.rooms[code]
}

func (s *Store) shardFor(code string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(code))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func normalizeCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errBadRequest("room code is required")
	}
	if len(code) > MaxRoomCodeLen {
		return "", errBadRequest("room code exceeds %d bytes", MaxRoomCodeLen)
	}
	return code, nil
}

// normalizeID is applied to every participant id entering the store.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

func validateParticipant(p *Participant) error {
	p.ID = normalizeID(p.ID)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	switch {
	case p.ID == "":
		return errBadRequest("participant id is required")
	case p.DisplayName == "":
		return errBadRequest("display name is required")
	case utf8.RuneCountInString(p.DisplayName) > MaxDisplayNameLen:
		return errBadRequest("display name exceeds %d characters", MaxDisplayNameLen)
	case p.SourceLanguage == "" || p.TargetLanguage == "":
		return errBadRequest("source and target languages are required")
	}
	return nil
}
