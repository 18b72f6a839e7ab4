package core

import (
	"crypto/subtle"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// plainHasher keeps tests fast; the bcrypt hasher is covered in the auth package.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Compare(hash, password string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte("plain:"+password)) == 1
}

// countingHasher records how many times Hash ran.
type countingHasher struct {
	plainHasher
	mu     sync.Mutex
	hashes int
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.mu.Lock()
	h.hashes++
	h.mu.Unlock()
	return h.plainHasher.Hash(password)
}

func (h *countingHasher) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hashes
}

type countingObserver struct {
	mu       sync.Mutex
	created  int
	evicted  map[EvictReason]int
	joined   int
	removed  map[RemoveReason]int
	messages int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{evicted: map[EvictReason]int{}, removed: map[RemoveReason]int{}}
}

func (o *countingObserver) RoomCreated() { o.mu.Lock(); o.created++; o.mu.Unlock() }
func (o *countingObserver) RoomEvicted(r EvictReason, _ int) {
	o.mu.Lock()
	o.evicted[r]++
	o.mu.Unlock()
}
func (o *countingObserver) ParticipantJoined() { o.mu.Lock(); o.joined++; o.mu.Unlock() }
func (o *countingObserver) ParticipantRemoved(r RemoveReason) {
	o.mu.Lock()
	o.removed[r]++
	o.mu.Unlock()
}
func (o *countingObserver) MessageAppended() { o.mu.Lock(); o.messages++; o.mu.Unlock() }

func newTestStore(t testing.TB, mutate func(*Options)) (*Store, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	opts := Options{
		MaxMessages: 5,
		IdleTTL:     10 * time.Minute,
		Shards:      4,
		Hasher:      plainHasher{},
		Now:         clock.Now,
	}
	if mutate != nil {
		mutate(&opts)
	}
	st, err := NewStore(opts)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return st, clock
}

func participant(id string) Participant {
	return Participant{
		ID:             id,
		DisplayName:    "name-" + id,
		SourceLanguage: "English",
		TargetLanguage: "French",
	}
}

func mustJoin(t *testing.T, st *Store, code string, p Participant, password string, opts CreateOptions) RoomSnapshot {
	t.Helper()
	snap, err := st.Join(code, p, password, opts)
	if err != nil {
		t.Fatalf("join %s as %s: %v", code, p.ID, err)
	}
	return snap
}

func hasParticipant(snap RoomSnapshot, id string) bool {
	for _, p := range snap.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

func participantIDs(snap RoomSnapshot) []string {
	ids := make([]string, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		ids = append(ids, p.ID)
	}
	return ids
}

// checkInvariants asserts unique ids and exactly one admin among a non-empty list.
func checkInvariants(t *testing.T, snap RoomSnapshot) {
	t.Helper()
	if err := invariantError(snap); err != nil {
		t.Fatal(err)
	}
}

func invariantError(snap RoomSnapshot) error {
	seen := make(map[string]bool, len(snap.Participants))
	admins := 0
	for _, p := range snap.Participants {
		if seen[p.ID] {
			return fmt.Errorf("duplicate participant %q in %v", p.ID, participantIDs(snap))
		}
		seen[p.ID] = true
		if p.ID == snap.Settings.AdminID {
			admins++
		}
	}
	if len(snap.Participants) > 0 && admins != 1 {
		return fmt.Errorf("expected exactly one admin among %v, admin is %q", participantIDs(snap), snap.Settings.AdminID)
	}
	return nil
}
