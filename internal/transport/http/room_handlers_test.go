package http

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/vovakirdan/voicelink/internal/core"
	"github.com/vovakirdan/voicelink/internal/proto"
	"github.com/vovakirdan/voicelink/internal/store"
)

func TestJoinCreatesRoomWithCreatorAsAdmin(t *testing.T) {
	env := newTestEnv(t, nil)

	code, resp := env.room(t, "", joinReq("R1", "u1"))
	if code != http.StatusOK || !resp.Success {
		t.Fatalf("expected 200 success, got %d %+v", code, resp.Error)
	}
	if resp.Room == nil || !slices.Equal(userIDs(resp.Room), []string{"u1"}) {
		t.Fatalf("unexpected users: %v", userIDs(resp.Room))
	}
	if !resp.Room.Users[0].IsAdmin {
		t.Fatalf("creator should be marked admin")
	}
	if resp.Room.Messages != nil {
		t.Fatalf("join should not include messages")
	}
	if resp.Settings == nil || resp.Settings.AdminUserID != "u1" || resp.Settings.JoinMode != "open" {
		t.Fatalf("unexpected settings: %+v", resp.Settings)
	}
}

func TestRoomRequestValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.room(t, "", joinReq("R1", "u1"))

	tests := []struct {
		name string
		req  proto.RoomRequest
	}{
		{"missing room", proto.RoomRequest{Action: proto.ActionPoll}},
		{"unknown action", proto.RoomRequest{Action: "explode", RoomID: "R1"}},
		{"join without name", proto.RoomRequest{Action: proto.ActionJoin, RoomID: "R1", UserID: "u2", SourceLanguage: "a", TargetLanguage: "b"}},
		{"join with bad create mode", func() proto.RoomRequest {
			r := joinReq("R2", "u2")
			r.CreateJoinMode = "secret"
			return r
		}()},
		{"join password room without password", func() proto.RoomRequest {
			r := joinReq("R3", "u2")
			r.CreateJoinMode = "password"
			return r
		}()},
		{"leave without user", proto.RoomRequest{Action: proto.ActionLeave, RoomID: "R1"}},
		{"message without body", proto.RoomRequest{Action: proto.ActionMessage, RoomID: "R1"}},
		{"message without text", proto.RoomRequest{Action: proto.ActionMessage, RoomID: "R1", Message: &proto.MessagePayload{UserID: "u1", OriginalLanguage: "English"}}},
		{"kick without target", proto.RoomRequest{Action: proto.ActionKick, RoomID: "R1", UserID: "u1"}},
		{"settings without mode", proto.RoomRequest{Action: proto.ActionUpdateSettings, RoomID: "R1", UserID: "u1"}},
		{"settings with unknown mode", proto.RoomRequest{Action: proto.ActionUpdateSettings, RoomID: "R1", UserID: "u1", JoinMode: "closed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := env.room(t, "", tt.req)
			if code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", code)
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != core.ErrCodeBadRequest {
				t.Fatalf("expected bad_request error, got %+v", resp)
			}
		})
	}

	w := env.do(t, http.MethodPost, "/api/rooms", "", `{"action":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed json: expected 400, got %d", w.Code)
	}
}

func TestPollUnknownRoomIsGone(t *testing.T) {
	env := newTestEnv(t, nil)

	code, resp := env.room(t, "", proto.RoomRequest{Action: proto.ActionPoll, RoomID: "nowhere"})
	if code != http.StatusGone {
		t.Fatalf("expected 410, got %d", code)
	}
	if resp.Error == nil || resp.Error.Code != core.ErrCodeRoomExpired {
		t.Fatalf("expected room_expired, got %+v", resp.Error)
	}

	for _, req := range []proto.RoomRequest{
		{Action: proto.ActionLeave, RoomID: "nowhere", UserID: "u1"},
		{Action: proto.ActionKick, RoomID: "nowhere", UserID: "u1", TargetUserID: "u2"},
		{Action: proto.ActionUpdateSettings, RoomID: "nowhere", UserID: "u1", JoinMode: "open"},
		{Action: proto.ActionMessage, RoomID: "nowhere", Message: &proto.MessagePayload{UserID: "u1", OriginalText: "hi", OriginalLanguage: "English"}},
	} {
		if code, _ := env.room(t, "", req); code != http.StatusGone {
			t.Fatalf("%s on missing room: expected 410, got %d", req.Action, code)
		}
	}
}

func TestPasswordRoomKickScenario(t *testing.T) {
	env := newTestEnv(t, nil)

	create := joinReq("R1", "U1")
	create.CreateJoinMode = "password"
	create.CreatePassword = "abc"
	if code, resp := env.room(t, "", create); code != http.StatusOK || resp.Settings.JoinMode != "password" {
		t.Fatalf("create password room: %d %+v", code, resp)
	}

	code, resp := env.room(t, "", joinReq("R1", "U2"))
	if code != http.StatusUnauthorized || resp.Error.Code != core.ErrCodePasswordRequired {
		t.Fatalf("expected 401 password_required, got %d %+v", code, resp.Error)
	}

	wrong := joinReq("R1", "U2")
	wrong.JoinPassword = "abd"
	code, resp = env.room(t, "", wrong)
	if code != http.StatusUnauthorized || resp.Error.Code != core.ErrCodeInvalidPassword {
		t.Fatalf("expected 401 invalid_password, got %d %+v", code, resp.Error)
	}

	right := joinReq("R1", "U2")
	right.JoinPassword = "abc"
	if code, resp = env.room(t, "", right); code != http.StatusOK {
		t.Fatalf("join with password: %d %+v", code, resp.Error)
	}
	if !slices.Equal(userIDs(resp.Room), []string{"U1", "U2"}) {
		t.Fatalf("unexpected users after join: %v", userIDs(resp.Room))
	}

	if code, resp = env.room(t, "", joinReq("R1", "U2")); code != http.StatusOK {
		t.Fatalf("rejoin without password should succeed: %d %+v", code, resp.Error)
	}

	kick := proto.RoomRequest{Action: proto.ActionKick, RoomID: "R1", UserID: "U1", TargetUserID: "U2"}
	if code, resp = env.room(t, "", kick); code != http.StatusOK || !resp.Success {
		t.Fatalf("kick: %d %+v", code, resp.Error)
	}

	_, poll := env.room(t, "", proto.RoomRequest{Action: proto.ActionPoll, RoomID: "R1", UserID: "U2"})
	if slices.Contains(userIDs(poll.Room), "U2") {
		t.Fatalf("kicked participant still listed: %v", userIDs(poll.Room))
	}

	if code, resp = env.room(t, "", proto.RoomRequest{Action: proto.ActionLeave, RoomID: "R1", UserID: "U2"}); code != http.StatusOK || !resp.Success {
		t.Fatalf("leave after kick should be an idempotent success, got %d %+v", code, resp.Error)
	}

	if code, _ = env.room(t, "", joinReq("R1", "U2")); code != http.StatusUnauthorized {
		t.Fatalf("kicked participant must supply the password again, got %d", code)
	}
}

func TestKickAuthorization(t *testing.T) {
	env := newTestEnv(t, nil)
	env.room(t, "", joinReq("R1", "admin"))
	env.room(t, "", joinReq("R1", "u2"))

	tests := []struct {
		name      string
		requester string
		target    string
		status    int
		errCode   string
	}{
		{"non admin", "u2", "admin", http.StatusForbidden, core.ErrCodeNotAdmin},
		{"self kick", "admin", "admin", http.StatusForbidden, core.ErrCodeCannotKickSelf},
		{"absent target", "admin", "ghost", http.StatusNotFound, core.ErrCodeParticipantNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := env.room(t, "", proto.RoomRequest{Action: proto.ActionKick, RoomID: "R1", UserID: tt.requester, TargetUserID: tt.target})
			if code != tt.status || resp.Error == nil || resp.Error.Code != tt.errCode {
				t.Fatalf("expected %d/%s, got %d %+v", tt.status, tt.errCode, code, resp.Error)
			}
		})
	}
}

func TestUpdateSettings(t *testing.T) {
	env := newTestEnv(t, nil)
	env.room(t, "", joinReq("R1", "admin"))
	env.room(t, "", joinReq("R1", "u2"))

	code, resp := env.room(t, "", proto.RoomRequest{Action: proto.ActionUpdateSettings, RoomID: "R1", UserID: "u2", JoinMode: "password", Password: "x"})
	if code != http.StatusForbidden {
		t.Fatalf("non-admin settings change: expected 403, got %d", code)
	}

	code, _ = env.room(t, "", proto.RoomRequest{Action: proto.ActionUpdateSettings, RoomID: "R1", UserID: "admin", JoinMode: "password"})
	if code != http.StatusBadRequest {
		t.Fatalf("password mode without password: expected 400, got %d", code)
	}

	code, resp = env.room(t, "", proto.RoomRequest{Action: proto.ActionUpdateSettings, RoomID: "R1", UserID: "admin", JoinMode: "password", Password: "pw"})
	if code != http.StatusOK || resp.Settings == nil || resp.Settings.JoinMode != "password" || resp.Settings.AdminUserID != "admin" {
		t.Fatalf("settings update: %d %+v", code, resp)
	}

	if code, _ = env.room(t, "", joinReq("R1", "u3")); code != http.StatusUnauthorized {
		t.Fatalf("new participant should need the password, got %d", code)
	}
	if code, _ = env.room(t, "", joinReq("R1", "u2")); code != http.StatusOK {
		t.Fatalf("existing participant should rejoin freely, got %d", code)
	}
}

func TestMessagesAppearInPollInOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	env.room(t, "", joinReq("R1", "u1"))

	for _, text := range []string{"one", "two", "three"} {
		code, resp := env.room(t, "", proto.RoomRequest{
			Action: proto.ActionMessage,
			RoomID: "R1",
			Message: &proto.MessagePayload{
				ID:               "m-" + text,
				UserID:           "u1",
				UserName:         "name-u1",
				OriginalText:     text,
				OriginalLanguage: "English",
				TargetLanguage:   "German",
				Timestamp:        "1999-01-01T00:00:00Z",
				AudioURL:         "blob:" + text,
			},
		})
		if code != http.StatusOK || !resp.Success {
			t.Fatalf("append %s: %d %+v", text, code, resp.Error)
		}
	}

	code, resp := env.room(t, "", proto.RoomRequest{Action: proto.ActionPoll, RoomID: "R1"})
	if code != http.StatusOK || resp.Room == nil || resp.Room.Messages == nil {
		t.Fatalf("poll: %d %+v", code, resp)
	}
	msgs := *resp.Room.Messages
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"one", "two", "three"} {
		if msgs[i].OriginalText != want || msgs[i].ID != "m-"+want || msgs[i].AudioURL != "blob:"+want {
			t.Fatalf("message %d: unexpected %+v", i, msgs[i])
		}
		if msgs[i].Timestamp.Year() == 1999 {
			t.Fatalf("server must assign message timestamps")
		}
	}
}

func TestPollOfEmptyRoomIncludesEmptyMessageList(t *testing.T) {
	env := newTestEnv(t, nil)
	env.room(t, "", joinReq("R1", "u1"))

	w := env.do(t, http.MethodPost, "/api/rooms", "", proto.RoomRequest{Action: proto.ActionPoll, RoomID: "R1"})
	if !strings.Contains(w.Body.String(), `"messages":[]`) {
		t.Fatalf("expected an empty messages array, got %s", w.Body.String())
	}
}

func TestLastLeaveExpiresRoom(t *testing.T) {
	env := newTestEnv(t, nil)
	env.room(t, "", joinReq("R1", "u1"))
	env.room(t, "", joinReq("R1", "u2"))

	for _, id := range []string{"u1", "u2"} {
		if code, _ := env.room(t, "", proto.RoomRequest{Action: proto.ActionLeave, RoomID: "R1", UserID: id}); code != http.StatusOK {
			t.Fatalf("leave %s: %d", id, code)
		}
	}
	if code, _ := env.room(t, "", proto.RoomRequest{Action: proto.ActionPoll, RoomID: "R1"}); code != http.StatusGone {
		t.Fatalf("expected 410 after last leave, got %d", code)
	}
	if code, _ := env.room(t, "", proto.RoomRequest{Action: proto.ActionLeave, RoomID: "R1", UserID: "u1"}); code != http.StatusGone {
		t.Fatalf("leave on expired room: expected 410, got %d", code)
	}
}

func TestPaddedUserIDsMatchJoinedParticipant(t *testing.T) {
	env := newTestEnv(t, nil)
	env.room(t, "", joinReq("R1", " a "))
	env.room(t, "", joinReq("R1", "b"))

	if code, resp := env.room(t, "", proto.RoomRequest{Action: proto.ActionKick, RoomID: "R1", UserID: " a ", TargetUserID: "b"}); code != http.StatusOK {
		t.Fatalf("kick by padded admin id: %d %+v", code, resp.Error)
	}
	if code, _ := env.room(t, "", proto.RoomRequest{Action: proto.ActionLeave, RoomID: "R1", UserID: " a "}); code != http.StatusOK {
		t.Fatalf("leave: %d", code)
	}
	if code, _ := env.room(t, "", proto.RoomRequest{Action: proto.ActionPoll, RoomID: "R1"}); code != http.StatusGone {
		t.Fatalf("padded leave should remove the last participant, got %d", code)
	}
}

func TestAdminHandoverVisibleInPoll(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, id := range []string{"A", "B", "C"} {
		env.room(t, "", joinReq("R1", id))
	}

	env.room(t, "", proto.RoomRequest{Action: proto.ActionLeave, RoomID: "R1", UserID: "A"})
	_, resp := env.room(t, "", proto.RoomRequest{Action: proto.ActionPoll, RoomID: "R1"})
	if resp.Settings.AdminUserID != "B" {
		t.Fatalf("expected B to be admin, got %q", resp.Settings.AdminUserID)
	}

	env.room(t, "", proto.RoomRequest{Action: proto.ActionLeave, RoomID: "R1", UserID: "B"})
	_, resp = env.room(t, "", proto.RoomRequest{Action: proto.ActionPoll, RoomID: "R1"})
	if resp.Settings.AdminUserID != "C" || !resp.Room.Users[0].IsAdmin {
		t.Fatalf("expected C to be admin, got %q", resp.Settings.AdminUserID)
	}
}

func TestJoinFillsAvatarFromProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.register(t, "alice")

	claims, err := env.auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	avatar := "https://cdn.example.com/alice.png"
	if _, err := env.auth.UpdateProfile(context.Background(), claims.UserID, store.ProfileUpdate{AvatarURL: &avatar}); err != nil {
		t.Fatalf("set avatar: %v", err)
	}

	w := env.do(t, http.MethodGet, "/api/identity?instanceId=tab-1", token, nil)
	id := decode[IdentityResponse](t, w)
	if id.Anonymous || !strings.HasSuffix(id.ParticipantID, ":tab-1") {
		t.Fatalf("unexpected identity: %+v", id)
	}

	_, resp := env.room(t, token, joinReq("R1", id.ParticipantID))
	if len(resp.Room.Users) != 1 || resp.Room.Users[0].Avatar != avatar {
		t.Fatalf("expected profile avatar to be used, got %+v", resp.Room.Users)
	}

	// Someone else's participant id never borrows the token holder's avatar.
	_, resp = env.room(t, token, joinReq("R1", "999:tab-9"))
	for _, u := range resp.Room.Users {
		if u.ID == "999:tab-9" && u.Avatar != "" {
			t.Fatalf("avatar leaked to a foreign participant id")
		}
	}

	// An explicit avatar wins over the profile.
	explicit := joinReq("R2", id.ParticipantID)
	explicit.AvatarURL = "https://cdn.example.com/other.png"
	_, resp = env.room(t, token, explicit)
	if resp.Room.Users[0].Avatar != explicit.AvatarURL {
		t.Fatalf("expected explicit avatar, got %q", resp.Room.Users[0].Avatar)
	}
}

func TestRoomMetricsFollowStore(t *testing.T) {
	env := newTestEnv(t, nil)
	env.room(t, "", joinReq("R1", "u1"))
	env.room(t, "", joinReq("R1", "u2"))
	env.room(t, "", proto.RoomRequest{Action: proto.ActionLeave, RoomID: "R1", UserID: "u1"})

	w := env.do(t, http.MethodGet, "/metrics", "", nil)
	body := w.Body.String()
	for _, want := range []string{
		"voicelink_rooms_active 1",
		"voicelink_participants_active 1",
		`voicelink_participants_removed_total{reason="leave"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}
