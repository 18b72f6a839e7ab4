package proto

import "time"

// Room actions accepted by POST /api/rooms.
const (
	ActionJoin           = "join"
	ActionLeave          = "leave"
	ActionPoll           = "poll"
	ActionMessage        = "message"
	ActionKick           = "kick"
	ActionUpdateSettings = "update_settings"
)

// RoomRequest is the action-dispatched request body. Which fields are required depends on Action.
type RoomRequest struct {
	Action string `json:"action"`
	RoomID string `json:"roomId"`

	// join, leave, poll (optional), kick and update_settings.
	UserID string `json:"userId,omitempty"`

	// join
	UserName       string `json:"userName,omitempty"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	SourceLanguage string `json:"sourceLanguage,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
	JoinPassword   string `json:"joinPassword,omitempty"`
	CreateJoinMode string `json:"createJoinMode,omitempty"`
	CreatePassword string `json:"createPassword,omitempty"`

	// kick
	TargetUserID string `json:"targetUserId,omitempty"`

	// update_settings
	JoinMode string `json:"joinMode,omitempty"`
	Password string `json:"password,omitempty"`

	// message
	Message *MessagePayload `json:"message,omitempty"`
}

// MessagePayload is a transcript entry sent by a client. The server assigns the
// stored timestamp; the client's Timestamp is accepted but not trusted.
type MessagePayload struct {
	ID               string `json:"id,omitempty"`
	UserID           string `json:"userId"`
	UserName         string `json:"userName"`
	OriginalText     string `json:"originalText"`
	OriginalLanguage string `json:"originalLanguage"`
	TargetLanguage   string `json:"targetLanguage,omitempty"`
	Timestamp        string `json:"timestamp,omitempty"`
	AudioURL         string `json:"audioUrl,omitempty"`
}

// RoomResponse is the body of every /api/rooms response.
type RoomResponse struct {
	Success  bool          `json:"success"`
	Room     *RoomView     `json:"room,omitempty"`
	Settings *SettingsView `json:"settings,omitempty"`
	Error    *Error        `json:"error,omitempty"`
}

// RoomView is the room state returned by join and poll. Messages is only set by poll,
// where it is always present, even when empty.
type RoomView struct {
	ID       string         `json:"id"`
	Users    []UserView     `json:"users"`
	Messages *[]MessageView `json:"messages,omitempty"`
}

// UserView is a participant as seen by other participants.
type UserView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Avatar         string    `json:"avatar,omitempty"`
	SourceLanguage string    `json:"sourceLanguage"`
	TargetLanguage string    `json:"targetLanguage"`
	JoinedAt       time.Time `json:"joinedAt"`
	IsAdmin        bool      `json:"isAdmin"`
}

// MessageView is a stored transcript entry.
type MessageView struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	UserName         string    `json:"userName"`
	OriginalText     string    `json:"originalText"`
	OriginalLanguage string    `json:"originalLanguage"`
	TargetLanguage   string    `json:"targetLanguage,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	AudioURL         string    `json:"audioUrl,omitempty"`
}

// SettingsView exposes room settings. The password hash never leaves the server.
type SettingsView struct {
	AdminUserID string `json:"adminUserId"`
	JoinMode    string `json:"joinMode"`
}

// Error describes a failed request.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
