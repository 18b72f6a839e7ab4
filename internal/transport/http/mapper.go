package http

import (
	"github.com/vovakirdan/voicelink/internal/core"
	"github.com/vovakirdan/voicelink/internal/proto"
)

func roomView(snap core.RoomSnapshot, withMessages bool) *proto.RoomView {
	view := &proto.RoomView{
		ID:    snap.Code,
		Users: make([]proto.UserView, 0, len(snap.Participants)),
	}
	for _, p := range snap.Participants {
		view.Users = append(view.Users, proto.UserView{
			ID:             p.ID,
			Name:           p.DisplayName,
			Avatar:         p.AvatarURL,
			SourceLanguage: p.SourceLanguage,
			TargetLanguage: p.TargetLanguage,
			JoinedAt:       p.JoinedAt,
			IsAdmin:        p.ID == snap.Settings.AdminID,
		})
	}
	if withMessages {
		msgs := make([]proto.MessageView, 0, len(snap.Messages))
		for _, m := range snap.Messages {
			msgs = append(msgs, messageView(m))
		}
		view.Messages = &msgs
	}
	return view
}

func messageView(m core.Message) proto.MessageView {
	return proto.MessageView{
		ID:               m.ID,
		UserID:           m.ParticipantID,
		UserName:         m.AuthorDisplayName,
		OriginalText:     m.OriginalText,
		OriginalLanguage: m.OriginalLanguage,
		TargetLanguage:   m.TargetLanguage,
		Timestamp:        m.CreatedAt,
		AudioURL:         m.AudioRef,
	}
}

func settingsView(s core.Settings) *proto.SettingsView {
	return &proto.SettingsView{
		AdminUserID: s.AdminID,
		JoinMode:    string(s.JoinMode),
	}
}

func messageFromPayload(p *proto.MessagePayload) core.Message {
	return core.Message{
		ID:                p.ID,
		ParticipantID:     p.UserID,
		AuthorDisplayName: p.UserName,
		OriginalText:      p.OriginalText,
		OriginalLanguage:  p.OriginalLanguage,
		TargetLanguage:    p.TargetLanguage,
		AudioRef:          p.AudioURL,
	}
}
