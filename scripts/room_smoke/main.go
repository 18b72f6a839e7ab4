package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/vovakirdan/voicelink/internal/log"
	"github.com/vovakirdan/voicelink/internal/proto"
)

func main() {
	logger := log.New("info", "console")
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("room_smoke failed")
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "http://localhost:8080/api/rooms", "room endpoint")
	user := flag.String("user", "smoke-tester", "participant id")
	room := flag.String("room", "SMOKE1", "room code")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	send := func(req proto.RoomRequest) (*proto.RoomResponse, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", req.Action, err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, *addr, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.Action, err)
		}
		defer resp.Body.Close()

		var out proto.RoomResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", req.Action, err)
		}
		if !out.Success {
			return &out, fmt.Errorf("%s: status %d: %s (%s)", req.Action, resp.StatusCode, out.Error.Msg, out.Error.Code)
		}
		return &out, nil
	}

	joined, err := send(proto.RoomRequest{
		Action:         proto.ActionJoin,
		RoomID:         *room,
		UserID:         *user,
		UserName:       *user,
		SourceLanguage: "English",
		TargetLanguage: "German",
	})
	if err != nil {
		return err
	}
	fmt.Printf("Joined: room=%s users=%d admin=%s\n", joined.Room.ID, len(joined.Room.Users), joined.Settings.AdminUserID)

	if _, err := send(proto.RoomRequest{
		Action: proto.ActionMessage,
		RoomID: *room,
		Message: &proto.MessagePayload{
			UserID:           *user,
			UserName:         *user,
			OriginalText:     *text,
			OriginalLanguage: "English",
		},
	}); err != nil {
		return err
	}

	polled, err := send(proto.RoomRequest{Action: proto.ActionPoll, RoomID: *room, UserID: *user})
	if err != nil {
		return err
	}
	for _, m := range *polled.Room.Messages {
		fmt.Printf("Message: user=%s text=%q ts=%s\n", m.UserID, m.OriginalText, m.Timestamp.Format(time.RFC3339))
	}

	if _, err := send(proto.RoomRequest{Action: proto.ActionLeave, RoomID: *room, UserID: *user}); err != nil {
		return err
	}
	fmt.Println("Left room")
	return nil
}
