package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/vovakirdan/voicelink/internal/auth"
	"github.com/vovakirdan/voicelink/internal/config"
	"github.com/vovakirdan/voicelink/internal/core"
	"github.com/vovakirdan/voicelink/internal/metrics"
	"github.com/vovakirdan/voicelink/internal/proto"
	"github.com/vovakirdan/voicelink/internal/store/sqlite"
)

type testEnv struct {
	router  *gin.Engine
	rooms   *core.Store
	auth    *auth.Service
	store   *sqlite.SQLiteStore
	metrics *metrics.Metrics
}

// newTestEnv wires the router against an in-memory database and a fresh room store.
// mutate may adjust deps and config before the router is built.
func newTestEnv(t *testing.T, mutate func(*Deps, *config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	disabledLogger := zerolog.Nop()
	m := metrics.New()
	rooms, err := core.NewStore(core.Options{
		MaxMessages: 50,
		IdleTTL:     time.Hour,
		Hasher:      auth.NewBcryptHasher(bcrypt.MinCost),
		Observer:    m,
		Logger:      &disabledLogger,
	})
	if err != nil {
		t.Fatalf("failed to create room store: %v", err)
	}

	cfg := config.Default()
	cfg.RateLimit.RPS = 0
	deps := Deps{
		Rooms:   rooms,
		Auth:    authService,
		Store:   st,
		Metrics: m,
	}
	if mutate != nil {
		mutate(&deps, &cfg)
	}

	return &testEnv{
		router:  NewRouter(deps, &cfg, &disabledLogger),
		rooms:   rooms,
		auth:    authService,
		store:   st,
		metrics: deps.Metrics,
	}
}

// do sends a JSON request and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// room posts a room action and decodes the response.
func (e *testEnv) room(t *testing.T, token string, req proto.RoomRequest) (int, proto.RoomResponse) {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/rooms", token, req)
	var resp proto.RoomResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode room response (%d): %v: %s", w.Code, err, w.Body.String())
	}
	return w.Code, resp
}

func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	session, err := e.auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return session.Token
}

func joinReq(room, user string) proto.RoomRequest {
	return proto.RoomRequest{
		Action:         proto.ActionJoin,
		RoomID:         room,
		UserID:         user,
		UserName:       "name-" + user,
		SourceLanguage: "English",
		TargetLanguage: "German",
	}
}

func userIDs(view *proto.RoomView) []string {
	if view == nil {
		return nil
	}
	ids := make([]string, 0, len(view.Users))
	for _, u := range view.Users {
		ids = append(ids, u.ID)
	}
	return ids
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response (%d): %v: %s", w.Code, err, w.Body.String())
	}
	return v
}
