package http

import (
	"net/http"
	"strings"
	"testing"

	"github.com/vovakirdan/voicelink/internal/config"
)

func TestHealthReportsRoomStats(t *testing.T) {
	env := newTestEnv(t, nil)
	env.room(t, "", joinReq("R1", "u1"))
	env.room(t, "", joinReq("R1", "u2"))
	env.room(t, "", joinReq("R2", "u3"))

	w := env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	health := decode[HealthResponse](t, w)
	if health.Status != "ok" || health.Rooms != 2 || health.Participants != 3 {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/health", "", nil)

	w := env.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `http_requests_total{method="GET",path="/health",status="200"} 1`) {
		t.Fatalf("expected /health request to be counted:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected runtime collectors")
	}
}

func TestMetricsDisabled(t *testing.T) {
	env := newTestEnv(t, func(d *Deps, _ *config.Config) { d.Metrics = nil })

	if w := env.do(t, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", w.Code)
	}
	if code, _ := env.room(t, "", joinReq("R1", "u1")); code != http.StatusOK {
		t.Fatalf("rooms should work without metrics, got %d", code)
	}
}
