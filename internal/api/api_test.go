package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MJE43/photohunt/internal/assets"
	"github.com/MJE43/photohunt/internal/clock"
	"github.com/MJE43/photohunt/internal/dataset"
	"github.com/MJE43/photohunt/internal/engine"
	"github.com/MJE43/photohunt/internal/events"
	"github.com/MJE43/photohunt/internal/game"
	"github.com/MJE43/photohunt/internal/highscore"
	"github.com/MJE43/photohunt/internal/scripting"
	"github.com/MJE43/photohunt/internal/store"
)

type squareImages struct{}

func (squareImages) LoadPair(_ context.Context, _ dataset.Set) (assets.Pair, error) {
	sz := engine.Size{Width: 1000, Height: 1000}
	return assets.Pair{Left: sz, Right: sz}, nil
}

type staticToken string

func (t staticToken) Verify(tok string) bool { return tok != "" && tok == string(t) }

type fixedResults []store.Result

func (f fixedResults) RecentResults(_ context.Context, _ string, limit int) ([]store.Result, error) {
	if limit < len(f) {
		return f[:limit], nil
	}
	return f, nil
}

func newTestServer(t *testing.T) (*Server, *highscore.Store) {
	t.Helper()
	scores := highscore.Open(context.Background(), highscore.Options{GameID: "photohunt", Capacity: 8, Backend: highscore.NewMemoryBackend()})
	hub := events.NewHub(64, nil)
	sets := []dataset.Set{{
		ID:         1,
		Image1:     "images/set1/a.png",
		Image2:     "images/set1/b.png",
		Difficulty: dataset.Easy,
		Differences: []dataset.Difference{
			{X: 100, Y: 100, Width: 50, Height: 50},
			{X: 600, Y: 600, Width: 50, Height: 50},
		},
	}}
	mgr := game.NewManager(engine.DefaultSettings(), game.Deps{
		Sets:    dataset.Static{Collection: &dataset.Collection{Sets: sets}},
		Images:  squareImages{},
		Scores:  scores,
		Emitter: hub,
		Clock:   clock.NewManual(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
	}, 2)
	t.Cleanup(mgr.Close)

	srv := NewServer(Options{
		Manager: mgr,
		Hub:     hub,
		Scores:  scores,
		Results: fixedResults{
			{ID: "a", GameID: "photohunt", Score: 1200, RoundsCleared: 2, Outcome: "timeout", FinishedAt: time.Now().Add(-time.Hour)},
			{ID: "b", GameID: "photohunt", Score: 400, RoundsCleared: 0, Outcome: "timeout", FinishedAt: time.Now().Add(-2 * time.Hour)},
		},
		Tokens:           staticToken("secret"),
		GameID:           "photohunt",
		AutoplayInterval: time.Millisecond,
	})
	t.Cleanup(srv.Close)
	return srv, scores
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func createGame(t *testing.T, h http.Handler) game.Snapshot {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/v1/games", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var snap game.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Routes(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	var resp HealthCheckResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != HealthStatusHealthy {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
	if w.Header().Get("X-Engine-Version") == "" {
		t.Error("expected engine version header")
	}
}

func TestGameLifecycle(t *testing.T) {
	srv, scores := newTestServer(t)
	h := srv.Routes()

	snap := createGame(t, h)
	if snap.State != game.StateActive || snap.Total != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	base := "/api/v1/games/" + snap.ID

	w := do(t, h, http.MethodPost, base+"/click", ClickRequest{Image: "left", X: 900, Y: 100, BoxWidth: 1000, BoxHeight: 1000})
	if w.Code != http.StatusOK {
		t.Fatalf("miss: expected 200, got %d", w.Code)
	}
	var miss ClickResponse
	_ = json.NewDecoder(w.Body).Decode(&miss)
	if miss.Hit || miss.Snapshot.Remaining != 110 {
		t.Errorf("expected a miss costing 10s, got %+v", miss)
	}

	w = do(t, h, http.MethodPost, base+"/click", ClickRequest{Image: "image2", X: 62.5, Y: 62.5, BoxWidth: 500, BoxHeight: 500})
	var hit ClickResponse
	_ = json.NewDecoder(w.Body).Decode(&hit)
	if !hit.Hit || hit.Index != 0 || hit.Points != 1000 {
		t.Errorf("expected hit on difference 0 for 1000 points, got %+v", hit)
	}

	w = do(t, h, http.MethodPost, base+"/hint", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("hint: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var hint HintResponse
	_ = json.NewDecoder(w.Body).Decode(&hint)
	if hint.Index != 1 || hint.Snapshot.State != game.StateRoundClearing {
		t.Errorf("expected hint to reveal 1 and clear the round, got %+v", hint)
	}

	w = do(t, h, http.MethodPost, base+"/click", ClickRequest{Image: "left", X: 1, Y: 1, BoxWidth: 10, BoxHeight: 10})
	if w.Code != http.StatusConflict {
		t.Errorf("click while clearing: expected 409, got %d", w.Code)
	}

	w = do(t, h, http.MethodPost, base+"/name", NameRequest{Name: "ace"})
	if w.Code != http.StatusConflict {
		t.Errorf("name before game over: expected 409, got %d", w.Code)
	}

	w = do(t, h, http.MethodPost, base+"/quit", nil)
	if w.Code != http.StatusOK {
		t.Errorf("quit: expected 200, got %d", w.Code)
	}
	if len(scores.Scores()) != 0 {
		t.Errorf("expected no scores after quitting, got %v", scores.Scores())
	}

	w = do(t, h, http.MethodDelete, base, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", w.Code)
	}
	w = do(t, h, http.MethodGet, base, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", w.Code)
	}
}

func TestClickValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()
	base := "/api/v1/games/" + createGame(t, h).ID

	tests := []struct {
		name string
		body interface{}
	}{
		{"bad side", ClickRequest{Image: "middle", X: 1, Y: 1, BoxWidth: 10, BoxHeight: 10}},
		{"zero box", ClickRequest{Image: "left", X: 1, Y: 1}},
		{"unknown field", map[string]interface{}{"image": "left", "nope": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, base+"/click", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			var e EngineError
			if err := json.NewDecoder(w.Body).Decode(&e); err != nil || e.Type != ErrTypeValidation {
				t.Errorf("expected validation error body, got %+v (%v)", e, err)
			}
		})
	}
}

func TestPauseResume(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()
	base := "/api/v1/games/" + createGame(t, h).ID

	if w := do(t, h, http.MethodPost, base+"/pause", nil); w.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, base+"/pause", nil); w.Code != http.StatusConflict {
		t.Errorf("second pause: expected 409, got %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, base+"/hint", nil); w.Code != http.StatusConflict {
		t.Errorf("hint while paused: expected 409, got %d", w.Code)
	}
	w := do(t, h, http.MethodPost, base+"/resume", nil)
	var snap game.Snapshot
	_ = json.NewDecoder(w.Body).Decode(&snap)
	if snap.State != game.StateActive {
		t.Errorf("expected active after resume, got %s", snap.State)
	}
}

func TestSessionLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()
	createGame(t, h)
	createGame(t, h)
	if w := do(t, h, http.MethodPost, "/api/v1/games", nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
	w := do(t, h, http.MethodGet, "/api/v1/games", nil)
	var list SessionsResponse
	_ = json.NewDecoder(w.Body).Decode(&list)
	if list.Count != 2 {
		t.Errorf("expected 2 sessions, got %d", list.Count)
	}
}

func TestHighScoresEndpoints(t *testing.T) {
	srv, scores := newTestServer(t)
	h := srv.Routes()
	scores.AddScore(context.Background(), "bob", 12500)

	w := do(t, h, http.MethodGet, "/api/v1/highscores", nil)
	var resp HighScoresResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Display != "12,500" || resp.Entries[0].Name != "BOB" {
		t.Errorf("unexpected entries %+v", resp.Entries)
	}
	if resp.Capacity != 8 {
		t.Errorf("expected capacity 8, got %d", resp.Capacity)
	}

	if w := do(t, h, http.MethodDelete, "/api/v1/highscores", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("reset without token: expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/highscores", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("reset with token: expected 204, got %d", rec.Code)
	}
	if len(scores.Scores()) != 0 {
		t.Error("expected table to be empty after reset")
	}
}

func TestResultsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()

	w := do(t, h, http.MethodGet, "/api/v1/results?limit=1", nil)
	var resp ResultsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "a" || resp.Results[0].Ago != "1 hour ago" {
		t.Errorf("unexpected results %+v", resp.Results)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/results?limit=zero", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/games", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected wildcard origin, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestEventStream(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	snap := createGame(t, ts.Config.Handler)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/games/" + snap.ID + "/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var first StreamMessage
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != "snapshot" || first.Snapshot.ID != snap.ID {
		t.Fatalf("expected snapshot frame, got %+v", first)
	}

	w := do(t, ts.Config.Handler, http.MethodPost, "/api/v1/games/"+snap.ID+"/click",
		ClickRequest{Image: "left", X: 125, Y: 125, BoxWidth: 1000, BoxHeight: 1000})
	if w.Code != http.StatusOK {
		t.Fatalf("click: expected 200, got %d", w.Code)
	}

	for {
		var sig game.Signal
		if err := wsjson.Read(ctx, conn, &sig); err != nil {
			t.Fatalf("read signal: %v", err)
		}
		if sig.Session != snap.ID {
			t.Fatalf("signal for wrong session: %+v", sig)
		}
		if sig.Type == game.SignalDifferenceFound {
			if sig.Index == nil || *sig.Index != 0 || sig.Points != 1000 {
				t.Errorf("unexpected difference_found %+v", sig)
			}
			return
		}
	}
}

func TestAutoplayEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Routes()
	base := "/api/v1/games/" + createGame(t, h).ID

	if w := do(t, h, http.MethodPost, base+"/autoplay", AutoplayRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty script: expected 400, got %d", w.Code)
	}

	script := `
		play = function() {
			if (remaining.length == 0) return null;
			var d = remaining[0];
			return {type: "click", image: LEFT, x: d.left.x + d.left.width / 2, y: d.left.y + d.left.height / 2};
		}
	`
	if w := do(t, h, http.MethodPost, base+"/autoplay", AutoplayRequest{Script: script}); w.Code != http.StatusAccepted {
		t.Fatalf("start autoplay: expected 202, got %d: %s", w.Code, w.Body.String())
	}

	deadline := time.Now().Add(3 * time.Second)
	var resp AutoplayResponse
	for time.Now().Before(deadline) {
		w := do(t, h, http.MethodGet, base+"/autoplay", nil)
		_ = json.NewDecoder(w.Body).Decode(&resp)
		if resp.Stats.Hits == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if resp.Stats.Hits != 2 || resp.Stats.Misses != 0 {
		t.Fatalf("expected autoplay to find both differences, got %+v", resp)
	}

	if w := do(t, h, http.MethodDelete, base+"/autoplay", nil); w.Code != http.StatusNoContent {
		t.Errorf("stop autoplay: expected 204, got %d", w.Code)
	}
	w := do(t, h, http.MethodGet, base+"/autoplay", nil)
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.State != scripting.StateIdle {
		t.Errorf("expected idle after stop, got %s", resp.State)
	}
}
