package web

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jaminalder/codex-domino/internal/app"
	"github.com/jaminalder/codex-domino/internal/domain"
	"github.com/jaminalder/codex-domino/internal/metrics"
)

func newTestServer(t *testing.T, opts ...Option) (*app.Service, http.Handler) {
	t.Helper()
	s := app.NewService(app.WithSeed(21))
	h := NewServer(s, opts...)
	return s, h
}

// newOwnedGame creates a game owned by "p1".
func newOwnedGame(t *testing.T, s *app.Service, opts app.Options) app.GameView {
	t.Helper()
	v, err := s.CreateGame(opts)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if _, v, err = s.Join(v.ID, "p1"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	return v
}

func do(h http.Handler, method, target, player string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if player != "" {
		req.AddCookie(&http.Cookie{Name: "player_id", Value: player})
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIndexPage(t *testing.T) {
	_, h := newTestServer(t)
	rr := do(h, "GET", "/", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<form") || !strings.Contains(body, "action=\"/game\"") {
		t.Fatalf("index should contain create form; got body: %q", body)
	}
}

func TestCreateRedirectsToGame(t *testing.T) {
	svc, h := newTestServer(t)
	rr := do(h, "POST", "/game", "", url.Values{"players": {"3"}, "bots": {"1"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", rr.Code)
	}
	loc := rr.Result().Header.Get("Location")
	if !strings.HasPrefix(loc, "/game/") {
		t.Fatalf("expected redirect to /game/{id}, got %q", loc)
	}
	v, ok := svc.Get(strings.TrimPrefix(loc, "/game/"))
	if !ok || len(v.Seats) != 3 || !v.Seats[2].Bot || v.Seats[1].Bot {
		t.Fatalf("unexpected table: %+v", v.Seats)
	}
}

func TestCreateRejectsBadOptions(t *testing.T) {
	_, h := newTestServer(t)
	rr := do(h, "POST", "/game", "", url.Values{"players": {"2"}, "bots": {"5"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGamePageSetsCookieAndClaimsTable(t *testing.T) {
	svc, h := newTestServer(t)
	v, _ := svc.CreateGame(app.Options{Players: 2})

	rr := do(h, "GET", "/game/"+url.PathEscape(v.ID), "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var playerID string
	for _, c := range rr.Result().Cookies() {
		if c.Name == "player_id" {
			playerID = c.Value
			break
		}
	}
	if playerID == "" {
		t.Fatalf("expected player_id cookie to be set")
	}
	if role, _, _ := svc.Join(v.ID, playerID); role != app.RoleOwner {
		t.Fatalf("first visitor should own the table, got %v", role)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "hx-ext=\"sse\"") || !strings.Contains(body, "/game/"+v.ID+"/events") {
		t.Fatalf("expected SSE wiring in page; got body: %q", body)
	}
	if !strings.Contains(body, "class=\"hand\"") {
		t.Fatalf("owner should see the hand; got body: %q", body)
	}
}

func TestUnknownGameIsNotFound(t *testing.T) {
	_, h := newTestServer(t)
	for _, path := range []string{"/game/nope", "/game/nope/board", "/game/nope/state", "/game/nope/events"} {
		if rr := do(h, "GET", path, "p1", nil); rr.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rr.Code)
		}
	}
	if rr := do(h, "POST", "/game/nope/pass", "p1", url.Values{}); rr.Code != http.StatusNotFound {
		t.Fatalf("pass: expected 404, got %d", rr.Code)
	}
}

func TestJoinEndpointReturnsBoardFragment(t *testing.T) {
	svc, h := newTestServer(t)
	v := newOwnedGame(t, svc, app.Options{Players: 2})

	rr := do(h, "POST", "/game/"+v.ID+"/join", "p2", url.Values{})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "id=\"board\"") {
		t.Fatalf("expected board fragment, got %q", body)
	}
	if strings.Contains(body, "class=\"hand\"") || !strings.Contains(body, "You are watching") {
		t.Fatalf("spectator should not see the hand, got %q", body)
	}
}

func TestBoardSelection(t *testing.T) {
	svc, h := newTestServer(t)
	v := newOwnedGame(t, svc, app.Options{Players: 2})

	rr := do(h, "GET", "/game/"+v.ID+"/board?tile=0", "p1", nil)
	body := rr.Body.String()
	if !strings.Contains(body, "tile selected") || !strings.Contains(body, "&hx=0&hy=0") {
		t.Fatalf("picking a tile should offer head cells, got %q", body)
	}

	rr = do(h, "GET", "/game/"+v.ID+"/board?tile=0&hx=2&hy=1", "p1", nil)
	body = rr.Body.String()
	if !strings.Contains(body, `name="hx" value="2"`) || !strings.Contains(body, "class=\" head\"") {
		t.Fatalf("picking a head should offer tail cells, got %q", body)
	}

	rr = do(h, "GET", "/game/"+v.ID+"/board?tile=0", "p2", nil)
	if strings.Contains(rr.Body.String(), "hx-post=\"/game/"+v.ID+"/play\"") || strings.Contains(rr.Body.String(), "&hx=") {
		t.Fatalf("spectators get no clickable cells")
	}
}

// playable finds a hand tile showing the pip of end A and the cells that
// lay it straight up from the bootstrap layout.
func playable(v app.GameView) (tile, hx, hy, x, y int, ok bool) {
	pip := v.Exposed[0]
	end := v.Ends[0]
	near, far := domain.Point{X: end.X, Y: end.Y - 1}, domain.Point{X: end.X, Y: end.Y - 2}
	for i, t := range v.Hand {
		switch pip {
		case t.A:
			return i, near.X, near.Y, far.X, far.Y, true
		case t.B:
			return i, far.X, far.Y, near.X, near.Y, true
		}
	}
	return 0, 0, 0, 0, 0, false
}

func TestPlayEndpointUpdatesStateAndReturnsFragment(t *testing.T) {
	svc, h := newTestServer(t)
	// With one seat every other tile is in the hand or the pool, so drawing
	// always turns up a match for end A.
	v := newOwnedGame(t, svc, app.Options{Players: 1})

	tile, hx, hy, x, y, ok := playable(v)
	for !ok {
		if rr := do(h, "POST", "/game/"+v.ID+"/draw", "p1", url.Values{}); rr.Code != http.StatusOK {
			t.Fatalf("draw: %d", rr.Code)
		}
		v, _ = svc.Get(v.ID)
		tile, hx, hy, x, y, ok = playable(v)
	}
	played := v.Hand[tile]

	form := url.Values{
		"tile": {strconv.Itoa(tile)},
		"hx":   {strconv.Itoa(hx)}, "hy": {strconv.Itoa(hy)},
		"x": {strconv.Itoa(x)}, "y": {strconv.Itoa(y)},
	}
	rr := do(h, "POST", "/game/"+v.ID+"/play", "p1", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "id=\"board\"") || strings.Contains(body, "class=\"alert\"") {
		t.Fatalf("expected clean board fragment, got %q", body)
	}
	latest, _ := svc.Get(v.ID)
	last := latest.Events[len(latest.Events)-1]
	if last.Kind != "play" || last.Tile != played {
		t.Fatalf("expected %s to be played, last event %+v", played, last)
	}
	if latest.Seats[0].HandSize != v.Seats[0].HandSize-1 {
		t.Fatalf("hand did not shrink: %d -> %d", v.Seats[0].HandSize, latest.Seats[0].HandSize)
	}
}

func TestPlayEndpointReportsIllegalMove(t *testing.T) {
	svc, h := newTestServer(t)
	v := newOwnedGame(t, svc, app.Options{Players: 2})

	form := url.Values{"tile": {"0"}, "hx": {"0"}, "hy": {"0"}, "x": {"1"}, "y": {"0"}}
	rr := do(h, "POST", "/game/"+v.ID+"/play", "p1", form)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Illegal move: not on edge") {
		t.Fatalf("expected rejection message, got %q", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `class="tile selected"`) {
		t.Fatalf("expected the tile to stay selected, got %q", rr.Body.String())
	}

	rr = do(h, "POST", "/game/"+v.ID+"/play", "p2", form)
	if !strings.Contains(rr.Body.String(), "You are a spectator") {
		t.Fatalf("expected spectator message, got %q", rr.Body.String())
	}
}

func TestDrawAndPassEndpoints(t *testing.T) {
	svc, h := newTestServer(t)
	v := newOwnedGame(t, svc, app.Options{Players: 2})

	if rr := do(h, "POST", "/game/"+v.ID+"/draw", "p1", url.Values{}); rr.Code != http.StatusOK {
		t.Fatalf("draw: %d", rr.Code)
	}
	after, _ := svc.Get(v.ID)
	if after.Pool != v.Pool-1 || after.Turn != v.Turn {
		t.Fatalf("draw should shrink the pool and keep the turn: %+v", after)
	}

	if rr := do(h, "POST", "/game/"+v.ID+"/pass", "p1", url.Values{}); rr.Code != http.StatusOK {
		t.Fatalf("pass: %d", rr.Code)
	}
	after, _ = svc.Get(v.ID)
	if after.Turn != (v.Turn+1)%2 {
		t.Fatalf("pass should hand the turn on, turn=%d", after.Turn)
	}
}

func TestStateEndpointJSON(t *testing.T) {
	svc, h := newTestServer(t)
	v := newOwnedGame(t, svc, app.Options{Players: 2})

	rr := do(h, "GET", "/game/"+v.ID+"/state", "p1", nil)
	if ct := rr.Result().Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON, got %q", ct)
	}
	var got app.GameView
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != v.ID || len(got.Hand) == 0 || got.Board.Width != 5 || got.Board.Height != 6 {
		t.Fatalf("unexpected state: %+v", got)
	}

	rr = do(h, "GET", "/game/"+v.ID+"/state", "p2", nil)
	got = app.GameView{}
	_ = json.NewDecoder(rr.Body).Decode(&got)
	if got.Hand != nil {
		t.Fatalf("spectator state leaked the hand: %v", got.Hand)
	}
}

func TestEventsEndpointSSEHeaders(t *testing.T) {
	_, h := newTestServer(t)
	rrCreate := do(h, "POST", "/game", "", nil)
	loc := rrCreate.Result().Header.Get("Location")
	if loc == "" {
		t.Fatalf("missing redirect location")
	}
	rr := do(h, "GET", loc+"/events", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	ct := rr.Result().Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}
}

func TestEventsStreamBoardUpdates(t *testing.T) {
	svc, h := newTestServer(t, WithHeartbeat(50*time.Millisecond))
	v := newOwnedGame(t, svc, app.Options{Players: 2})
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/game/"+v.ID+"/events", nil)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	// The subscription exists once the headers are flushed.
	if _, err := svc.Pass(v.ID, "p1"); err != nil {
		t.Fatalf("pass: %v", err)
	}
	sc := bufio.NewScanner(resp.Body)
	sawEvent, sawBoard := false, false
	for sc.Scan() {
		line := sc.Text()
		if line == "event: board" {
			sawEvent = true
		}
		if sawEvent && strings.Contains(line, `id="board"`) {
			sawBoard = true
			break
		}
	}
	if !sawBoard {
		t.Fatalf("no board event received: %v", sc.Err())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	svc, h := newTestServer(t, WithMetrics(metrics.New()))
	_ = newOwnedGame(t, svc, app.Options{Players: 2})

	rr := do(h, "GET", "/health", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body.String())
	}

	rr = do(h, "GET", "/metrics", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("unexpected metrics response %d", rr.Code)
	}
}
