package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jaminalder/codex-domino/internal/app"
	"github.com/jaminalder/codex-domino/internal/domain"
	"github.com/jaminalder/codex-domino/internal/metrics"
)

type handlers struct {
	svc       *app.Service
	tpl       *templates
	log       *zap.Logger
	metrics   *metrics.Metrics
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

// selection is the pick-a-tile, pick-a-head state of the hot-seat UI. It
// travels in the query string and never reaches the service.
type selection struct {
	Tile int
	Head *domain.Point
}

var noSelection = selection{Tile: -1}

func parseSelection(q url.Values) selection {
	tile, err := strconv.Atoi(q.Get("tile"))
	if err != nil || tile < 0 {
		return noSelection
	}
	sel := selection{Tile: tile}
	hx, errX := strconv.Atoi(q.Get("hx"))
	hy, errY := strconv.Atoi(q.Get("hy"))
	if errX == nil && errY == nil {
		sel.Head = &domain.Point{X: hx, Y: hy}
	}
	return sel
}

// boardData feeds the board fragment.
type boardData struct {
	app.GameView
	Owner bool
	Sel   selection
	Error string
}

// CanAct reports whether the viewer may act right now.
func (d boardData) CanAct() bool { return d.Owner && !d.Over() && !d.BotTurn() }

func (d boardData) IsEnd(x, y int) bool {
	p := domain.Point{X: x, Y: y}
	return d.Ends[0] == p || d.Ends[1] == p
}

func (d boardData) IsHead(x, y int) bool {
	return d.Sel.Head != nil && *d.Sel.Head == domain.Point{X: x, Y: y}
}

// Selectable marks empty cells that take a click: any empty cell for the
// head, and the four neighbours of the head for the tail.
func (d boardData) Selectable(x, y int) bool {
	if !d.CanAct() || d.Sel.Tile < 0 || d.Sel.Tile >= len(d.Hand) || d.Board.At(x, y) != domain.Empty {
		return false
	}
	if d.Sel.Head == nil {
		return true
	}
	return d.Sel.Head.Distance(domain.Point{X: x, Y: y}) == 1
}

// Picked is the selected hand tile.
func (d boardData) Picked() domain.Tile {
	if d.Sel.Tile < 0 || d.Sel.Tile >= len(d.Hand) {
		return domain.Tile{}
	}
	return d.Hand[d.Sel.Tile]
}

func (d boardData) Status() string {
	turn := d.Turn + 1
	switch {
	case d.Outcome == app.OutcomeDomino:
		return fmt.Sprintf("Game over: player %d has no more tiles.", d.Winner+1)
	case d.Outcome == app.OutcomeFish:
		return fmt.Sprintf("Game over: fish! Player %d has the fewest points.", d.Winner+1)
	case d.Outcome == app.OutcomeStalled:
		return fmt.Sprintf("Game over: everyone passed. Player %d has the fewest points.", d.Winner+1)
	case !d.Owner:
		return fmt.Sprintf("Player %d's turn. You are watching.", turn)
	case d.BotTurn():
		return fmt.Sprintf("Player %d (bot) is moving.", turn)
	case d.Sel.Tile < 0 || d.Sel.Tile >= len(d.Hand):
		return fmt.Sprintf("Player %d: pick a tile.", turn)
	case d.Sel.Head == nil:
		return fmt.Sprintf("Player %d: click the cell for the %d of %s.", turn, d.Picked().A, d.Picked())
	default:
		return fmt.Sprintf("Player %d: click the cell for the %d of %s.", turn, d.Picked().B, d.Picked())
	}
}

func (h *handlers) renderBoard(v app.GameView, playerID string, sel selection, errMsg string) []byte {
	data := boardData{
		GameView: v.For(playerID),
		Owner:    playerID != "" && playerID == v.Owner,
		Sel:      sel,
		Error:    errMsg,
	}
	return renderTemplate(h.tpl.board, "", data)
}

func (h *handlers) writeBoard(w http.ResponseWriter, v app.GameView, playerID string, sel selection, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(h.renderBoard(v, playerID, sel, errMsg))
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.index, "", nil))
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "games": h.svc.Len()})
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	opts := app.Options{
		Players: formInt(r.Form, "players", 2),
		Bots:    formInt(r.Form, "bots", 1),
	}
	v, err := h.svc.CreateGame(opts)
	if err != nil {
		http.Error(w, "cannot create game: "+err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/game/"+v.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	// ensure cookie and auto-claim the table
	pid := ensurePlayerCookie(w, r)
	_, v, err := h.svc.Join(id, pid)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	data := struct {
		ID        string
		BoardHTML template.HTML
	}{ID: v.ID}
	data.BoardHTML = template.HTML(h.renderBoard(v, pid, noSelection, ""))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(renderTemplate(h.tpl.game, "", data))
}

func (h *handlers) board(w http.ResponseWriter, r *http.Request) {
	v, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.writeBoard(w, v, playerCookie(r), parseSelection(r.URL.Query()), "")
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	v, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, v.For(playerCookie(r)))
}

func (h *handlers) join(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	_, v, err := h.svc.Join(id, pid)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.writeBoard(w, v, pid, noSelection, "")
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid := ensurePlayerCookie(w, r)
	_ = r.ParseForm()
	tile := formInt(r.Form, "tile", -1)
	hx, hy := formInt(r.Form, "hx", 0), formInt(r.Form, "hy", 0)
	x, y := formInt(r.Form, "x", 0), formInt(r.Form, "y", 0)
	// The second click gives the tail; the step between the clicks is the
	// direction.
	v, err := h.svc.Play(id, pid, tile, hx, hy, x-hx, y-hy)
	sel := noSelection
	if errors.Is(err, domain.ErrIllegalMove) {
		// Keep the tile picked for another try.
		sel = selection{Tile: tile}
	}
	h.respond(w, r, v, pid, sel, err)
}

func (h *handlers) draw(w http.ResponseWriter, r *http.Request) {
	pid := ensurePlayerCookie(w, r)
	_, v, err := h.svc.Draw(chi.URLParam(r, "id"), pid)
	h.respond(w, r, v, pid, noSelection, err)
}

func (h *handlers) pass(w http.ResponseWriter, r *http.Request) {
	pid := ensurePlayerCookie(w, r)
	v, err := h.svc.Pass(chi.URLParam(r, "id"), pid)
	h.respond(w, r, v, pid, noSelection, err)
}

// respond renders the board after an action, with the error as a message.
func (h *handlers) respond(w http.ResponseWriter, r *http.Request, v app.GameView, pid string, sel selection, err error) {
	if errors.Is(err, app.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	var msg string
	if err != nil {
		msg = errMessage(err)
	}
	h.writeBoard(w, v, pid, sel, msg)
}

func errMessage(err error) string {
	var ime *domain.IllegalMoveError
	switch {
	case errors.As(err, &ime):
		return "Illegal move: " + ime.Reason.String()
	case errors.Is(err, app.ErrNotYourTurn):
		return "Not your turn"
	case errors.Is(err, app.ErrNotAPlayer):
		return "You are a spectator"
	case errors.Is(err, app.ErrGameOver):
		return "Game is over"
	case errors.Is(err, domain.ErrPoolExhausted):
		return "The pool is empty"
	case errors.Is(err, domain.ErrHandIndex):
		return "Pick a tile from your hand first"
	case errors.Is(err, domain.ErrOutOfBounds):
		return "Out of bounds"
	default:
		return "Invalid move"
	}
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Get(id); !ok {
		http.NotFound(w, r)
		return
	}
	pid := playerCookie(r)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	// In tests or non-EventSource requests, just acknowledge headers and return
	if r.Header.Get("Accept") != "text/event-stream" {
		w.WriteHeader(http.StatusOK)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	ctx := r.Context()
	ch, unsub, err := h.svc.Subscribe(ctx, id)
	if err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	defer unsub()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	// Initial flush of headers
	flusher.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		case v, ok := <-ch:
			if !ok {
				return
			}
			// Pushes carry no selection. Bots move inside the request that
			// handed them the turn, so a push only lands mid-pick when the
			// owner acts from another tab.
			writeSSE(w, "board", h.renderBoard(v, pid, noSelection, ""))
			flusher.Flush()
		}
	}
}

// writeSSE emits one event; every payload line gets its own data field.
func writeSSE(w io.Writer, event string, payload []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(strings.TrimRight(string(payload), "\n"), "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = io.WriteString(w, "\n")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func formInt(f url.Values, key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(f.Get(key)))
	if err != nil {
		return def
	}
	return n
}
