package app

import (
	"fmt"
	"time"

	"github.com/jaminalder/codex-domino/internal/bot"
	"github.com/jaminalder/codex-domino/internal/domain"
)

// Options describe a new table. Bot seats are the last Bots seats.
type Options struct {
	Players int `json:"players"`
	Bots    int `json:"bots"`
}

// Outcome tells how a finished game ended.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeDomino  Outcome = "domino"  // a seat emptied its hand
	OutcomeFish    Outcome = "fish"    // no remaining tile fits either end
	OutcomeStalled Outcome = "stalled" // every seat passed in a row
)

// Event is one line of the game log.
type Event struct {
	Seat int         `json:"seat"`
	Kind string      `json:"kind"`
	Tile domain.Tile `json:"tile"`
	At   time.Time   `json:"at"`
}

func (e Event) String() string {
	switch e.Kind {
	case "play":
		return fmt.Sprintf("Player %d played %s", e.Seat+1, e.Tile)
	case "draw":
		return fmt.Sprintf("Player %d drew a tile", e.Seat+1)
	case "start":
		if e.Seat < 0 {
			return fmt.Sprintf("Started with %s", e.Tile)
		}
		return fmt.Sprintf("Player %d laid the starting tile %s", e.Seat+1, e.Tile)
	default:
		return fmt.Sprintf("Player %d passed", e.Seat+1)
	}
}

const maxEvents = 12

// SeatView is the public state of one seat.
type SeatView struct {
	Index    int  `json:"index"`
	Bot      bool `json:"bot"`
	HandSize int  `json:"hand_size"`
	Score    int  `json:"score"`
}

// GameView is a detached copy of a game. Hand is the hand of the seat to
// move when that seat is human; For clears it for anyone but the owner.
type GameView struct {
	ID      string          `json:"id"`
	Owner   string          `json:"-"`
	Seats   []SeatView      `json:"seats"`
	Turn    int             `json:"turn"`
	Board   domain.Snapshot `json:"board"`
	Ends    [2]domain.Point `json:"ends"`
	Exposed [2]int          `json:"exposed"`
	Hand    []domain.Tile   `json:"hand,omitempty"`
	Pool    int             `json:"pool"`
	Outcome Outcome         `json:"outcome,omitempty"`
	Winner  int             `json:"winner"`
	Events  []Event         `json:"events"`
	Created time.Time       `json:"created"`
	Updated time.Time       `json:"updated"`
}

// Over reports whether the game has finished.
func (v GameView) Over() bool { return v.Outcome != OutcomeNone }

// BotTurn reports whether the seat to move is a bot.
func (v GameView) BotTurn() bool { return v.Turn < len(v.Seats) && v.Seats[v.Turn].Bot }

// For returns the view as seen by playerID.
func (v GameView) For(playerID string) GameView {
	if playerID == "" || playerID != v.Owner {
		v.Hand = nil
	}
	return v
}

// game is the mutable per-table state guarded by the service mutex.
type game struct {
	id      string
	engine  *domain.Engine
	bots    []bool
	player  *bot.Strategy
	owner   string
	turn    int
	passes  int
	outcome Outcome
	winner  int
	events  []Event
	created time.Time
	updated time.Time
}

func (g *game) log(seat int, kind string, t domain.Tile) {
	g.events = append(g.events, Event{Seat: seat, Kind: kind, Tile: t, At: time.Now()})
	if len(g.events) > maxEvents {
		g.events = g.events[len(g.events)-maxEvents:]
	}
}

// settle ends the game when a hand is empty, the chain is blocked or every
// seat has passed since the last placement. It reports whether the game is
// over.
func (g *game) settle() bool {
	switch {
	case g.engine.AnyHandEmpty():
		g.outcome, g.winner = OutcomeDomino, g.engine.EmptyHand()
	case g.engine.IsBlocked():
		g.outcome, g.winner = OutcomeFish, g.lowestScore()
	case g.passes >= g.engine.Players():
		g.outcome, g.winner = OutcomeStalled, g.lowestScore()
	default:
		return false
	}
	return true
}

// lowestScore returns the seat with the smallest hand score; ties go to
// the lower seat.
func (g *game) lowestScore() int {
	best, seat := -1, 0
	for p := 0; p < g.engine.Players(); p++ {
		s, _ := g.engine.Score(p)
		if best < 0 || s < best {
			best, seat = s, p
		}
	}
	return seat
}

func (g *game) view() GameView {
	e := g.engine
	a, b := e.ChainEnds()
	x, y := e.Exposed()
	v := GameView{
		ID:      g.id,
		Owner:   g.owner,
		Turn:    g.turn,
		Board:   e.Board(),
		Ends:    [2]domain.Point{a, b},
		Exposed: [2]int{x, y},
		Pool:    e.PoolSize(),
		Outcome: g.outcome,
		Winner:  -1,
		Events:  append([]Event(nil), g.events...),
		Created: g.created,
		Updated: g.updated,
	}
	if g.outcome != OutcomeNone {
		v.Winner = g.winner
	}
	for p := 0; p < e.Players(); p++ {
		hand, _ := e.Hand(p)
		score, _ := e.Score(p)
		v.Seats = append(v.Seats, SeatView{Index: p, Bot: g.bots[p], HandSize: len(hand), Score: score})
	}
	if g.outcome == OutcomeNone && !g.bots[g.turn] {
		v.Hand, _ = e.Hand(g.turn)
	}
	return v
}
