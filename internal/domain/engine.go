package domain

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
)

// Errors returned by domain operations.
var (
	ErrIllegalMove    = errors.New("illegal move")
	ErrPoolExhausted  = errors.New("pool is empty")
	ErrOutOfBounds    = errors.New("out of bounds")
	ErrPlayerCount    = errors.New("player count must be between 1 and 4")
	ErrUnknownPlayer  = errors.New("unknown player")
	ErrHandIndex      = errors.New("hand index out of range")
	ErrNotEnoughTiles = errors.New("not enough tiles to deal")
	ErrInvalidTile    = errors.New("invalid tile")
	ErrDuplicateTile  = errors.New("duplicate tile")
	ErrNotStarted     = errors.New("no starting tile on the board")
)

// Reason tells which placement rule a move broke.
type Reason int

const (
	ReasonDiagonal Reason = iota + 1
	ReasonNotOnEdge
	ReasonMismatch
	ReasonNoContact
)

var reasonNames = map[Reason]string{
	ReasonDiagonal:  "diagonal placement",
	ReasonNotOnEdge: "not on edge",
	ReasonMismatch:  "pips do not match",
	ReasonNoContact: "no matching contact",
}

func (r Reason) String() string { return reasonNames[r] }

// IllegalMoveError is returned for rejected placements. It matches
// ErrIllegalMove with errors.Is.
type IllegalMoveError struct {
	Reason Reason
}

func (e *IllegalMoveError) Error() string { return "illegal move: " + e.Reason.String() }

func (e *IllegalMoveError) Is(target error) bool { return target == ErrIllegalMove }

func illegal(r Reason) error { return &IllegalMoveError{Reason: r} }

// Engine owns the pool, the hands, the board and the two chain ends of one
// game. It is not safe for concurrent use.
type Engine struct {
	players int
	pool    []Tile
	hands   [][]Tile
	board   Board
	ends    [2]Point
	started bool
	start   Tile
	starter int
	rng     *rand.Rand
}

// NewEngine returns an engine with an empty pool and empty hands. A nil rng
// is replaced by a randomly seeded one.
func NewEngine(players int, rng *rand.Rand) (*Engine, error) {
	if players < MinPlayers || players > MaxPlayers {
		return nil, ErrPlayerCount
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Engine{
		players: players,
		hands:   make([][]Tile, players),
		starter: -1,
		rng:     rng,
	}, nil
}

// NewGame builds an engine, deals the hands and places the starting tile.
func NewGame(players int, rng *rand.Rand) (*Engine, error) {
	e, err := NewEngine(players, rng)
	if err != nil {
		return nil, err
	}
	e.GenerateTileSet()
	if err := e.DealHands(); err != nil {
		return nil, err
	}
	if err := e.StartMap(); err != nil {
		return nil, err
	}
	return e, nil
}

// Arrange builds a started engine from an explicit position: the hands,
// the remaining pool and the tile already on the board. Tiles must be
// valid and distinct; the set does not have to be complete.
func Arrange(hands [][]Tile, pool []Tile, start Tile, rng *rand.Rand) (*Engine, error) {
	e, err := NewEngine(len(hands), rng)
	if err != nil {
		return nil, err
	}
	seen := map[Tile]bool{}
	add := func(t Tile) error {
		if !t.valid() {
			return fmt.Errorf("%w: %s", ErrInvalidTile, t)
		}
		if seen[t.key()] {
			return fmt.Errorf("%w: %s", ErrDuplicateTile, t)
		}
		seen[t.key()] = true
		return nil
	}
	if err := add(start); err != nil {
		return nil, err
	}
	for p, hand := range hands {
		for _, t := range hand {
			if err := add(t); err != nil {
				return nil, err
			}
		}
		e.hands[p] = slices.Clone(hand)
	}
	for _, t := range pool {
		if err := add(t); err != nil {
			return nil, err
		}
	}
	e.pool = slices.Clone(pool)
	e.place(start, -1)
	return e, nil
}

// GenerateTileSet fills the pool with the 28 tiles of a double-six set.
func (e *Engine) GenerateTileSet() {
	e.pool = FullSet()
}

// DealHands moves HandSize random pool tiles into every hand.
func (e *Engine) DealHands() error {
	if len(e.pool) < HandSize*e.players {
		return ErrNotEnoughTiles
	}
	for p := range e.hands {
		for i := 0; i < HandSize; i++ {
			e.hands[p] = append(e.hands[p], e.takeRandom())
		}
	}
	return nil
}

// DrawTile moves one random pool tile into the player's hand.
func (e *Engine) DrawTile(player int) (Tile, error) {
	if err := e.checkPlayer(player); err != nil {
		return Tile{}, err
	}
	if len(e.pool) == 0 {
		return Tile{}, ErrPoolExhausted
	}
	t := e.takeRandom()
	e.hands[player] = append(e.hands[player], t)
	return t, nil
}

func (e *Engine) takeRandom() Tile {
	i := e.rng.IntN(len(e.pool))
	t := e.pool[i]
	e.pool = slices.Delete(e.pool, i, i+1)
	return t
}

// StartMap picks the starting tile from all hands, removes it from its
// owner and lays it on a fresh board. Tiles with a blank side never
// compete. A double beats any non-double, and the lower pip sum wins
// between two doubles or two non-doubles.
func (e *Engine) StartMap() error {
	owner, index := -1, -1
	var best Tile
	for p, hand := range e.hands {
		for i, t := range hand {
			if t.A == 0 || t.B == 0 {
				continue
			}
			if owner < 0 || outranks(t, best) {
				owner, index, best = p, i, t
			}
		}
	}
	if owner < 0 {
		// Only blanks were dealt: fall back to the first tile of the first hand.
		if len(e.hands) == 0 || len(e.hands[0]) == 0 {
			return ErrNotEnoughTiles
		}
		owner, index, best = 0, 0, e.hands[0][0]
	}
	e.hands[owner] = slices.Delete(e.hands[owner], index, index+1)
	e.place(best, owner)
	return nil
}

func outranks(t, best Tile) bool {
	if best.IsDouble() {
		return t.IsDouble() && t.PipSum() < best.PipSum()
	}
	return t.IsDouble() || t.PipSum() < best.PipSum()
}

func (e *Engine) place(t Tile, owner int) {
	e.board.Reset(t)
	e.ends = [2]Point{{X: 2, Y: 2}, {X: 2, Y: 3}}
	e.start = t
	e.starter = owner
	e.started = true
}

// MakeMove plays the hand tile at handIndex with PlaceDie and removes it
// from the hand when the placement succeeds.
func (e *Engine) MakeMove(player, handIndex, headX, headY, dx, dy int) error {
	if err := e.checkPlayer(player); err != nil {
		return err
	}
	hand := e.hands[player]
	if handIndex < 0 || handIndex >= len(hand) {
		return ErrHandIndex
	}
	if err := e.PlaceDie(hand[handIndex], headX, headY, dx, dy); err != nil {
		return err
	}
	e.hands[player] = slices.Delete(hand, handIndex, handIndex+1)
	return nil
}

// PlaceDie writes t.A at (headX, headY) and t.B one step further along
// (dx, dy). The chain end touched by the tile moves to the tile's far
// cell, and the board grows if the tile came close to its boundary.
// Nothing changes when the placement is rejected.
func (e *Engine) PlaceDie(t Tile, headX, headY, dx, dy int) error {
	if err := e.CheckMove(t, headX, headY, dx, dy); err != nil {
		return err
	}
	head := Point{X: headX, Y: headY}
	tail := head.Add(Point{X: dx, Y: dy})

	headEnd, tailEnd := e.attachedEnd(head), e.attachedEnd(tail)
	_ = e.board.Set(Cell(t.A), head.X, head.Y)
	_ = e.board.Set(Cell(t.B), tail.X, tail.Y)
	if headEnd >= 0 {
		e.ends[headEnd] = tail
	}
	if tailEnd >= 0 {
		e.ends[tailEnd] = head
	}

	padX, padY := e.board.Extend()
	for i := range e.ends {
		e.ends[i].X += padX
		e.ends[i].Y += padY
	}
	return nil
}

// CheckMove runs every PlaceDie rule without touching the board.
func (e *Engine) CheckMove(t Tile, headX, headY, dx, dy int) error {
	if !e.started {
		return ErrNotStarted
	}
	if !(dx*dy == 0 && abs(dx+dy) == 1) {
		return illegal(ReasonDiagonal)
	}
	head := Point{X: headX, Y: headY}
	tail := head.Add(Point{X: dx, Y: dy})
	if e.attachedEnd(head) < 0 && e.attachedEnd(tail) < 0 {
		return illegal(ReasonNotOnEdge)
	}
	if !e.board.inside(head.X, head.Y) || !e.board.inside(tail.X, tail.Y) {
		return ErrOutOfBounds
	}
	fh := e.board.Fit(Cell(t.A), head.X, head.Y)
	ft := e.board.Fit(Cell(t.B), tail.X, tail.Y)
	if fh == Mismatch || ft == Mismatch {
		return illegal(ReasonMismatch)
	}
	if fh+ft < 1 {
		return illegal(ReasonNoContact)
	}
	return nil
}

// attachedEnd returns the index of the first chain end next to p, or -1.
func (e *Engine) attachedEnd(p Point) int {
	for i, end := range e.ends {
		if p.Distance(end) == 1 {
			return i
		}
	}
	return -1
}

// Fit rates (x, y) as the destination of pip v on the current board.
func (e *Engine) Fit(v, x, y int) Fit { return e.board.Fit(Cell(v), x, y) }

// Cell returns the board cell at (x, y).
func (e *Engine) Cell(x, y int) (Cell, error) { return e.board.Get(x, y) }

// ChainEnds returns the two open ends of the chain.
func (e *Engine) ChainEnds() (Point, Point) { return e.ends[0], e.ends[1] }

// Exposed returns the pips shown at the two chain ends.
func (e *Engine) Exposed() (int, int) {
	a := e.board.at(e.ends[0].X, e.ends[0].Y)
	b := e.board.at(e.ends[1].X, e.ends[1].Y)
	return int(a), int(b)
}

// Board returns a copy of the grid.
func (e *Engine) Board() Snapshot { return e.board.Snapshot() }

// BoardString draws the grid as text.
func (e *Engine) BoardString() string { return e.board.String() }

// Hand returns a copy of the player's hand.
func (e *Engine) Hand(player int) ([]Tile, error) {
	if err := e.checkPlayer(player); err != nil {
		return nil, err
	}
	return slices.Clone(e.hands[player]), nil
}

func (e *Engine) Players() int { return e.players }

func (e *Engine) PoolSize() int { return len(e.pool) }

// StartTile is the tile laid by StartMap and its owner, -1 when the
// position was arranged.
func (e *Engine) StartTile() (Tile, int) { return e.start, e.starter }

// AnyHandEmpty reports whether some player has no tiles left.
func (e *Engine) AnyHandEmpty() bool { return e.EmptyHand() >= 0 }

// EmptyHand returns the first player without tiles, or -1.
func (e *Engine) EmptyHand() int {
	for p, hand := range e.hands {
		if len(hand) == 0 {
			return p
		}
	}
	return -1
}

// IsBlocked reports a fish: no tile left in the pool or in any hand shows
// a pip exposed at either chain end.
func (e *Engine) IsBlocked() bool {
	a, b := e.Exposed()
	fits := func(t Tile) bool { return t.Has(a) || t.Has(b) }
	if slices.ContainsFunc(e.pool, fits) {
		return false
	}
	for _, hand := range e.hands {
		if slices.ContainsFunc(hand, fits) {
			return false
		}
	}
	return true
}

// Score sums the PipScore of the tiles left in the player's hand. Lower
// is better.
func (e *Engine) Score(player int) (int, error) {
	if err := e.checkPlayer(player); err != nil {
		return 0, err
	}
	sum := 0
	for _, t := range e.hands[player] {
		sum += t.PipScore()
	}
	return sum, nil
}

func (e *Engine) checkPlayer(player int) error {
	if player < 0 || player >= e.players {
		return ErrUnknownPlayer
	}
	return nil
}
