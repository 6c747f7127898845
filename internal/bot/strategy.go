// Package bot picks moves for computer-controlled seats.
package bot

import (
	"errors"

	"github.com/jaminalder/codex-domino/internal/domain"
)

// ErrNoLegalMove is returned when no hand tile can be placed and the pool
// is empty.
var ErrNoLegalMove = errors.New("no legal move")

// Table is the part of the engine the strategy reads. DrawTile is the only
// call that changes state.
type Table interface {
	Hand(player int) ([]domain.Tile, error)
	ChainEnds() (domain.Point, domain.Point)
	Cell(x, y int) (domain.Cell, error)
	Fit(v, x, y int) domain.Fit
	CheckMove(t domain.Tile, headX, headY, dx, dy int) error
	DrawTile(player int) (domain.Tile, error)
}

// Order decides in which order the footprints around a chain end are tried.
// *rand.Rand from math/rand/v2 satisfies it.
type Order interface {
	Perm(n int) []int
}

// Fixed is an Order that always returns the same permutation.
type Fixed []int

func (f Fixed) Perm(n int) []int {
	out := make([]int, n)
	copy(out, f)
	return out
}

// Sequential tries the footprints in declaration order.
var Sequential = Fixed{0, 1, 2, 3, 4, 5, 6, 7}

// Plan is a move ready for Engine.MakeMove. Drawn lists the tiles pulled
// from the pool while searching; they are already in the hand.
type Plan struct {
	HandIndex int
	Tile      domain.Tile
	Head      domain.Point
	Dir       domain.Point
	Drawn     []domain.Tile
}

// Strategy is the greedy first-fit bot.
type Strategy struct {
	order Order
}

// New returns a strategy using order to shuffle footprints. A nil order
// means Sequential.
func New(order Order) *Strategy {
	if order == nil {
		order = Sequential
	}
	return &Strategy{order: order}
}

// footprint is a two-cell shape anchored at a chain end: far is the cell
// receiving the unmatched pip and via lists the candidate cells between the
// end and far, in the order they are tried.
type footprint struct {
	far domain.Point
	via []domain.Point
}

var footprints = [8]footprint{
	{far: domain.Point{X: 0, Y: -2}, via: []domain.Point{{X: 0, Y: -1}}},
	{far: domain.Point{X: 2, Y: 0}, via: []domain.Point{{X: 1, Y: 0}}},
	{far: domain.Point{X: 0, Y: 2}, via: []domain.Point{{X: 0, Y: 1}}},
	{far: domain.Point{X: -2, Y: 0}, via: []domain.Point{{X: -1, Y: 0}}},
	{far: domain.Point{X: 1, Y: -1}, via: []domain.Point{{X: 1, Y: 0}, {X: 0, Y: -1}}},
	{far: domain.Point{X: 1, Y: 1}, via: []domain.Point{{X: 1, Y: 0}, {X: 0, Y: 1}}},
	{far: domain.Point{X: -1, Y: 1}, via: []domain.Point{{X: -1, Y: 0}, {X: 0, Y: 1}}},
	{far: domain.Point{X: -1, Y: -1}, via: []domain.Point{{X: -1, Y: 0}, {X: 0, Y: -1}}},
}

// hit is a hand tile whose pip equals a chain end.
type hit struct {
	end     domain.Point
	flipped bool // the matching pip is B
	other   int
}

// Plan scans the hand for the first tile that matches a chain end and has a
// free footprint next to it. Tiles are tested against end A then end B, side
// A before side B. When the hand runs out the bot draws and keeps scanning
// from the new tile. ErrNoLegalMove comes back with the tiles drawn so far.
func (s *Strategy) Plan(t Table, player int) (Plan, error) {
	hand, err := t.Hand(player)
	if err != nil {
		return Plan{}, err
	}
	endA, endB := t.ChainEnds()
	var ends [2]struct {
		at  domain.Point
		pip int
	}
	for i, e := range [2]domain.Point{endA, endB} {
		c, err := t.Cell(e.X, e.Y)
		if err != nil {
			return Plan{}, err
		}
		ends[i].at, ends[i].pip = e, int(c)
	}

	var drawn []domain.Tile
	for i := 0; ; i++ {
		if i == len(hand) {
			tile, err := t.DrawTile(player)
			if errors.Is(err, domain.ErrPoolExhausted) {
				return Plan{Drawn: drawn}, ErrNoLegalMove
			}
			if err != nil {
				return Plan{Drawn: drawn}, err
			}
			drawn = append(drawn, tile)
			hand = append(hand, tile)
		}
		tile := hand[i]
		for _, e := range ends {
			for _, h := range hits(tile, e.at, e.pip) {
				if head, dir, ok := s.place(t, tile, h); ok {
					return Plan{HandIndex: i, Tile: tile, Head: head, Dir: dir, Drawn: drawn}, nil
				}
			}
		}
	}
}

func hits(t domain.Tile, end domain.Point, pip int) []hit {
	var out []hit
	if t.A == pip {
		out = append(out, hit{end: end, other: t.B})
	}
	if t.B == pip {
		out = append(out, hit{end: end, flipped: true, other: t.A})
	}
	return out
}

// place tries the footprints around h.end and returns the head cell and
// direction for the first one the table accepts. An elbow has two legs and
// each empty one is tried.
func (s *Strategy) place(t Table, tile domain.Tile, h hit) (head, dir domain.Point, ok bool) {
	for _, k := range s.order.Perm(len(footprints)) {
		fp := footprints[k]
		far := h.end.Add(fp.far)
		if t.Fit(h.other, far.X, far.Y) == domain.Mismatch {
			continue
		}
		for _, v := range fp.via {
			near := h.end.Add(v)
			if c, err := t.Cell(near.X, near.Y); err != nil || c != domain.Empty {
				continue
			}
			head, dir = near, far.Sub(near)
			if h.flipped {
				head, dir = far, near.Sub(far)
			}
			if t.CheckMove(tile, head.X, head.Y, dir.X, dir.Y) == nil {
				return head, dir, true
			}
		}
	}
	return domain.Point{}, domain.Point{}, false
}
