package domain

import "fmt"

// Set dimensions for a double-six domino set.
const (
	MaxPip     = 6
	SetSize    = 28
	HandSize   = 7
	MinPlayers = 1
	MaxPlayers = 4
)

// Tile is one domino. It has no orientation; that is decided when it is
// placed on the board.
type Tile struct {
	A int `json:"a"`
	B int `json:"b"`
}

// NewTile returns the tile a-b, or ErrInvalidTile when a pip is outside 0..6.
func NewTile(a, b int) (Tile, error) {
	if a < 0 || a > MaxPip || b < 0 || b > MaxPip {
		return Tile{}, fmt.Errorf("%w: %d-%d", ErrInvalidTile, a, b)
	}
	return Tile{A: a, B: b}, nil
}

func (t Tile) IsDouble() bool { return t.A == t.B }

func (t Tile) PipSum() int { return t.A + t.B }

// PipScore is the tile's weight in end-of-game scoring. The double blank
// counts 10.
func (t Tile) PipScore() int {
	if t.A == 0 && t.B == 0 {
		return 10
	}
	return t.A + t.B
}

// Has reports whether either side of the tile shows v.
func (t Tile) Has(v int) bool { return t.A == v || t.B == v }

// Other returns the pip opposite to v, and false when the tile does not
// carry v at all.
func (t Tile) Other(v int) (int, bool) {
	switch v {
	case t.A:
		return t.B, true
	case t.B:
		return t.A, true
	}
	return 0, false
}

func (t Tile) String() string { return fmt.Sprintf("%d-%d", t.A, t.B) }

func (t Tile) valid() bool {
	return t.A >= 0 && t.A <= MaxPip && t.B >= 0 && t.B <= MaxPip
}

// key identifies a tile regardless of orientation.
func (t Tile) key() Tile {
	if t.A > t.B {
		return Tile{A: t.B, B: t.A}
	}
	return t
}

// FullSet returns the 28 tiles of a double-six set, i <= j, in order.
func FullSet() []Tile {
	set := make([]Tile, 0, SetSize)
	for i := 0; i <= MaxPip; i++ {
		for j := i; j <= MaxPip; j++ {
			set = append(set, Tile{A: i, B: j})
		}
	}
	return set
}
