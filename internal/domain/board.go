package domain

import (
	"strconv"
	"strings"
)

// Cell is a board cell: a pip value 0..6 or Empty.
type Cell int8

const Empty Cell = -1

// Bootstrap grid size used by Reset.
const (
	startRows = 6
	startCols = 5
)

// Point is a board coordinate; X is the column and Y the row.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Distance is the Manhattan distance between p and q.
func (p Point) Distance(q Point) int { return abs(p.X-q.X) + abs(p.Y-q.Y) }

// Orthogonal lists the four unit steps: up, right, down, left.
var Orthogonal = [4]Point{{0, -1}, {1, 0}, {0, 1}, {-1, 0}}

// Fit rates a cell as a destination for a pip value.
type Fit int

const (
	Mismatch Fit = -1
	Isolated Fit = 0
	Match    Fit = 1
)

func (f Fit) String() string {
	switch f {
	case Mismatch:
		return "mismatch"
	case Match:
		return "match"
	default:
		return "isolated"
	}
}

// Board is a dense grid stored row-major as rows[y][x]. It grows in every
// direction so that occupied cells always keep an empty margin.
type Board struct {
	rows [][]Cell
}

// Width is the number of columns.
func (b *Board) Width() int {
	if len(b.rows) == 0 {
		return 0
	}
	return len(b.rows[0])
}

// Height is the number of rows.
func (b *Board) Height() int { return len(b.rows) }

func (b *Board) inside(x, y int) bool {
	return y >= 0 && y < len(b.rows) && x >= 0 && x < len(b.rows[y])
}

// Get returns the cell at (x, y).
func (b *Board) Get(x, y int) (Cell, error) {
	if !b.inside(x, y) {
		return Empty, ErrOutOfBounds
	}
	return b.rows[y][x], nil
}

// at is Get without the error; cells outside the grid read as Empty.
func (b *Board) at(x, y int) Cell {
	if !b.inside(x, y) {
		return Empty
	}
	return b.rows[y][x]
}

// Set overwrites the cell at (x, y). It does not check legality.
func (b *Board) Set(v Cell, x, y int) error {
	if !b.inside(x, y) {
		return ErrOutOfBounds
	}
	b.rows[y][x] = v
	return nil
}

// Reset replaces the grid with the 6x5 bootstrap layout holding t
// vertically in the centre: t.A at (2,2) and t.B at (2,3).
func (b *Board) Reset(t Tile) {
	b.rows = make([][]Cell, startRows)
	for y := range b.rows {
		b.rows[y] = emptyRow(startCols)
	}
	b.rows[2][2] = Cell(t.A)
	b.rows[3][2] = Cell(t.B)
}

// Extend grows the grid until no occupied cell sits in the second row or
// column from any edge. It returns how far existing coordinates moved:
// growth on the top or left shifts every cell, growth on the bottom or
// right does not. Two passes are needed because a cell written on the
// outermost row or column is still one cell short after the first.
func (b *Board) Extend() (padX, padY int) {
	for pass := 0; pass < 2; pass++ {
		if b.rowOccupied(1) {
			b.rows = append([][]Cell{emptyRow(b.Width())}, b.rows...)
			padY++
		}
		if b.rowOccupied(len(b.rows) - 2) {
			b.rows = append(b.rows, emptyRow(b.Width()))
		}

		left, right := false, false
		last := b.Width() - 2
		for y := 0; y < len(b.rows)-2; y++ {
			if b.rows[y][1] != Empty {
				left = true
			}
			if b.rows[y][last] != Empty {
				right = true
			}
		}
		if left {
			for y, row := range b.rows {
				b.rows[y] = append([]Cell{Empty}, row...)
			}
			padX++
		}
		if right {
			for y, row := range b.rows {
				b.rows[y] = append(row, Empty)
			}
		}
	}
	return padX, padY
}

func (b *Board) rowOccupied(y int) bool {
	if y < 0 || y >= len(b.rows) {
		return false
	}
	for _, v := range b.rows[y] {
		if v != Empty {
			return true
		}
	}
	return false
}

// Fit rates (x, y) as the destination of pip v. An occupied cell, or an
// occupied neighbour showing a different pip, is a Mismatch. Otherwise the
// cell is a Match when at least one neighbour is occupied and Isolated when
// none is.
func (b *Board) Fit(v Cell, x, y int) Fit {
	if b.at(x, y) != Empty {
		return Mismatch
	}
	touched := false
	for _, d := range Orthogonal {
		n := b.at(x+d.X, y+d.Y)
		if n == Empty {
			continue
		}
		if n != v {
			return Mismatch
		}
		touched = true
	}
	if touched {
		return Match
	}
	return Isolated
}

// Snapshot is a detached copy of the grid.
type Snapshot struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Cells  [][]Cell `json:"cells"`
}

// At returns the cell at (x, y), Empty outside the snapshot.
func (s Snapshot) At(x, y int) Cell {
	if y < 0 || y >= len(s.Cells) || x < 0 || x >= len(s.Cells[y]) {
		return Empty
	}
	return s.Cells[y][x]
}

// Snapshot copies the grid.
func (b *Board) Snapshot() Snapshot {
	cells := make([][]Cell, len(b.rows))
	for y, row := range b.rows {
		cells[y] = append([]Cell(nil), row...)
	}
	return Snapshot{Width: b.Width(), Height: b.Height(), Cells: cells}
}

// String draws the grid, one row per line, '.' for empty cells.
func (b *Board) String() string { return drawRows(b.rows) }

func (s Snapshot) String() string { return drawRows(s.Cells) }

func drawRows(rows [][]Cell) string {
	var sb strings.Builder
	for _, row := range rows {
		for x, v := range row {
			if x > 0 {
				sb.WriteByte(' ')
			}
			if v == Empty {
				sb.WriteByte('.')
			} else {
				sb.WriteString(strconv.Itoa(int(v)))
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func emptyRow(n int) []Cell {
	row := make([]Cell, n)
	for i := range row {
		row[i] = Empty
	}
	return row
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
