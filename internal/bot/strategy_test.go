package bot

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaminalder/codex-domino/internal/domain"
)

// start is laid vertically: 3 at (2,2) is end A and 5 at (2,3) is end B.
var start = domain.Tile{A: 3, B: 5}

func arrange(t *testing.T, hand, pool []domain.Tile) *domain.Engine {
	t.Helper()
	e, err := domain.Arrange([][]domain.Tile{hand}, pool, start, rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	return e
}

func apply(t *testing.T, e *domain.Engine, p Plan) {
	t.Helper()
	require.NoError(t, e.MakeMove(0, p.HandIndex, p.Head.X, p.Head.Y, p.Dir.X, p.Dir.Y))
}

func TestPlanFirstMatchingTile(t *testing.T) {
	e := arrange(t, []domain.Tile{{A: 1, B: 2}, {A: 3, B: 6}}, nil)

	p, err := New(Sequential).Plan(e, 0)
	require.NoError(t, err)
	require.Equal(t, 1, p.HandIndex)
	require.Equal(t, domain.Tile{A: 3, B: 6}, p.Tile)
	require.Equal(t, domain.Point{X: 2, Y: 1}, p.Head)
	require.Equal(t, domain.Point{X: 0, Y: -1}, p.Dir)
	require.Empty(t, p.Drawn)

	apply(t, e, p)
	a, _ := e.Exposed()
	require.Equal(t, 6, a)
}

func TestPlanFlippedTileStartsAtFarCell(t *testing.T) {
	e := arrange(t, []domain.Tile{{A: 6, B: 3}}, nil)

	p, err := New(Sequential).Plan(e, 0)
	require.NoError(t, err)
	require.Equal(t, domain.Point{X: 2, Y: 0}, p.Head)
	require.Equal(t, domain.Point{X: 0, Y: 1}, p.Dir)

	apply(t, e, p)
	a, _ := e.Exposed()
	require.Equal(t, 6, a)
}

func TestPlanPrefersEndA(t *testing.T) {
	e := arrange(t, []domain.Tile{{A: 5, B: 3}}, nil)

	p, err := New(Sequential).Plan(e, 0)
	require.NoError(t, err)
	// B matches end A and is tried before A against end B.
	require.Equal(t, domain.Point{X: 2, Y: 0}, p.Head)
	require.Equal(t, domain.Point{X: 0, Y: 1}, p.Dir)
}

func TestPlanDrawsUntilSomethingFits(t *testing.T) {
	e := arrange(t, []domain.Tile{{A: 1, B: 2}}, []domain.Tile{{A: 5, B: 6}})

	p, err := New(Sequential).Plan(e, 0)
	require.NoError(t, err)
	require.Equal(t, []domain.Tile{{A: 5, B: 6}}, p.Drawn)
	require.Equal(t, 1, p.HandIndex)
	// Straight up from end B runs into end A, so the next footprint wins.
	require.Equal(t, domain.Point{X: 3, Y: 3}, p.Head)
	require.Equal(t, domain.Point{X: 1, Y: 0}, p.Dir)
	require.Zero(t, e.PoolSize())

	apply(t, e, p)
	hand, _ := e.Hand(0)
	require.Equal(t, []domain.Tile{{A: 1, B: 2}}, hand)
}

func TestPlanNoLegalMove(t *testing.T) {
	e := arrange(t, []domain.Tile{{A: 1, B: 2}}, []domain.Tile{{A: 0, B: 4}})

	p, err := New(Sequential).Plan(e, 0)
	require.ErrorIs(t, err, ErrNoLegalMove)
	require.Equal(t, []domain.Tile{{A: 0, B: 4}}, p.Drawn)
	hand, _ := e.Hand(0)
	require.Len(t, hand, 2)
}

func TestPlanUnknownPlayer(t *testing.T) {
	e := arrange(t, []domain.Tile{{A: 1, B: 2}}, nil)
	_, err := New(nil).Plan(e, 3)
	require.ErrorIs(t, err, domain.ErrUnknownPlayer)
}

// only tries footprint k.
func only(k int) Fixed {
	f := make(Fixed, len(footprints))
	for i := range f {
		f[i] = k
	}
	return f
}

// leftOfEndB lays 5-2 to the left of end B. The board grows two columns,
// leaving end A at (4,2) showing 3 and end B at (2,3) showing 2, with the
// played 5 at (3,3) to its right.
func leftOfEndB(t *testing.T, hand ...domain.Tile) *domain.Engine {
	t.Helper()
	e := arrange(t, append([]domain.Tile{{A: 5, B: 2}}, hand...), nil)
	require.NoError(t, e.MakeMove(0, 0, 1, 3, -1, 0))
	endA, endB := e.ChainEnds()
	require.Equal(t, domain.Point{X: 4, Y: 2}, endA)
	require.Equal(t, domain.Point{X: 2, Y: 3}, endB)
	return e
}

func TestFootprintSkipsOccupiedLeg(t *testing.T) {
	e := leftOfEndB(t)
	_, endB := e.ChainEnds()
	h := hit{end: endB, other: 5}
	tile := domain.Tile{A: 2, B: 5}

	_, _, ok := New(only(1)).place(e, tile, h)
	require.False(t, ok, "straight footprint through an occupied cell")

	head, dir, ok := New(only(3)).place(e, tile, h)
	require.True(t, ok)
	require.Equal(t, domain.Point{X: 1, Y: 3}, head)
	require.Equal(t, domain.Point{X: -1, Y: 0}, dir)

	// The horizontal leg of the down-right elbow is taken, the vertical one
	// is free.
	head, dir, ok = New(only(5)).place(e, tile, h)
	require.True(t, ok)
	require.Equal(t, domain.Point{X: 2, Y: 4}, head)
	require.Equal(t, domain.Point{X: 1, Y: 0}, dir)
}

func TestPlanTriesSecondElbowLeg(t *testing.T) {
	// Up-left of end A: the horizontal leg (3,2) is empty but sits on the 5
	// at (3,3), so only the vertical leg (4,1) takes the 3.
	e := leftOfEndB(t, domain.Tile{A: 3, B: 6})

	p, err := New(only(7)).Plan(e, 0)
	require.NoError(t, err)
	require.Empty(t, p.Drawn)
	require.Equal(t, domain.Point{X: 4, Y: 1}, p.Head)
	require.Equal(t, domain.Point{X: -1, Y: 0}, p.Dir)

	apply(t, e, p)
	a, _ := e.Exposed()
	require.Equal(t, 6, a)
}

func TestFootprintsAreTwoStepsAway(t *testing.T) {
	for i, fp := range footprints {
		require.Equal(t, 2, fp.far.Distance(domain.Point{}), "footprint %d", i)
		for _, v := range fp.via {
			require.Equal(t, 1, v.Distance(domain.Point{}), "footprint %d", i)
			require.Equal(t, 1, v.Distance(fp.far), "footprint %d", i)
		}
	}
}

func TestRandomPlansAreAlwaysLegal(t *testing.T) {
	for seed := uint64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*31))
		players := int(seed%4) + 1
		e, err := domain.NewGame(players, rng)
		require.NoError(t, err)
		s := New(rng)

		passes := 0
		for turn := 0; passes < players && !e.AnyHandEmpty() && turn < 500; turn++ {
			player := turn % players
			p, err := s.Plan(e, player)
			if err != nil {
				require.ErrorIs(t, err, ErrNoLegalMove)
				passes++
				continue
			}
			passes = 0
			require.NoError(t, e.MakeMove(player, p.HandIndex, p.Head.X, p.Head.Y, p.Dir.X, p.Dir.Y),
				"seed %d turn %d plan %+v", seed, turn, p)
		}
		require.True(t, passes == players || e.AnyHandEmpty(), "seed %d did not finish", seed)
	}
}

// anyLegalMove tries every hand tile at every cell in every direction.
func anyLegalMove(e *domain.Engine, player int) (domain.Tile, domain.Point, domain.Point, bool) {
	hand, _ := e.Hand(player)
	b := e.Board()
	for _, tile := range hand {
		for y := 0; y < b.Height; y++ {
			for x := 0; x < b.Width; x++ {
				for _, d := range domain.Orthogonal {
					if e.CheckMove(tile, x, y, d.X, d.Y) == nil {
						return tile, domain.Point{X: x, Y: y}, d, true
					}
				}
			}
		}
	}
	return domain.Tile{}, domain.Point{}, domain.Point{}, false
}

func TestNoLegalMoveOnlyWhenNothingFits(t *testing.T) {
	for seed := uint64(1); seed <= 300; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed^0x9e37))
		players := int(seed%4) + 1
		e, err := domain.NewGame(players, rng)
		require.NoError(t, err)
		s := New(rng)

		passes := 0
		for turn := 0; passes < players && !e.AnyHandEmpty() && turn < 500; turn++ {
			player := turn % players
			p, err := s.Plan(e, player)
			if err != nil {
				require.ErrorIs(t, err, ErrNoLegalMove)
				tile, head, dir, found := anyLegalMove(e, player)
				require.False(t, found, "seed %d turn %d: %s at %v dir %v is legal", seed, turn, tile, head, dir)
				passes++
				continue
			}
			passes = 0
			require.NoError(t, e.MakeMove(player, p.HandIndex, p.Head.X, p.Head.Y, p.Dir.X, p.Dir.Y))
		}
	}
}
