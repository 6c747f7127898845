package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/jaminalder/codex-domino/internal/bot"
	"github.com/jaminalder/codex-domino/internal/domain"
	"github.com/jaminalder/codex-domino/internal/metrics"
)

// Errors exposed by the service layer.
var (
	ErrNotFound    = errors.New("game not found")
	ErrNotYourTurn = errors.New("not your turn")
	ErrNotAPlayer  = errors.New("not a player")
	ErrGameOver    = errors.New("game is over")
	ErrBotCount    = errors.New("bot count must be between 0 and the player count")
)

// Role is what a visitor may do at a table.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleSpectator Role = "spectator"
)

// DefaultMaxGames bounds the number of games kept in memory.
const DefaultMaxGames = 1000

type subscriber struct {
	ch        chan GameView
	closeOnce sync.Once
}

// Service manages games and subscribers. The least recently used game is
// dropped once the table is full.
type Service struct {
	mu       sync.Mutex
	games    *lru.Cache[string, *game]
	subs     map[string]map[*subscriber]struct{}
	log      *zap.Logger
	metrics  *metrics.Metrics
	maxGames int
	seed     *uint64
	seq      uint64
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithMaxGames(n int) Option { return func(s *Service) { s.maxGames = n } }

// WithSeed makes dealing and bot choices reproducible: the n-th game
// created uses a PCG source seeded with (seed, n).
func WithSeed(seed uint64) Option { return func(s *Service) { s.seed = &seed } }

// NewService creates an empty service.
func NewService(opts ...Option) *Service {
	s := &Service{
		subs:     make(map[string]map[*subscriber]struct{}),
		log:      zap.NewNop(),
		maxGames: DefaultMaxGames,
	}
	for _, o := range opts {
		o(s)
	}
	if s.maxGames < 1 {
		s.maxGames = DefaultMaxGames
	}
	// NewWithEvict only fails for a non-positive size.
	s.games, _ = lru.NewWithEvict(s.maxGames, s.evicted)
	return s
}

// evicted runs inside games.Add, which is only called with mu held.
func (s *Service) evicted(id string, _ *game) {
	for sub := range s.subs[id] {
		s.closeSub(sub)
	}
	delete(s.subs, id)
	s.metrics.GameEvicted()
	s.log.Info("game evicted", zap.String("game_id", id))
}

func (s *Service) closeSub(sub *subscriber) {
	sub.closeOnce.Do(func() {
		close(sub.ch)
		s.metrics.SubscriberRemoved()
	})
}

func (s *Service) newRandLocked() *rand.Rand {
	if s.seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.seq++
	return rand.New(rand.NewPCG(*s.seed, s.seq))
}

// CreateGame deals a new game and lets leading bot seats move.
func (s *Service) CreateGame(opts Options) (GameView, error) {
	if opts.Bots < 0 || opts.Bots > opts.Players {
		return GameView{}, ErrBotCount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rng := s.newRandLocked()
	e, err := domain.NewGame(opts.Players, rng)
	if err != nil {
		return GameView{}, err
	}
	now := time.Now()
	g := &game{
		id:      uuid.NewString(),
		engine:  e,
		bots:    make([]bool, opts.Players),
		player:  bot.New(rng),
		winner:  -1,
		created: now,
		updated: now,
	}
	for i := opts.Players - opts.Bots; i < opts.Players; i++ {
		g.bots[i] = true
	}
	start, owner := e.StartTile()
	g.log(owner, "start", start)
	// Seat 0 always opens, even when it laid the starting tile.
	g.turn = 0
	s.games.Add(g.id, g)
	s.metrics.GameCreated()
	s.log.Info("game created",
		zap.String("game_id", g.id),
		zap.Int("players", opts.Players),
		zap.Int("bots", opts.Bots),
		zap.Stringer("start", start),
		zap.Int("starter", owner),
	)
	s.runBotsLocked(g)
	return g.view(), nil
}

// Get returns a copy of the game if present.
func (s *Service) Get(id string) (GameView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games.Get(id)
	if !ok {
		return GameView{}, false
	}
	return g.view(), true
}

// Len is the number of games in memory.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.games.Len()
}

// Join makes the first visitor the owner of the table; everyone else
// spectates. The owner plays every human seat.
func (s *Service) Join(id, playerID string) (Role, GameView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games.Get(id)
	if !ok {
		return RoleSpectator, GameView{}, ErrNotFound
	}
	role := RoleSpectator
	if playerID != "" && (g.owner == "" || g.owner == playerID) {
		if g.owner == "" {
			s.log.Info("table claimed", zap.String("game_id", id), zap.String("player_id", playerID))
		}
		g.owner = playerID
		g.updated = time.Now()
		role = RoleOwner
	}
	return role, g.view(), nil
}

// actorLocked returns the game and checks that playerID may act for the
// seat to move. The game is returned whenever it exists.
func (s *Service) actorLocked(id, playerID string) (*game, error) {
	g, ok := s.games.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	switch {
	case g.owner == "" || g.owner != playerID:
		return g, ErrNotAPlayer
	case g.outcome != OutcomeNone:
		return g, ErrGameOver
	case g.bots[g.turn]:
		return g, ErrNotYourTurn
	}
	return g, nil
}

// Play places the hand tile at handIndex for the seat to move, then lets
// bot seats respond. On a rejected move the unchanged view is returned with
// the error.
func (s *Service) Play(id, playerID string, handIndex, headX, headY, dx, dy int) (GameView, error) {
	s.mu.Lock()
	g, err := s.actorLocked(id, playerID)
	if err != nil {
		return s.rejectLocked(g, err)
	}
	seat := g.turn
	hand, _ := g.engine.Hand(seat)
	if err := g.engine.MakeMove(seat, handIndex, headX, headY, dx, dy); err != nil {
		var ime *domain.IllegalMoveError
		if errors.As(err, &ime) {
			s.metrics.IllegalMove(ime.Reason.String())
		}
		s.log.Debug("move rejected",
			zap.String("game_id", id),
			zap.Int("seat", seat),
			zap.Int("hand_index", handIndex),
			zap.Error(err),
		)
		return s.rejectLocked(g, err)
	}
	s.playedLocked(g, seat, hand[handIndex], "human")
	s.runBotsLocked(g)
	return s.publishLocked(g), nil
}

// Draw moves a pool tile into the hand of the seat to move. The turn does
// not change.
func (s *Service) Draw(id, playerID string) (domain.Tile, GameView, error) {
	s.mu.Lock()
	g, err := s.actorLocked(id, playerID)
	if err != nil {
		v, err := s.rejectLocked(g, err)
		return domain.Tile{}, v, err
	}
	t, err := g.engine.DrawTile(g.turn)
	if err != nil {
		v, err := s.rejectLocked(g, err)
		return domain.Tile{}, v, err
	}
	g.log(g.turn, "draw", domain.Tile{})
	g.updated = time.Now()
	s.metrics.Action("draw", "human")
	return t, s.publishLocked(g), nil
}

// Pass ends the turn without placing a tile.
func (s *Service) Pass(id, playerID string) (GameView, error) {
	s.mu.Lock()
	g, err := s.actorLocked(id, playerID)
	if err != nil {
		return s.rejectLocked(g, err)
	}
	s.passLocked(g, g.turn, "human")
	s.runBotsLocked(g)
	return s.publishLocked(g), nil
}

// rejectLocked unlocks and returns the current view, if any, with err.
func (s *Service) rejectLocked(g *game, err error) (GameView, error) {
	defer s.mu.Unlock()
	if g == nil {
		return GameView{}, err
	}
	return g.view(), fmt.Errorf("game %s: %w", g.id, err)
}

func (s *Service) playedLocked(g *game, seat int, t domain.Tile, kind string) {
	g.passes = 0
	g.log(seat, "play", t)
	s.metrics.Action("play", kind)
	s.log.Debug("tile played",
		zap.String("game_id", g.id),
		zap.Int("seat", seat),
		zap.Stringer("tile", t),
	)
	s.advanceLocked(g)
}

func (s *Service) passLocked(g *game, seat int, kind string) {
	g.passes++
	g.log(seat, "pass", domain.Tile{})
	s.metrics.Action("pass", kind)
	s.advanceLocked(g)
}

func (s *Service) advanceLocked(g *game) {
	g.updated = time.Now()
	if g.settle() {
		s.metrics.GameFinished(string(g.outcome))
		s.log.Info("game finished",
			zap.String("game_id", g.id),
			zap.String("outcome", string(g.outcome)),
			zap.Int("winner", g.winner),
		)
		return
	}
	g.turn = (g.turn + 1) % g.engine.Players()
}

// runBotsLocked plays bot seats until a human is to move or the game ends.
func (s *Service) runBotsLocked(g *game) {
	for g.outcome == OutcomeNone && g.bots[g.turn] {
		seat := g.turn
		plan, err := g.player.Plan(g.engine, seat)
		for range plan.Drawn {
			g.log(seat, "draw", domain.Tile{})
			s.metrics.Action("draw", "bot")
		}
		if err == nil {
			err = g.engine.MakeMove(seat, plan.HandIndex, plan.Head.X, plan.Head.Y, plan.Dir.X, plan.Dir.Y)
			if err == nil {
				s.playedLocked(g, seat, plan.Tile, "bot")
				continue
			}
		}
		if !errors.Is(err, bot.ErrNoLegalMove) {
			s.log.Error("bot move failed", zap.String("game_id", g.id), zap.Int("seat", seat), zap.Error(err))
		}
		s.passLocked(g, seat, "bot")
	}
}

// publishLocked snapshots the game, fans the view out and unlocks. Sends
// never block: a subscriber whose buffer is still full is dropped.
func (s *Service) publishLocked(g *game) GameView {
	defer s.mu.Unlock()
	v := g.view()
	dropped := 0
	for sub := range s.subs[g.id] {
		select {
		case sub.ch <- v:
		default:
			delete(s.subs[g.id], sub)
			s.closeSub(sub)
			dropped++
		}
	}
	if dropped > 0 {
		s.log.Debug("dropped slow subscribers", zap.String("game_id", g.id), zap.Int("count", dropped))
	}
	return v
}

// Subscribe registers a subscriber for a game. The channel is closed when
// ctx ends, on unsubscribe, when the subscriber falls behind or when the
// game is evicted.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan GameView, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.games.Contains(id) {
		return nil, func() {}, ErrNotFound
	}
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan GameView, 1)}
	set[sub] = struct{}{}
	s.metrics.SubscriberAdded()

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
			s.closeSub(sub)
			s.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub.ch, unsub, nil
}
