// Command dominosim plays all-bot games in parallel and prints how they
// ended.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"text/tabwriter"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jaminalder/codex-domino/internal/app"
)

type stats struct {
	mu       sync.Mutex
	games    int
	outcomes map[app.Outcome]int
	wins     []int
	points   []int
	sample   *app.GameView
}

func newStats(players int) *stats {
	return &stats{outcomes: map[app.Outcome]int{}, wins: make([]int, players), points: make([]int, players)}
}

func (s *stats) add(v app.GameView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games++
	s.outcomes[v.Outcome]++
	s.wins[v.Winner]++
	for _, seat := range v.Seats {
		s.points[seat.Index] += seat.Score
	}
	if s.sample == nil {
		s.sample = &v
	}
}

func (s *stats) write(w io.Writer, showBoard bool) {
	fmt.Fprintf(w, "%d games\n\n", s.games)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "outcome\tgames\t")
	keys := make([]string, 0, len(s.outcomes))
	for o := range s.outcomes {
		keys = append(keys, string(o))
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%d\t\n", k, s.outcomes[app.Outcome(k)])
	}
	fmt.Fprintln(tw, "\t\t")
	fmt.Fprintln(tw, "seat\twins\tavg points left\t")
	for i := range s.wins {
		fmt.Fprintf(tw, "%d\t%d\t%.2f\t\n", i+1, s.wins[i], float64(s.points[i])/float64(max(s.games, 1)))
	}
	_ = tw.Flush()
	if showBoard && s.sample != nil {
		fmt.Fprintf(w, "\nfirst game (%s, player %d wins):\n%s", s.sample.Outcome, s.sample.Winner+1, s.sample.Board)
	}
}

func main() {
	games := flag.Int("games", 100, "number of games")
	players := flag.Int("players", 2, "seats per game, 1-4")
	workers := flag.Int("workers", 4, "games played at once")
	seed := flag.Uint64("seed", 0, "base seed; 0 picks a random one per game")
	board := flag.Bool("board", false, "print the final board of the first game")
	verbose := flag.Bool("v", false, "log every game")
	flag.Parse()

	log := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintln(os.Stderr, "dominosim:", err)
			os.Exit(1)
		}
		log = l
	}
	defer func() { _ = log.Sync() }()

	st, err := simulate(context.Background(), log, *games, *players, *workers, *seed)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dominosim:", err)
		os.Exit(1)
	}
	st.write(os.Stdout, *board)
}

// simulate plays n games with every seat taken by a bot. Each worker owns
// a service so games do not contend for one lock.
func simulate(ctx context.Context, log *zap.Logger, n, players, workers int, seed uint64) (*stats, error) {
	st := newStats(max(players, 0))
	jobs := make(chan int)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < max(workers, 1); w++ {
		opts := []app.Option{app.WithLogger(log.With(zap.Int("worker", w))), app.WithMaxGames(1)}
		if seed != 0 {
			opts = append(opts, app.WithSeed(seed+uint64(w)))
		}
		svc := app.NewService(opts...)
		g.Go(func() error {
			for range jobs {
				v, err := svc.CreateGame(app.Options{Players: players, Bots: players})
				if err != nil {
					return err
				}
				st.add(v)
			}
			return nil
		})
	}
	return st, g.Wait()
}
