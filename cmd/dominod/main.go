// Command dominod serves the domino web front end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jaminalder/codex-domino/internal/app"
	"github.com/jaminalder/codex-domino/internal/config"
	"github.com/jaminalder/codex-domino/internal/metrics"
	"github.com/jaminalder/codex-domino/internal/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file; DOMINO_* variables override it")
	flag.Parse()
	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "dominod:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	m := metrics.New()
	opts := []app.Option{app.WithLogger(log), app.WithMetrics(m), app.WithMaxGames(cfg.MaxGames)}
	if cfg.Seed != 0 {
		opts = append(opts, app.WithSeed(cfg.Seed))
	}
	svc := app.NewService(opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.NewServer(svc, web.WithLogger(log), web.WithMetrics(m), web.WithHeartbeat(cfg.Heartbeat)),
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end with the server context instead of holding
		// Shutdown until its deadline.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.Int("max_games", cfg.MaxGames))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
