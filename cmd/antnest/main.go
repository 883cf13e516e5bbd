// Command antnest generates an ant nest and serves its exploration over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/antnest/internal/api"
	"github.com/talgya/antnest/internal/config"
	"github.com/talgya/antnest/internal/engine"
	"github.com/talgya/antnest/internal/entropy"
	"github.com/talgya/antnest/internal/persistence"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults built in)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	seed := entropy.ResolveSeed(cfg.Seed)
	slog.Info("antnest starting",
		"seed", seed,
		"config", *configPath,
		"nest", fmt.Sprintf("%gx%g", cfg.Nest.Width, cfg.Nest.Height),
		"rooms", cfg.Nest.RoomCount+1,
	)

	// ── Run ledger ───────────────────────────────────────────────────
	opts := engine.Options{
		Seed: seed,
		Nest: cfg.Nest,
		Move: cfg.Sim.MoveConfig,
	}
	var ledger api.RunLedger
	if cfg.DBPath != "" {
		db, err := persistence.Open(cfg.DBPath)
		if err != nil {
			slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if n, err := db.CountRuns(); err == nil {
			slog.Info("database opened", "path", cfg.DBPath, "runs", humanize.Comma(int64(n)))
		}
		opts.Recorder = db
		ledger = db
	} else {
		slog.Warn("db_path not set, completed runs will not be recorded")
	}

	// ── Event log ────────────────────────────────────────────────────
	if cfg.EventLogDir != "" {
		events := persistence.NewEventLog(cfg.EventLogDir)
		defer func() {
			if err := events.Close(); err != nil {
				slog.Error("event log close failed", "error", err)
			}
		}()
		opts.Sink = events
		slog.Info("event log enabled", "dir", cfg.EventLogDir)
	}

	// ── Simulation ───────────────────────────────────────────────────
	sim := engine.NewSimulation(opts)
	st := sim.Status()
	slog.Info("nest ready",
		"run_id", st.RunID,
		"regions", st.Total,
		"rooms", st.Nest.Rooms,
		"tunnels", st.Nest.Tunnels,
		"walkable_area", humanize.Comma(int64(st.Nest.WalkableArea)),
	)

	eng := engine.NewEngine(cfg.TickInterval())
	eng.SetSpeed(cfg.Sim.TimeScale)
	eng.OnTick = func(uint64) { sim.Tick() }

	// ── HTTP API ─────────────────────────────────────────────────────
	apiServer := &api.Server{
		Sim:          sim,
		Eng:          eng,
		Runs:         ledger,
		Port:         cfg.Server.Port,
		CORSOrigins:  cfg.Server.CORSOrigins,
		PushInterval: cfg.PushInterval(),
	}
	if cfg.Server.SpawnRatePerMin > 0 {
		apiServer.SpawnLimiter = api.NewRateLimiter(cfg.Server.SpawnRatePerMin, time.Minute)
	}
	apiServer.Start()

	// ── Start ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nantnest is digging: %d regions to explore.\n", st.Total)
	fmt.Printf("API: http://localhost:%d/api/state\n", cfg.Server.Port)
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	slog.Info("shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	final := sim.Status()
	fmt.Printf("Simulation stopped after %s ticks: %d/%d regions explored.\n",
		humanize.Comma(int64(eng.Ticks())), final.Explored, final.Total)
}
