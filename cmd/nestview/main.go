// Command nestview watches a running antnest server in the terminal.
// Keys: s spawns an ant, S spawns ten, r resets the nest, q quits.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/talgya/antnest/internal/viewer"
)

func main() {
	// The terminal belongs to the viewer; logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if path := os.Getenv("NESTVIEW_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	apiURL := envOrDefault("ANTNEST_API_URL", "http://localhost:8080")
	if len(os.Args) > 1 {
		apiURL = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := viewer.NewClient(apiURL)

	fmt.Printf("waiting for antnest at %s...\n", apiURL)
	readyCtx, cancel := context.WithTimeout(ctx, time.Minute)
	err := client.WaitReady(readyCtx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "antnest not reachable: %v\n", err)
		os.Exit(1)
	}

	feed, err := client.Subscribe(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "subscribe: %v\n", err)
		os.Exit(1)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	app := viewer.NewApp(screen, client)
	runErr := app.Run(ctx, feed)
	screen.Fini()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(os.Stderr, "nestview: %v\n", runErr)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
