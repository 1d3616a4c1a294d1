// Command feedsync-mock serves the content API from memory for local
// development and end-to-end testing of the feedsync client.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/marcus/feedsync/internal/mockapi"
)

func main() {
	addr := flag.String("addr", envOr("FEEDSYNC_MOCK_ADDR", ":8080"), "listen address")
	seedPath := flag.String("seed", os.Getenv("FEEDSYNC_MOCK_SEED"), "YAML seed file with tokens and content")
	latency := flag.Duration("latency", 0, "artificial delay added to every batch request")
	failFirst := flag.Int("fail", 0, "fail the first N batch requests with 503")
	flag.Parse()

	var level slog.Level
	switch strings.ToLower(os.Getenv("FEEDSYNC_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("FEEDSYNC_LOG_FORMAT")) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	var seed *mockapi.Seed
	if *seedPath != "" {
		var err error
		seed, err = mockapi.LoadSeed(*seedPath)
		if err != nil {
			slog.Error("load seed", "err", err)
			os.Exit(1)
		}
		slog.Info("seed loaded", "path", *seedPath, "content", len(seed.Content), "tokens", len(seed.Tokens))
	}

	srv := mockapi.NewServer(mockapi.Config{ListenAddr: *addr, Latency: *latency}, seed)
	if *failFirst > 0 {
		srv.FailNext(*failFirst)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(); err != nil {
		slog.Error("start server", "err", err)
		os.Exit(1)
	}
	slog.Info("server started", "addr", *addr)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "err", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
