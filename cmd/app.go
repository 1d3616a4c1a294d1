package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/marcus/feedsync/internal/db"
	"github.com/marcus/feedsync/internal/engine"
	"github.com/marcus/feedsync/internal/lifecycle"
	"github.com/marcus/feedsync/internal/output"
	fssync "github.com/marcus/feedsync/internal/sync"
	"github.com/marcus/feedsync/internal/syncclient"
	"github.com/marcus/feedsync/internal/syncconfig"
)

// errNotLoggedIn is returned by commands that need an actor and token
var errNotLoggedIn = errors.New("not logged in (run: feedsync auth login --token <token> --actor <id>)")

// app is the per-command wiring of database, API client and engine
type app struct {
	db     *db.DB
	client *syncclient.Client
	engine *engine.Engine
}

// getDataDir resolves --data-dir over the configured data directory
func getDataDir(cmd *cobra.Command) (string, error) {
	if f := cmd.Flags(); f.Changed("data-dir") {
		return f.GetString("data-dir")
	}
	return syncconfig.GetDataDir()
}

// getServerURL resolves --server over the configured server URL
func getServerURL(cmd *cobra.Command) string {
	if f := cmd.Flags(); f.Changed("server") {
		if v, err := f.GetString("server"); err == nil && v != "" {
			return v
		}
	}
	return syncconfig.GetServerURL()
}

func tokenFunc(ctx context.Context) (string, error) {
	if tok := syncconfig.GetToken(); tok != "" {
		return tok, nil
	}
	return "", errNotLoggedIn
}

// openApp opens the local database and starts an engine over it
func openApp(cmd *cobra.Command) (*app, error) {
	dir, err := getDataDir(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	database, err := db.Open(dir)
	if err != nil {
		return nil, err
	}

	client := syncclient.New(getServerURL(cmd))
	e, err := engine.New(engine.Options{
		Client:         client,
		Actor:          syncconfig.GetActorID,
		Token:          tokenFunc,
		Queue:          database,
		IDs:            database,
		Snapshots:      database,
		History:        database,
		State:          database,
		Debounce:       syncconfig.GetDebounce(),
		RequestTimeout: syncconfig.GetRequestTimeout(),
		Retry:          syncconfig.GetRetryPolicy(),
	})
	if err != nil {
		database.Close()
		return nil, err
	}
	if err := e.Start(cmd.Context()); err != nil {
		database.Close()
		return nil, err
	}
	return &app{db: database, client: client, engine: e}, nil
}

// close shuts the engine down. When flush is set and auto-sync is on, the
// queue is shipped first within the flush timeout; whatever does not make it
// stays on disk for the next run.
func (a *app) close(flush bool) {
	if flush && syncconfig.GetAutoSyncEnabled() && syncconfig.IsAuthenticated() && len(a.engine.Pending()) > 0 {
		if err := lifecycle.Flush(a.engine.ForceSync, syncconfig.GetFlushTimeout()); err != nil {
			output.Warning("sync failed, %d action(s) stay queued: %v", len(a.engine.Pending()), err)
		}
	}
	if err := a.engine.Close(context.Background()); err != nil {
		slog.Debug("close engine", "err", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Debug("close db", "err", err)
	}
}

// actionError maps engine errors to user-facing ones
func actionError(err error) error {
	if errors.Is(err, fssync.ErrNoActor) {
		return errNotLoggedIn
	}
	return err
}
