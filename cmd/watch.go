package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/feedsync/internal/clock"
	"github.com/marcus/feedsync/internal/lifecycle"
	"github.com/marcus/feedsync/internal/output"
	"github.com/marcus/feedsync/internal/syncconfig"
	"github.com/marcus/feedsync/internal/tui/watch"
)

// eventCoalesce groups engine events into one redraw
const eventCoalesce = 50 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [content-id...]",
	Short: "Live view of content state and the sync queue",
	Long: `Launch a live-updating TUI showing every known content item with queued
actions applied, plus the dispatcher status and pending count.

Given ids are fetched from the server first. While open, server state is
refreshed and the queue is flushed every sync.interval. Quitting flushes
the queue when sync.flush_on_exit is on.

Key bindings:
  j/k, ↑/↓   Select item
  l, space   Like / unlike
  c          Comment
  x          Remove your newest comment
  s          Sync now
  ?          Toggle help
  q          Quit`,
	GroupID: "inspect",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !syncconfig.IsAuthenticated() {
			output.Error("%v", errNotLoggedIn)
			return errNotLoggedIn
		}
		a, err := openApp(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close(false)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		refresh := func(ids []string) {
			for _, id := range ids {
				resp, err := a.client.FetchContent(ctx, syncconfig.GetToken(), id, syncconfig.GetActorID())
				if err != nil {
					slog.Debug("watch: fetch", "id", id, "err", err)
					continue
				}
				a.engine.UpdateSnapshot(resp.Snapshot())
			}
		}
		refresh(args)

		model := watch.NewModel(a.engine, syncconfig.GetActorID(), 0)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

		unbind := watch.Bind(p.Send, a.engine, eventCoalesce)
		defer unbind()

		// Periodic organic sync: pull fresh server state, then push the queue.
		lifecycle.Ticker(ctx, clock.Real(), syncconfig.GetSyncInterval(), func() {
			refresh(a.engine.Targets())
			if len(a.engine.Pending()) > 0 {
				lifecycle.Flush(a.engine.ForceSync, syncconfig.GetRequestTimeout())
			}
		})

		caught, stopSignals := lifecycle.OnSignal(ctx, a.engine.ForceSync, syncconfig.GetFlushTimeout())
		defer stopSignals()
		go func() {
			if _, ok := <-caught; ok {
				p.Quit()
			}
		}()

		var flushed <-chan struct{}
		if syncconfig.GetFlushOnExit() {
			flushed = lifecycle.OnDone(ctx, a.engine.ForceSync, syncconfig.GetFlushTimeout())
		}

		_, runErr := p.Run()
		cancel()
		if flushed != nil {
			<-flushed
		}
		if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
			return fmt.Errorf("error running watch: %w", runErr)
		}
		if n := len(a.engine.Pending()); n > 0 {
			output.Warning("%d action(s) still queued", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
