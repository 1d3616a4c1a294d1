package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/feedsync/internal/dateparse"
	"github.com/marcus/feedsync/internal/output"
	"github.com/marcus/feedsync/internal/syncconfig"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ship queued actions to the server now",
	Long: `Send every queued action in one batch, bypassing the debounce window.

Examples:
  feedsync sync              # flush the queue
  feedsync sync --status     # server reachability, queue size, last sync
  feedsync sync --history    # last 20 shipped actions and their outcomes
  feedsync sync --history --since 2h`,
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusOnly, _ := cmd.Flags().GetBool("status")
		history, _ := cmd.Flags().GetBool("history")

		a, err := openApp(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close(false)

		switch {
		case statusOnly:
			return runSyncStatus(cmd.Context(), a)
		case history:
			lines, _ := cmd.Flags().GetInt("lines")
			since, _ := cmd.Flags().GetString("since")
			return runSyncHistory(a, lines, since)
		}

		if !syncconfig.IsAuthenticated() {
			output.Error("%v", errNotLoggedIn)
			return errNotLoggedIn
		}
		pending := len(a.engine.Pending())
		if pending == 0 {
			fmt.Println("Nothing to sync.")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), syncconfig.GetRequestTimeout()+syncconfig.GetFlushTimeout())
		defer cancel()
		if err := a.engine.ForceSync(ctx); err != nil {
			output.Error("sync: %v", err)
			output.Warning("%d action(s) remain queued", len(a.engine.Pending()))
			return err
		}

		res := a.engine.Status().LastResult
		output.Success("Synced %d action(s): %d resolved, %d retained", res.Sent, res.Resolved, res.Retained)
		return nil
	},
}

func runSyncStatus(ctx context.Context, a *app) error {
	fmt.Printf("Server:   %s\n", a.client.BaseURL)
	if _, err := a.client.HealthCheck(ctx); err != nil {
		fmt.Println("Health:   unreachable")
		output.Warning("%v", err)
	} else {
		fmt.Println("Health:   ok")
	}

	actor := syncconfig.GetActorID()
	if actor == "" {
		actor = "(not logged in)"
	}
	fmt.Printf("Actor:    %s\n", actor)
	fmt.Printf("Pending:  %d\n", len(a.engine.Pending()))

	state, err := a.db.GetSyncState()
	if err != nil {
		output.Error("read sync state: %v", err)
		return err
	}
	if state == nil {
		fmt.Println("Last sync: never")
		return nil
	}
	if state.LastSyncAt != nil {
		fmt.Printf("Last sync: %s (%d sent, %d resolved)\n",
			output.FormatTimeAgo(*state.LastSyncAt), state.LastSent, state.LastResolved)
	} else {
		fmt.Println("Last sync: never")
	}
	if state.LastError != "" {
		output.Warning("last error: %s", state.LastError)
	}
	return nil
}

func runSyncHistory(a *app, lines int, since string) error {
	var cutoff time.Time
	if since != "" {
		var err error
		if cutoff, err = dateparse.ParseSince(since); err != nil {
			output.Error("%v", err)
			return err
		}
	}

	records, err := a.db.GetSyncHistoryTail(lines)
	if err != nil {
		output.Error("query sync history: %v", err)
		return err
	}
	if !cutoff.IsZero() {
		kept := records[:0]
		for _, r := range records {
			if !r.Timestamp.Before(cutoff) {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	if len(records) == 0 {
		fmt.Println("No sync activity recorded.")
		return nil
	}
	for _, r := range records {
		fmt.Println(output.FormatRecord(r))
	}
	return nil
}

var clearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Discard every queued action without sending it",
	GroupID: "sync",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close(false)

		n := len(a.engine.Pending())
		if n == 0 {
			fmt.Println("Queue is already empty.")
			return nil
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			ok, err := confirm(fmt.Sprintf("Discard %d pending action(s)?", n))
			if err != nil {
				output.Error("%v", err)
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := a.engine.ClearPending(); err != nil {
			output.Error("clear queue: %v", err)
			return err
		}
		output.Success("Discarded %d pending action(s)", n)
		return nil
	},
}

// confirm asks a yes/no question; non-interactive callers must pass --yes
func confirm(title string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, errors.New("refusing to clear without --yes when stdin is not a terminal")
	}
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Affirmative("Discard").Negative("Keep").Value(&ok),
	)).Run()
	return ok, err
}

func init() {
	rootCmd.AddCommand(syncCmd, clearCmd)
	syncCmd.Flags().Bool("status", false, "Show sync status only")
	syncCmd.Flags().Bool("history", false, "Show recently shipped actions")
	syncCmd.Flags().IntP("lines", "n", 20, "Number of history rows to show")
	syncCmd.Flags().String("since", "", "Only show history after this time (2h, 3d, yesterday, 2026-03-01)")
	clearCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}
