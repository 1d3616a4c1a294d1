package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/marcus/feedsync/internal/input"
	"github.com/marcus/feedsync/internal/models"
	"github.com/marcus/feedsync/internal/output"
	"github.com/marcus/feedsync/internal/syncconfig"
)

var pendingCmd = &cobra.Command{
	Use:     "pending",
	Short:   "List queued actions that have not synced yet",
	GroupID: "inspect",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close(false)

		pending := a.engine.Pending()
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			if pending == nil {
				pending = []models.PendingAction{}
			}
			return output.JSON(pending)
		}

		if len(pending) == 0 {
			fmt.Println("No pending actions.")
			return nil
		}
		fmt.Printf("%d pending action(s):\n", len(pending))
		for _, act := range pending {
			fmt.Println("  " + output.FormatActionShort(act))
		}
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:     "state <content-id>",
	Short:   "Show the optimistic state of a content item",
	Long:    `Show likes and comments as the server last reported them, with queued actions applied on top.`,
	GroupID: "inspect",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close(false)

		ds := a.engine.DerivedState(args[0])
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return output.JSON(ds)
		}
		printState(ds)
		return nil
	},
}

func printState(ds models.DerivedState) {
	card, err := output.RenderState(ds, 0)
	if err != nil {
		slog.Debug("render state", "target", ds.TargetID, "err", err)
	}
	fmt.Println(card)
}

var fetchCmd = &cobra.Command{
	Use:     "fetch <content-id>...",
	Short:   "Fetch server state for content items",
	Long:    `Fetch and store server snapshots. Ids may be read from stdin with "-" or from a file with @path, one per line.`,
	GroupID: "inspect",
	Args:    cobra.MinimumNArgs(1),
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

		ids := input.ExpandIDs(args, cmd.InOrStdin())
		if len(ids) == 0 {
			err := errors.New("no content ids given")
			output.Error("%v", err)
			return err
		}

		quiet, _ := cmd.Flags().GetBool("quiet")
		var failed int
		for _, id := range ids {
			resp, err := a.client.FetchContent(cmd.Context(), syncconfig.GetToken(), id, syncconfig.GetActorID())
			if err != nil {
				output.Warning("fetch %s: %v", id, err)
				failed++
				continue
			}
			a.engine.UpdateSnapshot(resp.Snapshot())
			if !quiet {
				printState(a.engine.DerivedState(id))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d fetches failed", failed, len(ids))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pendingCmd, stateCmd, fetchCmd)
	pendingCmd.Flags().Bool("json", false, "Output as JSON")
	stateCmd.Flags().Bool("json", false, "Output as JSON")
	fetchCmd.Flags().BoolP("quiet", "q", false, "Store snapshots without printing them")
}
