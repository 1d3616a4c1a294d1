package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/feedsync/internal/input"
	"github.com/marcus/feedsync/internal/output"
	"github.com/marcus/feedsync/internal/queue"
)

var likeCmd = &cobra.Command{
	Use:     "like <content-id>",
	Short:   "Like a content item",
	GroupID: "actions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(cmd, args[0], true)
	},
}

var unlikeCmd = &cobra.Command{
	Use:     "unlike <content-id>",
	Short:   "Remove your like from a content item",
	GroupID: "actions",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToggle(cmd, args[0], false)
	},
}

func runToggle(cmd *cobra.Command, id string, like bool) error {
	a, err := openApp(cmd)
	if err != nil {
		output.Error("%v", err)
		return err
	}
	defer a.close(true)

	var res queue.Result
	if like {
		res, err = a.engine.Like(id)
	} else {
		res, err = a.engine.Unlike(id)
	}
	if err != nil {
		err = actionError(err)
		output.Error("%v", err)
		return err
	}

	verb := "Liked"
	if !like {
		verb = "Unliked"
	}
	if res.Queued {
		output.Success("%s %s", verb, id)
	} else {
		output.Success("%s %s (cancelled a pending action)", verb, id)
	}
	return nil
}

var commentCmd = &cobra.Command{
	Use:   "comment <content-id> [text...]",
	Short: "Comment on a content item",
	Long: `Queue a comment. Text may be given inline, as "-" to read stdin, or as
@path to read a file. Without text, an editor prompt opens when stdin is a
terminal.`,
	GroupID: "actions",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		text, err := input.ReadText(strings.Join(args[1:], " "), cmd.InOrStdin())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if text == "" {
			if text, err = promptComment(id); err != nil {
				output.Error("%v", err)
				return err
			}
		}

		a, err := openApp(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close(true)

		tempID, err := a.engine.AddComment(id, text)
		if err != nil {
			err = actionError(err)
			output.Error("%v", err)
			return err
		}
		output.Success("Commented on %s (%s)", id, tempID)
		return nil
	},
}

// promptComment asks for comment text interactively
func promptComment(id string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("comment text required")
	}
	var text string
	form := huh.NewForm(huh.NewGroup(
		huh.NewText().
			Title(fmt.Sprintf("Comment on %s", id)).
			CharLimit(500).
			Value(&text).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("comment cannot be empty")
				}
				return nil
			}),
	))
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

var uncommentCmd = &cobra.Command{
	Use:     "uncomment <content-id> <comment-id>",
	Short:   "Remove one of your comments",
	Long:    `Remove a comment by server id or by the temporary id printed by "comment". Removing a comment that has not synced yet cancels it locally.`,
	GroupID: "actions",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close(true)

		res, err := a.engine.RemoveComment(args[0], args[1])
		if err != nil {
			err = actionError(err)
			output.Error("%v", err)
			return err
		}
		if res.Queued {
			output.Success("Removed comment %s", args[1])
		} else {
			output.Success("Cancelled unsent comment %s", args[1])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(likeCmd, unlikeCmd, commentCmd, uncommentCmd)
}
