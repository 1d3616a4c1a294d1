package output

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/marcus/feedsync/internal/models"
)

const (
	// item cards read poorly past this width even on wide terminals
	maxCardWidth = 100
	minCardWidth = 30
)

// cardWidth picks the wrap width for an item card. A non-positive width
// means the terminal's, then $COLUMNS, then maxCardWidth.
func cardWidth(width int) int {
	if width <= 0 {
		width = maxCardWidth
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		} else if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
			width = cols
		}
	}
	return min(max(width, minCardWidth), maxCardWidth)
}

// StateMarkdown renders a derived state as markdown
func StateMarkdown(ds models.DerivedState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", ds.TargetID)
	liked := "not liked"
	if ds.IsLiked {
		liked = "**liked**"
	}
	fmt.Fprintf(&sb, "%s · %d likes · %d comments", liked, ds.LikeCount, ds.CommentCount)
	if ds.PendingCount > 0 {
		fmt.Fprintf(&sb, " · _%d pending_", ds.PendingCount)
	}
	sb.WriteString("\n")

	if len(ds.Comments) > 0 {
		sb.WriteString("\n## Comments\n\n")
		for _, c := range ds.Comments {
			marker := ""
			if c.Pending {
				marker = " _(pending)_"
			}
			fmt.Fprintf(&sb, "- **%s**: %s%s `%s`\n", c.AuthorID, c.Text, marker, c.ID)
		}
	}
	return sb.String()
}

// RenderState renders an item card for a derived state. Colors are only
// used when stdout is a terminal so piped output stays plain. On a glamour
// failure the raw markdown is returned along with the error.
func RenderState(ds models.DerivedState, width int) (string, error) {
	md := StateMarkdown(ds)

	style := glamour.WithStandardStyle("notty")
	if term.IsTerminal(int(os.Stdout.Fd())) {
		style = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(cardWidth(width)))
	if err != nil {
		return md, err
	}
	rendered, err := renderer.Render(md)
	if err != nil {
		return md, err
	}
	return strings.TrimRight(rendered, "\n"), nil
}
