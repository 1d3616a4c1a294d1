package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/feedsync/internal/models"
	"github.com/marcus/feedsync/internal/output"
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	// Items panel takes what the detail panel and footer leave
	footerHeight := 2
	detailHeight := (m.Height - footerHeight) / 2
	listHeight := m.Height - footerHeight - detailHeight

	panels := lipgloss.JoinVertical(lipgloss.Left,
		m.renderItemsPanel(listHeight),
		m.renderDetailPanel(detailHeight),
	)
	return lipgloss.JoinVertical(lipgloss.Left, panels, m.renderFooter())
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder
	s.WriteString("feedsync watch (resize for full view)\n\n")
	s.WriteString(fmt.Sprintf("Items: %d | Pending: %d\n", len(m.Items), m.Pending))
	sync := string(m.Sync.Status)
	if style, ok := statusStyles[m.Sync.Status]; ok {
		sync = style.Render(sync)
	}
	s.WriteString(fmt.Sprintf("Sync: %s\n", sync))
	s.WriteString("\nq:quit s:sync ?:help")
	return s.String()
}

func (m Model) renderHelp() string {
	help := `feedsync watch

  j/k, ↑/↓   Select item
  l, space   Like / unlike
  c          Comment (enter to queue, esc to cancel)
  x          Remove your newest comment
  s          Sync now
  r          Refresh
  ?          Toggle help
  q          Quit`
	return panelStyle.Width(m.Width - 2).Render(help)
}

func (m Model) renderItemsPanel(height int) string {
	var content strings.Builder
	inner := m.Width - 6

	if len(m.Items) == 0 {
		content.WriteString(subtleStyle.Render("No content yet. Run feedsync fetch <id> or like something."))
		content.WriteString("\n")
	}

	// Keep the selection in view
	rows := max(height-3, 1)
	start := 0
	if m.Selected >= rows {
		start = m.Selected - rows + 1
	}
	for i := start; i < len(m.Items) && i < start+rows; i++ {
		line := m.formatItemRow(m.Items[i])
		if i == m.Selected {
			line = selectedRowStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		content.WriteString(ansi.Truncate(line, inner, "…"))
		content.WriteString("\n")
	}

	return m.wrapPanel("CONTENT", content.String(), height)
}

func (m Model) formatItemRow(ds models.DerivedState) string {
	heart := subtleStyle.Render("♡")
	if ds.IsLiked {
		heart = likedStyle.Render("♥")
	}
	row := fmt.Sprintf("%s %s  %s  %s",
		heart,
		titleStyle.Render(ds.TargetID),
		subtleStyle.Render(fmt.Sprintf("%d likes", ds.LikeCount)),
		subtleStyle.Render(fmt.Sprintf("%d comments", ds.CommentCount)),
	)
	if ds.PendingCount > 0 {
		row += "  " + pendingStyle.Render(fmt.Sprintf("%d pending", ds.PendingCount))
	}
	return row
}

func (m Model) renderDetailPanel(height int) string {
	var content strings.Builder
	inner := m.Width - 6

	item, ok := m.selected()
	if !ok {
		return m.wrapPanel("COMMENTS", subtleStyle.Render("Nothing selected")+"\n", height)
	}

	rows := height - 3
	if m.Composing {
		rows -= 2
	}
	comments := item.Comments
	if len(comments) > rows && rows > 0 {
		comments = comments[len(comments)-rows:]
	}
	if len(comments) == 0 {
		content.WriteString(subtleStyle.Render("No comments"))
		content.WriteString("\n")
	}
	for _, c := range comments {
		line := fmt.Sprintf("%s: %s", titleStyle.Render(c.AuthorID), c.Text)
		if c.Pending {
			line += " " + pendingStyle.Render("(pending)")
		}
		content.WriteString(ansi.Truncate(line, inner, "…"))
		content.WriteString("\n")
	}
	if m.Composing {
		content.WriteString("\n")
		content.WriteString(m.input.View())
		content.WriteString("\n")
	}

	return m.wrapPanel("COMMENTS · "+item.TargetID, content.String(), height)
}

// renderFooter shows the sync indicator and last action
func (m Model) renderFooter() string {
	status := m.Sync.Status
	if status == "" {
		status = models.SyncIdle
	}
	indicator := output.StatusBadge(status)
	if status == models.SyncSyncing {
		indicator = m.spinner.View() + " " + indicator
	}

	parts := []string{
		indicator,
		fmt.Sprintf("%d pending", m.Pending),
	}
	if m.Sync.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt %d", m.Sync.Attempt))
	}
	if !m.Sync.LastSyncAt.IsZero() {
		parts = append(parts, "synced "+output.FormatTimeAgo(m.Sync.LastSyncAt))
	}
	switch {
	case m.Err != nil:
		parts = append(parts, errorTextStyle.Render(m.Err.Error()))
	case m.Sync.LastErr != nil:
		parts = append(parts, errorTextStyle.Render(m.Sync.LastErr.Error()))
	case m.Flash != "":
		parts = append(parts, m.Flash)
	}

	line := strings.Join(parts, " · ")
	keys := helpStyle.Render("l:like c:comment x:uncomment s:sync ?:help q:quit")
	return ansi.Truncate(line, m.Width, "…") + "\n" + keys
}

// wrapPanel wraps content in a bordered panel with a title
func (m Model) wrapPanel(title, content string, height int) string {
	titleBar := panelTitleStyle.Render(title)
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for len(lines) < height-3 {
		lines = append(lines, "")
	}
	if height > 3 && len(lines) > height-3 {
		lines = lines[:height-3]
	}
	body := titleBar + "\n" + strings.Join(lines, "\n")
	return panelStyle.Width(m.Width - 2).Render(body)
}
