package watch

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/feedsync/internal/models"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	titleStyle       = lipgloss.NewStyle().Bold(true)
	subtleStyle      = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle        = lipgloss.NewStyle().Foreground(mutedColor)
	selectedRowStyle = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	likedStyle       = lipgloss.NewStyle().Foreground(primaryColor)
	pendingStyle     = lipgloss.NewStyle().Foreground(warningColor).Italic(true)
	errorTextStyle   = lipgloss.NewStyle().Foreground(errorColor)
	syncingStyle     = lipgloss.NewStyle().Foreground(warningColor)

	statusStyles = map[models.SyncStatus]lipgloss.Style{
		models.SyncIdle:         lipgloss.NewStyle().Foreground(mutedColor),
		models.SyncCountingDown: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.SyncSyncing:      syncingStyle,
		models.SyncSuccess:      lipgloss.NewStyle().Foreground(successColor),
		models.SyncError:        lipgloss.NewStyle().Foreground(errorColor),
	}
)
