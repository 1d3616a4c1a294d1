// Package output provides styled terminal output helpers (success, error,
// warning, pending action and sync state formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/feedsync/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	actionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	statusStyles = map[models.SyncStatus]lipgloss.Style{
		models.SyncIdle:         lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		models.SyncCountingDown: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.SyncSyncing:      lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.SyncSuccess:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.SyncError:        lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeDatabaseError = "database_error"
	ErrCodeSyncError     = "sync_error"
	ErrCodeNotLoggedIn   = "not_logged_in"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// FormatSyncStatus formats a dispatcher status with color
func FormatSyncStatus(s models.SyncStatus) string {
	style, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// StatusBadge returns a sync status with a leading symbol
// e.g., "○ idle", "◷ counting_down", "↑ syncing", "✓ success", "✗ error"
func StatusBadge(s models.SyncStatus) string {
	symbols := map[models.SyncStatus]string{
		models.SyncIdle:         "○",
		models.SyncCountingDown: "◷",
		models.SyncSyncing:      "↑",
		models.SyncSuccess:      "✓",
		models.SyncError:        "✗",
	}
	symbol, ok := symbols[s]
	if !ok {
		symbol = "?"
	}
	if style, hasStyle := statusStyles[s]; hasStyle {
		return style.Render(fmt.Sprintf("%s %s", symbol, s))
	}
	return fmt.Sprintf("%s %s", symbol, s)
}

// FormatOutcome colors an outcome by class: applied, no-op or dropped
func FormatOutcome(s models.OutcomeStatus) string {
	switch {
	case s == models.OutcomeAlreadyLiked || s == models.OutcomeNotLiked:
		return subtleStyle.Render(string(s))
	case s.NotFound() || s == models.OutcomeInvalid:
		return warningStyle.Render(string(s))
	case s.Terminal():
		return successStyle.Render(string(s))
	default:
		return errorStyle.Render(string(s))
	}
}

// FormatActionShort formats a pending action on one line
func FormatActionShort(a models.PendingAction) string {
	parts := []string{
		subtleStyle.Render(a.Timestamp.Local().Format("15:04:05")),
		actionStyle.Render(fmt.Sprintf("%-14s", a.Type)),
		titleStyle.Render(a.TargetID),
	}
	switch a.Type {
	case models.ActionAddComment:
		parts = append(parts, fmt.Sprintf("%q", Truncate(a.CommentText(), 40)), subtleStyle.Render(a.CommentID()))
	case models.ActionRemoveComment:
		parts = append(parts, subtleStyle.Render(a.CommentID()))
	}
	if a.Retries > 0 {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("retries:%d", a.Retries)))
	}
	return strings.Join(parts, "  ")
}

// FormatRecord formats one sync history row
func FormatRecord(r models.SyncRecord) string {
	line := fmt.Sprintf("%s  %-14s  %-10s  %s",
		subtleStyle.Render(r.Timestamp.Local().Format("2006-01-02 15:04:05")),
		r.ActionType, r.TargetID, FormatOutcome(r.Status))
	if r.CommentID != "" {
		line += "  " + subtleStyle.Render(r.CommentID)
	}
	return line
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// Truncate shortens s to max runes, adding an ellipsis when cut
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max || max < 1 {
		return s
	}
	return string(r[:max-1]) + "…"
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nPENDING:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}
