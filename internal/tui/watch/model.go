// Package watch is the live terminal view of derived content state. It
// redraws on engine events and lets the user queue actions interactively.
package watch

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/feedsync/internal/engine"
	"github.com/marcus/feedsync/internal/models"
	"github.com/marcus/feedsync/internal/queue"
	fssync "github.com/marcus/feedsync/internal/sync"
)

// Source is the engine surface the view needs
type Source interface {
	Targets() []string
	DerivedState(targetID string) models.DerivedState
	Pending() []models.PendingAction
	Status() fssync.State
	Like(targetID string) (queue.Result, error)
	Unlike(targetID string) (queue.Result, error)
	AddComment(targetID, text string) (string, error)
	RemoveComment(targetID, commentID string) (queue.Result, error)
	ForceSync(ctx context.Context) error
	Subscribe(fn func(engine.Event)) func()
}

// Model is the Bubble Tea model for the watch TUI
type Model struct {
	Src   Source
	Actor string

	// Window dimensions
	Width  int
	Height int

	// Data
	Items   []models.DerivedState
	Pending int
	Sync    fssync.State

	// UI state
	Selected    int
	Composing   bool
	ShowHelp    bool
	Flash       string
	Err         error
	LastRefresh time.Time

	input   textinput.Model
	spinner spinner.Model

	RefreshInterval time.Duration
}

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// MinHeight is the minimum terminal height for proper display
const MinHeight = 10

// TickMsg triggers a periodic redraw so relative times stay fresh
type TickMsg time.Time

// EngineEventMsg reports that the engine state changed
type EngineEventMsg struct{}

// RefreshDataMsg carries a fresh read of the engine
type RefreshDataMsg struct {
	Items     []models.DerivedState
	Pending   int
	Sync      fssync.State
	Timestamp time.Time
}

// actionDoneMsg carries the result of a queued action or forced sync
type actionDoneMsg struct {
	flash string
	err   error
}

// NewModel creates a watch model over src
func NewModel(src Source, actor string, interval time.Duration) Model {
	ti := textinput.New()
	ti.Placeholder = "write a comment"
	ti.CharLimit = 500
	ti.Prompt = "› "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = syncingStyle

	if interval <= 0 {
		interval = 5 * time.Second
	}
	return Model{
		Src:             src,
		Actor:           actor,
		input:           ti,
		spinner:         sp,
		RefreshInterval: interval,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchData(), m.scheduleTick(), m.spinner.Tick)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Composing {
			return m.handleComposeKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.input.Width = max(msg.Width-6, 10)
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case EngineEventMsg:
		return m, m.fetchData()

	case RefreshDataMsg:
		m.Items = msg.Items
		m.Pending = msg.Pending
		m.Sync = msg.Sync
		m.LastRefresh = msg.Timestamp
		if m.Selected >= len(m.Items) {
			m.Selected = max(len(m.Items)-1, 0)
		}
		return m, nil

	case actionDoneMsg:
		m.Err = msg.err
		m.Flash = msg.flash
		return m, m.fetchData()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes key input in browse mode
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "j", "down":
		if m.Selected < len(m.Items)-1 {
			m.Selected++
		}
		return m, nil

	case "k", "up":
		if m.Selected > 0 {
			m.Selected--
		}
		return m, nil

	case "l", " ":
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.toggleLike(item)

	case "c":
		if _, ok := m.selected(); !ok {
			return m, nil
		}
		m.Composing = true
		m.input.SetValue("")
		return m, m.input.Focus()

	case "x":
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.removeOwnComment(item)

	case "s":
		return m, m.forceSync()

	case "r":
		return m, m.fetchData()

	case "?":
		m.ShowHelp = !m.ShowHelp
		return m, nil
	}

	return m, nil
}

// handleComposeKey routes keys to the comment input
func (m Model) handleComposeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.Composing = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		text := m.input.Value()
		m.Composing = false
		m.input.Blur()
		item, ok := m.selected()
		if !ok || text == "" {
			return m, nil
		}
		return m, m.addComment(item.TargetID, text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

func (m Model) selected() (models.DerivedState, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Items) {
		return models.DerivedState{}, false
	}
	return m.Items[m.Selected], true
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchData returns a command that reads the engine and sends a RefreshDataMsg
func (m Model) fetchData() tea.Cmd {
	src := m.Src
	return func() tea.Msg {
		return FetchData(src)
	}
}

func (m Model) toggleLike(item models.DerivedState) tea.Cmd {
	src := m.Src
	return func() tea.Msg {
		var err error
		verb := "liked"
		if item.IsLiked {
			verb = "unliked"
			_, err = src.Unlike(item.TargetID)
		} else {
			_, err = src.Like(item.TargetID)
		}
		return actionDoneMsg{flash: verb + " " + item.TargetID, err: err}
	}
}

func (m Model) addComment(targetID, text string) tea.Cmd {
	src := m.Src
	return func() tea.Msg {
		_, err := src.AddComment(targetID, text)
		return actionDoneMsg{flash: "commented on " + targetID, err: err}
	}
}

// removeOwnComment removes the newest comment by the current actor
func (m Model) removeOwnComment(item models.DerivedState) tea.Cmd {
	src, actor := m.Src, m.Actor
	return func() tea.Msg {
		for i := len(item.Comments) - 1; i >= 0; i-- {
			c := item.Comments[i]
			if c.AuthorID != actor {
				continue
			}
			_, err := src.RemoveComment(item.TargetID, c.ID)
			return actionDoneMsg{flash: "removed comment on " + item.TargetID, err: err}
		}
		return actionDoneMsg{flash: "no comment of yours on " + item.TargetID}
	}
}

func (m Model) forceSync() tea.Cmd {
	src := m.Src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := src.ForceSync(ctx)
		return actionDoneMsg{flash: "synced", err: err}
	}
}
