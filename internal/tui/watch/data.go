package watch

import (
	"time"

	"github.com/bep/debounce"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/feedsync/internal/engine"
	"github.com/marcus/feedsync/internal/models"
)

// FetchData reads everything the view displays
func FetchData(src Source) RefreshDataMsg {
	targets := src.Targets()
	msg := RefreshDataMsg{
		Items:     make([]models.DerivedState, 0, len(targets)),
		Pending:   len(src.Pending()),
		Sync:      src.Status(),
		Timestamp: time.Now(),
	}
	for _, id := range targets {
		msg.Items = append(msg.Items, src.DerivedState(id))
	}
	return msg
}

// Bind forwards engine events to send, coalescing bursts that arrive within
// wait into one EngineEventMsg. The returned func unsubscribes.
func Bind(send func(tea.Msg), src Source, wait time.Duration) func() {
	debounced := debounce.New(wait)
	return src.Subscribe(func(engine.Event) {
		debounced(func() { send(EngineEventMsg{}) })
	})
}
