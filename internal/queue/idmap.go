package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IDMapPersister stores temp→real comment id pairs beyond the session
type IDMapPersister interface {
	LoadIDMap(ctx context.Context) (map[string]string, error)
	SaveIDMapping(ctx context.Context, tempID, realID, targetID string, at time.Time) error
}

// IDMap resolves client-generated comment ids to server-assigned ones.
// Entries are never evicted during a session.
type IDMap struct {
	mu        sync.RWMutex
	ids       map[string]string
	persister IDMapPersister
}

// NewIDMap creates an id map. p may be nil for a session-only map.
func NewIDMap(p IDMapPersister) *IDMap {
	return &IDMap{ids: make(map[string]string), persister: p}
}

// Load merges persisted mappings into the map
func (m *IDMap) Load(ctx context.Context) error {
	if m.persister == nil {
		return nil
	}
	loaded, err := m.persister.LoadIDMap(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	for k, v := range loaded {
		m.ids[k] = v
	}
	m.mu.Unlock()
	return nil
}

// Record stores tempID→realID
func (m *IDMap) Record(tempID, realID, targetID string) {
	if tempID == "" || realID == "" {
		return
	}
	m.mu.Lock()
	m.ids[tempID] = realID
	m.mu.Unlock()

	if m.persister != nil {
		if err := m.persister.SaveIDMapping(context.Background(), tempID, realID, targetID, time.Now().UTC()); err != nil {
			slog.Warn("idmap: persist failed", "temp_id", tempID, "err", err)
		}
	}
}

// Lookup returns the real id for tempID
func (m *IDMap) Lookup(tempID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	real, ok := m.ids[tempID]
	return real, ok
}

// Resolve returns the real id for id, or id itself when it is not a known temp id
func (m *IDMap) Resolve(id string) string {
	if real, ok := m.Lookup(id); ok {
		return real
	}
	return id
}

// Len returns the number of known mappings
func (m *IDMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
