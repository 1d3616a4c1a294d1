package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/marcus/feedsync/internal/models"
)

// MemoryPersister keeps the serialized queue in memory. It round-trips
// through JSON so tests exercise the same encoding as durable storage.
type MemoryPersister struct {
	mu      sync.Mutex
	data    []byte
	ids     map[string]string
	SaveErr error // when set, SaveQueue fails with it
	Saves   int
}

// NewMemoryPersister returns an empty in-memory persister
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{ids: make(map[string]string)}
}

// LoadQueue decodes the last saved queue
func (p *MemoryPersister) LoadQueue(ctx context.Context) ([]models.PendingAction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.data) == 0 {
		return nil, nil
	}
	var actions []models.PendingAction
	if err := json.Unmarshal(p.data, &actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// SaveQueue overwrites the stored queue
func (p *MemoryPersister) SaveQueue(ctx context.Context, actions []models.PendingAction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Saves++
	if p.SaveErr != nil {
		return p.SaveErr
	}
	if actions == nil {
		actions = []models.PendingAction{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return err
	}
	p.data = data
	return nil
}

// LoadIDMap returns a copy of the stored id mappings
func (p *MemoryPersister) LoadIDMap(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.ids))
	for k, v := range p.ids {
		out[k] = v
	}
	return out, nil
}

// SaveIDMapping stores one mapping
func (p *MemoryPersister) SaveIDMapping(ctx context.Context, tempID, realID, targetID string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[tempID] = realID
	return nil
}
