package normalizer

import (
	"context"
	"sync"

	"github.com/fanpulse/fanpulse/internal/clients"
)

// SeenSet answers whether a feedback key was already collected. Memory-backed
// sets scope dedup to one run; the Valkey set shares it across runs and
// consumer instances.
type SeenSet interface {
	Seen(ctx context.Context, songID, sourceID string) bool
	Mark(ctx context.Context, songID, sourceID string) error
}

type MemorySeen struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemorySeen() *MemorySeen {
	return &MemorySeen{keys: make(map[string]struct{})}
}

func (m *MemorySeen) Seen(_ context.Context, songID, sourceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[songID+":"+sourceID]
	return ok
}

func (m *MemorySeen) Mark(_ context.Context, songID, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[songID+":"+sourceID] = struct{}{}
	return nil
}

type ValkeySeen struct {
	vc *clients.ValkeyClient
}

func NewValkeySeen(vc *clients.ValkeyClient) *ValkeySeen {
	return &ValkeySeen{vc: vc}
}

func (v *ValkeySeen) Seen(ctx context.Context, songID, sourceID string) bool {
	return v.vc.IsSeen(ctx, songID, sourceID)
}

func (v *ValkeySeen) Mark(ctx context.Context, songID, sourceID string) error {
	return v.vc.MarkSeen(ctx, songID, sourceID)
}
