package processing

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Marker remembers requested images for a limited time. Mark reports whether
// key was not marked yet.
type Marker interface {
	Mark(ctx context.Context, key string) (bool, error)
	Unmark(ctx context.Context, key string) error
}

// MemoryMarker is a Marker local to the process. At most size keys are kept;
// the least recently marked are forgotten first.
type MemoryMarker struct {
	mu   sync.Mutex
	keys *expirable.LRU[string, struct{}]
}

// NewMemoryMarker creates a MemoryMarker forgetting keys after ttl.
func NewMemoryMarker(size int, ttl time.Duration) *MemoryMarker {
	return &MemoryMarker{keys: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (m *MemoryMarker) Mark(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys.Get(key); ok {
		return false, nil
	}
	m.keys.Add(key, struct{}{})
	return true, nil
}

func (m *MemoryMarker) Unmark(_ context.Context, key string) error {
	m.keys.Remove(key)
	return nil
}

// Len is the number of remembered keys, expired ones included until they are
// swept.
func (m *MemoryMarker) Len() int { return m.keys.Len() }
