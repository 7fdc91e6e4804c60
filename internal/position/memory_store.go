package position

import (
	"context"
	"sync"
)

// MemoryStore keeps positions in a map. It backs tests and lets the engine
// run without a database.
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[string]Position
	nextID    int64
}

// NewMemoryStore creates an empty in-memory position store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[string]Position),
		nextID:    1,
	}
}

func (s *MemoryStore) GetPosition(_ context.Context, symbol string) (*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[symbol]
	if !ok {
		return nil, nil
	}
	copied := pos
	return &copied, nil
}

func (s *MemoryStore) UpsertPosition(_ context.Context, pos *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos.ID == 0 {
		pos.ID = s.nextID
		s.nextID++
	}
	s.positions[pos.Symbol] = *pos
	return nil
}

func (s *MemoryStore) ListPositions(_ context.Context, activeOnly bool) ([]Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Position, 0, len(s.positions))
	for _, pos := range s.positions {
		if activeOnly && !pos.IsActive {
			continue
		}
		result = append(result, pos)
	}
	return result, nil
}
