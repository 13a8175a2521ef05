package store

import (
	"context"
	"sync"

	"sjsage522/newsworker/pkg/errors"
)

// MemoryStore keeps sheets in memory; used for dry runs and tests
type MemoryStore struct {
	mu     sync.RWMutex
	sheets map[string][][]string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: make(map[string][][]string)}
}

func (m *MemoryStore) EnsureSheet(_ context.Context, sheet string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[sheet]; !ok {
		m.sheets[sheet] = [][]string{}
	}
	return nil
}

func (m *MemoryStore) ReadRange(_ context.Context, sheet, rng string) ([][]string, error) {
	r, err := ParseRange(rng)
	if err != nil {
		return nil, errors.NewStore(sheet, "invalid range "+rng, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	grid, ok := m.sheets[sheet]
	if !ok {
		return nil, errors.NewStore(sheet, "sheet not found", nil)
	}
	return r.slice(grid), nil
}

func (m *MemoryStore) WriteRange(_ context.Context, sheet, rng string, grid [][]string) error {
	r, err := ParseRange(rng)
	if err != nil {
		return errors.NewStore(sheet, "invalid range "+rng, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sheets[sheet]
	if !ok {
		return errors.NewStore(sheet, "sheet not found", nil)
	}
	m.sheets[sheet] = place(existing, r.StartCol, r.StartRow, grid)
	return nil
}

func (m *MemoryStore) AppendRows(_ context.Context, sheet string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.sheets[sheet]
	if !ok {
		return errors.NewStore(sheet, "sheet not found", nil)
	}
	for _, row := range rows {
		existing = append(existing, append([]string(nil), row...))
	}
	m.sheets[sheet] = existing
	return nil
}

// Rows returns a copy of every row of sheet
func (m *MemoryStore) Rows(sheet string) [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Range{StartCol: 1, StartRow: 1}.slice(m.sheets[sheet])
}
