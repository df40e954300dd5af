package db

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a LocalStore kept in a map. Nothing survives the process.
type MemoryStore struct {
	mu          sync.RWMutex
	rows        map[int64]DeceasedRow
	initialized bool
	closed      bool
	writes      int
	failNext    error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[int64]DeceasedRow),
	}
}

func (ms *MemoryStore) Initialize(ctx context.Context) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return ErrClosed
	}
	ms.initialized = true
	return nil
}

func (ms *MemoryStore) ReadAll(ctx context.Context) ([]DeceasedRow, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.closed {
		return nil, ErrClosed
	}

	rows := make([]DeceasedRow, 0, len(ms.rows))
	for _, row := range ms.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (ms *MemoryStore) UpsertMany(ctx context.Context, rows []DeceasedRow) error {
	if len(rows) == 0 {
		return nil
	}
	return ms.write(ctx, func(next map[int64]DeceasedRow) {
		for _, row := range rows {
			next[row.ID] = row
		}
	})
}

func (ms *MemoryStore) ReplaceAll(ctx context.Context, rows []DeceasedRow) error {
	return ms.write(ctx, func(next map[int64]DeceasedRow) {
		clear(next)
		for _, row := range rows {
			next[row.ID] = row
		}
	})
}

func (ms *MemoryStore) Count(ctx context.Context) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.closed {
		return 0, ErrClosed
	}
	return len(ms.rows), nil
}

func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true
	return nil
}

// FailNextWrite makes the next UpsertMany or ReplaceAll return err without
// changing any row.
func (ms *MemoryStore) FailNextWrite(err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.failNext = err
}

// Writes counts write calls that reached the store, failed ones included.
func (ms *MemoryStore) Writes() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.writes
}

// write applies fn to a copy and swaps it in, so a failure never leaves a
// half-applied batch behind.
func (ms *MemoryStore) write(ctx context.Context, fn func(next map[int64]DeceasedRow)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.closed {
		return ErrClosed
	}
	ms.writes++

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ms.failNext; err != nil {
		ms.failNext = nil
		return err
	}

	next := make(map[int64]DeceasedRow, len(ms.rows))
	for id, row := range ms.rows {
		next[id] = row
	}
	fn(next)
	ms.rows = next
	return nil
}
