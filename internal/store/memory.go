package store

import (
	"context"
	"sync"
)

// MemoryBackend holds the table in memory. Used by tests and dry runs.
type MemoryBackend struct {
	mu     sync.Mutex
	data   []byte
	locked bool
	writes int
}

func NewMemoryBackend() *MemoryBackend { return &MemoryBackend{} }

func (b *MemoryBackend) Describe() string { return "memory" }

func (b *MemoryBackend) Read(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, ErrNotExist
	}
	return append([]byte(nil), b.data...), nil
}

func (b *MemoryBackend) Write(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
	b.writes++
	return nil
}

func (b *MemoryBackend) Lock(_ context.Context) (func() error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locked {
		return nil, ErrLocked
	}
	b.locked = true
	return func() error {
		b.mu.Lock()
		b.locked = false
		b.mu.Unlock()
		return nil
	}, nil
}

// Writes returns how many times the table has been replaced.
func (b *MemoryBackend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}
