package ledger

import (
	"context"
	"sync"

	"github.com/congo-pay/payments_engine/internal/transaction"
)

type inMemoryLedger struct {
	mu      sync.RWMutex
	entries map[transaction.ID]Entry
}

// NewInMemory creates a concurrency-safe in-memory ledger keyed by transaction id.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		entries: make(map[transaction.ID]Entry),
	}
}

func (l *inMemoryLedger) Record(_ context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.entries[entry.Tx]; exists {
		return ErrDuplicateTransaction
	}
	l.entries[entry.Tx] = entry
	return nil
}

func (l *inMemoryLedger) Get(_ context.Context, id transaction.ID) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.entries[id]
	if !ok {
		return Entry{}, ErrTransactionNotFound
	}
	return entry, nil
}

func (l *inMemoryLedger) Update(_ context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.entries[entry.Tx]; !exists {
		return ErrTransactionNotFound
	}
	l.entries[entry.Tx] = entry
	return nil
}

func (l *inMemoryLedger) Contains(_ context.Context, id transaction.ID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[id]
	return ok
}

func (l *inMemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
