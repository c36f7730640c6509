package memory

import (
	"context"
	"sync"
)

// lockTable hands out one exclusive lock per row key. Waiting respects the
// caller's context, so a lock cycle ends when a transaction's deadline
// passes, the way an InnoDB lock-wait timeout does.
type lockTable struct {
	mu   sync.Mutex
	rows map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{rows: make(map[string]chan struct{})}
}

func (lt *lockTable) slot(key string) chan struct{} {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	ch, ok := lt.rows[key]
	if !ok {
		ch = make(chan struct{}, 1)
		lt.rows[key] = ch
	}
	return ch
}

func (lt *lockTable) acquire(ctx context.Context, key string) error {
	select {
	case lt.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (lt *lockTable) release(key string) {
	<-lt.slot(key)
}
