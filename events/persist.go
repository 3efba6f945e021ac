package events

import (
	"context"
	"sync"
)

// EventPersistence stores the outbound event feed so consumers that were
// offline can inspect what happened. The bus itself never replays; Recent is
// a diagnostic surface.
type EventPersistence interface {
	Persist(ctx context.Context, evt *Event) error
	Recent(ctx context.Context, limit int) ([]*Event, error)
}

// MemPersister keeps the last maxSize events in memory. Fine for tests and
// single-process deployments that don't care about event history surviving
// restarts.
type MemPersister struct {
	lk      sync.Mutex
	buf     []*Event
	maxSize int
}

func NewMemPersister() *MemPersister {
	return &MemPersister{maxSize: 1024}
}

func (mp *MemPersister) Persist(ctx context.Context, evt *Event) error {
	mp.lk.Lock()
	defer mp.lk.Unlock()
	mp.buf = append(mp.buf, evt)
	if len(mp.buf) > mp.maxSize {
		mp.buf = mp.buf[len(mp.buf)-mp.maxSize:]
	}
	return nil
}

func (mp *MemPersister) Recent(ctx context.Context, limit int) ([]*Event, error) {
	mp.lk.Lock()
	defer mp.lk.Unlock()
	if limit <= 0 || limit > len(mp.buf) {
		limit = len(mp.buf)
	}
	out := make([]*Event, limit)
	copy(out, mp.buf[len(mp.buf)-limit:])
	return out, nil
}
