package bus

import (
	"context"
	"sync"

	"github.com/mharkness/go-chatrelay/internal/types"
)

// MemoryBus is an in-process Bus used for tests and single-node dev runs.
// It mirrors redis pub/sub semantics: publishers also receive their own
// envelopes, and there is no buffering or replay.
type MemoryBus struct {
	mu       sync.Mutex
	handlers []Handler
	closed   bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(ctx context.Context, env types.Envelope) error {
	b.mu.Lock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	for _, h := range handlers {
		h(env)
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, handler Handler) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = nil
	return nil
}
