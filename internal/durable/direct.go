package durable

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/mharkness/go-chatrelay/internal/types"
)

const maxInflightWrites = 64

// DirectPipeline persists envelopes straight from the accepting instance,
// off the hot path. Best-effort: a failed write is logged and dropped, there
// is no replay. Deployments that need durability use the log-backed pipeline.
type DirectPipeline struct {
	writer   *Writer
	log      *log.Logger
	inflight chan struct{}
	wg       sync.WaitGroup
}

func NewDirectPipeline(writer *Writer, logger *log.Logger) *DirectPipeline {
	return &DirectPipeline{
		writer:   writer,
		log:      logger,
		inflight: make(chan struct{}, maxInflightWrites),
	}
}

func (p *DirectPipeline) Submit(ctx context.Context, env types.Envelope) error {
	select {
	case p.inflight <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.inflight
			p.wg.Done()
		}()

		if err := p.writer.Persist(env); err != nil {
			var perm *PermanentError
			if errors.As(err, &perm) {
				p.log.Println("dropping malformed envelope:", err)
				return
			}
			p.log.Println("persist failed, message lost in direct mode:", err)
		}
	}()

	return nil
}

// Close waits for in-flight writes to finish.
func (p *DirectPipeline) Close() error {
	p.wg.Wait()
	return nil
}
