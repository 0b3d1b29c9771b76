package bus

import (
	"context"

	"github.com/mharkness/go-chatrelay/internal/types"
)

// Handler is invoked once per envelope received from the bus. Handlers must
// not block: the subscribe loop delivers envelopes sequentially.
type Handler func(env types.Envelope)

// Bus is the cross-instance fan-out channel. A single logical topic carries
// every group's traffic; subscribers filter by group id after receipt.
// Delivery to live subscribers is at-most-once and best-effort.
type Bus interface {
	Publish(ctx context.Context, env types.Envelope) error
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}
