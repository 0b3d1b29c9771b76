package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mharkness/go-chatrelay/internal/bus"
	"github.com/mharkness/go-chatrelay/internal/durable"
	"github.com/mharkness/go-chatrelay/internal/store"
	"github.com/mharkness/go-chatrelay/internal/testutil"
	"github.com/mharkness/go-chatrelay/internal/types"
)

func Test_queueMessage(t *testing.T) {
	t.Run("queues message", func(t *testing.T) {
		c := &Client{
			log:  testutil.TestLogger(t),
			send: make(chan *ServerMessage, 1),
		}

		assert.True(t, c.queueMessage(NoErrOK(1)), "expected message to be queued")
		assert.Len(t, c.send, 1, "expected one queued message")
	})

	t.Run("drops message when channel is full", func(t *testing.T) {
		c := &Client{
			log:  testutil.TestLogger(t),
			send: make(chan *ServerMessage, 1),
		}

		assert.True(t, c.queueMessage(NoErrOK(1)))
		assert.False(t, c.queueMessage(NoErrOK(2)), "expected message to be dropped")
		assert.Len(t, c.send, 1, "expected the first message to remain queued")
	})
}

func Test_cleanup(t *testing.T) {
	s := newTestServer(t, &store.MockRepository{}, &bus.MockBus{}, &durable.MockPipeline{})

	c := newTestClient(t, s, types.User{Id: "u1"})
	s.registry.Join(c.id, "g1")
	assert.Len(t, s.registry.MembersOf("g1"), 1, "expected membership before cleanup")

	c.cleanup()

	assert.Empty(t, s.registry.MembersOf("g1"), "expected no membership after cleanup")
	assert.Zero(t, s.registry.NumClients(), "expected no registered clients after cleanup")

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}

	// cleanup is safe to run twice
	c.cleanup()
}
