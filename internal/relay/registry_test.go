package relay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mharkness/go-chatrelay/internal/types"
)

func TestRegistry_RegisterJoinLeave(t *testing.T) {
	r := NewRegistry()

	c := &Client{user: types.User{Id: "u1"}}
	id, err := r.Register(c)
	assert.NoError(t, err, "expected no error registering client")
	assert.NotEmpty(t, id, "expected a connection id")
	assert.Equal(t, 1, r.NumClients(), "expected 1 registered client")

	r.Join(id, "g1")
	r.Join(id, "g2")
	assert.Len(t, r.MembersOf("g1"), 1, "expected 1 member in g1")
	assert.Len(t, r.MembersOf("g2"), 1, "expected 1 member in g2")

	r.Leave(id, "g1")
	assert.Empty(t, r.MembersOf("g1"), "expected no members in g1 after leave")
	assert.Len(t, r.MembersOf("g2"), 1, "expected g2 membership to be unaffected")
}

func TestRegistry_UnregisterLeavesAllGroups(t *testing.T) {
	r := NewRegistry()

	c := &Client{user: types.User{Id: "u1"}}
	id, err := r.Register(c)
	assert.NoError(t, err)

	r.Join(id, "g1")
	r.Join(id, "g2")

	r.Unregister(id)
	assert.Empty(t, r.MembersOf("g1"), "expected no members in g1 after unregister")
	assert.Empty(t, r.MembersOf("g2"), "expected no members in g2 after unregister")
	assert.Zero(t, r.NumClients(), "expected no registered clients")
}

func TestRegistry_UnknownConnectionIsNoOp(t *testing.T) {
	r := NewRegistry()

	r.Join("missing", "g1")
	assert.Empty(t, r.MembersOf("g1"), "expected join with unknown connection to be ignored")

	r.Leave("missing", "g1")
	r.Unregister("missing")
}

func TestRegistry_ConcurrentJoinsAndLeaves(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			c := &Client{user: types.User{Id: fmt.Sprintf("u%d", n)}}
			id, err := r.Register(c)
			if err != nil {
				t.Error("register:", err)
				return
			}

			r.Join(id, "g1")
			r.MembersOf("g1")
			if n%2 == 0 {
				r.Leave(id, "g1")
			}
			r.Unregister(id)
		}(i)
	}
	wg.Wait()

	assert.Empty(t, r.MembersOf("g1"), "expected no members after all connections unregistered")
	assert.Zero(t, r.NumClients(), "expected no clients after all connections unregistered")
}
