package relay

import (
	"sync"

	"github.com/teris-io/shortid"
)

// Registry tracks this instance's live connections and their group
// memberships. It is purely local: other instances keep their own, and all
// cross-instance traffic goes through the bus.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[string]map[string]*Client
	joined  map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]*Client),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Register assigns the client a connection id and tracks it.
func (r *Registry) Register(c *Client) (string, error) {
	id, err := shortid.Generate()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[id] = c
	r.joined[id] = make(map[string]struct{})
	return id, nil
}

// Unregister removes the connection from every group it joined. Unknown
// connection ids are a no-op.
func (r *Registry) Unregister(connId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for groupId := range r.joined[connId] {
		r.dropMember(connId, groupId)
	}
	delete(r.joined, connId)
	delete(r.clients, connId)
}

func (r *Registry) Join(connId, groupId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connId]
	if !ok {
		return
	}

	if r.groups[groupId] == nil {
		r.groups[groupId] = make(map[string]*Client)
	}
	r.groups[groupId][connId] = c
	r.joined[connId][groupId] = struct{}{}
}

func (r *Registry) Leave(connId, groupId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[connId]; !ok {
		return
	}

	r.dropMember(connId, groupId)
	delete(r.joined[connId], groupId)
}

// dropMember must be called with the lock held.
func (r *Registry) dropMember(connId, groupId string) {
	if members, ok := r.groups[groupId]; ok {
		delete(members, connId)
		if len(members) == 0 {
			delete(r.groups, groupId)
		}
	}
}

// MembersOf returns this instance's connections currently joined to the
// group. The slice is a snapshot: it is safe to broadcast to while joins
// and leaves proceed concurrently.
func (r *Registry) MembersOf(groupId string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]*Client, 0, len(r.groups[groupId]))
	for _, c := range r.groups[groupId] {
		members = append(members, c)
	}
	return members
}

// Clients returns a snapshot of every live connection.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

func (r *Registry) NumClients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
