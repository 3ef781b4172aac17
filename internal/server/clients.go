package server

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/redstonecraft/redstone/internal/protocol"
	"github.com/redstonecraft/redstone/internal/world"
)

const (
	saltLength = 16
	saltChars  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// generateSalt creates the process-lifetime base62 server secret used to
// verify client auth keys.
func generateSalt() (string, error) {
	out := make([]byte, saltLength)
	max := big.NewInt(int64(len(saltChars)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating salt: %w", err)
		}
		out[i] = saltChars[n.Int64()]
	}
	return string(out), nil
}

// ClientManager is the connection registry and broadcast fabric: an
// insertion-ordered set of live connections keyed by a monotonically
// increasing id. It implements world.Fabric.
type ClientManager struct {
	mu     sync.RWMutex
	nextID uint64
	order  []*Client
	byID   map[uint64]*Client
}

// NewClientManager creates an empty registry.
func NewClientManager() *ClientManager {
	return &ClientManager{
		byID: make(map[uint64]*Client),
	}
}

// Register assigns the client its registry id and adds it to the set.
func (cm *ClientManager) Register(c *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.nextID++
	c.id = cm.nextID
	cm.order = append(cm.order, c)
	cm.byID[c.id] = c
}

// Unregister removes the client with the given id. Unknown ids are a no-op.
func (cm *ClientManager) Unregister(id uint64) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, ok := cm.byID[id]; !ok {
		return
	}
	delete(cm.byID, id)
	cm.order = slices.DeleteFunc(cm.order, func(c *Client) bool { return c.id == id })
}

// Get returns the client with the given id, or nil.
func (cm *ClientManager) Get(id uint64) *Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.byID[id]
}

// ByEntity returns the client owning the given entity, or nil.
func (cm *ClientManager) ByEntity(e *world.Entity) *Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, c := range cm.order {
		if c.Entity() == e {
			return c
		}
	}
	return nil
}

// Count returns the number of live connections.
func (cm *ClientManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.byID)
}

// snapshot copies the connection set in insertion order, so callers can
// dispatch without holding the registry lock.
func (cm *ClientManager) snapshot() []*Client {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return slices.Clone(cm.order)
}

// Connections returns the live connections in insertion order.
func (cm *ClientManager) Connections() []world.Conn {
	clients := cm.snapshot()
	out := make([]world.Conn, len(clients))
	for i, c := range clients {
		out[i] = c
	}
	return out
}

// Broadcast fans a packet out to every connection, in insertion order,
// except those whose ids appear in exceptions.
func (cm *ClientManager) Broadcast(direction protocol.Direction, packetID byte, exceptions []uint64, args ...any) {
	for _, c := range cm.snapshot() {
		if slices.Contains(exceptions, c.id) {
			continue
		}
		c.Dispatch(direction, packetID, args...)
	}
}
