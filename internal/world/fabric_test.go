package world

import "github.com/redstonecraft/redstone/internal/protocol"

// Test doubles for the broadcast fabric. The real implementations live in
// the server package; these just record traffic.

type dispatchRecord struct {
	direction protocol.Direction
	packetID  byte
	args      []any
}

type fakeConn struct {
	id         uint64
	entity     *Entity
	dispatched []dispatchRecord
}

func (c *fakeConn) ID() uint64          { return c.id }
func (c *fakeConn) Entity() *Entity     { return c.entity }
func (c *fakeConn) SetEntity(e *Entity) { c.entity = e }

func (c *fakeConn) Dispatch(direction protocol.Direction, packetID byte, args ...any) {
	c.dispatched = append(c.dispatched, dispatchRecord{direction, packetID, args})
}

type broadcastRecord struct {
	direction  protocol.Direction
	packetID   byte
	exceptions []uint64
	args       []any
}

type fakeFabric struct {
	conns      []*fakeConn
	broadcasts []broadcastRecord
}

func (f *fakeFabric) Broadcast(direction protocol.Direction, packetID byte, exceptions []uint64, args ...any) {
	f.broadcasts = append(f.broadcasts, broadcastRecord{direction, packetID, exceptions, args})
}

func (f *fakeFabric) Connections() []Conn {
	out := make([]Conn, len(f.conns))
	for i, c := range f.conns {
		out[i] = c
	}
	return out
}

func (f *fakeFabric) packetIDs() []byte {
	out := make([]byte, len(f.broadcasts))
	for i, b := range f.broadcasts {
		out[i] = b.packetID
	}
	return out
}
