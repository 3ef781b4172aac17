package world

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/redstonecraft/redstone/internal/constants"
	"github.com/redstonecraft/redstone/internal/protocol"
)

func newTestWorld(t *testing.T, fabric *fakeFabric) *World {
	t.Helper()
	m := NewManager(t.TempDir(), fabric)
	w := newWorld(m, MainWorldName, nil)
	m.add(w)
	return w
}

func TestGenerate_Layers(t *testing.T) {
	w := newTestWorld(t, &fakeFabric{})

	tests := []struct {
		y    int
		want constants.Block
	}{
		{0, constants.BlockDirt},
		{31, constants.BlockDirt},
		{32, constants.BlockGrass},
		{33, constants.BlockAir},
		{Height - 1, constants.BlockAir},
	}
	for _, tt := range tests {
		got, err := w.GetBlock(10, tt.y, 10)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "block at y=%d", tt.y)
	}
}

func TestSetGetBlock_RoundTrip(t *testing.T) {
	w := newTestWorld(t, &fakeFabric{})

	coords := [][3]int{
		{0, 0, 0},
		{Width - 1, Height - 1, Depth - 1},
		{5, 33, 5},
		{100, 50, 200},
	}
	for _, c := range coords {
		require.NoError(t, w.SetBlock(c[0], c[1], c[2], constants.BlockCobblestone, false))
		got, err := w.GetBlock(c[0], c[1], c[2])
		require.NoError(t, err)
		require.Equal(t, constants.BlockCobblestone, got, "block at %v", c)
	}
}

func TestSetGetBlock_OutOfRange(t *testing.T) {
	w := newTestWorld(t, &fakeFabric{})

	bad := [][3]int{
		{-1, 0, 0},
		{0, -1, 0},
		{0, 0, -1},
		{Width, 0, 0},
		{0, Height, 0},
		{0, 0, Depth},
	}
	for _, c := range bad {
		_, err := w.GetBlock(c[0], c[1], c[2])
		require.ErrorIs(t, err, ErrOutOfRange, "get %v", c)

		err = w.SetBlock(c[0], c[1], c[2], constants.BlockStone, false)
		require.ErrorIs(t, err, ErrOutOfRange, "set %v", c)
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	w := newTestWorld(t, &fakeFabric{})
	require.NoError(t, w.SetBlock(1, 40, 1, constants.BlockGoldOre, false))

	data, err := w.Serialize()
	require.NoError(t, err)

	blocks, err := LoadBlocks(data)
	require.NoError(t, err)
	require.Equal(t, w.blocks, blocks)
}

// forgeStream builds gzip(u32_be claim || payload) with an arbitrary claim.
func forgeStream(t *testing.T, claim uint32, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], claim)
	_, err := zw.Write(header[:])
	require.NoError(t, err)
	_, err = zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestLoadBlocks_Corrupt(t *testing.T) {
	t.Run("not gzip", func(t *testing.T) {
		_, err := LoadBlocks([]byte("not gzip at all"))
		require.ErrorIs(t, err, ErrCorruptWorld)
	})

	t.Run("missing prefix", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write([]byte{0, 1})
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		_, err = LoadBlocks(buf.Bytes())
		require.ErrorIs(t, err, ErrCorruptWorld)
	})

	t.Run("lying prefix", func(t *testing.T) {
		_, err := LoadBlocks(forgeStream(t, 17, make([]byte, 16)))
		require.ErrorIs(t, err, ErrCorruptWorld)
	})

	t.Run("honest prefix", func(t *testing.T) {
		blocks, err := LoadBlocks(forgeStream(t, 16, make([]byte, 16)))
		require.NoError(t, err)
		require.Len(t, blocks, 16)
	})
}

func TestAddRemovePlayer(t *testing.T) {
	fabric := &fakeFabric{}
	w := newTestWorld(t, fabric)

	conn := &fakeConn{id: 1}
	fabric.conns = []*fakeConn{conn}

	e, err := w.AddPlayer(conn, "Alice")
	require.NoError(t, err)
	require.Equal(t, uint8(0), e.ID)
	require.Equal(t, "Alice", e.Username)
	require.Equal(t, MainWorldName, e.World)
	require.Equal(t, constants.RankGuest, e.Rank)
	require.Equal(t, float64(33), e.X)
	require.Equal(t, float64(34), e.Y)
	require.Equal(t, float64(33), e.Z)
	require.Same(t, e, conn.Entity())
	require.True(t, w.Entities().Has(e.ID))

	// Join announcement went out globally.
	require.Len(t, fabric.broadcasts, 1)
	join := fabric.broadcasts[0]
	require.Equal(t, byte(protocol.IDMessage), join.packetID)
	require.Empty(t, join.exceptions)
	require.Equal(t, "&9Alice joined the game.&f", join.args[1])

	w.RemovePlayer(conn)
	require.Nil(t, conn.Entity())
	require.False(t, w.Entities().Has(e.ID))

	// Despawn excluded the leaving connection; leave message was global.
	require.Len(t, fabric.broadcasts, 3)
	despawn := fabric.broadcasts[1]
	require.Equal(t, byte(protocol.IDDespawnPlayer), despawn.packetID)
	require.Contains(t, despawn.exceptions, uint64(1))

	leave := fabric.broadcasts[2]
	require.Equal(t, byte(protocol.IDMessage), leave.packetID)
	require.Equal(t, "&9Alice left the game.&f", leave.args[1])

	// The freed id is reissued.
	conn2 := &fakeConn{id: 2}
	e2, err := w.AddPlayer(conn2, "Bob")
	require.NoError(t, err)
	require.Equal(t, uint8(0), e2.ID)
}

func TestUpdatePlayers(t *testing.T) {
	fabric := &fakeFabric{}
	w := newTestWorld(t, fabric)

	alice := &fakeConn{id: 1}
	bob := &fakeConn{id: 2}
	fabric.conns = []*fakeConn{alice, bob}

	_, err := w.AddPlayer(alice, "Alice")
	require.NoError(t, err)
	_, err = w.AddPlayer(bob, "Bob")
	require.NoError(t, err)
	fabric.broadcasts = nil

	w.UpdatePlayers(bob)

	// Bob was sent Alice's entity directly…
	require.Len(t, bob.dispatched, 1)
	require.Equal(t, byte(protocol.IDSpawnPlayer), bob.dispatched[0].packetID)
	require.Same(t, alice.Entity(), bob.dispatched[0].args[0])

	// …and Bob's own entity was broadcast to the whole world, nobody
	// excluded (Bob's copy arrives with the self id).
	require.Len(t, fabric.broadcasts, 1)
	spawn := fabric.broadcasts[0]
	require.Equal(t, byte(protocol.IDSpawnPlayer), spawn.packetID)
	require.Empty(t, spawn.exceptions)
	require.Same(t, bob.Entity(), spawn.args[0])
}

func TestAddPlayer_PoolExhausted(t *testing.T) {
	fabric := &fakeFabric{}
	w := newTestWorld(t, fabric)

	for i := 0; i <= MaxEntityID; i++ {
		_, err := w.AddPlayer(&fakeConn{id: uint64(i)}, "p")
		require.NoError(t, err)
	}

	_, err := w.AddPlayer(&fakeConn{id: 999}, "overflow")
	require.ErrorIs(t, err, ErrIDsExhausted)
}
