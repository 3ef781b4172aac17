package world

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/redstonecraft/redstone/internal/constants"
	"github.com/redstonecraft/redstone/internal/protocol"
)

// emptyColumnWorld builds a world of pure air with a dirt floor cell at
// (x, 0, z), so fall walks are fully observable.
func emptyColumnWorld(t *testing.T, fabric *fakeFabric, x, z int) *World {
	t.Helper()
	m := NewManager(t.TempDir(), fabric)
	w := newWorld(m, MainWorldName, make([]byte, Width*Height*Depth))
	m.add(w)
	require.NoError(t, w.SetBlock(x, 0, z, constants.BlockDirt, false))
	return w
}

type blockChange struct {
	x, y, z int
	block   constants.Block
}

func recordedChanges(t *testing.T, fabric *fakeFabric) []blockChange {
	t.Helper()
	out := make([]blockChange, 0, len(fabric.broadcasts))
	for _, b := range fabric.broadcasts {
		require.Equal(t, byte(protocol.IDSetBlockServer), b.packetID)
		require.Empty(t, b.exceptions)
		require.Len(t, b.args, 4)
		out = append(out, blockChange{
			x:     b.args[0].(int),
			y:     b.args[1].(int),
			z:     b.args[2].(int),
			block: b.args[3].(constants.Block),
		})
	}
	return out
}

func TestPhysics_SandFallsThroughAir(t *testing.T) {
	fabric := &fakeFabric{}
	w := emptyColumnWorld(t, fabric, 5, 5)

	require.NoError(t, w.SetBlock(5, 10, 5, constants.BlockSand, true))

	// Each step moves the block one cell down and clears the cell above.
	var want []blockChange
	for dy := 9; dy >= 1; dy-- {
		want = append(want,
			blockChange{5, dy, 5, constants.BlockSand},
			blockChange{5, dy + 1, 5, constants.BlockAir},
		)
	}
	require.Equal(t, want, recordedChanges(t, fabric))

	got, err := w.GetBlock(5, 1, 5)
	require.NoError(t, err)
	require.Equal(t, constants.BlockSand, got)
	for y := 2; y <= 10; y++ {
		got, err := w.GetBlock(5, y, 5)
		require.NoError(t, err)
		require.Equal(t, constants.BlockAir, got, "column at y=%d", y)
	}
}

func TestPhysics_StackPropagates(t *testing.T) {
	fabric := &fakeFabric{}
	w := emptyColumnWorld(t, fabric, 8, 8)

	// A two-block gravel stack floating mid-air; triggering the lower one
	// pulls the upper one down behind it.
	require.NoError(t, w.SetBlock(8, 5, 8, constants.BlockGravel, false))
	require.NoError(t, w.SetBlock(8, 6, 8, constants.BlockGravel, false))

	w.Physics().Update(8, 5, 8, constants.BlockGravel)

	got, err := w.GetBlock(8, 1, 8)
	require.NoError(t, err)
	require.Equal(t, constants.BlockGravel, got)

	got, err = w.GetBlock(8, 2, 8)
	require.NoError(t, err)
	require.Equal(t, constants.BlockGravel, got)

	for _, y := range []int{3, 4, 5, 6} {
		got, err := w.GetBlock(8, y, 8)
		require.NoError(t, err)
		require.Equal(t, constants.BlockAir, got, "column at y=%d", y)
	}
}

func TestPhysics_NoAirBelowIsNoOp(t *testing.T) {
	fabric := &fakeFabric{}
	w := emptyColumnWorld(t, fabric, 3, 3)

	require.NoError(t, w.SetBlock(3, 1, 3, constants.BlockSand, true))

	require.Empty(t, fabric.broadcasts)
	got, err := w.GetBlock(3, 1, 3)
	require.NoError(t, err)
	require.Equal(t, constants.BlockSand, got)
}

func TestPhysics_IgnoresStaticBlocks(t *testing.T) {
	fabric := &fakeFabric{}
	w := emptyColumnWorld(t, fabric, 4, 4)

	require.NoError(t, w.SetBlock(4, 10, 4, constants.BlockStone, true))

	require.Empty(t, fabric.broadcasts)
	got, err := w.GetBlock(4, 10, 4)
	require.NoError(t, err)
	require.Equal(t, constants.BlockStone, got)
}
