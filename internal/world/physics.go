package world

import (
	"github.com/redstonecraft/redstone/internal/constants"
	"github.com/redstonecraft/redstone/internal/protocol"
)

// Physics applies the classic fall rule: sand and gravel drop through air
// until they land, and a settled stack pulls down the blocks above it.
type Physics struct {
	world *World
}

// Update runs physics for a block just placed at (x, y, z).
func (p *Physics) Update(x, y, z int, b constants.Block) {
	if b.HasPhysics() {
		p.fall(x, y, z, b)
	}
}

// fall walks the block down the air column below (x, y, z), clearing the
// cell it leaves at each step, then probes the cell above the origin to
// propagate whole stacks. Out-of-range coordinates stop the walk.
func (p *Physics) fall(x, y, z int, b constants.Block) {
	dy := y - 1
	for {
		below, err := p.world.GetBlock(x, dy, z)
		if err != nil || below != constants.BlockAir {
			break
		}

		p.broadcastChange(x, dy, z, b)

		// The block settles one cell down; clear the cell it came from.
		if above, err := p.world.GetBlock(x, dy+1, z); err == nil && above == b {
			p.broadcastChange(x, dy+1, z, constants.BlockAir)
		}
		dy--
	}

	ay := y + 1
	if !p.world.InRange(x, ay, z) {
		return
	}
	above, err := p.world.GetBlock(x, ay, z)
	if err != nil || !above.HasPhysics() {
		return
	}
	p.fall(x, ay, z, above)
}

// broadcastChange writes the cell without re-triggering physics and fans
// the change out to every connection.
func (p *Physics) broadcastChange(x, y, z int, b constants.Block) {
	// The walk only visits in-range cells, so the write cannot fail.
	_ = p.world.SetBlock(x, y, z, b, false)

	p.world.manager.fabric.Broadcast(protocol.Upstream, protocol.IDSetBlockServer, nil,
		x, y, z, b)
}
