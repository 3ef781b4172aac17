package constants

// Block is a classic protocol (v7) block type id.
type Block byte

// Classic block ids, as placed by clients and stored in world volumes.
const (
	BlockAir             Block = 0
	BlockStone           Block = 1
	BlockGrass           Block = 2
	BlockDirt            Block = 3
	BlockCobblestone     Block = 4
	BlockWoodPlanks      Block = 5
	BlockSapling         Block = 6
	BlockBedrock         Block = 7
	BlockFlowingWater    Block = 8
	BlockStationaryWater Block = 9
	BlockFlowingLava     Block = 10
	BlockStationaryLava  Block = 11
	BlockSand            Block = 12
	BlockGravel          Block = 13
	BlockGoldOre         Block = 14
	BlockIronOre         Block = 15
	BlockCoalOre         Block = 16
)

// HasPhysics returns true for block types subject to the fall rule
// (sand and gravel are the only classic blocks with server-side physics).
func (b Block) HasPhysics() bool {
	return b == BlockSand || b == BlockGravel
}

// ClickMode is the "mode" field of a client SetBlock packet.
type ClickMode byte

const (
	// ClickDestroy — left click, the targeted block is removed.
	ClickDestroy ClickMode = 0
	// ClickCreate — right click, the held block is placed.
	ClickCreate ClickMode = 1
)
