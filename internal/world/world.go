package world

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauspost/compress/gzip"

	"github.com/redstonecraft/redstone/internal/constants"
	"github.com/redstonecraft/redstone/internal/protocol"
)

// World volume dimensions. The map is a single in-memory volume; there is
// no chunk paging.
const (
	Width  = 256
	Height = 64
	Depth  = 256
)

// Players spawn on top of the generated grass layer.
const (
	spawnX = 33
	spawnY = 34
	spawnZ = 33
)

var (
	// ErrOutOfRange is returned for block coordinates outside the volume.
	ErrOutOfRange = errors.New("block coordinates out of range")
	// ErrCorruptWorld is returned when persisted world data fails to parse.
	ErrCorruptWorld = errors.New("corrupt world data")
)

// World is a named voxel volume with its own entity set and physics.
type World struct {
	name     string
	manager  *Manager
	entities *EntityManager
	physics  *Physics
	blocks   []byte
}

func newWorld(m *Manager, name string, blocks []byte) *World {
	if blocks == nil {
		blocks = generateBlocks()
	}
	w := &World{
		name:     name,
		manager:  m,
		entities: NewEntityManager(),
		blocks:   blocks,
	}
	w.physics = &Physics{world: w}
	return w
}

// generateBlocks builds the default flat terrain: air above y=32, a grass
// layer at y=32, dirt below.
func generateBlocks() []byte {
	blocks := make([]byte, Width*Height*Depth)
	for x := 0; x < Width; x++ {
		for y := 0; y < Height; y++ {
			for z := 0; z < Depth; z++ {
				var b constants.Block
				switch {
				case y > 32:
					b = constants.BlockAir
				case y == 32:
					b = constants.BlockGrass
				default:
					b = constants.BlockDirt
				}
				blocks[x+Depth*(z+Width*y)] = byte(b)
			}
		}
	}
	return blocks
}

// Name returns the world's registry name.
func (w *World) Name() string {
	return w.name
}

// Entities returns the world's entity set.
func (w *World) Entities() *EntityManager {
	return w.entities
}

// Physics returns the world's block physics.
func (w *World) Physics() *Physics {
	return w.physics
}

// InRange reports whether (x, y, z) addresses a block inside the volume.
func (w *World) InRange(x, y, z int) bool {
	return x >= 0 && x < Width && y >= 0 && y < Height && z >= 0 && z < Depth
}

// GetBlock returns the block at (x, y, z).
func (w *World) GetBlock(x, y, z int) (constants.Block, error) {
	if !w.InRange(x, y, z) {
		return constants.BlockAir, fmt.Errorf("get block (%d,%d,%d): %w", x, y, z, ErrOutOfRange)
	}
	return constants.Block(w.blocks[x+Depth*(z+Width*y)]), nil
}

// SetBlock writes the block at (x, y, z). With update set, block physics
// runs for the new block; physics-driven writes pass update=false so a
// broadcast-driven edit cannot reenter physics.
func (w *World) SetBlock(x, y, z int, b constants.Block, update bool) error {
	if !w.InRange(x, y, z) {
		return fmt.Errorf("set block (%d,%d,%d): %w", x, y, z, ErrOutOfRange)
	}
	w.blocks[x+Depth*(z+Width*y)] = byte(b)

	if update {
		w.physics.Update(x, y, z, b)
	}
	return nil
}

// Serialize encodes the volume as gzip(u32_be length || blocks), the form
// both the level-streaming chain and the .dat files use.
func (w *World) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("serializing world %s: %w", w.name, err)
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(w.blocks)))
	if _, err := zw.Write(header[:]); err != nil {
		return nil, fmt.Errorf("serializing world %s: %w", w.name, err)
	}
	if _, err := zw.Write(w.blocks); err != nil {
		return nil, fmt.Errorf("serializing world %s: %w", w.name, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("serializing world %s: %w", w.name, err)
	}
	return buf.Bytes(), nil
}

// LoadBlocks decodes a serialized volume and validates the length prefix.
func LoadBlocks(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptWorld, err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptWorld, err)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: missing length prefix", ErrCorruptWorld)
	}

	want := binary.BigEndian.Uint32(raw[:4])
	blocks := raw[4:]
	if int(want) != len(blocks) {
		return nil, fmt.Errorf("%w: length prefix %d, payload %d", ErrCorruptWorld, want, len(blocks))
	}
	return blocks, nil
}

// Save persists the world through the manager's worlds directory.
func (w *World) Save() error {
	data, err := w.Serialize()
	if err != nil {
		return err
	}
	return w.manager.writeWorldFile(w.name, data)
}

// AddPlayer allocates an id, creates the player entity at the spawn point,
// attaches it to the connection, and announces the join to every client.
func (w *World) AddPlayer(conn Conn, username string) (*Entity, error) {
	id, err := w.entities.allocator.Allocate()
	if err != nil {
		return nil, fmt.Errorf("adding player %s to world %s: %w", username, w.name, err)
	}

	e := &Entity{
		ID:       id,
		X:        spawnX,
		Y:        spawnY,
		Z:        spawnZ,
		World:    w.name,
		Kind:     Player,
		Username: username,
		Rank:     constants.RankGuest,
	}

	conn.SetEntity(e)
	w.entities.Add(e)

	slog.Info("player joined world", "player", username, "world", w.name, "entity", id)

	w.manager.fabric.Broadcast(protocol.Upstream, protocol.IDMessage, nil,
		e.ID, constants.ColorBlue+username+" joined the game."+constants.ColorWhite)

	return e, nil
}

// RemovePlayer detaches the connection's entity from the world, frees its
// id, despawns it for everyone else in the world, and announces the leave.
func (w *World) RemovePlayer(conn Conn) {
	e := conn.Entity()
	if e == nil {
		return
	}

	w.entities.Remove(e.ID)
	w.entities.allocator.Deallocate(e.ID)

	w.manager.Broadcast(w, protocol.Upstream, protocol.IDDespawnPlayer,
		[]uint64{conn.ID()}, e)

	slog.Info("player left world", "player", e.Username, "world", w.name, "entity", e.ID)

	w.manager.fabric.Broadcast(protocol.Upstream, protocol.IDMessage, nil,
		e.ID, constants.ColorBlue+e.Username+" left the game."+constants.ColorWhite)

	conn.SetEntity(nil)
}

// UpdatePlayers spawns every other entity of this world to the connection,
// then spawns the connection's own entity to the whole world — the owner
// included, which is how the client learns its own spawn (id -1).
func (w *World) UpdatePlayers(conn Conn) {
	own := conn.Entity()
	if own == nil {
		return
	}

	for _, e := range w.entities.All() {
		if e.World != w.name || e.ID == own.ID {
			continue
		}
		conn.Dispatch(protocol.Upstream, protocol.IDSpawnPlayer, e)
	}

	w.manager.Broadcast(w, protocol.Upstream, protocol.IDSpawnPlayer, nil, own)
}
