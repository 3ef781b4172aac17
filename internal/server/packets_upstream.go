package server

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/redstonecraft/redstone/internal/constants"
	"github.com/redstonecraft/redstone/internal/protocol"
	"github.com/redstonecraft/redstone/internal/world"
)

// fixedPoint quantizes a block-unit coordinate to the wire's ×32
// fixed-point i16, with the legacy truncation wrap.
func fixedPoint(v float64) int16 {
	return int16(int64(v * 32.0))
}

// serializeServerIdentification writes the handshake reply and joins the
// player to a world. args: username string, optionally followed by the
// current entity and a target world name (the teleport path, which moves
// the player instead of spawning a fresh one).
func serializeServerIdentification(c *Client, args ...any) (*protocol.Buffer, error) {
	if len(args) < 1 {
		return nil, badArgs(protocol.IDIdentification)
	}
	username, ok := args[0].(string)
	if !ok {
		return nil, badArgs(protocol.IDIdentification)
	}

	var current *world.Entity
	worldName := ""
	if len(args) >= 3 {
		current, _ = args[1].(*world.Entity)
		worldName, _ = args[2].(string)
	}

	s := c.srv
	var w *world.World
	if worldName == "" {
		w = s.worlds.Main()
	} else {
		w = s.worlds.World(worldName)
	}
	if w == nil {
		return nil, fmt.Errorf("identification for %s: no world %q", username, worldName)
	}

	var buf protocol.Buffer
	_ = buf.WriteByte(protocol.Version)
	buf.WriteString(s.cfg.Name)
	buf.WriteString(s.cfg.MOTD)
	_ = buf.WriteByte(0x00)

	if current != nil {
		if from := s.worlds.World(current.World); from != nil {
			from.RemovePlayer(c)
		}
	}

	e, err := w.AddPlayer(c, username)
	if err != nil {
		if errors.Is(err, world.ErrIDsExhausted) {
			c.Dispatch(protocol.Upstream, protocol.IDDisconnectPlayer, "Server full.")
			return nil, nil
		}
		return nil, err
	}

	if slices.Contains(s.cfg.Admins, username) {
		e.Rank = constants.RankAdministrator
	}

	return &buf, nil
}

func completeServerIdentification(c *Client) {
	if c.Entity() == nil {
		return
	}
	c.Dispatch(protocol.Upstream, protocol.IDLevelInitialize)
}

func serializePing(c *Client, args ...any) (*protocol.Buffer, error) {
	return &protocol.Buffer{}, nil
}

func serializeLevelInitialize(c *Client, args ...any) (*protocol.Buffer, error) {
	return &protocol.Buffer{}, nil
}

// completeLevelInitialize streams the serialized world: one LevelDataChunk
// per 1024-byte slice of the gzipped volume, then LevelFinalize.
func completeLevelInitialize(c *Client) {
	e := c.Entity()
	if e == nil {
		return
	}
	w := c.srv.worlds.World(e.World)
	if w == nil {
		return
	}

	data, err := w.Serialize()
	if err != nil {
		slog.Error("serializing world for level stream", "world", w.Name(), "error", err)
		return
	}

	for i := 0; i < len(data); i += protocol.ArrayLength {
		end := min(i+protocol.ArrayLength, len(data))
		c.Dispatch(protocol.Upstream, protocol.IDLevelDataChunk, i/protocol.ArrayLength, data[i:end])
	}

	c.Dispatch(protocol.Upstream, protocol.IDLevelFinalize)
}

// serializeLevelDataChunk writes one slice of the level stream. The
// percent byte keeps the legacy formula, which divides by the chunk
// length rather than the chunk count; legacy clients expect it bit-exact.
func serializeLevelDataChunk(c *Client, args ...any) (*protocol.Buffer, error) {
	if len(args) < 2 {
		return nil, badArgs(protocol.IDLevelDataChunk)
	}
	index, ok := args[0].(int)
	chunk, ok2 := args[1].([]byte)
	if !ok || !ok2 || len(chunk) == 0 {
		return nil, badArgs(protocol.IDLevelDataChunk)
	}

	var buf protocol.Buffer
	buf.WriteShort(int16(len(chunk)))
	buf.WriteArray(chunk)
	_ = buf.WriteByte(byte((100 / len(chunk)) * index))
	return &buf, nil
}

func serializeLevelFinalize(c *Client, args ...any) (*protocol.Buffer, error) {
	var buf protocol.Buffer
	buf.WriteShort(world.Width)
	buf.WriteShort(world.Height)
	buf.WriteShort(world.Depth)
	return &buf, nil
}

// completeLevelFinalize spawns the freshly streamed player: itself (as id
// -1), its world's peers, and itself to those peers.
func completeLevelFinalize(c *Client) {
	e := c.Entity()
	if e == nil {
		return
	}
	if w := c.srv.worlds.World(e.World); w != nil {
		w.UpdatePlayers(c)
	}
}

func serializeSetBlockServer(c *Client, args ...any) (*protocol.Buffer, error) {
	if len(args) < 4 {
		return nil, badArgs(protocol.IDSetBlockServer)
	}
	x, okX := args[0].(int)
	y, okY := args[1].(int)
	z, okZ := args[2].(int)
	block, okB := args[3].(constants.Block)
	if !okX || !okY || !okZ || !okB {
		return nil, badArgs(protocol.IDSetBlockServer)
	}

	var buf protocol.Buffer
	buf.WriteShort(int16(x))
	buf.WriteShort(int16(y))
	buf.WriteShort(int16(z))
	_ = buf.WriteByte(byte(block))
	return &buf, nil
}

func serializeSpawnPlayer(c *Client, args ...any) (*protocol.Buffer, error) {
	if len(args) < 1 {
		return nil, badArgs(protocol.IDSpawnPlayer)
	}
	e, ok := args[0].(*world.Entity)
	if !ok {
		return nil, badArgs(protocol.IDSpawnPlayer)
	}
	if c.Entity() == nil {
		return nil, nil
	}

	var buf protocol.Buffer
	buf.WriteSByte(c.wireEntityID(e.ID))
	buf.WriteString(e.Username)
	buf.WriteShort(fixedPoint(e.X))
	buf.WriteShort(fixedPoint(e.Y))
	buf.WriteShort(fixedPoint(e.Z))
	_ = buf.WriteByte(e.Yaw)
	_ = buf.WriteByte(e.Pitch)
	return &buf, nil
}

// serializePositionStatic writes an absolute position. args: entity id,
// x/y/z in block units, yaw, pitch.
func serializePositionStatic(c *Client, args ...any) (*protocol.Buffer, error) {
	if len(args) < 6 {
		return nil, badArgs(protocol.IDPositionOrientation)
	}
	id, okID := args[0].(uint8)
	x, okX := args[1].(float64)
	y, okY := args[2].(float64)
	z, okZ := args[3].(float64)
	yaw, okYaw := args[4].(byte)
	pitch, okPitch := args[5].(byte)
	if !okID || !okX || !okY || !okZ || !okYaw || !okPitch {
		return nil, badArgs(protocol.IDPositionOrientation)
	}
	if c.Entity() == nil {
		return nil, nil
	}

	var buf protocol.Buffer
	buf.WriteSByte(c.wireEntityID(id))
	buf.WriteShort(fixedPoint(x))
	buf.WriteShort(fixedPoint(y))
	buf.WriteShort(fixedPoint(z))
	_ = buf.WriteByte(yaw)
	_ = buf.WriteByte(pitch)
	return &buf, nil
}

// serializePositionUpdate writes a relative movement. args: entity id,
// fixed-point deltas as i8, yaw, pitch.
func serializePositionUpdate(c *Client, args ...any) (*protocol.Buffer, error) {
	if len(args) < 6 {
		return nil, badArgs(protocol.IDPositionOrientationUpdate)
	}
	id, okID := args[0].(uint8)
	dx, okX := args[1].(int8)
	dy, okY := args[2].(int8)
	dz, okZ := args[3].(int8)
	yaw, okYaw := args[4].(byte)
	pitch, okPitch := args[5].(byte)
	if !okID || !okX || !okY || !okZ || !okYaw || !okPitch {
		return nil, badArgs(protocol.IDPositionOrientationUpdate)
	}

	var buf protocol.Buffer
	buf.WriteSByte(c.wireEntityID(id))
	buf.WriteSByte(dx)
	buf.WriteSByte(dy)
	buf.WriteSByte(dz)
	_ = buf.WriteByte(yaw)
	_ = buf.WriteByte(pitch)
	return &buf, nil
}

func serializeDespawnPlayer(c *Client, args ...any) (*protocol.Buffer, error) {
	if len(args) < 1 {
		return nil, badArgs(protocol.IDDespawnPlayer)
	}
	e, ok := args[0].(*world.Entity)
	if !ok {
		return nil, badArgs(protocol.IDDespawnPlayer)
	}

	var buf protocol.Buffer
	buf.WriteSByte(c.wireEntityID(e.ID))
	return &buf, nil
}

// serializeServerMessage writes a chat line. args: sender entity id,
// message text.
func serializeServerMessage(c *Client, args ...any) (*protocol.Buffer, error) {
	if len(args) < 2 {
		return nil, badArgs(protocol.IDMessage)
	}
	id, okID := args[0].(uint8)
	message, okMsg := args[1].(string)
	if !okID || !okMsg {
		return nil, badArgs(protocol.IDMessage)
	}

	var buf protocol.Buffer
	buf.WriteSByte(c.wireEntityID(id))
	buf.WriteString(message)
	return &buf, nil
}

func serializeDisconnectPlayer(c *Client, args ...any) (*protocol.Buffer, error) {
	if len(args) < 1 {
		return nil, badArgs(protocol.IDDisconnectPlayer)
	}
	reason, ok := args[0].(string)
	if !ok {
		return nil, badArgs(protocol.IDDisconnectPlayer)
	}

	var buf protocol.Buffer
	buf.WriteString(reason)
	return &buf, nil
}

// completeDisconnectPlayer closes the connection once the reason packet
// has flushed. Player teardown happens in the connection handler.
func completeDisconnectPlayer(c *Client) {
	c.markClosing()
	if len(c.sendCh) == 0 {
		c.Close()
	}
}
