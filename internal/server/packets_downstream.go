package server

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/redstonecraft/redstone/internal/constants"
	"github.com/redstonecraft/redstone/internal/protocol"
)

// handlePlayerIdentification runs the auth handshake: reject taken names
// and full servers, verify md5(salt||username) in constant time, then
// chain into ServerIdentification which joins the main world.
func handlePlayerIdentification(c *Client, buf *protocol.Buffer) error {
	if _, err := buf.ReadByte(); err != nil { // protocol version
		return err
	}
	username, err := buf.ReadString()
	if err != nil {
		return err
	}
	verifyKey, err := buf.ReadString()
	if err != nil {
		return err
	}
	if _, err := buf.ReadByte(); err != nil { // client type
		return err
	}

	s := c.srv
	if s.worlds.EntityFromUsername(username) != nil {
		c.Dispatch(protocol.Upstream, protocol.IDDisconnectPlayer,
			"There is already a player logged in with that username!")
		return nil
	}

	if s.cfg.MaxPlayers > 0 && s.worlds.NumPlayers() >= s.cfg.MaxPlayers {
		c.Dispatch(protocol.Upstream, protocol.IDDisconnectPlayer, "Server full.")
		return nil
	}

	sum := md5.Sum([]byte(s.salt + username))
	expected := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(verifyKey), []byte(expected)) != 1 {
		c.Dispatch(protocol.Upstream, protocol.IDDisconnectPlayer,
			"Not authenticated with classicube.net!")
		return nil
	}

	c.Dispatch(protocol.Upstream, protocol.IDIdentification, username)
	return nil
}

// handleSetBlockClient applies one block edit. Destroy mode writes air
// regardless of the held block; out-of-range edits are ignored silently.
func handleSetBlockClient(c *Client, buf *protocol.Buffer) error {
	x, err := buf.ReadShort()
	if err != nil {
		return err
	}
	y, err := buf.ReadShort()
	if err != nil {
		return err
	}
	z, err := buf.ReadShort()
	if err != nil {
		return err
	}
	mode, err := buf.ReadByte()
	if err != nil {
		return err
	}
	blockID, err := buf.ReadByte()
	if err != nil {
		return err
	}

	e := c.Entity()
	if e == nil {
		return nil
	}
	w := c.srv.worlds.World(e.World)
	if w == nil {
		return nil
	}

	block := constants.Block(blockID)
	if constants.ClickMode(mode) == constants.ClickDestroy {
		block = constants.BlockAir
	}

	if err := w.SetBlock(int(x), int(y), int(z), block, true); err != nil {
		return nil
	}

	c.srv.worlds.Broadcast(w, protocol.Upstream, protocol.IDSetBlockServer,
		[]uint64{c.id}, int(x), int(y), int(z), block)
	return nil
}

// handlePositionAndOrientation relays a movement. Small moves go out as
// relative i8 deltas, anything that cannot fit as an absolute position.
func handlePositionAndOrientation(c *Client, buf *protocol.Buffer) error {
	claimedID, err := buf.ReadByte()
	if err != nil {
		return err
	}
	xs, err := buf.ReadShort()
	if err != nil {
		return err
	}
	ys, err := buf.ReadShort()
	if err != nil {
		return err
	}
	zs, err := buf.ReadShort()
	if err != nil {
		return err
	}
	yaw, err := buf.ReadByte()
	if err != nil {
		return err
	}
	pitch, err := buf.ReadByte()
	if err != nil {
		return err
	}

	e := c.Entity()
	if e == nil {
		return nil
	}
	w := c.srv.worlds.World(e.World)
	if w == nil {
		return nil
	}

	x := float64(xs) / 32.0
	y := float64(ys) / 32.0
	z := float64(zs) / 32.0

	dx := -(e.X - x) * 32.0
	dy := -(e.Y - y) * 32.0
	dz := -(e.Z - z) * 32.0

	e.X, e.Y, e.Z = x, y, z
	e.Yaw, e.Pitch = yaw, pitch

	if outOfSByte(dx) || outOfSByte(dy) || outOfSByte(dz) {
		c.srv.worlds.Broadcast(w, protocol.Upstream, protocol.IDPositionOrientation,
			[]uint64{c.id}, e.ID, e.X, e.Y, e.Z, e.Yaw, e.Pitch)
		return nil
	}

	reportID := e.ID
	if claimedID != protocol.SelfID {
		reportID = claimedID
	}

	c.srv.worlds.Broadcast(w, protocol.Upstream, protocol.IDPositionOrientationUpdate,
		[]uint64{c.id}, reportID, int8(dx), int8(dy), int8(dz), e.Yaw, e.Pitch)
	return nil
}

func outOfSByte(v float64) bool {
	return v < -128 || v > 127
}

// handleClientMessage routes chat: muted players are silent, /-prefixed
// lines go to the command dispatcher (responses to the caller only), and
// everything else is broadcast with the sender's rank color.
func handleClientMessage(c *Client, buf *protocol.Buffer) error {
	if _, err := buf.ReadByte(); err != nil { // player id, unused
		return err
	}
	message, err := buf.ReadString()
	if err != nil {
		return err
	}

	e := c.Entity()
	if e == nil {
		return nil
	}
	if e.Muted {
		return nil
	}

	if strings.HasPrefix(message, "/") {
		for _, line := range c.commands.parse(message) {
			c.Dispatch(protocol.Upstream, protocol.IDMessage, e.ID, line)
		}
		return nil
	}

	slog.Info("chat message", "player", e.Username, "message", message)

	formatted := rankColor(e.Rank) + e.Username + constants.ColorWhite + ": " + sanitizeChat(message)
	c.srv.clients.Broadcast(protocol.Upstream, protocol.IDMessage, nil, e.ID, formatted)
	return nil
}

// sanitizeChat strips a single trailing ampersand: a dangling color code
// crashes the original classic client.
func sanitizeChat(message string) string {
	return strings.TrimSuffix(message, "&")
}

func rankColor(r constants.Rank) string {
	switch r {
	case constants.RankAdministrator:
		return constants.ColorYellow
	default:
		return constants.ColorDarkGray
	}
}
