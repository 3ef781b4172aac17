package server

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/redstonecraft/redstone/internal/protocol"
)

var errSendQueueFull = errors.New("send queue full")

// upstreamPacket is one server→client packet: serialize builds the body
// (nil means nothing is sent), complete is the post-callback that may
// chain further dispatches. The callback always runs, sent or not.
type upstreamPacket struct {
	serialize func(c *Client, args ...any) (*protocol.Buffer, error)
	complete  func(c *Client)
}

// downstreamPacket is one client→server packet: parse the body and carry
// out the action. A parse error tears the connection down.
type downstreamPacket func(c *Client, buf *protocol.Buffer) error

var upstreamPackets map[byte]upstreamPacket

var downstreamPackets map[byte]downstreamPacket

func init() {
	upstreamPackets = map[byte]upstreamPacket{
		protocol.IDIdentification:            {serialize: serializeServerIdentification, complete: completeServerIdentification},
		protocol.IDPing:                      {serialize: serializePing},
		protocol.IDLevelInitialize:           {serialize: serializeLevelInitialize, complete: completeLevelInitialize},
		protocol.IDLevelDataChunk:            {serialize: serializeLevelDataChunk},
		protocol.IDLevelFinalize:             {serialize: serializeLevelFinalize, complete: completeLevelFinalize},
		protocol.IDSetBlockServer:            {serialize: serializeSetBlockServer},
		protocol.IDSpawnPlayer:               {serialize: serializeSpawnPlayer},
		protocol.IDPositionOrientation:       {serialize: serializePositionStatic},
		protocol.IDPositionOrientationUpdate: {serialize: serializePositionUpdate},
		protocol.IDDespawnPlayer:             {serialize: serializeDespawnPlayer},
		protocol.IDMessage:                   {serialize: serializeServerMessage},
		protocol.IDDisconnectPlayer:          {serialize: serializeDisconnectPlayer, complete: completeDisconnectPlayer},
	}

	downstreamPackets = map[byte]downstreamPacket{
		protocol.IDIdentification:      handlePlayerIdentification,
		protocol.IDSetBlockClient:      handleSetBlockClient,
		protocol.IDPositionOrientation: handlePositionAndOrientation,
		protocol.IDMessage:             handleClientMessage,
	}
}

// Dispatch routes one packet through the (direction, id) table. Upstream:
// serialize, frame with the id byte, queue for the writer, then run the
// post-callback. Downstream: parse and act; failures drop the connection.
// Unknown pairs are discarded with a warning.
func (c *Client) Dispatch(direction protocol.Direction, packetID byte, args ...any) {
	if direction == protocol.Downstream {
		h, ok := downstreamPackets[packetID]
		if !ok {
			slog.Warn("discarding incoming packet", "client", c.id, "packet", packetID)
			return
		}
		buf, ok := args[0].(*protocol.Buffer)
		if !ok {
			slog.Warn("downstream dispatch without a body buffer", "client", c.id, "packet", packetID)
			return
		}
		if err := h(c, buf); err != nil {
			c.Close()
		}
		return
	}

	h, ok := upstreamPackets[packetID]
	if !ok {
		slog.Warn("discarding outgoing packet", "client", c.id, "packet", packetID)
		return
	}

	buf, err := h.serialize(c, args...)
	switch {
	case err != nil:
		slog.Warn("serializing packet failed", "client", c.id, "packet", packetID, "error", err)
	case buf != nil:
		frame := make([]byte, 0, 1+buf.Len())
		frame = append(frame, packetID)
		frame = append(frame, buf.Bytes()...)
		_ = c.Send(frame)
	}

	if h.complete != nil {
		h.complete(c)
	}
}

func badArgs(packetID byte) error {
	return fmt.Errorf("packet 0x%02x: bad dispatch arguments", packetID)
}
