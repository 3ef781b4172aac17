package protocol

// Direction tells which way a packet travels. The same id can name a
// different packet in each direction (0x00 is PlayerIdentification from
// the client and ServerIdentification from the server).
type Direction int

const (
	// Upstream packets are server → client.
	Upstream Direction = iota
	// Downstream packets are client → server.
	Downstream
)

// String returns the direction name for logging.
func (d Direction) String() string {
	if d == Upstream {
		return "upstream"
	}
	return "downstream"
}

// Version is the classic protocol version this server speaks.
const Version = 0x07

// SelfID is the on-wire entity id meaning "the recipient's own entity",
// encoded as -1 in signed-byte fields. It is never allocated.
const SelfID = 0xff

// Packet ids. Ids are shared between directions; the (direction, id) pair
// identifies a packet.
const (
	IDIdentification            = 0x00 // D: PlayerIdentification, U: ServerIdentification
	IDPing                      = 0x01 // U
	IDLevelInitialize           = 0x02 // U
	IDLevelDataChunk            = 0x03 // U
	IDLevelFinalize             = 0x04 // U
	IDSetBlockClient            = 0x05 // D
	IDSetBlockServer            = 0x06 // U
	IDSpawnPlayer               = 0x07 // U
	IDPositionOrientation       = 0x08 // D absolute, U static absolute
	IDPositionOrientationUpdate = 0x09 // U relative
	IDDespawnPlayer             = 0x0c // U
	IDMessage                   = 0x0d // both
	IDDisconnectPlayer          = 0x0e // U
)

// downstreamSizes maps a client packet id to its fixed body length.
// Classic framing is length-less; the parser must know each size.
var downstreamSizes = map[byte]int{
	IDIdentification:      1 + StringLength + StringLength + 1,
	IDSetBlockClient:      2 + 2 + 2 + 1 + 1,
	IDPositionOrientation: 1 + 2 + 2 + 2 + 1 + 1,
	IDMessage:             1 + StringLength,
}

// DownstreamSize returns the fixed body length of a client packet, and
// false if the id names no known downstream packet.
func DownstreamSize(id byte) (int, bool) {
	n, ok := downstreamSizes[id]
	return n, ok
}
