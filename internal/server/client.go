package server

import (
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/redstonecraft/redstone/internal/protocol"
	"github.com/redstonecraft/redstone/internal/world"
)

// Default write queue / timeout constants, used when the config leaves
// them unset.
const (
	defaultSendQueueSize = 256
	defaultWriteTimeout  = 5 * time.Second
	defaultReadTimeout   = 120 * time.Second
)

// Client is a single TCP peer: the framed read loop, the buffered outbound
// write path, and the attached player entity. It implements world.Conn.
type Client struct {
	id   uint64
	conn net.Conn
	srv  *Server

	// entity is nil until PlayerIdentification succeeds. Guarded by mu;
	// all game-state mutation around it runs under the server mutex.
	mu     sync.Mutex
	entity *world.Entity

	commands *commandParser

	// limiter caps inbound packet rate; nil disables flood protection.
	limiter *rate.Limiter

	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	closing   atomic.Bool // flush queued packets, then close

	overloadOnce sync.Once

	writeTimeout time.Duration
	readTimeout  time.Duration
}

func newClient(conn net.Conn, srv *Server) *Client {
	queueSize := srv.cfg.SendQueueSize
	if queueSize <= 0 {
		queueSize = defaultSendQueueSize
	}
	writeTimeout := srv.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	readTimeout := srv.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	c := &Client{
		conn:         conn,
		srv:          srv,
		sendCh:       make(chan []byte, queueSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
		readTimeout:  readTimeout,
	}
	c.commands = newCommandParser(c)

	if srv.cfg.FloodProtection {
		c.limiter = rate.NewLimiter(rate.Limit(srv.cfg.PacketsPerSecond), srv.cfg.PacketBurst)
	}
	return c
}

// ID returns the connection's registry key.
func (c *Client) ID() uint64 {
	return c.id
}

// Entity returns the attached player entity, or nil before login.
func (c *Client) Entity() *world.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entity
}

// SetEntity attaches or detaches the player entity.
func (c *Client) SetEntity(e *world.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entity = e
}

// wireEntityID translates an entity id for this recipient: a connection's
// own entity is always encoded as -1 on the wire.
func (c *Client) wireEntityID(id uint8) int8 {
	if own := c.Entity(); own != nil && own.ID == id {
		return -1
	}
	return int8(id)
}

// Send queues a framed packet for async delivery. Non-blocking: a full
// queue means the peer cannot keep up, so it is told off and dropped
// instead of stalling the caller.
func (c *Client) Send(frame []byte) error {
	select {
	case c.sendCh <- frame:
		return nil
	default:
		c.overloadOnce.Do(func() {
			slog.Warn("send queue full, disconnecting slow client", "client", c.id)

			var buf protocol.Buffer
			_ = buf.WriteByte(protocol.IDDisconnectPlayer)
			buf.WriteString("Server overloaded.")
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			_, _ = c.conn.Write(buf.Bytes())

			c.Close()
		})
		return errSendQueueFull
	}
}

// writePump is the dedicated writer goroutine for this client. It drains
// sendCh onto the connection and honors the flush-then-close flag set by
// an outgoing DisconnectPlayer.
func (c *Client) writePump() {
	for {
		select {
		case frame := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				slog.Warn("set write deadline failed", "client", c.id, "error", err)
				c.Close()
				return
			}
			if _, err := c.conn.Write(frame); err != nil {
				slog.Warn("write failed", "client", c.id, "error", err)
				c.Close()
				return
			}
			if c.closing.Load() && len(c.sendCh) == 0 {
				c.Close()
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// markClosing asks the writePump to close the connection once the queue
// has flushed. Used after an outgoing DisconnectPlayer so the reason
// packet reaches the peer.
func (c *Client) markClosing() {
	c.closing.Store(true)
}

// Close tears the transport down. Safe to call multiple times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		_ = c.conn.Close()
	})
}

// readLoop drives the framed inbound path: one id byte, then the fixed
// body the id implies. It returns when the peer disconnects, sends an
// unknown packet (framing is length-less, so an unknown id is
// unrecoverable), or trips flood protection.
func (c *Client) readLoop() error {
	var idBuf [1]byte
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return err
		}
		if _, err := io.ReadFull(c.conn, idBuf[:]); err != nil {
			return err
		}

		packetID := idBuf[0]
		size, ok := protocol.DownstreamSize(packetID)
		if !ok {
			slog.Warn("unknown client packet, dropping connection", "client", c.id, "packet", packetID)
			return nil
		}

		body := make([]byte, size)
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return err
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.srv.mu.Lock()
			c.Dispatch(protocol.Upstream, protocol.IDDisconnectPlayer, "Server overloaded.")
			c.srv.mu.Unlock()
			return nil
		}

		c.srv.mu.Lock()
		c.Dispatch(protocol.Downstream, packetID, protocol.NewBuffer(body))
		c.srv.mu.Unlock()

		select {
		case <-c.closeCh:
			return nil
		default:
		}
	}
}
