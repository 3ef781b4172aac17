package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redstonecraft/redstone/internal/config"
	"github.com/redstonecraft/redstone/internal/protocol"
	"github.com/redstonecraft/redstone/internal/scheduler"
	"github.com/redstonecraft/redstone/internal/world"
)

// Server owns the listener, the connection registry, the world registry,
// and the process-lifetime salt.
//
// mu is the game-state lock: every downstream packet handler, scheduler
// callback, and teardown path that touches worlds or entities runs under
// it, so handlers see a consistent world without per-structure locking.
type Server struct {
	cfg   config.Server
	salt  string
	sched *scheduler.Scheduler
	http  *http.Client

	mu      sync.Mutex
	clients *ClientManager
	worlds  *world.Manager

	lnMu     sync.Mutex
	listener net.Listener
}

// NewServer creates a server around the given scheduler. Setup must be
// called before Run.
func NewServer(cfg config.Server, sched *scheduler.Scheduler) (*Server, error) {
	salt, err := generateSalt()
	if err != nil {
		return nil, err
	}

	clients := NewClientManager()
	s := &Server{
		cfg:     cfg,
		salt:    salt,
		sched:   sched,
		http:    &http.Client{Timeout: 10 * time.Second},
		clients: clients,
	}
	s.worlds = world.NewManager(cfg.WorldsDir, clients)
	return s, nil
}

// Setup brings the world registry up from disk and registers the
// heartbeat task.
func (s *Server) Setup() error {
	if err := s.worlds.Setup(); err != nil {
		return err
	}
	return s.setupHeartbeat()
}

// Salt returns the process-lifetime auth salt.
func (s *Server) Salt() string {
	return s.salt
}

// Worlds returns the world registry.
func (s *Server) Worlds() *world.Manager {
	return s.worlds
}

// Clients returns the connection registry.
func (s *Server) Clients() *ClientManager {
	return s.clients
}

// Addr returns the address the server is listening on, or nil before Run.
func (s *Server) Addr() net.Addr {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from the given listener. Exposed for tests
// with custom listeners.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.lnMu.Lock()
	s.listener = ln
	s.lnMu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("classic server started", "address", ln.Addr(), "worlds", len(s.worlds.Worlds()))

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Warn("accept failed", "error", err)
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.HandleConn(ctx, conn)
		}()
	}

	wg.Wait()
	return ctx.Err()
}

// HandleConn runs one connection from accept to teardown. Exposed for
// tests driving the server over net.Pipe.
func (s *Server) HandleConn(ctx context.Context, conn net.Conn) {
	c := newClient(conn, s)
	s.clients.Register(c)
	go c.writePump()

	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	defer func() {
		s.mu.Lock()
		if e := c.Entity(); e != nil {
			if w := s.worlds.World(e.World); w != nil {
				w.RemovePlayer(c)
			}
		}
		s.mu.Unlock()
		s.clients.Unregister(c.id)
		c.Close()
	}()

	// The backlog is the hard cap on concurrent connections.
	if s.cfg.Backlog > 0 && s.clients.Count() > s.cfg.Backlog {
		s.mu.Lock()
		c.Dispatch(protocol.Upstream, protocol.IDDisconnectPlayer, "Server full.")
		s.mu.Unlock()
		<-c.closeCh
		return
	}

	slog.Debug("client connected", "client", c.id, "remote", conn.RemoteAddr())

	if err := c.readLoop(); err != nil &&
		!errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
		slog.Debug("client read loop ended", "client", c.id, "error", err)
	}

	slog.Debug("client disconnected", "client", c.id)
}
