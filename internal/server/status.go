package server

import (
	"log/slog"
	"net/url"
	"strconv"

	"github.com/redstonecraft/redstone/internal/protocol"
	"github.com/redstonecraft/redstone/internal/scheduler"
)

// statusTaskName identifies the heartbeat in the scheduler. It runs at a
// negative priority so server advertisement beats other periodic work.
const statusTaskName = "status-update"

func (s *Server) setupHeartbeat() error {
	if s.cfg.HeartbeatURL == "" {
		return nil
	}
	_, err := s.sched.Add(statusTaskName, -1, s.cfg.HeartbeatInterval, s.heartbeat)
	return err
}

// heartbeat advertises the server to the public listing endpoint. Network
// failures are expected out in the wild and only logged at debug.
func (s *Server) heartbeat(*scheduler.Task) scheduler.Result {
	s.mu.Lock()
	users := s.worlds.NumPlayers()
	s.mu.Unlock()

	fields := url.Values{
		"port":     {strconv.Itoa(s.cfg.Port)},
		"max":      {strconv.Itoa(s.cfg.MaxPlayers)},
		"name":     {s.cfg.Name},
		"public":   {strconv.FormatBool(s.cfg.Public)},
		"version":  {strconv.Itoa(protocol.Version)},
		"salt":     {s.salt},
		"users":    {strconv.Itoa(users)},
		"software": {s.cfg.Software},
	}

	resp, err := s.http.PostForm(s.cfg.HeartbeatURL, fields)
	if err != nil {
		slog.Debug("failed to ping server list", "error", err)
		return scheduler.Wait
	}
	resp.Body.Close()

	return scheduler.Wait
}
