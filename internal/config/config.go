package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the classic server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
	Backlog     int    `yaml:"backlog"` // concurrent connection cap

	// Identity, as advertised to clients and the listing endpoint
	Name     string `yaml:"name"`
	MOTD     string `yaml:"motd"`
	Software string `yaml:"software"`
	Public   bool   `yaml:"public"`

	// Players
	MaxPlayers int      `yaml:"max_players"`
	Admins     []string `yaml:"admins"` // usernames granted Administrator at join

	// Worlds
	WorldsDir string `yaml:"worlds_dir"`

	// Heartbeat
	HeartbeatURL      string        `yaml:"heartbeat_url"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// Write queue / timeouts
	SendQueueSize int           `yaml:"send_queue_size"` // per-client outbox capacity
	WriteTimeout  time.Duration `yaml:"write_timeout"`   // per-write deadline
	ReadTimeout   time.Duration `yaml:"read_timeout"`    // idle client disconnect

	// Flood protection
	FloodProtection  bool `yaml:"flood_protection"`
	PacketsPerSecond int  `yaml:"packets_per_second"`
	PacketBurst      int  `yaml:"packet_burst"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// DefaultServer returns Server config with sensible defaults. The identity
// strings are the ones legacy clients historically saw from this server.
func DefaultServer() Server {
	return Server{
		BindAddress:       "0.0.0.0",
		Port:              25565,
		Backlog:           1024,
		Name:              "A Minecraft classic server!",
		MOTD:              "Welcome to the custom Mineserver!",
		Software:          "Redstone",
		Public:            true,
		MaxPlayers:        1024,
		WorldsDir:         "worlds",
		HeartbeatURL:      "http://www.classicube.net/server/heartbeat",
		HeartbeatInterval: 5 * time.Second,
		SendQueueSize:     256,
		WriteTimeout:      5 * time.Second,
		ReadTimeout:       120 * time.Second,
		FloodProtection:   true,
		PacketsPerSecond:  100,
		PacketBurst:       200,
		LogLevel:          "info",
	}
}

// LoadServer loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
