package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/redstonecraft/redstone/internal/protocol"
)

// MainWorldName is the distinguished world every player joins by default.
// It must exist after Setup.
const MainWorldName = "main"

// Conn is the slice of a client connection the world layer needs: a stable
// numeric key, the attached entity, and the outbound dispatch path.
// Implemented by the server's client type.
type Conn interface {
	ID() uint64
	Entity() *Entity
	SetEntity(*Entity)
	Dispatch(direction protocol.Direction, packetID byte, args ...any)
}

// Fabric is the broadcast surface of the connection registry. Broadcast
// fans a packet out to every connection except those whose ids are listed;
// Connections returns the registry in insertion order.
type Fabric interface {
	Broadcast(direction protocol.Direction, packetID byte, exceptions []uint64, args ...any)
	Connections() []Conn
}

// worldProperties is the on-disk registry of world names.
type worldProperties struct {
	Worlds []string `json:"worlds"`
}

// Manager owns the named world registry and its persistence directory.
type Manager struct {
	fabric Fabric
	dir    string
	worlds map[string]*World
}

// NewManager creates a manager persisting under dir and broadcasting
// through fabric.
func NewManager(dir string, fabric Fabric) *Manager {
	return &Manager{
		fabric: fabric,
		dir:    dir,
		worlds: make(map[string]*World),
	}
}

// WorldPath returns the .dat file path for a world name.
func (m *Manager) WorldPath(name string) string {
	return filepath.Join(m.dir, name+".dat")
}

func (m *Manager) propertiesPath() string {
	return filepath.Join(m.dir, "properties.json")
}

// Setup prepares the worlds directory and brings every registered world
// into memory: listed worlds with a .dat file are loaded, the rest are
// generated and saved. A corrupt main world aborts startup; other corrupt
// worlds are logged and skipped.
func (m *Manager) Setup() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("creating worlds directory: %w", err)
	}

	props, err := m.readProperties()
	if err != nil {
		return err
	}

	for _, name := range props.Worlds {
		if _, err := os.Stat(m.WorldPath(name)); os.IsNotExist(err) {
			if _, err := m.Create(name); err != nil {
				return err
			}
			continue
		}

		if _, err := m.Load(name); err != nil {
			if name == MainWorldName {
				return fmt.Errorf("loading main world: %w", err)
			}
			slog.Warn("skipping unloadable world", "world", name, "error", err)
		}
	}

	if m.Main() == nil {
		return errors.New("world registry does not contain the main world")
	}
	return nil
}

func (m *Manager) readProperties() (worldProperties, error) {
	path := m.propertiesPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		props := worldProperties{Worlds: []string{MainWorldName}}
		data, err := json.MarshalIndent(props, "", "    ")
		if err != nil {
			return props, fmt.Errorf("encoding world properties: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return props, fmt.Errorf("writing world properties: %w", err)
		}
		return props, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return worldProperties{}, fmt.Errorf("reading world properties: %w", err)
	}

	var props worldProperties
	if err := json.Unmarshal(data, &props); err != nil {
		return props, fmt.Errorf("parsing world properties: %w", err)
	}
	return props, nil
}

// Create generates a fresh world, saves it, and registers it.
func (m *Manager) Create(name string) (*World, error) {
	slog.Info("creating new world", "world", name)

	w := newWorld(m, name, nil)
	if err := w.Save(); err != nil {
		return nil, err
	}
	m.add(w)
	return w, nil
}

// Load reads a world's .dat file into memory and registers it.
func (m *Manager) Load(name string) (*World, error) {
	slog.Info("loading world", "world", name)

	data, err := os.ReadFile(m.WorldPath(name))
	if err != nil {
		return nil, fmt.Errorf("reading world %s: %w", name, err)
	}
	blocks, err := LoadBlocks(data)
	if err != nil {
		return nil, fmt.Errorf("loading world %s: %w", name, err)
	}

	w := newWorld(m, name, blocks)
	m.add(w)
	return w, nil
}

func (m *Manager) writeWorldFile(name string, data []byte) error {
	if err := os.WriteFile(m.WorldPath(name), data, 0o644); err != nil {
		return fmt.Errorf("writing world %s: %w", name, err)
	}
	return nil
}

func (m *Manager) add(w *World) {
	if _, exists := m.worlds[w.name]; exists {
		return
	}
	m.worlds[w.name] = w
}

// Main returns the distinguished main world, or nil before Setup.
func (m *Manager) Main() *World {
	return m.worlds[MainWorldName]
}

// World returns the named world, or nil.
func (m *Manager) World(name string) *World {
	return m.worlds[name]
}

// Worlds returns all live worlds ordered by name.
func (m *Manager) Worlds() []*World {
	out := make([]*World, 0, len(m.worlds))
	for _, w := range m.worlds {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// WorldFromEntity returns the world holding the entity id, or nil.
func (m *Manager) WorldFromEntity(id uint8) *World {
	for _, w := range m.Worlds() {
		if w.entities.Has(id) {
			return w
		}
	}
	return nil
}

// EntityFromUsername returns the player entity with the given username in
// any world, or nil. Usernames are unique server-wide while connected.
func (m *Manager) EntityFromUsername(username string) *Entity {
	for _, w := range m.Worlds() {
		for _, e := range w.entities.All() {
			if e.Username == username {
				return e
			}
		}
	}
	return nil
}

// NumPlayers counts player entities across all worlds.
func (m *Manager) NumPlayers() int {
	n := 0
	for _, w := range m.Worlds() {
		for _, e := range w.entities.All() {
			if e.IsPlayer() {
				n++
			}
		}
	}
	return n
}

// Broadcast fans a packet out to the connections of one world: the
// exception list is extended with every connection whose entity is absent
// from that world (including entity-less connections) before handing off
// to the fabric. The caller's exception list is copied, never mutated.
func (m *Manager) Broadcast(w *World, direction protocol.Direction, packetID byte, exceptions []uint64, args ...any) {
	ex := slices.Clone(exceptions)

	for _, c := range m.fabric.Connections() {
		e := c.Entity()
		if e == nil || e.World != w.name {
			ex = append(ex, c.ID())
		}
	}

	m.fabric.Broadcast(direction, packetID, ex, args...)
}
