package world

import (
	"sort"

	"github.com/redstonecraft/redstone/internal/constants"
)

// Kind discriminates player entities from server-driven ones.
type Kind int

const (
	NonPlayer Kind = iota
	Player
)

// Entity is one thing with a position in a world. Positions are world
// coordinates in block units; the wire protocol scales them by 32.
//
// Entities carry no connection pointer; the server resolves an entity id
// back to its connection through the client registry.
type Entity struct {
	ID    uint8
	X     float64
	Y     float64
	Z     float64
	Yaw   byte
	Pitch byte
	World string
	Kind  Kind

	// Player-only fields.
	Username string
	Rank     constants.Rank
	Muted    bool
	// MuteGen counts mute state flips. A timed unmute only fires if the
	// generation still matches its own mute, so it never clobbers a later
	// manual mute or unmute.
	MuteGen uint64
}

// IsPlayer reports whether the entity belongs to a connected player.
func (e *Entity) IsPlayer() bool {
	return e.Kind == Player
}

// EntityManager owns the entities of one world and their id pool.
type EntityManager struct {
	allocator *UniqueIDAllocator
	entities  map[uint8]*Entity
}

// NewEntityManager creates an empty entity set.
func NewEntityManager() *EntityManager {
	return &EntityManager{
		allocator: NewUniqueIDAllocator(),
		entities:  make(map[uint8]*Entity),
	}
}

// Allocator returns the world's id pool.
func (em *EntityManager) Allocator() *UniqueIDAllocator {
	return em.allocator
}

// Add registers an entity under its id. Adding a taken id is a no-op.
func (em *EntityManager) Add(e *Entity) {
	if _, exists := em.entities[e.ID]; exists {
		return
	}
	em.entities[e.ID] = e
}

// Remove drops the entity with the given id.
func (em *EntityManager) Remove(id uint8) {
	delete(em.entities, id)
}

// Has reports whether an entity with the given id exists.
func (em *EntityManager) Has(id uint8) bool {
	_, ok := em.entities[id]
	return ok
}

// Get returns the entity with the given id, or nil.
func (em *EntityManager) Get(id uint8) *Entity {
	return em.entities[id]
}

// Len returns the number of entities.
func (em *EntityManager) Len() int {
	return len(em.entities)
}

// All returns the entities ordered by id.
func (em *EntityManager) All() []*Entity {
	out := make([]*Entity, 0, len(em.entities))
	for _, e := range em.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
