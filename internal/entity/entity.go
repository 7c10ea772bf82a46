// Package entity holds the host objects passed to hook scripts.
package entity

// Type names used for script metatables.
const (
	TypeCreature         = "Creature"
	TypeCreatureTemplate = "CreatureTemplate"
	TypeMap              = "Map"
)

// Creature is a spawned creature.
type Creature struct {
	GUID  uint64
	Entry uint32
	Name  string
	Level uint8
	MapID uint32
}

// TypeName implements lua.Entity.
func (c *Creature) TypeName() string { return TypeCreature }

// ScopeID is the owner id creature-scoped bindings match against.
func (c *Creature) ScopeID() uint64 { return c.GUID }

// CreatureTemplate is the static definition a creature spawns from.
type CreatureTemplate struct {
	Entry    uint32
	Name     string
	MinLevel uint8
	MaxLevel uint8
}

// TypeName implements lua.Entity.
func (t *CreatureTemplate) TypeName() string { return TypeCreatureTemplate }

// Map is a loaded world map or instance.
type Map struct {
	ID         uint32
	InstanceID uint32
	Name       string
}

// TypeName implements lua.Entity.
func (m *Map) TypeName() string { return TypeMap }

// ScopeID is the owner id map-scoped bindings match against.
func (m *Map) ScopeID() uint64 { return uint64(m.ID) }

// IsDungeon reports whether the map is an instanced copy.
func (m *Map) IsDungeon() bool { return m.InstanceID != 0 }
