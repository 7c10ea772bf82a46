package hook

import "fmt"

// Category distinguishes hook families.
type Category uint8

const (
	// CategoryServer holds runtime lifecycle and world-wide events.
	CategoryServer Category = iota + 1

	// CategoryAllCreature holds events fired for every creature.
	// Bindings may be scoped to a single creature GUID.
	CategoryAllCreature

	// CategoryMap holds map lifecycle events.
	// Bindings may be scoped to a single map id.
	CategoryMap

	categoryEnd
)

// Server events.
const (
	ServerEventLuaStateOpen uint32 = iota + 1
	ServerEventLuaStateClose
	ServerEventConfigLoad
	ServerEventMotdChange

	serverEventEnd
)

// All-creature events.
const (
	AllCreatureEventOnAdd uint32 = iota + 1
	AllCreatureEventOnRemove
	AllCreatureEventOnSelectLevel
	AllCreatureEventOnBeforeSelectLevel

	allCreatureEventEnd
)

// Map events.
const (
	MapEventOnCreate uint32 = iota + 1
	MapEventOnDestroy
	MapEventOnUpdate

	mapEventEnd
)

type categoryInfo struct {
	name     string
	eventEnd uint32
	scoped   bool
}

var categories = map[Category]categoryInfo{
	CategoryServer:      {name: "server", eventEnd: serverEventEnd},
	CategoryAllCreature: {name: "all_creature", eventEnd: allCreatureEventEnd, scoped: true},
	CategoryMap:         {name: "map", eventEnd: mapEventEnd, scoped: true},
}

// String returns the category name.
func (c Category) String() string {
	if info, ok := categories[c]; ok {
		return info.name
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// AllowsScope reports whether bindings of this category may carry an owner.
func (c Category) AllowsScope() bool {
	return categories[c].scoped
}

// Categories returns every known category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, len(categories))
	for c := CategoryServer; c < categoryEnd; c++ {
		out = append(out, c)
	}
	return out
}

// EventKey identifies a hook site. Keys compare and order by (Category, Event).
type EventKey struct {
	Category Category
	Event    uint32
}

// Key builds an EventKey.
func Key(category Category, event uint32) EventKey {
	return EventKey{Category: category, Event: event}
}

// Valid reports whether the key names a known hook site.
func (k EventKey) Valid() bool {
	info, ok := categories[k.Category]
	return ok && k.Event > 0 && k.Event < info.eventEnd
}

// Less orders keys by category, then event id.
func (k EventKey) Less(other EventKey) bool {
	if k.Category != other.Category {
		return k.Category < other.Category
	}
	return k.Event < other.Event
}

// String returns a "category:event" form used in logs.
func (k EventKey) String() string {
	return fmt.Sprintf("%s:%d", k.Category, k.Event)
}

// Events returns all valid keys for a category.
func Events(c Category) []EventKey {
	info, ok := categories[c]
	if !ok {
		return nil
	}
	keys := make([]EventKey, 0, info.eventEnd-1)
	for e := uint32(1); e < info.eventEnd; e++ {
		keys = append(keys, Key(c, e))
	}
	return keys
}
