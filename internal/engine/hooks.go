package engine

import (
	"github.com/dshills/luahook/internal/entity"
	"github.com/dshills/luahook/internal/hook"
	"github.com/dshills/luahook/internal/lua"
)

// Server hooks.

// OnConfigLoad notifies scripts that configuration was (re)loaded.
func (e *Engine) OnConfigLoad(reload bool) {
	e.broadcast(serverSite(hook.ServerEventConfigLoad), lua.Bool(reload))
}

var motdChain = chain[string]{
	site:   serverSite(hook.ServerEventMotdChange),
	param:  0,
	want:   "string",
	coerce: lua.Str,
	encode: lua.String,
	strict: true,
}

// OnMotdChange lets scripts rewrite the message of the day. A callback
// returning a non-string is an error; the remaining callbacks still run and
// *motd holds the last valid override.
func (e *Engine) OnMotdChange(motd *string) error {
	if motd == nil {
		return nil
	}
	v, err := overrideChain(e, motdChain, *motd, lua.Nil())
	*motd = v
	return err
}

// All-creature hooks.

// OnAllCreatureAddToWorld fires when a creature enters the world.
func (e *Engine) OnAllCreatureAddToWorld(c *entity.Creature) {
	if c == nil {
		return
	}
	e.broadcast(creatureSite(hook.AllCreatureEventOnAdd, c), lua.EntityValue(c))
}

// OnAllCreatureRemoveFromWorld fires when a creature leaves the world.
func (e *Engine) OnAllCreatureRemoveFromWorld(c *entity.Creature) {
	if c == nil {
		return
	}
	e.broadcast(creatureSite(hook.AllCreatureEventOnRemove, c), lua.EntityValue(c))
}

// OnAllCreatureSelectLevel fires after a creature's level was chosen.
func (e *Engine) OnAllCreatureSelectLevel(tmpl *entity.CreatureTemplate, c *entity.Creature) {
	if tmpl == nil || c == nil {
		return
	}
	e.broadcast(creatureSite(hook.AllCreatureEventOnSelectLevel, c),
		lua.EntityValue(tmpl), lua.EntityValue(c))
}

// OnAllCreatureBeforeSelectLevel lets scripts override the level about to be
// assigned. Values that are not integers in [0, 255] are ignored.
func (e *Engine) OnAllCreatureBeforeSelectLevel(tmpl *entity.CreatureTemplate, c *entity.Creature, level *uint8) {
	if tmpl == nil || c == nil || level == nil {
		return
	}
	ch := chain[uint8]{
		site:   creatureSite(hook.AllCreatureEventOnBeforeSelectLevel, c),
		param:  2,
		want:   "uint8",
		coerce: lua.Uint8,
		encode: func(v uint8) lua.Value { return lua.Int(int64(v)) },
	}
	*level, _ = overrideChain(e, ch, *level, lua.EntityValue(tmpl), lua.EntityValue(c), lua.Nil())
}

func creatureSite(event uint32, c *entity.Creature) site {
	return entitySite(hook.CategoryAllCreature, event, c.ScopeID())
}

// Map hooks.

// OnMapCreate fires when a map or instance is created.
func (e *Engine) OnMapCreate(m *entity.Map) {
	if m == nil {
		return
	}
	e.broadcast(mapSite(hook.MapEventOnCreate, m), lua.EntityValue(m))
}

// OnMapDestroy fires before a map or instance is destroyed.
func (e *Engine) OnMapDestroy(m *entity.Map) {
	if m == nil {
		return
	}
	e.broadcast(mapSite(hook.MapEventOnDestroy, m), lua.EntityValue(m))
}

// OnMapUpdate fires on every map tick with the elapsed milliseconds.
func (e *Engine) OnMapUpdate(m *entity.Map, diff uint32) {
	if m == nil {
		return
	}
	e.broadcast(mapSite(hook.MapEventOnUpdate, m), lua.EntityValue(m), lua.Int(int64(diff)))
}

func mapSite(event uint32, m *entity.Map) site {
	return entitySite(hook.CategoryMap, event, m.ScopeID())
}
