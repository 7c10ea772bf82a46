package engine

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/luahook/internal/entity"
	"github.com/dshills/luahook/internal/lua"
)

// registerTypes installs the entity metatables.
func registerTypes(s *lua.State) {
	s.RegisterType(entity.TypeCreature, creatureMethods)
	s.RegisterType(entity.TypeCreatureTemplate, templateMethods)
	s.RegisterType(entity.TypeMap, mapMethods)
}

var creatureMethods = map[string]glua.LGFunction{
	"GetGUID": func(L *glua.LState) int {
		L.Push(glua.LNumber(lua.CheckEntity[*entity.Creature](L, 1).GUID))
		return 1
	},
	"GetEntry": func(L *glua.LState) int {
		L.Push(glua.LNumber(lua.CheckEntity[*entity.Creature](L, 1).Entry))
		return 1
	},
	"GetName": func(L *glua.LState) int {
		L.Push(glua.LString(lua.CheckEntity[*entity.Creature](L, 1).Name))
		return 1
	},
	"GetLevel": func(L *glua.LState) int {
		L.Push(glua.LNumber(lua.CheckEntity[*entity.Creature](L, 1).Level))
		return 1
	},
	"GetMapId": func(L *glua.LState) int {
		L.Push(glua.LNumber(lua.CheckEntity[*entity.Creature](L, 1).MapID))
		return 1
	},
}

var templateMethods = map[string]glua.LGFunction{
	"GetEntry": func(L *glua.LState) int {
		L.Push(glua.LNumber(lua.CheckEntity[*entity.CreatureTemplate](L, 1).Entry))
		return 1
	},
	"GetName": func(L *glua.LState) int {
		L.Push(glua.LString(lua.CheckEntity[*entity.CreatureTemplate](L, 1).Name))
		return 1
	},
	"GetMinLevel": func(L *glua.LState) int {
		L.Push(glua.LNumber(lua.CheckEntity[*entity.CreatureTemplate](L, 1).MinLevel))
		return 1
	},
	"GetMaxLevel": func(L *glua.LState) int {
		L.Push(glua.LNumber(lua.CheckEntity[*entity.CreatureTemplate](L, 1).MaxLevel))
		return 1
	},
}

var mapMethods = map[string]glua.LGFunction{
	"GetMapId": func(L *glua.LState) int {
		L.Push(glua.LNumber(lua.CheckEntity[*entity.Map](L, 1).ID))
		return 1
	},
	"GetInstanceId": func(L *glua.LState) int {
		L.Push(glua.LNumber(lua.CheckEntity[*entity.Map](L, 1).InstanceID))
		return 1
	},
	"GetName": func(L *glua.LState) int {
		L.Push(glua.LString(lua.CheckEntity[*entity.Map](L, 1).Name))
		return 1
	},
	"IsDungeon": func(L *glua.LState) int {
		L.Push(glua.LBool(lua.CheckEntity[*entity.Map](L, 1).IsDungeon()))
		return 1
	},
}
