package config

import "fmt"

// Key enumerates the known settings.
type Key int

const (
	// Booleans
	Enabled Key = iota
	TraceBack
	AutoReload
	BytecodeCache

	// Strings
	ScriptPath
	RequirePaths
	RequireCPaths

	// Integers
	AutoReloadInterval

	keyCount
)

// Kind is the value type of a setting.
type Kind uint8

const (
	KindBool Kind = iota
	KindString
	KindInt
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	default:
		return "unknown"
	}
}

// Setting defines a configuration setting with its metadata.
type Setting struct {
	// Path is the dot-separated path in the config file.
	Path string

	// Kind is the setting's value type.
	Kind Kind

	// Default is the value used when no layer sets the key.
	Default any

	// Description is human-readable documentation.
	Description string
}

var settings = [keyCount]Setting{
	Enabled: {
		Path: "scripting.enabled", Kind: KindBool, Default: false,
		Description: "Run hook scripts. When false every event entry point returns immediately.",
	},
	TraceBack: {
		Path: "scripting.traceback", Kind: KindBool, Default: false,
		Description: "Include Lua stack traces when logging callback faults.",
	},
	AutoReload: {
		Path: "scripting.autoreload", Kind: KindBool, Default: false,
		Description: "Watch the script tree and reload on change.",
	},
	BytecodeCache: {
		Path: "scripting.bytecode_cache", Kind: KindBool, Default: false,
		Description: "Keep compiled scripts across reloads.",
	},
	ScriptPath: {
		Path: "scripting.script_path", Kind: KindString, Default: "lua_scripts",
		Description: "Root directory of hook scripts.",
	},
	RequirePaths: {
		Path: "scripting.require_paths", Kind: KindString, Default: "",
		Description: "Extra package.path entries, separated by ';'.",
	},
	RequireCPaths: {
		Path: "scripting.require_cpaths", Kind: KindString, Default: "",
		Description: "Native module search paths. Not loadable by the embedded VM.",
	},
	AutoReloadInterval: {
		Path: "scripting.autoreload_interval", Kind: KindInt, Default: int64(1),
		Description: "Seconds between script tree scans.",
	},
}

// Keys returns every key in declaration order.
func Keys() []Key {
	keys := make([]Key, 0, keyCount)
	for k := Key(0); k < keyCount; k++ {
		keys = append(keys, k)
	}
	return keys
}

// Lookup returns the setting definition for k.
func Lookup(k Key) (Setting, bool) {
	if k < 0 || k >= keyCount {
		return Setting{}, false
	}
	return settings[k], true
}

// String returns the setting path.
func (k Key) String() string {
	if s, ok := Lookup(k); ok {
		return s.Path
	}
	return fmt.Sprintf("key(%d)", int(k))
}
