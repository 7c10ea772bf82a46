// Package config provides the settings cache for luahook.
//
// Settings are addressed by a fixed Key enumeration and resolved once per
// Initialize call from three layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← LUAHOOK_*
//	├─────────────────────────────┤
//	│  2. Config File             │  ← TOML or YAML, by extension
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Resolved values form an immutable snapshot. Readers never block: a reload
// builds a new snapshot and swaps it in atomically, and a failed reload keeps
// the previous one.
//
// # Basic Usage
//
//	cfg := config.New(config.WithFile("luahook.toml"))
//	if err := cfg.Initialize(false); err != nil {
//	    log.Fatal(err)
//	}
//
//	if cfg.Bool(config.Enabled) {
//	    path := cfg.String(config.ScriptPath)
//	    // ...
//	}
package config
