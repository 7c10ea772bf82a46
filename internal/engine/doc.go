// Package engine runs hook scripts and dispatches host events to them.
//
// An Engine owns one Lua state, the binding registry, and the global
// execution lock. Every guest call, script load, and reload happens with the
// lock held, so the guest runtime never sees two callers at once.
//
// # Calling Conventions
//
// Broadcast hooks invoke every matching binding in order and ignore results.
// Override-chain hooks pass a mutable parameter; each callback that returns a
// type-correct value replaces it, and later callbacks see the replacement.
// The last valid responder wins.
//
// # Fast Path
//
// Before taking the lock, each hook checks the enable flag and
// Registry.HasBindings. Neither touches the lock, so a hook site without
// scripts costs two atomic reads.
//
// # Reload
//
// Reload tears down the state and registry and rebuilds them from the script
// tree. It is the single entry point used by operators, the CLI, and the
// file watcher.
//
//	cfg := config.New(config.WithFile("luahook.toml"))
//	if err := cfg.Initialize(false); err != nil {
//		return err
//	}
//	eng := engine.New(cfg, engine.WithLogger(log))
//	if err := eng.Start(); err != nil {
//		return err
//	}
//	defer eng.Close()
//
//	level := uint8(10)
//	eng.OnAllCreatureBeforeSelectLevel(tmpl, creature, &level)
package engine
