package engine

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dshills/luahook/internal/config"
)

// scriptSet groups discovered scripts in load order.
type scriptSet struct {
	ext  []string
	lua  []string
	moon []string
}

// ordered returns the loadable scripts: extension modules first, then
// plain scripts, each group sorted by path.
func (s scriptSet) ordered() []string {
	out := make([]string, 0, len(s.ext)+len(s.lua))
	out = append(out, s.ext...)
	return append(out, s.lua...)
}

// discoverScripts walks root and classifies script files by extension.
func discoverScripts(root string) (scriptSet, error) {
	var set scriptSet
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".ext":
			set.ext = append(set.ext, path)
		case ".lua":
			set.lua = append(set.lua, path)
		case ".moon":
			set.moon = append(set.moon, path)
		}
		return nil
	})
	sort.Strings(set.ext)
	sort.Strings(set.lua)
	sort.Strings(set.moon)
	return set, err
}

// packagePath builds package.path so scripts can require siblings.
func (e *Engine) packagePath(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	paths := []string{
		filepath.Join(root, "?.lua"),
		filepath.Join(root, "?", "init.lua"),
	}
	if extra := e.cfg.String(config.RequirePaths); extra != "" {
		paths = append(paths, extra)
	}
	if cpaths := e.cfg.String(config.RequireCPaths); cpaths != "" {
		e.log.Warn().Str("cpath", cpaths).Msg("native modules are not supported, require_cpaths ignored")
	}
	return strings.Join(paths, ";")
}

// loadScripts runs every script under root. A failing script is logged and
// skipped. The caller holds mu.
func (e *Engine) loadScripts(root string) []*ScriptError {
	set, err := discoverScripts(root)
	if err != nil {
		e.log.Error().Err(err).Str("path", root).Msg("cannot read script path")
		return []*ScriptError{{Path: root, Err: err}}
	}

	for _, path := range set.moon {
		e.log.Debug().Str("path", path).Msg("skipping moonscript source")
	}

	useCache := e.cfg.Bool(config.BytecodeCache)
	var errs []*ScriptError
	loaded := 0
	for _, path := range set.ordered() {
		began := time.Now()
		if err := e.runScript(path, useCache); err != nil {
			ev := e.log.Error().Err(err).Str("path", path)
			if tb := traceback(err); tb != "" && e.cfg.Bool(config.TraceBack) {
				ev = ev.Str("traceback", tb)
			}
			ev.Msg("error loading script")
			errs = append(errs, &ScriptError{Path: path, Err: err})
			continue
		}
		loaded++
		e.log.Debug().Str("path", path).Dur("took", time.Since(began)).Msg("loaded script")
	}

	e.log.Info().Int("scripts", loaded).Int("failed", len(errs)).Msg("scripts loaded")
	return errs
}

func (e *Engine) runScript(path string, useCache bool) error {
	if !useCache {
		return e.state.DoFile(path)
	}
	proto, hit, err := e.protos.Load(path)
	if err != nil {
		return err
	}
	if hit {
		e.log.Debug().Str("path", path).Msg("bytecode cache hit")
	}
	return e.state.DoProto(proto)
}
