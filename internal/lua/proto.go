package lua

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	glua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// ProtoCache keeps compiled chunks keyed by path. An entry is reused while
// the file's modification time and size are unchanged, so a reload only
// recompiles the scripts that were edited.
type ProtoCache struct {
	mu      sync.Mutex
	entries map[string]protoEntry
}

type protoEntry struct {
	modTime time.Time
	size    int64
	proto   *glua.FunctionProto
}

// NewProtoCache creates an empty cache.
func NewProtoCache() *ProtoCache {
	return &ProtoCache{entries: make(map[string]protoEntry)}
}

// Load returns the compiled chunk for path, compiling it on a miss.
// hit reports whether the cached chunk was reused.
func (c *ProtoCache) Load(path string) (proto *glua.FunctionProto, hit bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	e, ok := c.entries[path]
	c.mu.Unlock()
	if ok && e.modTime.Equal(info.ModTime()) && e.size == info.Size() {
		return e.proto, true, nil
	}

	proto, err = Compile(path)
	if err != nil {
		c.mu.Lock()
		delete(c.entries, path)
		c.mu.Unlock()
		return nil, false, err
	}

	c.mu.Lock()
	c.entries[path] = protoEntry{modTime: info.ModTime(), size: info.Size(), proto: proto}
	c.mu.Unlock()
	return proto, false, nil
}

// Len returns the number of cached chunks.
func (c *ProtoCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every cached chunk.
func (c *ProtoCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]protoEntry)
}

// Compile parses and compiles a Lua source file.
func Compile(path string) (*glua.FunctionProto, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	chunk, err := parse.Parse(bufio.NewReader(f), path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	proto, err := glua.Compile(chunk, path)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", path, err)
	}
	return proto, nil
}
