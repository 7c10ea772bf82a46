package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Extensions are the recognized script file types: Lua source, extension
// modules loaded ahead of plain scripts, and MoonScript sources.
var Extensions = []string{".lua", ".ext", ".moon"}

// IsWatchedFile reports whether name has a recognized extension.
func IsWatchedFile(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Snapshot maps absolute file paths to their last observed modification time.
type Snapshot map[string]time.Time

// Clone returns a copy of s.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Paths returns the tracked paths in sorted order.
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ScanError reports a filesystem failure while scanning.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scanning %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Scan walks root recursively and records every recognized file.
// Any filesystem error aborts the scan; the partial result is discarded.
func Scan(root string) (Snapshot, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &ScanError{Path: root, Err: err}
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, &ScanError{Path: absRoot, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Path: absRoot, Err: ErrNotDirectory}
	}

	snap := make(Snapshot)
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &ScanError{Path: path, Err: err}
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !IsWatchedFile(d.Name()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// removed between readdir and stat
				return nil
			}
			return &ScanError{Path: path, Err: err}
		}
		snap[path] = fi.ModTime()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ChangeSet lists the differences between two snapshots.
type ChangeSet struct {
	Added    []string
	Modified []string
	Removed  []string
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Len returns the number of changed paths.
func (c ChangeSet) Len() int {
	return len(c.Added) + len(c.Modified) + len(c.Removed)
}

// String summarizes the change set for logs.
func (c ChangeSet) String() string {
	var parts []string
	if n := len(c.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(c.Modified); n > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", n))
	}
	if n := len(c.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// Diff compares prev with next. Paths only in next are added, paths whose
// timestamps differ are modified, and paths only in prev are removed.
// Each list is sorted.
func Diff(prev, next Snapshot) ChangeSet {
	var cs ChangeSet
	for path, mod := range next {
		old, ok := prev[path]
		switch {
		case !ok:
			cs.Added = append(cs.Added, path)
		case !old.Equal(mod):
			cs.Modified = append(cs.Modified, path)
		}
	}
	for path := range prev {
		if _, ok := next[path]; !ok {
			cs.Removed = append(cs.Removed, path)
		}
	}
	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Removed)
	return cs
}
