// Package nodes is the client-side cache of the node list carried in a
// tunnel session's Welcome frame, backing the `list-nodes` CLI subcommand
// and `--node` selection. Supplemented from the original distillation's
// --node/--list-nodes CLI surface, which the core spec left as a reserved,
// unspecified control path.
package nodes

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wsvpn/client/internal/frame"
)

const cacheFile = "nodes.json"

// Directory is a simple id->Node cache persisted to disk so `list-nodes` can
// answer without an active tunnel.
type Directory struct {
	path string
}

// Open returns a Directory backed by stateDir.
func Open(stateDir string) *Directory {
	return &Directory{path: filepath.Join(stateDir, cacheFile)}
}

// Update replaces the cached node list, as received in a Welcome frame.
func (d *Directory) Update(nodes map[string]frame.Node) error {
	b, err := json.MarshalIndent(nodes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(d.path, b, 0o600)
}

// Stale reports whether the cache is older than maxAge, or missing
// entirely — either way, `list-nodes` should refresh it with a short-lived
// connection before printing.
func (d *Directory) Stale(maxAge time.Duration) bool {
	info, err := os.Stat(d.path)
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > maxAge
}

// Entry is one cached node together with its id.
type Entry struct {
	ID   string
	Node frame.Node
}

// List returns the cached nodes sorted by id, or an empty slice if nothing
// has been cached yet.
func (d *Directory) List() ([]Entry, error) {
	b, err := os.ReadFile(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m map[string]frame.Node
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(m))
	for id, n := range m {
		entries = append(entries, Entry{ID: id, Node: n})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}
