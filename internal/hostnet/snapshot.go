// Package hostnet owns snapshotting and mutating the host's default routes
// and resolver configuration so that the tunnel interface becomes the
// default egress, with a crash-safe restore path. Grounded on the teacher's
// pkg/client/daemon/nat (idempotent iptables chain) and dns (resolv.conf
// handling) packages, generalized from their NAT-redirect use case to this
// client's default-route takeover.
package hostnet

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"

	"github.com/vishvananda/netlink"

	"github.com/wsvpn/client/internal/errcat"
)

const (
	snapshotFile = "original.snap"
	resolvBackup = "resolv.backup"
	resolvPath   = "/etc/resolv.conf"
)

// routeRecord is the JSON-serializable projection of a netlink.Route that
// this package needs to restore it later; netlink.Route itself doesn't
// round-trip cleanly through encoding/json.
type routeRecord struct {
	LinkIndex int    `json:"link_index"`
	Gw        string `json:"gw,omitempty"`
	Dst       string `json:"dst,omitempty"`
	Priority  int    `json:"priority"`
}

// Snapshot captures the host's default route set and the verbatim resolver
// file, taken before any mutation.
type Snapshot struct {
	Routes []routeRecord `json:"routes"`
	Resolv []byte        `json:"-"`
}

// Capture reads the current IPv4 default routes and /etc/resolv.conf.
func Capture() (*Snapshot, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, errcat.Unknown.Newf("list routes: %w", err)
	}
	s := &Snapshot{}
	for _, r := range routes {
		if r.Dst != nil {
			continue // only the default routes matter for restoration
		}
		rr := routeRecord{LinkIndex: r.LinkIndex, Priority: r.Priority}
		if r.Gw != nil {
			rr.Gw = r.Gw.String()
		}
		s.Routes = append(s.Routes, rr)
	}
	resolv, err := os.ReadFile(resolvPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, errcat.Unknown.Newf("read %s: %w", resolvPath, err)
	}
	s.Resolv = resolv
	return s, nil
}

// Persist writes the snapshot to stateDir so it survives a crash between
// Apply and Restore.
func (s *Snapshot) Persist(stateDir string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(stateDir, snapshotFile), b, 0o600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stateDir, resolvBackup), s.Resolv, 0o600)
}

// Load reads back a previously Persisted snapshot, or returns (nil, nil) if
// none exists.
func Load(stateDir string) (*Snapshot, error) {
	snapPath := filepath.Join(stateDir, snapshotFile)
	b, err := os.ReadFile(snapPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	resolv, err := os.ReadFile(filepath.Join(stateDir, resolvBackup))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	s.Resolv = resolv
	return &s, nil
}

// Clear removes the on-disk snapshot files; called after a successful
// Restore so a subsequent crash doesn't look like one still in progress.
func Clear(stateDir string) error {
	_ = os.Remove(filepath.Join(stateDir, snapshotFile))
	_ = os.Remove(filepath.Join(stateDir, resolvBackup))
	return nil
}

// restoreRoutes removes every current IPv4 default route, on any link, and
// reinstates the recorded ones. It is safe to call more than once.
func restoreRoutes(s *Snapshot) error {
	current, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return err
	}
	for _, r := range current {
		if r.Dst == nil {
			_ = netlink.RouteDel(&r) //nolint:gosec,exportloopref // one iteration, no escape
		}
	}
	for _, rr := range s.Routes {
		route := &netlink.Route{LinkIndex: rr.LinkIndex, Priority: rr.Priority}
		if rr.Gw != "" {
			route.Gw = net.ParseIP(rr.Gw)
		}
		// Idempotent: ignore "file exists" if it was never actually removed.
		_ = netlink.RouteAdd(route)
	}
	return nil
}

func writeResolvAtomic(content []byte) error {
	tmp := resolvPath + ".wsvpn.tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, resolvPath)
}
