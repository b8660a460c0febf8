package hostnet

import (
	"context"
	"fmt"
	"net"

	"github.com/vishvananda/netlink"

	"github.com/datawire/dlib/dlog"
	"github.com/wsvpn/client/internal/errcat"
)

// Config is the client's handle on host routing/DNS state. One Config
// instance exists per run; StateDir is where crash-recovery snapshots live.
type Config struct {
	StateDir string
	guard    *killSwitch
	applied  *Snapshot
}

// RecoverIfNeeded restores host state left behind by a process that never
// reached a clean Restore (S5: crash between Apply and Restore). It must run
// before any new mutation.
func RecoverIfNeeded(ctx context.Context, stateDir string) error {
	s, err := Load(stateDir)
	if err != nil {
		return errcat.Unknown.Newf("inspect crash-recovery state: %w", err)
	}
	if s == nil {
		return nil
	}
	dlog.Warnf(ctx, "found leftover host-network snapshot in %s, restoring before startup", stateDir)
	if err := restoreRoutes(s); err != nil {
		return errcat.Unknown.Newf("restore routes during crash recovery: %w", err)
	}
	if len(s.Resolv) > 0 {
		if err := writeResolvAtomic(s.Resolv); err != nil {
			return errcat.Unknown.Newf("restore resolv.conf during crash recovery: %w", err)
		}
	}
	return Clear(stateDir)
}

// ApplyTunnelDefaults persists a snapshot, installs a higher-priority
// default route via gateway on tunName, replaces the resolver with
// dnsServers, and raises the leak-guard kill switch. Every sub-step after
// the persisted snapshot is undone by Restore.
func (c *Config) ApplyTunnelDefaults(ctx context.Context, tunName, gateway string, dnsServers []string, serverHost string) error {
	snap, err := Capture()
	if err != nil {
		return err
	}
	if err := snap.Persist(c.StateDir); err != nil {
		return errcat.Permission.Newf("persist route snapshot: %w", err)
	}
	c.applied = snap

	link, err := netlink.LinkByName(tunName)
	if err != nil {
		return errcat.Unknown.Newf("lookup link %s: %w", tunName, err)
	}
	route := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Gw:        net.ParseIP(gateway),
		Priority:  1, // outrank the pre-existing default route(s)
	}
	if err := netlink.RouteAdd(route); err != nil {
		return errcat.Permission.Newf("install default route via %s: %w", tunName, err)
	}

	resolvConf := buildResolvConf(dnsServers)
	if err := writeResolvAtomic([]byte(resolvConf)); err != nil {
		return errcat.Permission.Newf("replace resolver configuration: %w", err)
	}

	if serverHost != "" {
		guard, err := newKillSwitch(ctx, tunName, serverHost)
		if err != nil {
			dlog.Errorf(ctx, "leak-guard not installed: %v", err)
		} else {
			c.guard = guard
		}
	}
	return nil
}

// Restore undoes ApplyTunnelDefaults. It is idempotent: calling it twice, or
// calling it before ApplyTunnelDefaults persisted a snapshot, is a no-op
// that returns nil. A partly failed ApplyTunnelDefaults is still restored.
func (c *Config) Restore(ctx context.Context) error {
	if c.applied == nil {
		return nil
	}
	var firstErr error
	record := func(step string, err error) {
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", step, err)
		}
	}

	if c.guard != nil {
		record("remove leak guard", c.guard.remove(ctx))
		c.guard = nil
	}
	record("restore routes", restoreRoutes(c.applied))
	if len(c.applied.Resolv) > 0 {
		record("restore resolver", writeResolvAtomic(c.applied.Resolv))
	}
	record("clear snapshot", Clear(c.StateDir))
	c.applied = nil
	if firstErr != nil {
		return errcat.Unknown.Newf("host network restore incomplete: %w", firstErr)
	}
	return nil
}

func buildResolvConf(servers []string) string {
	out := "# replaced by wsvpn client\n"
	for _, s := range servers {
		out += "nameserver " + s + "\n"
	}
	return out
}
