package hostnet

import (
	"context"

	"github.com/coreos/go-iptables/iptables"

	"github.com/datawire/dlib/dlog"
)

const chainName = "WSVPN_GUARD"

// killSwitch blocks IPv4 egress that isn't bound for loopback, the tunnel
// interface, or the VPN server itself, so a dropped session can't silently
// fall back to the host's normal route and leak traffic in the clear.
// Grounded on the teacher's iptablesRouter.Enable/Disable in
// pkg/client/daemon/nat/route_linux.go, which builds the same kind of
// idempotent custom chain (-D/-N/-F/-I/-A) for its NAT redirects; here the
// chain blocks instead of redirects, and uses the typed go-iptables client
// instead of shelling out to the iptables binary directly.
type killSwitch struct {
	ipt        *iptables.IPTables
	tunName    string
	serverHost string
}

func newKillSwitch(ctx context.Context, tunName, serverHost string) (*killSwitch, error) {
	ipt, err := iptables.New()
	if err != nil {
		return nil, err
	}
	k := &killSwitch{ipt: ipt, tunName: tunName, serverHost: serverHost}
	if err := k.install(ctx); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *killSwitch) install(ctx context.Context) error {
	// Idempotent: clear out and recreate the chain, then hook it into OUTPUT.
	_ = k.ipt.ClearChain("filter", chainName)
	if err := k.ipt.NewChain("filter", chainName); err != nil {
		// NewChain errors if the chain already exists; ClearChain above
		// already emptied it, so that's fine to ignore.
		dlog.Debugf(ctx, "leak-guard chain %s: %v", chainName, err)
	}
	_ = k.ipt.Delete("filter", "OUTPUT", "-j", chainName)
	if err := k.ipt.Insert("filter", "OUTPUT", 1, "-j", chainName); err != nil {
		return err
	}

	rules := [][]string{
		{"-o", "lo", "-j", "RETURN"},
		{"-o", k.tunName, "-j", "RETURN"},
		{"-d", k.serverHost, "-j", "RETURN"},
		{"-j", "DROP"},
	}
	for _, r := range rules {
		if err := k.ipt.Append("filter", chainName, r...); err != nil {
			return err
		}
	}
	return nil
}

func (k *killSwitch) remove(ctx context.Context) error {
	_ = k.ipt.Delete("filter", "OUTPUT", "-j", chainName)
	if err := k.ipt.ClearAndDeleteChain("filter", chainName); err != nil {
		dlog.Debugf(ctx, "leak-guard chain %s removal: %v", chainName, err)
		return err
	}
	return nil
}
