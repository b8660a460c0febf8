// Package supervisor wires TunInterface, HostNetConfig, SessionClient, and
// PacketPump together and owns their startup/shutdown ordering and signal
// handling. Grounded on the teacher's pkg/client/daemon/service.go run()
// function: the same dgroup.NewGroup(ctx, dgroup.GroupConfig{...}) task-group
// shape, generalized from that file's gRPC/DNS/outbound-router workers to
// this client's session/pump pair.
package supervisor

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"

	"github.com/wsvpn/client/internal/config"
	"github.com/wsvpn/client/internal/errcat"
	"github.com/wsvpn/client/internal/frame"
	"github.com/wsvpn/client/internal/hostnet"
	"github.com/wsvpn/client/internal/logging"
	"github.com/wsvpn/client/internal/nodes"
	"github.com/wsvpn/client/internal/pump"
	"github.com/wsvpn/client/internal/session"
	"github.com/wsvpn/client/internal/tun"
)

// Supervisor runs one end-to-end tunnel lifetime: connect, take over host
// routing, pump packets, and tear everything back down on exit.
type Supervisor struct {
	cfg      *config.ClientConfig
	stateDir string
	nodeDir  *nodes.Directory
	watcher  *config.Watcher

	// PreselectedNode, if set, is sent as a node_select before packets start
	// flowing, per the CLI's `--node` flag.
	PreselectedNode string
}

// New builds a Supervisor for cfg, persisting crash-recovery and node-cache
// state under stateDir. watcher is optional (nil disables config hot-reload)
// and, when given, is polled for live-reloadable fields such as log level.
func New(cfg *config.ClientConfig, stateDir string, watcher *config.Watcher) *Supervisor {
	return &Supervisor{cfg: cfg, stateDir: stateDir, nodeDir: nodes.Open(stateDir), watcher: watcher}
}

func isPrivileged() bool {
	return os.Geteuid() == 0
}

// Run blocks until the tunnel session ends (cleanly, fatally, or via
// ctx/signal cancellation), always attempting every teardown step
// regardless of whether an earlier one failed.
func (s *Supervisor) Run(ctx context.Context) error {
	if !isPrivileged() {
		return errcat.Permission.New("must run with elevated privileges to create the tunnel interface")
	}

	if err := hostnet.RecoverIfNeeded(ctx, s.stateDir); err != nil {
		return err
	}

	tunHandle, err := tun.Open(s.cfg.Tun.Name, s.cfg.Tun.Address, s.cfg.Tun.Prefix, s.cfg.Tun.MTU)
	if err != nil {
		return err
	}
	dlog.Infof(ctx, "tunnel interface %s is up", tunHandle.Name())

	hc := &hostnet.Config{StateDir: s.stateDir}
	sess := session.New(s.cfg)
	p := pump.New(tunHandle, sess)

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		SoftShutdownTimeout:  3 * time.Second,
		EnableSignalHandling: true,
		ShutdownOnNonError:   true,
	})

	applied := make(chan struct{})
	g.Go("session", sess.Run)
	g.Go("lifecycle", func(c context.Context) error {
		return s.watchLifecycle(c, sess, hc, tunHandle, applied)
	})
	g.Go("pump", func(c context.Context) error {
		select {
		case <-applied:
		case <-c.Done():
			return nil
		}
		dlog.Info(c, "packet pump starting")
		return p.Run(c)
	})
	g.Go("status", func(c context.Context) error {
		return runStatusWriter(c, s.stateDir, sess)
	})
	g.Go("config-reload", func(c context.Context) error {
		return s.watchConfigReload(c)
	})

	runErr := g.Wait()

	var result *multierror.Error
	teardown := func(step string, err error) {
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", step, err))
		}
	}
	// Shutdown order: pump and session already stopped via context
	// cancellation above; what remains is restoring host state and closing
	// the tun device, and every step runs even if an earlier one failed.
	teardown("restore host network state", hc.Restore(context.Background()))
	teardown("close tunnel interface", tunHandle.Close())
	if runErr != nil {
		teardown("session", runErr)
	}
	if result != nil {
		return errcat.Unknown.Newf("%w", result)
	}
	return nil
}

// watchLifecycle applies host network defaults the first time the session
// reaches Authenticated, and turns a fatal session event into a group-ending error.
func (s *Supervisor) watchLifecycle(ctx context.Context, sess *session.Client, hc *hostnet.Config, tunHandle *tun.Handle, applied chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sess.Events():
			if !ok {
				return nil
			}
			switch ev.Kind {
			case session.EventAuthenticated:
				if s.PreselectedNode != "" {
					dlog.Infof(ctx, "requesting node %s", s.PreselectedNode)
					select {
					case sess.Outbound() <- &frame.Message{Type: frame.TypeNodeSelect, NodeID: s.PreselectedNode}:
					case <-ctx.Done():
						return nil
					}
				}
				alreadyApplied := false
				select {
				case <-applied:
					alreadyApplied = true
				default:
				}
				// After a reconnect the host is already switched over; capturing
				// again would snapshot the tunnel's own routes and resolver.
				if !alreadyApplied {
					host := hostOf(s.cfg.ServerURL)
					if err := hc.ApplyTunnelDefaults(ctx, tunHandle.Name(), s.cfg.Tun.PeerGateway, s.cfg.DNS.Servers, host); err != nil {
						dlog.Errorf(ctx, "failed to apply tunnel defaults, closing session: %v", err)
						sess.Close()
						continue
					}
				}
				if err := s.nodeDir.Update(ev.Nodes); err != nil {
					dlog.Warnf(ctx, "failed to cache node list: %v", err)
				}
				select {
				case <-applied:
				default:
					close(applied)
				}
			case session.EventDisconnected:
				dlog.Warnf(ctx, "session disconnected: %s", ev.Reason)
			case session.EventFatalAuth:
				return errcat.Auth.Newf("authentication rejected: %s", ev.Reason)
			case session.EventFatalDisconnect:
				return errcat.Unreachable.Newf("server unreachable: %s", ev.Reason)
			}
		}
	}
}

// watchConfigReload polls the config watcher (if any) for changes to the
// fields that are safe to apply to an already-running process — currently
// just the log level — and applies them live. TUN/route/DNS settings are
// deliberately not reloaded here: changing them under a live tunnel would
// require redoing §4.2's apply/restore dance, which a config edit alone
// shouldn't trigger.
func (s *Supervisor) watchConfigReload(ctx context.Context) error {
	if s.watcher == nil {
		return nil
	}
	lastLevel := s.watcher.Current().LogLevel
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cur := s.watcher.Current()
			if cur.LogLevel != lastLevel {
				dlog.Infof(ctx, "log level changed to %s", cur.LogLevel)
				logging.SetLevel(cur.LogLevel)
				lastLevel = cur.LogLevel
			}
		}
	}
}

func hostOf(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
