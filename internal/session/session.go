// Package session implements the authenticated tunnel stream: connect,
// authenticate, heartbeat, and reconnect-with-backoff, grounded stylistically
// on the teacher's pkg/client/daemon/session.go (watchClusterInfo's capped
// exponential backoff, stop()'s idempotent shutdown guard) but carrying
// opaque tunnel_data frames over a gorilla/websocket stream instead of that
// file's gRPC manager connection.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/blang/semver"
	"github.com/gorilla/websocket"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/dlib/dtime"

	"github.com/wsvpn/client/internal/config"
	"github.com/wsvpn/client/internal/errcat"
	"github.com/wsvpn/client/internal/frame"
	"github.com/wsvpn/client/internal/version"
)

// Status is the current phase of the tunnel session's state machine.
type Status int32

const (
	StatusClosed Status = iota
	StatusConnecting
	StatusAuthenticating
	StatusActive
	StatusDegraded
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusConnecting:
		return "connecting"
	case StatusAuthenticating:
		return "authenticating"
	case StatusActive:
		return "active"
	case StatusDegraded:
		return "degraded"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// EventKind labels a lifecycle notification surfaced to the Supervisor.
type EventKind int

const (
	EventConnected EventKind = iota
	EventAuthenticated
	EventDisconnected
	EventFatalAuth
	EventFatalDisconnect
)

// Event is one lifecycle notification.
type Event struct {
	Kind   EventKind
	Reason string
	Nodes  map[string]frame.Node
}

// Stats are the lightweight uplink/downlink counters attached to every
// outgoing ping, supplementing the heartbeat with the periodic status the
// original distillation printed on its own separate timer.
type Stats struct {
	PacketsIn  int64
	PacketsOut int64
	BytesIn    int64
	BytesOut   int64
}

const outboundQueueSize = 1024

// Client drives one tunnel session end to end, including reconnection. A
// single Client lives for the lifetime of the Supervisor's run, but produces
// a fresh underlying connection each time it reconnects.
type Client struct {
	cfg *config.ClientConfig

	outbound chan *frame.Message
	inbound  chan *frame.Message
	events   chan Event

	status int32
	seq    uint64
	stats  Stats

	closeOnce chan struct{}
}

// New constructs a Client for cfg. Call Run to start it.
func New(cfg *config.ClientConfig) *Client {
	return &Client{
		cfg:       cfg,
		outbound:  make(chan *frame.Message, outboundQueueSize),
		inbound:   make(chan *frame.Message, outboundQueueSize),
		events:    make(chan Event, 16),
		closeOnce: make(chan struct{}),
	}
}

// Outbound is where the packet pump's uplink enqueues frames to send.
func (c *Client) Outbound() chan<- *frame.Message { return c.outbound }

// Inbound is where the packet pump's downlink reads frames to deliver.
func (c *Client) Inbound() <-chan *frame.Message { return c.inbound }

// Events surfaces lifecycle notifications to the Supervisor.
func (c *Client) Events() <-chan Event { return c.events }

// Status returns the session's current phase.
func (c *Client) Status() Status { return Status(atomic.LoadInt32(&c.status)) }

// EnqueueData frames packet as tunnel_data and pushes it to the outbound
// queue, blocking (applying backpressure to the caller) if the queue is
// full rather than dropping it.
func (c *Client) EnqueueData(ctx context.Context, packet []byte) error {
	msg := frame.NewData(packet, atomic.AddUint64(&c.seq, 1), nowMillis())
	select {
	case c.outbound <- msg:
		atomic.AddInt64(&c.stats.PacketsOut, 1)
		atomic.AddInt64(&c.stats.BytesOut, int64(len(packet)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close requests a graceful shutdown: pending outbound frames are flushed
// with a bounded budget, a close frame is sent, and Run returns.
func (c *Client) Close() {
	select {
	case <-c.closeOnce:
	default:
		close(c.closeOnce)
	}
}

// Run owns the session for its whole lifetime: connect, authenticate,
// heartbeat, and reconnect with capped backoff, until ctx is canceled or
// Close is called or a fatal condition is reached.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		select {
		case <-c.closeOnce:
			c.setStatus(StatusClosed)
			return nil
		case <-ctx.Done():
			c.setStatus(StatusClosed)
			return nil
		default:
		}

		c.setStatus(StatusConnecting)
		conn, nodes, err := c.connectAndAuthenticate(ctx)
		if err != nil {
			if errcat.GetCategory(err) == errcat.Auth {
				c.setStatus(StatusClosed)
				c.emit(Event{Kind: EventFatalAuth, Reason: err.Error()})
				return err
			}
			attempt++
			if attempt > c.cfg.ReconnectMaxAttempts {
				c.setStatus(StatusClosed)
				c.emit(Event{Kind: EventFatalDisconnect, Reason: err.Error()})
				return errcat.Unreachable.Newf("exhausted %d reconnect attempts: %w", c.cfg.ReconnectMaxAttempts, err)
			}
			if !c.backoff(ctx, attempt) {
				c.setStatus(StatusClosed)
				return nil
			}
			continue
		}

		attempt = 0
		c.setStatus(StatusActive)
		c.emit(Event{Kind: EventAuthenticated, Nodes: nodes})

		reason := c.serveConnection(ctx, conn)
		_ = conn.Close()
		if reason == "" {
			// Close() or ctx cancellation: graceful, don't reconnect.
			c.setStatus(StatusClosed)
			return nil
		}
		c.emit(Event{Kind: EventDisconnected, Reason: reason})
		c.setStatus(StatusReconnecting)
	}
}

// connectAndAuthenticate performs the upgrade with the bearer token and
// waits for the mandatory first Welcome frame.
func (c *Client) connectAndAuthenticate(ctx context.Context) (*websocket.Conn, map[string]frame.Node, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	header.Set("X-Auth-Token", c.cfg.AuthToken)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.ServerURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, nil, errcat.Auth.Newf("authentication rejected (%d): %w", resp.StatusCode, err)
		}
		return nil, nil, errcat.Unknown.Newf("dial %s: %w", c.cfg.ServerURL, err)
	}

	c.setStatus(StatusAuthenticating)
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errcat.Unknown.Newf("waiting for welcome: %w", err)
	}
	welcome, err := frame.Decode(raw, c.cfg.MaxFrameBytes)
	if err != nil || welcome.Type != frame.TypeWelcome {
		_ = conn.Close()
		return nil, nil, errcat.Unknown.New("protocol error: first frame was not welcome")
	}
	checkServerVersion(ctx, welcome.ServerVersion)
	_ = conn.SetReadDeadline(time.Time{})
	return conn, welcome.Nodes, nil
}

// FetchNodes opens a short-lived connection just long enough to collect the
// node list carried in the server's Welcome frame, then closes it. It backs
// `list-nodes`' refresh-when-stale path, which needs the current node
// directory without bringing up a full tunnel session.
func FetchNodes(ctx context.Context, cfg *config.ClientConfig) (map[string]frame.Node, error) {
	c := New(cfg)
	conn, nodes, err := c.connectAndAuthenticate(ctx)
	if err != nil {
		return nil, err
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "node list refresh"))
	_ = conn.Close()
	return nodes, nil
}

// checkServerVersion logs a warning if the server's reported major version is
// older than this client's own major version (version.Semver); it never fails
// the session, since an old-but-compatible server is common during a rolling
// upgrade.
func checkServerVersion(ctx context.Context, reported string) {
	if reported == "" {
		return
	}
	sv, err := semver.ParseTolerant(reported)
	if err != nil {
		dlog.Warnf(ctx, "server reported an unparseable version %q", reported)
		return
	}
	if sv.Major < version.Semver().Major {
		dlog.Warnf(ctx, "server version %s is older than this client's minimum %s", sv, version.Semver())
	}
}

// serveConnection pumps frames and heartbeats over conn until it fails, the
// heartbeat is missed three times running, or the session is asked to close.
// The returned reason is empty for a graceful close and non-empty for any
// condition that should trigger reconnection.
func (c *Client) serveConnection(ctx context.Context, conn *websocket.Conn) string {
	readErrs := make(chan error, 1)
	pongs := make(chan struct{}, 1)
	oversizeStreak := 0
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				readErrs <- err
				return
			}
			msg, err := frame.Decode(raw, c.cfg.MaxFrameBytes)
			if err != nil {
				dlog.Warnf(ctx, "dropping oversized or malformed frame: %v", err)
				oversizeStreak++
				if oversizeStreak >= 3 {
					readErrs <- fmt.Errorf("too many oversized frames in a row")
					return
				}
				continue
			}
			oversizeStreak = 0
			switch msg.Type {
			case frame.TypeUnknown:
				dlog.Debugf(ctx, "dropping frame with unknown type")
			case frame.TypePong:
				select {
				case pongs <- struct{}{}:
				default:
				}
			case frame.TypeData:
				select {
				case c.inbound <- msg:
				case <-ctx.Done():
					return
				}
			default:
				// error / node_selected: logged, not forwarded to the pump.
				dlog.Debugf(ctx, "received control frame %s", msg.Type)
			}
		}
	}()

	heartbeat := c.cfg.HeartbeatInterval()
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	missed := 0
	pendingPong := false

	for {
		select {
		case <-ctx.Done():
			c.flushAndClose(conn)
			return ""
		case <-c.closeOnce:
			c.flushAndClose(conn)
			return ""
		case err := <-readErrs:
			return err.Error()
		case <-ticker.C:
			if pendingPong {
				missed++
				if missed >= 3 {
					return "heartbeat timeout"
				}
				if missed >= 2 {
					c.setStatus(StatusDegraded)
				}
			} else {
				missed = 0
			}
			ping := frame.NewPing(nowMillis(), c.statsSnapshot())
			if err := c.send(conn, ping); err != nil {
				return err.Error()
			}
			pendingPong = true
		case <-pongs:
			pendingPong = false
			missed = 0
			c.setStatus(StatusActive)
		case out, ok := <-c.outbound:
			if !ok {
				return ""
			}
			if err := c.send(conn, out); err != nil {
				return err.Error()
			}
		}
	}
}

func (c *Client) send(conn *websocket.Conn, m *frame.Message) error {
	raw, err := frame.Encode(m)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, raw)
}

func (c *Client) flushAndClose(conn *websocket.Conn) {
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		select {
		case out := <-c.outbound:
			if time.Now().After(deadline) {
				continue
			}
			_ = c.send(conn, out)
		default:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client shutdown"))
			return
		}
	}
}

func (c *Client) statsSnapshot() map[string]int64 {
	return map[string]int64{
		"packets_in":  atomic.LoadInt64(&c.stats.PacketsIn),
		"packets_out": atomic.LoadInt64(&c.stats.PacketsOut),
		"bytes_in":    atomic.LoadInt64(&c.stats.BytesIn),
		"bytes_out":   atomic.LoadInt64(&c.stats.BytesOut),
	}
}

// StatsSnapshot exposes the counters for the `status` CLI subcommand.
func (c *Client) StatsSnapshot() Stats {
	return Stats{
		PacketsIn:  atomic.LoadInt64(&c.stats.PacketsIn),
		PacketsOut: atomic.LoadInt64(&c.stats.PacketsOut),
		BytesIn:    atomic.LoadInt64(&c.stats.BytesIn),
		BytesOut:   atomic.LoadInt64(&c.stats.BytesOut),
	}
}

// RecordInbound accounts for one packet delivered to the TUN by the pump's
// downlink; called from the pump, not from serveConnection, since only the
// pump decodes payload sizes off the wire.
func (c *Client) RecordInbound(n int) {
	atomic.AddInt64(&c.stats.PacketsIn, 1)
	atomic.AddInt64(&c.stats.BytesIn, int64(n))
}

func (c *Client) setStatus(s Status) { atomic.StoreInt32(&c.status, int32(s)) }

func (c *Client) emit(e Event) {
	select {
	case c.events <- e:
	default:
		// Events channel is sized generously; a full channel means nobody's
		// listening, which is the Supervisor's problem, not ours to block on.
	}
}

// backoff waits reconnect_initial*2^min(attempt,5) with +-20% jitter capped
// at 60s, honoring cancellation. It returns false if ctx was canceled first.
func (c *Client) backoff(ctx context.Context, attempt int) bool {
	shift := attempt
	if shift > 5 {
		shift = 5
	}
	base := c.cfg.ReconnectInitial() * time.Duration(1<<uint(shift))
	if cap := 60 * time.Second; base > cap {
		base = cap
	}
	jitter := time.Duration((rand.Float64()*0.4 - 0.2) * float64(base))
	wait := base + jitter
	if wait < 0 {
		wait = 0
	}
	dlog.Infof(ctx, "reconnecting in %s (attempt %d/%d)", wait, attempt, c.cfg.ReconnectMaxAttempts)
	return dtime.SleepWithContext(ctx, wait) == nil
}

func nowMillis() float64 {
	return float64(time.Now().UnixNano()) / 1e6
}
