// Package pump implements the bidirectional forwarder between the TUN
// device and the tunnel session: uplink drains the TUN and enqueues data
// frames, downlink writes inbound data frames back to the TUN. Grounded
// stylistically on the teacher's pkg/client/daemon/session.go TUN-reader
// loop, but deliberately without any of that file's L3/L4 parsing — packets
// are forwarded as opaque bytes.
package pump

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/datawire/dlib/dlog"

	"github.com/wsvpn/client/internal/frame"
	"github.com/wsvpn/client/internal/session"
	"github.com/wsvpn/client/internal/tun"
)

// maxDrain bounds how many packets the uplink pulls off the TUN per
// readiness wakeup before yielding back to the scheduler.
const maxDrain = 32

// Pump wires one TUN handle to one session Client.
type Pump struct {
	tunHandle *tun.Handle
	sess      *session.Client
}

// New builds a Pump over tunHandle and sess. Neither side holds a reference
// to the other; Pump is the only thing that knows about both.
func New(tunHandle *tun.Handle, sess *session.Client) *Pump {
	return &Pump{tunHandle: tunHandle, sess: sess}
}

// Run blocks until ctx is canceled, running the uplink and downlink flows
// concurrently and returning the first error either produces.
func (p *Pump) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- p.uplink(ctx)
	}()
	go func() {
		defer wg.Done()
		errs <- p.downlink(ctx)
	}()

	go func() {
		wg.Wait()
		close(errs)
	}()

	var first error
	for err := range errs {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

// uplink waits for the TUN to become readable, drains up to maxDrain
// packets, and hands each to the session as a tunnel_data frame. Because the
// session's EnqueueData blocks when the outbound queue is full, a saturated
// queue naturally suspends this loop instead of dropping packets.
func (p *Pump) uplink(ctx context.Context) error {
	buf := make([]byte, tun.MaxPacketSize)
	fd := int(p.tunHandle.Fd())

	for {
		if ctx.Err() != nil {
			return nil
		}
		ready, err := waitReadable(ctx, fd)
		if err != nil {
			return err
		}
		if !ready {
			continue
		}
		for i := 0; i < maxDrain; i++ {
			n, err := p.tunHandle.Read(buf)
			if err != nil {
				if isWouldBlock(err) {
					break
				}
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			packet := make([]byte, n)
			copy(packet, buf[:n])
			if err := p.sess.EnqueueData(ctx, packet); err != nil {
				return nil
			}
		}
	}
}

// downlink consumes inbound data frames and writes each one to the TUN,
// exactly once, preserving arrival order.
func (p *Pump) downlink(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-p.sess.Inbound():
			if !ok {
				return nil
			}
			packet, err := frame.DecodePacket(msg)
			if err != nil {
				dlog.Warnf(ctx, "dropping undecodable tunnel_data frame: %v", err)
				continue
			}
			if err := p.writeRetrying(ctx, packet); err != nil {
				return err
			}
			p.sess.RecordInbound(len(packet))
		}
	}
}

// writeRetrying writes packet to the TUN, yielding and retrying on
// WouldBlock rather than dropping it; an oversize packet is a peer bug and
// is logged and dropped instead of retried forever.
func (p *Pump) writeRetrying(ctx context.Context, packet []byte) error {
	for {
		err := p.tunHandle.Write(packet)
		if err == nil {
			return nil
		}
		if !isWouldBlock(err) {
			dlog.Warnf(ctx, "dropping packet that could not be written to tun: %v", err)
			return nil
		}
		fd := int(p.tunHandle.Fd())
		ready, werr := waitWritable(ctx, fd)
		if werr != nil {
			return werr
		}
		if !ready {
			return nil
		}
	}
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

func waitReadable(ctx context.Context, fd int) (bool, error) {
	return pollOne(ctx, fd, unix.POLLIN)
}

func waitWritable(ctx context.Context, fd int) (bool, error) {
	return pollOne(ctx, fd, unix.POLLOUT)
}

// pollOne waits up to 200ms for fd to become ready for events, so the loop
// periodically rechecks ctx.Done() instead of blocking indefinitely.
func pollOne(ctx context.Context, fd int, events int16) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		if ctx.Err() != nil {
			return false, nil
		}
		n, err := unix.Poll(fds, 200)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return false, err
		}
		if n == 0 {
			continue
		}
		return fds[0].Revents&events != 0, nil
	}
}
