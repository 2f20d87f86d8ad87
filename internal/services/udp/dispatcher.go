// Package udp transmits datagrams to Wake-on-LAN destinations.
package udp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// closeGrace is how long the socket stays open after a send before it is
// closed. A UDP write can return success while the datagram is still queued
// in the kernel; closing immediately has been observed to drop the packet
// on some platforms.
const closeGrace = 300 * time.Millisecond

// Sender transmits a single datagram to one destination.
type Sender interface {
	Send(ctx context.Context, payload []byte, addr string, port int) error
}

// Dispatcher sends broadcast-capable UDP datagrams. Go enables SO_BROADCAST
// on datagram sockets itself, so broadcast destinations need no extra
// socket options here.
type Dispatcher struct {
	logger zerolog.Logger
	grace  time.Duration
}

// New creates a dispatcher with the standard close grace.
func New(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger, grace: closeGrace}
}

// NewWithGrace creates a dispatcher with a custom close grace (for testing).
func NewWithGrace(logger zerolog.Logger, grace time.Duration) *Dispatcher {
	return &Dispatcher{logger: logger, grace: grace}
}

// Send transmits payload as a single datagram to addr:port. addr must be an
// IPv4 dotted-quad; a short write is a failure, not a partial success. The
// socket is closed on every exit path, after the close grace.
func (d *Dispatcher) Send(ctx context.Context, payload []byte, addr string, port int) error {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("destination %q is not a valid IPv4 address", addr)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("destination port %d out of range", port)
	}

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip.To4(), Port: port})
	if err != nil {
		return fmt.Errorf("opening UDP socket for %s:%d: %w", addr, port, err)
	}
	defer func() {
		d.waitGrace(ctx)
		_ = conn.Close()
	}()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	n, err := conn.Write(payload)
	if err != nil {
		return fmt.Errorf("sending datagram to %s:%d: %w", addr, port, err)
	}
	if n != len(payload) {
		return fmt.Errorf("short write to %s:%d: %d of %d bytes", addr, port, n, len(payload))
	}

	d.logger.Debug().
		Str("addr", addr).
		Int("port", port).
		Int("bytes", n).
		Msg("datagram sent")

	return nil
}

func (d *Dispatcher) waitGrace(ctx context.Context) {
	if d.grace <= 0 {
		return
	}
	t := time.NewTimer(d.grace)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
