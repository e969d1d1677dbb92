// Package transport defines the datagram collaborator the core framers
// send and receive through, plus the driver-side port accessor a host
// audio engine implements. Neither interface is implemented by the
// session negotiation state machine itself (out of scope, §1) — this
// package only supplies the boundary and one reference UDP
// implementation for tests, grounded on the teacher's
// setupControlSocket/radiod.go UDP idiom.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Transport is the collaborator interface a session sends and receives
// wire-format packets through (§1: "raw socket I/O is a collaborator,
// not part of this core"). Send and Receive operate on already-encoded
// buffers; this package knows nothing about params/header/payload
// framing.
type Transport interface {
	// Send transmits buf as a single datagram.
	Send(ctx context.Context, buf []byte) error
	// Receive reads the next datagram into buf, returning the number
	// of bytes read. Implementations that can't fill buf without
	// blocking past ctx's deadline return ctx.Err().
	Receive(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// PortProvider is the collaborator interface the host audio/MIDI graph
// implements to lend and reclaim per-cycle sample buffers (§1: "the
// host audio graph providing sample memory is a collaborator"). This
// core only calls SetBuffer/GetBuffer; it never owns port lifetime.
type PortProvider interface {
	SetBuffer(portIndex int, samples []float32)
	GetBuffer(portIndex int) []float32
	NumCapturePorts() int
	NumPlaybackPorts() int
}

// UDPTransport is a reference Transport backed by a single connected
// net.UDPConn, sized for tests and single-peer sessions — not a
// production multi-session socket layer (that remains out of scope,
// §1). Grounded on the teacher's setupControlSocket in radiod.go, minus
// the multicast-specific socket options that don't apply to a
// point-to-point session link.
type UDPTransport struct {
	conn *net.UDPConn
}

// DialUDPTransport opens a UDP socket connected to addr, for a master
// endpoint that knows its peer's address up front (§4.2).
func DialUDPTransport(addr string) (*UDPTransport, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("netjack: resolve %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("netjack: dial %q: %w", addr, err)
	}
	return &UDPTransport{conn: conn}, nil
}

// ListenUDPTransport opens an unconnected UDP socket bound to addr, for a
// slave endpoint (§4.2: "slave_available" is unsolicited). Receive reads
// datagrams from any sender and blocks until one arrives or ctx is done.
// The sender's address is not recorded, so Send on a listening transport
// has no destination and returns an error.
func ListenUDPTransport(addr string) (*UDPTransport, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("netjack: resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("netjack: listen %q: %w", addr, err)
	}
	return &UDPTransport{conn: conn}, nil
}

// Send writes buf as one UDP datagram, honoring ctx's deadline.
func (t *UDPTransport) Send(ctx context.Context, buf []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		t.conn.SetWriteDeadline(dl)
	} else {
		t.conn.SetWriteDeadline(time.Time{})
	}
	_, err := t.conn.Write(buf)
	if err != nil {
		return fmt.Errorf("netjack: udp send: %w", err)
	}
	return nil
}

// Receive reads the next datagram into buf, honoring ctx's deadline
// (§5: "a transport that can't meet a cycle deadline drops the packet
// rather than block the caller past it").
func (t *UDPTransport) Receive(ctx context.Context, buf []byte) (int, error) {
	if dl, ok := ctx.Deadline(); ok {
		t.conn.SetReadDeadline(dl)
	} else {
		t.conn.SetReadDeadline(time.Time{})
	}
	n, err := t.conn.Read(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			// The socket deadline can fire before ctx's own timer marks
			// it done; report the deadline either way.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			return 0, context.DeadlineExceeded
		}
		return 0, fmt.Errorf("netjack: udp receive: %w", err)
	}
	return n, nil
}

// Close releases the underlying socket.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
