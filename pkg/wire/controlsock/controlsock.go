// Copyright (c) Voldivh
// SPDX-License-Identifier: Apache-2.0

// Package controlsock implements the SendControlFrame half of wire.Transport
// directly over TCP: a short-lived connection, a small linger so the caller
// is never blocked waiting on a peer that has vanished, and the five-frame
// end-connection payload transmitted verbatim. This is the one place this
// module reaches for net.Dialer directly rather than a corpus library —
// see DESIGN.md for why no retrieved dependency covers raw length-prefixed
// socket framing.
package controlsock

import (
	"bufio"
	"context"
	"encoding/binary"
	"net"
	"time"

	"github.com/Voldivh/gz-transport/pkg/wire"
)

// DefaultLinger is short enough that a vanished peer never blocks the
// caller for long.
const DefaultLinger = 200 * time.Millisecond

// Sender sends end-connection control frames over a short-lived TCP
// connection with a bounded linger.
type Sender struct {
	dialer net.Dialer
	linger time.Duration
}

// NewSender returns a Sender using linger as the socket linger duration,
// rounded up to whole seconds when applied to the socket. A zero linger
// defaults to DefaultLinger.
func NewSender(linger time.Duration) *Sender {
	if linger <= 0 {
		linger = DefaultLinger
	}
	return &Sender{linger: linger}
}

// Send dials ctrlAddr, writes the five length-prefixed frames of frame, and
// closes the connection with the configured linger. Delivery is best-effort:
// a dial failure or a vanished peer is reported to the caller but never
// blocks beyond the dial timeout implied by ctx, or DefaultLinger if ctx
// carries no deadline of its own.
func (s *Sender) Send(ctx context.Context, ctrlAddr string, frame wire.ControlFrame) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultLinger)
		defer cancel()
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", ctrlAddr)
	if err != nil {
		return err
	}
	defer s.closeWithLinger(conn)

	if tc, ok := conn.(*net.TCPConn); ok {
		// SetLinger takes whole seconds; round up so a sub-second linger
		// does not become zero, which would reset the connection on close.
		_ = tc.SetLinger(int((s.linger + time.Second - 1) / time.Second))
	}

	w := bufio.NewWriter(conn)
	for _, part := range frame.Frames() {
		if err := binary.Write(w, binary.BigEndian, uint32(len(part))); err != nil {
			return err
		}
		if _, err := w.Write(part); err != nil {
			return err
		}
	}

	return w.Flush()
}

func (s *Sender) closeWithLinger(conn net.Conn) {
	deadline := time.Now().Add(s.linger)
	_ = conn.SetDeadline(deadline)
	_ = conn.Close()
}

// Listener accepts inbound control connections and decodes their frames,
// invoking handle for each one received.
type Listener struct {
	ln net.Listener
}

// Listen starts accepting connections on addr.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the address the Listener is bound to.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Serve accepts connections until ctx is done or the listener is closed,
// decoding the five-frame control message from each and invoking handle.
func (l *Listener) Serve(ctx context.Context, handle func(wire.ControlFrame)) error {
	go func() {
		<-ctx.Done()
		l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		go func(c net.Conn) {
			defer c.Close()
			frame, err := readFrame(c)
			if err != nil {
				return
			}
			handle(frame)
		}(conn)
	}
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}

func readFrame(conn net.Conn) (wire.ControlFrame, error) {
	r := bufio.NewReader(conn)

	parts := make([][]byte, 5)
	for i := range parts {
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return wire.ControlFrame{}, err
		}
		buf := make([]byte, length)
		if _, err := readFull(r, buf); err != nil {
			return wire.ControlFrame{}, err
		}
		parts[i] = buf
	}

	return wire.ControlFrame{
		Topic:          string(parts[0]),
		SenderDataAddr: string(parts[1]),
		SenderNodeUUID: string(parts[2]),
		TypeSentinel:   string(parts[3]),
		Opcode:         wire.Opcode(parseInt(string(parts[4]))),
	}, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func parseInt(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}
