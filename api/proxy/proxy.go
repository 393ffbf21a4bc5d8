// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package proxy recovers the original peer address from a PROXY protocol
// preamble.  Versions 1 (text) and 2 (binary) are auto-detected.  A wrapped
// connection stays untouched until the first Read or RemoteAddr call, so
// accepting is cheap; the preamble is then consumed before any payload byte
// is handed out.
package proxy

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultMaxPending bounds how many accepted connections may be parsing
// their preamble at the same time.
const DefaultMaxPending = 100

// ErrInvalidHeader reports a preamble which matches neither protocol
// version.  The connection is unusable, because its first payload bytes have
// been consumed.
var ErrInvalidHeader = errors.New("invalid PROXY protocol header")

// Listener wraps accepted connections.
type Listener struct {
	net.Listener
	pending chan struct{}
}

func NewListener(inner net.Listener) *Listener {
	return &Listener{
		Listener: inner,
		pending:  make(chan struct{}, DefaultMaxPending),
	}
}

func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &Conn{conn: conn, pending: l.pending}, nil
}

// Conn is a single wrapped connection.
type Conn struct {
	conn    net.Conn
	pending chan struct{}

	once   sync.Once
	source net.Addr
	rest   []byte
	err    error
}

func (c *Conn) resolve() {
	c.once.Do(func() {
		c.pending <- struct{}{}
		defer func() { <-c.pending }()

		header, rest, err := ReadHeader(c.conn)
		if err != nil {
			c.err = err
			return
		}
		c.source = header.Source
		c.rest = rest
	})
}

func (c *Conn) Read(p []byte) (int, error) {
	c.resolve()
	if c.err != nil {
		return 0, c.err
	}
	if len(c.rest) > 0 {
		n := copy(p, c.rest)
		c.rest = c.rest[n:]
		return n, nil
	}
	return c.conn.Read(p)
}

func (c *Conn) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

// RemoteAddr returns the address carried by the preamble.  The underlying
// address is returned for a local (health check) preamble, for an unknown
// transport, and when header parsing failed.
func (c *Conn) RemoteAddr() net.Addr {
	c.resolve()
	if c.err != nil || c.source == nil {
		return c.conn.RemoteAddr()
	}
	return c.source
}

func (c *Conn) Close() error                       { return c.conn.Close() }
func (c *Conn) LocalAddr() net.Addr                { return c.conn.LocalAddr() }
func (c *Conn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// Header is a parsed preamble.  Source is nil when the preamble carries no
// address (LOCAL command, UNKNOWN transport).
type Header struct {
	Source net.Addr
}

// ReadHeader consumes a preamble from the reader.  Bytes read past the
// preamble are returned so the caller can replay them ahead of the stream.
func ReadHeader(r io.Reader) (*Header, []byte, error) {
	buf := make([]byte, 0, 256)

	for {
		if len(buf) == cap(buf) {
			if cap(buf) >= maxHeaderSize {
				return nil, nil, fmt.Errorf("%w: too long", ErrInvalidHeader)
			}
			grown := make([]byte, len(buf), cap(buf)*2)
			copy(grown, buf)
			buf = grown
		}

		n, err := r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]

		if n > 0 {
			header, consumed, perr := parse(buf)
			if perr == nil {
				rest := make([]byte, len(buf)-consumed)
				copy(rest, buf[consumed:])
				return header, rest, nil
			}
			if !errors.Is(perr, errIncomplete) {
				return nil, nil, perr
			}
		}

		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, nil, err
		}
	}
}
