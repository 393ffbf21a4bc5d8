// Copyright (c) 2018 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package proxy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// errIncomplete means the buffer is a valid prefix; read more.
var errIncomplete = errors.New("incomplete header")

const (
	// v1 headers are at most 107 bytes including CRLF.
	v1MaxSize = 107
	v1Prefix  = "PROXY "

	v2MinSize = 16

	v2VersionProxy = 0x21
	v2VersionLocal = 0x20

	v2FamilyTCP4 = 0x11
	v2FamilyTCP6 = 0x21

	maxHeaderSize = v2MinSize + 65535
)

var v2Signature = []byte{0x0d, 0x0a, 0x0d, 0x0a, 0x00, 0x0d, 0x0a, 0x51, 0x55, 0x49, 0x54, 0x0a}

// parse attempts to decode a preamble from the start of buf.  It returns the
// number of consumed bytes on success, errIncomplete if buf is a valid
// prefix of either version, and a data error otherwise.
func parse(buf []byte) (*Header, int, error) {
	if prefixOf(buf, v2Signature) {
		if len(buf) < len(v2Signature) {
			return nil, 0, errIncomplete
		}
		return parseV2(buf)
	}

	if prefixOf(buf, []byte(v1Prefix)) {
		if len(buf) < len(v1Prefix) {
			return nil, 0, errIncomplete
		}
		return parseV1(buf)
	}

	return nil, 0, fmt.Errorf("%w: unrecognized signature", ErrInvalidHeader)
}

// prefixOf reports whether buf could still grow into data starting with
// want.
func prefixOf(buf, want []byte) bool {
	n := min(len(buf), len(want))
	return bytes.Equal(buf[:n], want[:n])
}

func parseV1(buf []byte) (*Header, int, error) {
	limit := min(len(buf), v1MaxSize)
	end := bytes.Index(buf[:limit], []byte("\r\n"))
	if end < 0 {
		if len(buf) >= v1MaxSize {
			return nil, 0, fmt.Errorf("%w: no CRLF within %d bytes", ErrInvalidHeader, v1MaxSize)
		}
		return nil, 0, errIncomplete
	}

	consumed := end + 2
	fields := strings.Split(string(buf[len(v1Prefix):end]), " ")

	switch fields[0] {
	case "UNKNOWN":
		// Transport unknown; fall back to the real socket address.
		return &Header{}, consumed, nil

	case "TCP4", "TCP6":
		if len(fields) != 5 {
			return nil, 0, fmt.Errorf("%w: expected 5 fields, got %d", ErrInvalidHeader, len(fields))
		}

		source, err := v1Addr(fields[0], fields[1], fields[3])
		if err != nil {
			return nil, 0, err
		}
		if _, err := v1Addr(fields[0], fields[2], fields[4]); err != nil {
			return nil, 0, err
		}
		return &Header{Source: source}, consumed, nil

	default:
		return nil, 0, fmt.Errorf("%w: unknown transport %q", ErrInvalidHeader, fields[0])
	}
}

func v1Addr(transport, host, port string) (*net.TCPAddr, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("%w: invalid address %q", ErrInvalidHeader, host)
	}
	if transport == "TCP4" {
		if ip = ip.To4(); ip == nil {
			return nil, fmt.Errorf("%w: %q is not IPv4", ErrInvalidHeader, host)
		}
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid port %q", ErrInvalidHeader, port)
	}

	return &net.TCPAddr{IP: ip, Port: int(p)}, nil
}

func parseV2(buf []byte) (*Header, int, error) {
	if len(buf) < v2MinSize {
		return nil, 0, errIncomplete
	}

	length := int(binary.BigEndian.Uint16(buf[14:16]))
	consumed := v2MinSize + length
	if len(buf) < consumed {
		return nil, 0, errIncomplete
	}

	switch buf[12] {
	case v2VersionLocal:
		return &Header{}, consumed, nil
	case v2VersionProxy:
	default:
		return nil, 0, fmt.Errorf("%w: version/command byte %#x", ErrInvalidHeader, buf[12])
	}

	addr := buf[v2MinSize:consumed]

	switch buf[13] {
	case v2FamilyTCP4:
		if length < 12 {
			return nil, 0, fmt.Errorf("%w: short TCP4 address block", ErrInvalidHeader)
		}
		return &Header{Source: &net.TCPAddr{
			IP:   net.IP(addr[0:4]),
			Port: int(binary.BigEndian.Uint16(addr[8:10])),
		}}, consumed, nil

	case v2FamilyTCP6:
		if length < 36 {
			return nil, 0, fmt.Errorf("%w: short TCP6 address block", ErrInvalidHeader)
		}
		return &Header{Source: &net.TCPAddr{
			IP:   net.IP(addr[0:16]),
			Port: int(binary.BigEndian.Uint16(addr[32:34])),
		}}, consumed, nil

	default:
		// Unspecified or unsupported transport; addresses are opaque.
		return &Header{}, consumed, nil
	}
}
