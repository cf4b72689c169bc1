// SPDX-License-Identifier: BSD-2-Clause
// Copyright (C) 2024 Emir Aganovic

package media

import (
	"io"
	"net"
	"time"
)

// fakeUDPConn is a minimal net.PacketConn backed by an io.Reader/io.Writer pair,
// used to drive RTP/RTCP sessions in tests without opening real sockets.
type fakeUDPConn struct {
	Reader  io.Reader
	Writers map[string]io.Writer
	laddr   net.Addr
}

func (c *fakeUDPConn) ReadFrom(p []byte) (n int, addr net.Addr, err error) {
	if c.Reader == nil {
		return 0, nil, io.EOF
	}
	n, err = c.Reader.Read(p)
	return n, c.laddr, err
}

func (c *fakeUDPConn) WriteTo(p []byte, addr net.Addr) (n int, err error) {
	w, ok := c.Writers[addr.String()]
	if !ok {
		return len(p), nil
	}
	return w.Write(p)
}

func (c *fakeUDPConn) Close() error                       { return nil }
func (c *fakeUDPConn) LocalAddr() net.Addr                 { return c.laddr }
func (c *fakeUDPConn) SetDeadline(t time.Time) error       { return nil }
func (c *fakeUDPConn) SetReadDeadline(t time.Time) error   { return nil }
func (c *fakeUDPConn) SetWriteDeadline(t time.Time) error  { return nil }
