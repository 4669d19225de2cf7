package smtp

import (
	"net"
	"time"
)

// dialSession replaces mail.NetDialTimeout. The dialer only knows absolute
// deadlines, set once at connect and once before MAIL FROM; the returned
// conn instead gives every Read and Write its own timeout, so a slow session
// that keeps making progress is never cut off.
func dialSession(network, address string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return conn, nil
	}
	return newSessionConn(conn, timeout), nil
}

// sessionConn applies a per-operation deadline and closes the connection once
// it has sat unused for the timeout. The dialer abandons the connection
// without closing it on some handshake failures; the idle timer reclaims it.
type sessionConn struct {
	net.Conn
	timeout time.Duration
	idle    *time.Timer
}

func newSessionConn(conn net.Conn, timeout time.Duration) *sessionConn {
	c := &sessionConn{Conn: conn, timeout: timeout}
	c.idle = time.AfterFunc(timeout, func() { _ = conn.Close() })
	return c
}

func (c *sessionConn) Read(p []byte) (int, error) {
	c.idle.Stop()
	defer c.idle.Reset(c.timeout)

	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *sessionConn) Write(p []byte) (int, error) {
	c.idle.Stop()
	defer c.idle.Reset(c.timeout)

	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

func (c *sessionConn) Close() error {
	c.idle.Stop()
	return c.Conn.Close()
}

// SetDeadline ignores the dialer's whole-phase deadlines.
func (c *sessionConn) SetDeadline(time.Time) error {
	return nil
}
