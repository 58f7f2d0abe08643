package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
)

const defaultFTPPort = "21"

// ftpClient adapts an FTP control connection to Client.
type ftpClient struct {
	conn *ftp.ServerConn

	// control and data connections opened so far, closed by Abort
	mu    sync.Mutex
	conns []net.Conn
}

// DialFTP connects to an FTP server. host may carry a port; 21 is assumed
// otherwise. Control and data connections fail when idle for longer than
// timeout.
func DialFTP(ctx context.Context, host string, timeout time.Duration) (Client, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, defaultFTPPort)
	}

	client := &ftpClient{}
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := ftp.Dial(addr,
		ftp.DialWithTimeout(timeout),
		ftp.DialWithDialFunc(func(network, address string) (net.Conn, error) {
			c, err := dialer.DialContext(ctx, network, address)
			if err != nil {
				return nil, err
			}
			client.track(c)
			return &idleConn{Conn: c, timeout: timeout}, nil
		}),
	)
	if err != nil {
		return nil, err
	}
	client.conn = conn
	return client, nil
}

func (c *ftpClient) track(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns = append(c.conns, conn)
}

// Abort closes the network connections under the FTP session so a blocked
// transfer returns. It does not touch the session state itself.
func (c *ftpClient) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, conn := range c.conns {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *ftpClient) Login(user, password string) error {
	return c.conn.Login(user, password)
}

func (c *ftpClient) ChangeDir(dir string) error {
	return c.conn.ChangeDir(dir)
}

func (c *ftpClient) NameList(dir string) ([]string, error) {
	return c.conn.NameList(dir)
}

func (c *ftpClient) Retrieve(name string, w io.Writer) error {
	resp, err := c.conn.Retr(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, resp); err != nil {
		_ = resp.Close()
		return err
	}
	return resp.Close()
}

func (c *ftpClient) Quit() error {
	return c.conn.Quit()
}

// idleConn pushes the deadline forward on every read and write.
type idleConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleConn) Read(b []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Read(b)
}

func (c *idleConn) Write(b []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Write(b)
}
