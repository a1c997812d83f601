package sshutil

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/lobot-sh/lobot/internal/errors"
)

// Tunnel forwards a local TCP port to a port on the instance over the
// SSH connection.
type Tunnel struct {
	listener net.Listener
	client   *Client
	remote   string

	mu     sync.Mutex
	closed bool
}

// OpenTunnel binds localAddr (e.g. "127.0.0.1:8888") and forwards each
// accepted connection to remotePort on the instance. It returns an
// error immediately if the local address can't be bound, so callers
// can fall back to another port.
func OpenTunnel(c *Client, localAddr string, remotePort int) (*Tunnel, error) {
	listener, err := net.Listen("tcp", localAddr)
	if err != nil {
		return nil, err
	}

	t := &Tunnel{
		listener: listener,
		client:   c,
		remote:   fmt.Sprintf("127.0.0.1:%d", remotePort),
	}
	return t, nil
}

// LocalAddr returns the bound local address.
func (t *Tunnel) LocalAddr() string {
	return t.listener.Addr().String()
}

// Serve accepts and forwards connections until ctx is cancelled or the
// tunnel is closed.
func (t *Tunnel) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		t.Close()
	}()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed || ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.WrapWithCode(err, errors.ErrConnect,
				"tunnel listener failed", "")
		}
		go t.forward(conn)
	}
}

// forward pipes one local connection to the remote port.
func (t *Tunnel) forward(local net.Conn) {
	defer local.Close()

	remote, err := t.client.Dial("tcp", t.remote)
	if err != nil {
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remote, local)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(local, remote)
		done <- struct{}{}
	}()
	<-done
}

// Close stops accepting connections. In-flight forwards drain on their
// own.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.listener.Close()
}
