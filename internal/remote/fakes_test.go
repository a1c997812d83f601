package remote

import (
	"context"
	"fmt"

	sshtesting "github.com/lobot-sh/lobot/pkg/sshutil/testing"
)

// fakeTunnel records tunnel lifecycle calls.
type fakeTunnel struct {
	Local  string
	Served bool
	Closed bool
}

func (t *fakeTunnel) LocalAddr() string { return t.Local }

func (t *fakeTunnel) Serve(ctx context.Context) error {
	t.Served = true
	<-ctx.Done()
	return ctx.Err()
}

func (t *fakeTunnel) Close() error {
	t.Closed = true
	return nil
}

// response builds a canned command response from stdout text and an
// exit code.
func response(stdout string, code int) sshtesting.CommandResponse {
	return sshtesting.CommandResponse{Stdout: []byte(stdout), ExitCode: code}
}

// fakeConn is a connection whose command execution is backed by a
// MockRunner and whose tunnels are recorded in memory.
type fakeConn struct {
	*sshtesting.MockRunner

	// BusyPorts simulates local ports that can't be bound.
	BusyPorts map[int]bool
	// Tunnels records every successfully opened tunnel.
	Tunnels []*fakeTunnel
}

// newFakeConn creates a connection for the given host.
func newFakeConn(host string) *fakeConn {
	return &fakeConn{
		MockRunner: sshtesting.NewMockRunner(host),
		BusyPorts:  make(map[int]bool),
	}
}

func (c *fakeConn) OpenTunnel(localPort, remotePort int) (Tunnel, error) {
	if c.BusyPorts[localPort] {
		return nil, fmt.Errorf("listen tcp 127.0.0.1:%d: bind: address already in use", localPort)
	}
	t := &fakeTunnel{Local: fmt.Sprintf("127.0.0.1:%d", localPort)}
	c.Tunnels = append(c.Tunnels, t)
	return t, nil
}

// fakeConnector hands out a fixed connection and records every
// endpoint it was asked to reach.
type fakeConnector struct {
	Conn *fakeConn
	Err  error

	// Endpoints records each Connect call in order.
	Endpoints []Endpoint
}

// newFakeConnector creates a connector that returns conn.
func newFakeConnector(conn *fakeConn) *fakeConnector {
	return &fakeConnector{Conn: conn}
}

func (f *fakeConnector) Connect(ctx context.Context, ep Endpoint) (Conn, error) {
	f.Endpoints = append(f.Endpoints, ep)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Conn, nil
}

// ConnectCount reports how many connection attempts were made.
func (f *fakeConnector) ConnectCount() int {
	return len(f.Endpoints)
}
