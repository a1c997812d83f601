// Package remote orchestrates sessions against running instances:
// interactive shells, notebook tunnels, and directory transfers. All
// entry points enforce the key permission check before any connection
// attempt is made.
package remote

import (
	"context"
	"time"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/pkg/sshutil"
)

// Endpoint is a fully resolved connection target.
type Endpoint struct {
	Host    string
	User    string
	KeyFile string
	Timeout time.Duration
}

// Tunnel is an established local port forward.
type Tunnel interface {
	// LocalAddr returns the bound local address.
	LocalAddr() string
	// Serve forwards connections until ctx is cancelled.
	Serve(ctx context.Context) error
	// Close stops the tunnel.
	Close() error
}

// Conn is an open connection to an instance.
type Conn interface {
	sshutil.Runner
	// OpenTunnel binds a local port and forwards it to a port on the
	// instance. Returns an error if the local port can't be bound.
	OpenTunnel(localPort, remotePort int) (Tunnel, error)
}

// Connector opens connections to endpoints. The production
// implementation dials SSH; tests substitute a fake to verify that no
// connection is attempted when preconditions fail.
type Connector interface {
	Connect(ctx context.Context, ep Endpoint) (Conn, error)
}

// EndpointResolver turns a running instance snapshot into a reachable
// address. The lifecycle controller satisfies this.
type EndpointResolver interface {
	ResolveEndpoint(ctx context.Context, snap cloud.Instance) (string, error)
}

// sshConnector is the production Connector backed by pkg/sshutil.
type sshConnector struct{}

// NewSSHConnector returns the production SSH-backed connector.
func NewSSHConnector() Connector {
	return sshConnector{}
}

func (sshConnector) Connect(ctx context.Context, ep Endpoint) (Conn, error) {
	client, err := sshutil.Dial(sshutil.Options{
		Host:    ep.Host,
		User:    ep.User,
		KeyFile: ep.KeyFile,
		Timeout: ep.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &sshConn{Client: client}, nil
}

// sshConn adapts a sshutil.Client to the Conn interface.
type sshConn struct {
	*sshutil.Client
}

func (c *sshConn) OpenTunnel(localPort, remotePort int) (Tunnel, error) {
	return sshutil.OpenTunnel(c.Client, localAddr(localPort), remotePort)
}
