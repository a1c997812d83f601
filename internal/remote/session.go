package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/keys"
	"github.com/lobot-sh/lobot/internal/logger"
)

// Options carries the session-level settings that don't vary per call.
type Options struct {
	// User is the remote login user (ec2-user, ubuntu, ...).
	User string
	// ConnectTimeout bounds the TCP dial.
	ConnectTimeout time.Duration
	// RemoteBase is the working directory on the instance, e.g. "~/lobot".
	RemoteBase string
	// NotebookRemotePort is the port the notebook server listens on.
	NotebookRemotePort int
	// NotebookLocalPort is the first local port tried for the tunnel.
	NotebookLocalPort int
}

// Session orchestrates shells, notebook tunnels, and transfers for
// instances. Every operation resolves the private key (and checks its
// permissions) before anything touches the network.
type Session struct {
	resolver  EndpointResolver
	keys      *keys.Store
	connector Connector
	opts      Options
	log       logger.Logger

	// runTransfer executes the local copy subprocess; replaced in tests.
	runTransfer func(ctx context.Context, args []string, output io.Writer) error
	// sleep paces notebook startup polling; replaced in tests.
	sleep func(d time.Duration)
}

// NewSession creates a session orchestrator.
func NewSession(resolver EndpointResolver, store *keys.Store, connector Connector, opts Options, log logger.Logger) *Session {
	if log == nil {
		log = logger.Noop()
	}
	if connector == nil {
		connector = NewSSHConnector()
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.RemoteBase == "" {
		opts.RemoteBase = "~/lobot"
	}
	if opts.NotebookRemotePort == 0 {
		opts.NotebookRemotePort = 8888
	}
	if opts.NotebookLocalPort == 0 {
		opts.NotebookLocalPort = 8888
	}
	return &Session{
		resolver:    resolver,
		keys:        store,
		connector:   connector,
		opts:        opts,
		log:         log,
		runTransfer: runCopyCommand,
		sleep:       time.Sleep,
	}
}

// endpoint resolves everything needed to reach the instance. The key
// check runs first so an insecure key aborts before any dial.
func (s *Session) endpoint(ctx context.Context, inst cloud.Instance) (Endpoint, error) {
	keyFile, err := s.keys.Resolve(inst.KeyName)
	if err != nil {
		return Endpoint{}, err
	}

	host, err := s.resolver.ResolveEndpoint(ctx, inst)
	if err != nil {
		return Endpoint{}, err
	}

	return Endpoint{
		Host:    host,
		User:    s.opts.User,
		KeyFile: keyFile,
		Timeout: s.opts.ConnectTimeout,
	}, nil
}

// connect resolves the endpoint and opens a connection.
func (s *Session) connect(ctx context.Context, inst cloud.Instance) (Conn, Endpoint, error) {
	ep, err := s.endpoint(ctx, inst)
	if err != nil {
		return nil, Endpoint{}, err
	}

	s.log.Debug("connecting to %s@%s", ep.User, ep.Host)
	conn, err := s.connector.Connect(ctx, ep)
	if err != nil {
		return nil, Endpoint{}, err
	}
	return conn, ep, nil
}

// Shell opens an interactive login shell on the instance. When stdin
// is a terminal it is switched to raw mode for the duration and the
// remote PTY gets the local window size.
func (s *Session) Shell(ctx context.Context, inst cloud.Instance, stdin io.Reader, stdout, stderr io.Writer) error {
	conn, ep, err := s.connect(ctx, inst)
	if err != nil {
		return err
	}
	defer conn.Close()

	width, height := 80, 24
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		if w, h, err := term.GetSize(fd); err == nil {
			width, height = w, h
		}
		oldState, err := term.MakeRaw(fd)
		if err == nil {
			defer term.Restore(fd, oldState)
		}
	}

	s.log.Info("shell session to %s", ep.Host)
	return conn.Shell(stdin, stdout, stderr, width, height)
}

// Run executes a single command on the instance and streams output.
func (s *Session) Run(ctx context.Context, inst cloud.Instance, cmd string, stdout, stderr io.Writer) (int, error) {
	conn, _, err := s.connect(ctx, inst)
	if err != nil {
		return -1, err
	}
	defer conn.Close()

	return conn.ExecStream(cmd, stdout, stderr)
}

// localAddr formats a loopback listen address for a local port.
func localAddr(port int) string {
	return fmt.Sprintf("127.0.0.1:%d", port)
}
