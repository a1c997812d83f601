package remote

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/errors"
)

// notebookStartupPolls bounds how long we wait for a freshly started
// notebook server to show up in `jupyter notebook list`.
const notebookStartupPolls = 5

// NotebookSession is an established notebook tunnel. The URL points at
// the local end and carries the server's auth token.
type NotebookSession struct {
	URL    string
	Tunnel Tunnel

	conn Conn
}

// Close tears down the tunnel and the SSH connection.
func (n *NotebookSession) Close() error {
	if n.Tunnel != nil {
		n.Tunnel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// Notebook ensures a notebook server is running on the instance and
// forwards a local port to it. The returned session's URL is ready to
// open in a browser; the caller must Serve the tunnel.
func (s *Session) Notebook(ctx context.Context, inst cloud.Instance) (*NotebookSession, error) {
	conn, ep, err := s.connect(ctx, inst)
	if err != nil {
		return nil, err
	}

	token, err := s.ensureNotebookServer(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	tunnel, err := s.openNotebookTunnel(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	localURL := fmt.Sprintf("http://%s/?token=%s", tunnel.LocalAddr(), token)
	s.log.Info("notebook on %s forwarded to %s", ep.Host, tunnel.LocalAddr())

	return &NotebookSession{URL: localURL, Tunnel: tunnel, conn: conn}, nil
}

// ensureNotebookServer returns the auth token of the server listening
// on the configured remote port, starting one if none is running.
func (s *Session) ensureNotebookServer(ctx context.Context, conn Conn) (string, error) {
	token, running, err := s.listNotebookToken(conn)
	if err != nil {
		return "", err
	}
	if running {
		return token, nil
	}

	s.log.Debug("no notebook server on port %d, starting one", s.opts.NotebookRemotePort)
	startCmd := fmt.Sprintf(
		"nohup jupyter notebook --no-browser --port=%d >/dev/null 2>&1 & disown",
		s.opts.NotebookRemotePort)
	if _, _, code, err := conn.Exec(startCmd); err != nil {
		return "", err
	} else if code != 0 {
		return "", errors.New(errors.ErrConnect,
			"couldn't start the notebook server",
			"Check that jupyter is installed on the instance: pip install notebook")
	}

	// The server takes a moment to come up and print its token.
	for i := 0; i < notebookStartupPolls; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		s.sleep(time.Second)

		token, running, err = s.listNotebookToken(conn)
		if err != nil {
			return "", err
		}
		if running {
			return token, nil
		}
	}

	return "", errors.New(errors.ErrConnect,
		fmt.Sprintf("notebook server didn't come up on port %d", s.opts.NotebookRemotePort),
		"Check the server log on the instance: jupyter notebook list")
}

// listNotebookToken runs `jupyter notebook list` and extracts the
// token of the server on the configured remote port.
func (s *Session) listNotebookToken(conn Conn) (token string, running bool, err error) {
	stdout, _, code, err := conn.Exec("jupyter notebook list")
	if err != nil {
		return "", false, err
	}
	if code != 0 {
		return "", false, errors.New(errors.ErrConnect,
			"couldn't query notebook servers on the instance",
			"Check that jupyter is installed on the instance: pip install notebook")
	}

	token, ok := parseNotebookToken(string(stdout), s.opts.NotebookRemotePort)
	return token, ok, nil
}

// parseNotebookToken scans `jupyter notebook list` output for a server
// URL on the given port and returns its token query parameter.
func parseNotebookToken(output string, port int) (string, bool) {
	portMarker := fmt.Sprintf(":%d/", port)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		raw := fields[0]
		if !strings.HasPrefix(raw, "http") || !strings.Contains(raw, portMarker) {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if token := u.Query().Get("token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// openNotebookTunnel binds the first free local port in the configured
// range. The range is small on purpose: anything beyond a couple of
// fallbacks means something else is wrong.
func (s *Session) openNotebookTunnel(conn Conn) (Tunnel, error) {
	base := s.opts.NotebookLocalPort
	var lastErr error
	for offset := 0; offset < 3; offset++ {
		tunnel, err := conn.OpenTunnel(base+offset, s.opts.NotebookRemotePort)
		if err == nil {
			if offset > 0 {
				s.log.Warn("local port %d busy, using %d", base, base+offset)
			}
			return tunnel, nil
		}
		lastErr = err
	}
	return nil, errors.WrapWithCode(lastErr, errors.ErrConnect,
		fmt.Sprintf("no free local port in %d-%d", base, base+2),
		fmt.Sprintf("Free one up or change the local notebook port: lsof -i :%d", base))
}
