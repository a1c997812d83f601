// Package sshutil provides SSH connectivity to instances: dialing,
// command execution, interactive shells, and local port forwarding.
package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/lobot-sh/lobot/internal/errors"
)

// Options describes how to reach an instance. Host and User are
// required; KeyFile points at a private key that has already passed
// permission checks.
type Options struct {
	Host    string
	Port    string // defaults to "22"
	User    string
	KeyFile string
	Timeout time.Duration // defaults to 10s
}

// Client wraps an SSH connection with the endpoint it was dialed to.
type Client struct {
	*ssh.Client
	Host    string
	Address string
}

// StrictHostKeyChecking controls host key verification. When true,
// host keys are verified against ~/.ssh/known_hosts; unknown hosts are
// recorded on first connect. When false, verification is skipped.
var StrictHostKeyChecking = true

// Dial opens an SSH connection to the endpoint described by opts.
// Failures are categorized: the caller can distinguish an unreachable
// host from a refused connection from a rejected key.
func Dial(opts Options) (*Client, error) {
	if opts.Port == "" {
		opts.Port = "22"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.User == "" {
		opts.User = defaultUser(opts.Host)
	}

	config, err := buildSSHConfig(&opts)
	if err != nil {
		var lbErr *errors.Error
		if stderrors.As(err, &lbErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSHAuth,
			fmt.Sprintf("couldn't set up SSH auth for %s", opts.Host),
			"Check the key file is a valid private key")
	}

	address := net.JoinHostPort(opts.Host, opts.Port)
	conn, err := net.DialTimeout("tcp", address, opts.Timeout)
	if err != nil {
		return nil, classifyDialError(err, opts.Host, address)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSHAuth,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}
		return nil, classifyHandshakeError(err, &opts)
	}

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    opts.Host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// classifyDialError maps a TCP dial failure onto the connection error
// taxonomy.
func classifyDialError(err error, host, address string) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "no route to host"),
		strings.Contains(errStr, "network is unreachable"):
		return errors.WrapWithCode(err, errors.ErrUnreachable,
			fmt.Sprintf("can't route to %s", address),
			"Check your network connection and the instance's security group")
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "i/o timeout"):
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("connection to %s timed out", address),
			"The instance may still be booting, or port 22 is blocked by its security group")
	case strings.Contains(errStr, "connection refused"):
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("connection to %s was refused", address),
			fmt.Sprintf("Is sshd running on the instance? Try: ssh %s", host))
	default:
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("can't reach %s", address),
			fmt.Sprintf("Make sure the host is reachable: ping %s", host))
	}
}

// classifyHandshakeError maps an SSH handshake failure onto the
// connection error taxonomy.
func classifyHandshakeError(err error, opts *Options) error {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods") {
		return errors.WrapWithCode(err, errors.ErrSSHAuth,
			fmt.Sprintf("%s rejected the key for user %s", opts.Host, opts.User),
			fmt.Sprintf("Check that %s matches the instance's key pair and that the remote user is right", opts.KeyFile))
	}
	return errors.WrapWithCode(err, errors.ErrConnect,
		fmt.Sprintf("SSH handshake with %s didn't go through", opts.Host),
		fmt.Sprintf("Try connecting manually: ssh %s@%s", opts.User, opts.Host))
}

// buildSSHConfig creates a client config from the explicit key file,
// with the SSH agent as a fallback auth method.
func buildSSHConfig(opts *Options) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if opts.KeyFile != "" {
		keyAuth, err := keyFileAuth(opts.KeyFile)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				return nil, errors.New(errors.ErrSSHAuth,
					encErr.Error(),
					fmt.Sprintf("Add the key to your agent: ssh-add %s", opts.KeyFile))
			}
			return nil, errors.WrapWithCode(err, errors.ErrSSHAuth,
				fmt.Sprintf("couldn't load private key %s", opts.KeyFile), "")
		}
		authMethods = append(authMethods, keyAuth)
	}

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	if len(authMethods) == 0 {
		return nil, errors.New(errors.ErrSSHAuth,
			"no SSH auth methods available",
			"Check your keys are loaded: ssh-add -l")
	}

	var hostKeyCallback ssh.HostKeyCallback
	if StrictHostKeyChecking {
		knownHostsPath := filepath.Join(homeDir(), ".ssh", "known_hosts")
		var err error
		hostKeyCallback, err = createHostKeyCallback(knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	} else {
		hostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // caller explicitly disabled host key checking
	}

	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}, nil
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method backed by the SSH agent, or nil
// when no agent is available or it has no keys.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent placed before key auth causes avoidable failures.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// keyFileAuth returns an auth method using a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		if strings.Contains(err.Error(), "encrypted") ||
			strings.Contains(err.Error(), "passphrase") ||
			isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// defaultUser resolves the login user for a host from ~/.ssh/config,
// falling back to the local user.
func defaultUser(host string) string {
	if cfg := loadUserConfig(); cfg != nil {
		if user, _ := cfg.Get(host, "User"); user != "" {
			return user
		}
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "ec2-user"
}

var (
	userConfig     *ssh_config.Config
	userConfigOnce sync.Once
)

// loadUserConfig parses ~/.ssh/config once. Content from the first
// Match directive onward is dropped before parsing; the ssh_config
// library doesn't support Match blocks.
func loadUserConfig() *ssh_config.Config {
	userConfigOnce.Do(func() {
		path := filepath.Join(homeDir(), ".ssh", "config")
		content, err := os.ReadFile(path)
		if err != nil {
			return
		}
		cfg, err := ssh_config.Decode(bytes.NewReader(stripMatchBlocks(content)))
		if err != nil {
			return
		}
		userConfig = cfg
	})
	return userConfig
}

// stripMatchBlocks returns config content up to the first Match
// directive.
func stripMatchBlocks(content []byte) []byte {
	lines := strings.Split(string(content), "\n")
	var result []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			break
		}
		result = append(result, line)
	}
	return []byte(strings.Join(result, "\n"))
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED")) ||
		bytes.Contains(data, []byte("Proc-Type: 4,ENCRYPTED"))
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides context when known_hosts verification
// fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the instance was replaced, remove the old entry:\n"+
			"    ssh-keygen -R %s",
		wantStr, e.ReceivedType, host)
}

// createHostKeyCallback wraps the knownhosts callback so mismatches
// surface as HostKeyMismatchError and unknown hosts are recorded on
// first connect instead of refused.
func createHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		dir := filepath.Dir(knownHostsPath)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) {
			if len(keyErr.Want) > 0 {
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   knownHostsPath,
					Want:         keyErr.Want,
				}
			}
			// Unknown host: instances get fresh host keys on every
			// start cycle, so record and continue.
			return appendKnownHost(knownHostsPath, hostname, key)
		}
		return err
	}, nil
}

// appendKnownHost records a host key in known_hosts.
func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	line := knownhosts.Line([]string{hostname}, key)
	_, err = fmt.Fprintln(f, line)
	return err
}
