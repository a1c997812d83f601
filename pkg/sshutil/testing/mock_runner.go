// Package testing provides a mock SSH runner for exercising session
// logic without a live instance.
package testing

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"sync"
)

// CommandResponse defines a canned response for a command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockRunner simulates an SSH connection. Commands are matched against
// registered patterns; unmatched commands succeed with empty output.
// Registering several responses for the same pattern consumes them in
// order, with the last one repeating.
type MockRunner struct {
	mu       sync.Mutex
	host     string
	closed   bool
	commands map[string][]CommandResponse

	// Executed records every command in order.
	Executed []string
	// ShellCalls counts interactive shell invocations.
	ShellCalls int
}

// NewMockRunner creates a mock runner for the given host.
func NewMockRunner(host string) *MockRunner {
	return &MockRunner{
		host:     host,
		commands: make(map[string][]CommandResponse),
	}
}

// OnCommand registers a canned response. The pattern is matched first
// as an exact command string, then as a regular expression.
func (m *MockRunner) OnCommand(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = append(m.commands[pattern], resp)
}

func (m *MockRunner) take(pattern string) CommandResponse {
	queue := m.commands[pattern]
	resp := queue[0]
	if len(queue) > 1 {
		m.commands[pattern] = queue[1:]
	}
	return resp
}

func (m *MockRunner) lookup(cmd string) (CommandResponse, bool) {
	if _, ok := m.commands[cmd]; ok {
		return m.take(cmd), true
	}
	for pattern := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return m.take(pattern), true
		}
	}
	return CommandResponse{}, false
}

// Exec runs a command against the registered responses.
func (m *MockRunner) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}
	m.Executed = append(m.Executed, cmd)

	if resp, ok := m.lookup(cmd); ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}
	return nil, nil, 0, nil
}

// ExecStream runs a command and writes canned output to the writers.
func (m *MockRunner) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	out, errOut, code, execErr := m.Exec(cmd)
	if execErr != nil {
		return -1, execErr
	}
	if len(out) > 0 && stdout != nil {
		if _, werr := stdout.Write(out); werr != nil {
			return -1, fmt.Errorf("writing stdout: %w", werr)
		}
	}
	if len(errOut) > 0 && stderr != nil {
		if _, werr := stderr.Write(errOut); werr != nil {
			return -1, fmt.Errorf("writing stderr: %w", werr)
		}
	}
	return code, nil
}

// Shell records the invocation and returns immediately.
func (m *MockRunner) Shell(stdin io.Reader, stdout, stderr io.Writer, width, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("connection closed")
	}
	m.ShellCalls++
	return nil
}

// Close marks the connection closed.
func (m *MockRunner) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockRunner) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
