package sshutil

import "io"

// Runner is the command-execution surface of an SSH connection. The
// real Client and test mocks both satisfy it, so session logic can be
// exercised without a live instance.
type Runner interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecStream runs a command and streams output to the provided writers.
	ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	// Shell starts an interactive shell with a PTY of the given size.
	Shell(stdin io.Reader, stdout, stderr io.Writer, width, height int) error

	// Close closes the connection.
	Close() error
}
