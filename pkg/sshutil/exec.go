package sshutil

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"

	"github.com/lobot-sh/lobot/internal/errors"
)

// Exec runs a command on the instance and returns the output.
// Exit code is -1 if the command couldn't be executed at all; a
// non-zero exit code with nil error means the command ran but failed.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrConnect,
			"failed to create SSH session",
			"The connection may have been closed; try reconnecting")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	exitCode = 0
	err = session.Run(cmd)
	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
			err = nil
		} else {
			return nil, nil, -1, errors.WrapWithCode(err, errors.ErrConnect,
				fmt.Sprintf("failed to execute command: %s", cmd),
				"Check if the command exists on the instance")
		}
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// ExecStream runs a command and streams output to the provided writers.
// Returns the exit code and any error.
func (c *Client) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	session, err := c.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrConnect,
			"failed to create SSH session",
			"The connection may have been closed; try reconnecting")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	exitCode = 0
	err = session.Run(cmd)
	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
			err = nil
		} else {
			return -1, errors.WrapWithCode(err, errors.ErrConnect,
				fmt.Sprintf("failed to execute command: %s", cmd),
				"Check if the command exists on the instance")
		}
	}

	return exitCode, nil
}

// Shell starts an interactive login shell with a PTY of the given
// dimensions. The caller owns stdin/stdout/stderr and is responsible
// for putting the local terminal into raw mode.
func (c *Client) Shell(stdin io.Reader, stdout, stderr io.Writer, width, height int) error {
	session, err := c.Client.NewSession()
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConnect,
			"failed to create SSH session",
			"The connection may have been closed; try reconnecting")
	}
	defer session.Close()

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}

	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}

	if err := session.RequestPty("xterm-256color", height, width, modes); err != nil {
		return errors.WrapWithCode(err, errors.ErrConnect,
			"failed to allocate PTY for shell",
			"The instance may not support pseudo-terminals")
	}

	session.Stdin = stdin
	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Shell(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConnect,
			"failed to start shell",
			"Check if your user has shell access on the instance")
	}

	err = session.Wait()
	if _, ok := err.(*ssh.ExitError); ok {
		// A shell that exits non-zero is still a completed session.
		return nil
	}
	return err
}
