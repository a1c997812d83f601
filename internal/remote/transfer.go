package remote

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/errors"
)

// DeployDirName and FetchDirName are the fixed directory pair mirrored
// between the workstation and the instance, relative to the remote base.
const (
	DeployDirName = "deploy"
	FetchDirName  = "fetch"
)

// lookPath is swapped in tests so they don't depend on a local scp.
var lookPath = exec.LookPath

// findSCP locates the scp binary on the local system.
func findSCP() (string, error) {
	path, err := lookPath("scp")
	if err != nil {
		return "", errors.New(errors.ErrTransfer,
			"scp isn't installed locally",
			"It ships with OpenSSH: apt install openssh-client (Linux) or enable Remote Login tools (macOS)")
	}
	return path, nil
}

// Push recursively copies the contents of localDir to the deploy
// directory on the instance, creating the remote directory if needed.
// A partial copy is reported as a failure; nothing is retried.
func (s *Session) Push(ctx context.Context, inst cloud.Instance, localDir string, output io.Writer) error {
	info, err := os.Stat(localDir)
	if err != nil || !info.IsDir() {
		return errors.New(errors.ErrTransfer,
			fmt.Sprintf("local deploy directory %s doesn't exist", localDir),
			"Create it and put the files to deploy inside")
	}

	conn, ep, err := s.connect(ctx, inst)
	if err != nil {
		return err
	}
	defer conn.Close()

	remoteDir := s.remoteDir(DeployDirName)
	if err := ensureRemoteDir(conn, remoteDir); err != nil {
		return err
	}

	scpPath, err := findSCP()
	if err != nil {
		return err
	}

	args := buildPushArgs(ep, localDir, remoteDir)
	s.log.Debug("scp %s", strings.Join(args, " "))
	if err := s.runTransfer(ctx, append([]string{scpPath}, args...), output); err != nil {
		return classifyTransferError(err, ep.Host)
	}
	return nil
}

// Pull mirrors the fetch directory on the instance into localDir. The
// remote directory is created on demand so a first pull of an empty
// workspace succeeds as a no-op.
func (s *Session) Pull(ctx context.Context, inst cloud.Instance, localDir string, output io.Writer) error {
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return errors.WrapWithCode(err, errors.ErrTransfer,
			fmt.Sprintf("couldn't create local fetch directory %s", localDir), "")
	}

	conn, ep, err := s.connect(ctx, inst)
	if err != nil {
		return err
	}
	defer conn.Close()

	remoteDir := s.remoteDir(FetchDirName)
	if err := ensureRemoteDir(conn, remoteDir); err != nil {
		return err
	}

	scpPath, err := findSCP()
	if err != nil {
		return err
	}

	args := buildPullArgs(ep, remoteDir, localDir)
	s.log.Debug("scp %s", strings.Join(args, " "))
	if err := s.runTransfer(ctx, append([]string{scpPath}, args...), output); err != nil {
		return classifyTransferError(err, ep.Host)
	}
	return nil
}

// remoteDir joins a directory name onto the remote base.
func (s *Session) remoteDir(name string) string {
	return path.Join(s.opts.RemoteBase, name)
}

// buildPushArgs constructs scp arguments for a recursive upload of the
// directory's contents.
func buildPushArgs(ep Endpoint, localDir, remoteDir string) []string {
	return append(baseSCPArgs(ep),
		filepath.Clean(localDir)+"/.",
		fmt.Sprintf("%s@%s:%s", ep.User, ep.Host, remoteDir),
	)
}

// buildPullArgs constructs scp arguments for a recursive download of
// the remote directory's contents.
func buildPullArgs(ep Endpoint, remoteDir, localDir string) []string {
	return append(baseSCPArgs(ep),
		fmt.Sprintf("%s@%s:%s/.", ep.User, ep.Host, remoteDir),
		filepath.Clean(localDir),
	)
}

// baseSCPArgs holds the flags shared by both directions. BatchMode
// keeps scp from prompting when no terminal is attached.
func baseSCPArgs(ep Endpoint) []string {
	args := []string{"-r", "-o", "BatchMode=yes"}
	if ep.KeyFile != "" {
		args = append(args, "-i", ep.KeyFile)
	}
	if ep.Timeout > 0 {
		args = append(args, "-o", fmt.Sprintf("ConnectTimeout=%d", int(ep.Timeout.Seconds())))
	}
	return args
}

// ensureRemoteDir creates a directory on the instance. scp won't
// create missing parents.
func ensureRemoteDir(conn Conn, remoteDir string) error {
	cmd := fmt.Sprintf("mkdir -p %s", shellQuotePreserveTilde(remoteDir))
	_, stderr, code, err := conn.Exec(cmd)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrTransfer,
			fmt.Sprintf("couldn't create remote directory %s", remoteDir),
			"Check the SSH connection")
	}
	if code != 0 {
		return errors.New(errors.ErrTransfer,
			fmt.Sprintf("couldn't create remote directory %s", remoteDir),
			fmt.Sprintf("Remote error: %s", strings.TrimSpace(string(stderr))))
	}
	return nil
}

// shellQuotePreserveTilde quotes a path for the remote shell while
// keeping a leading ~ unquoted so it still expands.
func shellQuotePreserveTilde(p string) string {
	quote := func(s string) string {
		return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
	}
	if strings.HasPrefix(p, "~/") {
		return "~/" + quote(p[2:])
	}
	if p == "~" {
		return "~"
	}
	return quote(p)
}

// runCopyCommand executes the transfer subprocess, streaming combined
// output line by line.
func runCopyCommand(ctx context.Context, args []string, output io.Writer) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	if output == nil {
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout // interleave like a terminal would

	if err := cmd.Start(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			fmt.Fprintln(output, line)
		}
	}

	return cmd.Wait()
}

// classifyTransferError maps a copy subprocess failure onto the error
// taxonomy. Exit 255 is the SSH transport failing underneath scp.
func classifyTransferError(err error, host string) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) && exitErr.ExitCode() == 255 {
		return errors.WrapWithCode(err, errors.ErrConnect,
			fmt.Sprintf("SSH connection to %s failed during transfer", host),
			fmt.Sprintf("Check that the instance is reachable: ssh %s", host))
	}

	return errors.WrapWithCode(err, errors.ErrTransfer,
		"transfer failed, files may have been partially copied",
		"Check the output above; re-run once the cause is fixed")
}
