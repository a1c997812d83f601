package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing failures. Each code maps to one failure kind
// the operator can act on; nothing is ever downgraded to a generic error.
const (
	// Control-plane failures.
	ErrAuth       = "AUTH"       // bad or expired credentials, never retried
	ErrNotFound   = "NOTFOUND"   // unknown instance id
	ErrTransition = "TRANSITION" // action illegal in the current lifecycle state
	ErrProvider   = "PROVIDER"   // transient API/network blip, retried with bounded backoff
	ErrTimeout    = "TIMEOUT"    // convergence not observed in time
	ErrVerify     = "VERIFY"     // post-action re-fetch doesn't match the request

	// Remote-session failures.
	ErrKeys        = "KEYS"        // key file missing or permissions too open
	ErrConnect     = "CONNECT"     // TCP connect failed or timed out
	ErrSSHAuth     = "SSHAUTH"     // SSH handshake rejected the key
	ErrUnreachable = "UNREACHABLE" // no route, network down, firewalled
	ErrTransfer    = "TRANSFER"    // file copy failed (possibly partially)

	ErrConfig = "CONFIG"
)

// Error is a structured error with code, message, suggestion, and optional cause.
// Rendered as:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrProvider code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrProvider,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Error implements the error interface with formatted output.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var lbErr *Error
	if errors.As(err, &lbErr) {
		return lbErr.Code == code
	}
	return false
}

// Retryable reports whether an error is a transient provider failure that a
// polling loop may absorb. Auth errors and precondition violations never are.
func Retryable(err error) bool {
	return IsCode(err, ErrProvider)
}

// ExitError carries a remote command's non-zero exit code through the CLI
// without wrapping it in failure prose.
type ExitError struct {
	Code int
}

// NewExitError creates an ExitError for the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}
