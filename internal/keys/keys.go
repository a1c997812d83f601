// Package keys locates the private key files used to reach instances
// and enforces their permission requirements before any connection is
// attempted.
package keys

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lobot-sh/lobot/internal/errors"
)

// Store resolves instance key names to private key files under a
// single directory. Keys are stored as <name>.pem.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created if
// it does not exist so a fresh setup has an obvious place to drop keys.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New(errors.ErrConfig, "key directory is not configured", "Set keys_dir in your config file")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to create key directory %s", dir))
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store resolves keys in.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the path a key with the given name would live at,
// without checking that it exists.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".pem")
}

// Resolve returns the path to the private key for the given key name,
// verifying that the file exists and carries owner-only permissions.
// Group or world access on a private key is rejected outright; OpenSSH
// does the same, and failing early gives a clearer message than a
// refused handshake.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" {
		return "", errors.New(errors.ErrKeys,
			"instance has no key pair associated with it",
			"Connections require a key pair; associate one with the instance")
	}

	path := s.Path(name)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", errors.New(errors.ErrKeys,
			fmt.Sprintf("private key %s not found", path),
			fmt.Sprintf("Copy the %s.pem key file into %s", name, s.dir))
	}
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrKeys, fmt.Sprintf("failed to inspect key %s", path), "")
	}
	if info.IsDir() {
		return "", errors.New(errors.ErrKeys,
			fmt.Sprintf("%s is a directory, not a key file", path), "")
	}

	if err := checkPermissions(path, info.Mode()); err != nil {
		return "", err
	}
	return path, nil
}

// checkPermissions rejects any key readable by group or others. Only
// 0400 and 0600 are acceptable modes for a private key.
func checkPermissions(path string, mode os.FileMode) error {
	perm := mode.Perm()
	if perm&0077 != 0 {
		return errors.New(errors.ErrKeys,
			fmt.Sprintf("private key %s has insecure permissions %04o", path, perm),
			fmt.Sprintf("Fix: chmod 400 %s", path))
	}
	return nil
}
