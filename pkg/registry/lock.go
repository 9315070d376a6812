package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// lockFileName sits next to registry.dat inside the home directory.
const lockFileName = "registry.lock"

// ErrLocked is returned when another verify run holds the registry lock.
var ErrLocked = errors.New("another build is using the package cache")

// Lock is the advisory lock over `<home>/packages/`. It is held for the
// lifetime of a verify run; within it, per-package directories are treated
// as exclusively owned by the task building that (pkg, version).
type Lock struct {
	fs    afero.Fs
	path  string
	token string
}

// AcquireLock takes the registry lock, creating `<home>/registry.lock`
// exclusively with a fresh owner token inside. Returns [ErrLocked] if the
// lock file already exists.
func AcquireLock(fs afero.Fs, home string) (*Lock, error) {
	if err := fs.MkdirAll(home, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(home, lockFileName)

	f, err := fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if exists, _ := afero.Exists(fs, path); exists {
			return nil, ErrLocked
		}
		return nil, err
	}

	token := uuid.NewString()
	if _, err := f.WriteString(token + "\n"); err != nil {
		f.Close()
		_ = fs.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		_ = fs.Remove(path)
		return nil, err
	}
	return &Lock{fs: fs, path: path, token: token}, nil
}

// Release drops the lock. Releasing verifies the on-disk token still
// belongs to this holder; a mismatch means the lock was stolen (e.g. a
// stale file was cleared by hand mid-run) and is reported.
func (l *Lock) Release() error {
	data, err := afero.ReadFile(l.fs, l.path)
	if err != nil {
		return err
	}
	if got := string(data); got != l.token+"\n" {
		return fmt.Errorf("registry lock token mismatch: lock was taken over")
	}
	return l.fs.Remove(l.path)
}
