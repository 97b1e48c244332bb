// Package lockfile guards a sync run with an exclusive lock file in the
// target directory. A second invocation while the lock is held fails
// fast instead of blocking.
package lockfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/wowplug/wowplug/pkg/errors"
	"github.com/wowplug/wowplug/pkg/logging"
)

// Lock is a held lock file. Release it on every exit path.
type Lock struct {
	path string
}

// Acquire creates the lock file exclusively, recording the holder pid.
// It fails with LOCK_HELD when the file already exists and its holder
// still looks alive; a lock left by a dead process is broken and
// re-acquired.
func Acquire(path string) (*Lock, error) {
	logger := logging.GetLogger("lockfile")

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, errors.New(errors.ErrFileAccess, "failed to write lock file")
			}
			logger.Debug().Str("path", path).Msg("Lock acquired")
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to create lock file %s", path)
		}
		if !holderAlive(path) {
			logger.Warn().Str("path", path).Msg("Breaking stale lock from dead process")
			_ = os.Remove(path)
			continue
		}
		return nil, errors.Newf(errors.ErrLockHeld, "sync already in progress (lock file %s)", path)
	}
	return nil, errors.Newf(errors.ErrLockHeld, "sync already in progress (lock file %s)", path)
}

// Release removes the lock file. Safe to call once per acquired lock.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrFileAccess, "failed to remove lock file %s", l.path)
	}
	logger := logging.GetLogger("lockfile")
	logger.Debug().Str("path", l.path).Msg("Lock released")
	return nil
}

// holderAlive reads the pid from an existing lock file and checks the
// process still exists. An unreadable lock is assumed held.
func holderAlive(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return true
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks for existence without affecting the process.
	return proc.Signal(syscall.Signal(0)) == nil
}
