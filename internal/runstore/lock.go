package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	outputLockDirName   = ".lwdecomp.lock"
	outputLockOwnerFile = "owner.json"
)

// ErrOutputLocked reports that another lwdecomp process holds the output
// root.
var ErrOutputLocked = errors.New("output directory is locked")

// OutputLock keeps a second process from resetting the batch folders of
// an output root while a run is writing them.
type OutputLock struct {
	dir string
}

// lockOwner is written into the lock directory so a later run can tell a
// live holder from one that crashed.
type lockOwner struct {
	PID       int    `json:"pid"`
	Hostname  string `json:"hostname,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (o lockOwner) String() string {
	return fmt.Sprintf("pid=%d host=%s since=%s", o.PID, o.Hostname, o.CreatedAt)
}

// stale is true only when the holder ran on this host and is gone. Locks
// from other hosts are never broken.
func (o lockOwner) stale(host string) bool {
	return o.PID > 0 && o.Hostname == host && !processAlive(o.PID)
}

// OutputLockPath is the lock directory of an output root.
func OutputLockPath(outputRoot string) string {
	return filepath.Join(outputRoot, outputLockDirName)
}

// AcquireOutputLock takes the lock on outputRoot. A lock left by a
// crashed process on this host is removed and taken over.
func AcquireOutputLock(outputRoot string) (OutputLock, error) {
	root := strings.TrimSpace(outputRoot)
	if root == "" {
		return OutputLock{}, errors.New("output directory is required")
	}
	dir := OutputLockPath(root)
	host := hostnameOrUnknown()

	err := os.Mkdir(dir, 0o755)
	if err != nil && os.IsExist(err) {
		owner, readErr := readLockOwner(dir)
		if readErr != nil || !owner.stale(host) {
			return OutputLock{}, lockedError(root, dir, owner, readErr)
		}
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return OutputLock{}, fmt.Errorf("remove stale lock %s: %w", dir, rmErr)
		}
		err = os.Mkdir(dir, 0o755)
		if err != nil && os.IsExist(err) {
			// Another process took it over first.
			owner, readErr = readLockOwner(dir)
			return OutputLock{}, lockedError(root, dir, owner, readErr)
		}
	}
	if err != nil {
		return OutputLock{}, fmt.Errorf("acquire output lock for %s: %w", root, err)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		Hostname:  host,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := WriteJSON(filepath.Join(dir, outputLockOwnerFile), owner); err != nil {
		_ = os.RemoveAll(dir)
		return OutputLock{}, fmt.Errorf("write output lock owner for %s: %w", root, err)
	}
	return OutputLock{dir: dir}, nil
}

func readLockOwner(dir string) (lockOwner, error) {
	var owner lockOwner
	if err := ReadJSON(filepath.Join(dir, outputLockOwnerFile), &owner); err != nil {
		return lockOwner{}, err
	}
	if owner.PID <= 0 {
		return lockOwner{}, errors.New("lock owner has no pid")
	}
	return owner, nil
}

func lockedError(root, dir string, owner lockOwner, ownerErr error) error {
	holder := "unknown holder"
	if ownerErr == nil {
		holder = owner.String()
	}
	return fmt.Errorf("%w: %s (%s); if no other lwdecomp run is using it, remove %s",
		ErrOutputLocked, root, holder, dir)
}

// Release removes the lock. It is safe on a zero OutputLock.
func (l OutputLock) Release() error {
	if l.dir == "" {
		return nil
	}
	if err := os.RemoveAll(l.dir); err != nil {
		return fmt.Errorf("release output lock %s: %w", l.dir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		return "unknown"
	}
	return strings.TrimSpace(host)
}
