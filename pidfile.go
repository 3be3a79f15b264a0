package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// watchLockName is created inside a watched directory. The leading dot keeps
// the drop folder from uploading it.
const watchLockName = ".upload-go.lock"

const lockFilePermissions = 0o644

var errWatchLocked = errors.New("directory is already being watched")

// lockWatchDir takes an exclusive flock on the lock file in dir and records
// the current PID in it. Two watchers on one directory would upload every
// file twice, so a second attempt fails with errWatchLocked. The returned
// function removes the file and releases the lock.
func lockWatchDir(dir string) (unlock func(), err error) {
	if dir == "" {
		return nil, fmt.Errorf("watch directory is empty")
	}

	path := filepath.Join(dir, watchLockName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	// Non-blocking: fail at once if another process holds it.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		if pid, pidErr := readPIDFile(path); pidErr == nil {
			return nil, fmt.Errorf("%w: %s (pid %d)", errWatchLocked, dir, pid)
		}

		return nil, fmt.Errorf("%w: %s", errWatchLocked, dir)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()

		return nil, fmt.Errorf("truncating lock file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()

		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return nil, fmt.Errorf("syncing lock file: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}

// readPIDFile reads the PID recorded in a lock file.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading lock file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", path, err)
	}

	return pid, nil
}
