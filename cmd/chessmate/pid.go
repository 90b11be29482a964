package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

// managePIDFile writes the current PID to path, holding an exclusive lock on
// it when lock is set. The returned cleanup must be called on exit.
func managePIDFile(path string, lock bool) (func(), error) {
	var fl *flock.Flock
	if lock {
		fl = flock.New(path)
		ok, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock failed: %w", err)
		}
		if !ok {
			if pid, err := readPID(path); err == nil {
				return nil, fmt.Errorf("cannot acquire lock: another instance is running (pid %d)", pid)
			}
			return nil, fmt.Errorf("cannot acquire lock: another instance is running")
		}
	} else if pid, err := readPID(path); err == nil && pid != os.Getpid() && processAlive(pid) {
		return nil, fmt.Errorf("PID file %s belongs to running process %d", path, pid)
	}

	release := func() {
		if fl != nil {
			fl.Unlock()
		}
	}

	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		release()
		return nil, fmt.Errorf("cannot write PID: %w", err)
	}

	cleanup := func() {
		os.Remove(path)
		release()
	}
	return cleanup, nil
}

// readPID parses the PID stored in an existing file
func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("corrupted PID file (contains: %q)", string(data))
	}
	return pid, nil
}

// processAlive sends signal 0 to pid
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM means the process exists under another user
	return errors.Is(err, syscall.EPERM)
}
