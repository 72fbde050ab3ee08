package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrPIDFileNotFound is returned when the PID file doesn't exist.
var ErrPIDFileNotFound = errors.New("PID file not found")

// ErrAlreadyRunning is returned by Acquire when a live process owns the file.
var ErrAlreadyRunning = errors.New("indexer daemon already running")

// PIDFile records which process serves the daemon socket.
type PIDFile struct {
	path string
}

// NewPIDFile returns a PIDFile at path. Nothing is touched on disk.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Acquire claims the file for the current process. Creation is exclusive,
// so two daemons starting together cannot both win. A file naming a dead
// process, or holding garbage, is replaced once.
func (p *PIDFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}
	for attempt := 0; ; attempt++ {
		err := p.create()
		if err == nil || !errors.Is(err, os.ErrExist) || attempt > 0 {
			return err
		}
		pid, readErr := p.Read()
		if readErr == nil && pid != os.Getpid() && processExists(pid) {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
		if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale pid file: %w", err)
		}
	}
}

func (p *PIDFile) create() error {
	f, err := os.OpenFile(p.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(p.path)
		return fmt.Errorf("write pid file: %w", werr)
	}
	return nil
}

// Read returns the recorded PID.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return 0, ErrPIDFileNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file content %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Remove deletes the file if the current process owns it. A missing file,
// or one claimed by another process since, is left alone.
func (p *PIDFile) Remove() error {
	pid, err := p.Read()
	if errors.Is(err, ErrPIDFileNotFound) {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// IsRunning reports whether the recorded process is alive.
func (p *PIDFile) IsRunning() bool {
	pid, err := p.Read()
	return err == nil && processExists(pid)
}

// Signal sends sig to the recorded process.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return err
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return nil
}

// processExists sends signal 0 to pid.
func processExists(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
