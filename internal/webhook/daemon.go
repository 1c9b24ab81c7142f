package webhook

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tanatools/supertag/internal/config"
)

// PIDPath is where the daemon records its process id.
func PIDPath() string {
	return filepath.Join(config.Dir(), "server.pid")
}

// WritePID records the current process, refusing when another live daemon
// holds the file. A stale PID file (process gone) is replaced.
func WritePID() error {
	path := PIDPath()
	if data, err := os.ReadFile(path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pidAlive(pid) {
			return fmt.Errorf("server already running with pid %d", pid)
		}
		// Stale file from a crashed run.
		os.Remove(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// RemovePID deletes the PID file on graceful shutdown.
func RemovePID() {
	os.Remove(PIDPath())
}

// ReadPID returns the recorded daemon pid and whether that process is alive.
func ReadPID() (int, bool) {
	data, err := os.ReadFile(PIDPath())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, pidAlive(pid)
}

func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// NewLogger builds a rotating file logger for the daemon.
func NewLogger(cfg *ServerConfig) *log.Logger {
	return log.New(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogBackups,
	}, "", log.LstdFlags)
}
