package daemon

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
)

// State manages the files coordinating the daemon process and its clients:
// the PID file, the IPC socket, and the log file.
type State struct {
	PIDFile    string
	SocketPath string
	LogFile    string
}

// IsRunning reports whether a daemon currently holds the PID file.
func (s *State) IsRunning() bool {
	pid, ok := s.ReadPID()
	return ok && processExists(pid)
}

// ReadPID returns the PID recorded in the PID file, if any.
func (s *State) ReadPID() (int, bool) {
	data, err := os.ReadFile(s.PIDFile)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

// AcquirePID claims the PID file for this process. Creation is exclusive; a
// stale file left by a crashed daemon (dead owner PID) is taken over. A
// live owner refuses the start with its PID in the error.
func (s *State) AcquirePID() error {
	pid := os.Getpid()

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(s.PIDFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := file.WriteString(strconv.Itoa(pid))
			cerr := file.Close()
			if werr != nil {
				return eris.Wrap(werr, "failed to write PID file")
			}
			if cerr != nil {
				return eris.Wrap(cerr, "failed to close PID file")
			}
			return nil
		}
		if !os.IsExist(err) {
			return eris.Wrapf(err, "failed to create PID file: %s", s.PIDFile)
		}

		owner, ok := s.ReadPID()
		if ok && processExists(owner) {
			return eris.Errorf("daemon already running (PID %d); stop it or remove %s", owner, s.PIDFile)
		}

		// Stale file from a crashed run; remove and retry once.
		if err := os.Remove(s.PIDFile); err != nil && !os.IsNotExist(err) {
			return eris.Wrapf(err, "failed to remove stale PID file: %s", s.PIDFile)
		}
	}

	return eris.Errorf("failed to acquire PID file: %s", s.PIDFile)
}

// ReleasePID removes the PID file. Missing files are not an error.
func (s *State) ReleasePID() error {
	if err := os.Remove(s.PIDFile); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "failed to remove PID file")
	}
	return nil
}

// RemoveSocket removes the IPC socket file. Missing files are not an error.
func (s *State) RemoveSocket() error {
	if err := os.Remove(s.SocketPath); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "failed to remove socket file")
	}
	return nil
}

// Cleanup removes the PID file and socket during graceful shutdown.
func (s *State) Cleanup() error {
	if err := s.ReleasePID(); err != nil {
		return err
	}
	return s.RemoveSocket()
}

// Stats is the runtime status published over IPC.
type Stats struct {
	PID              int       `json:"pid"`
	StartedAt        time.Time `json:"started_at"`
	UptimeSeconds    int64     `json:"uptime_seconds"`
	WatchedRoots     int       `json:"watched_roots"`
	SourcesScanned   uint64    `json:"sources_scanned"`
	SessionsImported uint64    `json:"sessions_imported"`
	MessagesImported uint64    `json:"messages_imported"`
	LinksCreated     uint64    `json:"links_created"`
	Errors           uint64    `json:"errors"`
}

// counters tracks daemon-scope numbers not owned by the engine.
type counters struct {
	linksCreated atomic.Uint64
}
