package pidstore

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DaemonEntry is the synthetic service name used to track a background
// supervisor instance.
const DaemonEntry = "daemon"

// Store is a durable mapping from service name to last-known pid, one file
// per service under <dir>/<service>.pid. A recorded pid is a hint, not a
// fact: callers always re-validate against the OS before trusting it, so
// concurrent writers racing on a file are tolerated (last writer wins).
type Store struct {
	dir string
}

func New(dir string) *Store { return &Store{dir: dir} }

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

// EnsureDir creates the backing directory if needed.
func (s *Store) EnsureDir() error {
	return os.MkdirAll(s.dir, 0o750)
}

func (s *Store) path(service string) string {
	return filepath.Join(s.dir, service+".pid")
}

// Write records the pid for a service, replacing any previous record.
func (s *Store) Write(service string, pid int) error {
	if err := s.EnsureDir(); err != nil {
		return err
	}
	return os.WriteFile(s.path(service), []byte(strconv.Itoa(pid)), 0o600)
}

// Read returns the recorded pid for a service. A missing file and a
// malformed (non-integer) file both resolve to (0, false): callers must not
// distinguish "never started" from "corrupt record".
func (s *Store) Read(service string) (int, bool) {
	b, err := os.ReadFile(s.path(service))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// Remove deletes the record for a service. Removing an absent record is not
// an error.
func (s *Store) Remove(service string) {
	_ = os.Remove(s.path(service))
}
