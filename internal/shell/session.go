package shell

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/mako10k/vosh/internal/commands"
	"github.com/mako10k/vosh/internal/vfs"
)

// Session is the mutable state of one scope of execution: working
// directory, acting user and variables. Background jobs run on a clone so
// they never race the foreground.
type Session struct {
	ID string

	mu      sync.RWMutex
	wd      string
	user    string
	cred    vfs.Cred
	env     *Environment
	history *History
}

var _ commands.Session = (*Session)(nil)

// NewSession starts a session for cred in wd with the given base variables.
func NewSession(cred vfs.Cred, wd string, vars map[string]string, history *History) *Session {
	if history == nil {
		history = NewHistory(0)
	}
	return &Session{
		ID:      uuid.NewString(),
		wd:      vfs.ResolvePath(wd, vfs.Root),
		user:    cred.User,
		cred:    cred,
		env:     NewEnvironment(vars),
		history: history,
	}
}

func (s *Session) WorkDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wd
}

func (s *Session) Chdir(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wd = vfs.ResolvePath(path, s.wd)
}

// Resolve makes target absolute against the working directory, expanding a
// leading ~ to $HOME.
func (s *Session) Resolve(target string) string {
	home, _ := s.env.Get("HOME")
	return vfs.ResolvePath(vfs.ExpandHome(target, home), s.WorkDir())
}

func (s *Session) User() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) Cred() vfs.Cred {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// SetCred switches the acting user.
func (s *Session) SetCred(cred vfs.Cred) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = cred.User
	s.cred = cred
}

func (s *Session) Env() *Environment { return s.env }

func (s *Session) History() []string { return s.history.Entries() }

// Clone returns a session with the same user and directory and a detached
// copy of the current variables. The history is shared.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Session{
		ID:      s.ID,
		wd:      s.wd,
		user:    s.user,
		cred:    s.cred,
		env:     s.env.Clone(),
		history: s.history,
	}
}

// DefaultHistorySize is used when NewHistory gets a non-positive limit.
const DefaultHistorySize = 100

// History keeps the most recent command lines.
type History struct {
	mu      sync.Mutex
	limit   int
	entries []string
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit}
}

// Add records line unless it repeats the previous entry.
func (h *History) Add(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = slices.Delete(h.entries, 0, over)
	}
}

func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries)
}
