// Package shell turns command lines into pipelines and runs them against the
// virtual file system: variable and alias preprocessing, glob expansion,
// sequencing, redirection, background jobs and prompts.
package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mako10k/vosh/internal/commands"
	"github.com/mako10k/vosh/internal/identity"
	"github.com/mako10k/vosh/internal/metrics"
	"github.com/mako10k/vosh/internal/utils"
	"github.com/mako10k/vosh/internal/vfs"
)

const (
	DefaultHostName = "vosh"
	DefaultPath     = "/bin:/usr/bin"
)

// Options configures a Shell. FS is required; the other fields have defaults.
type Options struct {
	FS            *vfs.FileSystem
	Users         *identity.Registry
	Registry      *commands.Registry
	Metrics       *metrics.Metrics
	HostName      string
	User          string
	MaxAliasDepth int
	NoticeBuffer  int
	HistorySize   int
}

// Shell is one interactive session: the foreground scope, its executor and
// a command line possibly waiting for input. Foreground runs are serialized.
type Shell struct {
	mu      sync.Mutex
	ex      *Executor
	sess    *Session
	host    string
	pending *Pending
	closed  atomic.Bool
	log     utils.Logger
}

func New(opts Options) (*Shell, error) {
	if opts.FS == nil {
		return nil, fmt.Errorf("shell: file system is required")
	}
	if opts.Users == nil {
		opts.Users = identity.NewRegistry()
	}
	if opts.Registry == nil {
		opts.Registry = commands.NewBuiltinRegistry(opts.Metrics)
	}
	if opts.HostName == "" {
		opts.HostName = DefaultHostName
	}
	if opts.User == "" {
		opts.User = identity.DefaultUser
	}
	cred, err := opts.Users.Cred(opts.User)
	if err != nil {
		return nil, fmt.Errorf("shell: %w", err)
	}

	home := vfs.Join("/home", opts.User)
	wd := home
	if info, err := opts.FS.GetNode(home, cred); err != nil || !info.IsDir() {
		wd = vfs.Root
	}
	vars := map[string]string{
		"USER": opts.User,
		"HOME": home,
		"HOST": opts.HostName,
		"PATH": DefaultPath,
	}
	sess := NewSession(cred, wd, vars, NewHistory(opts.HistorySize))
	ex := NewExecutor(ExecutorConfig{
		FS:            opts.FS,
		Registry:      opts.Registry,
		Users:         opts.Users,
		Jobs:          NewJobManager(opts.NoticeBuffer, opts.Metrics),
		MaxAliasDepth: opts.MaxAliasDepth,
	})
	log := utils.GetLogger("shell").With().Str("session", sess.ID).Logger()
	log.Debug().Str("user", opts.User).Str("wd", wd).Msg("session started")
	return &Shell{ex: ex, sess: sess, host: opts.HostName, log: log}, nil
}

// Run executes input as a command line, or answers the pending prompt when a
// previous line is waiting for input.
func (s *Shell) Run(ctx context.Context, input string) Outcome {
	if s.closed.Load() {
		return failed(ErrShellClosed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Outcome
	if p := s.pending; p != nil {
		s.pending = nil
		out = p.Resume(ctx, input)
	} else {
		if strings.TrimSpace(input) == "" {
			return Outcome{}
		}
		s.sess.history.Add(strings.TrimSpace(input))
		out = s.ex.Execute(ctx, s.sess, input)
	}
	s.pending = out.Pending
	if out.Err != nil {
		s.log.Debug().Err(out.Err).Msg("command line failed")
	}
	return out
}

// Exec runs line in the foreground scope without recording it in the
// history. It is meant for applications; a prompt raised by line fails.
func (s *Shell) Exec(ctx context.Context, line string) Outcome {
	if s.closed.Load() {
		return failed(ErrShellClosed)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ex.execute(ctx, s.sess, line, modeScript)
}

// Cancel drops the pending prompt, if any.
func (s *Shell) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return ErrNothingPending
	}
	s.pending = nil
	return nil
}

// Waiting reports whether a command line waits for input.
func (s *Shell) Waiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Prompt returns the text to show before reading the next line.
func (s *Shell) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return s.pending.Message
	}
	wd := s.sess.WorkDir()
	if home, _ := s.sess.Env().Get("HOME"); home != "" && vfs.IsWithin(wd, home) {
		wd = "~" + strings.TrimPrefix(wd, home)
	}
	return fmt.Sprintf("%s@%s:%s$ ", s.sess.User(), s.host, wd)
}

func (s *Shell) Session() *Session { return s.sess }

func (s *Shell) Jobs() *JobManager { return s.ex.Jobs() }

func (s *Shell) Aliases() *AliasTable { return s.ex.Aliases() }

// Notices delivers one notice per settled background job.
func (s *Shell) Notices() <-chan Notice { return s.ex.Jobs().Notices() }

// Register adds a command to the registry the shell dispatches to.
func (s *Shell) Register(d *commands.Definition) { s.ex.registry.Register(d) }

// Names lists the commands the shell knows, for completion.
func (s *Shell) Names() []string { return s.ex.registry.Names() }

// Close kills the background jobs. Later runs fail with ErrShellClosed.
func (s *Shell) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	s.log.Debug().Int("jobs", s.ex.Jobs().Active()).Msg("closing shell")
	return s.ex.Jobs().Shutdown(ctx)
}
