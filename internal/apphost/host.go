// Package apphost runs full-screen style applications on top of the shell.
// While an application is active every input line goes to it; otherwise
// lines go to the shell.
package apphost

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mako10k/vosh/internal/commands"
	"github.com/mako10k/vosh/internal/shell"
	"github.com/mako10k/vosh/internal/utils"
	"github.com/mako10k/vosh/internal/vfs"
)

var (
	ErrAppActive   = errors.New("an application is already running")
	ErrUnknownApp  = errors.New("unknown application")
	ErrInteractive = errors.New("can only be run in interactive mode")
)

// App is an application driven line by line by the host.
type App interface {
	Name() string
	// Enter starts the application and returns its first screen. It runs
	// inside the launching command and must not call Services.Exec.
	Enter(ctx context.Context, svc *Services, args []string) (string, error)
	// HandleInput processes one line. done ends the application.
	HandleInput(ctx context.Context, line string) (output string, done bool, err error)
	// Exit releases the application and returns a farewell message.
	Exit(ctx context.Context) string
}

// Services is what an application may use: the file system as the session
// user and command execution in the foreground session.
type Services struct {
	FS      *vfs.FileSystem
	Session *shell.Session
	Exec    func(ctx context.Context, line string) shell.Outcome
}

func (s *Services) Cred() vfs.Cred { return s.Session.Cred() }

// Resolve makes p absolute against the session working directory, expanding
// a leading ~.
func (s *Services) Resolve(p string) string { return s.Session.Resolve(p) }

// Host owns the shell and the registered applications.
type Host struct {
	mu     sync.Mutex
	shell  *shell.Shell
	svc    *Services
	apps   map[string]App
	active App
	log    utils.Logger
}

func New(sh *shell.Shell, fs *vfs.FileSystem) *Host {
	return &Host{
		shell: sh,
		svc:   &Services{FS: fs, Session: sh.Session(), Exec: sh.Exec},
		apps:  make(map[string]App),
		log:   utils.GetLogger("apphost"),
	}
}

// Register makes app launchable by name from the shell.
func (h *Host) Register(app App, summary, usage string) {
	h.mu.Lock()
	h.apps[app.Name()] = app
	h.mu.Unlock()

	h.shell.Register(commands.Simple(app.Name(), summary, usage, func(ctx context.Context, inv *commands.Invocation) commands.Result {
		if inv.Background || inv.Piped {
			return commands.Fail(fmt.Errorf("%s: %w", app.Name(), ErrInteractive))
		}
		out, err := h.Launch(ctx, app.Name(), inv.Args)
		if err != nil {
			return commands.Result{Output: out, Err: fmt.Errorf("%s: %w", app.Name(), err)}
		}
		return commands.OK(out)
	}))
}

// Launch enters the named application and makes it active.
func (h *Host) Launch(ctx context.Context, name string, args []string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active != nil {
		return "", fmt.Errorf("%w: %s", ErrAppActive, h.active.Name())
	}
	app, ok := h.apps[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownApp, name)
	}
	out, err := app.Enter(ctx, h.svc, args)
	if err != nil {
		return out, err
	}
	h.active = app
	h.log.Debug().Str("app", name).Strs("args", args).Msg("application entered")
	return out, nil
}

// Active returns the name of the running application, or "".
func (h *Host) Active() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == nil {
		return ""
	}
	return h.active.Name()
}

// Input routes line to the active application, or runs it in the shell.
func (h *Host) Input(ctx context.Context, line string) shell.Outcome {
	h.mu.Lock()
	app := h.active
	h.mu.Unlock()
	if app == nil {
		return h.shell.Run(ctx, line)
	}

	out, done, err := app.HandleInput(ctx, line)
	if !done {
		return appOutcome(out, err)
	}
	return h.exit(ctx, app, out, err)
}

// Exit leaves the active application, if any.
func (h *Host) Exit(ctx context.Context) shell.Outcome {
	h.mu.Lock()
	app := h.active
	h.mu.Unlock()
	if app == nil {
		return shell.Outcome{}
	}
	return h.exit(ctx, app, "", nil)
}

func (h *Host) exit(ctx context.Context, app App, out string, err error) shell.Outcome {
	bye := app.Exit(ctx)
	h.mu.Lock()
	if h.active == app {
		h.active = nil
	}
	h.mu.Unlock()
	h.log.Debug().Str("app", app.Name()).Msg("application exited")

	switch {
	case out == "":
		out = bye
	case bye != "":
		out += "\n" + bye
	}
	return appOutcome(out, err)
}

func appOutcome(out string, err error) shell.Outcome {
	o := shell.Outcome{Output: out, Err: err}
	if err != nil {
		o.Failures = []error{err}
	}
	return o
}

// Prompt is the application prompt while one is active, else the shell prompt.
func (h *Host) Prompt() string {
	if name := h.Active(); name != "" {
		return name + "> "
	}
	return h.shell.Prompt()
}

func (h *Host) Shell() *shell.Shell { return h.shell }
