// Package app assembles a vosh session from its configuration and drives it
// from a command line, a script, piped input or an interactive terminal.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mako10k/vosh/internal/apphost"
	"github.com/mako10k/vosh/internal/cli"
	"github.com/mako10k/vosh/internal/identity"
	"github.com/mako10k/vosh/internal/metrics"
	"github.com/mako10k/vosh/internal/shell"
	"github.com/mako10k/vosh/internal/store"
	"github.com/mako10k/vosh/internal/utils"
	"github.com/mako10k/vosh/internal/vfs"
)

const shutdownTimeout = 5 * time.Second

// ErrUnexpectedEOF is reported when input ends while a command waits for it.
var ErrUnexpectedEOF = errors.New("unexpected end of input while a command waits for input")

// App represents the main application
type App struct {
	metadata   ApplicationMetadata
	config     *cli.Config
	fileConfig *cli.ConfigFile
	streams    Streams

	backend store.Backend
	fs      *vfs.FileSystem
	users   *identity.Registry
	shell   *shell.Shell
	host    *apphost.Host
	metrics *metrics.Metrics
	server  *http.Server

	startTime time.Time
	exitCode  int
	log       utils.Logger
}

// New creates a new application instance
func New(metadata ApplicationMetadata, config *cli.Config, fileConfig *cli.ConfigFile, streams Streams) *App {
	return &App{
		metadata:   metadata,
		config:     config,
		fileConfig: fileConfig,
		streams:    streams,
		startTime:  time.Now(),
		log:        utils.GetLogger("app"),
	}
}

// ExitCode is 1 when the last command line failed, else 0.
func (a *App) ExitCode() int { return a.exitCode }

// Run executes the main application logic
func (a *App) Run(ctx context.Context) error {
	if err := a.initialize(ctx); err != nil {
		a.close()
		return err
	}
	defer a.close()

	switch {
	case a.config.Command != "":
		a.runLine(ctx, a.config.Command)
		a.finishInput()
	case a.config.ScriptFile != "":
		a.runLine(ctx, "run "+shellQuote(a.config.ScriptFile))
		a.finishInput()
	case a.isTerminal():
		return a.interactive(ctx)
	default:
		return a.runStream(ctx)
	}
	return nil
}

func (a *App) initialize(ctx context.Context) error {
	cfg := a.fileConfig
	if a.config.MetricsAddr != "" {
		a.serveMetrics(a.config.MetricsAddr)
	}

	var err error
	if a.backend, err = store.Open(cfg.StorePath); err != nil {
		return err
	}

	a.users = identity.NewRegistry()
	for _, u := range cfg.Users {
		a.users.AddUser(u.Name, u.PrimaryGroup)
		for _, g := range u.Groups {
			if err := a.users.AddMember(g, u.Name); err != nil {
				return fmt.Errorf("user %s: %w", u.Name, err)
			}
		}
	}

	fileMode, err := utils.ParseFileMode(cfg.DefaultFileMode)
	if err != nil {
		return err
	}
	dirMode, err := utils.ParseFileMode(cfg.DefaultDirMode)
	if err != nil {
		return err
	}
	a.fs = vfs.New(a.backend, vfs.Options{
		Quota:           cfg.Quota,
		DefaultFileMode: vfs.Mode(fileMode),
		DefaultDirMode:  vfs.Mode(dirMode),
		MaxDepth:        cfg.MaxTreeDepth,
		SnapshotKey:     cfg.SnapshotKey,
		Codec:           store.CodecOptions{Compress: cfg.Compress, Checksum: cfg.Checksum},
		Homes:           a.users.Homes(),
		Metrics:         a.metrics,
	})
	if a.config.Reset {
		err = a.fs.Reset(ctx)
	} else {
		err = a.fs.Load(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize file system: %w", err)
	}

	a.shell, err = shell.New(shell.Options{
		FS:            a.fs,
		Users:         a.users,
		Metrics:       a.metrics,
		HostName:      cfg.HostName,
		User:          cfg.DefaultUser,
		MaxAliasDepth: cfg.MaxAliasDepth,
		NoticeBuffer:  cfg.JobNoticeBuffer,
		HistorySize:   cfg.HistorySize,
	})
	if err != nil {
		return err
	}
	a.host = apphost.New(a.shell, a.fs)
	a.host.Register(apphost.NewEditor(), "Edit a file line by line", "edit <file>")

	a.log.Debug().
		Str("store", cfg.StorePath).
		Str("user", cfg.DefaultUser).
		Int64("size", a.fs.Size()).
		Int64("quota", a.fs.Quota()).
		Msg("session initialized")
	return nil
}

func (a *App) serveMetrics(addr string) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	a.metrics = metrics.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if a.shell != nil {
		if err := a.shell.Close(ctx); err != nil {
			a.log.Warn().Err(err).Msg("failed to stop background jobs")
		}
		a.printNotices(a.streams.Err)
	}
	if a.server != nil {
		_ = a.server.Shutdown(ctx)
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		}
	}
	a.log.Debug().Dur("elapsed", time.Since(a.startTime)).Msg("session finished")
}

// runLine feeds one line to the host and prints what it produced.
func (a *App) runLine(ctx context.Context, line string) shell.Outcome {
	out := a.host.Input(ctx, line)
	a.report(a.streams.Out, a.streams.Err, out)
	return out
}

func (a *App) report(stdout, stderr io.Writer, out shell.Outcome) {
	if out.Output != "" {
		fmt.Fprintln(stdout, out.Output)
	}
	for _, id := range out.Jobs {
		fmt.Fprintf(stderr, "[Job %d] Backgrounded.\n", id)
	}
	for _, err := range out.Failures {
		fmt.Fprintf(stderr, "%s: %v\n", a.metadata.Name, err)
	}
	if out.Err != nil {
		a.exitCode = 1
	} else if out.Pending == nil {
		a.exitCode = 0
	}
}

// finishInput fails a command line that still waits for input.
func (a *App) finishInput() {
	if a.shell.Cancel() == nil {
		fmt.Fprintf(a.streams.Err, "%s: %v\n", a.metadata.Name, ErrUnexpectedEOF)
		a.exitCode = 1
	}
	a.printNotices(a.streams.Err)
}

// runStream executes piped input line by line. A line following a prompt
// answers it.
func (a *App) runStream(ctx context.Context) error {
	scanner := bufio.NewScanner(a.streams.In)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.runLine(ctx, scanner.Text())
		a.printNotices(a.streams.Err)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	a.finishInput()
	return nil
}

func (a *App) printNotices(w io.Writer) {
	for {
		select {
		case n := <-a.shell.Notices():
			fmt.Fprintln(w, n.String())
		default:
			return
		}
	}
}

func (a *App) isTerminal() bool {
	f, ok := a.streams.In.(*os.File)
	return ok && readline.IsTerminal(int(f.Fd()))
}

// interactive runs the read-eval-print loop on a terminal.
func (a *App) interactive(ctx context.Context) error {
	stdin, _ := a.streams.In.(io.ReadCloser)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            a.host.Prompt(),
		HistoryLimit:      a.fileConfig.HistorySize,
		HistorySearchFold: true,
		AutoComplete:      a.createCompleter(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		Stdin:             stdin,
		Stdout:            a.streams.Out,
		Stderr:            a.streams.Err,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "Welcome to %s %s\n", a.metadata.Name, a.metadata.Version)
	fmt.Fprintln(rl.Stdout(), "Type 'help' for available commands, 'exit' to quit")

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case n := <-a.shell.Notices():
				fmt.Fprintln(rl.Stderr(), n.String())
				rl.Refresh()
			case <-done:
				return
			}
		}
	}()

	for {
		rl.SetPrompt(a.host.Prompt())
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			_ = a.shell.Cancel()
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}
		if err := ctx.Err(); err != nil {
			return nil
		}

		if a.host.Active() == "" && !a.shell.Waiting() {
			switch strings.TrimSpace(line) {
			case "exit", "quit", "logout":
				return nil
			}
		}
		out := a.host.Input(ctx, line)
		a.report(rl.Stdout(), rl.Stderr(), out)
	}
}

// createCompleter completes the command names the shell knows.
func (a *App) createCompleter() readline.AutoCompleter {
	names := a.shell.Names()
	items := make([]readline.PrefixCompleterInterface, len(names))
	for i, name := range names {
		items[i] = readline.PcItem(name)
	}
	return readline.NewPrefixCompleter(items...)
}

// shellQuote wraps s in single quotes for the shell tokenizer.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
