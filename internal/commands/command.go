// Package commands defines the contract between the pipeline executor and
// command handlers, the declarative flag parser, and the builtin handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mako10k/vosh/internal/vfs"
)

// Result is what a handler returns. A non-nil Prompt suspends the command
// until the host supplies a line of input.
type Result struct {
	Output string
	Err    error
	Prompt *Prompt
}

func (r Result) Success() bool { return r.Err == nil && r.Prompt == nil }

// Prompt asks the host for one line of input and resumes the command with it.
type Prompt struct {
	Message string
	Resume  func(ctx context.Context, input string) Result
}

func OK(output string) Result { return Result{Output: output} }

func Fail(err error) Result { return Result{Err: err} }

func Failf(format string, args ...any) Result {
	return Result{Err: fmt.Errorf(format, args...)}
}

// Ask suspends the command with message until input arrives.
func Ask(message string, resume func(ctx context.Context, input string) Result) Result {
	return Result{Prompt: &Prompt{Message: message, Resume: resume}}
}

// Env is the variable scope visible to a command.
type Env interface {
	Get(name string) (string, bool)
	Set(name, value string) error
	Unset(name string)
	All() map[string]string
}

// Aliases is the alias table visible to a command.
type Aliases interface {
	Get(name string) (string, bool)
	Set(name, value string) error
	Remove(name string) bool
	All() map[string]string
}

// JobInfo describes one background job.
type JobInfo struct {
	ID      int
	Command string
	Status  string
	Started time.Time
}

// Jobs is the job control surface visible to a command.
type Jobs interface {
	List() []JobInfo
	Kill(ctx context.Context, id int) error
}

// Session is the per-scope state a command may read or change.
type Session interface {
	WorkDir() string
	Chdir(path string)
	User() string
	Cred() vfs.Cred
	History() []string
}

// Users answers identity questions.
type Users interface {
	GroupsFor(user string) ([]string, error)
	GroupExists(group string) bool
}

// Invocation carries everything a handler may use. Stdin holds the output of
// the previous pipeline segment or an input redirect; Piped tells whether it
// is meaningful.
type Invocation struct {
	Name       string
	Args       []string
	Stdin      string
	Piped      bool
	Background bool

	FS       *vfs.FileSystem
	Session  Session
	Env      Env
	Aliases  Aliases
	Jobs     Jobs
	Users    Users
	Registry *Registry
}

func (inv *Invocation) Cred() vfs.Cred { return inv.Session.Cred() }

// Resolve turns a command argument into an absolute path, expanding a
// leading "~" to $HOME.
func (inv *Invocation) Resolve(p string) string {
	home, _ := inv.Env.Get("HOME")
	return vfs.ResolvePath(vfs.ExpandHome(p, home), inv.Session.WorkDir())
}

// Input returns the concatenated content of files, or stdin when files is empty.
func (inv *Invocation) Input(files []string) (string, error) {
	if len(files) == 0 {
		return inv.Stdin, nil
	}
	var b strings.Builder
	for _, f := range files {
		if f == "-" {
			appendContent(&b, inv.Stdin)
			continue
		}
		content, err := inv.FS.ReadFile(inv.Resolve(f), inv.Cred())
		if err != nil {
			return "", describeErr(f, err)
		}
		appendContent(&b, content)
	}
	return b.String(), nil
}

// Save persists the file system after a successful mutation.
func (inv *Invocation) Save(ctx context.Context) error {
	if err := inv.FS.Save(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("%s: failed to save file system changes: %w", inv.Name, err)
	}
	return nil
}

func appendContent(b *strings.Builder, content string) {
	if b.Len() > 0 && content != "" && !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(content)
}

// describeErr renders a file system error in the usual "'<arg>': reason" form
// while keeping the original error reachable through errors.Is.
func describeErr(arg string, err error) error {
	var pe *vfs.PathError
	if errors.As(err, &pe) {
		return &argError{arg: arg, err: pe.Err, cause: err}
	}
	return err
}

type argError struct {
	arg   string
	err   error
	cause error
}

func (e *argError) Error() string { return fmt.Sprintf("'%s': %v", e.arg, e.err) }

func (e *argError) Unwrap() error { return e.cause }

// Errorf returns a failure prefixed with the command name.
func (inv *Invocation) Errorf(format string, args ...any) Result {
	return Fail(fmt.Errorf(inv.Name+": "+format, args...))
}

// Failure returns err as a failure prefixed with the command name.
func (inv *Invocation) Failure(arg string, err error) Result {
	return Fail(fmt.Errorf("%s: %w", inv.Name, describeErr(arg, err)))
}
