package apphost

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mako10k/vosh/internal/vfs"
)

const editorHelp = `Commands:
  :p          print the buffer with line numbers
  :d N        delete line N
  :i N text   insert text before line N
  :w          write the buffer
  :q          quit (refused with unsaved changes)
  :q!         quit discarding changes
  :wq         write and quit
  :!cmd       run a shell command
Any other line is appended to the buffer.`

// Editor is a line editor over one file of the virtual file system.
type Editor struct {
	svc      *Services
	path     string
	lines    []string
	dirty    bool
	readOnly bool
}

func NewEditor() *Editor { return &Editor{} }

func (e *Editor) Name() string { return "edit" }

func (e *Editor) Enter(_ context.Context, svc *Services, args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("expects exactly one filename")
	}
	p := svc.Resolve(args[0])
	if p == vfs.Root {
		return "", fmt.Errorf("'%s': %w", args[0], vfs.ErrIsDir)
	}
	*e = Editor{svc: svc, path: p}

	info, err := svc.FS.GetNode(p, svc.Cred())
	switch {
	case errors.Is(err, vfs.ErrNotFound):
	case err != nil:
		return "", err
	case info.IsDir():
		return "", fmt.Errorf("'%s': %w", args[0], vfs.ErrIsDir)
	default:
		content, err := svc.FS.ReadFile(p, svc.Cred())
		if err != nil {
			return "", err
		}
		if content != "" {
			e.lines = strings.Split(content, "\n")
		}
		e.readOnly = !vfs.HasPermission(info.Attr, svc.Cred(), vfs.Write)
	}

	header := fmt.Sprintf("Editing %s (%d lines). Type :h for help.", p, len(e.lines))
	if e.readOnly {
		header += fmt.Sprintf("\nWarning: File '%s' is read-only. You will not be able to save changes.", p)
	}
	return header, nil
}

func (e *Editor) HandleInput(ctx context.Context, line string) (string, bool, error) {
	if !strings.HasPrefix(line, ":") {
		e.lines = append(e.lines, line)
		e.dirty = true
		return "", false, nil
	}
	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	switch {
	case cmd == "h":
		return editorHelp, false, nil
	case cmd == "p":
		return e.print(), false, nil
	case cmd == "d":
		n, err := e.lineNumber(arg, len(e.lines))
		if err != nil {
			return "", false, err
		}
		e.lines = append(e.lines[:n-1], e.lines[n:]...)
		e.dirty = true
		return "", false, nil
	case cmd == "i":
		num, text, _ := strings.Cut(arg, " ")
		n, err := e.lineNumber(num, len(e.lines)+1)
		if err != nil {
			return "", false, err
		}
		e.lines = append(e.lines[:n-1], append([]string{text}, e.lines[n-1:]...)...)
		e.dirty = true
		return "", false, nil
	case cmd == "w":
		return e.write(ctx)
	case cmd == "wq":
		out, _, err := e.write(ctx)
		return out, err == nil, err
	case cmd == "q":
		if e.dirty {
			return "", false, errors.New("unsaved changes (use :q! to discard or :wq to save)")
		}
		return "", true, nil
	case cmd == "q!":
		return "", true, nil
	case strings.HasPrefix(cmd, "!"):
		res := e.svc.Exec(ctx, strings.TrimPrefix(line, ":!"))
		return res.Output, false, res.Err
	}
	return "", false, fmt.Errorf("unknown editor command: %s", line)
}

func (e *Editor) Exit(context.Context) string {
	p := e.path
	e.lines = nil
	return fmt.Sprintf("Closed %s.", p)
}

func (e *Editor) print() string {
	out := make([]string, len(e.lines))
	for i, l := range e.lines {
		out[i] = fmt.Sprintf("%4d  %s", i+1, l)
	}
	return strings.Join(out, "\n")
}

func (e *Editor) lineNumber(s string, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("invalid line number: '%s'", s)
	}
	return n, nil
}

func (e *Editor) write(ctx context.Context) (string, bool, error) {
	content := strings.Join(e.lines, "\n")
	if err := e.svc.FS.CreateOrUpdateFile(e.path, content, e.svc.Cred()); err != nil {
		return "", false, err
	}
	if err := e.svc.FS.Save(ctx); err != nil {
		return "", false, fmt.Errorf("failed to save file system: %w", err)
	}
	e.dirty = false
	return fmt.Sprintf("Wrote %d lines to %s.", len(e.lines), e.path), false, nil
}
