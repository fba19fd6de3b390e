package shell

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mako10k/vosh/internal/commands"
	"github.com/mako10k/vosh/internal/vfs"
)

const (
	// MaxScriptDepth bounds nested run invocations.
	MaxScriptDepth = 100
	// MaxScriptSteps bounds the lines executed by one top-level script.
	MaxScriptSteps = 10000
	scriptSuffix   = ".sh"
)

type scriptKey struct{}

// scriptState is shared by a top-level script and every script it runs.
type scriptState struct {
	depth int
	steps int
}

func scriptFrom(ctx context.Context) *scriptState {
	st, _ := ctx.Value(scriptKey{}).(*scriptState)
	return st
}

func (ex *Executor) scriptCommand() *commands.Definition {
	return commands.Simple("run", "Execute a shell script from the file system",
		"run script.sh [arg...]", ex.runScript)
}

// runScript executes the lines of a script in a pushed variable scope,
// stopping at the first line that fails.
func (ex *Executor) runScript(ctx context.Context, inv *commands.Invocation) commands.Result {
	if len(inv.Args) == 0 {
		return inv.Errorf("missing script operand")
	}
	name, args := inv.Args[0], inv.Args[1:]
	sess, ok := inv.Session.(*Session)
	if !ok {
		return inv.Errorf("scripts need a shell session")
	}
	if !strings.HasSuffix(name, scriptSuffix) {
		return inv.Errorf("'%s' is not a shell script (%s) file", name, scriptSuffix)
	}
	p := inv.Resolve(name)
	info, err := inv.FS.GetNode(p, inv.Cred())
	if err != nil {
		return inv.Failure(name, err)
	}
	if info.IsDir() {
		return inv.Failure(name, &vfs.PathError{Op: "run", Path: p, Err: vfs.ErrIsDir})
	}
	for _, perm := range []vfs.Perm{vfs.Read, vfs.Execute} {
		if err := vfs.CheckPermission(info.Attr, inv.Cred(), perm); err != nil {
			return inv.Failure(name, &vfs.PathError{Op: "run", Path: p, Err: err})
		}
	}
	if info.Content == "" {
		return commands.OK(fmt.Sprintf("run: Script '%s' is empty.", name))
	}

	st := scriptFrom(ctx)
	if st == nil {
		st = &scriptState{}
		ctx = context.WithValue(ctx, scriptKey{}, st)
	}
	st.depth++
	defer func() { st.depth-- }()
	if st.depth > MaxScriptDepth {
		return commands.Fail(fmt.Errorf("run: script '%s': %w (%d)", name, ErrScriptTooDeep, MaxScriptDepth))
	}

	env := sess.Env()
	env.Push()
	defer env.Pop()

	mode := modeScript
	if inv.Background {
		mode = modeBackground
	}
	var outputs []string
	for i, raw := range strings.Split(info.Content, "\n") {
		line := strings.TrimSpace(positional(stripComment(raw), args))
		if line == "" {
			continue
		}
		if st.steps++; st.steps > MaxScriptSteps {
			return commands.Result{
				Output: strings.Join(outputs, "\n"),
				Err:    fmt.Errorf("run: script '%s' exceeded maximum execution steps (%d)", name, MaxScriptSteps),
			}
		}
		if err := ctx.Err(); err != nil {
			return commands.Result{Output: strings.Join(outputs, "\n"), Err: fmt.Errorf("run: script '%s' cancelled: %w", name, err)}
		}
		out := ex.execute(ctx, sess, line, mode)
		if out.Output != "" {
			outputs = append(outputs, out.Output)
		}
		if len(out.Jobs) > 0 {
			ex.log.Debug().Str("script", name).Ints("jobs", out.Jobs).Msg("script started jobs")
		}
		if out.Err != nil {
			return commands.Result{
				Output: strings.Join(outputs, "\n"),
				Err:    fmt.Errorf("run: script '%s' error on line %d: %s: %w", name, i+1, strings.TrimSpace(raw), out.Err),
			}
		}
	}
	return commands.OK(strings.Join(outputs, "\n"))
}

// stripComment drops an unquoted # and everything after it.
func stripComment(line string) string {
	var inSingle, inDouble bool
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '\\' && !inSingle:
			i++
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == '#' && !inSingle && !inDouble:
			return line[:i]
		}
	}
	return line
}

// positional substitutes $@, $# and $1..$n; $1..$9 without an argument
// become empty. Higher numbers are replaced first so $1 never eats the
// prefix of $10.
func positional(line string, args []string) string {
	if !strings.Contains(line, "$") {
		return line
	}
	line = strings.ReplaceAll(line, "$@", strings.Join(args, " "))
	line = strings.ReplaceAll(line, "$#", strconv.Itoa(len(args)))
	for i := max(len(args), 9); i >= 1; i-- {
		var v string
		if i <= len(args) {
			v = args[i-1]
		}
		line = strings.ReplaceAll(line, "$"+strconv.Itoa(i), v)
	}
	return line
}
