package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

func sessionCommands() []*Definition {
	return []*Definition{
		Simple("alias", "Define or display aliases", "alias [name[='value'] ...]", alias),
		Simple("unalias", "Remove aliases", "unalias name...", unalias),
		Simple("set", "Set or display environment variables", "set [name[=value]] ...", setVar),
		Simple("export", "Set environment variables", "export name=value...", exportVar),
		Simple("unset", "Unset environment variables", "unset name...", unsetVar),
		Define("whoami", "Print the current user name", "whoami", whoami),
		Define("groups", "Print the groups a user is in", "groups [user]", groups),
		Define("history", "Display the command history", "history", history),
		Define("read", "Read a line of input into a variable", "read [options] name", readLine),
		Define("help", "Display help for builtin commands", "help [command]", help),
		Define("date", "Print the current date and time", "date", date),
	}
}

// assignment splits "name=value" (value optionally quoted) from joined args.
func assignment(args []string) (name, value string, ok bool) {
	joined := strings.Join(args, " ")
	name, value, ok = strings.Cut(joined, "=")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(name), unquote(strings.TrimSpace(value)), true
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

func sortedPairs(m map[string]string, format string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf(format, k, m[k])
	}
	return joinLines(lines)
}

func alias(_ context.Context, inv *Invocation) Result {
	if len(inv.Args) == 0 {
		return OK(sortedPairs(inv.Aliases.All(), "alias %s='%s'"))
	}
	name, value, ok := assignment(inv.Args)
	if !ok {
		if len(inv.Args) > 1 {
			return Failf("alias: invalid format; use alias name='value'")
		}
		value, found := inv.Aliases.Get(inv.Args[0])
		if !found {
			return Failf("alias: %s: not found", inv.Args[0])
		}
		return OK(fmt.Sprintf("alias %s='%s'", inv.Args[0], value))
	}
	if name == "" {
		return Failf("alias: invalid format. Missing name.")
	}
	if err := inv.Aliases.Set(name, value); err != nil {
		return Fail(fmt.Errorf("alias: %w", err))
	}
	return OK("")
}

func unalias(_ context.Context, inv *Invocation) Result {
	if len(inv.Args) == 0 {
		return Failf("Usage: unalias <alias_name>...")
	}
	var missing []string
	for _, name := range inv.Args {
		if !inv.Aliases.Remove(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Failf("unalias: no such alias: %s", strings.Join(missing, ", "))
	}
	return OK("")
}

func setVar(ctx context.Context, inv *Invocation) Result {
	if len(inv.Args) == 0 {
		return OK(sortedPairs(inv.Env.All(), `%s="%s"`))
	}
	return exportVar(ctx, inv)
}

func exportVar(_ context.Context, inv *Invocation) Result {
	if len(inv.Args) == 0 {
		return Failf("%s: missing variable name", inv.Name)
	}
	name, value, ok := assignment(inv.Args)
	if !ok {
		name, value = inv.Args[0], strings.Join(inv.Args[1:], " ")
	}
	if name == "" {
		return Failf("%s: invalid format. Missing variable name.", inv.Name)
	}
	if err := inv.Env.Set(name, value); err != nil {
		return Fail(fmt.Errorf("%s: %w", inv.Name, err))
	}
	return OK("")
}

func unsetVar(_ context.Context, inv *Invocation) Result {
	if len(inv.Args) == 0 {
		return Failf("Usage: unset <variable_name>...")
	}
	for _, name := range inv.Args {
		inv.Env.Unset(name)
	}
	return OK("")
}

func whoami(_ context.Context, inv *Invocation, _ *noOptions) Result {
	return OK(inv.Session.User())
}

func groups(_ context.Context, inv *Invocation, _ *noOptions) Result {
	if len(inv.Args) > 1 {
		return Failf("groups: too many arguments")
	}
	user := inv.Session.User()
	if len(inv.Args) == 1 {
		user = inv.Args[0]
	}
	gs, err := inv.Users.GroupsFor(user)
	if err != nil {
		return Failf("groups: user '%s' does not exist", user)
	}
	return OK(strings.TrimSpace(user + " : " + strings.Join(gs, " ")))
}

func history(_ context.Context, inv *Invocation, _ *noOptions) Result {
	entries := inv.Session.History()
	lines := make([]string, len(entries))
	for i, cmd := range entries {
		lines[i] = fmt.Sprintf("  %3d  %s", i+1, cmd)
	}
	return OK(joinLines(lines))
}

type readOptions struct {
	Prompt string `flag:"-p,--prompt" help:"display prompt before reading"`
}

// readLine takes its value from piped input when there is any, otherwise it
// suspends until the host supplies a line.
func readLine(_ context.Context, inv *Invocation, opts *readOptions) Result {
	if len(inv.Args) != 1 {
		return Failf("Usage: read [-p prompt] <name>")
	}
	name := inv.Args[0]
	assign := func(value string) Result {
		if err := inv.Env.Set(name, value); err != nil {
			return Fail(fmt.Errorf("read: %w", err))
		}
		return OK("")
	}
	if inv.Piped {
		first, _, _ := strings.Cut(inv.Stdin, "\n")
		return assign(first)
	}
	return Ask(opts.Prompt, func(_ context.Context, input string) Result {
		return assign(strings.TrimRight(input, "\r\n"))
	})
}

func help(_ context.Context, inv *Invocation, _ *noOptions) Result {
	if inv.Registry == nil {
		return Failf("help: no command registry")
	}
	if len(inv.Args) > 1 {
		return Failf("help: too many arguments")
	}
	if len(inv.Args) == 1 {
		d, ok := inv.Registry.Lookup(inv.Args[0])
		if !ok {
			return Failf("help: command not found: %s", inv.Args[0])
		}
		return OK(d.Help())
	}
	lines := []string{"Available commands:"}
	for _, name := range inv.Registry.Names() {
		d, _ := inv.Registry.Lookup(name)
		lines = append(lines, fmt.Sprintf("  %-15s %s", name, d.Summary))
	}
	lines = append(lines, "", "Type 'help [command]' or '[command] --help' for more details.")
	return OK(joinLines(lines))
}

func date(_ context.Context, _ *Invocation, _ *noOptions) Result {
	return OK(time.Now().Format(time.UnixDate))
}
