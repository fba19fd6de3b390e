package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mako10k/vosh/internal/utils"
	"github.com/mako10k/vosh/internal/vfs"
)

func fileCommands() []*Definition {
	return []*Definition{
		Define("pwd", "Print the current working directory", "pwd", pwd),
		Define("cd", "Change the working directory", "cd [directory]", cd),
		Define("ls", "List directory contents", "ls [options] [path...]", ls),
		Define("mkdir", "Create directories", "mkdir [options] directory...", mkdir),
		Define("touch", "Create files or update their timestamps", "touch file...", touch),
		Define("rm", "Remove files or directories", "rm [options] path...", rm),
		Define("cp", "Copy files and directories", "cp [options] source... dest", cp),
		Define("mv", "Move or rename files and directories", "mv source... dest", mv),
		Define("chmod", "Change file mode bits", "chmod mode path...", chmod),
		Define("chown", "Change file owner and group", "chown owner[:group] path...", chown),
		Define("chgrp", "Change file group", "chgrp group path...", chgrp),
	}
}

func pwd(_ context.Context, inv *Invocation, _ *noOptions) Result {
	return OK(inv.Session.WorkDir())
}

func cd(_ context.Context, inv *Invocation, _ *noOptions) Result {
	if len(inv.Args) > 1 {
		return Failf("cd: too many arguments")
	}
	target := "~"
	if len(inv.Args) == 1 {
		target = inv.Args[0]
	}
	p := inv.Resolve(target)
	info, err := inv.FS.GetNode(p, inv.Cred())
	if err != nil {
		return inv.Failure(target, err)
	}
	if !info.IsDir() {
		return inv.Failure(target, &vfs.PathError{Op: "cd", Path: p, Err: vfs.ErrNotDir})
	}
	if err := vfs.CheckPermission(info.Attr, inv.Cred(), vfs.Execute); err != nil {
		return inv.Failure(target, &vfs.PathError{Op: "cd", Path: p, Err: err})
	}
	inv.Session.Chdir(p)
	return OK("")
}

type lsOptions struct {
	Long bool `flag:"-l,--long" help:"use a long listing format"`
	All  bool `flag:"-a,--all" help:"do not ignore entries starting with ."`
}

func ls(_ context.Context, inv *Invocation, opts *lsOptions) Result {
	paths := inv.Args
	if len(paths) == 0 {
		paths = []string{"."}
	}
	var blocks []string
	var errs []error
	for _, arg := range paths {
		p := inv.Resolve(arg)
		info, err := inv.FS.GetNode(p, inv.Cred())
		if err != nil {
			errs = append(errs, fmt.Errorf("ls: %w", describeErr(arg, err)))
			continue
		}
		if !info.IsDir() {
			blocks = append(blocks, formatEntry(info, opts.Long))
			continue
		}
		entries, err := inv.FS.ReadDir(p, inv.Cred())
		if err != nil {
			errs = append(errs, fmt.Errorf("ls: %w", describeErr(arg, err)))
			continue
		}
		var lines []string
		if len(paths) > 1 {
			lines = append(lines, arg+":")
		}
		if opts.Long {
			lines = append(lines, fmt.Sprintf("total %d", len(entries)))
		}
		for _, e := range entries {
			if !opts.All && strings.HasPrefix(e.Name, ".") {
				continue
			}
			lines = append(lines, formatEntry(e, opts.Long))
		}
		blocks = append(blocks, joinLines(lines))
	}
	return Result{Output: strings.Join(blocks, "\n\n"), Err: errors.Join(errs...)}
}

func formatEntry(e vfs.FileInfo, long bool) string {
	name := e.Name
	if e.IsDir() {
		name += "/"
	}
	if !long {
		return name
	}
	return fmt.Sprintf("%s %-10s %-10s %8d %s %s",
		e.ModeString(), e.Owner, e.Group, e.Size, e.Mtime.Format("Jan _2 15:04"), name)
}

type mkdirOptions struct {
	Parents bool `flag:"-p,--parents" help:"make parent directories as needed"`
}

func mkdir(ctx context.Context, inv *Invocation, opts *mkdirOptions) Result {
	if len(inv.Args) == 0 {
		return Failf("mkdir: missing operand")
	}
	for _, arg := range inv.Args {
		if err := inv.FS.Mkdir(inv.Resolve(arg), inv.Cred(), opts.Parents); err != nil {
			return inv.Failure(arg, err)
		}
	}
	return saved(ctx, inv, "")
}

func touch(ctx context.Context, inv *Invocation, _ *noOptions) Result {
	if len(inv.Args) == 0 {
		return Failf("touch: missing file operand")
	}
	for _, arg := range inv.Args {
		if err := inv.FS.Touch(inv.Resolve(arg), inv.Cred()); err != nil {
			return inv.Failure(arg, err)
		}
	}
	return saved(ctx, inv, "")
}

// saved persists the file system and returns output on success.
func saved(ctx context.Context, inv *Invocation, output string) Result {
	if err := inv.Save(ctx); err != nil {
		return Fail(err)
	}
	return OK(output)
}

type rmOptions struct {
	Recursive   bool `flag:"-r,--recursive,-R" help:"remove directories and their contents recursively"`
	Force       bool `flag:"-f,--force" help:"ignore nonexistent files, never prompt"`
	Interactive bool `flag:"-i,--interactive" help:"prompt before every removal"`
}

func rm(ctx context.Context, inv *Invocation, opts *rmOptions) Result {
	if len(inv.Args) == 0 {
		return Failf("rm: missing operand")
	}
	r := &remover{inv: inv, opts: opts, pending: inv.Args}
	return r.next(ctx)
}

// remover walks the operands of rm, suspending for confirmation when asked to.
type remover struct {
	inv     *Invocation
	opts    *rmOptions
	pending []string
	removed bool
	errs    []error
}

func (r *remover) next(ctx context.Context) Result {
	cred := r.inv.Cred()
	for len(r.pending) > 0 {
		arg := r.pending[0]
		r.pending = r.pending[1:]

		p := r.inv.Resolve(arg)
		if p == vfs.Root {
			r.errs = append(r.errs, fmt.Errorf("rm: refusing to remove '%s'", arg))
			continue
		}
		info, err := r.inv.FS.GetNode(p, cred)
		if err != nil {
			if r.opts.Force && errors.Is(err, vfs.ErrNotFound) {
				continue
			}
			r.errs = append(r.errs, fmt.Errorf("rm: %w", describeErr(arg, err)))
			continue
		}
		if info.IsDir() && !r.opts.Recursive {
			r.errs = append(r.errs, fmt.Errorf("rm: cannot remove '%s': Is a directory (use -r or -R)", arg))
			continue
		}
		if r.opts.Interactive {
			msg := fmt.Sprintf("Remove file '%s'? [y/N] ", arg)
			if info.IsDir() {
				msg = fmt.Sprintf("Recursively remove directory '%s'? [y/N] ", arg)
			}
			return Ask(msg, func(ctx context.Context, input string) Result {
				if confirmed(input) {
					r.remove(arg, p)
				}
				return r.next(ctx)
			})
		}
		r.remove(arg, p)
	}
	if r.removed {
		if err := r.inv.Save(ctx); err != nil {
			r.errs = append(r.errs, err)
		}
	}
	return Result{Err: errors.Join(r.errs...)}
}

func (r *remover) remove(arg, p string) {
	if err := r.inv.FS.DeleteRecursive(p, r.inv.Cred(), r.opts.Force); err != nil {
		r.errs = append(r.errs, fmt.Errorf("rm: %w", describeErr(arg, err)))
		return
	}
	r.removed = true
}

func confirmed(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	return false
}

type cpOptions struct {
	Recursive bool `flag:"-r,--recursive,-R" help:"copy directories recursively"`
}

func cp(ctx context.Context, inv *Invocation, opts *cpOptions) Result {
	return transfer(ctx, inv, func(src, dst string) error {
		return inv.FS.Copy(src, dst, inv.Cred(), opts.Recursive)
	})
}

func mv(ctx context.Context, inv *Invocation, _ *noOptions) Result {
	return transfer(ctx, inv, func(src, dst string) error {
		return inv.FS.Move(src, dst, inv.Cred())
	})
}

// transfer applies op to every source operand and the final destination.
func transfer(ctx context.Context, inv *Invocation, op func(src, dst string) error) Result {
	if len(inv.Args) < 2 {
		return Failf("%s: missing destination file operand", inv.Name)
	}
	sources, dest := inv.Args[:len(inv.Args)-1], inv.Args[len(inv.Args)-1]
	dst := inv.Resolve(dest)
	if len(sources) > 1 {
		info, err := inv.FS.GetNode(dst, inv.Cred())
		if err != nil || !info.IsDir() {
			return inv.Errorf("target '%s' is not a directory", dest)
		}
	}
	for _, src := range sources {
		if err := op(inv.Resolve(src), dst); err != nil {
			return inv.Failure(src, err)
		}
	}
	return saved(ctx, inv, "")
}

func chmod(ctx context.Context, inv *Invocation, _ *noOptions) Result {
	if len(inv.Args) < 2 {
		return Failf("chmod: missing operand")
	}
	mode, err := utils.ParseFileMode(inv.Args[0])
	if err != nil {
		return Fail(fmt.Errorf("chmod: %w", err))
	}
	for _, arg := range inv.Args[1:] {
		if err := inv.FS.Chmod(inv.Resolve(arg), vfs.Mode(mode), inv.Cred()); err != nil {
			return inv.Failure(arg, err)
		}
	}
	return saved(ctx, inv, "")
}

func chown(ctx context.Context, inv *Invocation, _ *noOptions) Result {
	if len(inv.Args) < 2 {
		return Failf("chown: missing operand")
	}
	owner, group, _ := strings.Cut(inv.Args[0], ":")
	if owner != "" {
		if _, err := inv.Users.GroupsFor(owner); err != nil {
			return Failf("chown: invalid user: '%s'", owner)
		}
	}
	if group != "" && !inv.Users.GroupExists(group) {
		return Failf("chown: invalid group: '%s'", group)
	}
	return changeOwner(ctx, inv, owner, group, inv.Args[1:])
}

func chgrp(ctx context.Context, inv *Invocation, _ *noOptions) Result {
	if len(inv.Args) < 2 {
		return Failf("chgrp: missing operand")
	}
	group := inv.Args[0]
	if !inv.Users.GroupExists(group) {
		return Failf("chgrp: invalid group: '%s'", group)
	}
	return changeOwner(ctx, inv, "", group, inv.Args[1:])
}

func changeOwner(ctx context.Context, inv *Invocation, owner, group string, paths []string) Result {
	for _, arg := range paths {
		if err := inv.FS.Chown(inv.Resolve(arg), owner, group, inv.Cred()); err != nil {
			return inv.Failure(arg, err)
		}
	}
	return saved(ctx, inv, "")
}
