package shell

import (
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mako10k/vosh/internal/shell/parser"
	"github.com/mako10k/vosh/internal/vfs"
)

func hasGlobMeta(s string) bool { return strings.ContainsAny(s, "*?[") }

// expandGlobs replaces every unquoted argument containing a wildcard with the
// sorted paths it matches. A pattern without matches is passed on as is.
func expandGlobs(fs *vfs.FileSystem, sess *Session, args []parser.Arg) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a.Quoted || !hasGlobMeta(a.Value) {
			out = append(out, a.Value)
			continue
		}
		matches := glob(fs, sess, a.Value)
		if len(matches) == 0 {
			out = append(out, a.Value)
			continue
		}
		out = append(out, matches...)
	}
	return out
}

func glob(fs *vfs.FileSystem, sess *Session, pattern string) []string {
	base, prefix := sess.WorkDir(), ""
	if strings.HasPrefix(pattern, vfs.Separator) {
		base, prefix = vfs.Root, vfs.Separator
		pattern = strings.TrimLeft(pattern, vfs.Separator)
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil
	}
	matches, err := doublestar.Glob(fs.FS(base, sess.Cred()), pattern)
	if err != nil {
		return nil
	}
	slices.Sort(matches)
	for i, m := range matches {
		matches[i] = prefix + m
	}
	return matches
}
