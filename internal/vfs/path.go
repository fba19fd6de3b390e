package vfs

import "strings"

const (
	Separator = "/"
	Root      = "/"
)

// ResolvePath turns target into an absolute, normalized path. Relative targets
// are joined to base. "." is dropped and ".." pops one segment, never past the root.
func ResolvePath(target, base string) string {
	var parts []string
	if !strings.HasPrefix(target, Separator) {
		parts = segments(base)
	}
	for _, seg := range strings.Split(target, Separator) {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}
	return Root + strings.Join(parts, Separator)
}

// ExpandHome replaces a leading "~" in target with home, or with the root when
// home is empty.
func ExpandHome(target, home string) string {
	if target != "~" && !strings.HasPrefix(target, "~/") {
		return target
	}
	if home == "" {
		home = Root
	}
	return home + target[1:]
}

// Split returns the parent directory and final element of an absolute path.
func Split(path string) (dir, name string) {
	path = ResolvePath(path, Root)
	if path == Root {
		return Root, ""
	}
	i := strings.LastIndex(path, Separator)
	if i == 0 {
		return Root, path[1:]
	}
	return path[:i], path[i+1:]
}

// Join appends name to the absolute directory dir.
func Join(dir, name string) string {
	return ResolvePath(name, dir)
}

// IsWithin reports whether path equals dir or lies below it.
func IsWithin(path, dir string) bool {
	if dir == Root {
		return true
	}
	return path == dir || strings.HasPrefix(path, dir+Separator)
}

func segments(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, Separator) {
		switch seg {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return out
}
