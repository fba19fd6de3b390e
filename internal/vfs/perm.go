package vfs

import (
	"fmt"
	"slices"
	"strings"
)

// Perm is a single permission bit as it appears in each rwx triplet.
type Perm uint8

const (
	Execute Perm = 1
	Write   Perm = 2
	Read    Perm = 4
)

func (p Perm) String() string {
	switch p {
	case Read:
		return "read"
	case Write:
		return "write"
	case Execute:
		return "execute"
	default:
		return fmt.Sprintf("perm(%d)", uint8(p))
	}
}

const RootUser = "root"

// Cred identifies the acting user. Group is the primary group used for
// newly created nodes; Groups lists every group the user belongs to.
type Cred struct {
	User   string
	Group  string
	Groups []string
}

func (c Cred) IsRoot() bool { return c.User == RootUser }

func (c Cred) InGroup(group string) bool {
	return group == c.Group || slices.Contains(c.Groups, group)
}

// CheckPermission reports nil when c may exercise p on a node with attributes a.
// Permission kinds other than Read, Write and Execute fail closed.
func CheckPermission(a Attr, c Cred, p Perm) error {
	switch p {
	case Read, Write, Execute:
	default:
		return fmt.Errorf("%w: %d", ErrUnknownPermission, p)
	}
	if c.IsRoot() {
		return nil
	}
	var shift uint
	switch {
	case a.Owner == c.User:
		shift = 6
	case c.InGroup(a.Group):
		shift = 3
	}
	if uint16(a.Mode)>>shift&uint16(p) != 0 {
		return nil
	}
	return ErrPermissionDenied
}

// HasPermission is CheckPermission as a predicate.
func HasPermission(a Attr, c Cred, p Perm) bool {
	return CheckPermission(a, c, p) == nil
}

// canModify reports whether c may change the metadata of a node.
func canModify(a Attr, c Cred) bool {
	return c.IsRoot() || a.Owner == c.User
}

// FormatMode renders kind and mode as a ten character ls string.
func FormatMode(k Kind, m Mode) string {
	var b strings.Builder
	if k == Directory {
		b.WriteByte('d')
	} else {
		b.WriteByte('-')
	}
	const rwx = "rwx"
	for shift := 6; shift >= 0; shift -= 3 {
		bits := (m >> uint(shift)) & 0o7
		for i, c := range rwx {
			if bits&(4>>uint(i)) != 0 {
				b.WriteRune(c)
			} else {
				b.WriteByte('-')
			}
		}
	}
	return b.String()
}
