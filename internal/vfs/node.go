package vfs

import (
	"sort"
	"time"
)

// Kind distinguishes files from directories.
type Kind uint8

const (
	File Kind = iota + 1
	Directory
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Directory:
		return "directory"
	default:
		return "unknown"
	}
}

// Mode holds the nine rwx permission bits.
type Mode uint16

const ModeMask Mode = 0o777

// Attr is the ownership and permission metadata shared by every node.
type Attr struct {
	Owner string
	Group string
	Mode  Mode
	Mtime time.Time
}

// Node is one entry of the tree. Children is nil for files.
type Node struct {
	Kind     Kind
	Content  string
	Children map[string]*Node
	Attr
}

func newDir(attr Attr) *Node {
	return &Node{Kind: Directory, Children: make(map[string]*Node), Attr: attr}
}

func newFile(content string, attr Attr) *Node {
	return &Node{Kind: File, Content: content, Attr: attr}
}

func (n *Node) IsDir() bool { return n.Kind == Directory }

func (n *Node) names() []string {
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FileInfo is a detached view of a node returned to callers outside the lock.
type FileInfo struct {
	Name     string
	Path     string
	Kind     Kind
	Size     int64
	Content  string
	Children []string
	Attr
}

func (fi FileInfo) IsDir() bool { return fi.Kind == Directory }

// ModeString renders the mode the way ls -l does, e.g. "drwxr-xr-x".
func (fi FileInfo) ModeString() string { return FormatMode(fi.Kind, fi.Mode) }

func describe(n *Node, path string) FileInfo {
	_, name := Split(path)
	if path == Root {
		name = Root
	}
	fi := FileInfo{
		Name: name,
		Path: path,
		Kind: n.Kind,
		Attr: n.Attr,
	}
	if n.IsDir() {
		fi.Children = n.names()
	} else {
		fi.Content = n.Content
		fi.Size = int64(len(n.Content))
	}
	return fi
}
