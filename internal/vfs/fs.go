// Package vfs implements the in-memory, permissioned file system tree and its
// snapshot persistence.
package vfs

import (
	"sync"
	"time"

	"github.com/mako10k/vosh/internal/metrics"
	"github.com/mako10k/vosh/internal/store"
	"github.com/mako10k/vosh/internal/utils"
)

const (
	DefaultFileMode Mode = 0o644
	DefaultDirMode  Mode = 0o755
	DefaultMaxDepth      = 256
	DefaultKey           = "fsdata"
)

// Home describes a user home directory created with a fresh tree.
type Home struct {
	User  string
	Group string
}

// Options configures a FileSystem. Zero values select the defaults.
type Options struct {
	Quota           int64 // bytes of file content, 0 means unlimited
	DefaultFileMode Mode
	DefaultDirMode  Mode
	MaxDepth        int
	SnapshotKey     string
	Codec           store.CodecOptions
	Homes           []Home
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

// FileSystem is the tree plus its durable backend. All methods are safe for
// concurrent use; each one is atomic with respect to the others.
type FileSystem struct {
	mu      sync.RWMutex
	root    *Node
	backend store.Backend
	opts    Options
	log     utils.Logger
}

// New returns a FileSystem holding a fresh tree. Call Load to restore the
// last durable snapshot.
func New(backend store.Backend, opts Options) *FileSystem {
	if opts.DefaultFileMode == 0 {
		opts.DefaultFileMode = DefaultFileMode
	}
	if opts.DefaultDirMode == 0 {
		opts.DefaultDirMode = DefaultDirMode
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.SnapshotKey == "" {
		opts.SnapshotKey = DefaultKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	fs := &FileSystem{
		backend: backend,
		opts:    opts,
		log:     utils.GetLogger("vfs"),
	}
	fs.root = fs.freshTree()
	return fs
}

func (fs *FileSystem) now() time.Time {
	return fs.opts.Now().UTC().Truncate(time.Millisecond)
}

func (fs *FileSystem) freshTree() *Node {
	now := fs.now()
	sys := Attr{Owner: RootUser, Group: RootUser, Mode: 0o755, Mtime: now}
	root := newDir(sys)
	home := newDir(sys)
	root.Children["home"] = home
	root.Children["etc"] = newDir(sys)
	for _, h := range fs.opts.Homes {
		home.Children[h.User] = newDir(Attr{Owner: h.User, Group: h.Group, Mode: fs.opts.DefaultDirMode, Mtime: now})
	}
	return root
}

// walk returns the node at the absolute path p. Every directory traversed on
// the way requires execute permission.
func (fs *FileSystem) walk(op, p string, c Cred) (*Node, error) {
	cur := fs.root
	walked := Root
	for _, seg := range segments(p) {
		if !cur.IsDir() {
			return nil, pathErr(op, p, ErrNotDir)
		}
		if err := CheckPermission(cur.Attr, c, Execute); err != nil {
			return nil, pathErr(op, walked, err)
		}
		next, ok := cur.Children[seg]
		if !ok {
			return nil, pathErr(op, p, ErrNotFound)
		}
		cur = next
		walked = Join(walked, seg)
	}
	return cur, nil
}

// GetNode returns the node at path, which is resolved against the root.
func (fs *FileSystem) GetNode(path string, c Cred) (FileInfo, error) {
	p := ResolvePath(path, Root)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	n, err := fs.walk("stat", p, c)
	if err != nil {
		return FileInfo{}, err
	}
	return describe(n, p), nil
}

// Exists reports whether path names a reachable node.
func (fs *FileSystem) Exists(path string, c Cred) bool {
	_, err := fs.GetNode(path, c)
	return err == nil
}

// ReadFile returns the content of the file at path. Read permission is required.
func (fs *FileSystem) ReadFile(path string, c Cred) (string, error) {
	p := ResolvePath(path, Root)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	n, err := fs.walk("read", p, c)
	if err != nil {
		return "", err
	}
	if n.IsDir() {
		return "", pathErr("read", p, ErrIsDir)
	}
	if err := CheckPermission(n.Attr, c, Read); err != nil {
		return "", pathErr("read", p, err)
	}
	return n.Content, nil
}

// ReadDir lists the directory at path sorted by name. Read permission is required.
func (fs *FileSystem) ReadDir(path string, c Cred) ([]FileInfo, error) {
	p := ResolvePath(path, Root)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	n, err := fs.walk("list", p, c)
	if err != nil {
		return nil, err
	}
	if !n.IsDir() {
		return nil, pathErr("list", p, ErrNotDir)
	}
	if err := CheckPermission(n.Attr, c, Read); err != nil {
		return nil, pathErr("list", p, err)
	}
	out := make([]FileInfo, 0, len(n.Children))
	for _, name := range n.names() {
		out = append(out, describe(n.Children[name], Join(p, name)))
	}
	return out, nil
}

// Size returns the total content bytes of every file in the tree.
func (fs *FileSystem) Size() int64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	size, _ := fs.sizeOf(fs.root, 0)
	return size
}

func (fs *FileSystem) sizeOf(n *Node, depth int) (int64, error) {
	if depth > fs.opts.MaxDepth {
		return 0, ErrTooDeep
	}
	if !n.IsDir() {
		return int64(len(n.Content)), nil
	}
	var total int64
	for _, child := range n.Children {
		s, err := fs.sizeOf(child, depth+1)
		if err != nil {
			return 0, err
		}
		total += s
	}
	return total, nil
}

// Quota returns the configured byte quota, 0 when unlimited.
func (fs *FileSystem) Quota() int64 { return fs.opts.Quota }
