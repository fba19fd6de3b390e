package vfs

import (
	"strings"
	"time"
)

// CreateOrUpdateFile writes content to the file at path, replacing what was
// there. Missing parent directories are created.
func (fs *FileSystem) CreateOrUpdateFile(path, content string, c Cred) error {
	return fs.writeFile("write", path, content, false, c)
}

// AppendFile adds content to the end of the file at path, creating it if
// needed. A newline is inserted when the existing content does not end with one.
func (fs *FileSystem) AppendFile(path, content string, c Cred) error {
	return fs.writeFile("append", path, content, true, c)
}

func (fs *FileSystem) writeFile(op, path, content string, appendMode bool, c Cred) error {
	p := ResolvePath(path, Root)
	if p == Root {
		return pathErr(op, p, ErrIsDir)
	}
	dir, name := Split(p)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	delta := int64(len(content))
	if existing := fs.peek(p); existing != nil && !existing.IsDir() {
		if !appendMode {
			delta -= int64(len(existing.Content))
		} else if existing.Content != "" && content != "" && !strings.HasSuffix(existing.Content, "\n") {
			delta++
		}
	}
	if err := fs.checkQuota(op, p, delta); err != nil {
		return err
	}

	parent, err := fs.mkdirAll(op, dir, c)
	if err != nil {
		return err
	}
	now := fs.now()
	if existing, ok := parent.Children[name]; ok {
		if existing.IsDir() {
			return pathErr(op, p, ErrIsDir)
		}
		if err := CheckPermission(existing.Attr, c, Write); err != nil {
			return pathErr(op, p, err)
		}
		if appendMode {
			if existing.Content != "" && content != "" && existing.Content[len(existing.Content)-1] != '\n' {
				existing.Content += "\n"
			}
			existing.Content += content
		} else {
			existing.Content = content
		}
		existing.Mtime = now
	} else {
		if err := CheckPermission(parent.Attr, c, Write); err != nil {
			return pathErr(op, dir, err)
		}
		parent.Children[name] = newFile(content, fs.attrFor(c, fs.opts.DefaultFileMode, now))
	}
	parent.Mtime = now
	fs.log.Trace().Str("path", p).Str("user", c.User).Bool("append", appendMode).Msg("file written")
	return nil
}

// checkQuota rejects a change of delta bytes that would take the tree over
// quota. The caller holds fs.mu.
func (fs *FileSystem) checkQuota(op, p string, delta int64) error {
	if fs.opts.Quota <= 0 || delta <= 0 {
		return nil
	}
	size, err := fs.sizeOf(fs.root, 0)
	if err != nil {
		return pathErr(op, p, err)
	}
	if size+delta > fs.opts.Quota {
		fs.log.Debug().Str("path", p).Int64("size", size).Int64("delta", delta).Msg("write rejected by quota")
		return pathErr(op, p, &QuotaExceededError{Size: size + delta, Quota: fs.opts.Quota})
	}
	return nil
}

// peek returns the node at the absolute path p without permission checks,
// or nil.
func (fs *FileSystem) peek(p string) *Node {
	cur := fs.root
	for _, seg := range segments(p) {
		if !cur.IsDir() {
			return nil
		}
		next, ok := cur.Children[seg]
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

func (fs *FileSystem) attrFor(c Cred, mode Mode, now time.Time) Attr {
	group := c.Group
	if group == "" {
		group = c.User
	}
	return Attr{Owner: c.User, Group: group, Mode: mode, Mtime: now}
}

// mkdirAll returns the directory at the absolute path p, creating every
// missing segment. Creating a segment requires write permission on its parent.
func (fs *FileSystem) mkdirAll(op, p string, c Cred) (*Node, error) {
	cur := fs.root
	walked := Root
	for _, seg := range segments(p) {
		if err := CheckPermission(cur.Attr, c, Execute); err != nil {
			return nil, pathErr(op, walked, err)
		}
		next, ok := cur.Children[seg]
		if !ok {
			if err := CheckPermission(cur.Attr, c, Write); err != nil {
				return nil, pathErr(op, walked, err)
			}
			now := fs.now()
			next = newDir(fs.attrFor(c, fs.opts.DefaultDirMode, now))
			cur.Children[seg] = next
			cur.Mtime = now
		}
		walked = Join(walked, seg)
		if !next.IsDir() {
			return nil, pathErr(op, walked, ErrNotDir)
		}
		cur = next
	}
	return cur, nil
}

// Mkdir creates the directory at path. With parents set, missing ancestors are
// created and an existing directory is not an error.
func (fs *FileSystem) Mkdir(path string, c Cred, parents bool) error {
	p := ResolvePath(path, Root)
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if n, err := fs.walk("mkdir", p, c); err == nil {
		if parents && n.IsDir() {
			return nil
		}
		return pathErr("mkdir", p, ErrExists)
	}
	if parents {
		_, err := fs.mkdirAll("mkdir", p, c)
		return err
	}
	dir, name := Split(p)
	parent, err := fs.walk("mkdir", dir, c)
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return pathErr("mkdir", dir, ErrNotDir)
	}
	if err := CheckPermission(parent.Attr, c, Write); err != nil {
		return pathErr("mkdir", dir, err)
	}
	now := fs.now()
	parent.Children[name] = newDir(fs.attrFor(c, fs.opts.DefaultDirMode, now))
	parent.Mtime = now
	return nil
}

// Touch updates the mtime of path, creating an empty file when it is missing.
func (fs *FileSystem) Touch(path string, c Cred) error {
	p := ResolvePath(path, Root)
	dir, name := Split(p)
	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := fs.now()
	if n, err := fs.walk("touch", p, c); err == nil {
		if !canModify(n.Attr, c) && !HasPermission(n.Attr, c, Write) {
			return pathErr("touch", p, ErrPermissionDenied)
		}
		n.Mtime = now
		if p != Root {
			if parent, err := fs.walk("touch", dir, c); err == nil {
				parent.Mtime = now
			}
		}
		return nil
	}
	parent, err := fs.walk("touch", dir, c)
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return pathErr("touch", dir, ErrNotDir)
	}
	if err := CheckPermission(parent.Attr, c, Write); err != nil {
		return pathErr("touch", dir, err)
	}
	parent.Children[name] = newFile("", fs.attrFor(c, fs.opts.DefaultFileMode, now))
	parent.Mtime = now
	return nil
}

// Chmod sets the permission bits of path. Only root or the owner may do so.
func (fs *FileSystem) Chmod(path string, mode Mode, c Cred) error {
	return fs.modify("chmod", path, c, func(n *Node) error {
		n.Mode = mode & ModeMask
		return nil
	})
}

// Chown changes owner and/or group of path; an empty value leaves it unchanged.
// Changing the owner requires root; changing the group requires root or the owner.
func (fs *FileSystem) Chown(path, owner, group string, c Cred) error {
	return fs.modify("chown", path, c, func(n *Node) error {
		if owner != "" && owner != n.Owner && !c.IsRoot() {
			return ErrPermissionDenied
		}
		if owner != "" {
			n.Owner = owner
		}
		if group != "" {
			n.Group = group
		}
		return nil
	})
}

func (fs *FileSystem) modify(op, path string, c Cred, fn func(*Node) error) error {
	p := ResolvePath(path, Root)
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.walk(op, p, c)
	if err != nil {
		return err
	}
	if !canModify(n.Attr, c) {
		return pathErr(op, p, ErrPermissionDenied)
	}
	if err := fn(n); err != nil {
		return pathErr(op, p, err)
	}
	now := fs.now()
	n.Mtime = now
	if p != Root {
		dir, _ := Split(p)
		if parent, err := fs.walk(op, dir, c); err == nil {
			parent.Mtime = now
		}
	}
	return nil
}
