package vfs

import "time"

// Copy duplicates src to dst. When dst is an existing directory the copy is
// placed inside it under the source name. Directories need recursive set.
// Copies are owned by c and keep the source mode.
func (fs *FileSystem) Copy(src, dst string, c Cred, recursive bool) error {
	s := ResolvePath(src, Root)
	fs.mu.Lock()
	defer fs.mu.Unlock()

	srcNode, err := fs.walk("cp", s, c)
	if err != nil {
		return err
	}
	if srcNode.IsDir() && !recursive {
		return pathErr("cp", s, ErrIsDir)
	}
	if err := CheckPermission(srcNode.Attr, c, Read); err != nil {
		return pathErr("cp", s, err)
	}
	parent, name, d, err := fs.planTarget("cp", s, ResolvePath(dst, Root), srcNode, c)
	if err != nil {
		return err
	}
	if srcNode.IsDir() && IsWithin(d, s) {
		return pathErr("cp", d, ErrInvalid)
	}
	delta, err := fs.sizeOf(srcNode, 0)
	if err != nil {
		return pathErr("cp", s, err)
	}
	if existing, ok := parent.Children[name]; ok {
		replaced, err := fs.sizeOf(existing, 0)
		if err != nil {
			return pathErr("cp", d, err)
		}
		delta -= replaced
	}
	if err := fs.checkQuota("cp", d, delta); err != nil {
		return err
	}
	now := fs.now()
	clone, err := fs.cloneTree(srcNode, s, c, now, 0)
	if err != nil {
		return err
	}
	parent.Children[name] = clone
	parent.Mtime = now
	return nil
}

// Move renames src to dst, which may be an existing directory to move into.
func (fs *FileSystem) Move(src, dst string, c Cred) error {
	s := ResolvePath(src, Root)
	if s == Root {
		return pathErr("mv", s, ErrInvalid)
	}
	srcDir, srcName := Split(s)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	srcParent, err := fs.walk("mv", srcDir, c)
	if err != nil {
		return err
	}
	srcNode, ok := srcParent.Children[srcName]
	if !ok {
		return pathErr("mv", s, ErrNotFound)
	}
	if err := CheckPermission(srcParent.Attr, c, Write); err != nil {
		return pathErr("mv", srcDir, err)
	}
	parent, name, d, err := fs.planTarget("mv", s, ResolvePath(dst, Root), srcNode, c)
	if err != nil {
		return err
	}
	if d == s {
		return nil
	}
	if srcNode.IsDir() && IsWithin(d, s) {
		return pathErr("mv", d, ErrInvalid)
	}
	now := fs.now()
	delete(srcParent.Children, srcName)
	parent.Children[name] = srcNode
	srcNode.Mtime = now
	srcParent.Mtime = now
	parent.Mtime = now
	return nil
}

// planTarget resolves where src lands for a copy or move to d and checks
// that the destination parent may be written.
func (fs *FileSystem) planTarget(op, s, d string, srcNode *Node, c Cred) (*Node, string, string, error) {
	_, srcName := Split(s)
	if existing, err := fs.walk(op, d, c); err == nil && existing.IsDir() {
		d = Join(d, srcName)
	}
	dir, name := Split(d)
	if name == "" {
		return nil, "", "", pathErr(op, d, ErrInvalid)
	}
	parent, err := fs.walk(op, dir, c)
	if err != nil {
		return nil, "", "", err
	}
	if !parent.IsDir() {
		return nil, "", "", pathErr(op, dir, ErrNotDir)
	}
	if err := CheckPermission(parent.Attr, c, Write); err != nil {
		return nil, "", "", pathErr(op, dir, err)
	}
	if existing, ok := parent.Children[name]; ok && existing != srcNode {
		switch {
		case existing.IsDir():
			return nil, "", "", pathErr(op, d, ErrIsDir)
		case srcNode.IsDir():
			return nil, "", "", pathErr(op, d, ErrNotDir)
		}
		if err := CheckPermission(existing.Attr, c, Write); err != nil {
			return nil, "", "", pathErr(op, d, err)
		}
	}
	return parent, name, d, nil
}

func (fs *FileSystem) cloneTree(n *Node, p string, c Cred, now time.Time, depth int) (*Node, error) {
	if depth > fs.opts.MaxDepth {
		return nil, pathErr("cp", p, ErrTooDeep)
	}
	if err := CheckPermission(n.Attr, c, Read); err != nil {
		return nil, pathErr("cp", p, err)
	}
	attr := fs.attrFor(c, n.Mode, now)
	if !n.IsDir() {
		return newFile(n.Content, attr), nil
	}
	out := newDir(attr)
	for name, child := range n.Children {
		cc, err := fs.cloneTree(child, Join(p, name), c, now, depth+1)
		if err != nil {
			return nil, err
		}
		out.Children[name] = cc
	}
	return out, nil
}
