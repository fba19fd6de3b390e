package vfs

import "errors"

// DeleteRecursive removes path and, for directories, everything below it,
// children first. Without force the first failure aborts the removal. With
// force, missing paths and permission failures are skipped and traversal
// continues; a directory that still has children afterwards is left in place.
func (fs *FileSystem) DeleteRecursive(path string, c Cred, force bool) error {
	p := ResolvePath(path, Root)
	if p == Root {
		return pathErr("rm", p, ErrInvalid)
	}
	dir, name := Split(p)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	parent, err := fs.walk("rm", dir, c)
	if err == nil && !parent.IsDir() {
		err = pathErr("rm", dir, ErrNotDir)
	}
	if err == nil {
		if _, ok := parent.Children[name]; !ok {
			err = pathErr("rm", p, ErrNotFound)
		}
	}
	if err != nil {
		if force && swallowable(err) {
			return nil
		}
		return err
	}
	_, err = fs.remove(parent, name, p, c, force, 0)
	return err
}

func (fs *FileSystem) remove(parent *Node, name, p string, c Cred, force bool, depth int) (bool, error) {
	if depth > fs.opts.MaxDepth {
		return false, pathErr("rm", p, ErrTooDeep)
	}
	if err := CheckPermission(parent.Attr, c, Write); err != nil {
		if force {
			return false, nil
		}
		return false, pathErr("rm", p, err)
	}
	node := parent.Children[name]
	if node.IsDir() {
		for _, child := range node.names() {
			if _, err := fs.remove(node, child, Join(p, child), c, force, depth+1); err != nil {
				return false, err
			}
		}
		if len(node.Children) > 0 {
			return false, nil
		}
	}
	delete(parent.Children, name)
	parent.Mtime = fs.now()
	return true, nil
}

func swallowable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied)
}
