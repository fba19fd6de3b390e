package vfs

import (
	"errors"
	"io"
	iofs "io/fs"
	"strings"
	"time"
)

// FS returns a read-only io/fs view of the tree rooted at dir, evaluated with
// the permissions of c. Names passed to it are relative to dir.
func (fs *FileSystem) FS(dir string, c Cred) iofs.FS {
	return &dirFS{fs: fs, root: ResolvePath(dir, Root), cred: c}
}

type dirFS struct {
	fs   *FileSystem
	root string
	cred Cred
}

var (
	_ iofs.ReadDirFS = (*dirFS)(nil)
	_ iofs.StatFS    = (*dirFS)(nil)
)

func (d *dirFS) abs(op, name string) (string, error) {
	if !iofs.ValidPath(name) {
		return "", &iofs.PathError{Op: op, Path: name, Err: iofs.ErrInvalid}
	}
	return Join(d.root, name), nil
}

func (d *dirFS) Open(name string) (iofs.File, error) {
	p, err := d.abs("open", name)
	if err != nil {
		return nil, err
	}
	fi, err := d.fs.GetNode(p, d.cred)
	if err != nil {
		return nil, toIOFS("open", name, err)
	}
	f := &file{dir: d, name: name, info: fi}
	if !fi.IsDir() {
		if err := CheckPermission(fi.Attr, d.cred, Read); err != nil {
			return nil, toIOFS("open", name, err)
		}
		f.r = strings.NewReader(fi.Content)
	}
	return f, nil
}

func (d *dirFS) Stat(name string) (iofs.FileInfo, error) {
	p, err := d.abs("stat", name)
	if err != nil {
		return nil, err
	}
	fi, err := d.fs.GetNode(p, d.cred)
	if err != nil {
		return nil, toIOFS("stat", name, err)
	}
	return statInfo{fi}, nil
}

func (d *dirFS) ReadDir(name string) ([]iofs.DirEntry, error) {
	p, err := d.abs("readdir", name)
	if err != nil {
		return nil, err
	}
	entries, err := d.fs.ReadDir(p, d.cred)
	if err != nil {
		return nil, toIOFS("readdir", name, err)
	}
	out := make([]iofs.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = iofs.FileInfoToDirEntry(statInfo{e})
	}
	return out, nil
}

// toIOFS maps tree errors onto the io/fs sentinels.
func toIOFS(op, name string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotDir):
		err = iofs.ErrNotExist
	case errors.Is(err, ErrPermissionDenied):
		err = iofs.ErrPermission
	}
	return &iofs.PathError{Op: op, Path: name, Err: err}
}

type statInfo struct{ fi FileInfo }

func (s statInfo) Name() string       { return s.fi.Name }
func (s statInfo) Size() int64        { return s.fi.Size }
func (s statInfo) ModTime() time.Time { return s.fi.Mtime }
func (s statInfo) IsDir() bool        { return s.fi.IsDir() }
func (s statInfo) Sys() any           { return s.fi }

func (s statInfo) Mode() iofs.FileMode {
	m := iofs.FileMode(s.fi.Mode)
	if s.fi.IsDir() {
		m |= iofs.ModeDir
	}
	return m
}

type file struct {
	dir    *dirFS
	name   string
	info   FileInfo
	r      *strings.Reader
	offset int
}

func (f *file) Stat() (iofs.FileInfo, error) { return statInfo{f.info}, nil }

func (f *file) Read(b []byte) (int, error) {
	if f.r == nil {
		return 0, &iofs.PathError{Op: "read", Path: f.name, Err: ErrIsDir}
	}
	return f.r.Read(b)
}

func (f *file) Close() error { return nil }

func (f *file) ReadDir(n int) ([]iofs.DirEntry, error) {
	if f.r != nil {
		return nil, &iofs.PathError{Op: "readdir", Path: f.name, Err: ErrNotDir}
	}
	all, err := f.dir.ReadDir(f.name)
	if err != nil {
		return nil, err
	}
	rest := all[min(f.offset, len(all)):]
	if n <= 0 {
		f.offset = len(all)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	rest = rest[:min(n, len(rest))]
	f.offset += len(rest)
	return rest, nil
}
