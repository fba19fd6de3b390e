package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mako10k/vosh/internal/vfs"
)

func TestPwdAndCd(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	assert.Equal(t, "/home/Guest", h.runOK(t, "pwd"))

	h.runOK(t, "cd", "..")
	assert.Equal(t, "/home", h.runOK(t, "pwd"))

	h.runOK(t, "cd")
	assert.Equal(t, "/home/Guest", h.runOK(t, "pwd"))

	h.write(t, "/home/Guest/file", "x")
	res := h.run("cd", "file")
	assert.EqualError(t, res.Err, "cd: 'file': not a directory")

	res = h.run("cd", "/nowhere")
	assert.True(t, errors.Is(res.Err, vfs.ErrNotFound))
	assert.Equal(t, "/home/Guest", h.session.wd)
}

func TestCdRequiresExecute(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	h.as(t, "bob")
	h.runOK(t, "mkdir", "/home/bob/private")
	h.runOK(t, "chmod", "700", "/home/bob/private")

	h.as(t, "Guest")
	res := h.run("cd", "/home/bob/private")
	assert.True(t, errors.Is(res.Err, vfs.ErrPermissionDenied), "%v", res.Err)
}

func TestLs(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	h.write(t, "/home/Guest/b.txt", "hello")
	h.write(t, "/home/Guest/.hidden", "")
	h.runOK(t, "mkdir", "a")

	assert.Equal(t, "a/\nb.txt", h.runOK(t, "ls"))
	assert.Equal(t, ".hidden\na/\nb.txt", h.runOK(t, "ls", "-a"))
	assert.Equal(t, "b.txt", h.runOK(t, "ls", "b.txt"))

	long := h.runOK(t, "ls", "-l", "b.txt")
	assert.Equal(t, "-rw-r--r-- Guest      Guest             5 May  6 07:08 b.txt", long)

	out := h.runOK(t, "ls", "-l")
	assert.Contains(t, out, "total 3")

	res := h.run("ls", "missing", "a")
	assert.ErrorContains(t, res.Err, "ls: 'missing': no such file or directory")
	assert.Equal(t, "a:", res.Output)
}

func TestMkdirAndTouch(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)

	res := h.run("mkdir", "x/y")
	assert.True(t, errors.Is(res.Err, vfs.ErrNotFound))

	h.runOK(t, "mkdir", "-p", "x/y")
	h.runOK(t, "mkdir", "-p", "x/y")
	res = h.run("mkdir", "x")
	assert.True(t, errors.Is(res.Err, vfs.ErrExists))

	h.runOK(t, "touch", "x/y/f")
	assert.Equal(t, "", h.read(t, "/home/Guest/x/y/f"))

	res = h.run("mkdir", "/etc/nope")
	assert.True(t, errors.Is(res.Err, vfs.ErrPermissionDenied))
}

func TestMutationsAreSaved(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	h.runOK(t, "mkdir", "saved")

	reloaded := vfs.New(h.backend, vfs.Options{})
	require.NoError(t, reloaded.Load(context.Background()))
	assert.True(t, reloaded.Exists("/home/Guest/saved", h.session.cred))
}

func TestMutationPersistsAfterCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := h.registry.Run(ctx, h.invocation("", false, "mkdir", "late"))
	require.NoError(t, res.Err)

	reloaded := vfs.New(h.backend, vfs.Options{})
	require.NoError(t, reloaded.Load(context.Background()))
	assert.True(t, reloaded.Exists("/home/Guest/late", h.session.cred))
}

func TestMutationOverQuotaFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 4)
	h.write(t, "/home/Guest/big", "abc")
	h.runOK(t, "touch", "empty")

	res := h.run("cp", "big", "copy")
	require.Error(t, res.Err)
	assert.True(t, vfs.IsQuotaExceeded(res.Err))
	assert.Contains(t, res.Err.Error(), "cp: 'big'")
	assert.False(t, h.fs.Exists("/home/Guest/copy", h.session.cred))
	assert.Equal(t, "abc", h.read(t, "/home/Guest/big"))
}

func TestRm(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	h.write(t, "/home/Guest/f", "x")
	h.write(t, "/home/Guest/d/g", "y")

	h.runOK(t, "rm", "f")
	assert.False(t, h.fs.Exists("/home/Guest/f", h.session.cred))

	res := h.run("rm", "d")
	assert.EqualError(t, res.Err, "rm: cannot remove 'd': Is a directory (use -r or -R)")

	h.runOK(t, "rm", "-r", "d")
	assert.False(t, h.fs.Exists("/home/Guest/d", h.session.cred))

	res = h.run("rm", "gone")
	assert.True(t, errors.Is(res.Err, vfs.ErrNotFound))
	h.runOK(t, "rm", "-f", "gone")

	res = h.run("rm", "-rf", "/")
	assert.EqualError(t, res.Err, "rm: refusing to remove '/'")
}

func TestRmInteractive(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	h.write(t, "/home/Guest/a", "1")
	h.write(t, "/home/Guest/b", "2")
	ctx := context.Background()

	res := h.run("rm", "-i", "a", "b")
	require.NotNil(t, res.Prompt)
	assert.Equal(t, "Remove file 'a'? [y/N] ", res.Prompt.Message)

	res = res.Prompt.Resume(ctx, "y")
	require.NotNil(t, res.Prompt)
	assert.Equal(t, "Remove file 'b'? [y/N] ", res.Prompt.Message)

	res = res.Prompt.Resume(ctx, "n")
	require.Nil(t, res.Prompt)
	require.NoError(t, res.Err)

	assert.False(t, h.fs.Exists("/home/Guest/a", h.session.cred))
	assert.True(t, h.fs.Exists("/home/Guest/b", h.session.cred))
}

func TestCpAndMv(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	h.write(t, "/home/Guest/src.txt", "data")
	h.write(t, "/home/Guest/dir/inner", "in")
	h.runOK(t, "mkdir", "dest")

	h.runOK(t, "cp", "src.txt", "copy.txt")
	assert.Equal(t, "data", h.read(t, "/home/Guest/copy.txt"))

	h.runOK(t, "cp", "src.txt", "copy.txt", "dest")
	assert.Equal(t, "data", h.read(t, "/home/Guest/dest/src.txt"))
	assert.Equal(t, "data", h.read(t, "/home/Guest/dest/copy.txt"))

	res := h.run("cp", "dir", "dir2")
	assert.True(t, errors.Is(res.Err, vfs.ErrIsDir))
	h.runOK(t, "cp", "-r", "dir", "dir2")
	assert.Equal(t, "in", h.read(t, "/home/Guest/dir2/inner"))

	res = h.run("cp", "src.txt", "copy.txt", "src.txt")
	assert.EqualError(t, res.Err, "cp: target 'src.txt' is not a directory")

	h.runOK(t, "mv", "src.txt", "moved.txt")
	assert.False(t, h.fs.Exists("/home/Guest/src.txt", h.session.cred))
	assert.Equal(t, "data", h.read(t, "/home/Guest/moved.txt"))

	res = h.run("mv", "only")
	assert.EqualError(t, res.Err, "mv: missing destination file operand")
}

func TestChmodChownChgrp(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	h.write(t, "/home/Guest/f", "x")

	h.runOK(t, "chmod", "600", "f")
	info, err := h.fs.GetNode("/home/Guest/f", h.session.cred)
	require.NoError(t, err)
	assert.Equal(t, vfs.Mode(0o600), info.Mode)

	res := h.run("chmod", "9", "f")
	assert.ErrorContains(t, res.Err, "invalid mode")

	h.runOK(t, "chgrp", "devs", "f")
	info, _ = h.fs.GetNode("/home/Guest/f", h.session.cred)
	assert.Equal(t, "devs", info.Group)

	res = h.run("chgrp", "nogroup", "f")
	assert.EqualError(t, res.Err, "chgrp: invalid group: 'nogroup'")

	res = h.run("chown", "bob", "f")
	assert.True(t, errors.Is(res.Err, vfs.ErrPermissionDenied), "%v", res.Err)

	res = h.run("chown", "nobody", "f")
	assert.EqualError(t, res.Err, "chown: invalid user: 'nobody'")

	h.as(t, "root")
	h.runOK(t, "chown", "bob:bob", "/home/Guest/f")
	info, _ = h.fs.GetNode("/home/Guest/f", h.session.cred)
	assert.Equal(t, "bob", info.Owner)
	assert.Equal(t, "bob", info.Group)
}
