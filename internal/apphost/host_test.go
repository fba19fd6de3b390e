package apphost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mako10k/vosh/internal/identity"
	"github.com/mako10k/vosh/internal/shell"
	"github.com/mako10k/vosh/internal/store"
	"github.com/mako10k/vosh/internal/vfs"
)

func newHost(t *testing.T) (*Host, *vfs.FileSystem) {
	t.Helper()
	users := identity.NewRegistry()
	fs := vfs.New(store.NewMemory(), vfs.Options{Homes: users.Homes()})
	require.NoError(t, fs.Load(context.Background()))
	sh, err := shell.New(shell.Options{FS: fs, Users: users})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sh.Close(context.Background()) })

	h := New(sh, fs)
	h.Register(NewEditor(), "Edit a file line by line", "edit <file>")
	return h, fs
}

func input(t *testing.T, h *Host, line string) string {
	t.Helper()
	out := h.Input(context.Background(), line)
	require.NoError(t, out.Err, line)
	return out.Output
}

func TestEditorSession(t *testing.T) {
	t.Parallel()
	h, fs := newHost(t)
	ctx := context.Background()

	assert.Equal(t, "Editing /home/Guest/notes.txt (0 lines). Type :h for help.", input(t, h, "edit notes.txt"))
	assert.Equal(t, "edit", h.Active())
	assert.Equal(t, "edit> ", h.Prompt())

	input(t, h, "first")
	input(t, h, "third")
	input(t, h, ":i 2 second")
	assert.Equal(t, "   1  first\n   2  second\n   3  third", input(t, h, ":p"))

	out := h.Input(ctx, ":q")
	assert.ErrorContains(t, out.Err, "unsaved changes")
	assert.Equal(t, "edit", h.Active())

	assert.Equal(t, "Wrote 3 lines to /home/Guest/notes.txt.\nClosed /home/Guest/notes.txt.", input(t, h, ":wq"))
	assert.Empty(t, h.Active())
	assert.Equal(t, "Guest@vosh:~$ ", h.Prompt())

	content, err := fs.ReadFile("/home/Guest/notes.txt", vfs.Cred{User: vfs.RootUser})
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\nthird", content)
	assert.Equal(t, "second", input(t, h, "grep sec notes.txt"))
}

func TestEditorCommands(t *testing.T) {
	t.Parallel()
	h, _ := newHost(t)
	ctx := context.Background()

	input(t, h, "echo a > f.txt; echo b >> f.txt")
	assert.Contains(t, input(t, h, "edit f.txt"), "(2 lines)")
	input(t, h, ":d 1")
	assert.Error(t, h.Input(ctx, ":d 9").Err)
	assert.Error(t, h.Input(ctx, ":zz").Err)
	assert.Contains(t, input(t, h, ":h"), ":wq")
	assert.Equal(t, "a\nb", input(t, h, ":!cat f.txt"))
	assert.Equal(t, "Closed /home/Guest/f.txt.", input(t, h, ":q!"))
	assert.Equal(t, "a\nb", input(t, h, "cat f.txt"))
}

func TestEditorRefusals(t *testing.T) {
	t.Parallel()
	h, fs := newHost(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.Input(ctx, "edit /").Err, vfs.ErrIsDir)
	assert.ErrorIs(t, h.Input(ctx, "edit /home").Err, vfs.ErrIsDir)
	assert.ErrorIs(t, h.Input(ctx, "echo x | edit f").Err, ErrInteractive)
	assert.Error(t, h.Input(ctx, "edit").Err)
	assert.Empty(t, h.Active())

	root := vfs.Cred{User: vfs.RootUser, Group: vfs.RootUser}
	require.NoError(t, fs.CreateOrUpdateFile("/etc/motd", "hello", root))
	assert.Contains(t, input(t, h, "edit /etc/motd"), "read-only")
	input(t, h, "more")
	assert.ErrorIs(t, h.Input(ctx, ":w").Err, vfs.ErrPermissionDenied)

	_, err := h.Launch(ctx, "edit", []string{"x"})
	assert.ErrorIs(t, err, ErrAppActive)
	assert.Equal(t, "Closed /etc/motd.", h.Exit(ctx).Output)

	_, err = h.Launch(ctx, "paint", nil)
	assert.ErrorIs(t, err, ErrUnknownApp)
}

func TestEditorExpandsHome(t *testing.T) {
	t.Parallel()
	h, fs := newHost(t)
	input(t, h, "cd /")

	assert.Equal(t, "Editing /home/Guest/notes.txt (0 lines). Type :h for help.", input(t, h, "edit ~/notes.txt"))
	input(t, h, "hi")
	input(t, h, ":wq")

	content, err := fs.ReadFile("/home/Guest/notes.txt", vfs.Cred{User: vfs.RootUser})
	require.NoError(t, err)
	assert.Equal(t, "hi", content)
	assert.False(t, fs.Exists("/~", vfs.Cred{User: vfs.RootUser}))
}
