package shell

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mako10k/vosh/internal/identity"
	"github.com/mako10k/vosh/internal/shell/parser"
	"github.com/mako10k/vosh/internal/store"
	"github.com/mako10k/vosh/internal/vfs"
)

type testShell struct {
	*Shell
	fs      *vfs.FileSystem
	backend *store.Memory
	users   *identity.Registry
}

func newTestShell(t *testing.T, quota int64) *testShell {
	t.Helper()
	users := identity.NewRegistry()
	backend := store.NewMemory()
	fs := vfs.New(backend, vfs.Options{Quota: quota, Homes: users.Homes()})
	require.NoError(t, fs.Load(context.Background()))

	sh, err := New(Options{FS: fs, Users: users})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sh.Close(context.Background()) })
	return &testShell{Shell: sh, fs: fs, backend: backend, users: users}
}

func (ts *testShell) ok(t *testing.T, line string) string {
	t.Helper()
	out := ts.Run(context.Background(), line)
	require.NoError(t, out.Err, line)
	require.Nil(t, out.Pending, line)
	return out.Output
}

func (ts *testShell) root(t *testing.T) vfs.Cred {
	t.Helper()
	cred, err := ts.users.Cred(vfs.RootUser)
	require.NoError(t, err)
	return cred
}

func nextNotice(t *testing.T, sh *Shell) Notice {
	t.Helper()
	select {
	case n := <-sh.Notices():
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("no job notice")
		return Notice{}
	}
}

func TestSequencing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{line: "echo hi | tr h H", want: "Hi", ok: true},
		{line: "false && echo x", want: "", ok: false},
		{line: "false || echo y", want: "y", ok: true},
		{line: "echo a; echo b", want: "a\nb", ok: true},
		{line: "true || echo no; echo yes", want: "yes", ok: true},
		{line: "false && echo x || echo z", want: "z", ok: true},
		{line: "true && false; echo after", want: "after", ok: true},
		{line: "echo one\necho two", want: "one\ntwo", ok: true},
		{line: "echo b a c | tr ' ' '\\n' | sort | head -n 2", want: "a\nb", ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			sh := newTestShell(t, 0)
			out := sh.Run(context.Background(), tt.line)
			assert.Equal(t, tt.want, out.Output)
			assert.Equal(t, tt.ok, out.Success(), "%v", out.Err)
		})
	}
}

func TestPipelineErrors(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)

	out := sh.Run(context.Background(), "echo hi | nope | cat")
	var pe *PipelineError
	require.True(t, errors.As(out.Err, &pe))
	assert.Equal(t, "nope", pe.Command)
	assert.EqualError(t, out.Err, "pipeline error for 'nope': nope: command not found")

	out = sh.Run(context.Background(), "cat missing.txt; echo still")
	assert.Equal(t, "still", out.Output)
	assert.NoError(t, out.Err)
	require.Len(t, out.Failures, 1)
	assert.ErrorIs(t, out.Failures[0], vfs.ErrNotFound)
}

func TestParseErrorRunsNothing(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)

	out := sh.Run(context.Background(), "echo x > out.txt; echo a |")
	var perr *parser.ParseError
	require.True(t, errors.As(out.Err, &perr))
	assert.Empty(t, out.Output)
	assert.False(t, sh.fs.Exists("/home/Guest/out.txt", sh.Session().Cred()))
}

func TestRedirection(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)

	assert.Empty(t, sh.ok(t, "echo abc > f.txt"))
	assert.Empty(t, sh.ok(t, "echo def >> f.txt"))
	assert.Equal(t, "abc\ndef", sh.ok(t, "cat f.txt"))

	sh.ok(t, "echo new > f.txt")
	assert.Equal(t, "new", sh.ok(t, "cat f.txt"))

	assert.Equal(t, "nbw", sh.ok(t, "tr e b < f.txt"))
	sh.ok(t, "echo deep > a/b/c.txt")
	assert.Equal(t, "deep", sh.ok(t, "cat /home/Guest/a/b/c.txt"))

	// persisted through Save
	reloaded := vfs.New(sh.backend, vfs.Options{})
	require.NoError(t, reloaded.Load(context.Background()))
	content, err := reloaded.ReadFile("/home/Guest/f.txt", sh.Session().Cred())
	require.NoError(t, err)
	assert.Equal(t, "new", content)

	out := sh.Run(context.Background(), "echo x > a")
	assert.ErrorIs(t, out.Err, vfs.ErrIsDir)
}

func TestRedirectionPermissions(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)
	root := sh.root(t)
	require.NoError(t, sh.fs.CreateOrUpdateFile("/etc/secret", "s3cret", root))
	require.NoError(t, sh.fs.Chmod("/etc/secret", 0o600, root))

	out := sh.Run(context.Background(), "cat < /etc/secret")
	assert.ErrorIs(t, out.Err, vfs.ErrPermissionDenied)
	assert.Empty(t, out.Output)

	out = sh.Run(context.Background(), "echo x > /etc/motd")
	assert.ErrorIs(t, out.Err, vfs.ErrPermissionDenied)
}

func TestQuotaRejectionKeepsSnapshot(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 10)
	sh.ok(t, "echo small > s.txt")
	before, err := sh.backend.Get(context.Background(), vfs.DefaultKey)
	require.NoError(t, err)

	out := sh.Run(context.Background(), "echo 0123456789abcdef > big.txt")
	require.Error(t, out.Err)
	assert.True(t, vfs.IsQuotaExceeded(out.Err))

	after, err := sh.backend.Get(context.Background(), vfs.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.False(t, sh.fs.Exists("/home/Guest/big.txt", sh.Session().Cred()))
	assert.Equal(t, "small", sh.ok(t, "cat s.txt"))
}

func TestBackgroundJobs(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)

	start := time.Now()
	out := sh.Run(context.Background(), "sleep 30 &")
	require.NoError(t, out.Err)
	assert.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, out.Jobs, 1)
	id := out.Jobs[0]

	jobs := sh.Jobs().List()
	require.Len(t, jobs, 1)
	assert.Equal(t, "sleep 30", jobs[0].Command)
	assert.Contains(t, sh.ok(t, "ps"), "sleep 30")

	assert.Equal(t, "Signal sent to terminate job 1.", sh.ok(t, "kill 1"))
	n := nextNotice(t, sh.Shell)
	assert.Equal(t, id, n.JobID)
	assert.Equal(t, JobKilled, n.Status)
	assert.Equal(t, "[Job 1 killed]", n.String())
	assert.Zero(t, sh.Jobs().Active())

	out = sh.Run(context.Background(), "kill 1")
	var je *JobError
	assert.True(t, errors.As(out.Err, &je))
}

func TestBackgroundJobSettles(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)

	out := sh.Run(context.Background(), "echo bg > bg.txt & echo fg")
	assert.Equal(t, "fg", out.Output)
	require.Len(t, out.Jobs, 1)

	n := nextNotice(t, sh.Shell)
	assert.Equal(t, JobFinished, n.Status)
	assert.NoError(t, n.Err)
	assert.Equal(t, "bg", sh.ok(t, "cat bg.txt"))

	sh.Run(context.Background(), "cat nothing.txt &")
	n = nextNotice(t, sh.Shell)
	assert.Equal(t, JobFinished, n.Status)
	assert.ErrorIs(t, n.Err, vfs.ErrNotFound)
}

func TestBackgroundScopeIsolated(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)

	sh.ok(t, "cd / &")
	nextNotice(t, sh.Shell)
	assert.Equal(t, "/home/Guest", sh.ok(t, "pwd"))

	sh.ok(t, "export ONLY_BG=1 &")
	nextNotice(t, sh.Shell)
	assert.Empty(t, sh.ok(t, "echo $ONLY_BG"))
}

func TestBackgroundCannotPrompt(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)

	sh.ok(t, "read NAME &")
	n := nextNotice(t, sh.Shell)
	assert.ErrorIs(t, n.Err, ErrNoInput)
	assert.False(t, sh.Waiting())
}

func TestPromptResume(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)

	out := sh.Run(context.Background(), "echo before; read -p 'Name? ' NAME && echo done > done.txt; echo end")
	require.NotNil(t, out.Pending)
	assert.Equal(t, "before", out.Output)
	assert.Equal(t, "Name? ", sh.Prompt())
	assert.True(t, sh.Waiting())

	out = sh.Run(context.Background(), "bob")
	require.NoError(t, out.Err)
	assert.Nil(t, out.Pending)
	assert.Equal(t, "end", out.Output)
	assert.Equal(t, "bob", sh.ok(t, "echo $NAME"))
	assert.Equal(t, "done", sh.ok(t, "cat done.txt"))
	assert.Equal(t, []string{
		"echo before; read -p 'Name? ' NAME && echo done > done.txt; echo end",
		"echo $NAME",
		"cat done.txt",
	}, sh.Session().History())

	sh.Run(context.Background(), "read X")
	require.NoError(t, sh.Cancel())
	assert.ErrorIs(t, sh.Cancel(), ErrNothingPending)
	assert.Equal(t, "Guest@vosh:~$ ", sh.Prompt())
}

func TestAliasLoop(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)
	sh.ok(t, "alias a=b")
	sh.ok(t, "alias b=a")

	out := sh.Run(context.Background(), "a")
	var le *AliasLoopError
	require.True(t, errors.As(out.Err, &le))
	assert.Equal(t, DefaultMaxAliasDepth, le.Depth)

	sh.ok(t, "alias ll='ls -a'")
	sh.ok(t, "touch visible")
	assert.Contains(t, sh.ok(t, "true; ll"), "visible")
	sh.ok(t, "alias echo='echo -'")
	assert.Equal(t, "- x", sh.ok(t, "echo x"))
}

func TestVariables(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)
	sh.ok(t, "export GREETING=hi")

	assert.Equal(t, "hi hi!", sh.ok(t, "echo $GREETING ${GREETING}!"))
	assert.Equal(t, "$GREETING", sh.ok(t, "echo '$GREETING'"))
	assert.Equal(t, "Guest /home/Guest vosh", sh.ok(t, "echo $USER $HOME $HOST"))
	assert.Equal(t, "x", sh.ok(t, "echo x$UNSET"))
}

func TestGlobExpansion(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)
	sh.ok(t, "touch b.txt a.txt c.md")
	sh.ok(t, "mkdir sub; touch sub/d.txt")

	assert.Equal(t, "a.txt b.txt", sh.ok(t, "echo *.txt"))
	assert.Equal(t, "*.txt", sh.ok(t, "echo '*.txt'"))
	assert.Equal(t, "*.none", sh.ok(t, "echo *.none"))
	assert.Equal(t, "sub/d.txt", sh.ok(t, "echo */*.txt"))
	assert.Equal(t, "/home/Guest/a.txt", sh.ok(t, "echo /home/Guest/a.*"))
	assert.Equal(t, "a.txt b.txt sub/d.txt", sh.ok(t, "echo **/*.txt"))
}

func TestRunScript(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)
	cred := sh.Session().Cred()
	script := "# greet\necho $1 $# # args\nset X=inner\necho $X\nfalse\necho never\n"
	require.NoError(t, sh.fs.CreateOrUpdateFile("/home/Guest/s.sh", script, cred))

	out := sh.Run(context.Background(), "run s.sh a b")
	assert.ErrorIs(t, out.Err, vfs.ErrPermissionDenied)

	require.NoError(t, sh.fs.Chmod("/home/Guest/s.sh", 0o755, cred))
	out = sh.Run(context.Background(), "run s.sh a b")
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "error on line 5: false")
	assert.Equal(t, "a 2\ninner", out.Output)
	assert.Empty(t, sh.ok(t, "echo $X"))
	assert.Equal(t, 1, sh.Session().Env().Depth())

	require.NoError(t, sh.fs.CreateOrUpdateFile("/home/Guest/ask.sh", "read V", cred))
	require.NoError(t, sh.fs.Chmod("/home/Guest/ask.sh", 0o755, cred))
	out = sh.Run(context.Background(), "run ask.sh")
	assert.ErrorIs(t, out.Err, ErrScriptInput)
	assert.Nil(t, out.Pending)

	require.NoError(t, sh.fs.CreateOrUpdateFile("/home/Guest/self.sh", "run self.sh", cred))
	require.NoError(t, sh.fs.Chmod("/home/Guest/self.sh", 0o755, cred))
	out = sh.Run(context.Background(), "run self.sh")
	assert.ErrorIs(t, out.Err, ErrScriptTooDeep)

	out = sh.Run(context.Background(), "run notes.txt")
	assert.ErrorContains(t, out.Err, "is not a shell script")
}

func TestExecAndClose(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)

	out := sh.Exec(context.Background(), "echo from app > app.txt")
	require.NoError(t, out.Err)
	assert.Empty(t, sh.Session().History())
	assert.Equal(t, "from app", sh.ok(t, "cat app.txt"))

	sh.ok(t, "sleep 30 &")
	require.NoError(t, sh.Close(context.Background()))
	assert.Zero(t, sh.Jobs().Active())
	assert.ErrorIs(t, sh.Run(context.Background(), "echo x").Err, ErrShellClosed)
}

func TestNewShellRejectsUnknownUser(t *testing.T) {
	t.Parallel()
	fs := vfs.New(store.NewMemory(), vfs.Options{})
	_, err := New(Options{FS: fs, User: "mallory"})
	assert.Error(t, err)

	_, err = New(Options{})
	assert.Error(t, err)
}

func TestRedirectPersistsAfterCancel(t *testing.T) {
	t.Parallel()
	sh := newTestShell(t, 0)
	units, err := parser.Parse("echo kept > kept.txt")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := sh.ex.newPipelineRun(sh.Session().Clone(), units[0].Pipeline, modeBackground)
	r.stdin = "kept"
	require.NoError(t, r.finish(ctx).err)

	reloaded := vfs.New(sh.backend, vfs.Options{})
	require.NoError(t, reloaded.Load(context.Background()))
	content, err := reloaded.ReadFile("/home/Guest/kept.txt", sh.Session().Cred())
	require.NoError(t, err)
	assert.Equal(t, "kept", content)
}
