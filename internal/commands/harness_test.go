package commands

import (
	"context"
	"errors"
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mako10k/vosh/internal/identity"
	"github.com/mako10k/vosh/internal/store"
	"github.com/mako10k/vosh/internal/vfs"
)

type mapTable map[string]string

func (m mapTable) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func (m mapTable) Set(name, value string) error {
	if name == "" {
		return errors.New("empty name")
	}
	m[name] = value
	return nil
}

func (m mapTable) Unset(name string) { delete(m, name) }

func (m mapTable) Remove(name string) bool {
	_, ok := m[name]
	delete(m, name)
	return ok
}

func (m mapTable) All() map[string]string { return maps.Clone(m) }

type fakeSession struct {
	wd      string
	user    string
	cred    vfs.Cred
	history []string
}

func (s *fakeSession) WorkDir() string   { return s.wd }
func (s *fakeSession) Chdir(p string)    { s.wd = p }
func (s *fakeSession) User() string      { return s.user }
func (s *fakeSession) Cred() vfs.Cred    { return s.cred }
func (s *fakeSession) History() []string { return s.history }

type fakeJobs struct {
	jobs   []JobInfo
	killed []int
}

func (j *fakeJobs) List() []JobInfo { return j.jobs }

func (j *fakeJobs) Kill(_ context.Context, id int) error {
	for i, job := range j.jobs {
		if job.ID == id {
			j.killed = append(j.killed, id)
			j.jobs = append(j.jobs[:i], j.jobs[i+1:]...)
			return nil
		}
	}
	return errors.New("no such job")
}

type harness struct {
	fs       *vfs.FileSystem
	backend  store.Backend
	users    *identity.Registry
	session  *fakeSession
	env      mapTable
	aliases  mapTable
	jobs     *fakeJobs
	registry *Registry
}

func newHarness(t *testing.T, quota int64) *harness {
	t.Helper()
	users := identity.NewRegistry()
	users.AddUser("bob", "")
	users.AddGroup("devs")
	require.NoError(t, users.AddMember("devs", "Guest"))

	backend := store.NewMemory()
	clock := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	fs := vfs.New(backend, vfs.Options{
		Quota: quota,
		Homes: users.Homes(),
		Now:   func() time.Time { return clock },
	})
	require.NoError(t, fs.Load(context.Background()))

	cred, err := users.Cred(identity.DefaultUser)
	require.NoError(t, err)
	return &harness{
		fs:       fs,
		backend:  backend,
		users:    users,
		session:  &fakeSession{wd: "/home/Guest", user: identity.DefaultUser, cred: cred},
		env:      mapTable{"HOME": "/home/Guest", "USER": identity.DefaultUser},
		aliases:  mapTable{},
		jobs:     &fakeJobs{},
		registry: NewBuiltinRegistry(nil),
	}
}

func (h *harness) as(t *testing.T, user string) {
	t.Helper()
	cred, err := h.users.Cred(user)
	require.NoError(t, err)
	h.session.user = user
	h.session.cred = cred
}

func (h *harness) invocation(stdin string, piped bool, args ...string) *Invocation {
	return &Invocation{
		Name:    args[0],
		Args:    args[1:],
		Stdin:   stdin,
		Piped:   piped,
		FS:      h.fs,
		Session: h.session,
		Env:     h.env,
		Aliases: h.aliases,
		Jobs:    h.jobs,
		Users:   h.users,
	}
}

func (h *harness) run(args ...string) Result {
	return h.registry.Run(context.Background(), h.invocation("", false, args...))
}

func (h *harness) pipe(stdin string, args ...string) Result {
	return h.registry.Run(context.Background(), h.invocation(stdin, true, args...))
}

// runOK fails the test unless the command succeeds and returns its output.
func (h *harness) runOK(t *testing.T, args ...string) string {
	t.Helper()
	res := h.run(args...)
	require.NoError(t, res.Err, "%v", args)
	require.Nil(t, res.Prompt, "%v", args)
	return res.Output
}

func (h *harness) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, h.fs.CreateOrUpdateFile(path, content, h.session.cred))
}

func (h *harness) read(t *testing.T, path string) string {
	t.Helper()
	content, err := h.fs.ReadFile(path, h.session.cred)
	require.NoError(t, err)
	return content
}
