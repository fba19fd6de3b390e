package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)

	h.runOK(t, "alias", "ll='ls -l'")
	h.runOK(t, "alias", "la=ls", "-a")
	assert.Equal(t, "ls -l", h.aliases["ll"])
	assert.Equal(t, "ls -a", h.aliases["la"])

	assert.Equal(t, "alias la='ls -a'\nalias ll='ls -l'", h.runOK(t, "alias"))
	assert.Equal(t, "alias ll='ls -l'", h.runOK(t, "alias", "ll"))

	res := h.run("alias", "nope")
	assert.EqualError(t, res.Err, "alias: nope: not found")

	h.runOK(t, "unalias", "ll")
	res = h.run("unalias", "ll", "la")
	assert.EqualError(t, res.Err, "unalias: no such alias: ll")
	assert.Empty(t, h.aliases)
}

func TestVariableCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)

	h.runOK(t, "set", `GREETING="Hello there"`)
	assert.Equal(t, "Hello there", h.env["GREETING"])

	h.runOK(t, "set", "NAME", "a", "b")
	assert.Equal(t, "a b", h.env["NAME"])

	h.runOK(t, "export", "X=1")
	assert.Equal(t, "1", h.env["X"])

	out := h.runOK(t, "set")
	assert.Contains(t, out, `GREETING="Hello there"`)
	assert.Contains(t, out, `X="1"`)

	h.runOK(t, "unset", "X", "NAME")
	assert.NotContains(t, h.env, "X")
	assert.NotContains(t, h.env, "NAME")

	res := h.run("set", "=v")
	assert.Error(t, res.Err)
}

func TestIdentityCommands(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	assert.Equal(t, "Guest", h.runOK(t, "whoami"))
	assert.Equal(t, "Guest : Guest devs", h.runOK(t, "groups"))
	assert.Equal(t, "bob : bob", h.runOK(t, "groups", "bob"))

	res := h.run("groups", "ghost")
	assert.EqualError(t, res.Err, "groups: user 'ghost' does not exist")
}

func TestHistoryCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	h.session.history = []string{"ls", "pwd"}
	assert.Equal(t, "    1  ls\n    2  pwd", h.runOK(t, "history"))
}

func TestReadPrompts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)

	res := h.run("read", "-p", "Name? ", "WHO")
	require.NotNil(t, res.Prompt)
	assert.Equal(t, "Name? ", res.Prompt.Message)

	res = res.Prompt.Resume(context.Background(), "alice\n")
	require.True(t, res.Success())
	assert.Equal(t, "alice", h.env["WHO"])
}

func TestReadFromPipe(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	res := h.pipe("first\nsecond", "read", "LINE")
	require.True(t, res.Success())
	assert.Equal(t, "first", h.env["LINE"])
}

func TestHelpCommand(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	out := h.runOK(t, "help")
	assert.Contains(t, out, "Available commands:")
	assert.Contains(t, out, "echo")
	assert.Contains(t, out, "Remove files or directories")

	assert.Contains(t, h.runOK(t, "help", "rm"), "Usage: rm [options] path...")

	res := h.run("help", "frobnicate")
	assert.EqualError(t, res.Err, "help: command not found: frobnicate")
}

func TestDate(t *testing.T) {
	t.Parallel()
	h := newHarness(t, 0)
	_, err := time.Parse(time.UnixDate, h.runOK(t, "date"))
	assert.NoError(t, err)
}
