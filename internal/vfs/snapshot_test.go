package vfs

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mako10k/vosh/internal/metrics"
	"github.com/mako10k/vosh/internal/store"
)

func TestLoadPersistsFreshTree(t *testing.T) {
	t.Parallel()
	_, backend := newTestFS(t, Options{})
	blob, err := backend.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	assert.NotEmpty(t, blob)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for _, codec := range []store.CodecOptions{{}, {Compress: true, Checksum: true}} {
		fs, backend := newTestFS(t, Options{Codec: codec})
		require.NoError(t, fs.CreateOrUpdateFile("/home/Guest/notes/todo.txt", "buy milk", guestCred))
		require.NoError(t, fs.CreateOrUpdateFile("/home/Guest/empty", "", guestCred))
		require.NoError(t, fs.Chmod("/home/Guest/notes", 0o750, guestCred))
		require.NoError(t, fs.Save(ctx))

		before, err := fs.Dump()
		require.NoError(t, err)

		restored := New(backend, Options{Codec: codec})
		require.NoError(t, restored.Load(ctx))
		after, err := restored.Dump()
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))

		content, err := restored.ReadFile("/home/Guest/notes/todo.txt", guestCred)
		require.NoError(t, err)
		assert.Equal(t, "buy milk", content)
		fi, err := restored.GetNode("/home/Guest/empty", guestCred)
		require.NoError(t, err)
		assert.Equal(t, File, fi.Kind)
	}
}

func TestQuotaExceededKeepsLastSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	fs, backend := newTestFS(t, Options{Quota: 10, Metrics: m})

	require.NoError(t, fs.CreateOrUpdateFile("/home/Guest/small", "12345", guestCred))
	require.NoError(t, fs.Save(ctx))
	good, err := backend.Get(ctx, DefaultKey)
	require.NoError(t, err)

	// A tree loaded under a larger quota can exceed a lowered one.
	fs.opts.Quota = 0
	require.NoError(t, fs.CreateOrUpdateFile("/home/Guest/big", "1234567890", guestCred))
	fs.opts.Quota = 10
	err = fs.Save(ctx)
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, int64(15), qe.Size)
	assert.Equal(t, int64(10), qe.Quota)
	assert.True(t, IsQuotaExceeded(err))

	durable, err := backend.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, good, durable)

	assert.False(t, fs.Exists("/home/Guest/big", guestCred), "in-memory tree reverts to the last snapshot")
	assert.True(t, fs.Exists("/home/Guest/small", guestCred))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SavesTotal.WithLabelValues("quota_exceeded")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.TreeBytes))
}

func TestLoadRejectsCorruptSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	backend := store.NewMemory()
	require.NoError(t, backend.Put(ctx, DefaultKey, []byte("garbage")))
	fs := New(backend, Options{})
	assert.ErrorIs(t, fs.Load(ctx), store.ErrCorrupt)

	blob, err := store.Encode(map[string]any{"/": map[string]any{"type": "file"}}, store.CodecOptions{})
	require.NoError(t, err)
	require.NoError(t, backend.Put(ctx, DefaultKey, blob))
	assert.ErrorIs(t, fs.Load(ctx), store.ErrCorrupt)
}

func TestReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs, _ := newTestFS(t, Options{})
	require.NoError(t, fs.CreateOrUpdateFile("/home/Guest/a", "a", guestCred))
	require.NoError(t, fs.Reset(ctx))
	assert.False(t, fs.Exists("/home/Guest/a", guestCred))
	assert.True(t, fs.Exists("/home/Guest", guestCred))
}

func TestDepthLimit(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t, Options{MaxDepth: 3})
	require.NoError(t, fs.CreateOrUpdateFile("/a/b/c/d/e/f", "x", rootCred))
	assert.ErrorIs(t, fs.Save(context.Background()), ErrTooDeep)
	assert.ErrorIs(t, fs.Copy("/a", "/z", rootCred, true), ErrTooDeep)
}
