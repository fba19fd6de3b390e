package vfs

import (
	"context"
	"fmt"
	"time"

	"github.com/mako10k/vosh/internal/store"
)

// snapshotNode is the persisted form of a Node. The document root is a map
// with the single key "/".
type snapshotNode struct {
	Type     string                   `json:"type"`
	Content  *string                  `json:"content,omitempty"`
	Children map[string]*snapshotNode `json:"children,omitempty"`
	Owner    string                   `json:"owner"`
	Group    string                   `json:"group"`
	Mode     Mode                     `json:"mode"`
	Mtime    time.Time                `json:"mtime"`
}

type snapshot map[string]*snapshotNode

func (fs *FileSystem) encodeTree(n *Node, depth int) (*snapshotNode, error) {
	if depth > fs.opts.MaxDepth {
		return nil, ErrTooDeep
	}
	sn := &snapshotNode{
		Type:  n.Kind.String(),
		Owner: n.Owner,
		Group: n.Group,
		Mode:  n.Mode,
		Mtime: n.Mtime,
	}
	if !n.IsDir() {
		content := n.Content
		sn.Content = &content
		return sn, nil
	}
	sn.Children = make(map[string]*snapshotNode, len(n.Children))
	for name, child := range n.Children {
		c, err := fs.encodeTree(child, depth+1)
		if err != nil {
			return nil, err
		}
		sn.Children[name] = c
	}
	return sn, nil
}

func (fs *FileSystem) decodeTree(sn *snapshotNode, depth int) (*Node, error) {
	if depth > fs.opts.MaxDepth {
		return nil, ErrTooDeep
	}
	if sn == nil {
		return nil, fmt.Errorf("%w: empty node", store.ErrCorrupt)
	}
	attr := Attr{Owner: sn.Owner, Group: sn.Group, Mode: sn.Mode & ModeMask, Mtime: sn.Mtime}
	switch sn.Type {
	case File.String():
		content := ""
		if sn.Content != nil {
			content = *sn.Content
		}
		return newFile(content, attr), nil
	case Directory.String():
		n := newDir(attr)
		for name, child := range sn.Children {
			c, err := fs.decodeTree(child, depth+1)
			if err != nil {
				return nil, err
			}
			n.Children[name] = c
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%w: unknown node type %q", store.ErrCorrupt, sn.Type)
	}
}

// Save writes the whole tree to the durable backend. When the tree is over
// quota nothing is written, the tree is reloaded from the last durable
// snapshot and a *QuotaExceededError is returned.
func (fs *FileSystem) Save(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	size, err := fs.sizeOf(fs.root, 0)
	if err != nil {
		return err
	}
	if fs.opts.Quota > 0 && size > fs.opts.Quota {
		qerr := &QuotaExceededError{Size: size, Quota: fs.opts.Quota}
		fs.log.Warn().Int64("size", size).Int64("quota", fs.opts.Quota).Msg("save rejected, reloading last snapshot")
		fs.opts.Metrics.ObserveSave("quota_exceeded", size)
		if err := fs.load(ctx); err != nil {
			fs.log.Error().Err(err).Msg("reload after quota failure")
		}
		return qerr
	}
	if err := fs.persist(ctx); err != nil {
		fs.opts.Metrics.ObserveSave("error", size)
		return err
	}
	fs.opts.Metrics.ObserveSave("ok", size)
	fs.log.Debug().Int64("size", size).Msg("snapshot saved")
	return nil
}

func (fs *FileSystem) persist(ctx context.Context) error {
	root, err := fs.encodeTree(fs.root, 0)
	if err != nil {
		return err
	}
	blob, err := store.Encode(snapshot{Root: root}, fs.opts.Codec)
	if err != nil {
		return err
	}
	if err := fs.backend.Put(ctx, fs.opts.SnapshotKey, blob); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load replaces the tree with the last durable snapshot. When none exists a
// fresh tree is created and persisted.
func (fs *FileSystem) Load(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.load(ctx)
}

func (fs *FileSystem) load(ctx context.Context) error {
	blob, err := fs.backend.Get(ctx, fs.opts.SnapshotKey)
	if store.IsNotFound(err) {
		fs.log.Info().Msg("no snapshot found, initializing file system")
		fs.root = fs.freshTree()
		return fs.persist(ctx)
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	var doc snapshot
	if err := store.Decode(blob, &doc); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	rootNode, ok := doc[Root]
	if !ok || rootNode.Type != Directory.String() {
		return fmt.Errorf("load snapshot: %w: missing root directory", store.ErrCorrupt)
	}
	root, err := fs.decodeTree(rootNode, 0)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	fs.root = root
	return nil
}

// Reset discards the tree, replacing it with a fresh one, and persists it.
func (fs *FileSystem) Reset(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.root = fs.freshTree()
	return fs.persist(ctx)
}

// Dump returns the tree in its snapshot JSON form, for inspection and tests.
func (fs *FileSystem) Dump() ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	root, err := fs.encodeTree(fs.root, 0)
	if err != nil {
		return nil, err
	}
	return store.Encode(snapshot{Root: root}, store.CodecOptions{})
}
