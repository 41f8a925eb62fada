// Package tree holds the client-side model of the remote hierarchy: cached
// subtrees, lazy folder expansion, invalidation after mutations and the
// filtered view the UI renders.
package tree

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloudpad/internal/remote"
	"cloudpad/pkg/models"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type nodeState int

const (
	stateUnfetched nodeState = iota
	stateLoading
	statePopulated
	stateStale
)

type cacheNode struct {
	id       models.FileID
	state    nodeState
	children []models.FileNode // nil until the first successful listing
}

// Cache is the folder-tree cache. Mutations are applied by invalidating the
// affected parents and letting the next Expand reconcile against the
// provider, never by speculative local edits: asynchronous provider-side
// completion makes optimistic local state too easy to get wrong.
type Cache struct {
	storage remote.Storage
	logger  zerolog.Logger

	mu    sync.RWMutex
	nodes map[string]*cacheNode

	group singleflight.Group

	onRemoved func(models.FileID)
}

// NewCache creates a cache over a storage adapter
func NewCache(storage remote.Storage, logger zerolog.Logger) *Cache {
	return &Cache{
		storage: storage,
		logger:  logger.With().Str("component", "tree").Logger(),
		nodes:   make(map[string]*cacheNode),
	}
}

// SetRemovedHandler registers a callback fired once per entry whose backing
// file stops existing under its identifier (deleted, or re-keyed by a
// path-addressed rename/move). The editor layer uses it to flag an open
// document whose file went away.
func (c *Cache) SetRemovedHandler(fn func(models.FileID)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRemoved = fn
}

// Root returns the identifier of the provider's sandbox root
func (c *Cache) Root() models.FileID {
	return c.storage.Root()
}

// Expand returns a folder's children, fetching them when the node is
// unfetched or stale. Expanding a populated node is idempotent and issues no
// network call. Concurrent expands of the same node collapse into a single
// in-flight listing.
func (c *Cache) Expand(ctx context.Context, folder models.FileID) ([]models.FileNode, error) {
	key := folder.String()

	c.mu.Lock()
	n := c.ensureLocked(folder)
	if n.state == statePopulated {
		out := cloneNodes(n.children)
		c.mu.Unlock()
		return out, nil
	}
	n.state = stateLoading
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.storage.ListChildren(ctx, folder)
	})

	var removed []models.FileID
	defer func() { c.notifyRemoved(removed) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	n = c.ensureLocked(folder)

	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			// The folder vanished out-of-band. Self-heal: empty the node
			// instead of propagating, and tell listeners it is gone.
			removed = append(removed, c.dropSubtreeLocked(folder)...)
			removed = append(removed, folder)
			n.state = statePopulated
			n.children = []models.FileNode{}
			c.logger.Debug().Str("folder", key).Msg("folder vanished, cache self-healed")
			return []models.FileNode{}, nil
		}
		if n.state == stateLoading {
			if n.children != nil {
				n.state = stateStale
			} else {
				n.state = stateUnfetched
			}
		}
		return nil, err
	}

	children := v.([]models.FileNode)
	if children == nil {
		children = []models.FileNode{}
	}
	// Full replacement: stale entries are never merged with fresh ones.
	n.state = statePopulated
	n.children = cloneNodes(children)
	return children, nil
}

// Children returns whatever is cached for a folder, stale or not. Stale
// children stay servable until a refetch replaces them, so the UI never
// flashes empty during a refresh.
func (c *Cache) Children(folder models.FileID) ([]models.FileNode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[folder.String()]
	if !ok || n.children == nil {
		return nil, false
	}
	return cloneNodes(n.children), true
}

// Invalidate marks a folder stale without clearing its cached children
func (c *Cache) Invalidate(folder models.FileID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(folder)
}

// Create makes a new entry and invalidates the parent so the next expand
// picks it up from the provider.
func (c *Cache) Create(ctx context.Context, parent models.FileID, name string, kind models.Kind) (models.FileNode, error) {
	node, err := c.storage.CreateEntry(ctx, parent, name, kind)
	if err != nil {
		return models.FileNode{}, err
	}
	c.Invalidate(parent)
	return node, nil
}

// Delete removes an entry. Directories are emptied bottom-up first, one
// provider call per descendant, so behavior is identical on providers that
// cascade and providers that do not.
func (c *Cache) Delete(ctx context.Context, id models.FileID) error {
	var removed []models.FileID
	defer func() { c.notifyRemoved(removed) }()

	md, err := c.storage.Metadata(ctx, id)
	if errors.Is(err, remote.ErrNotFound) {
		// Deleted out-of-band; just heal the cache.
		removed = c.forget(id)
		return nil
	}
	if err != nil {
		return err
	}

	err = c.deleteRecursive(ctx, models.FileNode{ID: id, Name: md.Name, Kind: md.Kind}, &removed)

	c.mu.Lock()
	for _, rid := range removed {
		delete(c.nodes, rid.String())
	}
	c.invalidateParentLocked(id)
	if err != nil {
		// A partial delete leaves the subtree in an unknown state; make
		// sure the next expand refetches it.
		c.invalidateLocked(id)
	}
	c.mu.Unlock()
	return err
}

func (c *Cache) deleteRecursive(ctx context.Context, node models.FileNode, removed *[]models.FileID) error {
	if node.Kind == models.KindDir {
		children, err := c.storage.ListChildren(ctx, node.ID)
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			return err
		}
		for _, child := range children {
			if err := c.deleteRecursive(ctx, child, removed); err != nil {
				return err
			}
		}
	}
	if err := c.storage.DeleteEntry(ctx, node.ID); err != nil && !errors.Is(err, remote.ErrNotFound) {
		return err
	}
	*removed = append(*removed, node.ID)
	return nil
}

// Rename renames an entry and invalidates its parent. When the identifier
// changes (path-addressed providers) the old subtree is dropped and
// listeners are told the old identifier no longer exists.
func (c *Cache) Rename(ctx context.Context, id models.FileID, newName string) (models.FileID, error) {
	newID, err := c.storage.Rename(ctx, id, newName)
	if err != nil {
		return models.FileID{}, err
	}

	var removed []models.FileID
	c.mu.Lock()
	if newID != id {
		removed = append(removed, c.dropSubtreeLocked(id)...)
		removed = append(removed, id)
		delete(c.nodes, id.String())
	}
	c.invalidateParentLocked(id)
	c.mu.Unlock()
	c.notifyRemoved(removed)

	return newID, nil
}

// Move relocates an entry under a new parent. A move that would make a
// folder its own descendant is rejected before any adapter call and leaves
// the cache untouched.
func (c *Cache) Move(ctx context.Context, id models.FileID, newParent models.FileID) (models.FileID, error) {
	if err := c.rejectDescendantMove(id, newParent); err != nil {
		return models.FileID{}, err
	}

	newID, err := c.storage.Move(ctx, id, newParent)
	if err != nil {
		return models.FileID{}, err
	}

	var removed []models.FileID
	c.mu.Lock()
	removed = append(removed, c.dropSubtreeLocked(id)...)
	if newID != id {
		removed = append(removed, id)
	}
	delete(c.nodes, id.String())
	c.invalidateParentLocked(id)
	c.invalidateLocked(newParent)
	c.mu.Unlock()
	c.notifyRemoved(removed)

	return newID, nil
}

// rejectDescendantMove checks, against local knowledge only, that newParent
// is not inside the subtree rooted at id: a lexical prefix comparison for
// path-addressed identifiers, a cached-subtree walk for ID-addressed ones.
// The adapters hold the authoritative check for ancestry the cache has not
// seen.
func (c *Cache) rejectDescendantMove(id, newParent models.FileID) error {
	if id == newParent {
		return fmt.Errorf("%w: cannot move an entry into itself", remote.ErrContainment)
	}
	if id.Provider == models.ProviderYandex {
		if strings.HasPrefix(newParent.Value+"/", id.Value+"/") {
			return fmt.Errorf("%w: move would place %s inside its own subtree", remote.ErrContainment, id)
		}
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.subtreeContainsLocked(id, newParent) {
		return fmt.Errorf("%w: move would place %s inside its own subtree", remote.ErrContainment, id)
	}
	return nil
}

func (c *Cache) subtreeContainsLocked(root, target models.FileID) bool {
	n, ok := c.nodes[root.String()]
	if !ok {
		return false
	}
	for _, child := range n.children {
		if child.ID == target {
			return true
		}
		if child.Kind == models.KindDir && c.subtreeContainsLocked(child.ID, target) {
			return true
		}
	}
	return false
}

// ExpandedIDs returns the identifiers of folders currently populated. The
// caller may persist the set for auto-expansion on reload; it is a UX hint,
// reconciled against live state on the next Expand, never authoritative.
func (c *Cache) ExpandedIDs() []models.FileID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []models.FileID
	for _, n := range c.nodes {
		if n.state == statePopulated || n.state == stateStale {
			ids = append(ids, n.id)
		}
	}
	return ids
}

// Tree assembles the cached hierarchy from the root down. Unfetched folders
// keep nil children, which is how the UI tells "not loaded yet" from
// "loaded and empty".
func (c *Cache) Tree() models.FileNode {
	root := models.FileNode{ID: c.storage.Root(), Kind: models.KindDir}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.assembleLocked(root)
}

func (c *Cache) assembleLocked(n models.FileNode) models.FileNode {
	entry, ok := c.nodes[n.ID.String()]
	if !ok || entry.children == nil {
		return n
	}
	kids := make([]models.FileNode, 0, len(entry.children))
	for _, child := range entry.children {
		kids = append(kids, c.assembleLocked(child))
	}
	n.Children = kids
	return n
}

func (c *Cache) ensureLocked(id models.FileID) *cacheNode {
	key := id.String()
	n, ok := c.nodes[key]
	if !ok {
		n = &cacheNode{id: id, state: stateUnfetched}
		c.nodes[key] = n
	}
	return n
}

func (c *Cache) invalidateLocked(id models.FileID) {
	if n, ok := c.nodes[id.String()]; ok && n.children != nil {
		n.state = stateStale
	}
}

// invalidateParentLocked marks every cached folder listing id as a child
// stale. The tree has one parent per node, but a scan keeps this free of
// provider-specific parent arithmetic.
func (c *Cache) invalidateParentLocked(id models.FileID) {
	for _, n := range c.nodes {
		for _, child := range n.children {
			if child.ID == id {
				if n.children != nil {
					n.state = stateStale
				}
				break
			}
		}
	}
}

// dropSubtreeLocked removes the cached entries below id and returns the
// identifiers of every cached descendant that was dropped.
func (c *Cache) dropSubtreeLocked(id models.FileID) []models.FileID {
	n, ok := c.nodes[id.String()]
	if !ok {
		return nil
	}
	var dropped []models.FileID
	for _, child := range n.children {
		dropped = append(dropped, c.dropSubtreeLocked(child.ID)...)
		dropped = append(dropped, child.ID)
		delete(c.nodes, child.ID.String())
	}
	return dropped
}

// forget drops id and its cached subtree, returning everything removed
func (c *Cache) forget(id models.FileID) []models.FileID {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := c.dropSubtreeLocked(id)
	removed = append(removed, id)
	delete(c.nodes, id.String())
	c.invalidateParentLocked(id)
	return removed
}

// notifyRemoved fires the removal handler outside the cache lock
func (c *Cache) notifyRemoved(ids []models.FileID) {
	c.mu.RLock()
	fn := c.onRemoved
	c.mu.RUnlock()
	if fn == nil {
		return
	}
	for _, id := range ids {
		fn(id)
	}
}

func cloneNodes(nodes []models.FileNode) []models.FileNode {
	if nodes == nil {
		return nil
	}
	out := make([]models.FileNode, len(nodes))
	copy(out, nodes)
	return out
}
