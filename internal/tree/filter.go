package tree

import (
	"strings"

	"cloudpad/pkg/models"
)

// Filtered returns a pruned copy of the cached tree: files match when their
// name contains the query (and, with supportedOnly, when the editor can open
// them); directories are kept when they match by name or contain a matching
// descendant. The transform is pure view logic. It never mutates the cache
// and is recomputed on every query change.
func (c *Cache) Filtered(query string, supportedOnly bool) models.FileNode {
	q := strings.ToLower(strings.TrimSpace(query))
	root, _ := filterNode(c.Tree(), q, supportedOnly)
	return root
}

func filterNode(n models.FileNode, query string, supportedOnly bool) (models.FileNode, bool) {
	matches := query == "" || strings.Contains(strings.ToLower(n.Name), query)

	if n.Kind == models.KindFile {
		if supportedOnly && !models.IsSupportedMimeType(n.MimeType) {
			return n, false
		}
		return n, matches
	}

	var kept []models.FileNode
	for _, child := range n.Children {
		if fc, ok := filterNode(child, query, supportedOnly); ok {
			kept = append(kept, fc)
		}
	}
	out := n
	out.Children = kept

	// A directory left with no children survives only on its own name.
	return out, len(kept) > 0 || matches
}
