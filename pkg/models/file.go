package models

import (
	"strings"
	"time"
)

// Provider identifies which cloud service issued an identifier
type Provider string

const (
	ProviderYandex Provider = "yandex"
	ProviderGoogle Provider = "google"
)

// Kind distinguishes files from directories
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// FileID is a provider-scoped identifier: a path in the app:/ namespace for
// Yandex Disk, an opaque object ID for Google Drive. An ID is only meaningful
// together with the provider that issued it and is never compared across
// providers.
type FileID struct {
	Provider Provider `json:"provider"`
	Value    string   `json:"value"`
}

// YandexPath builds a path-addressed Yandex Disk identifier
func YandexPath(path string) FileID {
	return FileID{Provider: ProviderYandex, Value: path}
}

// GoogleID builds an ID-addressed Google Drive identifier
func GoogleID(id string) FileID {
	return FileID{Provider: ProviderGoogle, Value: id}
}

// IsZero reports whether the identifier is unset
func (id FileID) IsZero() bool {
	return id.Value == ""
}

// String returns a stable cache key for the identifier
func (id FileID) String() string {
	return string(id.Provider) + ":" + id.Value
}

// FileNode represents one entry in the remote hierarchy.
// Children is nil for a directory that has never been listed; an empty
// non-nil slice means the directory was listed and is empty. Children of a
// file node is always nil.
type FileNode struct {
	Name       string     `json:"name"`
	ID         FileID     `json:"id"`
	Kind       Kind       `json:"kind"`
	MimeType   string     `json:"mime_type,omitempty"`
	Size       int64      `json:"size,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
	ModifiedAt time.Time  `json:"modified_at,omitempty"`
	Owner      string     `json:"owner,omitempty"` // Google Drive only
	Children   []FileNode `json:"children,omitempty"`
}

// IsDir reports whether the node is a directory
func (n *FileNode) IsDir() bool {
	return n.Kind == KindDir
}

// IsSupportedMimeType reports whether a file can be opened in the editor.
// The editor is plain-text only: text/plain and the other text/* variants.
func IsSupportedMimeType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/")
}
