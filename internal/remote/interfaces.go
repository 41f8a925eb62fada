package remote

import (
	"context"

	"cloudpad/pkg/models"
)

// Storage is the uniform capability contract over the cloud providers. The
// tree cache and the document session only ever talk to this interface; the
// provider-specific addressing quirks stay inside the adapters.
//
// Identifier churn: path-addressed identifiers (Yandex) change when an entry
// is renamed or moved, ID-addressed ones (Google) do not. Rename and Move
// therefore return the identifier that is valid after the operation.
type Storage interface {
	// Root returns the identifier of the sandbox root for this provider.
	// The root is never deleted, renamed or moved.
	Root() models.FileID

	// ListChildren returns the direct children of a folder, fully drained
	// across provider pagination. It never recurses.
	ListChildren(ctx context.Context, folder models.FileID) ([]models.FileNode, error)

	// ReadContent downloads a file as UTF-8 text. Cancelling ctx aborts the
	// transfer without side effects.
	ReadContent(ctx context.Context, id models.FileID) (string, error)

	// WriteContent overwrites a file's content, preserving its identity.
	WriteContent(ctx context.Context, id models.FileID, text string) error

	// CreateEntry creates a file or folder under parent.
	CreateEntry(ctx context.Context, parent models.FileID, name string, kind models.Kind) (models.FileNode, error)

	// DeleteEntry deletes a single entry. Recursive deletion of directory
	// contents is the caller's responsibility; adapters make no cascading
	// assumption even where the provider would cascade.
	DeleteEntry(ctx context.Context, id models.FileID) error

	// Rename changes an entry's display name in place.
	Rename(ctx context.Context, id models.FileID, newName string) (models.FileID, error)

	// Move relocates an entry under a new parent folder.
	Move(ctx context.Context, id models.FileID, newParent models.FileID) (models.FileID, error)

	// Metadata fetches a single entry's attributes.
	Metadata(ctx context.Context, id models.FileID) (models.FileNode, error)
}
