package googledrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloudpad/internal/remote"
	"cloudpad/pkg/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"

	// rootAlias is the identifier value the rest of the app uses for the
	// sandbox root. It resolves lazily to the real app folder ID, which is
	// not known until the first API round-trip.
	rootAlias = "root"

	// maxAncestryDepth caps parent-chain walks. The editor's trees are
	// shallow; a chain this long means a malformed graph, not a deep tree.
	maxAncestryDepth = 32
)

// Service is the ID-addressed Google Drive adapter. Drive has no native path
// confinement, so every operation resolves ancestry through parent pointers
// and refuses to touch anything whose chain does not terminate at the
// dedicated application folder.
type Service struct {
	drive         *drive.Service
	appFolderName string
	logger        zerolog.Logger

	mu          sync.Mutex
	appFolderID string
	// verified caches IDs whose ancestry has already been proven to reach
	// the app folder, so containment checks do not re-walk the chain on
	// every call.
	verified map[string]struct{}
}

// NewService creates a new Google Drive adapter. Extra client options are
// applied after the token-derived defaults, which lets tests point the SDK
// at a local server.
func NewService(ctx context.Context, token *models.Token, appFolderName string, logger zerolog.Logger, opts ...option.ClientOption) (*Service, error) {
	if !token.Valid() {
		return nil, fmt.Errorf("%w: no google token registered", remote.ErrAuth)
	}
	if appFolderName == "" {
		return nil, fmt.Errorf("app folder name is required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token.AccessToken})
	clientOpts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}, opts...)

	driveService, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &Service{
		drive:         driveService,
		appFolderName: appFolderName,
		logger:        logger.With().Str("provider", "google").Logger(),
		verified:      make(map[string]struct{}),
	}, nil
}

// Root returns the sandbox root alias. The alias resolves to the app folder
// on first use so callers never need to know the real ID.
func (s *Service) Root() models.FileID {
	return models.GoogleID(rootAlias)
}

// ListChildren lists the direct children of a folder, draining nextPageToken
// pages before returning. Listing is single-level; lazy recursion is the
// tree cache's policy.
func (s *Service) ListChildren(ctx context.Context, folder models.FileID) ([]models.FileNode, error) {
	folderID, err := s.resolveID(ctx, folder)
	if err != nil {
		return nil, err
	}
	if err := s.verifyContainment(ctx, folderID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQueryValue(folderID))
	var children []models.FileNode
	pageToken := ""
	for {
		call := s.drive.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name, mimeType, size, createdTime, modifiedTime, owners)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		page, err := call.Do()
		if err != nil {
			return nil, s.mapError(err)
		}
		for _, f := range page.Files {
			children = append(children, nodeFromFile(f))
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	// Children of a contained folder are contained by construction.
	s.mu.Lock()
	for _, child := range children {
		s.verified[child.ID.Value] = struct{}{}
	}
	s.mu.Unlock()

	return children, nil
}

// Metadata fetches a single file's attributes
func (s *Service) Metadata(ctx context.Context, id models.FileID) (models.FileNode, error) {
	fileID, err := s.resolveID(ctx, id)
	if err != nil {
		return models.FileNode{}, err
	}
	if err := s.verifyContainment(ctx, fileID); err != nil {
		return models.FileNode{}, err
	}

	f, err := s.drive.Files.Get(fileID).
		Fields("id, name, mimeType, size, createdTime, modifiedTime, owners").
		Context(ctx).
		Do()
	if err != nil {
		return models.FileNode{}, s.mapError(err)
	}
	return nodeFromFile(f), nil
}

// ReadContent downloads a file's media content and decodes it as UTF-8 text
func (s *Service) ReadContent(ctx context.Context, id models.FileID) (string, error) {
	fileID, err := s.resolveID(ctx, id)
	if err != nil {
		return "", err
	}
	if err := s.verifyContainment(ctx, fileID); err != nil {
		return "", err
	}

	resp, err := s.drive.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", s.mapError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: reading download body: %v", remote.ErrTransient, err)
	}
	return string(body), nil
}

// WriteContent overwrites a file's content through the media upload
// endpoint, preserving its ID.
func (s *Service) WriteContent(ctx context.Context, id models.FileID, text string) error {
	fileID, err := s.resolveID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.verifyContainment(ctx, fileID); err != nil {
		return err
	}

	_, err = s.drive.Files.Update(fileID, &drive.File{}).
		Media(strings.NewReader(text), googleapi.ContentType("text/plain")).
		Fields("id").
		Context(ctx).
		Do()
	return s.mapError(err)
}

// CreateEntry creates a file or folder under parent. Drive happily stores
// duplicate names, so the adapter enforces the uniform conflict rule with a
// name query first.
func (s *Service) CreateEntry(ctx context.Context, parent models.FileID, name string, kind models.Kind) (models.FileNode, error) {
	parentID, err := s.resolveID(ctx, parent)
	if err != nil {
		return models.FileNode{}, err
	}
	if err := s.verifyContainment(ctx, parentID); err != nil {
		return models.FileNode{}, err
	}
	if name == "" || strings.Contains(name, "/") {
		return models.FileNode{}, fmt.Errorf("%w: invalid entry name %q", remote.ErrContainment, name)
	}

	dupQuery := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeQueryValue(name), escapeQueryValue(parentID))
	existing, err := s.drive.Files.List().Q(dupQuery).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return models.FileNode{}, s.mapError(err)
	}
	if len(existing.Files) > 0 {
		return models.FileNode{}, fmt.Errorf("%w: %q", remote.ErrConflict, name)
	}

	mimeType := "text/plain"
	if kind == models.KindDir {
		mimeType = folderMimeType
	}
	created, err := s.drive.Files.Create(&drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parentID},
	}).Fields("id, name, mimeType, createdTime, modifiedTime").Context(ctx).Do()
	if err != nil {
		return models.FileNode{}, s.mapError(err)
	}

	s.mu.Lock()
	s.verified[created.Id] = struct{}{}
	s.mu.Unlock()

	return nodeFromFile(created), nil
}

// DeleteEntry deletes a single file or folder. Emptying a folder first is
// the tree cache's job, kept uniform across providers.
func (s *Service) DeleteEntry(ctx context.Context, id models.FileID) error {
	fileID, err := s.resolveID(ctx, id)
	if err != nil {
		return err
	}
	if s.isAppRoot(fileID) {
		return fmt.Errorf("%w: cannot delete the application folder", remote.ErrContainment)
	}
	if err := s.verifyContainment(ctx, fileID); err != nil {
		return err
	}

	if err := s.drive.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return s.mapError(err)
	}
	s.mu.Lock()
	delete(s.verified, fileID)
	s.mu.Unlock()
	return nil
}

// Rename patches a file's display name in place. Identity is the ID, which
// does not change, so no child metadata needs touching.
func (s *Service) Rename(ctx context.Context, id models.FileID, newName string) (models.FileID, error) {
	fileID, err := s.resolveID(ctx, id)
	if err != nil {
		return models.FileID{}, err
	}
	if s.isAppRoot(fileID) {
		return models.FileID{}, fmt.Errorf("%w: cannot rename the application folder", remote.ErrContainment)
	}
	if err := s.verifyContainment(ctx, fileID); err != nil {
		return models.FileID{}, err
	}
	if newName == "" || strings.Contains(newName, "/") {
		return models.FileID{}, fmt.Errorf("%w: invalid entry name %q", remote.ErrContainment, newName)
	}

	_, err = s.drive.Files.Update(fileID, &drive.File{Name: newName}).
		Fields("id, name").
		Context(ctx).
		Do()
	if err != nil {
		return models.FileID{}, s.mapError(err)
	}
	return models.GoogleID(fileID), nil
}

// Move re-parents a file by editing its parent pointers. When the target is
// already a current parent the move is a no-op success with no mutating call.
func (s *Service) Move(ctx context.Context, id models.FileID, newParent models.FileID) (models.FileID, error) {
	fileID, err := s.resolveID(ctx, id)
	if err != nil {
		return models.FileID{}, err
	}
	if s.isAppRoot(fileID) {
		return models.FileID{}, fmt.Errorf("%w: cannot move the application folder", remote.ErrContainment)
	}
	parentID, err := s.resolveID(ctx, newParent)
	if err != nil {
		return models.FileID{}, err
	}
	if err := s.verifyContainment(ctx, fileID); err != nil {
		return models.FileID{}, err
	}
	if err := s.verifyContainment(ctx, parentID); err != nil {
		return models.FileID{}, err
	}
	if err := s.rejectDescendantMove(ctx, fileID, parentID); err != nil {
		return models.FileID{}, err
	}

	current, err := s.drive.Files.Get(fileID).Fields("parents").Context(ctx).Do()
	if err != nil {
		return models.FileID{}, s.mapError(err)
	}
	for _, p := range current.Parents {
		if p == parentID {
			// Already where it should be; skip the redundant mutation.
			return models.GoogleID(fileID), nil
		}
	}

	_, err = s.drive.Files.Update(fileID, &drive.File{}).
		AddParents(parentID).
		RemoveParents(strings.Join(current.Parents, ",")).
		Fields("id, parents").
		Context(ctx).
		Do()
	if err != nil {
		return models.FileID{}, s.mapError(err)
	}
	return models.GoogleID(fileID), nil
}

// resolveID maps the root alias to the real app folder ID, creating the
// folder on first use.
func (s *Service) resolveID(ctx context.Context, id models.FileID) (string, error) {
	if id.Value == "" || id.Value == rootAlias {
		return s.appFolder(ctx)
	}
	return id.Value, nil
}

func (s *Service) isAppRoot(fileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appFolderID != "" && fileID == s.appFolderID
}

// appFolder looks up the dedicated application folder by name, creating it
// when absent. The ID is memoized for the adapter's lifetime; it is written
// once under the lock and read-mostly afterwards.
func (s *Service) appFolder(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appFolderID != "" {
		return s.appFolderID, nil
	}

	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQueryValue(s.appFolderName), folderMimeType)
	list, err := s.drive.Files.List().Q(query).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", s.mapError(err)
	}
	if len(list.Files) > 0 {
		s.appFolderID = list.Files[0].Id
		s.verified[s.appFolderID] = struct{}{}
		return s.appFolderID, nil
	}

	created, err := s.drive.Files.Create(&drive.File{
		Name:     s.appFolderName,
		MimeType: folderMimeType,
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", s.mapError(err)
	}
	s.logger.Info().Str("folder_id", created.Id).Str("name", s.appFolderName).Msg("created application folder")

	s.appFolderID = created.Id
	s.verified[s.appFolderID] = struct{}{}
	return s.appFolderID, nil
}

// verifyContainment walks the parent chain up from fileID and fails with
// ErrContainment unless the chain terminates at the app folder. Proven
// chains are cached so repeated checks stay cheap.
func (s *Service) verifyContainment(ctx context.Context, fileID string) error {
	appID, err := s.appFolder(ctx)
	if err != nil {
		return err
	}
	if fileID == appID {
		return nil
	}

	s.mu.Lock()
	_, ok := s.verified[fileID]
	s.mu.Unlock()
	if ok {
		return nil
	}

	chain := []string{fileID}
	current := fileID
	for depth := 0; depth < maxAncestryDepth; depth++ {
		f, err := s.drive.Files.Get(current).Fields("id, parents").Context(ctx).Do()
		if err != nil {
			return s.mapError(err)
		}
		if len(f.Parents) == 0 {
			return fmt.Errorf("%w: %s has no path to the application folder", remote.ErrContainment, fileID)
		}
		for _, p := range f.Parents {
			if p == appID {
				s.mu.Lock()
				for _, id := range chain {
					s.verified[id] = struct{}{}
				}
				s.mu.Unlock()
				return nil
			}
		}
		current = f.Parents[0]
		chain = append(chain, current)
	}
	return fmt.Errorf("%w: ancestry of %s did not terminate at the application folder", remote.ErrContainment, fileID)
}

// rejectDescendantMove refuses to move a folder under its own subtree by
// walking the target parent's ancestry and looking for the moved node.
func (s *Service) rejectDescendantMove(ctx context.Context, fileID, parentID string) error {
	if fileID == parentID {
		return fmt.Errorf("%w: cannot move an entry into itself", remote.ErrContainment)
	}
	appID, err := s.appFolder(ctx)
	if err != nil {
		return err
	}

	current := parentID
	for depth := 0; depth < maxAncestryDepth; depth++ {
		if current == appID {
			return nil
		}
		if current == fileID {
			return fmt.Errorf("%w: cannot move a folder into its own subtree", remote.ErrContainment)
		}
		f, err := s.drive.Files.Get(current).Fields("id, parents").Context(ctx).Do()
		if err != nil {
			return s.mapError(err)
		}
		if len(f.Parents) == 0 {
			return nil
		}
		current = f.Parents[0]
	}
	return nil
}

// mapError classifies SDK and API failures onto the shared taxonomy
func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		detail := gerr.Message
		switch gerr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", remote.ErrAuth, detail)
		case http.StatusForbidden:
			for _, item := range gerr.Errors {
				switch item.Reason {
				case "storageQuotaExceeded", "quotaExceeded":
					return fmt.Errorf("%w: %s", remote.ErrQuota, detail)
				case "rateLimitExceeded", "userRateLimitExceeded":
					return fmt.Errorf("%w: %s", remote.ErrTransient, detail)
				}
			}
			return fmt.Errorf("%w: %s", remote.ErrAuth, detail)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", remote.ErrNotFound, detail)
		case http.StatusConflict:
			return fmt.Errorf("%w: %s", remote.ErrConflict, detail)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", remote.ErrTransient, detail)
		}
		if gerr.Code >= 500 {
			return fmt.Errorf("%w: %s", remote.ErrTransient, detail)
		}
		return fmt.Errorf("drive API error (status %d): %s", gerr.Code, detail)
	}

	// Anything below the API layer is a network-class failure.
	return fmt.Errorf("%w: %v", remote.ErrTransient, err)
}

// nodeFromFile converts a Drive file into the shared node model
func nodeFromFile(f *drive.File) models.FileNode {
	kind := models.KindFile
	if f.MimeType == folderMimeType {
		kind = models.KindDir
	}
	node := models.FileNode{
		Name:     f.Name,
		ID:       models.GoogleID(f.Id),
		Kind:     kind,
		MimeType: f.MimeType,
		Size:     f.Size,
	}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		node.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		node.ModifiedAt = t
	}
	if len(f.Owners) > 0 {
		node.Owner = f.Owners[0].DisplayName
	}
	return node
}

// escapeQueryValue escapes a literal for interpolation into a Drive q filter
func escapeQueryValue(v string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
}
