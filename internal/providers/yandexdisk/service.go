package yandexdisk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloudpad/internal/remote"
	"cloudpad/pkg/models"

	"github.com/rs/zerolog"
)

const listPageSize = 200

// PollConfig bounds the status polling for asynchronous Disk operations.
// Exceeding MaxAttempts is a definite timeout failure, never an infinite
// wait and never a silent success.
type PollConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultPollConfig returns the polling bounds used in production
func DefaultPollConfig() PollConfig {
	return PollConfig{MaxAttempts: 10, Interval: time.Second}
}

// Service is the path-addressed Yandex Disk adapter. All paths are
// normalized into the app:/ namespace and containment-checked before any
// request leaves the process.
type Service struct {
	httpClient *http.Client
	baseURL    string
	token      *models.Token
	poll       PollConfig
	logger     zerolog.Logger
}

// NewService creates a new Yandex Disk adapter
func NewService(token *models.Token, poll PollConfig, logger zerolog.Logger) *Service {
	if poll.MaxAttempts <= 0 {
		poll = DefaultPollConfig()
	}
	return &Service{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://cloud-api.yandex.net/v1/disk",
		token:      token,
		poll:       poll,
		logger:     logger.With().Str("provider", "yandex").Logger(),
	}
}

// Root returns the app:/ sandbox root
func (s *Service) Root() models.FileID {
	return models.YandexPath(RootPath)
}

// ListChildren lists the direct children of a folder, draining pagination
// before returning. Recursion policy belongs to the tree cache, not here.
func (s *Service) ListChildren(ctx context.Context, folder models.FileID) ([]models.FileNode, error) {
	p, err := Normalize(folder.Value)
	if err != nil {
		return nil, err
	}

	var children []models.FileNode
	offset := 0
	for {
		params := url.Values{}
		params.Set("path", p)
		params.Set("limit", fmt.Sprintf("%d", listPageSize))
		params.Set("offset", fmt.Sprintf("%d", offset))
		params.Set("fields", "_embedded.items.name,_embedded.items.path,_embedded.items.type,_embedded.items.mime_type,_embedded.items.size,_embedded.items.created,_embedded.items.modified,_embedded.total")

		var res resource
		if _, err := s.doJSON(ctx, http.MethodGet, s.baseURL+"/resources?"+params.Encode(), nil, &res); err != nil {
			return nil, err
		}
		if res.Embedded == nil {
			break
		}
		for _, item := range res.Embedded.Items {
			node, err := s.nodeFromResource(item)
			if err != nil {
				return nil, err
			}
			children = append(children, node)
		}
		offset += len(res.Embedded.Items)
		if len(res.Embedded.Items) == 0 || offset >= res.Embedded.Total {
			break
		}
	}
	return children, nil
}

// Metadata fetches a single resource's attributes
func (s *Service) Metadata(ctx context.Context, id models.FileID) (models.FileNode, error) {
	p, err := Normalize(id.Value)
	if err != nil {
		return models.FileNode{}, err
	}

	params := url.Values{}
	params.Set("path", p)
	params.Set("fields", "name,path,type,mime_type,size,created,modified")

	var res resource
	if _, err := s.doJSON(ctx, http.MethodGet, s.baseURL+"/resources?"+params.Encode(), nil, &res); err != nil {
		return models.FileNode{}, err
	}
	return s.nodeFromResource(res)
}

// ReadContent downloads a file as UTF-8 text. Download is a two-step
// indirection: the API hands out a short-lived signed URL, the actual GET
// runs against that URL. A missing href on step one is a hard failure and
// step two is never attempted.
func (s *Service) ReadContent(ctx context.Context, id models.FileID) (string, error) {
	p, err := Normalize(id.Value)
	if err != nil {
		return "", err
	}

	var dl link
	if _, err := s.doJSON(ctx, http.MethodGet, s.baseURL+"/resources/download?path="+url.QueryEscape(p), nil, &dl); err != nil {
		return "", err
	}
	if dl.Href == "" {
		return "", fmt.Errorf("download link missing for %s", p)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dl.Href, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", remote.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: reading download body: %v", remote.ErrTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", remote.StatusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

// WriteContent overwrites a file's content through the two-step upload
// indirection, preserving the file's path identity.
func (s *Service) WriteContent(ctx context.Context, id models.FileID, text string) error {
	p, err := Normalize(id.Value)
	if err != nil {
		return err
	}
	return s.upload(ctx, p, text, true)
}

// CreateEntry creates a file or folder under parent. Files are created by
// uploading empty content with overwrite disabled so an existing entry
// surfaces as a conflict instead of being clobbered.
func (s *Service) CreateEntry(ctx context.Context, parent models.FileID, name string, kind models.Kind) (models.FileNode, error) {
	parentPath, err := Normalize(parent.Value)
	if err != nil {
		return models.FileNode{}, err
	}
	if err := validateName(name); err != nil {
		return models.FileNode{}, err
	}
	full := Join(parentPath, name)

	switch kind {
	case models.KindDir:
		if _, err := s.doJSON(ctx, http.MethodPut, s.baseURL+"/resources?path="+url.QueryEscape(full), nil, nil); err != nil {
			return models.FileNode{}, err
		}
	default:
		if err := s.upload(ctx, full, "", false); err != nil {
			return models.FileNode{}, err
		}
	}

	node := models.FileNode{
		Name: name,
		ID:   models.YandexPath(full),
		Kind: kind,
	}
	if kind == models.KindFile {
		node.MimeType = "text/plain"
	}
	return node, nil
}

// DeleteEntry deletes a single resource. Directory recursion is the tree
// cache's job; the adapter deletes exactly what it is told to.
func (s *Service) DeleteEntry(ctx context.Context, id models.FileID) error {
	p, err := Normalize(id.Value)
	if err != nil {
		return err
	}
	if p == RootPath {
		return fmt.Errorf("%w: cannot delete the application root", remote.ErrContainment)
	}

	var op link
	status, err := s.doJSON(ctx, http.MethodDelete, s.baseURL+"/resources?path="+url.QueryEscape(p)+"&permanently=true", nil, &op)
	if err != nil {
		return err
	}
	if status == http.StatusAccepted {
		return s.waitForOperation(ctx, op.Href)
	}
	return nil
}

// Rename moves a resource to a sibling path with the new name, using the
// provider's native move primitive. The returned identifier carries the new
// path; path-addressed IDs change on rename.
func (s *Service) Rename(ctx context.Context, id models.FileID, newName string) (models.FileID, error) {
	p, err := Normalize(id.Value)
	if err != nil {
		return models.FileID{}, err
	}
	if p == RootPath {
		return models.FileID{}, fmt.Errorf("%w: cannot rename the application root", remote.ErrContainment)
	}
	if err := validateName(newName); err != nil {
		return models.FileID{}, err
	}

	target := Join(Parent(p), newName)
	if err := s.moveResource(ctx, p, target); err != nil {
		return models.FileID{}, err
	}
	return models.YandexPath(target), nil
}

// Move relocates a resource under a new parent folder
func (s *Service) Move(ctx context.Context, id models.FileID, newParent models.FileID) (models.FileID, error) {
	src, err := Normalize(id.Value)
	if err != nil {
		return models.FileID{}, err
	}
	if src == RootPath {
		return models.FileID{}, fmt.Errorf("%w: cannot move the application root", remote.ErrContainment)
	}
	parent, err := Normalize(newParent.Value)
	if err != nil {
		return models.FileID{}, err
	}
	if parent == src || strings.HasPrefix(parent+"/", src+"/") {
		return models.FileID{}, fmt.Errorf("%w: cannot move a folder into its own subtree", remote.ErrContainment)
	}

	target := Join(parent, Base(src))
	if err := s.moveResource(ctx, src, target); err != nil {
		return models.FileID{}, err
	}
	return models.YandexPath(target), nil
}

// Copy duplicates a resource under a new parent folder. Not part of the
// uniform storage contract; kept for the legacy copy-then-delete rename path
// and exposed for callers that want an explicit copy.
func (s *Service) Copy(ctx context.Context, id models.FileID, newParent models.FileID) (models.FileID, error) {
	src, err := Normalize(id.Value)
	if err != nil {
		return models.FileID{}, err
	}
	parent, err := Normalize(newParent.Value)
	if err != nil {
		return models.FileID{}, err
	}
	target := Join(parent, Base(src))

	params := url.Values{}
	params.Set("from", src)
	params.Set("path", target)
	params.Set("overwrite", "false")

	var op link
	status, err := s.doJSON(ctx, http.MethodPost, s.baseURL+"/resources/copy?"+params.Encode(), nil, &op)
	if err != nil {
		return models.FileID{}, err
	}
	if status == http.StatusAccepted {
		if err := s.waitForOperation(ctx, op.Href); err != nil {
			return models.FileID{}, err
		}
	}
	return models.YandexPath(target), nil
}

// moveResource issues the native move call and polls the returned operation
// when the provider answers 202.
func (s *Service) moveResource(ctx context.Context, from, to string) error {
	params := url.Values{}
	params.Set("from", from)
	params.Set("path", to)
	params.Set("overwrite", "false")

	var op link
	status, err := s.doJSON(ctx, http.MethodPost, s.baseURL+"/resources/move?"+params.Encode(), nil, &op)
	if err != nil {
		return err
	}
	if status == http.StatusAccepted {
		return s.waitForOperation(ctx, op.Href)
	}
	return nil
}

// upload performs the two-step upload: request a signed URL, then PUT the
// content against it. A non-success first step or a missing href aborts
// before any content is sent.
func (s *Service) upload(ctx context.Context, p, content string, overwrite bool) error {
	params := url.Values{}
	params.Set("path", p)
	params.Set("overwrite", fmt.Sprintf("%t", overwrite))

	var ul link
	if _, err := s.doJSON(ctx, http.MethodGet, s.baseURL+"/resources/upload?"+params.Encode(), nil, &ul); err != nil {
		return err
	}
	if ul.Href == "" {
		return fmt.Errorf("upload link missing for %s", p)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ul.Href, strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", remote.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return remote.StatusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// waitForOperation polls an asynchronous operation until it reports success
// or failure, giving up with ErrTimeout once the attempt ceiling is reached.
func (s *Service) waitForOperation(ctx context.Context, href string) error {
	if href == "" {
		return fmt.Errorf("operation accepted but no status href returned")
	}

	for attempt := 1; attempt <= s.poll.MaxAttempts; attempt++ {
		var op operationStatus
		if _, err := s.doJSON(ctx, http.MethodGet, href, nil, &op); err != nil {
			return err
		}

		switch op.Status {
		case "success":
			return nil
		case "failed":
			return fmt.Errorf("disk operation failed")
		}

		s.logger.Debug().Int("attempt", attempt).Str("status", op.Status).Msg("operation still in progress")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.poll.Interval):
		}
	}
	return fmt.Errorf("%w after %d attempts", remote.ErrTimeout, s.poll.MaxAttempts)
}

// doJSON executes an authorized API request and decodes the JSON response
// into out when provided. Error statuses are mapped onto the shared taxonomy.
func (s *Service) doJSON(ctx context.Context, method, apiURL string, body io.Reader, out any) (int, error) {
	if !s.token.Valid() {
		return 0, fmt.Errorf("%w: no yandex token registered", remote.ErrAuth)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+s.token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", remote.ErrTransient, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, s.handleAPIError(resp.StatusCode, payload)
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// handleAPIError maps a Disk API error payload onto the taxonomy
func (s *Service) handleAPIError(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		detail = e.Message
	}
	s.logger.Debug().Int("status", status).Str("detail", detail).Msg("disk API error")
	return remote.StatusError(status, detail)
}

// nodeFromResource converts a Disk resource into the shared node model.
// Paths in listings are normalized so identifiers are canonical everywhere.
func (s *Service) nodeFromResource(res resource) (models.FileNode, error) {
	p, err := Normalize(res.Path)
	if err != nil {
		return models.FileNode{}, err
	}

	kind := models.KindFile
	if res.Type == "dir" {
		kind = models.KindDir
	}
	node := models.FileNode{
		Name:     res.Name,
		ID:       models.YandexPath(p),
		Kind:     kind,
		MimeType: res.MimeType,
		Size:     res.Size,
	}
	if t, err := time.Parse(time.RFC3339, res.Created); err == nil {
		node.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, res.Modified); err == nil {
		node.ModifiedAt = t
	}
	return node, nil
}

// validateName rejects names that would change the target's location
func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: invalid entry name %q", remote.ErrContainment, name)
	}
	return nil
}
