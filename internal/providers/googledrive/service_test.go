package googledrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"cloudpad/internal/remote"
	"cloudpad/pkg/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const testAppFolder = "Text Editor Files"

type fakeFile struct {
	id      string
	name    string
	mime    string
	parents []string
	content string
}

// fakeDrive is a minimal in-memory Drive v3 backend. It understands exactly
// the query shapes the adapter issues and counts the calls the tests care
// about.
type fakeDrive struct {
	mu    sync.Mutex
	files map[string]*fakeFile
	order []string

	pageSize int // children per list page; 0 means everything at once

	folderLookups int
	parentGets    int
	updateCalls   int
	createCalls   int

	quotaExhausted bool
}

func newFakeDrive(files ...*fakeFile) *fakeDrive {
	d := &fakeDrive{files: make(map[string]*fakeFile)}
	for _, f := range files {
		d.files[f.id] = f
		d.order = append(d.order, f.id)
	}
	return d
}

func (d *fakeDrive) add(f *fakeFile) {
	d.files[f.id] = f
	d.order = append(d.order, f.id)
}

func fileJSON(f *fakeFile) map[string]any {
	return map[string]any{
		"id":       f.id,
		"name":     f.name,
		"mimeType": f.mime,
		"parents":  f.parents,
	}
}

func (d *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/upload/"):
		d.handleUpload(w, r)
	case path == "/files" && r.Method == http.MethodGet:
		d.handleList(w, r)
	case path == "/files" && r.Method == http.MethodPost:
		d.handleCreate(w, r)
	case strings.HasPrefix(path, "/files/"):
		d.handleFile(w, r, strings.TrimPrefix(path, "/files/"))
	default:
		http.NotFound(w, r)
	}
}

func (d *fakeDrive) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	var nameFilter, parentFilter string
	if idx := strings.Index(q, "name = '"); idx >= 0 {
		rest := q[idx+len("name = '"):]
		nameFilter = rest[:strings.Index(rest, "'")]
	}
	if idx := strings.Index(q, "' in parents"); idx >= 0 {
		start := strings.LastIndex(q[:idx], "'") + 1
		parentFilter = q[start:idx]
	}
	folderOnly := strings.Contains(q, "mimeType = '"+folderMimeType+"'")
	if folderOnly && nameFilter != "" && parentFilter == "" {
		d.folderLookups++
	}

	var matched []*fakeFile
	for _, id := range d.order {
		f := d.files[id]
		if nameFilter != "" && f.name != nameFilter {
			continue
		}
		if folderOnly && f.mime != folderMimeType {
			continue
		}
		if parentFilter != "" {
			inParent := false
			for _, p := range f.parents {
				if p == parentFilter {
					inParent = true
				}
			}
			if !inParent {
				continue
			}
		}
		if nameFilter == "" && parentFilter == "" {
			continue
		}
		matched = append(matched, f)
	}

	start := 0
	if tok := r.URL.Query().Get("pageToken"); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := len(matched)
	next := ""
	if d.pageSize > 0 && start+d.pageSize < len(matched) {
		end = start + d.pageSize
		next = strconv.Itoa(end)
	}

	items := make([]map[string]any, 0, end-start)
	for _, f := range matched[start:end] {
		items = append(items, fileJSON(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": items, "nextPageToken": next})
}

func (d *fakeDrive) handleCreate(w http.ResponseWriter, r *http.Request) {
	d.createCalls++
	var body struct {
		Name     string   `json:"name"`
		MimeType string   `json:"mimeType"`
		Parents  []string `json:"parents"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f := &fakeFile{
		id:      fmt.Sprintf("gen-%d", len(d.files)+1),
		name:    body.Name,
		mime:    body.MimeType,
		parents: body.Parents,
	}
	d.add(f)
	writeJSON(w, http.StatusOK, fileJSON(f))
}

func (d *fakeDrive) handleFile(w http.ResponseWriter, r *http.Request, id string) {
	f, ok := d.files[id]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound", "file not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("alt") == "media" {
			fmt.Fprint(w, f.content)
			return
		}
		if strings.Contains(r.URL.Query().Get("fields"), "parents") {
			d.parentGets++
		}
		writeJSON(w, http.StatusOK, fileJSON(f))
	case http.MethodPatch:
		d.updateCalls++
		var body struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Name != "" {
			f.name = body.Name
		}
		if add := r.URL.Query().Get("addParents"); add != "" {
			remove := strings.Split(r.URL.Query().Get("removeParents"), ",")
			var kept []string
			for _, p := range f.parents {
				removed := false
				for _, rm := range remove {
					if p == rm {
						removed = true
					}
				}
				if !removed {
					kept = append(kept, p)
				}
			}
			f.parents = append(kept, add)
		}
		writeJSON(w, http.StatusOK, fileJSON(f))
	case http.MethodDelete:
		delete(d.files, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func (d *fakeDrive) handleUpload(w http.ResponseWriter, r *http.Request) {
	if d.quotaExhausted {
		writeAPIError(w, http.StatusForbidden, "storageQuotaExceeded", "quota exceeded")
		return
	}

	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	id := segments[len(segments)-1]
	f, ok := d.files[id]
	if !ok {
		writeAPIError(w, http.StatusNotFound, "notFound", "file not found")
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.content = string(body)
	writeJSON(w, http.StatusOK, fileJSON(f))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, reason, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"errors":  []map[string]any{{"reason": reason, "message": message}},
		},
	})
}

func newTestService(t *testing.T, fake *fakeDrive) *Service {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	token := &models.Token{AccessToken: "test-token", Provider: models.ProviderGoogle}
	svc, err := NewService(context.Background(), token, testAppFolder, zerolog.Nop(),
		option.WithEndpoint(srv.URL), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return svc
}

func appFolderFake() (*fakeDrive, *fakeFile) {
	root := &fakeFile{id: "af", name: testAppFolder, mime: folderMimeType}
	return newFakeDrive(root), root
}

func TestAppFolderLookupIsMemoized(t *testing.T) {
	fake, _ := appFolderFake()
	fake.add(&fakeFile{id: "f1", name: "a.txt", mime: "text/plain", parents: []string{"af"}})
	svc := newTestService(t, fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.ListChildren(ctx, svc.Root())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fake.folderLookups)
}

func TestAppFolderCreatedWhenAbsent(t *testing.T) {
	fake := newFakeDrive()
	svc := newTestService(t, fake)

	children, err := svc.ListChildren(context.Background(), svc.Root())
	require.NoError(t, err)
	assert.Empty(t, children)

	require.Equal(t, 1, fake.createCalls)
	created := fake.files["gen-1"]
	require.NotNil(t, created)
	assert.Equal(t, testAppFolder, created.name)
	assert.Equal(t, folderMimeType, created.mime)
}

func TestListChildrenDrainsPages(t *testing.T) {
	fake, _ := appFolderFake()
	for i := 0; i < 5; i++ {
		fake.add(&fakeFile{
			id:      fmt.Sprintf("f%d", i),
			name:    fmt.Sprintf("doc-%d.txt", i),
			mime:    "text/plain",
			parents: []string{"af"},
		})
	}
	fake.pageSize = 2
	svc := newTestService(t, fake)

	children, err := svc.ListChildren(context.Background(), svc.Root())
	require.NoError(t, err)
	require.Len(t, children, 5)
	assert.Equal(t, "doc-0.txt", children[0].Name)
	assert.Equal(t, models.ProviderGoogle, children[0].ID.Provider)
}

func TestListedChildrenSkipAncestryWalk(t *testing.T) {
	fake, _ := appFolderFake()
	fake.add(&fakeFile{id: "f1", name: "a.txt", mime: "text/plain", parents: []string{"af"}})
	svc := newTestService(t, fake)
	ctx := context.Background()

	_, err := svc.ListChildren(ctx, svc.Root())
	require.NoError(t, err)

	// f1 was proven contained by the listing; Metadata must not re-walk
	// its parent chain.
	_, err = svc.Metadata(ctx, models.GoogleID("f1"))
	require.NoError(t, err)
	assert.Equal(t, 0, fake.parentGets)
}

func TestMetadataRejectsForeignFile(t *testing.T) {
	fake, _ := appFolderFake()
	fake.add(&fakeFile{id: "stray", name: "outside.txt", mime: "text/plain"})
	svc := newTestService(t, fake)

	_, err := svc.Metadata(context.Background(), models.GoogleID("stray"))
	require.ErrorIs(t, err, remote.ErrContainment)
}

func TestCreateEntryRejectsDuplicateName(t *testing.T) {
	fake, _ := appFolderFake()
	fake.add(&fakeFile{id: "f1", name: "notes.txt", mime: "text/plain", parents: []string{"af"}})
	svc := newTestService(t, fake)

	_, err := svc.CreateEntry(context.Background(), svc.Root(), "notes.txt", models.KindFile)
	require.ErrorIs(t, err, remote.ErrConflict)
	assert.Equal(t, 0, fake.createCalls)
}

func TestCreateEntryFolder(t *testing.T) {
	fake, _ := appFolderFake()
	svc := newTestService(t, fake)

	node, err := svc.CreateEntry(context.Background(), svc.Root(), "drafts", models.KindDir)
	require.NoError(t, err)
	assert.Equal(t, models.KindDir, node.Kind)
	assert.Equal(t, "drafts", node.Name)

	created := fake.files[node.ID.Value]
	require.NotNil(t, created)
	assert.Equal(t, []string{"af"}, created.parents)
}

func TestRenameKeepsIdentity(t *testing.T) {
	fake, _ := appFolderFake()
	fake.add(&fakeFile{id: "f1", name: "old.txt", mime: "text/plain", parents: []string{"af"}})
	svc := newTestService(t, fake)

	newID, err := svc.Rename(context.Background(), models.GoogleID("f1"), "new.txt")
	require.NoError(t, err)
	assert.Equal(t, "f1", newID.Value)
	assert.Equal(t, "new.txt", fake.files["f1"].name)
}

func TestMoveReparents(t *testing.T) {
	fake, _ := appFolderFake()
	fake.add(&fakeFile{id: "src", name: "src", mime: folderMimeType, parents: []string{"af"}})
	fake.add(&fakeFile{id: "dst", name: "dst", mime: folderMimeType, parents: []string{"af"}})
	fake.add(&fakeFile{id: "f1", name: "a.txt", mime: "text/plain", parents: []string{"src"}})
	svc := newTestService(t, fake)

	newID, err := svc.Move(context.Background(), models.GoogleID("f1"), models.GoogleID("dst"))
	require.NoError(t, err)
	assert.Equal(t, "f1", newID.Value)
	assert.Equal(t, []string{"dst"}, fake.files["f1"].parents)
}

func TestMoveIsNoOpWhenAlreadyInPlace(t *testing.T) {
	fake, _ := appFolderFake()
	fake.add(&fakeFile{id: "dst", name: "dst", mime: folderMimeType, parents: []string{"af"}})
	fake.add(&fakeFile{id: "f1", name: "a.txt", mime: "text/plain", parents: []string{"dst"}})
	svc := newTestService(t, fake)

	newID, err := svc.Move(context.Background(), models.GoogleID("f1"), models.GoogleID("dst"))
	require.NoError(t, err)
	assert.Equal(t, "f1", newID.Value)
	assert.Equal(t, 0, fake.updateCalls)
}

func TestMoveIntoOwnSubtreeRejected(t *testing.T) {
	fake, _ := appFolderFake()
	fake.add(&fakeFile{id: "a", name: "a", mime: folderMimeType, parents: []string{"af"}})
	fake.add(&fakeFile{id: "b", name: "b", mime: folderMimeType, parents: []string{"a"}})
	svc := newTestService(t, fake)

	_, err := svc.Move(context.Background(), models.GoogleID("a"), models.GoogleID("b"))
	require.ErrorIs(t, err, remote.ErrContainment)
	assert.Equal(t, 0, fake.updateCalls)
}

func TestAppFolderOperationsRejected(t *testing.T) {
	fake, _ := appFolderFake()
	svc := newTestService(t, fake)
	ctx := context.Background()

	// Resolve the alias once so the adapter knows the app folder's real ID.
	_, err := svc.ListChildren(ctx, svc.Root())
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteEntry(ctx, models.GoogleID("af")), remote.ErrContainment)
	_, err = svc.Rename(ctx, models.GoogleID("af"), "renamed")
	require.ErrorIs(t, err, remote.ErrContainment)
}

func TestReadAndWriteContent(t *testing.T) {
	fake, _ := appFolderFake()
	fake.add(&fakeFile{id: "f1", name: "a.txt", mime: "text/plain", parents: []string{"af"}, content: "first draft"})
	svc := newTestService(t, fake)
	ctx := context.Background()

	content, err := svc.ReadContent(ctx, models.GoogleID("f1"))
	require.NoError(t, err)
	assert.Equal(t, "first draft", content)

	require.NoError(t, svc.WriteContent(ctx, models.GoogleID("f1"), "second draft"))
	assert.Contains(t, fake.files["f1"].content, "second draft")
}

func TestQuotaErrorsClassified(t *testing.T) {
	fake, _ := appFolderFake()
	fake.add(&fakeFile{id: "f1", name: "a.txt", mime: "text/plain", parents: []string{"af"}})
	fake.quotaExhausted = true
	svc := newTestService(t, fake)

	err := svc.WriteContent(context.Background(), models.GoogleID("f1"), "too big")
	require.ErrorIs(t, err, remote.ErrQuota)
}

func TestDeleteEntry(t *testing.T) {
	fake, _ := appFolderFake()
	fake.add(&fakeFile{id: "f1", name: "a.txt", mime: "text/plain", parents: []string{"af"}})
	svc := newTestService(t, fake)

	require.NoError(t, svc.DeleteEntry(context.Background(), models.GoogleID("f1")))
	_, ok := fake.files["f1"]
	assert.False(t, ok)
}
