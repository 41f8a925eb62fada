// Package httpapi exposes the core to the browser UI over a local JSON API.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"cloudpad/internal/auth"
	"cloudpad/internal/config"
	"cloudpad/internal/document"
	"cloudpad/internal/providers"
	"cloudpad/internal/remote"
	"cloudpad/internal/tree"
	"cloudpad/pkg/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// storageFactory builds a storage adapter for a token; injectable for tests
type storageFactory func(ctx context.Context, token *models.Token) (remote.Storage, error)

// workspace bundles the per-(session, provider) state: one adapter, one
// tree cache, one document session, wired so tree removals flag the
// open document.
type workspace struct {
	storage remote.Storage
	tree    *tree.Cache
	doc     *document.Session
}

// Handler handles HTTP requests for the file manager and editor
type Handler struct {
	cfg        config.Config
	tokens     *auth.Store
	logger     zerolog.Logger
	newStorage storageFactory

	mu         sync.Mutex
	workspaces map[string]*workspace
}

// NewHandler creates the API handler
func NewHandler(cfg config.Config, tokens *auth.Store, logger zerolog.Logger) *Handler {
	h := &Handler{
		cfg:        cfg,
		tokens:     tokens,
		logger:     logger.With().Str("component", "httpapi").Logger(),
		workspaces: make(map[string]*workspace),
	}
	h.newStorage = func(ctx context.Context, token *models.Token) (remote.Storage, error) {
		return providers.New(ctx, token, cfg, logger)
	}
	return h
}

// RegisterRoutes registers all routes with the Echo router
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/auth/token", h.RegisterToken)
	e.DELETE("/auth/token", h.RemoveToken)

	e.GET("/tree", h.GetTree)
	e.POST("/tree/expand", h.ExpandFolder)

	e.POST("/entries", h.CreateEntry)
	e.POST("/entries/delete", h.DeleteEntry)
	e.POST("/entries/rename", h.RenameEntry)
	e.POST("/entries/move", h.MoveEntry)
	e.GET("/entries/info", h.GetEntryInfo)

	e.POST("/documents/open", h.OpenDocument)
	e.POST("/documents/edit", h.EditDocument)
	e.POST("/documents/save", h.SaveDocument)
	e.POST("/documents/close", h.CloseDocument)
}

// RegisterToken handles POST /auth/token. The browser calls it after the
// implicit-flow redirect with the token it captured from the URL fragment.
func (h *Handler) RegisterToken(c echo.Context) error {
	var req registerTokenRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Provider != models.ProviderYandex && req.Provider != models.ProviderGoogle {
		return badRequest(c, fmt.Sprintf("unsupported provider: %s", req.Provider))
	}

	token := &models.Token{AccessToken: req.AccessToken, Provider: req.Provider}
	if err := h.tokens.SetToken(req.SessionID, token); err != nil {
		return respondError(c, err)
	}

	// A new token invalidates any workspace built on the old one.
	h.dropWorkspace(req.SessionID, req.Provider)

	return c.NoContent(http.StatusNoContent)
}

// RemoveToken handles DELETE /auth/token (logout)
func (h *Handler) RemoveToken(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	provider := models.Provider(c.QueryParam("provider"))
	if sessionID == "" || provider == "" {
		return badRequest(c, "session_id and provider query parameters are required")
	}
	h.tokens.DeleteToken(sessionID, provider)
	h.dropWorkspace(sessionID, provider)
	return c.NoContent(http.StatusNoContent)
}

// GetTree handles GET /tree. It returns the cached hierarchy filtered by the
// optional search query and supported-only toggle, expanding the root on
// first access.
func (h *Handler) GetTree(c echo.Context) error {
	ws, err := h.workspace(c.Request().Context(), c.QueryParam("session_id"), models.Provider(c.QueryParam("provider")))
	if err != nil {
		return respondError(c, err)
	}

	if _, err := ws.tree.Expand(c.Request().Context(), ws.tree.Root()); err != nil {
		return respondError(c, err)
	}

	supportedOnly := c.QueryParam("supported_only") == "true"
	root := ws.tree.Filtered(c.QueryParam("query"), supportedOnly)
	return c.JSON(http.StatusOK, treeResponse{Root: root, Expanded: ws.tree.ExpandedIDs()})
}

// ExpandFolder handles POST /tree/expand
func (h *Handler) ExpandFolder(c echo.Context) error {
	var req expandRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ws, err := h.workspace(c.Request().Context(), req.SessionID, req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	children, err := ws.tree.Expand(c.Request().Context(), h.fileID(ws, req.Provider, req.ID))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, childrenResponse{Children: children})
}

// CreateEntry handles POST /entries
func (h *Handler) CreateEntry(c echo.Context) error {
	var req createEntryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}
	if req.Kind != models.KindFile && req.Kind != models.KindDir {
		return badRequest(c, "kind must be \"file\" or \"dir\"")
	}
	ws, err := h.workspace(c.Request().Context(), req.SessionID, req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	node, err := ws.tree.Create(c.Request().Context(), h.fileID(ws, req.Provider, req.ParentID), req.Name, req.Kind)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, entryResponse{Entry: node})
}

// DeleteEntry handles POST /entries/delete. Confirmation is the UI's job;
// the core deletes what it is told to, recursively for directories.
func (h *Handler) DeleteEntry(c echo.Context) error {
	var req deleteEntryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ws, err := h.workspace(c.Request().Context(), req.SessionID, req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	if err := ws.tree.Delete(c.Request().Context(), h.fileID(ws, req.Provider, req.ID)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RenameEntry handles POST /entries/rename
func (h *Handler) RenameEntry(c echo.Context) error {
	var req renameEntryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.NewName == "" {
		return badRequest(c, "new_name is required")
	}
	ws, err := h.workspace(c.Request().Context(), req.SessionID, req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	newID, err := ws.tree.Rename(c.Request().Context(), h.fileID(ws, req.Provider, req.ID), req.NewName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, idResponse{ID: newID})
}

// MoveEntry handles POST /entries/move
func (h *Handler) MoveEntry(c echo.Context) error {
	var req moveEntryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ws, err := h.workspace(c.Request().Context(), req.SessionID, req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	newID, err := ws.tree.Move(c.Request().Context(),
		h.fileID(ws, req.Provider, req.ID),
		h.fileID(ws, req.Provider, req.NewParentID))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, idResponse{ID: newID})
}

// GetEntryInfo handles GET /entries/info (the file info panel)
func (h *Handler) GetEntryInfo(c echo.Context) error {
	ws, err := h.workspace(c.Request().Context(), c.QueryParam("session_id"), models.Provider(c.QueryParam("provider")))
	if err != nil {
		return respondError(c, err)
	}

	node, err := ws.storage.Metadata(c.Request().Context(), h.fileID(ws, models.Provider(c.QueryParam("provider")), c.QueryParam("id")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, entryResponse{Entry: node})
}

// OpenDocument handles POST /documents/open
func (h *Handler) OpenDocument(c echo.Context) error {
	var req openDocumentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ws, err := h.workspace(c.Request().Context(), req.SessionID, req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	content, err := ws.doc.Open(c.Request().Context(), h.fileID(ws, req.Provider, req.ID))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.documentResponse(ws, content))
}

// EditDocument handles POST /documents/edit. Edits land in the buffer and
// arm the debounced autosave.
func (h *Handler) EditDocument(c echo.Context) error {
	var req editDocumentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ws, err := h.workspace(c.Request().Context(), req.SessionID, req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	if err := ws.doc.Edit(req.Text); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.documentResponse(ws, req.Text))
}

// SaveDocument handles POST /documents/save (explicit save)
func (h *Handler) SaveDocument(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ws, err := h.workspace(c.Request().Context(), req.SessionID, req.Provider)
	if err != nil {
		return respondError(c, err)
	}

	if err := ws.doc.Save(c.Request().Context()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.documentResponse(ws, ws.doc.Buffer()))
}

// CloseDocument handles POST /documents/close
func (h *Handler) CloseDocument(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ws, err := h.workspace(c.Request().Context(), req.SessionID, req.Provider)
	if err != nil {
		return respondError(c, err)
	}
	ws.doc.Close()
	return c.NoContent(http.StatusNoContent)
}

// workspace returns (building lazily) the per-session, per-provider state
func (h *Handler) workspace(ctx context.Context, sessionID string, provider models.Provider) (*workspace, error) {
	if sessionID == "" || provider == "" {
		return nil, fmt.Errorf("%w: session_id and provider are required", remote.ErrAuth)
	}

	key := sessionID + "|" + string(provider)
	h.mu.Lock()
	if ws, ok := h.workspaces[key]; ok {
		h.mu.Unlock()
		return ws, nil
	}
	h.mu.Unlock()

	token, err := h.tokens.Token(sessionID, provider)
	if err != nil {
		return nil, err
	}
	storage, err := h.newStorage(ctx, token)
	if err != nil {
		return nil, err
	}

	cache := tree.NewCache(storage, h.logger)
	doc := document.NewSession(storage, h.cfg.AutosaveDelay, h.logger)
	cache.SetRemovedHandler(doc.MarkDeleted)

	ws := &workspace{storage: storage, tree: cache, doc: doc}
	h.mu.Lock()
	h.workspaces[key] = ws
	h.mu.Unlock()
	return ws, nil
}

func (h *Handler) dropWorkspace(sessionID string, provider models.Provider) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.workspaces, sessionID+"|"+string(provider))
}

// fileID builds a provider-scoped identifier; an empty value addresses the
// sandbox root.
func (h *Handler) fileID(ws *workspace, provider models.Provider, value string) models.FileID {
	if value == "" {
		return ws.storage.Root()
	}
	return models.FileID{Provider: provider, Value: value}
}

func (h *Handler) documentResponse(ws *workspace, content string) documentResponse {
	return documentResponse{
		Node:    ws.doc.Node(),
		Content: content,
		State:   ws.doc.State().String(),
		Dirty:   ws.doc.Dirty(),
		Deleted: ws.doc.Deleted(),
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func respondError(c echo.Context, err error) error {
	resp := GetErrorResponse(err)
	return c.JSON(resp.StatusCode, map[string]string{"error": resp.Message})
}
