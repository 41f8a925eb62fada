package httpapi

import "cloudpad/pkg/models"

// sessionRequest is the common envelope for workspace-scoped requests
type sessionRequest struct {
	SessionID string          `json:"session_id"`
	Provider  models.Provider `json:"provider"`
}

type registerTokenRequest struct {
	sessionRequest
	AccessToken string `json:"access_token"`
}

type expandRequest struct {
	sessionRequest
	ID string `json:"id"`
}

type createEntryRequest struct {
	sessionRequest
	ParentID string      `json:"parent_id"`
	Name     string      `json:"name"`
	Kind     models.Kind `json:"kind"`
}

type deleteEntryRequest struct {
	sessionRequest
	ID string `json:"id"`
}

type renameEntryRequest struct {
	sessionRequest
	ID      string `json:"id"`
	NewName string `json:"new_name"`
}

type moveEntryRequest struct {
	sessionRequest
	ID          string `json:"id"`
	NewParentID string `json:"new_parent_id"`
}

type openDocumentRequest struct {
	sessionRequest
	ID string `json:"id"`
}

type editDocumentRequest struct {
	sessionRequest
	Text string `json:"text"`
}

type treeResponse struct {
	Root     models.FileNode `json:"root"`
	Expanded []models.FileID `json:"expanded"`
}

type childrenResponse struct {
	Children []models.FileNode `json:"children"`
}

type entryResponse struct {
	Entry models.FileNode `json:"entry"`
}

type idResponse struct {
	ID models.FileID `json:"id"`
}

type documentResponse struct {
	Node    models.FileNode `json:"node"`
	Content string          `json:"content"`
	State   string          `json:"state"`
	Dirty   bool            `json:"dirty"`
	Deleted bool            `json:"deleted"`
}
