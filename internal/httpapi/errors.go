package httpapi

import (
	"errors"
	"net/http"

	"cloudpad/internal/document"
	"cloudpad/internal/remote"
)

// ErrorResponse is the HTTP rendition of a core error
type ErrorResponse struct {
	StatusCode int
	Message    string
}

// GetErrorResponse maps the core error taxonomy onto HTTP statuses
func GetErrorResponse(err error) ErrorResponse {
	switch {
	case errors.Is(err, remote.ErrAuth):
		return ErrorResponse{http.StatusUnauthorized, "Authentication required. Please sign in to the provider again."}
	case errors.Is(err, remote.ErrNotFound):
		return ErrorResponse{http.StatusNotFound, err.Error()}
	case errors.Is(err, remote.ErrConflict):
		return ErrorResponse{http.StatusConflict, err.Error()}
	case errors.Is(err, remote.ErrContainment):
		return ErrorResponse{http.StatusForbidden, err.Error()}
	case errors.Is(err, remote.ErrQuota):
		return ErrorResponse{http.StatusInsufficientStorage, "Storage quota exceeded."}
	case errors.Is(err, remote.ErrUnsupportedFormat):
		return ErrorResponse{http.StatusUnprocessableEntity, "This file cannot be opened in the editor."}
	case errors.Is(err, remote.ErrTimeout):
		return ErrorResponse{http.StatusGatewayTimeout, "The operation did not complete in time. Please refresh and try again."}
	case errors.Is(err, remote.ErrTransient):
		return ErrorResponse{http.StatusBadGateway, "The provider is temporarily unavailable. Please try again."}
	case errors.Is(err, document.ErrDeleted):
		return ErrorResponse{http.StatusGone, "The file was deleted while it was open. Saving is disabled."}
	case errors.Is(err, document.ErrNoDocument):
		return ErrorResponse{http.StatusBadRequest, err.Error()}
	default:
		return ErrorResponse{http.StatusInternalServerError, "An unexpected error occurred. Please try again."}
	}
}
