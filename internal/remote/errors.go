package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by both provider adapters. Adapters classify provider
// responses into these sentinels so callers can react with errors.Is instead
// of parsing provider-specific payloads.
var (
	ErrAuth              = errors.New("missing, invalid or expired token")
	ErrNotFound          = errors.New("entry not found")
	ErrConflict          = errors.New("an entry with that name already exists")
	ErrContainment       = errors.New("target is outside the application folder")
	ErrQuota             = errors.New("storage quota exceeded")
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrTransient         = errors.New("temporary provider failure")
	ErrTimeout           = errors.New("pending operation did not complete in time")
)

// StatusError maps an HTTP status from a provider API to the taxonomy.
// The detail string is carried in the wrapped message for diagnostics.
func StatusError(status int, detail string) error {
	var base error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		base = ErrAuth
	case status == http.StatusNotFound:
		base = ErrNotFound
	case status == http.StatusConflict:
		base = ErrConflict
	case status == http.StatusInsufficientStorage || status == http.StatusRequestEntityTooLarge:
		base = ErrQuota
	case status == http.StatusTooManyRequests || status >= 500:
		base = ErrTransient
	default:
		return fmt.Errorf("provider API error (status %d): %s", status, detail)
	}
	if detail == "" {
		return fmt.Errorf("%w (status %d)", base, status)
	}
	return fmt.Errorf("%w (status %d): %s", base, status, detail)
}
