package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloudpad/internal/document"
	"cloudpad/internal/remote"

	"github.com/stretchr/testify/assert"
)

func TestGetErrorResponse(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"auth", remote.ErrAuth, http.StatusUnauthorized},
		{"not found", fmt.Errorf("%w: app:/missing.txt", remote.ErrNotFound), http.StatusNotFound},
		{"conflict", remote.ErrConflict, http.StatusConflict},
		{"containment", remote.ErrContainment, http.StatusForbidden},
		{"quota", remote.ErrQuota, http.StatusInsufficientStorage},
		{"unsupported", remote.ErrUnsupportedFormat, http.StatusUnprocessableEntity},
		{"timeout", remote.ErrTimeout, http.StatusGatewayTimeout},
		{"transient", remote.ErrTransient, http.StatusBadGateway},
		{"deleted document", document.ErrDeleted, http.StatusGone},
		{"no document", document.ErrNoDocument, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := GetErrorResponse(tc.err)
			assert.Equal(t, tc.want, resp.StatusCode)
			assert.NotEmpty(t, resp.Message)
		})
	}
}
