package yandexdisk

// resource is a single entry in the Disk resource API
type resource struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Type     string        `json:"type"` // "file" or "dir"
	MimeType string        `json:"mime_type"`
	Size     int64         `json:"size"`
	Created  string        `json:"created"`
	Modified string        `json:"modified"`
	Embedded *resourceList `json:"_embedded,omitempty"`
}

// resourceList is the paginated _embedded listing of a directory resource
type resourceList struct {
	Items  []resource `json:"items"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
	Total  int        `json:"total"`
}

// link is the Disk API's generic href response, returned both for the
// two-step upload/download indirection and for asynchronous operations
type link struct {
	Href      string `json:"href"`
	Method    string `json:"method"`
	Templated bool   `json:"templated"`
}

// operationStatus is the polling response for an asynchronous operation
type operationStatus struct {
	Status string `json:"status"` // "in-progress", "success" or "failed"
}

// apiError is the Disk API error payload
type apiError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
	ErrorID     string `json:"error"`
}
