package yandexdisk

import (
	"fmt"
	"path"
	"strings"

	"cloudpad/internal/remote"
)

// RootPath is the application-scoped namespace root on Yandex Disk. The app
// only ever sees its own sandbox folder; full-disk paths are rejected.
const RootPath = "app:/"

// displayRootNames are the localized names of the applications folder that
// Disk occasionally returns in resource paths instead of the app:/ namespace
// (for example "disk:/Приложения/<app name>/notes.txt"). Such paths are
// stripped back to the canonical form before any request.
var displayRootNames = []string{
	"Приложения",
	"Applications",
}

// Normalize returns the canonical app:/ form of p. It is idempotent:
// normalizing an already canonical path is a no-op. Paths that resolve
// outside the application namespace (foreign disk:/ locations, trash,
// ".." escapes) fail with remote.ErrContainment before any network call.
func Normalize(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" || p == RootPath || p == "app:" {
		return RootPath, nil
	}

	var rel string
	switch {
	case strings.HasPrefix(p, "app:/"):
		rel = strings.TrimPrefix(p, "app:/")
	case strings.HasPrefix(p, "disk:/"):
		stripped, ok := stripDisplayRoot(strings.TrimPrefix(p, "disk:/"))
		if !ok {
			return "", fmt.Errorf("%w: %q", remote.ErrContainment, p)
		}
		rel = stripped
	case strings.Contains(p, ":/"):
		// trash:/ and any other foreign scheme
		return "", fmt.Errorf("%w: %q", remote.ErrContainment, p)
	default:
		rel = strings.TrimPrefix(p, "/")
	}

	if escapes(rel) {
		return "", fmt.Errorf("%w: %q", remote.ErrContainment, p)
	}

	cleaned := path.Clean("/" + rel)
	if cleaned == "/" {
		return RootPath, nil
	}
	return "app:" + cleaned, nil
}

// stripDisplayRoot removes the localized applications folder and the app's
// own folder name from the front of a disk:/-relative path. A disk path that
// does not start inside the applications folder is foreign.
func stripDisplayRoot(rest string) (string, bool) {
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 {
		return "", false
	}
	for _, name := range displayRootNames {
		if segments[0] == name {
			// Drop the localized root and the app folder segment after it.
			if len(segments) <= 2 {
				return "", true
			}
			return strings.Join(segments[2:], "/"), true
		}
	}
	return "", false
}

// escapes reports whether a relative path climbs above its starting point
// through ".." segments. path.Clean alone would silently collapse the climb
// back under the root, hiding the violation.
func escapes(rel string) bool {
	depth := 0
	for _, seg := range strings.Split(rel, "/") {
		switch seg {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		default:
			depth++
		}
	}
	return false
}

// Join appends a name under a normalized parent path.
func Join(parent, name string) string {
	if parent == RootPath {
		return RootPath + name
	}
	return parent + "/" + name
}

// Parent returns the normalized parent path of a normalized path. The parent
// of the root is the root itself.
func Parent(p string) string {
	if p == RootPath {
		return RootPath
	}
	idx := strings.LastIndex(p, "/")
	if idx <= len("app:") {
		return RootPath
	}
	return p[:idx]
}

// Base returns the final segment of a normalized path.
func Base(p string) string {
	if p == RootPath {
		return ""
	}
	idx := strings.LastIndex(p, "/")
	return p[idx+1:]
}

// DisplayPath renders a normalized path for the UI ("app:/a/b" becomes "/a/b").
func DisplayPath(p string) string {
	if p == RootPath {
		return "/"
	}
	return strings.TrimPrefix(p, "app:")
}
