// Package reqctx derives the (subject, object, action, environment) tuple
// that the policy enforcer evaluates. Extraction is a pure function of the
// inbound request; the tuple is never persisted.
package reqctx

import (
	"net/http"
	"strings"
)

const (
	// SubjectAnonymous is the sentinel subject for unauthenticated requests.
	SubjectAnonymous = "anonymous"

	// ObjectRoot is the object for paths with no meaningful segment.
	ObjectRoot = "root"

	// ActionUnknown is the sentinel action when the method is absent.
	ActionUnknown = "unknown"
)

// Context is the attribute tuple evaluated by the policy enforcer.
type Context struct {
	Subject     string
	Object      string
	Action      string
	Environment string
}

// FromRequest extracts a Context from an HTTP request. subject is the
// authenticated identity, or empty for anonymous requests; environment is
// the deployment environment label.
func FromRequest(r *http.Request, subject, environment string) Context {
	return Extract(r.Method, r.URL.Path, subject, environment)
}

// Extract builds a Context from raw method and path values.
func Extract(method, path, subject, environment string) Context {
	if subject == "" {
		subject = SubjectAnonymous
	}
	return Context{
		Subject:     subject,
		Object:      ObjectFromPath(path),
		Action:      ActionFromMethod(method),
		Environment: environment,
	}
}

// ObjectFromPath returns the first meaningful path segment: query parameters
// are stripped, the empty leading segment is dropped, and a recognized API
// version segment is transparent (the next segment is taken instead).
func ObjectFromPath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == "" || isVersionSegment(segment) {
			continue
		}
		return segment
	}
	return ObjectRoot
}

// ActionFromMethod maps an HTTP method to a policy verb. Unrecognized
// methods map to their lower-cased name.
func ActionFromMethod(method string) string {
	switch method {
	case http.MethodGet:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	case "":
		return ActionUnknown
	default:
		return strings.ToLower(method)
	}
}

// isVersionSegment reports whether segment is an API version token such as
// "v1" or "v12".
func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for _, r := range segment[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
