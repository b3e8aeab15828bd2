// Package urlnorm rewrites request paths delivered by a serverless host's
// path-rewriting proxy back into the gateway's canonical path space.
//
// Serverless hosts mount the gateway under a fixed segment (for example /api),
// so /api/v1/status arrives for what the router knows as /v1/status.
package urlnorm

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultMountPrefix is the segment serverless hosts prepend to every path.
const DefaultMountPrefix = "/api"

// Normalize strips prefix from the path part of pathAndQuery, leaving the query
// string untouched.
//
//	/api          -> /
//	/api/?a=1     -> /?a=1
//	/api/v1/x?a=1 -> /v1/x?a=1
//	/apiary       -> /apiary (sibling route, unchanged)
//
// Inputs that do not match, including empty and malformed strings, are returned
// unchanged. An empty prefix disables normalization.
func Normalize(prefix, pathAndQuery string) string {
	prefix = CleanPrefix(prefix)
	if prefix == "" {
		return pathAndQuery
	}

	path, query, hasQuery := strings.Cut(pathAndQuery, "?")

	var rewritten string
	switch {
	case path == prefix || path == prefix+"/":
		rewritten = "/"
	case strings.HasPrefix(path, prefix+"/"):
		rewritten = path[len(prefix):]
	default:
		return pathAndQuery
	}

	if hasQuery {
		return rewritten + "?" + query
	}
	return rewritten
}

// CleanPrefix returns prefix with a leading slash and no trailing slashes.
// A prefix that reduces to "/" or "" yields "".
func CleanPrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

// Middleware rewrites the request URL with Normalize before the next handler
// sees it. Requests that do not carry the prefix pass through untouched.
func Middleware(prefix string) func(http.Handler) http.Handler {
	prefix = CleanPrefix(prefix)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if prefix == "" {
				next.ServeHTTP(w, r)
				return
			}

			original := r.URL.RequestURI()
			normalized := Normalize(prefix, original)
			if normalized == original {
				next.ServeHTTP(w, r)
				return
			}

			u, err := url.ParseRequestURI(normalized)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			r2 := r.Clone(r.Context())
			r2.URL.Path = u.Path
			r2.URL.RawPath = u.RawPath
			r2.URL.RawQuery = u.RawQuery
			r2.RequestURI = normalized

			next.ServeHTTP(w, r2)
		})
	}
}
