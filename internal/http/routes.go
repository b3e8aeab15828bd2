package http

// RouteKind classifies a registered route.
type RouteKind string

const (
	RouteKindVersioned RouteKind = "versioned"
	RouteKindLegacy    RouteKind = "legacy"
	RouteKindInfra     RouteKind = "infra"
)

// Route describes one entry of the route table.
type Route struct {
	Method string    `json:"method"`
	Path   string    `json:"path"`
	Family string    `json:"family"`
	Kind   RouteKind `json:"kind"`
	// Target is the redirect destination of a legacy route.
	Target string `json:"target,omitempty"`
}
