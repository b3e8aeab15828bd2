package errors

import "net/http"

// RegistryVersion identifies the revision of the error code registry exposed on
// the wire. Adding, removing or renaming a code requires bumping it.
const RegistryVersion = "v1"

// Code is a stable, machine-readable error identifier.
type Code string

const (
	// CodeInternal is used for every failure that is not a deliberate GatewayError.
	CodeInternal Code = "INTERNAL_SERVER_ERROR"

	// CodeRouteNotFound is returned when no registered route matches the request.
	CodeRouteNotFound Code = "ROUTE_NOT_FOUND"

	// CodeContentNotFound is returned when a provider has no article or page for a slug.
	CodeContentNotFound Code = "CONTENT_NOT_FOUND"

	// CodeValidationFailed is returned for malformed path parameters or queries.
	CodeValidationFailed Code = "VALIDATION_FAILED"
)

// registry maps every known code to its default HTTP status.
var registry = map[Code]int{
	CodeInternal:         http.StatusInternalServerError,
	CodeRouteNotFound:    http.StatusNotFound,
	CodeContentNotFound:  http.StatusNotFound,
	CodeValidationFailed: http.StatusBadRequest,
}

// orderedCodes keeps Codes() output stable for docs and tests.
var orderedCodes = []Code{
	CodeInternal,
	CodeRouteNotFound,
	CodeContentNotFound,
	CodeValidationFailed,
}

// Codes returns every code in the registry.
func Codes() []Code {
	out := make([]Code, len(orderedCodes))
	copy(out, orderedCodes)
	return out
}

// Valid reports whether c is a member of the registry.
func (c Code) Valid() bool {
	_, ok := registry[c]
	return ok
}

// Status returns the default HTTP status for c. Unknown codes map to 500.
func (c Code) Status() int {
	if status, ok := registry[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// String returns the wire representation of the code.
func (c Code) String() string {
	return string(c)
}
