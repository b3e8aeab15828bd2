package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const internalMessage = "Internal server error"

// ToGatewayError funnels any failure into a GatewayError. It never panics.
//
//   - A *GatewayError, directly or anywhere in an error chain, is returned as is.
//   - Any other error becomes a 500 with its dynamic type and message kept in
//     Details for diagnostics. The client-facing message stays generic.
//   - Any other value (nil, strings, recovered panic values) becomes a 500 with
//     no details.
func ToGatewayError(failure any) *GatewayError {
	switch f := failure.(type) {
	case *GatewayError:
		if f != nil {
			return f
		}
		return newInternal(nil, nil)
	case error:
		var ge *GatewayError
		if errors.As(f, &ge) && ge != nil {
			return ge
		}
		return newInternal(f, map[string]any{
			"name":    errorName(f),
			"message": safeMessage(f),
		})
	default:
		return newInternal(nil, nil)
	}
}

func newInternal(cause error, details map[string]any) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    internalMessage,
		Details:    details,
		Cause:      cause,
	}
}

func errorName(err error) string {
	return fmt.Sprintf("%T", err)
}

// safeMessage guards against Error methods that panic, typically on nil receivers.
func safeMessage(err error) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = ""
		}
	}()

	return err.Error()
}
