package httpapi

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError reports a transport failure or a non-success status from the
// backend. StatusCode is zero when no response was received.
type NetworkError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s %s: status %d: %v", e.Op, e.Method, e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s %s: status %d %s", e.Op, e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	default:
		return fmt.Sprintf("%s: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is or wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
