package remote

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrBodyConsumed = errors.New("remote: response body already consumed")

// RemoteStatusError is a non-2xx upstream response. Body holds the response
// text, which for /v2/error is the upstream's error message.
type RemoteStatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *RemoteStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: upstream status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: upstream status %d: %s", e.Method, e.URL, e.Status, e.Body)
}

func (e *RemoteStatusError) Outcome() Outcome { return Classify(e.Status) }

// TransportError is a failure before any response arrived: refused
// connection, timeout, DNS.
type TransportError struct {
	Method string
	URL    string
	Cause  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: transport: %v", e.Method, e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var se *RemoteStatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
