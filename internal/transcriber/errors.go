package transcriber

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned by NewAdapter when the provider has no credentials.
var ErrMissingAPIKey = errors.New("API key required")

// UnavailableError means the service refused the stream outright, e.g. bad
// credentials. The transcriber sends nothing more until it is restarted.
type UnavailableError struct {
	Provider string
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Provider == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err wraps an UnavailableError.
func IsUnavailable(err error) bool {
	var u *UnavailableError
	return errors.As(err, &u)
}
