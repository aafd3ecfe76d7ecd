package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks a failed request or a non-2xx response.
	ErrNetwork = errors.New("network error")
	// ErrDecode marks a response body that is not the expected JSON.
	ErrDecode = errors.New("decode error")
)

// FetchError is returned by every probe. Kind is ErrNetwork or ErrDecode;
// Err is the underlying cause.
type FetchError struct {
	Op   string // "health" or "system status"
	URL  string
	Kind error
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
