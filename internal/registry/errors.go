package registry

import (
	"errors"
	"fmt"
)

// ErrEmptyHostname rejects an add without a hostname.
var ErrEmptyHostname = errors.New("hostname is required")

// DuplicateHostError rejects adding a hostname that is already tracked.
type DuplicateHostError struct {
	Hostname string
}

func (e *DuplicateHostError) Error() string {
	return fmt.Sprintf("Hostname %q already exists", e.Hostname)
}

// HostNotFoundError rejects removing a hostname that is not tracked.
type HostNotFoundError struct {
	Hostname string
}

func (e *HostNotFoundError) Error() string {
	return fmt.Sprintf("Hostname %q not found", e.Hostname)
}

// IsRejection reports whether err is a duplicate or not-found rejection.
func IsRejection(err error) bool {
	var dup *DuplicateHostError
	var nf *HostNotFoundError
	return errors.As(err, &dup) || errors.As(err, &nf)
}
