//go:build !unix

package store

// lockFile is a no-op where flock is unavailable; only the in-process mutex
// guards the document.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
