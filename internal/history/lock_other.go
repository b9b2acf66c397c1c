//go:build !unix

package history

import "os"

// lockFile only ensures the lock file exists; cross-process exclusion is
// unavailable on this platform and writers are serialized in-process only.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return func() { f.Close() }, nil
}
