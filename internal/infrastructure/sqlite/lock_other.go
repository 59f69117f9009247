//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package sqlite

import (
	"fmt"
	"os"
	"sync"
)

// held tracks lock paths owned by this process. Cross-process exclusion on
// these platforms is left to SQLite's own file locking.
var (
	heldMu sync.Mutex
	held   = make(map[string]struct{})
)

func lockFile(path string) (*os.File, error) {
	heldMu.Lock()
	defer heldMu.Unlock()

	if _, ok := held[path]; ok {
		return nil, ErrLocked
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // G304: derived from database path
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	held[path] = struct{}{}
	return f, nil
}

func unlockFile(f *os.File) error {
	if f == nil {
		return nil
	}
	heldMu.Lock()
	delete(held, f.Name())
	heldMu.Unlock()
	return f.Close()
}
