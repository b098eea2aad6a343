// SPDX-License-Identifier: MIT

package store

import "fmt"

// Open creates a Store based on the backend name.
// Supported backends: "badger" (path required), "memory".
func Open(backend, path string) (Store, error) {
	switch backend {
	case "badger":
		return OpenBadgerStore(path)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
