package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"whisperwire.ai/internal/persistence/indexdb"
)

// openRuntimeIndex returns nil when indexing is disabled. The index is a read model
// and never feeds back into session state.
func openRuntimeIndex(dataDir, backend string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "sessions.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", backend)
	}
}
