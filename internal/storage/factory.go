package storage

import (
	"fmt"
	"log/slog"
)

// Open constructs the store for the configured backend. The engine only ever
// sees the Store interface, never which backend is behind it.
func Open(backend, dsn, dataDir string, logger *slog.Logger) (Store, error) {
	switch backend {
	case "sqlite":
		return OpenSQL("sqlite", dsn, logger)
	case "postgres":
		return OpenSQL("pgx", dsn, logger)
	case "file":
		return OpenFile(dataDir, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
