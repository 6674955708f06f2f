package storage

import (
	"fmt"
	"strings"
)

// DefaultDBPath is used by the sqlite backend when no path is given.
const DefaultDBPath = "selfplay.db"

func NewStore(kind, sqlitePath string) (Store, error) {
	switch strings.TrimSpace(strings.ToLower(kind)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if sqlitePath == "" {
			sqlitePath = DefaultDBPath
		}
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
