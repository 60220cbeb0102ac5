package store

import (
	"fmt"

	"github.com/nubilum/nubilum/internal/config"
)

// New opens the store selected by cfg.
func New(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "sqlite", "":
		s, err := NewSQLiteStore(cfg.DSN, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", cfg.DSN, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
