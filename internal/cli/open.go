package cli

import (
	"fmt"

	"github.com/idilsaglam/tada/internal/config"
	"github.com/idilsaglam/tada/internal/store"
	"github.com/idilsaglam/tada/internal/store/jsonstore"
	"github.com/idilsaglam/tada/internal/store/memstore"
	"github.com/idilsaglam/tada/internal/store/sqlitestore"
)

// openBackend picks the storage backend named by cfg.
func openBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memstore.New(), nil
	case config.BackendSQLite:
		s, err := sqlitestore.Open(cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.BackendFile, "":
		s, err := jsonstore.Open(cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("open json store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
