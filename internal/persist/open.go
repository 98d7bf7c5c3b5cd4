package persist

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/schoolpaypro/ledger/internal/config"
	"github.com/schoolpaypro/ledger/internal/store"
	"github.com/schoolpaypro/ledger/internal/store/jsonfile"
	"github.com/schoolpaypro/ledger/internal/store/memory"
	"github.com/schoolpaypro/ledger/internal/store/postgres"
	"github.com/schoolpaypro/ledger/internal/store/sqlite"
)

// OpenStore opens the document store selected by cfg. Relative paths are
// resolved against baseDir.
func OpenStore(ctx context.Context, cfg config.StorageConfig, baseDir string) (store.Store, error) {
	path := cfg.Path
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	switch cfg.Driver {
	case config.DriverJSON, "":
		return jsonfile.New(path)
	case config.DriverSQLite:
		return sqlite.New(path)
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL)
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
