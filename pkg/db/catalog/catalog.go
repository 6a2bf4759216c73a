package catalog

import (
	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	"github.com/amankumarsingh77/hls-transcoder/pkg/db/postgres"
	"github.com/amankumarsingh77/hls-transcoder/pkg/db/sqlite"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Open connects to the catalog store selected by cfg.Catalog.Driver.
func Open(cfg *config.Config) (*sqlx.DB, error) {
	switch cfg.Catalog.Driver {
	case config.CatalogDriverPostgres:
		return postgres.NewPsqlDB(cfg)
	case config.CatalogDriverSQLite, "":
		return sqlite.NewSqliteDB(cfg.Catalog.SQLitePath)
	default:
		return nil, errors.Errorf("catalog: unknown driver %q", cfg.Catalog.Driver)
	}
}
