package sqlite

import (
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// NewSqliteDB opens the catalog database file at path, creating its parent
// directory. ":memory:" opens a private in-memory database.
func NewSqliteDB(path string) (*sqlx.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "sqlite.NewSqliteDB.MkdirAll")
		}
	}
	db, err := sqlx.Connect(driverName, path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrap(err, "sqlite.NewSqliteDB.Connect")
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY
	// and keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	return db, nil
}
