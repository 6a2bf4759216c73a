package postgres

import (
	"fmt"
	"time"

	"github.com/amankumarsingh77/hls-transcoder/internal/config"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

const (
	maxOpenConns    = 60
	connMaxLifetime = 120 * time.Second
	maxIdleConns    = 30
	connMaxIdleTime = 20 * time.Second
)

// DSN builds the pgx connection string for c.
func DSN(c config.DBConfig) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s password=%s",
		c.Host,
		c.Port,
		c.User,
		c.Name,
		sslMode,
		c.Password,
	)
}

func NewPsqlDB(c *config.Config) (*sqlx.DB, error) {
	driver := c.Postgres.PgDriver
	if driver == "" {
		driver = config.CatalogDriverPostgres
	}

	db, err := sqlx.Connect(driver, DSN(c.Postgres))
	if err != nil {
		return nil, errors.Wrap(err, "postgres.NewPsqlDB.Connect")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "postgres.NewPsqlDB.Ping")
	}
	return db, nil
}
