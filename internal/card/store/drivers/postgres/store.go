package postgres

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/vaultra/cardbank/internal/card/store"
	"github.com/vaultra/cardbank/internal/platform/postgres"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements store.Cards on Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := postgres.Open(dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection; used by integration tests.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ApplyMigrations() error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	return postgres.Migrate(s.db, sub)
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

var _ store.Cards = (*Store)(nil)
