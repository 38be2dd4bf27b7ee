package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"io/fs"

	"github.com/vaultra/cardbank/internal/history/domain"
	"github.com/vaultra/cardbank/internal/history/store"
	"github.com/vaultra/cardbank/internal/platform/postgres"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements store.Events on Postgres. Event metadata is kept as
// jsonb since each event type carries a different shape.
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

func (s *Store) ApplyMigrations() error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	return postgres.Migrate(s.db, sub)
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Append(ctx context.Context, e domain.Event) error {
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, user_id, event_type, meta)
		VALUES ($1, $2, $3, $4)`,
		e.ID, e.UserID, e.EventType, meta,
	)
	return err
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]domain.Event, error) {
	return s.list(ctx, `
		SELECT id, user_id, event_type, meta, timestamp FROM events
		WHERE user_id = $1 ORDER BY timestamp DESC`, userID)
}

func (s *Store) ListAll(ctx context.Context) ([]domain.Event, error) {
	return s.list(ctx, `
		SELECT id, user_id, event_type, meta, timestamp FROM events
		ORDER BY timestamp DESC`)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e    domain.Event
			meta []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &meta, &e.Timestamp); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return nil, err
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ store.Events = (*Store)(nil)
