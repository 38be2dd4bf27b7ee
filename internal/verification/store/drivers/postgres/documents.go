package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"

	"github.com/vaultra/cardbank/internal/platform/postgres"
	"github.com/vaultra/cardbank/internal/verification/domain"
	"github.com/vaultra/cardbank/internal/verification/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements store.Documents on Postgres.
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

func (s *Store) CreateDocument(ctx context.Context, d domain.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, document_type, status)
		VALUES ($1, $2, $3, $4)`,
		d.ID, d.UserID, d.DocumentType, d.Status,
	)
	return err
}

func (s *Store) GetDocumentByID(ctx context.Context, id string) (domain.Document, error) {
	return s.getDocument(ctx, `
		SELECT id, user_id, document_type, status, created_at, updated_at
		FROM documents WHERE id = $1`, id)
}

func (s *Store) GetLatestByUser(ctx context.Context, userID string) (domain.Document, error) {
	return s.getDocument(ctx, `
		SELECT id, user_id, document_type, status, created_at, updated_at
		FROM documents WHERE user_id = $1
		ORDER BY created_at DESC LIMIT 1`, userID)
}

func (s *Store) getDocument(ctx context.Context, query string, arg any) (domain.Document, error) {
	var d domain.Document
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&d.ID, &d.UserID, &d.DocumentType, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

func (s *Store) HasOpenDocument(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM documents
			WHERE user_id = $1 AND status IN ('pending', 'approved')
		)`, userID).Scan(&exists)
	return exists, err
}

func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.Documents = (*Store)(nil)
