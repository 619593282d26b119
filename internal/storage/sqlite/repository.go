package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"biaslens/internal/observability"
	"biaslens/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id            TEXT PRIMARY KEY,
	source        TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	selector      TEXT NOT NULL DEFAULT '',
	checksum      TEXT NOT NULL UNIQUE,
	text          TEXT NOT NULL,
	markup        TEXT NOT NULL,
	found_count   INTEGER NOT NULL DEFAULT 0,
	context_count INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
`

const selectColumns = `id, source, title, selector, checksum, text, markup, found_count, context_count, created_at`

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
	now            func() time.Time
}

// NewRepository открывает (или создаёт) файл БД и применяет схему.
// ":memory:" используется в тестах.
func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// одна запись за раз, и :memory: должна быть одной БД для всех вызовов
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	if dsn != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
		now:            time.Now,
	}, nil
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.commandTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.commandTimeout)
}

// Save обновляет запись с тем же checksum (она становится самой новой) или
// вставляет новую.
func (r *Repository) Save(ctx context.Context, entry *storage.Entry) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	storage.Prepare(entry, r.now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM analyses WHERE checksum = ?`, entry.Checksum).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO analyses (`+selectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID.String(), entry.Source, entry.Title, entry.Selector, entry.Checksum,
			entry.Text, entry.Markup, entry.FoundCount, entry.ContextCount, entry.CreatedAt.UnixNano(),
		)
		if err != nil {
			return false, fmt.Errorf("failed to insert analysis: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit: %w", err)
		}
		return true, nil

	case err != nil:
		return false, fmt.Errorf("failed to query database: %w", err)
	}

	entry.CreatedAt = r.now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE analyses SET
			source = ?, title = ?, selector = ?, text = ?, markup = ?,
			found_count = ?, context_count = ?, created_at = ?
		WHERE id = ?`,
		entry.Source, entry.Title, entry.Selector, entry.Text, entry.Markup,
		entry.FoundCount, entry.ContextCount, entry.CreatedAt.UnixNano(), existingID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update analysis: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	if err := entry.ID.UnmarshalText([]byte(existingID)); err != nil {
		r.logger.Warn("Stored analysis has invalid id", "id", existingID)
	}
	return false, nil
}

func (r *Repository) FindByChecksum(ctx context.Context, checksum string) (*storage.Entry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM analyses WHERE checksum = ?`, checksum)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	return entry, nil
}

func (r *Repository) Recent(ctx context.Context, limit int) ([]storage.Entry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = -1 // без ограничения
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM analyses ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []storage.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (r *Repository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM analyses WHERE id NOT IN (
			SELECT id FROM analyses ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected()
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*storage.Entry, error) {
	var (
		entry     storage.Entry
		id        string
		createdAt int64
	)
	err := s.Scan(&id, &entry.Source, &entry.Title, &entry.Selector, &entry.Checksum,
		&entry.Text, &entry.Markup, &entry.FoundCount, &entry.ContextCount, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := entry.ID.UnmarshalText([]byte(id)); err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", id, err)
	}
	entry.CreatedAt = time.Unix(0, createdAt).UTC()
	return &entry, nil
}
