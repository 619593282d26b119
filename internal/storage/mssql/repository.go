package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/microsoft/go-mssqldb"

	"biaslens/internal/observability"
	"biaslens/internal/storage"
)

// Repository хранит историю в таблице TblAnalysisHistory:
//
//	UID UNIQUEIDENTIFIER PK, Source NVARCHAR(2048), Title NVARCHAR(1024),
//	Selector NVARCHAR(256), CheckSum CHAR(64) UNIQUE, [Text] NVARCHAR(MAX),
//	Markup NVARCHAR(MAX), FoundCount INT, ContextCount INT, DT DATETIME2
type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Тестируем соединение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

// Save сохраняет или обновляет запись по CheckSum
func (r *Repository) Save(ctx context.Context, entry *storage.Entry) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	storage.Prepare(entry, time.Now())

	// MERGE возвращает действие и итоговый UID
	query := `
		MERGE INTO TblAnalysisHistory AS target
		USING (SELECT @CheckSum AS CheckSum) AS source
		ON target.[CheckSum] = source.CheckSum
		WHEN MATCHED THEN
			UPDATE SET
				[Source] = @Source,
				[Title] = @Title,
				[Selector] = @Selector,
				[Text] = @Text,
				[Markup] = @Markup,
				[FoundCount] = @FoundCount,
				[ContextCount] = @ContextCount,
				[DT] = @DT
		WHEN NOT MATCHED THEN
			INSERT ([UID], [Source], [Title], [Selector], [CheckSum], [Text], [Markup], [FoundCount], [ContextCount], [DT])
			VALUES (@UID, @Source, @Title, @Selector, @CheckSum, @Text, @Markup, @FoundCount, @ContextCount, @DT)
		OUTPUT $action, CONVERT(NVARCHAR(36), inserted.[UID]);
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	var action, uid string
	err = stmt.QueryRowContext(ctx,
		sql.Named("UID", entry.ID.String()),
		sql.Named("Source", entry.Source),
		sql.Named("Title", entry.Title),
		sql.Named("Selector", entry.Selector),
		sql.Named("CheckSum", entry.Checksum),
		sql.Named("Text", entry.Text),
		sql.Named("Markup", entry.Markup),
		sql.Named("FoundCount", entry.FoundCount),
		sql.Named("ContextCount", entry.ContextCount),
		sql.Named("DT", entry.CreatedAt),
	).Scan(&action, &uid)
	if err != nil {
		return false, fmt.Errorf("failed to execute upsert: %w", err)
	}

	if parsed, err := uuid.Parse(uid); err == nil {
		entry.ID = parsed
	}

	return action == "INSERT", nil
}

// FindByChecksum возвращает nil, nil если записи нет
func (r *Repository) FindByChecksum(ctx context.Context, checksum string) (*storage.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `
		SELECT CONVERT(NVARCHAR(36), [UID]), [Source], [Title], [Selector], [CheckSum],
		       [Text], [Markup], [FoundCount], [ContextCount], [DT]
		FROM TblAnalysisHistory WHERE [CheckSum] = @CheckSum`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, sql.Named("CheckSum", checksum)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query database: %w", err)
	}
	return entry, nil
}

func (r *Repository) Recent(ctx context.Context, limit int) ([]storage.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 2147483647
	}

	query := `
		SELECT TOP (@Limit) CONVERT(NVARCHAR(36), [UID]), [Source], [Title], [Selector], [CheckSum],
		       [Text], [Markup], [FoundCount], [ContextCount], [DT]
		FROM TblAnalysisHistory ORDER BY [DT] DESC`

	rows, err := r.db.QueryContext(ctx, query, sql.Named("Limit", limit))
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

// Prune удаляет всё, кроме keep последних записей
func (r *Repository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `
		DELETE FROM TblAnalysisHistory WHERE [UID] NOT IN (
			SELECT TOP (@Keep) [UID] FROM TblAnalysisHistory ORDER BY [DT] DESC
		)`

	result, err := r.db.ExecContext(ctx, query, sql.Named("Keep", keep))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected()
}

// Close закрывает соединение с БД
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
		entry storage.Entry
		uid   string
	)
	err := s.Scan(&uid, &entry.Source, &entry.Title, &entry.Selector, &entry.Checksum,
		&entry.Text, &entry.Markup, &entry.FoundCount, &entry.ContextCount, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(uid)
	if err != nil {
		return nil, fmt.Errorf("invalid UID %q: %w", uid, err)
	}
	entry.ID = parsed
	return &entry, nil
}

var _ storage.Repository = (*Repository)(nil)
