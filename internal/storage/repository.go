package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry - результат одного анализа, сохранённый в истории.
type Entry struct {
	ID           uuid.UUID
	Source       string // URL или путь к файлу
	Title        string
	Selector     string
	Checksum     string // SHA256 от source|variant|text
	Text         string
	Markup       string // отрисованный diff с маркерами
	FoundCount   int
	ContextCount int
	CreatedAt    time.Time
}

// Repository хранит историю анализов.
type Repository interface {
	// Save вставляет запись или обновляет существующую с тем же Checksum.
	Save(ctx context.Context, entry *Entry) (isNew bool, err error)

	// FindByChecksum возвращает nil, nil если записи нет.
	FindByChecksum(ctx context.Context, checksum string) (*Entry, error)

	// Recent возвращает последние записи, новые первыми.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Prune оставляет keep последних записей и возвращает число удалённых.
	Prune(ctx context.Context, keep int) (int64, error)

	Close() error
}

// Prepare заполняет ID и CreatedAt у новой записи.
func Prepare(entry *Entry, now time.Time) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now.UTC()
	}
}
