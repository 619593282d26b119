package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biaslens/internal/observability"
	"biaslens/internal/storage"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(":memory:", time.Second, observability.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	base := time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func entry(n int) *storage.Entry {
	return &storage.Entry{
		Source:       fmt.Sprintf("https://news.example/%d", n),
		Selector:     "article",
		Checksum:     fmt.Sprintf("checksum-%d", n),
		Text:         "text",
		Markup:       "<p>text</p>",
		FoundCount:   n,
		ContextCount: 1,
	}
}

func TestSaveAndFind(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	e := entry(1)
	isNew, err := repo.Save(ctx, e)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEqual(t, uuid.Nil, e.ID)

	found, err := repo.FindByChecksum(ctx, "checksum-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, e.ID, found.ID)
	assert.Equal(t, e.Source, found.Source)
	assert.Equal(t, "<p>text</p>", found.Markup)
	assert.Equal(t, 1, found.FoundCount)
	assert.True(t, e.CreatedAt.Equal(found.CreatedAt))
}

func TestFindMissing(t *testing.T) {
	repo := newTestRepository(t)

	found, err := repo.FindByChecksum(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestSaveUpsertsByChecksum(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	first := entry(1)
	_, err := repo.Save(ctx, first)
	require.NoError(t, err)

	second := entry(1)
	second.Markup = "<p>updated</p>"
	isNew, err := repo.Save(ctx, second)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)

	all, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "<p>updated</p>", all[0].Markup)
}

func TestRecentAndPrune(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := repo.Save(ctx, entry(i))
		require.NoError(t, err)
	}

	recent, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "checksum-5", recent[0].Checksum)
	assert.Equal(t, "checksum-3", recent[2].Checksum)

	deleted, err := repo.Prune(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	rest, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "checksum-5", rest[0].Checksum)
	assert.Equal(t, "checksum-4", rest[1].Checksum)

	deleted, err = repo.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRepositoryPersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	repo, err := NewRepository(path, time.Second, observability.NewNop())
	require.NoError(t, err)
	_, err = repo.Save(ctx, entry(7))
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	reopened, err := NewRepository(path, time.Second, observability.NewNop())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	found, err := reopened.FindByChecksum(ctx, "checksum-7")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 7, found.FoundCount)
}

var _ storage.Repository = (*Repository)(nil)
