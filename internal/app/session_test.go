package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biaslens/internal/analysis"
	"biaslens/internal/config"
	"biaslens/internal/observability"
	"biaslens/internal/pipeline"
)

func TestSessionLifecycle(t *testing.T) {
	var sess Session

	sess, err := sess.Begin("a.html")
	require.NoError(t, err)
	assert.True(t, sess.InFlight)

	_, err = sess.Begin("b.html")
	assert.ErrorIs(t, err, ErrInFlight)

	sess = sess.Finish(&pipeline.Summary{FoundCount: 2, ContextCount: 1})
	assert.Equal(t, Session{Applied: true, Source: "a.html", Summary: pipeline.Summary{FoundCount: 2, ContextCount: 1}}, sess)

	// новый запуск снимает прежнюю разметку
	sess, err = sess.Begin("b.html")
	require.NoError(t, err)
	assert.False(t, sess.Applied)
	assert.Equal(t, pipeline.Summary{}, sess.Summary)

	sess = sess.Finish(nil)
	assert.False(t, sess.InFlight)
	assert.False(t, sess.Applied)
}

func TestOpenRepository(t *testing.T) {
	cfg := config.Default()

	cfg.Storage.Driver = "none"
	repo, err := OpenRepository(cfg, observability.NewNop())
	require.NoError(t, err)
	assert.Nil(t, repo)

	cfg.Storage.Driver = "sqlite"
	cfg.Storage.DSN = ":memory:"
	repo, err = OpenRepository(cfg, observability.NewNop())
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.NoError(t, repo.Close())

	cfg.Storage.Driver = "redis"
	_, err = OpenRepository(cfg, observability.NewNop())
	assert.Error(t, err)
}

func TestNewAnalyzerByProvider(t *testing.T) {
	cfg := config.Default()
	assert.IsType(t, &analysis.Client{}, NewAnalyzer(cfg, observability.NewNop()))

	cfg.Analysis.Provider = "openai"
	assert.IsType(t, &analysis.OpenAIAnalyzer{}, NewAnalyzer(cfg, observability.NewNop()))
}
