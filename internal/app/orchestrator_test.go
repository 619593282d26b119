package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biaslens/internal/analysis"
	"biaslens/internal/config"
	"biaslens/internal/observability"
	"biaslens/internal/pipeline"
	"biaslens/internal/storage"
	"biaslens/internal/storage/sqlite"
)

type fakeAnalyzer struct {
	requests []analysis.Request
	err      error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req analysis.Request) (*analysis.Result, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.Result{
		ReplacementText: strings.Replace(req.Markup, "controversial ", "", 1),
		FoundCount:      1,
		ContextNotes:    []string{"source needed"},
	}, nil
}

const articleHTML = `<html><head><title>Daily  News</title></head><body>` +
	`<article><p>The controversial politician said something.</p></article></body></html>`

func writeArticle(t *testing.T, name, html string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(html), 0o644))
	return path
}

func newTestOrchestrator(t *testing.T, analyzer analysis.Analyzer, withHistory bool) (*Orchestrator, storage.Repository) {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.HistoryLimit = 2
	cfg.Backoff.MinMS = 1
	cfg.Backoff.MaxMS = 2

	var repo storage.Repository
	if withHistory {
		r, err := sqlite.NewRepository(":memory:", time.Second, observability.NewNop())
		require.NoError(t, err)
		t.Cleanup(func() { _ = r.Close() })
		repo = r
	}

	o, err := NewOrchestrator(cfg, observability.NewNop(), analyzer, repo)
	require.NoError(t, err)
	return o, repo
}

func TestRunAnalyzesFile(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	o, repo := newTestOrchestrator(t, analyzer, true)
	path := writeArticle(t, "a.html", articleHTML)

	sess, outcome, err := o.Run(context.Background(), Session{}, Request{
		Target:  path,
		Options: pipeline.Options{Analysis: analysis.Options{EnhancedMode: true}},
	})
	require.NoError(t, err)

	assert.False(t, sess.InFlight)
	assert.True(t, sess.Applied)
	assert.Equal(t, path, sess.Source)
	assert.Equal(t, pipeline.Summary{FoundCount: 1, ContextCount: 1}, sess.Summary)

	require.NotNil(t, outcome.Result)
	assert.False(t, outcome.Report.Cached)
	assert.Equal(t, "Daily News", outcome.Report.Title)
	assert.Equal(t, "article", outcome.Report.Selector)
	assert.Contains(t, outcome.Report.Page, `<del class="removed-text">controversial </del>`)
	assert.Contains(t, outcome.Report.Page, `<title>Daily  News</title>`)

	require.Len(t, analyzer.requests, 1)
	assert.Empty(t, analyzer.requests[0].Options.URL, "file targets carry no page URL")

	saved, err := repo.FindByChecksum(context.Background(), outcome.Entry.Checksum)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, outcome.Report.Markup, saved.Markup)
}

func TestRunReusesHistory(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	o, _ := newTestOrchestrator(t, analyzer, true)
	path := writeArticle(t, "a.html", articleHTML)
	ctx := context.Background()

	sess, first, err := o.Run(ctx, Session{}, Request{Target: path})
	require.NoError(t, err)

	sess, second, err := o.Run(ctx, sess, Request{Target: path})
	require.NoError(t, err)

	assert.Len(t, analyzer.requests, 1)
	assert.True(t, second.Report.Cached)
	assert.Nil(t, second.Result)
	assert.Equal(t, first.Report.Markup, second.Report.Markup)
	assert.Equal(t, first.Report.Summary, second.Report.Summary)
	assert.Contains(t, second.Report.Page, `<del class="removed-text">controversial </del>`)
	assert.True(t, sess.Applied)

	// другой режим анализа - другой ключ кэша
	_, _, err = o.Run(ctx, sess, Request{
		Target:  path,
		Options: pipeline.Options{Analysis: analysis.Options{EnhancedMode: true}},
	})
	require.NoError(t, err)
	assert.Len(t, analyzer.requests, 2)

	_, third, err := o.Run(ctx, sess, Request{Target: path, NoCache: true})
	require.NoError(t, err)
	assert.Len(t, analyzer.requests, 3)
	assert.False(t, third.Report.Cached)
}

func TestRunIgnoresHistoryEntryWithMismatchedText(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	o, repo := newTestOrchestrator(t, analyzer, true)
	path := writeArticle(t, "a.html", articleHTML)
	ctx := context.Background()

	_, first, err := o.Run(ctx, Session{}, Request{Target: path})
	require.NoError(t, err)

	stale, err := repo.FindByChecksum(ctx, first.Entry.Checksum)
	require.NoError(t, err)
	require.NotNil(t, stale)
	stale.Text = "text of some other article"
	stale.Markup = "<p>stale</p>"
	_, err = repo.Save(ctx, stale)
	require.NoError(t, err)

	_, second, err := o.Run(ctx, Session{}, Request{Target: path})
	require.NoError(t, err)

	assert.Len(t, analyzer.requests, 2)
	assert.False(t, second.Report.Cached)
	assert.NotContains(t, second.Report.Page, "stale")

	// запись перезаписана свежим анализом
	saved, err := repo.FindByChecksum(ctx, first.Entry.Checksum)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, first.Entry.Text, saved.Text)
	assert.Equal(t, second.Report.Markup, saved.Markup)
}

func TestRunRejectsSessionInFlight(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	o, _ := newTestOrchestrator(t, analyzer, false)

	busy := Session{InFlight: true, Source: "other.html"}
	sess, outcome, err := o.Run(context.Background(), busy, Request{Target: "a.html"})

	assert.ErrorIs(t, err, ErrInFlight)
	assert.Nil(t, outcome)
	assert.Equal(t, busy, sess)
	assert.Empty(t, analyzer.requests)
}

func TestRunTransportFailure(t *testing.T) {
	analyzer := &fakeAnalyzer{err: &analysis.TransportError{StatusCode: 503, Message: "down"}}
	o, repo := newTestOrchestrator(t, analyzer, true)
	path := writeArticle(t, "a.html", articleHTML)

	previous := Session{Applied: true, Source: "old.html", Summary: pipeline.Summary{FoundCount: 3}}
	sess, outcome, err := o.Run(context.Background(), previous, Request{Target: path})

	var transportErr *analysis.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Nil(t, outcome)
	assert.False(t, sess.InFlight)
	assert.False(t, sess.Applied)
	assert.Equal(t, pipeline.Summary{}, sess.Summary)

	entries, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunMissingFile(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeAnalyzer{}, false)

	sess, _, err := o.Run(context.Background(), Session{}, Request{Target: filepath.Join(t.TempDir(), "missing.html")})
	assert.Error(t, err)
	assert.False(t, sess.InFlight)
}

func TestHistoryIsPruned(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeAnalyzer{}, true)
	ctx := context.Background()

	var sess Session
	for i := 0; i < 3; i++ {
		html := strings.Replace(articleHTML, "something", fmt.Sprintf("thing %d", i), 1)
		var err error
		sess, _, err = o.Run(ctx, sess, Request{Target: writeArticle(t, fmt.Sprintf("a%d.html", i), html)})
		require.NoError(t, err)
	}

	entries, err := o.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Text, "thing 2")
	assert.Contains(t, entries[1].Text, "thing 1")


	preview := o.Preview(strings.Repeat("word ", 50))
	assert.True(t, strings.HasSuffix(preview, "…"))
	assert.LessOrEqual(t, utf8.RuneCountInString(preview), 120)
}

func TestHistoryDisabled(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeAnalyzer{}, false)

	_, err := o.History(context.Background(), 5)
	assert.Error(t, err)
}

func TestRunFetchesHTTPTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	analyzer := &fakeAnalyzer{}
	o, _ := newTestOrchestrator(t, analyzer, false)

	target := srv.URL + "/news/1"
	_, outcome, err := o.Run(context.Background(), Session{}, Request{Target: target})
	require.NoError(t, err)

	require.Len(t, analyzer.requests, 1)
	assert.Equal(t, target, analyzer.requests[0].Options.URL)
	assert.Equal(t, target, outcome.Report.Source)
}

func TestRunHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	o, _ := newTestOrchestrator(t, &fakeAnalyzer{}, false)

	_, _, err := o.Run(context.Background(), Session{}, Request{Target: srv.URL + "/gone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}
