package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"biaslens/internal/analysis"
	"biaslens/internal/checksum"
	"biaslens/internal/config"
	"biaslens/internal/diff"
	"biaslens/internal/dom"
	"biaslens/internal/extract"
	"biaslens/internal/fetcher"
	"biaslens/internal/normalize"
	"biaslens/internal/observability"
	"biaslens/internal/pipeline"
	"biaslens/internal/render"
	"biaslens/internal/report"
	"biaslens/internal/storage"
)

// Document - документ, который можно сериализовать после применения разметки.
type Document interface {
	dom.Document
	HTML() (string, error)
}

type loadFunc func(ctx context.Context, target string, browser bool) (Document, func(), error)

type Request struct {
	Target  string // URL или путь к HTML-файлу
	Browser bool   // открыть страницу в браузере через rod
	NoCache bool
	Options pipeline.Options
}

type Outcome struct {
	Report *report.Report
	Entry  *storage.Entry
	Result *pipeline.Result // nil, если результат взят из истории
}

type Orchestrator struct {
	cfg        *config.Config
	logger     *observability.Logger
	fetcher    *fetcher.Fetcher
	pipeline   *pipeline.Pipeline
	normalizer *normalize.Normalizer
	repo       storage.Repository
	checksum   *checksum.Generator
	load       loadFunc
}

// NewOrchestrator собирает пайплайн из конфигурации. repo может быть nil,
// тогда история и кэш не используются.
func NewOrchestrator(
	cfg *config.Config,
	logger *observability.Logger,
	analyzer analysis.Analyzer,
	repo storage.Repository,
) (*Orchestrator, error) {
	selectors, err := cfg.Selectors()
	if err != nil {
		return nil, fmt.Errorf("failed to load selectors: %w", err)
	}

	normalizer := normalize.NewNormalizer(cfg)
	p := pipeline.New(
		logger,
		extract.NewCascade(selectors),
		normalizer,
		analyzer,
		diff.NewEngine(),
		render.NewRenderer(Classes(cfg)),
	)

	o := &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		fetcher:    fetcher.NewFetcher(cfg, logger),
		pipeline:   p,
		normalizer: normalizer,
		repo:       repo,
		checksum:   checksum.NewGenerator(),
	}
	o.load = o.loadDocument
	return o, nil
}

// Classes возвращает имена CSS-классов разметки из конфигурации.
func Classes(cfg *config.Config) render.Classes {
	return render.Classes{
		Added:   cfg.Render.AddedClass,
		Removed: cfg.Render.RemovedClass,
		Marker:  cfg.Render.MarkerClass,
	}
}

// Run выполняет один анализ. Сессия возвращается обновлённой в любом случае.
func (o *Orchestrator) Run(ctx context.Context, sess Session, req Request) (Session, *Outcome, error) {
	sess, err := sess.Begin(req.Target)
	if err != nil {
		return sess, nil, err
	}

	outcome, err := o.run(ctx, req)
	if err != nil {
		return sess.Finish(nil), nil, err
	}
	return sess.Finish(&outcome.Report.Summary), outcome, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()

	doc, closeFn, err := o.load(ctx, req.Target, req.Browser)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	ex, err := o.pipeline.Extract(doc)
	if err != nil {
		return nil, err
	}

	opts := req.Options
	if opts.Analysis.URL == "" && isHTTPTarget(req.Target) {
		opts.Analysis.URL = req.Target
	}
	if opts.Analysis.APIKey == "" {
		opts.Analysis.APIKey = o.cfg.Analysis.APIKey
	}

	variant := o.variant(opts)
	sum := o.checksum.GenerateContentHash(req.Target, variant, ex.Text)
	title := documentTitle(doc)

	if !req.NoCache {
		outcome, err := o.fromHistory(ctx, doc, ex, variant, sum)
		if err != nil {
			return nil, err
		}
		if outcome != nil {
			o.logger.Info("Analysis served from history",
				"source", req.Target,
				"checksum", sum,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return outcome, nil
		}
	}

	result, err := o.pipeline.Analyze(ctx, ex, opts)
	if err != nil {
		return nil, err
	}

	page, err := doc.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize page: %w", err)
	}

	entry := &storage.Entry{
		Source:       req.Target,
		Title:        title,
		Selector:     result.Selector,
		Checksum:     sum,
		Text:         result.Text,
		Markup:       result.Markup,
		FoundCount:   result.Summary.FoundCount,
		ContextCount: result.Summary.ContextCount,
	}
	o.record(ctx, entry)

	return &Outcome{
		Report: &report.Report{
			Source:    req.Target,
			Title:     title,
			Selector:  result.Selector,
			Summary:   result.Summary,
			Markup:    result.Markup,
			Page:      page,
			CreatedAt: entry.CreatedAt,
		},
		Entry:  entry,
		Result: result,
	}, nil
}

// fromHistory применяет сохранённую разметку, если текст уже анализировался
// с теми же настройками. Возвращает nil, nil при промахе. Запись, чей текст
// не сходится с её контрольной суммой, считается промахом и перезаписывается
// новым анализом.
func (o *Orchestrator) fromHistory(ctx context.Context, doc Document, ex *pipeline.Extraction, variant, sum string) (*Outcome, error) {
	if o.repo == nil {
		return nil, nil
	}

	cached, err := o.repo.FindByChecksum(ctx, sum)
	if err != nil {
		o.logger.Warn("History lookup failed", "checksum", sum, "error", err.Error())
		return nil, nil
	}
	if cached == nil {
		return nil, nil
	}
	if !o.checksum.VerifyContentHash(cached.Checksum, cached.Source, variant, cached.Text) {
		o.logger.Warn("Stale history entry ignored", "id", cached.ID.String(), "checksum", sum)
		return nil, nil
	}

	if err := ex.Container.SetInnerHTML(cached.Markup); err != nil {
		return nil, &render.RenderError{Err: err}
	}

	page, err := doc.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize page: %w", err)
	}

	o.record(ctx, cached)

	summary := pipeline.Summary{FoundCount: cached.FoundCount, ContextCount: cached.ContextCount}
	return &Outcome{
		Report: &report.Report{
			Source:    cached.Source,
			Title:     cached.Title,
			Selector:  cached.Selector,
			Summary:   summary,
			Markup:    cached.Markup,
			Page:      page,
			Cached:    true,
			CreatedAt: cached.CreatedAt,
		},
		Entry: cached,
	}, nil
}

// record сохраняет запись и обрезает историю. Ошибки хранилища не прерывают
// анализ, только логируются.
func (o *Orchestrator) record(ctx context.Context, entry *storage.Entry) {
	if o.repo == nil {
		return
	}

	isNew, err := o.repo.Save(ctx, entry)
	if err != nil {
		o.logger.Warn("Failed to save analysis", "source", entry.Source, "error", err.Error())
		return
	}

	pruned, err := o.repo.Prune(ctx, o.cfg.Storage.HistoryLimit)
	if err != nil {
		o.logger.Warn("Failed to prune history", "error", err.Error())
		return
	}

	o.logger.Debug("History updated",
		"id", entry.ID.String(),
		"is_new", isNew,
		"pruned", pruned,
	)
}

// History возвращает последние анализы, новые первыми.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]storage.Entry, error) {
	if o.repo == nil {
		return nil, fmt.Errorf("history is disabled (storage.driver: none)")
	}
	if limit <= 0 {
		limit = o.cfg.Storage.HistoryLimit
	}
	return o.repo.Recent(ctx, limit)
}

// Preview - короткий фрагмент текста для списка истории.
func (o *Orchestrator) Preview(text string) string {
	return o.normalizer.TruncatePreview(text)
}

func (o *Orchestrator) variant(opts pipeline.Options) string {
	v := o.cfg.Analysis.Provider
	if o.cfg.Analysis.Provider == "openai" {
		v += ":" + o.cfg.Analysis.OpenAI.Model
	}
	if opts.Analysis.EnhancedMode {
		v += "+enhanced"
	}
	if opts.Sanitize {
		v += "+sanitized"
	}
	return v
}

func (o *Orchestrator) loadDocument(ctx context.Context, target string, browser bool) (Document, func(), error) {
	noop := func() {}

	if browser {
		page, closeFn, err := dom.OpenPage(ctx, dom.BrowserOptions{
			ChromePath:      o.cfg.Rod.ChromePath,
			Headless:        o.cfg.Rod.Headless,
			PageTimeout:     o.cfg.GetRodPageTimeout(),
			WaitLoadTimeout: o.cfg.GetRodWaitLoadTimeout(),
		}, target)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open page in browser: %w", err)
		}
		return page, closeFn, nil
	}

	var raw []byte
	if isHTTPTarget(target) {
		resp, err := o.fetcher.Fetch(ctx, target)
		if err != nil {
			return nil, noop, err
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return nil, noop, fmt.Errorf("fetch %s: unexpected status %d", target, resp.StatusCode)
		}
		raw = resp.Body
	} else {
		data, err := os.ReadFile(target)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to read %s: %w", target, err)
		}
		raw = data
	}

	doc, err := dom.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, noop, err
	}
	return doc, noop, nil
}

func isHTTPTarget(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func documentTitle(doc dom.Document) string {
	el, err := doc.QuerySelector("title")
	if err != nil || el == nil {
		return ""
	}
	text, err := el.TextContent()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(normalize.Text(text))
}
