// Package pipeline выполняет один анализ страницы: находит контейнер статьи,
// извлекает текст, получает у сервиса анализа нейтральную версию, строит diff
// разметки контейнера и применяет отрисованный diff к странице.
//
// Прогон однопроходный. Любой этап завершается ошибкой
// *extract.ExtractionError, *analysis.TransportError или *render.RenderError.
// Страница меняется только на последнем шаге, поэтому неудачный прогон не
// оставляет частично размеченную страницу.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"biaslens/internal/analysis"
	"biaslens/internal/diff"
	"biaslens/internal/dom"
	"biaslens/internal/extract"
	"biaslens/internal/normalize"
	"biaslens/internal/observability"
	"biaslens/internal/render"
)

type Options struct {
	Analysis analysis.Options
	// Sanitize чистит HTML замены политикой UGC перед построением diff.
	Sanitize bool
}

type Summary struct {
	FoundCount   int `json:"foundCount"`
	ContextCount int `json:"contextCount"`
}

// Extraction - найденный контейнер и его нормализованный текст.
type Extraction struct {
	Container dom.Element
	Selector  string
	Fallback  bool
	Text      string
	Markup    string
}

type Result struct {
	Summary     Summary
	Selector    string
	Text        string
	Replacement string
	Markup      string
	Stats       diff.Stats
}

type Pipeline struct {
	logger     *observability.Logger
	cascade    *extract.Cascade
	normalizer *normalize.Normalizer
	analyzer   analysis.Analyzer
	engine     *diff.Engine
	renderer   *render.Renderer
	sanitizer  *bluemonday.Policy
}

func New(
	logger *observability.Logger,
	cascade *extract.Cascade,
	normalizer *normalize.Normalizer,
	analyzer analysis.Analyzer,
	engine *diff.Engine,
	renderer *render.Renderer,
) *Pipeline {
	return &Pipeline{
		logger:     logger,
		cascade:    cascade,
		normalizer: normalizer,
		analyzer:   analyzer,
		engine:     engine,
		renderer:   renderer,
		sanitizer:  bluemonday.UGCPolicy(),
	}
}

// Run - Extract, затем Analyze.
func (p *Pipeline) Run(ctx context.Context, doc dom.Document, opts Options) (*Result, error) {
	ex, err := p.Extract(doc)
	if err != nil {
		return nil, err
	}
	return p.Analyze(ctx, ex, opts)
}

// Extract находит контейнер и читает его текст и разметку. Документ не
// изменяется.
func (p *Pipeline) Extract(doc dom.Document) (*Extraction, error) {
	match, err := p.cascade.Locate(doc)
	if err != nil {
		p.logger.Warn("Article container not found", "error", err.Error())
		return nil, err
	}

	extracted := p.normalizer.Normalize(match.Element)
	if !extracted.Success {
		p.logger.Warn("No readable content", "selector", match.Selector, "reason", extracted.Error)
		return nil, &extract.ExtractionError{Reason: extracted.Error}
	}

	markup, err := match.Element.InnerHTML()
	if err != nil {
		return nil, &extract.ExtractionError{Reason: "failed to read container markup", Err: err}
	}

	p.logger.Debug("Article extracted",
		"selector", match.Selector,
		"fallback", match.Fallback,
		"text_chars", len([]rune(extracted.Content)),
		"markup_bytes", len(markup),
	)

	return &Extraction{
		Container: match.Element,
		Selector:  match.Selector,
		Fallback:  match.Fallback,
		Text:      extracted.Content,
		Markup:    markup,
	}, nil
}

// Analyze отправляет текст в сервис анализа и при успехе записывает
// отрисованный diff в контейнер.
func (p *Pipeline) Analyze(ctx context.Context, ex *Extraction, opts Options) (*Result, error) {
	start := time.Now()

	res, err := p.analyzer.Analyze(ctx, analysis.Request{
		Text:    p.normalizer.TruncateForAnalysis(ex.Text),
		Markup:  ex.Markup,
		Options: opts.Analysis,
	})
	if err != nil {
		var transportErr *analysis.TransportError
		if !errors.As(err, &transportErr) {
			transportErr = &analysis.TransportError{Err: err}
		}
		p.logger.Error("Analysis request failed",
			"status", transportErr.StatusCode,
			"error", transportErr.Error(),
		)
		return nil, transportErr
	}

	replacement := res.ReplacementText
	if opts.Sanitize {
		replacement = p.sanitizer.Sanitize(replacement)
	}

	ops := p.engine.Compute(ex.Markup, replacement)

	markup, err := p.renderer.Render(ops, render.Markers(res.ContextNotes))
	if err != nil {
		p.logger.Error("Render failed", "error", err.Error())
		return nil, err
	}

	if err := ex.Container.SetInnerHTML(markup); err != nil {
		p.logger.Error("Failed to apply markup", "error", err.Error())
		return nil, &render.RenderError{Err: err}
	}

	result := &Result{
		Summary: Summary{
			FoundCount:   res.FoundCount,
			ContextCount: len(res.ContextNotes),
		},
		Selector:    ex.Selector,
		Text:        ex.Text,
		Replacement: replacement,
		Markup:      markup,
		Stats:       diff.Count(ops),
	}

	p.logger.Info("Pipeline completed",
		"selector", ex.Selector,
		"found_count", result.Summary.FoundCount,
		"context_count", result.Summary.ContextCount,
		"inserted_chars", result.Stats.Inserted,
		"deleted_chars", result.Stats.Deleted,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
