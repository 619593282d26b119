// Package report записывает результат анализа в HTML, Markdown или JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/PuerkitoBio/goquery"

	"biaslens/internal/pipeline"
	"biaslens/internal/render"
)

type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatHTML:
		return FormatHTML, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown report format %q (want html, markdown or json)", s)
}

type Report struct {
	Source    string
	Title     string
	Selector  string
	Summary   pipeline.Summary
	Markup    string // отрисованный diff контейнера
	Page      string // вся страница после применения, если есть
	Cached    bool
	CreatedAt time.Time
}

type Writer struct {
	format  Format
	classes render.Classes
	md      *converter.Converter
}

func NewWriter(format Format, classes render.Classes) *Writer {
	return &Writer{
		format:  format,
		classes: classes,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				strikethrough.NewStrikethroughPlugin(),
			),
		),
	}
}

func (w *Writer) Write(out io.Writer, r *Report) error {
	switch w.format {
	case FormatHTML:
		return w.writeHTML(out, r)
	case FormatMarkdown:
		return w.writeMarkdown(out, r)
	case FormatJSON:
		return w.writeJSON(out, r)
	}
	return fmt.Errorf("unknown report format %q", w.format)
}

func (w *Writer) styles() string {
	return fmt.Sprintf(`<style>
.%s { background: #d4f8d4; text-decoration: none; }
.%s { background: #fbd4d4; }
.%s { color: #1a56db; cursor: help; }
</style>`, w.classes.Added, w.classes.Removed, w.classes.Marker)
}

const skeleton = `<!DOCTYPE html><html><head><meta charset="utf-8"><title></title></head>` +
	`<body><header class="biaslens-summary"></header><article></article></body></html>`

func (w *Writer) writeHTML(out io.Writer, r *Report) error {
	page := r.Page
	standalone := page == ""
	if standalone {
		page = skeleton
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	doc.Find("head").AppendHtml(w.styles())

	if standalone {
		doc.Find("title").SetText(r.Title)
		doc.Find("header.biaslens-summary").SetText(summaryLine(r))
		doc.Find("article").SetHtml(r.Markup)
	}

	html, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return fmt.Errorf("failed to serialize page: %w", err)
	}
	_, err = io.WriteString(out, html)
	return err
}

func (w *Writer) writeMarkdown(out io.Writer, r *Report) error {
	body, err := w.md.ConvertString(r.Markup)
	if err != nil {
		return fmt.Errorf("failed to convert markup: %w", err)
	}

	var b strings.Builder
	title := r.Title
	if title == "" {
		title = r.Source
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Source: %s\n\n", r.Source)
	fmt.Fprintf(&b, "%s\n\n", summaryLine(r))
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")

	notes, err := ContextNotes(r.Markup, w.classes.Marker)
	if err != nil {
		return err
	}
	if len(notes) > 0 {
		b.WriteString("\n## Context\n\n")
		for i, note := range notes {
			fmt.Fprintf(&b, "%d. %s\n", i+1, note)
		}
	}

	_, err = io.WriteString(out, b.String())
	return err
}

type jsonReport struct {
	Source       string           `json:"source"`
	Title        string           `json:"title,omitempty"`
	Selector     string           `json:"selector,omitempty"`
	Cached       bool             `json:"cached"`
	CreatedAt    time.Time        `json:"createdAt"`
	Summary      pipeline.Summary `json:"summary"`
	ContextNotes []string         `json:"contextNotes"`
	Markup       string           `json:"markup"`
}

func (w *Writer) writeJSON(out io.Writer, r *Report) error {
	notes, err := ContextNotes(r.Markup, w.classes.Marker)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(jsonReport{
		Source:       r.Source,
		Title:        r.Title,
		Selector:     r.Selector,
		Cached:       r.Cached,
		CreatedAt:    r.CreatedAt,
		Summary:      r.Summary,
		ContextNotes: notes,
		Markup:       r.Markup,
	})
}

// ContextNotes достаёт тексты заметок из маркеров в отрисованной разметке.
func ContextNotes(markup, markerClass string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	notes := []string{}
	doc.Find("sup." + markerClass).Each(func(_ int, s *goquery.Selection) {
		if note, ok := s.Attr("data-context"); ok {
			notes = append(notes, note)
		}
	})
	return notes, nil
}

func summaryLine(r *Report) string {
	line := fmt.Sprintf("Found %d biased phrases, %d context notes.", r.Summary.FoundCount, r.Summary.ContextCount)
	if r.Cached {
		line += " (cached)"
	}
	return line
}
