// Package render превращает diff в размеченный HTML: вставки и удаления
// оборачиваются в элементы со стилями, в конце идут нумерованные маркеры
// контекста.
package render

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"biaslens/internal/diff"
)

// Marker - нумерованная заметка после разметки diff.
type Marker struct {
	Index int
	Note  string
}

// Markers нумерует заметки с 1 в исходном порядке.
func Markers(notes []string) []Marker {
	markers := make([]Marker, 0, len(notes))
	for i, note := range notes {
		markers = append(markers, Marker{Index: i + 1, Note: note})
	}
	return markers
}

// RenderError - diff, который нельзя отрисовать, или разметка, которую не
// удалось применить к странице.
type RenderError struct {
	Index int
	Kind  diff.Kind
	Err   error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render failed: %v", e.Err)
	}
	return fmt.Sprintf("render failed: op %d has unsupported kind %d", e.Index, int(e.Kind))
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

type Classes struct {
	Added   string
	Removed string
	Marker  string
}

func DefaultClasses() Classes {
	return Classes{
		Added:   "added-text",
		Removed: "removed-text",
		Marker:  "context-marker",
	}
}

type Renderer struct {
	classes Classes
	notes   *bluemonday.Policy
}

func NewRenderer(classes Classes) *Renderer {
	return &Renderer{
		classes: classes,
		notes:   bluemonday.StrictPolicy(),
	}
}

// Render детерминирован: одни и те же ops и маркеры дают одну и ту же строку.
// Equal копируется как есть, маркеры нумеруются по позиции.
func (r *Renderer) Render(ops []diff.Op, markers []Marker) (string, error) {
	var b strings.Builder

	for i, op := range ops {
		switch op.Kind {
		case diff.Equal:
			b.WriteString(op.Text)
		case diff.Insert:
			fmt.Fprintf(&b, `<ins class="%s">%s</ins>`, r.classes.Added, op.Text)
		case diff.Delete:
			fmt.Fprintf(&b, `<del class="%s">%s</del>`, r.classes.Removed, op.Text)
		default:
			return "", &RenderError{Index: i, Kind: op.Kind}
		}
	}

	for i, m := range markers {
		// strict-политика убирает теги и оставляет экранированный текст для атрибута
		note := r.notes.Sanitize(m.Note)
		fmt.Fprintf(&b, `<sup class="%s" data-context="%s">[%d]</sup>`, r.classes.Marker, note, i+1)
	}

	return b.String(), nil
}
