package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLDocument - Document поверх разобранного HTML в памяти.
type HTMLDocument struct {
	doc *goquery.Document
}

// Parse читает HTML-документ. Пустой ввод даёт пустой документ, в котором
// не находится ни один селектор, даже body.
func Parse(r io.Reader) (*HTMLDocument, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read HTML: %w", err)
	}
	return ParseString(string(raw))
}

// ParseString разбирает HTML из строки.
func ParseString(html string) (*HTMLDocument, error) {
	if strings.TrimSpace(html) == "" {
		return &HTMLDocument{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &HTMLDocument{doc: doc}, nil
}

func (d *HTMLDocument) QuerySelector(selector string) (Element, error) {
	if d == nil || d.doc == nil {
		return nil, nil
	}
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, nil
	}
	return &htmlElement{sel: sel}, nil
}

// HTML сериализует весь документ вместе с разметкой, применённой через
// SetInnerHTML.
func (d *HTMLDocument) HTML() (string, error) {
	if d == nil || d.doc == nil {
		return "", nil
	}
	return d.doc.Html()
}

type htmlElement struct {
	sel *goquery.Selection
}

func (e *htmlElement) QuerySelectorAll(selector string) ([]Element, error) {
	found := e.sel.Find(selector)
	elements := make([]Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &htmlElement{sel: s})
	})
	return elements, nil
}

func (e *htmlElement) TextContent() (string, error) {
	return e.sel.Text(), nil
}

func (e *htmlElement) InnerHTML() (string, error) {
	return e.sel.Html()
}

func (e *htmlElement) SetInnerHTML(markup string) error {
	e.sel.SetHtml(markup)
	return nil
}
