package extract

import (
	"fmt"

	"biaslens/internal/dom"
)

// ExtractionError - не найден контейнер статьи или в нём нет текста.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Reason, e.Err)
	}
	return "extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type Cascade struct {
	selectors *Selectors
}

func NewCascade(selectors *Selectors) *Cascade {
	if selectors == nil {
		selectors = DefaultSelectors()
	}
	if len(selectors.Fallback) == 0 {
		selectors = &Selectors{
			Article:  selectors.Article,
			Fallback: DefaultSelectors().Fallback,
		}
	}
	return &Cascade{selectors: selectors}
}

// Locate возвращает элемент, найденный самым приоритетным селектором.
// Документ не изменяется.
func (c *Cascade) Locate(doc dom.Document) (*Match, error) {
	if doc == nil {
		return nil, &ExtractionError{Reason: "no document"}
	}

	el, selector, err := trySelectors(doc, c.selectors.Article)
	if err != nil {
		return nil, err
	}
	if el != nil {
		return &Match{Element: el, Selector: selector}, nil
	}

	el, selector, err = trySelectors(doc, c.selectors.Fallback)
	if err != nil {
		return nil, err
	}
	if el != nil {
		return &Match{Element: el, Selector: selector, Fallback: true}, nil
	}

	return nil, &ExtractionError{Reason: "no article container found"}
}

func trySelectors(doc dom.Document, selectors []string) (dom.Element, string, error) {
	for _, selector := range selectors {
		el, err := doc.QuerySelector(selector)
		if err != nil {
			return nil, "", &ExtractionError{Reason: fmt.Sprintf("query %q", selector), Err: err}
		}
		if el != nil {
			return el, selector, nil
		}
	}
	return nil, "", nil
}
