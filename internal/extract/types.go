package extract

import "biaslens/internal/dom"

// Selectors - упорядоченный список кандидатов на контейнер статьи.
// Побеждает первый совпавший; Fallback проверяется по порядку, только если
// не совпал ни один из Article.
type Selectors struct {
	Article  []string `yaml:"article"`
	Fallback []string `yaml:"fallback"`
}

// DefaultSelectors: семантические теги, микроразметка schema.org и классы
// распространённых новостных CMS.
func DefaultSelectors() *Selectors {
	return &Selectors{
		Article: []string{
			"article",
			`[itemtype*="Article"]`,
			".article-content",
			".story-body",
			".post-content",
			"#article-body",
			".article-body",
			".entry-content",
			".content-article",
			".story",
			".news-content",
		},
		Fallback: []string{"main", "body"},
	}
}

// Match - найденный контейнер и селектор, который его нашёл.
type Match struct {
	Element  dom.Element
	Selector string
	Fallback bool
}
