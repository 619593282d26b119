// Package dom - поиск элементов документа, на котором работает пайплайн.
// Два бэкенда: статическое HTML-дерево (goquery) и живая страница браузера
// (go-rod).
package dom

// Document ищет элементы по CSS-селектору.
type Document interface {
	// QuerySelector возвращает первый подходящий элемент в порядке документа
	// или nil, если совпадений нет.
	QuerySelector(selector string) (Element, error)
}

// Element - ссылка на один элемент Document.
type Element interface {
	QuerySelectorAll(selector string) ([]Element, error)
	TextContent() (string, error)
	InnerHTML() (string, error)
	SetInnerHTML(markup string) error
}
