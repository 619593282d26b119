package dom

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserOptions - параметры открытия страницы в браузере.
type BrowserOptions struct {
	ChromePath      string
	Headless        bool
	PageTimeout     time.Duration
	WaitLoadTimeout time.Duration
}

// Page - Document поверх вкладки браузера.
type Page struct {
	page *rod.Page
}

// NewPage оборачивает уже открытую страницу rod.
func NewPage(p *rod.Page) *Page {
	return &Page{page: p}
}

// OpenPage запускает браузер, открывает url и ждёт события load.
// Возвращаемая функция закрывает браузер.
func OpenPage(ctx context.Context, opts BrowserOptions, url string) (*Page, func(), error) {
	l := launcher.New().Headless(opts.Headless)
	if opts.ChromePath != "" {
		l = l.Bin(opts.ChromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	closeFn := func() {
		_ = browser.Close()
		l.Kill()
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to open tab: %w", err)
	}

	if err := withTimeout(page, opts.PageTimeout, func(p *rod.Page) error {
		return p.Navigate(url)
	}); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("navigation failed: %w", err)
	}

	if err := withTimeout(page, opts.WaitLoadTimeout, func(p *rod.Page) error {
		return p.WaitLoad()
	}); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("page did not finish loading: %w", err)
	}

	return &Page{page: page}, closeFn, nil
}

func withTimeout(page *rod.Page, d time.Duration, fn func(*rod.Page) error) error {
	if d <= 0 {
		return fn(page)
	}
	scoped := page.Timeout(d)
	defer scoped.CancelTimeout()
	return fn(scoped)
}

func (p *Page) QuerySelector(selector string) (Element, error) {
	has, el, err := p.page.Has(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if !has {
		return nil, nil
	}
	return &pageElement{el: el}, nil
}

// HTML возвращает текущий DOM страницы.
func (p *Page) HTML() (string, error) {
	return p.page.HTML()
}

type pageElement struct {
	el *rod.Element
}

func (e *pageElement) QuerySelectorAll(selector string) ([]Element, error) {
	found, err := e.el.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query all %q: %w", selector, err)
	}
	elements := make([]Element, 0, len(found))
	for _, el := range found {
		elements = append(elements, &pageElement{el: el})
	}
	return elements, nil
}

func (e *pageElement) TextContent() (string, error) {
	res, err := e.el.Eval(`() => this.textContent`)
	if err != nil {
		return "", fmt.Errorf("read textContent: %w", err)
	}
	return res.Value.Str(), nil
}

func (e *pageElement) InnerHTML() (string, error) {
	prop, err := e.el.Property("innerHTML")
	if err != nil {
		return "", fmt.Errorf("read innerHTML: %w", err)
	}
	return prop.Str(), nil
}

func (e *pageElement) SetInnerHTML(markup string) error {
	if _, err := e.el.Eval(`(markup) => { this.innerHTML = markup }`, markup); err != nil {
		return fmt.Errorf("write innerHTML: %w", err)
	}
	return nil
}
