package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"biaslens/internal/config"
	"biaslens/internal/dom"
)

var (
	// горизонтальные пробелы: все символы Zs (NBSP тоже) и управляющие; \n сохраняется
	horizontalSpace = regexp.MustCompile(`[\p{Zs}\t\v\f\r]+`)
	// то же без U+00A0, для trim_nbsp: false
	horizontalSpaceKeepNBSP = regexp.MustCompile(`[\t\v\f\r \x{1680}\x{2000}-\x{200A}\x{202F}\x{205F}\x{3000}]+`)
	newlinePadding          = regexp.MustCompile(` ?\n ?`)
)

// ExtractionResult - результат чтения контейнера статьи. Content непуст при
// Success, иначе Error объясняет причину.
type ExtractionResult struct {
	Success bool
	Content string
	Error   string
}

func failed(msg string) ExtractionResult {
	return ExtractionResult{Error: msg}
}

type Normalizer struct {
	cfg *config.Config
}

func NewNormalizer(cfg *config.Config) *Normalizer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Normalizer{cfg: cfg}
}

// Normalize собирает текст абзацев контейнера (или весь его текст, если
// абзацев нет) и чистит пробелы.
func (n *Normalizer) Normalize(container dom.Element) ExtractionResult {
	if container == nil {
		return failed("no article container found")
	}

	paragraphs, err := container.QuerySelectorAll("p")
	if err != nil {
		return failed("failed to read paragraphs: " + err.Error())
	}

	var content string
	if len(paragraphs) > 0 {
		parts := make([]string, 0, len(paragraphs))
		for _, p := range paragraphs {
			text, err := p.TextContent()
			if err != nil {
				return failed("failed to read paragraph text: " + err.Error())
			}
			if text = strings.TrimSpace(text); text != "" {
				parts = append(parts, text)
			}
		}
		content = strings.Join(parts, "\n\n")
	} else {
		text, err := container.TextContent()
		if err != nil {
			return failed("failed to read container text: " + err.Error())
		}
		content = strings.TrimSpace(text)
	}

	content = n.Text(content)
	if content == "" {
		return failed("article container has no readable text")
	}

	return ExtractionResult{Success: true, Content: content}
}

// Text сворачивает серии горизонтальных пробелов (любой символ Zs, NBSP
// включительно) в один пробел, убирает пробелы у переводов строк и обрезает
// края. Text(Text(s)) == Text(s).
func Text(s string) string {
	return collapse(s, horizontalSpace)
}

// Text работает как пакетная Text, но при normalize.trim_nbsp: false
// оставляет U+00A0 как есть.
func (n *Normalizer) Text(s string) string {
	if n.cfg.Normalize.TrimNBSP {
		return collapse(s, horizontalSpace)
	}
	return collapse(s, horizontalSpaceKeepNBSP)
}

func collapse(s string, space *regexp.Regexp) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = space.ReplaceAllString(s, " ")
	s = newlinePadding.ReplaceAllString(s, "\n")
	return strings.Trim(s, " \n")
}

// TruncateForAnalysis обрезает текст до лимита запроса по границе руны.
// Лимит 0 отключает обрезку.
func (n *Normalizer) TruncateForAnalysis(text string) string {
	return truncateRunes(text, n.cfg.Normalize.MaxTextChars)
}

func truncateRunes(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

// TruncatePreview обрезает текст до maxPreviewChars
func (n *Normalizer) TruncatePreview(text string) string {
	limit := n.cfg.Normalize.MaxPreviewChars
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	if limit <= 1 {
		return "…"
	}

	// Находим последний пробел перед лимитом; "…" входит в лимит
	truncated := truncateRunes(text, limit-1)
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > 0 {
		return truncated[:lastSpace] + "…"
	}

	return truncated + "…"
}
