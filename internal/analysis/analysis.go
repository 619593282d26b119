// Package analysis - граница с внешним сервисом анализа предвзятости.
// Сервис получает текст статьи и возвращает нейтральную замену, число
// найденных предвзятых фраз и список заметок контекста.
package analysis

import (
	"context"
	"fmt"
)

// Options передаются сервису без изменений.
type Options struct {
	EnhancedMode bool
	APIKey       string
	URL          string
}

type Request struct {
	Text string
	// Markup - исходный inner HTML контейнера. Его используют провайдеры,
	// которые переписывают разметку сами; HTTP-бэкенд его игнорирует.
	Markup  string
	Options Options
}

type Result struct {
	ReplacementText string
	FoundCount      int
	ContextNotes    []string
}

// Analyzer реализуют все бэкенды анализа.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}

// TransportError - вызов анализа не удался или вернул неуспешный статус.
// StatusCode равен нулю, если ответа не было.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("analysis request failed: status %d: %s: %v", e.StatusCode, e.Message, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("analysis request failed: status %d: %s", e.StatusCode, e.Message)
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("analysis request failed: %s: %v", e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("analysis request failed: %v", e.Err)
	default:
		return "analysis request failed: " + e.Message
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// wireResponse - JSON-ответ, который разбирают оба провайдера.
type wireResponse struct {
	Neutralized   *string       `json:"neutralized"`
	BiasedPhrases []interface{} `json:"biased_phrases"`
	Context       []string      `json:"context"`
	Error         string        `json:"error,omitempty"`
}

func (w *wireResponse) result() (*Result, error) {
	if w.Neutralized == nil {
		return nil, fmt.Errorf("response has no replacement text")
	}
	notes := w.Context
	if notes == nil {
		notes = []string{}
	}
	return &Result{
		ReplacementText: *w.Neutralized,
		FoundCount:      len(w.BiasedPhrases),
		ContextNotes:    notes,
	}, nil
}
