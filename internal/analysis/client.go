package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"biaslens/internal/config"
	"biaslens/internal/observability"
)

const (
	maxResponseBytes = 10 << 20
	// длина сырого тела ответа (не JSON) в сообщении об ошибке, в рунах
	maxErrorBodyRunes = 200
)

// Client вызывает бэкенд анализа одним POST-запросом без повторов: ошибка
// завершает прогон.
type Client struct {
	url    string
	http   *http.Client
	logger *observability.Logger
}

type wireRequest struct {
	Text         string `json:"text"`
	EnhancedMode bool   `json:"enhancedMode"`
	APIKey       string `json:"apiKey,omitempty"`
	URL          string `json:"url,omitempty"`
}

func NewClient(cfg *config.Config, logger *observability.Logger) *Client {
	return &Client{
		url:    strings.TrimRight(cfg.Analysis.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Analysis.Endpoint, "/"),
		http:   &http.Client{Timeout: cfg.GetAnalysisTimeout()},
		logger: logger,
	}
}

func (c *Client) Analyze(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(wireRequest{
		Text:         req.Text,
		EnhancedMode: req.Options.EnhancedMode,
		APIKey:       req.Options.APIKey,
		URL:          req.Options.URL,
	})
	if err != nil {
		return nil, &TransportError{Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.Options.APIKey != "" {
		httpReq.Header.Set("X-OpenAI-Key", req.Options.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err.Error())
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	c.logger.Debug("Analysis response received",
		"url", c.url,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw)}
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	result, err := wire.result()
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return result, nil
}

// errorMessage берёт поле error из JSON-ответа без изменений, иначе начало
// тела ответа, иначе текст статуса.
func errorMessage(status int, raw []byte) string {
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err == nil && wire.Error != "" {
		return wire.Error
	}
	if text := strings.TrimSpace(strings.ToValidUTF8(string(raw), "\uFFFD")); text != "" {
		return truncateRunes(text, maxErrorBodyRunes)
	}
	return fmt.Sprintf("HTTP error! status: %d %s", status, http.StatusText(status))
}

// truncateRunes режет по границе руны и добавляет "…", если текст длиннее limit.
func truncateRunes(text string, limit int) string {
	n := 0
	for i := range text {
		if n == limit {
			return text[:i] + "…"
		}
		n++
	}
	return text
}
