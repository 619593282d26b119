package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"biaslens/internal/config"
	"biaslens/internal/observability"
)

const systemPrompt = `You review news articles for biased language.
Return a JSON object with exactly these fields:
  "neutralized": the input rewritten with loaded or one-sided wording replaced by neutral wording; when HTML is given, keep every tag unchanged and edit only text,
  "biased_phrases": array of the biased phrases you changed,
  "context": array of short notes naming context or sources the article is missing.
Return only the JSON object.`

// ChatClient - часть *openai.Client, нужная анализатору.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIAnalyzer запрашивает у OpenAI-совместимой модели ответ той же формы,
// что и HTTP-бэкенд.
type OpenAIAnalyzer struct {
	client ChatClient
	model  string
	logger *observability.Logger
}

func NewOpenAIAnalyzer(cfg *config.Config, logger *observability.Logger) *OpenAIAnalyzer {
	clientCfg := openai.DefaultConfig(cfg.Analysis.OpenAI.APIKey)
	if cfg.Analysis.OpenAI.BaseURL != "" {
		clientCfg.BaseURL = cfg.Analysis.OpenAI.BaseURL
	}
	return &OpenAIAnalyzer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Analysis.OpenAI.Model,
		logger: logger,
	}
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	input := req.Text
	if req.Markup != "" {
		input = req.Markup
	}
	if req.Options.EnhancedMode {
		input = "Be thorough: also flag subtle framing and omissions.\n\n" + input
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
	})
	if err != nil {
		return nil, transportErrorFrom(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &TransportError{StatusCode: 200, Message: "model returned no choices"}
	}

	a.logger.Debug("Model response received",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	var wire wireResponse
	content := stripCodeFence(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		return nil, &TransportError{StatusCode: 200, Message: "model returned invalid JSON", Err: err}
	}
	result, err := wire.result()
	if err != nil {
		return nil, &TransportError{StatusCode: 200, Message: "model returned invalid JSON", Err: err}
	}
	return result, nil
}

func transportErrorFrom(err error) *TransportError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &TransportError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{StatusCode: reqErr.HTTPStatusCode, Message: "request failed", Err: err}
	}
	return &TransportError{Err: err}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
