package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/spacesedan/forumpulse/internal/models"
)

const llmRequestTimeout = 120 * time.Second

// LLMClient talks to a local OpenAI-compatible server (llama.cpp, Ollama, vLLM).
type LLMClient struct {
	client *openai.Client
	model  string
}

type LLMConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	MaxRetries int
}

func NewLLMClient(cfg LLMConfig) *LLMClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: llmRequestTimeout}
	}
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}

	slog.Info("[LLMClient] Model client initialized",
		slog.String("base_url", cfg.BaseURL),
		slog.String("model", cfg.Model))

	return &LLMClient{client: openai.NewClient(opts...), model: cfg.Model}
}

func (c *LLMClient) params(p models.Prompt) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	messages = append(messages, openai.UserMessage(p.User))

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(openai.ChatModel(c.model)),
		Temperature: openai.Float(p.Temperature),
	}
	if p.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.MaxTokens))
	}
	return params
}

// Complete runs one blocking chat completion and returns the first choice.
func (c *LLMClient) Complete(ctx context.Context, p models.Prompt) (string, error) {
	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, c.params(p))
	if err != nil {
		return "", modelError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", models.ErrMalformedModelResponse)
	}

	slog.Debug("[LLMClient] Completion finished",
		slog.Duration("took", time.Since(start)),
		slog.Int64("completion_tokens", resp.Usage.CompletionTokens))
	return resp.Choices[0].Message.Content, nil
}

// Stream runs a streaming chat completion. Deltas arrive in order on the first
// channel; the error channel yields at most one error. Both close when the
// stream ends or ctx is done.
func (c *LLMClient) Stream(ctx context.Context, p models.Prompt) (<-chan string, <-chan error) {
	deltas := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errc)

		start := time.Now()
		stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(p))
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case deltas <- delta:
			case <-ctx.Done():
				errc <- modelError(ctx, ctx.Err())
				return
			}
		}
		if err := stream.Err(); err != nil {
			slog.Warn("[LLMClient] Stream ended with error",
				slog.Duration("after", time.Since(start)),
				slog.Any("error", err))
			errc <- modelError(ctx, err)
			return
		}
		slog.Debug("[LLMClient] Stream finished", slog.Duration("took", time.Since(start)))
	}()

	return deltas, errc
}

// Ping lists the served models as a cheap liveness probe.
func (c *LLMClient) Ping(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx); err != nil {
		return modelError(ctx, err)
	}
	return nil
}

// modelError folds transport and API failures into the model error kinds.
// Caller cancellation passes through unchanged.
func modelError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrModelTimeout, err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %v", models.ErrModelUnavailable, apiErr.StatusCode, err)
	}
	return fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
}
