package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dubline/internal/logging"
	"dubline/internal/retry"
	"dubline/internal/services"
	"dubline/internal/textutil"
)

const (
	llmProvider           = "translator"
	jsonResponseType      = "json_object"
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 5
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	maxHistoryTurns       = 3
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	RetryAttempts  int
}

// LLMClient translates through an OpenAI-compatible chat completion API.
type LLMClient struct {
	cfg        Config
	style      Style
	system     string
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*LLMClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *LLMClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *LLMClient) {
		c.policy.BaseDelay = baseDelay
		c.policy.MaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *LLMClient) {
		c.policy.Sleep = sleep
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *LLMClient) {
		c.logger = logger
	}
}

// NewLLMClient constructs a translator. A missing API key or target language
// is a configuration error.
func NewLLMClient(cfg Config, style Style, opts ...Option) (*LLMClient, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "translate", "new", "translation api key required", nil)
	}
	if strings.TrimSpace(style.TargetLanguage) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "translate", "new", "target language required", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	client := &LLMClient{
		cfg:        cfg,
		style:      style,
		system:     SystemPrompt(style),
		httpClient: &http.Client{Timeout: timeout},
		policy: retry.Policy{
			MaxAttempts: attempts,
			BaseDelay:   defaultRetryBaseDelay,
			MaxDelay:    defaultRetryMaxDelay,
			Retryable:   retryable,
			Hint:        services.ResetHint,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "translate")
	client.policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		client.logger.Info("translation retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}
	return client, nil
}

func retryable(err error) bool {
	var empty *emptyContentError
	if errors.As(err, &empty) {
		return true
	}
	switch services.Classify(err) {
	case services.ClassTransient, services.ClassThrottled:
		return true
	}
	return false
}

type translationPayload struct {
	Translation string `json:"translation"`
}

// Translate returns the translated text for req.
func (c *LLMClient) Translate(ctx context.Context, req Request) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", nil
	}
	payload := chatCompletionRequest{
		Model:          c.cfg.Model,
		Messages:       c.messages(text, req.History),
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	content, err := c.completionContent(ctx, payload, fmt.Sprintf("translate chunk %d", req.Index))
	if err != nil {
		return "", err
	}
	var parsed translationPayload
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "translate", "decode", "parse translation payload", err)
	}
	translation := textutil.NormalizeText(parsed.Translation)
	if translation == "" {
		return "", services.Wrap(services.ErrExternalTool, "translate", "decode", "empty translation", nil)
	}
	return translation, nil
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *LLMClient) HealthCheck(ctx context.Context) error {
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You must respond with JSON only."},
			{Role: "user", Content: "Respond with {\"ok\":true}"},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": jsonResponseType},
	}
	content, err := c.completionContent(ctx, payload, "translate health")
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("translate health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("translate health: unexpected response")
	}
	return nil
}

func (c *LLMClient) messages(text string, history []Turn) []chatMessage {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	msgs := make([]chatMessage, 0, 2+2*len(history))
	msgs = append(msgs, chatMessage{Role: "system", Content: c.system})
	for _, turn := range history {
		if strings.TrimSpace(turn.Source) == "" || strings.TrimSpace(turn.Translation) == "" {
			continue
		}
		answer, _ := json.Marshal(translationPayload{Translation: turn.Translation})
		msgs = append(msgs,
			chatMessage{Role: "user", Content: turn.Source},
			chatMessage{Role: "assistant", Content: string(answer)},
		)
	}
	return append(msgs, chatMessage{Role: "user", Content: text})
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema (delta) even when
		// stream=false.
		Delta        chatCompletionMessage `json:"delta"`
		Text         string                `json:"text"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

func (c *LLMClient) completionContent(ctx context.Context, payload chatCompletionRequest, op string) (string, error) {
	var content string
	err := c.policy.Do(ctx, func(ctx context.Context, _ int) error {
		completion, body, err := c.sendChatRequestOnce(ctx, payload)
		if err != nil {
			return err
		}
		text, finishReason := extractCompletionPayload(completion)
		if text != "" {
			content = text
			return nil
		}
		refusal := extractCompletionRefusal(completion)
		if refusal != "" || finishReason == "content_filter" {
			return &services.ProviderError{
				Marker:   services.ErrContentRejected,
				Provider: llmProvider,
				Message:  firstNonEmpty(refusal, "finish_reason="+finishReason),
			}
		}
		return &emptyContentError{
			Op:           op,
			FinishReason: finishReason,
			Snippet:      textutil.Snippet(string(body), 160),
		}
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return content, nil
}

func extractCompletionPayload(completion chatCompletionResponse) (string, string) {
	var finishReason string
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if content := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content, finishReason
		}
	}
	return "", finishReason
}

func extractCompletionRefusal(completion chatCompletionResponse) string {
	for _, choice := range completion.Choices {
		if refusal := firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal); refusal != "" {
			return refusal
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (c *LLMClient) sendChatRequestOnce(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	endpoint, err := url.JoinPath(c.cfg.BaseURL, "")
	if err != nil {
		return completion, nil, fmt.Errorf("translate request: build url: %w", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, fmt.Errorf("translate request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, fmt.Errorf("translate request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return completion, nil, err
		}
		return completion, nil, services.ClassifyHTTP(services.HTTPFailure{
			Provider: llmProvider,
			Message:  fmt.Sprintf("http error (timeout=%s)", c.httpClient.Timeout),
			Err:      err,
		})
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, services.ClassifyHTTP(services.HTTPFailure{
			Provider: llmProvider,
			Message:  "read body",
			Err:      err,
		})
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := services.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return completion, body, services.ClassifyHTTP(services.HTTPFailure{
			Provider:   llmProvider,
			StatusCode: resp.StatusCode,
			Message:    textutil.Snippet(string(body), 300),
			RetryAfter: retryAfter,
		})
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, services.Wrap(services.ErrExternalTool, "translate", "decode", "decode response", err)
	}
	if completion.Error != nil {
		code := ""
		if completion.Error.Code != nil {
			code = fmt.Sprint(completion.Error.Code)
		}
		status := http.StatusBadRequest
		if n, ok := completion.Error.Code.(float64); ok && n >= 400 {
			status = int(n)
		}
		return completion, body, services.ClassifyHTTP(services.HTTPFailure{
			Provider:   llmProvider,
			StatusCode: status,
			Code:       code,
			Message:    completion.Error.Message,
		})
	}
	return completion, body, nil
}
