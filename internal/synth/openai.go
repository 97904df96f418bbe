package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	"dubline/internal/services"
)

const (
	openAIProvider   = "openai"
	openAISampleRate = 24000
	maxSpeechBytes   = 64 << 20
)

// OpenAI synthesizes through the OpenAI speech endpoint (or a compatible
// server) with PCM output at 24 kHz mono.
type OpenAI struct {
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewOpenAI returns a provider targeting baseURL; empty uses the library default.
func NewOpenAI(baseURL string, httpClient *http.Client) *OpenAI {
	return &OpenAI{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
		clients:    make(map[string]*openai.Client),
	}
}

func (o *OpenAI) Name() string { return openAIProvider }

func (o *OpenAI) client(apiKey string) *openai.Client {
	o.mu.Lock()
	defer o.mu.Unlock()
	if c, ok := o.clients[apiKey]; ok {
		return c
	}
	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	c := openai.NewClientWithConfig(cfg)
	o.clients[apiKey] = c
	return c
}

// Synthesize issues one speech request.
func (o *OpenAI) Synthesize(ctx context.Context, req Request) (Audio, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Audio{}, services.Wrap(services.ErrValidation, "synth", "openai", "empty text", nil)
	}
	if strings.TrimSpace(req.APIKey) == "" {
		return Audio{}, &services.ProviderError{
			Marker:   services.ErrInvalidCredential,
			Provider: openAIProvider,
			Message:  fmt.Sprintf("credential %q has no api key", req.CredentialID),
		}
	}
	voice := req.Voice
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	resp, err := o.client(req.APIKey).CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(req.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return Audio{}, classifyOpenAIError(err)
	}
	defer resp.Close()
	pcm, err := io.ReadAll(io.LimitReader(resp, maxSpeechBytes))
	if err != nil {
		return Audio{}, &services.ProviderError{
			Marker:   services.ErrTransient,
			Provider: openAIProvider,
			Message:  "read speech body",
			Err:      err,
		}
	}
	return Audio{PCM: pcm, SampleRate: openAISampleRate, Channels: 1}, nil
}

func classifyOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = fmt.Sprint(apiErr.Code)
		}
		return services.ClassifyHTTP(services.HTTPFailure{
			Provider:   openAIProvider,
			StatusCode: apiErr.HTTPStatusCode,
			Code:       code + " " + apiErr.Type,
			Message:    apiErr.Message,
			Err:        err,
		})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return services.ClassifyHTTP(services.HTTPFailure{
			Provider:   openAIProvider,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.HTTPStatus,
			Err:        err,
		})
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &services.ProviderError{Marker: services.ErrTimeout, Provider: openAIProvider, Err: err}
	}
	return services.ClassifyHTTP(services.HTTPFailure{Provider: openAIProvider, Err: err})
}
