package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1".
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// Params are the fixed generation parameters of this deployment.
	Params llm.GenerationParams

	// Timeout bounds a whole call, including reading the stream. Zero means 5 minutes.
	Timeout time.Duration
}

// StatusError is a non-200 reply to the streaming call.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Message)
}

// OpenAIProvider streams chat completions over server-sent events.
// It is built once at startup and is safe for concurrent use.
type OpenAIProvider struct {
	config     OpenAIConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOpenAIProvider creates a provider.
func NewOpenAIProvider(config OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	timeout := config.Timeout
	if timeout <= 0 {
		// completions can be slow to finish
		timeout = 5 * time.Minute
	}

	return &OpenAIProvider{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Stream implements Provider.
func (p *OpenAIProvider) Stream(ctx context.Context, req *llm.CompletionRequest) (Stream, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:            p.config.Params.Model,
		Messages:         req.Messages,
		Stream:           true,
		MaxTokens:        p.config.Params.MaxTokens,
		Temperature:      p.config.Params.Temperature,
		PresencePenalty:  p.config.Params.PresencePenalty,
		FrequencyPenalty: p.config.Params.FrequencyPenalty,
		User:             req.User,
	})
	if err != nil {
		return nil, llm.UpstreamUnavailable(fmt.Errorf("marshal request: %w", err))
	}

	url := strings.TrimRight(p.config.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, llm.UpstreamUnavailable(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	p.logger.Debug("opening upstream stream",
		zap.String("url", url),
		zap.String("model", p.config.Params.Model),
		zap.Int("message_count", len(req.Messages)),
	)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, llm.UpstreamUnavailable(fmt.Errorf("do request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, llm.UpstreamUnavailable(readStatusError(resp))
	}

	return newEventStream(resp.Body), nil
}

func readStatusError(resp *http.Response) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	statusErr := &StatusError{StatusCode: resp.StatusCode}
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != nil {
		statusErr.Message = envelope.Error.Message
	} else {
		statusErr.Message = strings.TrimSpace(string(raw))
	}

	return statusErr
}
