package upstream

import "github.com/papercomputeco/chatrelay/pkg/llm"

// chatCompletionRequest is the OpenAI-compatible streaming request body.
type chatCompletionRequest struct {
	Model            string        `json:"model"`
	Messages         []llm.Message `json:"messages"`
	Stream           bool          `json:"stream"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	Temperature      float64       `json:"temperature"`
	PresencePenalty  float64       `json:"presence_penalty"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	User             string        `json:"user,omitempty"`
}

// chatCompletionChunk is one SSE data payload.
type chatCompletionChunk struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
	Error   *apiError     `json:"error,omitempty"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error *apiError `json:"error"`
}
