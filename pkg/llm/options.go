package llm

// GenerationParams are the sampling settings of a deployment. They are fixed at
// startup and never taken from an inbound request.
type GenerationParams struct {
	Model            string  `json:"model" toml:"model"`
	MaxTokens        int     `json:"max_tokens" toml:"max_tokens"`
	Temperature      float64 `json:"temperature" toml:"temperature"`
	PresencePenalty  float64 `json:"presence_penalty" toml:"presence_penalty"`
	FrequencyPenalty float64 `json:"frequency_penalty" toml:"frequency_penalty"`
}

// DefaultGenerationParams returns the settings the chat relay ships with.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Model:            "gpt-4o-mini",
		MaxTokens:        250,
		Temperature:      0.9,
		PresencePenalty:  0.5,
		FrequencyPenalty: 0.9,
	}
}
