package llm

// ChatRequest is the inbound body of both relay endpoints.
type ChatRequest struct {
	Messages []Message `json:"messages"`       // Prior turns, oldest first
	Text     string    `json:"text,omitempty"` // Optional new user input appended after Messages
}

// Turns returns the conversation to forward: Messages followed by Text as a
// user turn when present. Messages is never modified.
func (r *ChatRequest) Turns() []Message {
	if r.Text == "" {
		return r.Messages
	}

	turns := make([]Message, 0, len(r.Messages)+1)
	turns = append(turns, r.Messages...)
	return append(turns, Message{Role: RoleUser, Content: r.Text})
}

// CompletionRequest is what the relay asks of a completion provider.
type CompletionRequest struct {
	// Messages is the assembled list, system directive first.
	Messages []Message

	// User is the principal id, forwarded for provider-side abuse monitoring.
	User string
}
