package llm

// UserInfo identifies the authenticated caller in a non-streaming reply.
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ChatResponse is the body of a non-streaming relay reply.
type ChatResponse struct {
	Message string   `json:"message"` // The full assistant reply
	User    UserInfo `json:"user"`
}
