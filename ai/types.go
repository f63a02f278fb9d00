package ai

// IndexedEmbedding is a provider result tagged with the position of its input text.
type IndexedEmbedding struct {
	Index  int
	Vector []float32
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is a single bounded LLM call.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  float64
}
