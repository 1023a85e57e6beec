package llm

import "context"

// Message roles.
const (
	// RoleUser marks a message authored by the caller.
	RoleUser = "user"

	// RoleAssistant marks a message authored by the model.
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation sent to the provider.
type Message struct {
	// Role is the message author role (RoleUser or RoleAssistant).
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// UserMessage returns a single-element message slice containing one user
// message. Most pipeline call sites send exactly one user turn.
func UserMessage(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// Provider is the consumed contract of the host application's LLM layer.
// Implementations map the tier to a concrete model and return the
// generated text verbatim.
type Provider interface {
	// Generate produces a completion for the given system prompt and
	// conversation at the requested tier.
	Generate(ctx context.Context, systemPrompt string, messages []Message, tier Tier) (string, error)
}
