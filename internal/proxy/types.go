package proxy

import "fmt"

// ModelKind selects the completion backend.
type ModelKind string

const (
	Hosted ModelKind = "hosted"
	Local  ModelKind = "local"
)

// Tier picks the hosted model.
type Tier int

const (
	TierDefault Tier = iota
	TierPremium
)

// ParseModelType maps the client's model_type field to a backend and tier.
// "openai" and "hosted" use the default hosted model, "gpt4" the premium one.
func ParseModelType(s string) (ModelKind, Tier, error) {
	switch s {
	case "local":
		return Local, TierDefault, nil
	case "openai", "hosted":
		return Hosted, TierDefault, nil
	case "gpt4":
		return Hosted, TierPremium, nil
	default:
		return "", TierDefault, fmt.Errorf("unknown model_type %q", s)
	}
}

// Message is one OpenAI-style chat turn.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// CompletionRequest is everything a chat call site hands to the gateway.
type CompletionRequest struct {
	SystemMessage string
	UserMessage   string
	History       []Message // inserted between the system and user turns
	Kind          ModelKind
	Tier          Tier
	Temperature   float64
	MaxTokens     int // 0 leaves the backend default
}

// Messages returns the system message, history and user turn in order.
func (r CompletionRequest) Messages() []Message {
	msgs := make([]Message, 0, len(r.History)+2)
	msgs = append(msgs, Message{Role: "system", Content: r.SystemMessage})
	msgs = append(msgs, r.History...)
	return append(msgs, Message{Role: "user", Content: r.UserMessage})
}

type chatCompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

func (r chatCompletionResponse) content() (string, error) {
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return r.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}
