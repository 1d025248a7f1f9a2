package adapt

import (
	"github.com/relayforge/gateway/tokenizer"
)

// ChatMessage is one element of a chat-completion request's "messages" array.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ChatRequest is POST /v1/chat/completions.
type ChatRequest struct {
	Model     string        `json:"model" validate:"required"`
	Messages  []ChatMessage `json:"messages" validate:"required,min=1"`
	N         *int          `json:"n,omitempty"`
	MaxTokens *int          `json:"max_tokens,omitempty"`
	Stream    *bool         `json:"stream,omitempty"`
	User      *string       `json:"user,omitempty"`
}

func (r *ChatRequest) Type() RequestType    { return TextChat }
func (r *ChatRequest) ModelLabel() string   { return r.Model }

func (r *ChatRequest) GenerationFanout() int {
	if r.N != nil && *r.N > 0 {
		return *r.N
	}
	return 1
}

func (r *ChatRequest) tokenizerMessages() []tokenizer.Message {
	out := make([]tokenizer.Message, len(r.Messages))
	for i, m := range r.Messages {
		out[i] = tokenizer.Message{Role: m.Role, Content: m.Content, Name: m.Name}
	}
	return out
}

func (r *ChatRequest) EstimatedTokens(meta ModelMeta) (int64, error) {
	name := tokenizer.Cl100kBase
	if meta.Tokenizer != nil {
		name = tokenizer.Name(*meta.Tokenizer)
	}
	n, err := tokenizer.CountMessages(name, meta.Offsets, r.tokenizerMessages())
	if err != nil {
		return 0, err
	}
	return cappedFanoutTokens(int64(n), r.GenerationFanout(), meta.ContextLength), nil
}

func (r *ChatRequest) MaxTokens(meta ModelMeta) (int64, error) {
	out := int64(meta.ContextLength)
	if r.MaxTokens != nil {
		out = int64(*r.MaxTokens)
	}
	return cappedFanoutTokens(out, r.GenerationFanout(), meta.ContextLength), nil
}

func (r *ChatRequest) SetModelID(id string) {
	r.Model = id
	r.Stream = nil
}

func (r *ChatRequest) SetUser(pseudonym string) {
	if pseudonym == "" {
		r.User = nil
		return
	}
	r.User = &pseudonym
}

// Usage is the upstream token-accounting object shared by every text endpoint.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens,omitempty"`
	TotalTokens      int64 `json:"total_tokens"`
}

// ChatResponse is the response body of POST /v1/chat/completions.
type ChatResponse struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Usage *Usage `json:"usage,omitempty"`
}

func (r *ChatResponse) ReportedTokens() (int64, bool) {
	if r.Usage == nil {
		return 0, false
	}
	return r.Usage.TotalTokens, true
}

func (r *ChatResponse) ReplaceModelLabel(label string) { r.Model = label }
func (r *ChatResponse) ReplaceID(id string)            { r.ID = id }
