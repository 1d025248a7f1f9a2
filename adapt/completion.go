package adapt

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/relayforge/gateway/tokenizer"
)

// Prompt is CreateCompletionRequest's "prompt" field, which OpenAI allows to
// be a string, an array of strings, an array of token ids, or an array of
// arrays of token ids.
type Prompt struct {
	Strings    []string
	TokenArray [][]int
}

// UnmarshalJSON accepts any of the four prompt shapes.
func (p *Prompt) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		p.Strings = []string{s}
		return nil
	}

	var strs []string
	if err := json.Unmarshal(b, &strs); err == nil {
		p.Strings = strs
		return nil
	}

	var ints []int
	if err := json.Unmarshal(b, &ints); err == nil {
		p.TokenArray = [][]int{ints}
		return nil
	}

	var intArrays [][]int
	if err := json.Unmarshal(b, &intArrays); err == nil {
		p.TokenArray = intArrays
		return nil
	}

	return errors.New("prompt must be a string, a string array, a token array, or a token-array array")
}

// MarshalJSON renders back to whichever shape was parsed, preferring strings.
func (p Prompt) MarshalJSON() ([]byte, error) {
	if len(p.Strings) == 1 {
		return json.Marshal(p.Strings[0])
	}
	if len(p.Strings) > 0 {
		return json.Marshal(p.Strings)
	}
	if len(p.TokenArray) == 1 {
		return json.Marshal(p.TokenArray[0])
	}
	return json.Marshal(p.TokenArray)
}

func (p Prompt) promptCount() int {
	if len(p.Strings) > 0 {
		return len(p.Strings)
	}
	return len(p.TokenArray)
}

func (p Prompt) tokenCount(name tokenizer.Name) (int64, error) {
	if len(p.Strings) > 0 {
		n, err := tokenizer.CountStrings(name, p.Strings)
		return int64(n), err
	}
	var total int64
	for _, arr := range p.TokenArray {
		total += int64(len(arr))
	}
	return total, nil
}

// CompletionRequest is POST /v1/completions.
type CompletionRequest struct {
	Model     string `json:"model" validate:"required"`
	Prompt    Prompt `json:"prompt"`
	N         *int   `json:"n,omitempty"`
	BestOf    *int   `json:"best_of,omitempty"`
	MaxTokens *int   `json:"max_tokens,omitempty"`
	Stream    *bool  `json:"stream,omitempty"`
	User      *string `json:"user,omitempty"`
}

func (r *CompletionRequest) Type() RequestType  { return TextCompletion }
func (r *CompletionRequest) ModelLabel() string { return r.Model }

// GenerationFanout is max(best_of, n) * number of prompts (§4.3).
func (r *CompletionRequest) GenerationFanout() int {
	n := 1
	if r.N != nil && *r.N > 0 {
		n = *r.N
	}
	bestOf := 1
	if r.BestOf != nil && *r.BestOf > 0 {
		bestOf = *r.BestOf
	}
	if bestOf > n {
		n = bestOf
	}
	prompts := r.Prompt.promptCount()
	if prompts < 1 {
		prompts = 1
	}
	return n * prompts
}

func (r *CompletionRequest) EstimatedTokens(meta ModelMeta) (int64, error) {
	name := tokenizer.Cl100kBase
	if meta.Tokenizer != nil {
		name = tokenizer.Name(*meta.Tokenizer)
	}
	n, err := r.Prompt.tokenCount(name)
	if err != nil {
		return 0, err
	}
	return cappedFanoutTokens(n, r.GenerationFanout(), meta.ContextLength), nil
}

func (r *CompletionRequest) MaxTokens(meta ModelMeta) (int64, error) {
	out := int64(meta.ContextLength)
	if r.MaxTokens != nil {
		out = int64(*r.MaxTokens)
	}
	return cappedFanoutTokens(out, r.GenerationFanout(), meta.ContextLength), nil
}

func (r *CompletionRequest) SetModelID(id string) {
	r.Model = id
	r.Stream = nil
}

func (r *CompletionRequest) SetUser(pseudonym string) {
	if pseudonym == "" {
		r.User = nil
		return
	}
	r.User = &pseudonym
}

// CompletionResponse is the response body of POST /v1/completions.
type CompletionResponse struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Usage *Usage `json:"usage,omitempty"`
}

func (r *CompletionResponse) ReportedTokens() (int64, bool) {
	if r.Usage == nil {
		return 0, false
	}
	return r.Usage.TotalTokens, true
}

func (r *CompletionResponse) ReplaceModelLabel(label string) { r.Model = label }
func (r *CompletionResponse) ReplaceID(id string)             { r.ID = id }
