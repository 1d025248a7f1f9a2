package adapt

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/relayforge/gateway/tokenizer"
)

// EmbeddingInput mirrors Prompt's four-shape union (string / string array /
// token array / array of token arrays).
type EmbeddingInput struct {
	Strings    []string
	TokenArray [][]int
}

func (e *EmbeddingInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		e.Strings = []string{s}
		return nil
	}

	var strs []string
	if err := json.Unmarshal(b, &strs); err == nil {
		e.Strings = strs
		return nil
	}

	var ints []int
	if err := json.Unmarshal(b, &ints); err == nil {
		e.TokenArray = [][]int{ints}
		return nil
	}

	var intArrays [][]int
	if err := json.Unmarshal(b, &intArrays); err == nil {
		e.TokenArray = intArrays
		return nil
	}

	return errors.New("embedding input must be a string, a string array, a token array, or a token-array array")
}

func (e EmbeddingInput) MarshalJSON() ([]byte, error) {
	if len(e.Strings) == 1 {
		return json.Marshal(e.Strings[0])
	}
	if len(e.Strings) > 0 {
		return json.Marshal(e.Strings)
	}
	if len(e.TokenArray) == 1 {
		return json.Marshal(e.TokenArray[0])
	}
	return json.Marshal(e.TokenArray)
}

func (e EmbeddingInput) arrayLen() int {
	if len(e.Strings) > 0 {
		return len(e.Strings)
	}
	return len(e.TokenArray)
}

func (e EmbeddingInput) tokenCount(name tokenizer.Name) (int64, error) {
	if len(e.Strings) > 0 {
		n, err := tokenizer.CountStrings(name, e.Strings)
		return int64(n), err
	}
	var total int64
	for _, arr := range e.TokenArray {
		total += int64(len(arr))
	}
	return total, nil
}

// EmbeddingRequest is POST /v1/embeddings.
type EmbeddingRequest struct {
	Model string         `json:"model" validate:"required"`
	Input EmbeddingInput `json:"input"`
	User  *string        `json:"user,omitempty"`
}

func (r *EmbeddingRequest) Type() RequestType  { return TextEmbedding }
func (r *EmbeddingRequest) ModelLabel() string { return r.Model }

// GenerationFanout is the array length for array input, else 1 (§4.3).
func (r *EmbeddingRequest) GenerationFanout() int {
	n := r.Input.arrayLen()
	if n < 1 {
		return 1
	}
	return n
}

func (r *EmbeddingRequest) EstimatedTokens(meta ModelMeta) (int64, error) {
	name := tokenizer.Cl100kBase
	if meta.Tokenizer != nil {
		name = tokenizer.Name(*meta.Tokenizer)
	}
	n, err := r.Input.tokenCount(name)
	if err != nil {
		return 0, err
	}
	// Embedding has no output side; estimated and max are the same input scan.
	return cappedFanoutTokens(n, 1, meta.ContextLength), nil
}

// MaxTokens: embeddings have no max_tokens concept upstream (§4.3: "None" for
// endpoints that don't support max_tokens); return the same input estimate.
func (r *EmbeddingRequest) MaxTokens(meta ModelMeta) (int64, error) {
	return r.EstimatedTokens(meta)
}

func (r *EmbeddingRequest) SetModelID(id string) { r.Model = id }

func (r *EmbeddingRequest) SetUser(pseudonym string) {
	if pseudonym == "" {
		r.User = nil
		return
	}
	r.User = &pseudonym
}

// EmbeddingResponse is the response body of POST /v1/embeddings.
type EmbeddingResponse struct {
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

func (r *EmbeddingResponse) ReportedTokens() (int64, bool) { return r.Usage.TotalTokens, true }
func (r *EmbeddingResponse) ReplaceModelLabel(label string) { r.Model = label }
func (r *EmbeddingResponse) ReplaceID(string)                {}
