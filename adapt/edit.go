package adapt

import (
	"github.com/relayforge/gateway/tokenizer"
)

// EditRequest is POST /v1/edits. The "edits" family is otherwise like
// completion but with an explicit instruction field instead of free prompt.
type EditRequest struct {
	Model       string  `json:"model" validate:"required"`
	Input       *string `json:"input,omitempty"`
	Instruction string  `json:"instruction" validate:"required"`
	N           *int    `json:"n,omitempty"`
}

func (r *EditRequest) Type() RequestType    { return TextEdit }
func (r *EditRequest) ModelLabel() string   { return r.Model }

func (r *EditRequest) GenerationFanout() int {
	if r.N != nil && *r.N > 0 {
		return *r.N
	}
	return 1
}

func (r *EditRequest) inputTexts() []string {
	texts := []string{r.Instruction}
	if r.Input != nil {
		texts = append(texts, *r.Input)
	}
	return texts
}

func (r *EditRequest) EstimatedTokens(meta ModelMeta) (int64, error) {
	name := tokenizer.P50kEdit
	if meta.Tokenizer != nil {
		name = tokenizer.Name(*meta.Tokenizer)
	}
	n, err := tokenizer.CountStrings(name, r.inputTexts())
	if err != nil {
		return 0, err
	}
	return cappedFanoutTokens(int64(n), r.GenerationFanout(), meta.ContextLength), nil
}

func (r *EditRequest) MaxTokens(meta ModelMeta) (int64, error) {
	return cappedFanoutTokens(int64(meta.ContextLength), r.GenerationFanout(), meta.ContextLength), nil
}

// SetModelID rewrites the outgoing model id. The edits endpoint never took a
// "stream" or "user" field in its original request shape, so only model is touched.
func (r *EditRequest) SetModelID(id string) { r.Model = id }

// SetUser is a no-op: the edits endpoint has no "user" field.
func (r *EditRequest) SetUser(string) {}

// EditResponse is the response body of POST /v1/edits. Its usage is always
// present upstream (never optional, unlike chat/completion).
type EditResponse struct {
	Usage Usage `json:"usage"`
}

func (r *EditResponse) ReportedTokens() (int64, bool) { return r.Usage.TotalTokens, true }

// ReplaceModelLabel is a no-op: the edits response carries no "model" field
// to rewrite.
func (r *EditResponse) ReplaceModelLabel(string) {}

// ReplaceID is a no-op for the same reason: no "id" field on this response shape.
func (r *EditResponse) ReplaceID(string) {}
