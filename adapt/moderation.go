package adapt

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"

	"github.com/relayforge/gateway/tokenizer"
)

// ModerationInput is a string or an array of strings.
type ModerationInput struct {
	Strings []string
}

func (m *ModerationInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		m.Strings = []string{s}
		return nil
	}

	var strs []string
	if err := json.Unmarshal(b, &strs); err == nil {
		m.Strings = strs
		return nil
	}

	return errors.New("moderation input must be a string or a string array")
}

func (m ModerationInput) MarshalJSON() ([]byte, error) {
	if len(m.Strings) == 1 {
		return json.Marshal(m.Strings[0])
	}
	return json.Marshal(m.Strings)
}

// ModerationRequest is POST /v1/moderations.
type ModerationRequest struct {
	Model *string         `json:"model,omitempty"`
	Input ModerationInput `json:"input"`
}

func (r *ModerationRequest) Type() RequestType { return TextModeration }

// ModelLabel defaults to "text-moderation-latest" when unset.
func (r *ModerationRequest) ModelLabel() string {
	if r.Model != nil && *r.Model != "" {
		return *r.Model
	}
	return "text-moderation-latest"
}

// GenerationFanout is the array length for array input, else 1 (§4.3).
func (r *ModerationRequest) GenerationFanout() int {
	if len(r.Strings()) < 1 {
		return 1
	}
	return len(r.Strings())
}

// Strings exposes the underlying moderation input list.
func (r *ModerationRequest) Strings() []string { return r.Input.Strings }

func (r *ModerationRequest) EstimatedTokens(meta ModelMeta) (int64, error) {
	name := tokenizer.Cl100kBase
	if meta.Tokenizer != nil {
		name = tokenizer.Name(*meta.Tokenizer)
	}
	n, err := tokenizer.CountStrings(name, r.Strings())
	if err != nil {
		return 0, err
	}
	return cappedFanoutTokens(int64(n), 1, meta.ContextLength), nil
}

// MaxTokens: moderation has no output/max_tokens concept (§4.3).
func (r *ModerationRequest) MaxTokens(meta ModelMeta) (int64, error) {
	return r.EstimatedTokens(meta)
}

func (r *ModerationRequest) SetModelID(id string) { r.Model = &id }

// SetUser is a no-op: the moderation endpoint has no "user" field.
func (r *ModerationRequest) SetUser(string) {}

// ModerationResponse is the response body of POST /v1/moderations. It
// reports no usage (§4.3: "reported_tokens() ... None").
type ModerationResponse struct {
	ID    string `json:"id"`
	Model string `json:"model"`
}

func (r *ModerationResponse) ReportedTokens() (int64, bool) { return 0, false }
func (r *ModerationResponse) ReplaceModelLabel(label string) { r.Model = label }
func (r *ModerationResponse) ReplaceID(id string)             { r.ID = id }
