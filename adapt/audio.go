package adapt

import (
	"github.com/relayforge/gateway/tokenizer"
)

// AudioTTSRequest is POST /v1/audio/speech. Unlike transcription/translation
// it carries a real text input, so it is still token-estimable.
type AudioTTSRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

func (r *AudioTTSRequest) Type() RequestType     { return AudioTTS }
func (r *AudioTTSRequest) ModelLabel() string    { return r.Model }
func (r *AudioTTSRequest) GenerationFanout() int { return 1 }

func (r *AudioTTSRequest) EstimatedTokens(meta ModelMeta) (int64, error) {
	name := tokenizer.Cl100kBase
	if meta.Tokenizer != nil {
		name = tokenizer.Name(*meta.Tokenizer)
	}
	n, err := tokenizer.CountText(name, r.Input)
	return int64(n), err
}

func (r *AudioTTSRequest) MaxTokens(meta ModelMeta) (int64, error) {
	return r.EstimatedTokens(meta)
}

func (r *AudioTTSRequest) SetModelID(id string) { r.Model = id }
func (r *AudioTTSRequest) SetUser(string)       {}

// TranscriptionRequest is POST /v1/audio/transcriptions (multipart: file, model, prompt).
// The binary audio payload carries no BPE-token cost; only the optional
// text prompt is estimable, and even that is treated as zero-cost to match
// the "no token accounting for audio" decision.
type TranscriptionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt,omitempty"`
}

func (r *TranscriptionRequest) Type() RequestType     { return AudioTranscription }
func (r *TranscriptionRequest) ModelLabel() string    { return r.Model }
func (r *TranscriptionRequest) GenerationFanout() int { return 1 }
func (r *TranscriptionRequest) EstimatedTokens(ModelMeta) (int64, error) { return 0, nil }
func (r *TranscriptionRequest) MaxTokens(ModelMeta) (int64, error)       { return 0, nil }
func (r *TranscriptionRequest) SetModelID(id string)                    { r.Model = id }
func (r *TranscriptionRequest) SetUser(string)                          {}

// TranslationRequest is POST /v1/audio/translations (multipart: file, model, prompt).
type TranslationRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt,omitempty"`
}

func (r *TranslationRequest) Type() RequestType     { return AudioTranslation }
func (r *TranslationRequest) ModelLabel() string    { return r.Model }
func (r *TranslationRequest) GenerationFanout() int { return 1 }
func (r *TranslationRequest) EstimatedTokens(ModelMeta) (int64, error) { return 0, nil }
func (r *TranslationRequest) MaxTokens(ModelMeta) (int64, error)       { return 0, nil }
func (r *TranslationRequest) SetModelID(id string)                    { r.Model = id }
func (r *TranslationRequest) SetUser(string)                          {}

// AudioResponse is the shared response shape of all three audio endpoints:
// transcription/translation return {"text": "..."}, speech returns raw bytes
// handled separately by the backend client and never reaches this adapter.
type AudioResponse struct {
	Text string `json:"text"`
}

func (r *AudioResponse) ReportedTokens() (int64, bool)  { return 0, false }
func (r *AudioResponse) ReplaceModelLabel(string)        {}
func (r *AudioResponse) ReplaceID(string)                {}
