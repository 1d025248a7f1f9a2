// Package adapt normalises the heterogeneous OpenAI-shaped request and
// response variants behind a uniform interface (spec §4.3, §9: "a closed
// tagged variant with a per-endpoint adapter table"), so the limiter, the
// worker and the router never branch on endpoint shape.
package adapt

import (
	"github.com/relayforge/gateway/model"
)

// RequestType is the fixed catalogue of client-facing endpoints (§6).
type RequestType string

const (
	TextChat        RequestType = "chat"
	TextCompletion  RequestType = "completion"
	TextEdit        RequestType = "edit"
	TextEmbedding   RequestType = "embedding"
	TextModeration  RequestType = "moderation"
	ImageGeneration RequestType = "image_generation"
	ImageEdit       RequestType = "image_edit"
	ImageVariation  RequestType = "image_variation"
	AudioTTS        RequestType = "audio_speech"
	AudioTranscription RequestType = "audio_transcription"
	AudioTranslation   RequestType = "audio_translation"
)

// TokenizerEndpoint maps a RequestType to the endpoint-default tokenizer
// bucket used by package tokenizer (chat/completion/embedding/moderation
// default to cl100k, edit defaults to p50k_edit, §4.3).
func (t RequestType) TokenizerEndpoint() string {
	if t == TextEdit {
		return "edit"
	}
	return string(t)
}

// UpstreamPath is the OpenAI-compatible HTTP path an upstream backend.Client
// issues the translated request against (§6's endpoint table).
func (t RequestType) UpstreamPath() string {
	switch t {
	case TextChat:
		return "/v1/chat/completions"
	case TextCompletion:
		return "/v1/completions"
	case TextEdit:
		return "/v1/edits"
	case TextEmbedding:
		return "/v1/embeddings"
	case TextModeration:
		return "/v1/moderations"
	case ImageGeneration:
		return "/v1/images/generations"
	case ImageEdit:
		return "/v1/images/edits"
	case ImageVariation:
		return "/v1/images/variations"
	case AudioTTS:
		return "/v1/audio/speech"
	case AudioTranscription:
		return "/v1/audio/transcriptions"
	case AudioTranslation:
		return "/v1/audio/translations"
	default:
		return ""
	}
}

// ModelMeta is the subset of a Model's configuration the adapters need to
// estimate cost, decoupled from package model so adapt has no import cycle
// back onto it beyond this read-only view.
type ModelMeta struct {
	ContextLength int
	Tokenizer     *string
	Offsets       model.TokenizerOffsets
}

// Request is the uniform view over every client request variant (§4.3).
type Request interface {
	// Type reports which endpoint this request targets.
	Type() RequestType
	// ModelLabel is the string the client used in the "model" field.
	ModelLabel() string
	// GenerationFanout is the number of independent generations this
	// request will produce upstream (n, best_of*prompts, array length, ...).
	GenerationFanout() int
	// EstimatedTokens is the tokenized length of the input, scaled by
	// GenerationFanout and capped at context_length*fanout when the
	// endpoint supports max_tokens.
	EstimatedTokens(meta ModelMeta) (int64, error)
	// MaxTokens is like EstimatedTokens but uses the client's requested
	// (or the model's context-length) output bound instead of the input length.
	MaxTokens(meta ModelMeta) (int64, error)
	// SetModelID overwrites the outgoing "model" field with the backend's
	// internal identifier and clears "stream" on variants that carry one;
	// the "user" field is left to SetUser.
	SetModelID(id string)
	// SetUser sets (or, if pseudonym == "", removes) the outgoing "user" field.
	SetUser(pseudonym string)
}

// Response is the uniform view over every upstream response variant (§4.3).
type Response interface {
	// ReportedTokens is usage.total_tokens if the upstream reported it.
	ReportedTokens() (int64, bool)
	// ReplaceModelLabel rewrites the response's "model" field to the public label.
	ReplaceModelLabel(label string)
	// ReplaceID rewrites the response's "id" field, when the variant carries one.
	ReplaceID(id string)
}

func cappedFanoutTokens(tokens int64, fanout int, contextLength int) int64 {
	scaled := tokens * int64(fanout)
	if contextLength <= 0 {
		return scaled
	}
	cap := int64(contextLength) * int64(fanout)
	if scaled > cap {
		return cap
	}
	return scaled
}
