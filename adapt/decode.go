package adapt

import (
	"encoding/json"

	"github.com/Laisky/errors/v2"
	"github.com/go-playground/validator/v10"
)

// validate runs the struct-tag checks declared on each Request variant
// (required fields, minimum array lengths). A single package-level instance
// is reused across calls, following validator/v10's own documented
// convention that instances are safe for concurrent use and expensive to
// recreate per call.
var validate = validator.New()

// DecodeRequest parses body as the Request variant named by t. Multipart
// endpoints (image edit/variation, transcription, translation) are expected
// to have already had their non-file form fields folded into JSON-shaped
// bytes by the HTTP layer before reaching here, keeping this package free of
// any multipart-parsing concern (§1 Non-goals: the HTTP framework itself is
// an external collaborator).
func DecodeRequest(t RequestType, body []byte) (Request, error) {
	var req Request
	switch t {
	case TextChat:
		req = &ChatRequest{}
	case TextCompletion:
		req = &CompletionRequest{}
	case TextEdit:
		req = &EditRequest{}
	case TextEmbedding:
		req = &EmbeddingRequest{}
	case TextModeration:
		req = &ModerationRequest{}
	case ImageGeneration:
		req = &ImageGenerationRequest{}
	case ImageEdit:
		req = &ImageEditRequest{}
	case ImageVariation:
		req = &ImageVariationRequest{}
	case AudioTTS:
		req = &AudioTTSRequest{}
	case AudioTranscription:
		req = &TranscriptionRequest{}
	case AudioTranslation:
		req = &TranslationRequest{}
	default:
		return nil, errors.Errorf("unrecognized request type %q", t)
	}

	if len(body) > 0 {
		if err := json.Unmarshal(body, req); err != nil {
			return nil, errors.Wrap(err, "decode request body")
		}
	}

	if err := validate.Struct(req); err != nil {
		return nil, errors.Wrap(err, "request body failed validation")
	}

	return req, nil
}

// NewResponse allocates the zero-value Response variant for t, ready to be
// json.Unmarshal'd from the upstream's raw body.
func NewResponse(t RequestType) (Response, error) {
	switch t {
	case TextChat:
		return &ChatResponse{}, nil
	case TextCompletion:
		return &CompletionResponse{}, nil
	case TextEdit:
		return &EditResponse{}, nil
	case TextEmbedding:
		return &EmbeddingResponse{}, nil
	case TextModeration:
		return &ModerationResponse{}, nil
	case ImageGeneration, ImageEdit, ImageVariation:
		return &ImageResponse{}, nil
	case AudioTTS, AudioTranscription, AudioTranslation:
		return &AudioResponse{}, nil
	default:
		return nil, errors.Errorf("unrecognized request type %q", t)
	}
}
