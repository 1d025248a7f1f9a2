package adapt

// Image endpoints have no text-token cost; the input side is accounted in
// "one unit per generated image" instead of BPE tokens (the requested count,
// `r.n`).

// ImageGenerationRequest is POST /v1/images/generations.
type ImageGenerationRequest struct {
	Model  *string `json:"model,omitempty"`
	Prompt string  `json:"prompt"`
	N      *int    `json:"n,omitempty"`
	User   *string `json:"user,omitempty"`
}

func (r *ImageGenerationRequest) Type() RequestType { return ImageGeneration }

func (r *ImageGenerationRequest) ModelLabel() string {
	if r.Model != nil && *r.Model != "" {
		return *r.Model
	}
	return "dall-e-2"
}

func (r *ImageGenerationRequest) GenerationFanout() int {
	if r.N != nil && *r.N > 0 {
		return *r.N
	}
	return 1
}

func (r *ImageGenerationRequest) EstimatedTokens(ModelMeta) (int64, error) {
	return int64(r.GenerationFanout()), nil
}

func (r *ImageGenerationRequest) MaxTokens(meta ModelMeta) (int64, error) {
	return r.EstimatedTokens(meta)
}

func (r *ImageGenerationRequest) SetModelID(id string) { r.Model = &id }

func (r *ImageGenerationRequest) SetUser(pseudonym string) {
	if pseudonym == "" {
		r.User = nil
		return
	}
	r.User = &pseudonym
}

// ImageEditRequest is POST /v1/images/edits (multipart/form-data: image, mask, prompt, n).
type ImageEditRequest struct {
	Model  *string `json:"model,omitempty"`
	Prompt string  `json:"prompt"`
	N      *int    `json:"n,omitempty"`
	User   *string `json:"user,omitempty"`
}

func (r *ImageEditRequest) Type() RequestType { return ImageEdit }

func (r *ImageEditRequest) ModelLabel() string {
	if r.Model != nil && *r.Model != "" {
		return *r.Model
	}
	return "dall-e-2"
}

func (r *ImageEditRequest) GenerationFanout() int {
	if r.N != nil && *r.N > 0 {
		return *r.N
	}
	return 1
}

func (r *ImageEditRequest) EstimatedTokens(ModelMeta) (int64, error) {
	return int64(r.GenerationFanout()), nil
}

func (r *ImageEditRequest) MaxTokens(meta ModelMeta) (int64, error) {
	return r.EstimatedTokens(meta)
}

func (r *ImageEditRequest) SetModelID(id string) { r.Model = &id }

func (r *ImageEditRequest) SetUser(pseudonym string) {
	if pseudonym == "" {
		r.User = nil
		return
	}
	r.User = &pseudonym
}

// ImageVariationRequest is POST /v1/images/variations (multipart: image, n).
type ImageVariationRequest struct {
	Model *string `json:"model,omitempty"`
	N     *int    `json:"n,omitempty"`
	User  *string `json:"user,omitempty"`
}

func (r *ImageVariationRequest) Type() RequestType { return ImageVariation }

func (r *ImageVariationRequest) ModelLabel() string {
	if r.Model != nil && *r.Model != "" {
		return *r.Model
	}
	return "dall-e-2"
}

func (r *ImageVariationRequest) GenerationFanout() int {
	if r.N != nil && *r.N > 0 {
		return *r.N
	}
	return 1
}

func (r *ImageVariationRequest) EstimatedTokens(ModelMeta) (int64, error) {
	return int64(r.GenerationFanout()), nil
}

func (r *ImageVariationRequest) MaxTokens(meta ModelMeta) (int64, error) {
	return r.EstimatedTokens(meta)
}

func (r *ImageVariationRequest) SetModelID(id string) { r.Model = &id }

func (r *ImageVariationRequest) SetUser(pseudonym string) {
	if pseudonym == "" {
		r.User = nil
		return
	}
	r.User = &pseudonym
}

// ImageResponse is the shared response body of all three image endpoints.
type ImageResponse struct {
	Data []struct {
		URL     string `json:"url,omitempty"`
		B64JSON string `json:"b64_json,omitempty"`
	} `json:"data"`
}

// ReportedTokens is the count of generated images returned in the response.
func (r *ImageResponse) ReportedTokens() (int64, bool) { return int64(len(r.Data)), true }

// ReplaceModelLabel is a no-op: the image response shape carries no "model" field.
func (r *ImageResponse) ReplaceModelLabel(string) {}

// ReplaceID is a no-op for the same reason.
func (r *ImageResponse) ReplaceID(string) {}
