package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/option"
	gtransport "google.golang.org/api/transport/http"

	"github.com/Laisky/errors/v2"

	"github.com/relayforge/gateway/adapt"
	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/model"
)

// vertexaiClient calls Google Vertex AI's generateContent REST endpoint.
// Credential plumbing only; per §9/SPEC_FULL §4 it satisfies backend.Client
// with minimal chat-field translation rather than a full shape mapping.
type vertexaiClient struct {
	endpoint string
	http     *http.Client
}

type vertexContent struct {
	Role  string       `json:"role"`
	Parts []vertexPart `json:"parts"`
}

type vertexPart struct {
	Text string `json:"text"`
}

type vertexGenerateRequest struct {
	Contents []vertexContent `json:"contents"`
}

type vertexGenerateResponse struct {
	UsageMetadata struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
		TotalTokenCount      int64 `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewVertexAI builds a Client for a VertexAIBackend descriptor. It uses
// google.golang.org/api's transport helper to wrap an http.Client with the
// service account's OAuth2 credentials, rather than hand-rolling token
// injection per request.
func NewVertexAI(b model.VertexAIBackend, internalModelID string) (Client, error) {
	httpClient, err := gtransport.NewClient(context.Background(),
		option.WithCredentialsJSON(b.CredentialsJSON),
		option.WithScopes("https://www.googleapis.com/auth/cloud-platform"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build vertex ai authenticated client")
	}

	endpoint := fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		b.Location, b.ProjectID, b.Location, internalModelID,
	)

	return &vertexaiClient{endpoint: endpoint, http: httpClient}, nil
}

func (c *vertexaiClient) Call(ctx context.Context, req adapt.Request) (adapt.Response, error) {
	chat, ok := req.(*adapt.ChatRequest)
	if !ok {
		return nil, apierr.New(apierr.ModelUnavailable, "vertex ai backend only translates chat completions")
	}

	var body vertexGenerateRequest
	for _, m := range chat.Messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		body.Contents = append(body.Contents, vertexContent{Role: role, Parts: []vertexPart{{Text: m.Content}}})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apierr.Wrap(apierr.InternalError, err, "encode vertex ai request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apierr.Wrap(apierr.InternalError, err, "build vertex ai request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apierr.Wrap(apierr.BackendError, err, "call vertex ai")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.BackendError, err, "read vertex ai response")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierr.New(apierr.BackendError, "vertex ai rejected request: "+string(raw))
	}

	var out vertexGenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apierr.Wrap(apierr.BackendError, err, "decode vertex ai response")
	}

	return &adapt.ChatResponse{
		Usage: &adapt.Usage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
