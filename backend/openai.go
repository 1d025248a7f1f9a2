package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"

	"github.com/relayforge/gateway/adapt"
	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/common/client"
	"github.com/relayforge/gateway/common/config"
	"github.com/relayforge/gateway/common/logger"
	"github.com/relayforge/gateway/model"
)

// openaiClient calls an OpenAI-compatible HTTP endpoint directly through
// its own per-model http.Client (see NewOpenAI) instead of a per-channel one.
type openaiClient struct {
	baseURL    string
	apiKey     string
	internalID string
	http       *http.Client
}

// NewOpenAI builds a Client for an OpenAIBackend descriptor. Its transport
// is built through common/client.NewTransport so relay-proxy routing
// (config.RelayProxy) applies uniformly across every OpenAI-compatible
// backend, with a per-model connect timeout layered on top (§5).
func NewOpenAI(b model.OpenAIBackend, internalModelID string) Client {
	var proxyURL *url.URL
	if config.RelayProxy != "" {
		parsed, err := url.Parse(config.RelayProxy)
		if err != nil {
			logger.Logger.Warn("RELAY_PROXY set but invalid, ignoring", zap.Error(err))
		} else {
			proxyURL = parsed
		}
	}

	return &openaiClient{
		baseURL:    strings.TrimRight(b.BaseURL, "/"),
		apiKey:     b.APIKey,
		internalID: internalModelID,
		http: &http.Client{
			Timeout:   config.UpstreamRequestTimeout,
			Transport: client.NewTransport(proxyURL, config.UpstreamConnectTimeout),
		},
	}
}

func (c *openaiClient) Call(ctx context.Context, req adapt.Request) (adapt.Response, error) {
	req.SetModelID(c.internalID)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.InternalError, err, "encode upstream request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+req.Type().UpstreamPath(), bytes.NewReader(body))
	if err != nil {
		return nil, apierr.Wrap(apierr.InternalError, err, "build upstream request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, apierr.Wrap(apierr.ModelRateLimit, err, "upstream call timed out")
		}
		return nil, apierr.Wrap(apierr.BackendError, err, "call upstream")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.BackendError, err, "read upstream response")
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, apierr.New(apierr.ModelRateLimit, "upstream server error")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apierr.New(apierr.BackendError, "upstream rejected request: "+string(raw))
	}

	out, err := adapt.NewResponse(req.Type())
	if err != nil {
		return nil, apierr.Wrap(apierr.InternalError, err, "allocate response")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, apierr.Wrap(apierr.BackendError, err, "decode upstream response")
	}
	return out, nil
}
