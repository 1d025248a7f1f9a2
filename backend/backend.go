// Package backend adapts the four pluggable upstream-provider variants
// (OpenAI-compatible HTTP, AWS Bedrock, Google Vertex AI, Coze) behind one
// Client interface, so the model worker never branches on BackendKind
// (spec §9: "backend descriptor as pluggable").
package backend

import (
	"context"

	"github.com/Laisky/errors/v2"

	"github.com/relayforge/gateway/adapt"
	"github.com/relayforge/gateway/common"
	"github.com/relayforge/gateway/model"
)

// Client issues one upstream call for a decoded request and returns the
// matching response variant. Implementations must respect ctx's deadline;
// the worker relies on the transport-level timeout, not a context one, to
// surface ModelRateLimit on a slow upstream (§5).
type Client interface {
	Call(ctx context.Context, req adapt.Request) (adapt.Response, error)
}

// New builds the Client for a Model's configured backend descriptor. Stored
// secret fields are at rest as produced by common.EncryptSecret (see
// controller/admin.go's UpsertModel); they are decrypted here, the one place
// a Model's credentials are read back off the store into a live client.
func New(m model.Model) (Client, error) {
	switch m.Backend.Kind {
	case model.BackendOpenAI:
		b := m.Backend.OpenAI
		apiKey, err := common.DecryptSecret(b.APIKey)
		if err != nil {
			return nil, errors.Wrap(err, "decrypt openai api key")
		}
		b.APIKey = apiKey
		return NewOpenAI(b, m.Backend.ModelID), nil
	case model.BackendBedrock:
		b := m.Backend.Bedrock
		secretKey, err := common.DecryptSecret(b.SecretAccessKey)
		if err != nil {
			return nil, errors.Wrap(err, "decrypt bedrock secret access key")
		}
		b.SecretAccessKey = secretKey
		return NewBedrock(b, m.Backend.ModelID)
	case model.BackendVertexAI:
		b := m.Backend.VertexAI
		credentialsJSON, err := common.DecryptSecret(string(b.CredentialsJSON))
		if err != nil {
			return nil, errors.Wrap(err, "decrypt vertex ai credentials")
		}
		b.CredentialsJSON = []byte(credentialsJSON)
		return NewVertexAI(b, m.Backend.ModelID)
	case model.BackendCoze:
		b := m.Backend.Coze
		apiKey, err := common.DecryptSecret(b.APIKey)
		if err != nil {
			return nil, errors.Wrap(err, "decrypt coze api key")
		}
		b.APIKey = apiKey
		return NewCoze(b, m.Backend.ModelID), nil
	default:
		return nil, errors.Errorf("unknown backend kind %d", m.Backend.Kind)
	}
}
