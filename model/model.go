// Package model defines the gateway's data entities: users, roles, quotas,
// models and their backend descriptors. These are pure value types; the
// config store (package store) is responsible for persistence, and the
// policy resolver (package policy) is responsible for flattening them into
// a per-request Principal view.
package model

import (
	"time"

	"github.com/google/uuid"
)

// LimitItem is the dimension a Limit is counted in.
type LimitItem int

const (
	// LimitItemRequest counts one unit per admitted request.
	LimitItemRequest LimitItem = iota
	// LimitItemToken counts estimated/actual tokens.
	LimitItemToken
)

func (k LimitItem) String() string {
	if k == LimitItemToken {
		return "token"
	}
	return "request"
}

// Limit is one GCRA window: count units replenish every Per duration, and
// Count is also the burst capacity (§3: "burst capacity = count").
type Limit struct {
	Count int64         `json:"count"`
	Kind  LimitItem     `json:"kind"`
	Per   time.Duration `json:"per"`
}

// Normalized returns a copy of the Limit with Count clamped to at least 1,
// per §8's boundary behaviour ("Quota with count=0 is treated as count=1").
func (l Limit) Normalized() Limit {
	if l.Count < 1 {
		l.Count = 1
	}
	return l
}

// Quota is a named, ordered list of Limits. The order is significant: the
// limiter bundle admits cells in this declared order (§4.2).
type Quota struct {
	ID     uuid.UUID `json:"id"`
	Label  string    `json:"label"`
	Limits []Limit   `json:"limits"`
}

// Role groups models and quotas that every member User additively inherits.
type Role struct {
	ID        uuid.UUID   `json:"id"`
	Label     string      `json:"label"`
	Admin     bool        `json:"admin"`
	ModelIDs  []uuid.UUID `json:"model_ids"`
	QuotaIDs  []uuid.UUID `json:"quota_ids"`
}

// User owns API keys and, directly or via roles, models and quotas.
type User struct {
	ID       uuid.UUID   `json:"id"`
	Label    string      `json:"label"`
	APIKeys  []string    `json:"api_keys"`
	RoleIDs  []uuid.UUID `json:"role_ids"`
	ModelIDs []uuid.UUID `json:"model_ids"`
	QuotaIDs []uuid.UUID `json:"quota_ids"`
}

// RelatedKeys implements the store's related-key projection: a User's
// related rows in the api_keys table are its own API keys (§4.7).
func (u User) RelatedKeys() []string {
	return u.APIKeys
}

// BackendKind identifies which concrete BackendDescriptor variant a Model carries.
type BackendKind int

const (
	BackendOpenAI BackendKind = iota
	BackendBedrock
	BackendVertexAI
	BackendCoze
)

// BackendDescriptor is the pluggable upstream-provider variant a Model
// forwards to. Exactly one of the provider-specific fields is meaningful,
// selected by Kind (§9: "backend descriptor as pluggable").
type BackendDescriptor struct {
	Kind BackendKind `json:"kind"`

	// ModelID is the upstream-internal model identifier (never sent to clients).
	ModelID string `json:"model_id"`
	// ProxyUserIDs enables §6's SHA-256/crockford pseudonymous user-id fan-out.
	ProxyUserIDs bool `json:"proxy_user_ids"`

	OpenAI   OpenAIBackend   `json:"openai,omitempty"`
	Bedrock  BedrockBackend  `json:"bedrock,omitempty"`
	VertexAI VertexAIBackend `json:"vertexai,omitempty"`
	Coze     CozeBackend     `json:"coze,omitempty"`
}

// OpenAIBackend targets an OpenAI-compatible HTTP endpoint.
type OpenAIBackend struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// BedrockBackend targets AWS Bedrock's runtime API.
type BedrockBackend struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// VertexAIBackend targets Google Vertex AI.
type VertexAIBackend struct {
	ProjectID       string `json:"project_id"`
	Location        string `json:"location"`
	CredentialsJSON []byte `json:"credentials_json"`
}

// CozeBackend targets the Coze bot platform.
type CozeBackend struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
	BotID   string `json:"bot_id"`
}

// TokenizerOffsets carries the per-message/per-name token accounting
// constants used by the chat adapter, independent from which BPE tokenizer
// is selected.
type TokenizerOffsets struct {
	TokensPerMessage int `json:"tokens_per_message"`
	TokensPerName    int `json:"tokens_per_name"`
}

// Model is one upstream-routable destination, addressed by clients only
// through its public Label (§3d: "No Model is addressable by UUID from the
// data path").
type Model struct {
	ID      uuid.UUID `json:"id"`
	Label   string    `json:"label"`
	Backend BackendDescriptor `json:"backend"`

	ContextLength *int    `json:"context_length,omitempty"`
	Tokenizer     *string `json:"tokenizer,omitempty"`
	Offsets       TokenizerOffsets `json:"offsets"`

	QuotaIDs     []uuid.UUID `json:"quota_ids"`
	MaxQueueSize int         `json:"max_queue_size"`
}
