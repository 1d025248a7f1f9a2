package backend

import (
	"context"
	"strings"

	coze "github.com/coze-dev/coze-go"

	"github.com/relayforge/gateway/adapt"
	"github.com/relayforge/gateway/apierr"
	"github.com/relayforge/gateway/model"
)

// cozeClient calls a Coze bot via the official SDK. Like bedrockClient and
// vertexaiClient, only the chat shape is translated (§9/SPEC_FULL §4).
type cozeClient struct {
	api   *coze.CozeAPI
	botID string
}

// NewCoze builds a Client for a CozeBackend descriptor.
func NewCoze(b model.CozeBackend, _ string) Client {
	auth := coze.NewTokenAuth(b.APIKey)
	opts := []coze.CozeAPIOption{coze.WithAuth(auth)}
	if b.BaseURL != "" {
		opts = append(opts, coze.WithBaseURL(b.BaseURL))
	}
	return &cozeClient{api: coze.NewCozeAPI(auth, opts...), botID: b.BotID}
}

func (c *cozeClient) Call(ctx context.Context, req adapt.Request) (adapt.Response, error) {
	chat, ok := req.(*adapt.ChatRequest)
	if !ok {
		return nil, apierr.New(apierr.ModelUnavailable, "coze backend only translates chat completions")
	}

	var transcript strings.Builder
	for _, m := range chat.Messages {
		transcript.WriteString(m.Role)
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	resp, err := c.api.Chat.CreateAndPoll(ctx, &coze.CreateChatsReq{
		BotID: c.botID,
		UserID: "gateway",
		AdditionalMessages: []*coze.Message{
			coze.BuildUserQuestionText(transcript.String(), nil),
		},
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.BackendError, err, "call coze bot")
	}

	out := &adapt.ChatResponse{ID: resp.Chat.ID}
	if resp.Chat.Usage != nil {
		out.Usage = &adapt.Usage{
			PromptTokens:     int64(resp.Chat.Usage.PromptTokens),
			CompletionTokens: int64(resp.Chat.Usage.OutputTokens),
			TotalTokens:      int64(resp.Chat.Usage.TokenCount),
		}
	}
	return out, nil
}
