package adapt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRequest_Chat(t *testing.T) {
	body := []byte(`{"model":"gpt-4-fast","messages":[{"role":"user","content":"hi"}]}`)
	req, err := DecodeRequest(TextChat, body)
	require.NoError(t, err)
	require.Equal(t, "gpt-4-fast", req.ModelLabel())
	require.Equal(t, 1, req.GenerationFanout())
}

func TestChatRequest_SetModelID_StripsStream(t *testing.T) {
	stream := true
	req := &ChatRequest{Model: "gpt-4-fast", Stream: &stream}
	req.SetModelID("gpt-4-0613")
	require.Equal(t, "gpt-4-0613", req.Model)
	require.Nil(t, req.Stream)
}

func TestChatRequest_SetUser_RemovesWhenEmpty(t *testing.T) {
	user := "alice"
	req := &ChatRequest{User: &user}
	req.SetUser("")
	require.Nil(t, req.User)

	req.SetUser("pseudonym")
	require.Equal(t, "pseudonym", *req.User)
}

func TestChatRequest_EstimatedTokens_ScalesWithFanout(t *testing.T) {
	n := 3
	req := &ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hello there"}},
		N:        &n,
	}
	meta := ModelMeta{ContextLength: 100000}

	single := &ChatRequest{Messages: req.Messages}
	singleTokens, err := single.EstimatedTokens(meta)
	require.NoError(t, err)

	fanoutTokens, err := req.EstimatedTokens(meta)
	require.NoError(t, err)
	require.Equal(t, singleTokens*3, fanoutTokens)
}

func TestChatRequest_EstimatedTokens_CapsAtContextTimesFanout(t *testing.T) {
	n := 1000
	req := &ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hello there, this is a longer message"}},
		N:        &n,
	}
	meta := ModelMeta{ContextLength: 10}

	tokens, err := req.EstimatedTokens(meta)
	require.NoError(t, err)
	require.Equal(t, int64(10*1000), tokens)
}

func TestCompletionRequest_GenerationFanout_BestOfTimesPrompts(t *testing.T) {
	n := 2
	bestOf := 5
	req := &CompletionRequest{
		Prompt: Prompt{Strings: []string{"a", "b", "c"}},
		N:      &n,
		BestOf: &bestOf,
	}
	require.Equal(t, 15, req.GenerationFanout())
}

func TestCompletionRequest_Prompt_UnmarshalVariants(t *testing.T) {
	var p Prompt
	require.NoError(t, p.UnmarshalJSON([]byte(`"hello"`)))
	require.Equal(t, []string{"hello"}, p.Strings)

	var p2 Prompt
	require.NoError(t, p2.UnmarshalJSON([]byte(`["a","b"]`)))
	require.Equal(t, []string{"a", "b"}, p2.Strings)

	var p3 Prompt
	require.NoError(t, p3.UnmarshalJSON([]byte(`[1,2,3]`)))
	require.Equal(t, [][]int{{1, 2, 3}}, p3.TokenArray)
}

func TestEmbeddingRequest_GenerationFanout_ArrayLength(t *testing.T) {
	req := &EmbeddingRequest{Input: EmbeddingInput{Strings: []string{"a", "b", "c"}}}
	require.Equal(t, 3, req.GenerationFanout())
}

func TestModerationRequest_ModelLabel_DefaultsToLatest(t *testing.T) {
	req := &ModerationRequest{}
	require.Equal(t, "text-moderation-latest", req.ModelLabel())
}

func TestImageGenerationRequest_EstimatedTokens_IsFanout(t *testing.T) {
	n := 4
	req := &ImageGenerationRequest{N: &n}
	tokens, err := req.EstimatedTokens(ModelMeta{})
	require.NoError(t, err)
	require.Equal(t, int64(4), tokens)
}

func TestImageResponse_ReportedTokens_IsImageCount(t *testing.T) {
	resp := &ImageResponse{Data: make([]struct {
		URL     string `json:"url,omitempty"`
		B64JSON string `json:"b64_json,omitempty"`
	}, 2)}
	n, ok := resp.ReportedTokens()
	require.True(t, ok)
	require.Equal(t, int64(2), n)
}

func TestEditResponse_ReplaceModelLabel_IsNoOp(t *testing.T) {
	resp := &EditResponse{}
	require.NotPanics(t, func() { resp.ReplaceModelLabel("whatever") })
}

func TestNewResponse_AllRequestTypesSupported(t *testing.T) {
	types := []RequestType{
		TextChat, TextCompletion, TextEdit, TextEmbedding, TextModeration,
		ImageGeneration, ImageEdit, ImageVariation,
		AudioTTS, AudioTranscription, AudioTranslation,
	}
	for _, rt := range types {
		resp, err := NewResponse(rt)
		require.NoError(t, err, rt)
		require.NotNil(t, resp, rt)
	}
}

func TestChatResponse_ReportedTokens(t *testing.T) {
	resp := &ChatResponse{Usage: &Usage{TotalTokens: 42}}
	n, ok := resp.ReportedTokens()
	require.True(t, ok)
	require.Equal(t, int64(42), n)

	empty := &ChatResponse{}
	_, ok = empty.ReportedTokens()
	require.False(t, ok)
}

func TestDecodeRequest_MissingRequiredFieldFails(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"hi"}]}`)
	_, err := DecodeRequest(TextChat, body)
	require.Error(t, err)
}

func TestDecodeRequest_EmptyMessagesFails(t *testing.T) {
	body := []byte(`{"model":"gpt-4-fast","messages":[]}`)
	_, err := DecodeRequest(TextChat, body)
	require.Error(t, err)
}
