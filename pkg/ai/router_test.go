package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memora-app/memora/pkg/config"
)

type fakeTranscriber struct {
	name  string
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Name() string { return f.name }

func (f *fakeTranscriber) Transcribe(_ context.Context, _ TranscriptionRequest) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeVision struct {
	name  string
	desc  string
	err   error
	calls int
}

func (f *fakeVision) Name() string { return f.name }

func (f *fakeVision) DescribeImage(_ context.Context, _ ImageRequest) (string, error) {
	f.calls++
	return f.desc, f.err
}

type fakeCompleter struct {
	name string
	out  string
	err  error
}

func (f *fakeCompleter) Name() string { return f.name }

func (f *fakeCompleter) Complete(_ context.Context, _ CompletionRequest) (string, error) {
	return f.out, f.err
}

func TestNewRouter_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.AIConfig
		wantErr string
	}{
		{
			name:    "deepseek without key",
			cfg:     config.AIConfig{Provider: config.ProviderDeepSeek},
			wantErr: "DEEPSEEK_API_KEY",
		},
		{
			name:    "openai without key",
			cfg:     config.AIConfig{Provider: config.ProviderOpenAI},
			wantErr: "OPENAI_API_KEY",
		},
		{
			name: "embeddings without capable provider",
			cfg: config.AIConfig{
				Provider:          config.ProviderDeepSeek,
				DeepSeekAPIKey:    "sk-ds",
				EmbeddingProvider: config.ProviderOpenAI,
				EnableEmbeddings:  true,
			},
			wantErr: "embedding-capable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRouter(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRouter_DeepSeekEmbeddingSubstitution(t *testing.T) {
	r, err := NewRouter(config.AIConfig{
		Provider:          config.ProviderDeepSeek,
		DeepSeekAPIKey:    "sk-ds",
		EmbeddingProvider: config.ProviderDeepSeek,
		EnableEmbeddings:  true,
		OpenAIAPIKey:      "sk-oai",
	})
	require.NoError(t, err)

	assert.Equal(t, "deepseek", r.ChatProvider())
	assert.Equal(t, "openai", r.EmbeddingProvider())
	assert.True(t, r.CanEmbed())
}

func TestNewRouter_TranscriptionRouting(t *testing.T) {
	t.Run("groq primary with openai fallback", func(t *testing.T) {
		r, err := NewRouter(config.AIConfig{
			Provider:     config.ProviderOpenAI,
			OpenAIAPIKey: "sk-oai",
			GroqAPIKey:   "gsk",
		})
		require.NoError(t, err)
		assert.True(t, r.CanTranscribe())
		assert.Equal(t, "groq", r.transcriber.Name())
		require.NotNil(t, r.transcriberFallback)
		assert.Equal(t, "openai", r.transcriberFallback.Name())
	})

	t.Run("openai only", func(t *testing.T) {
		r, err := NewRouter(config.AIConfig{
			Provider:     config.ProviderOpenAI,
			OpenAIAPIKey: "sk-oai",
		})
		require.NoError(t, err)
		assert.True(t, r.CanTranscribe())
		assert.Equal(t, "openai", r.transcriber.Name())
		assert.Nil(t, r.transcriberFallback)
	})

	t.Run("no speech backend", func(t *testing.T) {
		r, err := NewRouter(config.AIConfig{
			Provider:       config.ProviderDeepSeek,
			DeepSeekAPIKey: "sk-ds",
		})
		require.NoError(t, err)
		assert.False(t, r.CanTranscribe())
		assert.False(t, r.CanDescribeImages())
	})
}

func TestTranscribe_FallbackSingleHop(t *testing.T) {
	primary := &fakeTranscriber{name: "groq", err: errors.New("rate limited")}
	fallback := &fakeTranscriber{name: "openai", text: "hello world"}
	r := &Router{transcriber: primary, transcriberFallback: fallback}

	text, err := r.Transcribe(context.Background(), TranscriptionRequest{Filename: "a.wav"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestTranscribe_BothFail(t *testing.T) {
	primary := &fakeTranscriber{name: "groq", err: errors.New("down")}
	fallback := &fakeTranscriber{name: "openai", err: errors.New("also down")}
	r := &Router{transcriber: primary, transcriberFallback: fallback}

	_, err := r.Transcribe(context.Background(), TranscriptionRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestTranscribe_NoFallbackOnCancelledContext(t *testing.T) {
	primary := &fakeTranscriber{name: "groq", err: context.Canceled}
	fallback := &fakeTranscriber{name: "openai", text: "unused"}
	r := &Router{transcriber: primary, transcriberFallback: fallback}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Transcribe(ctx, TranscriptionRequest{})
	require.Error(t, err)
	assert.Equal(t, 0, fallback.calls)
}

func TestDescribeImage_Fallback(t *testing.T) {
	primary := &fakeVision{name: "groq", err: errors.New("boom")}
	fallback := &fakeVision{name: "openai", desc: "a whiteboard with diagrams"}
	r := &Router{vision: primary, visionFallback: fallback}

	desc, err := r.DescribeImage(context.Background(), ImageRequest{URL: "https://example/img"})
	require.NoError(t, err)
	assert.Equal(t, "a whiteboard with diagrams", desc)
}

func TestSummarize_ReanchorsScaffold(t *testing.T) {
	r := &Router{chat: &fakeCompleter{name: "openai", out: "Some summary body without headings"}}

	summary, err := r.Summarize(context.Background(), "en", []string{"note one", "note two"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(summary, "## 📌 Summary"))
	assert.Contains(t, summary, "Some summary body")
}

func TestSummarize_EmptyInput(t *testing.T) {
	r := &Router{chat: &fakeCompleter{name: "openai"}}

	_, err := r.Summarize(context.Background(), "en", []string{"  ", ""})
	assert.Error(t, err)
}

func TestSuggestTitle_Normalizes(t *testing.T) {
	r := &Router{chat: &fakeCompleter{name: "openai", out: `"` + strings.Repeat("t", 80) + `"`}}

	title, err := r.SuggestTitle(context.Background(), "en", "some text")
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(title)), MaxTitleLength)
}

func TestEmbed_Unsupported(t *testing.T) {
	r := &Router{}
	_, err := r.Embed(context.Background(), []string{"chunk"})
	assert.ErrorIs(t, err, ErrUnsupported)
}
