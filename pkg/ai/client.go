package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/memora-app/memora/pkg/metrics"
)

// Base URLs for OpenAI-compatible backends.
const (
	deepSeekBaseURL = "https://api.deepseek.com/v1"
	groqBaseURL     = "https://api.groq.com/openai/v1"
)

// Default models per backend.
const (
	openAIChatModel      = "gpt-4o-mini"
	openAIVisionModel    = "gpt-4o-mini"
	openAIWhisperModel   = "whisper-1"
	deepSeekChatModel    = "deepseek-chat"
	groqWhisperModel     = "whisper-large-v3-turbo"
	groqVisionModel      = "meta-llama/llama-4-scout-17b-16e-instruct"
	defaultEmbeddingModel = "text-embedding-3-small"
)

// Client is one OpenAI-compatible backend. The same wire protocol serves
// OpenAI, DeepSeek, and Groq; only base URL, models, and capabilities differ.
type Client struct {
	name           string
	api            *openai.Client
	chatModel      string
	embeddingModel string
	whisperModel   string
	visionModel    string
}

// Name returns the backend identifier ("openai", "deepseek", "groq").
func (c *Client) Name() string { return c.name }

// NewOpenAI builds the OpenAI backend: chat, embeddings, Whisper, and vision.
func NewOpenAI(apiKey, embeddingModel string) *Client {
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	return &Client{
		name:           "openai",
		api:            openai.NewClient(apiKey),
		chatModel:      openAIChatModel,
		embeddingModel: embeddingModel,
		whisperModel:   openAIWhisperModel,
		visionModel:    openAIVisionModel,
	}
}

// NewDeepSeek builds the DeepSeek backend. Chat only: no embeddings,
// transcription, or vision.
func NewDeepSeek(apiKey string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = deepSeekBaseURL
	return &Client{
		name:      "deepseek",
		api:       openai.NewClientWithConfig(cfg),
		chatModel: deepSeekChatModel,
	}
}

// NewGroq builds the Groq backend: Whisper transcription and vision.
func NewGroq(apiKey string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	return &Client{
		name:         "groq",
		api:          openai.NewClientWithConfig(cfg),
		whisperModel: groqWhisperModel,
		visionModel:  groqVisionModel,
	}
}

// Complete runs one chat completion.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.chatModel == "" {
		return "", &ProviderError{Provider: c.name, Operation: "complete", Err: ErrUnsupported}
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	metrics.ObserveProvider(c.name, "complete", start, err)
	if err != nil {
		return "", &ProviderError{Provider: c.name, Operation: "complete", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: c.name, Operation: "complete",
			Err: fmt.Errorf("empty response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed generates one embedding per input, preserving order.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.embeddingModel == "" {
		return nil, &ProviderError{Provider: c.name, Operation: "embed", Err: ErrUnsupported}
	}

	start := time.Now()
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: inputs,
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	metrics.ObserveProvider(c.name, "embed", start, err)
	if err != nil {
		return nil, &ProviderError{Provider: c.name, Operation: "embed", Err: err}
	}
	if len(resp.Data) != len(inputs) {
		return nil, &ProviderError{Provider: c.name, Operation: "embed",
			Err: fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data))}
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Transcribe runs Whisper speech-to-text on a complete audio file.
func (c *Client) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	if c.whisperModel == "" {
		return "", &ProviderError{Provider: c.name, Operation: "transcribe", Err: ErrUnsupported}
	}

	start := time.Now()
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.whisperModel,
		FilePath: req.Filename,
		Reader:   bytes.NewReader(req.Data),
		Language: req.Language,
		Prompt:   req.Prompt,
	})
	metrics.ObserveProvider(c.name, "transcribe", start, err)
	if err != nil {
		return "", &ProviderError{Provider: c.name, Operation: "transcribe", Err: err}
	}
	return resp.Text, nil
}

// DescribeImage runs one vision call. A URL is preferred; raw bytes are sent
// as a base64 data URL.
func (c *Client) DescribeImage(ctx context.Context, req ImageRequest) (string, error) {
	if c.visionModel == "" {
		return "", &ProviderError{Provider: c.name, Operation: "describe_image", Err: ErrUnsupported}
	}

	imageURL := req.URL
	if imageURL == "" {
		if len(req.Data) == 0 {
			return "", &ProviderError{Provider: c.name, Operation: "describe_image",
				Err: fmt.Errorf("no image URL or data provided")}
		}
		imageURL = fmt.Sprintf("data:%s;base64,%s",
			req.ContentType, base64.StdEncoding.EncodeToString(req.Data))
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: imagePrompt(req.Language)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	metrics.ObserveProvider(c.name, "describe_image", start, err)
	if err != nil {
		return "", &ProviderError{Provider: c.name, Operation: "describe_image", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: c.name, Operation: "describe_image",
			Err: fmt.Errorf("empty response")}
	}
	return resp.Choices[0].Message.Content, nil
}
