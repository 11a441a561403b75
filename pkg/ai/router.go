package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memora-app/memora/pkg/config"
)

// Router selects backends per capability and applies single-hop fallback:
// when the primary fails, the fallback (if any) is tried exactly once.
type Router struct {
	chat Completer

	embedder Embedder

	transcriber         Transcriber
	transcriberFallback Transcriber

	vision         VisionDescriber
	visionFallback VisionDescriber
}

// NewRouter wires backends from configuration.
//
// Routing rules:
//   - chat: AI_PROVIDER (openai | deepseek)
//   - embed: EMBEDDING_PROVIDER; DeepSeek cannot embed, so OpenAI is
//     substituted with a warning
//   - transcribe: Groq primary, OpenAI fallback
//   - vision: Groq primary, OpenAI fallback
func NewRouter(cfg config.AIConfig) (*Router, error) {
	r := &Router{}

	var oai *Client
	if cfg.OpenAIAPIKey != "" {
		oai = NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	}
	var groq *Client
	if cfg.GroqAPIKey != "" {
		groq = NewGroq(cfg.GroqAPIKey)
	}

	switch cfg.Provider {
	case config.ProviderDeepSeek:
		if cfg.DeepSeekAPIKey == "" {
			return nil, fmt.Errorf("AI_PROVIDER=deepseek but DEEPSEEK_API_KEY is not set")
		}
		r.chat = NewDeepSeek(cfg.DeepSeekAPIKey)
	case config.ProviderOpenAI:
		if oai == nil {
			return nil, fmt.Errorf("AI_PROVIDER=openai but OPENAI_API_KEY is not set")
		}
		r.chat = oai
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.Provider)
	}

	if cfg.EnableEmbeddings {
		if cfg.EmbeddingProvider == config.ProviderDeepSeek {
			slog.Warn("DeepSeek has no embeddings API, substituting OpenAI",
				"embedding_provider", cfg.EmbeddingProvider)
		}
		if oai == nil {
			return nil, fmt.Errorf("embeddings enabled but no embedding-capable provider configured")
		}
		r.embedder = oai
	}

	if groq != nil {
		r.transcriber = groq
		r.vision = groq
		if oai != nil {
			r.transcriberFallback = oai
			r.visionFallback = oai
		}
	} else if oai != nil {
		r.transcriber = oai
		r.vision = oai
	}

	return r, nil
}

// CanTranscribe reports whether any speech-to-text backend is configured.
func (r *Router) CanTranscribe() bool { return r.transcriber != nil }

// CanDescribeImages reports whether any vision backend is configured.
func (r *Router) CanDescribeImages() bool { return r.vision != nil }

// CanEmbed reports whether embedding generation is available.
func (r *Router) CanEmbed() bool { return r.embedder != nil }

// ChatProvider returns the name of the configured chat backend.
func (r *Router) ChatProvider() string { return r.chat.Name() }

// EmbeddingProvider returns the name of the embedding backend, or "".
func (r *Router) EmbeddingProvider() string {
	if r.embedder == nil {
		return ""
	}
	return r.embedder.Name()
}

// Summarize produces the structured markdown summary for a session's
// combined block texts.
func (r *Router) Summarize(ctx context.Context, lang string, blockTexts []string) (string, error) {
	combined := strings.Join(blockTexts, "\n\n")
	if strings.TrimSpace(combined) == "" {
		return "", fmt.Errorf("no text content available for summary")
	}
	// Bound the prompt to keep token usage predictable.
	const maxChars = 8000
	if len(combined) > maxChars {
		combined = combined[:maxChars] + "... [truncated]"
		slog.Warn("Summary input truncated", "max_chars", maxChars)
	}

	summary, err := r.chat.Complete(ctx, CompletionRequest{
		System:      summarySystemPrompt(lang),
		User:        combined,
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return "", err
	}

	// Models occasionally drop the leading heading; re-anchor the scaffold.
	summary = strings.TrimSpace(summary)
	if !strings.HasPrefix(summary, "## 📌") {
		h := summaryHeadings[normalizeLanguage(lang)]
		summary = fmt.Sprintf("## 📌 %s\n\n%s", h[0], summary)
	}
	return summary, nil
}

// SuggestTitle produces a short title for the combined text, normalized to
// the 60-character cap.
func (r *Router) SuggestTitle(ctx context.Context, lang, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text content available for title")
	}
	const maxChars = 4000
	if len(text) > maxChars {
		text = text[:maxChars]
	}

	title, err := r.chat.Complete(ctx, CompletionRequest{
		System:      titleSystemPrompt(lang),
		User:        text,
		Temperature: 0.3,
		MaxTokens:   30,
	})
	if err != nil {
		return "", err
	}
	return NormalizeTitle(title), nil
}

// Embed generates embedding vectors for the given chunks.
func (r *Router) Embed(ctx context.Context, chunks []string) ([][]float32, error) {
	if r.embedder == nil {
		return nil, ErrUnsupported
	}
	return r.embedder.Embed(ctx, chunks)
}

// Transcribe converts audio to text, falling back once on primary failure.
func (r *Router) Transcribe(ctx context.Context, req TranscriptionRequest) (string, error) {
	if r.transcriber == nil {
		return "", ErrUnsupported
	}
	text, err := r.transcriber.Transcribe(ctx, req)
	if err == nil {
		return text, nil
	}
	if r.transcriberFallback == nil || ctx.Err() != nil {
		return "", err
	}
	slog.Warn("Transcription failed, trying fallback provider",
		"provider", r.transcriber.Name(),
		"fallback", r.transcriberFallback.Name(),
		"error", err)
	return r.transcriberFallback.Transcribe(ctx, req)
}

// DescribeImage describes an image, falling back once on primary failure.
func (r *Router) DescribeImage(ctx context.Context, req ImageRequest) (string, error) {
	if r.vision == nil {
		return "", ErrUnsupported
	}
	desc, err := r.vision.DescribeImage(ctx, req)
	if err == nil {
		return desc, nil
	}
	if r.visionFallback == nil || ctx.Err() != nil {
		return "", err
	}
	slog.Warn("Image description failed, trying fallback provider",
		"provider", r.vision.Name(),
		"fallback", r.visionFallback.Name(),
		"error", err)
	return r.visionFallback.DescribeImage(ctx, req)
}
