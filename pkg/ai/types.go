// Package ai provides the provider abstraction over OpenAI-compatible
// backends (OpenAI, DeepSeek, Groq) and the routing/fallback logic on top.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported is returned by a backend that lacks a capability
// (e.g. DeepSeek has no embeddings API).
var ErrUnsupported = errors.New("capability not supported by provider")

// ProviderError wraps a failed provider call with its origin.
type ProviderError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// CompletionRequest is one chat completion call.
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// TranscriptionRequest is one speech-to-text call. Data holds the complete
// audio file; Filename carries the extension hint for the provider.
type TranscriptionRequest struct {
	Filename string
	Data     []byte
	Language string
	Prompt   string
}

// ImageRequest is one vision call. Either URL (presigned GET) or Data with
// ContentType (base64 data-URL fallback) must be set.
type ImageRequest struct {
	URL         string
	Data        []byte
	ContentType string
	Language    string
}

// Completer produces chat completions.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder produces embedding vectors, one per input, in input order.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Transcriber converts audio to text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, req TranscriptionRequest) (string, error)
}

// VisionDescriber produces textual descriptions of images.
type VisionDescriber interface {
	Name() string
	DescribeImage(ctx context.Context, req ImageRequest) (string, error)
}
