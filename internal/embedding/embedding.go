package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docintel/internal/config"
	"docintel/internal/models"
)

// Embedder maps text to fixed-dimension vectors. Implementations must
// return one vector per input in input order, and batched calls must be
// numerically equivalent to per-item calls.
type Embedder interface {
	Dim() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Client wraps a langchaingo embedder and enforces the configured vector
// dimension on every response.
type Client struct {
	impl *embeddings.EmbedderImpl
	dim  int
}

// NewOpenAIEmbedder builds a Client against an OpenAI-compatible endpoint.
func NewOpenAIEmbedder(cfg *config.EmbedderConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing embedding model: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &Client{impl: embedder, dim: cfg.Dimension}, nil
}

// NewOllamaEmbedder builds a Client against a local ollama server.
func NewOllamaEmbedder(cfg *config.EmbedderConfig) (*Client, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing embedding model: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &Client{impl: embedder, dim: cfg.Dimension}, nil
}

// NewEmbedder picks the provider from configuration.
func NewEmbedder(cfg *config.EmbedderConfig) (*Client, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaEmbedder(cfg)
	case "openai", "":
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Provider)
	}
}

func (c *Client) Dim() int { return c.dim }

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := c.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, classify(err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs",
			models.ErrEmbeddingUnavailable, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != c.dim {
			return nil, fmt.Errorf("%w: input %d produced %d dims, index expects %d",
				models.ErrDimensionMismatch, i, len(v), c.dim)
		}
	}
	return vectors, nil
}
