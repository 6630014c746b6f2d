package genai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LLMClient defines the text-generation capability the retriever consumes.
type LLMClient interface {
	// GenerateText sends a rendered prompt and returns the model's text.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// Close cleans up any resources used by the client.
	Close() error
}

// EmbeddingsClient defines the embedding capability the retriever consumes.
type EmbeddingsClient interface {
	// EmbedQuery computes a fixed-length vector for the given text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config holds configuration for the GenAI client.
type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Retry          RetryOptions
}

// Client implements LLMClient and EmbeddingsClient using the Google Gemini
// API.
type Client struct {
	client *genai.Client
	cfg    Config
	logger *zap.Logger
}

var (
	_ LLMClient        = (*Client)(nil)
	_ EmbeddingsClient = (*Client)(nil)
)

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cannot create Gemini client: API key is missing")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash-latest"
		logger.Info("Gemini model not specified, using default", zap.String("model", cfg.Model))
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryOptions
	}

	return &Client{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Close cleans up the underlying Gemini client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAPIKeyValid checks if the configured API key is functional by listing
// models.
func (c *Client) IsAPIKeyValid(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("gemini client not initialized (likely missing API key)")
	}

	modelIterator := c.client.ListModels(ctx)
	if _, err := modelIterator.Next(); err != nil {
		if st, ok := status.FromError(err); ok {
			if st.Code() == codes.Unauthenticated || st.Code() == codes.PermissionDenied {
				return fmt.Errorf("invalid Gemini API key or insufficient permissions: %w", err)
			}
		}
		return fmt.Errorf("failed to verify Gemini API key by listing models: %w", err)
	}
	return nil
}

// GenerateText sends the prompt to the generation model. SQL synthesis wants
// determinism, so the temperature stays low. Transient API failures are
// retried with backoff.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(0.0)
	model.SetTopP(0.9)
	model.SetTopK(40)

	resp, err := withRetry(ctx, c.cfg.Retry, c.logger, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return model.GenerateContent(ctx, genai.Text(prompt))
	})
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	text, err := getFirstTextPart(resp)
	if err != nil {
		return "", err
	}
	return text, nil
}

// EmbedQuery computes the query embedding with the configured embedding
// model.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if c.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}

	em := c.client.EmbeddingModel(c.cfg.EmbeddingModel)
	res, err := withRetry(ctx, c.cfg.Retry, c.logger, func(ctx context.Context) (*genai.EmbedContentResponse, error) {
		return em.EmbedContent(ctx, genai.Text(text))
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini embedding call failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("Gemini returned an empty embedding for model %s", c.cfg.EmbeddingModel)
	}
	return res.Embedding.Values, nil
}

// getFirstTextPart extracts the first text part from a Gemini response.
func getFirstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if resp != nil && len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason.String()
		}
		return "", fmt.Errorf("empty or incomplete response from Gemini API. FinishReason: %s", finishReason)
	}
	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type: %T", part)
	}
	return string(text), nil
}
