// Package embeddings provides the OpenAI-backed text embedder. Calls run
// through a circuit breaker so a flapping embedding API degrades hybrid
// search to keyword-only instead of stalling every request on a timeout.
package embeddings

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	engineErrors "lattice-backend/internal/errors"
	"lattice-backend/internal/repository"
)

const embedTimeout = 10 * time.Second

// OpenAIEmbedder converts text into embedding vectors via the OpenAI API.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewOpenAIEmbedder creates an embedder for the given API key and model
// name. An empty model name falls back to text-embedding-3-small.
func NewOpenAIEmbedder(apiKey, model string, logger *zap.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	embeddingModel := openai.SmallEmbedding3
	if model != "" {
		embeddingModel = openai.EmbeddingModel(model)
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai-embeddings",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &OpenAIEmbedder{
		client:  openai.NewClient(apiKey),
		model:   embeddingModel,
		breaker: breaker,
		logger:  logger,
	}
}

var _ repository.Embedder = (*OpenAIEmbedder)(nil)

// Embed returns the embedding vector for text. Failures, including an open
// breaker, surface as upstream errors for the caller to degrade on.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, embedTimeout)
		defer cancel()
		resp, err := e.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: e.model,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, engineErrors.Upstream("EMBEDDING_EMPTY", "embedding response carried no data")
		}
		return resp.Data[0].Embedding, nil
	})
	if err != nil {
		e.logger.Warn("embedding request failed", zap.Error(err))
		return nil, engineErrors.Upstream("EMBEDDING_UNAVAILABLE", "embedding service unavailable").
			WithOperation("Embed").
			WithCause(err)
	}
	return result.([]float32), nil
}
